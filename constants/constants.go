// Package constants vends constants used in various components of juspost service, e.g., env var names
package constants

const (
	// -------------- env vars --------------
	// common
	EnvVerbose = "JUSPOST_VERBOSE"
	// stores
	EnvMongoURI    = "JUSPOST_MONGO_URI"
	EnvMongoDBName = "JUSPOST_MONGO_DB"
	EnvRedisHost   = "REDIS_HOST"
	EnvRedisPort   = "REDIS_PORT"
	EnvRedisPasswd = "REDIS_PASSWD"
	EnvRedisDB     = "REDIS_DB"
	// server
	EnvAppHost            = "JUSPOST_HOST"
	EnvAppPort            = "JUSPOST_PORT"
	EnvReqBodySizeMaxByte = "JUSPOST_REQ_BODY_SIZE_MAX_BYTE"
	EnvNicknameCacheSize  = "JUSPOST_NICKNAME_CACHE_SIZE"
	EnvNicknameCacheTTL   = "JUSPOST_NICKNAME_CACHE_TTL"
	EnvAllowedOrigin      = "JUSPOST_ALLOWED_ORIGIN"
	// deleter
	EnvDeleterLocalCacheSize      = "JUSPOST_DELETER_LOCAL_CACHE_SIZE"
	EnvDeleterSweepFreq           = "JUSPOST_DELETER_SWEEP_FREQ"
	EnvDeleterMaxSweepLoad        = "JUSPOST_DELETER_MAX_SWEEP_LOAD"
	EnvDeleterExecutorPoolSize    = "JUSPOST_DELETER_EXEC_POOL_SIZE"
	EnvDeleterWIPCacheEntryExpiry = "JUSPOST_DELETER_WIP_CACHE_ENTRY_EXPIRY"

	// -------------- identity --------------
	// ReservedAdminHandle cannot be registered through the public login path.
	ReservedAdminHandle = "harsh-admin"
	// AnonymousIDPrefix marks liker identifiers generated for users who never logged in.
	AnonymousIDPrefix = "anon-"
	// AnonymousLabel is the display name anonymous likers and anonymized posts resolve to.
	AnonymousLabel = "Anonymous"
	// DeletedUsernamePrefix prefixes the author handle of posts whose author got deleted.
	DeletedUsernamePrefix = "deleted_"

	RoleUser  = "user"
	RoleAdmin = "admin"

	// -------------- log fields --------------
	LogFieldFuncName = "funcName"
)
