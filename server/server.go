// Command server runs the juspost API service: post/user mutation handlers
// backed by MongoDB plus the realtime broadcast channel.
package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/bluele/gcache"
	"github.com/go-redis/redis"
	hr "github.com/julienschmidt/httprouter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/HarshAmrute/JusPost-Fullstack-project/common/logging"
	rt "github.com/HarshAmrute/JusPost-Fullstack-project/common/retry"
	cst "github.com/HarshAmrute/JusPost-Fullstack-project/constants"
	pe "github.com/HarshAmrute/JusPost-Fullstack-project/errors"
	"github.com/HarshAmrute/JusPost-Fullstack-project/events"
	st "github.com/HarshAmrute/JusPost-Fullstack-project/stores"
)

func main() {
	if err := serve(); err != nil {
		log.WithError(err).Fatal("error running juspost server")
	}
}

// juspostServer serves the application's http surface and owns the realtime
// broadcast channel.
type juspostServer struct {
	Users   st.UserStore
	Posts   st.PostStore
	Private st.PrivatePostStore
	Expiry  st.ExpiryIndex
	B       events.Broadcaster
	// nickname resolution cache: username -> current nickname
	Nicknames gcache.Cache
	Router    *hr.Router
}

func (s *juspostServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

// start up application server and serve incoming requests
func serve() error {
	// read configuration from env vars
	viper.AutomaticEnv()
	logging.SetupLog("JuspostServer")
	// initialize dependencies in data layer
	// NOTE docker compose's depends_on feature only guarantee the startup order of *service containers*,
	// instead of the services themselves - It is us who define when the services are ready
	users, posts, private, err := setupMongoStores()
	if err != nil {
		return err
	}
	expiry, err := setupExpiryIndex()
	if err != nil {
		return err
	}
	defer expiry.Close()

	hub := events.NewHub(viper.GetString(cst.EnvAllowedOrigin))
	cacheSize := viper.GetInt(cst.EnvNicknameCacheSize)
	if cacheSize <= 0 {
		cacheSize = 1 << 10
	}
	svr := &juspostServer{
		Users:     users,
		Posts:     posts,
		Private:   private,
		Expiry:    expiry,
		B:         hub,
		Nicknames: gcache.New(cacheSize).LRU().Build(),
	}
	svr.SetupMux(hub)

	host, port := viper.GetString(cst.EnvAppHost), viper.GetString(cst.EnvAppPort)
	log.WithFields(log.Fields{
		"host": host,
		"port": port,
	}).Infof("juspost server is starting up")
	addr := fmt.Sprintf("%s:%s", host, port)
	return http.ListenAndServe(addr, svr)
}

func retryOpts() []rt.RetryOption {
	return []rt.RetryOption{
		rt.WithTimeout(10 * time.Second),
		rt.WithBaseDelay(100 * time.Millisecond),
		rt.WithExp(2.0),
		rt.WithRetryOn(rt.IsDepOffline),
	}
}

func setupMongoStores() (st.UserStore, st.PostStore, st.PrivatePostStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(viper.GetString(cst.EnvMongoURI)))
	if err != nil {
		return nil, nil, nil, pe.NewServiceFailure("failed initializing MongoDB client").WithCause(err)
	}
	// verify the client is up correctly
	pingFn := func() error {
		return client.Ping(ctx, readpref.Primary())
	}
	if err := rt.Retry(pingFn, retryOpts()...); err != nil {
		return nil, nil, nil, pe.NewServiceFailure("failed reaching MongoDB").WithCause(err)
	}
	db := client.Database(viper.GetString(cst.EnvMongoDBName))
	users := &st.MongoUserStore{C: db.Collection("users")}
	posts := &st.MongoPostStore{C: db.Collection("posts")}
	private := &st.MongoPrivatePostStore{C: db.Collection("privatePosts")}
	if err := users.EnsureIndexes(ctx); err != nil {
		return nil, nil, nil, err
	}
	if err := private.EnsureIndexes(ctx); err != nil {
		return nil, nil, nil, err
	}
	return users, posts, private, nil
}

func setupExpiryIndex() (st.ExpiryIndex, error) {
	redisClient := redis.NewClient(&redis.Options{
		Addr:       fmt.Sprintf("%s:%s", viper.GetString(cst.EnvRedisHost), viper.GetString(cst.EnvRedisPort)),
		Password:   viper.GetString(cst.EnvRedisPasswd),
		DB:         viper.GetInt(cst.EnvRedisDB),
		MaxRetries: 3,
	})
	// verify the client is up correctly
	pingFn := func() error {
		_, err := redisClient.Ping().Result()
		return err
	}
	if err := rt.Retry(pingFn, retryOpts()...); err != nil {
		return nil, pe.NewServiceFailure("failed initializing Redis").WithCause(err)
	}
	return &st.RedisExpiryIndex{DB: redisClient}, nil
}
