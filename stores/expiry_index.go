package stores

import (
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis"
	log "github.com/sirupsen/logrus"

	pe "github.com/HarshAmrute/JusPost-Fullstack-project/errors"
)

// ExpiryIndex tracks private posts with an expiry so that the deleter worker
// can purge them once they lapse. A private post without expiresAt never
// enters the index.
type ExpiryIndex interface {
	// Register indexes the private post under its uniqueId, scored by expiry.
	Register(uniqueID string, expiresAt time.Time) *pe.Err
	// Deregister removes the index entry. Caller must ensure the post data is
	// cleaned up before calling Deregister to avoid leaking post data.
	Deregister(uniqueID string) *pe.Err
	// Junk returns uniqueIds of up to max lapsed private posts; it returns
	// all of them when max == 0.
	Junk(max int) ([]string, *pe.Err)
	Close() *pe.Err
}

// RedisExpiryIndex is an ExpiryIndex implementation driven by Redis.
type RedisExpiryIndex struct {
	DB *redis.Client
}

// redis key of the sorted set whose score is private post expiry
const keyPrivatePostExpirySet = "privatePostExpirySet"

func (s *RedisExpiryIndex) Register(uniqueID string, expiresAt time.Time) *pe.Err {
	clog := log.WithField("uniqueID", uniqueID)
	member := redis.Z{
		Score:  float64(expiresAt.Unix()),
		Member: uniqueID,
	}
	if _, err := s.DB.ZAddNX(keyPrivatePostExpirySet, member).Result(); err != nil {
		clog.WithError(err).Error("Register: error calling Redis to index private post id")
		return pe.NewServiceFailure("error registering private post expiry").WithCause(err)
	}
	return nil
}

func (s *RedisExpiryIndex) Deregister(uniqueID string) *pe.Err {
	clog := log.WithField("uniqueID", uniqueID)
	// redis ignores the error upon ZREM if the member is non-existent
	if _, err := s.DB.ZRem(keyPrivatePostExpirySet, uniqueID).Result(); err != nil {
		clog.WithError(err).Error("Deregister: error calling redis to remove private post id from index")
		return pe.NewServiceFailure("error deregistering private post expiry").WithCause(err)
	}
	return nil
}

func (s *RedisExpiryIndex) Junk(max int) ([]string, *pe.Err) {
	count := max
	if max < 0 {
		return nil, pe.NewBadInput(fmt.Sprintf("got negative max item count %d", max))
	} else if max == 0 {
		count = -1
	}
	now := time.Now().Unix()
	opt := redis.ZRangeBy{Min: "0", Max: strconv.FormatInt(now, 10), Count: int64(count)}
	ids, err := s.DB.ZRangeByScore(keyPrivatePostExpirySet, opt).Result()
	if err != nil {
		log.WithError(err).Error("error calling redis to get ids of lapsed private posts")
		return nil, pe.NewServiceFailure("error loading lapsed private posts").WithCause(err)
	}
	log.WithField("ids", ids).Debug("done loading lapsed private post ids")
	return ids, nil
}

func (s *RedisExpiryIndex) Close() *pe.Err {
	if err := s.DB.Close(); err != nil {
		return pe.NewServiceFailure("failed close Redis client").WithCause(err)
	}
	return nil
}
