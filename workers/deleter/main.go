// Command deleter runs a long-running worker purging lapsed private posts.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bluele/gcache"
	"github.com/go-redis/redis"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/HarshAmrute/JusPost-Fullstack-project/common/logging"
	rt "github.com/HarshAmrute/JusPost-Fullstack-project/common/retry"
	cst "github.com/HarshAmrute/JusPost-Fullstack-project/constants"
	pe "github.com/HarshAmrute/JusPost-Fullstack-project/errors"
	st "github.com/HarshAmrute/JusPost-Fullstack-project/stores"
)

func main() {
	if err := runDeleter(); err != nil {
		log.WithError(err).Fatal("error running deleter")
	}
}

func retryOpts() []rt.RetryOption {
	return []rt.RetryOption{
		rt.WithTimeout(10 * time.Second),
		rt.WithBaseDelay(100 * time.Millisecond),
		rt.WithExp(2.0),
		rt.WithRetryOn(rt.IsDepOffline),
	}
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

func setupPrivatePostStore() (st.PrivatePostStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(viper.GetString(cst.EnvMongoURI)))
	if err != nil {
		return nil, pe.NewServiceFailure("failed initializing MongoDB client").WithCause(err)
	}
	pingFn := func() error {
		return client.Ping(ctx, readpref.Primary())
	}
	if err := rt.Retry(pingFn, retryOpts()...); err != nil {
		return nil, pe.NewServiceFailure("failed reaching MongoDB").WithCause(err)
	}
	db := client.Database(viper.GetString(cst.EnvMongoDBName))
	return &st.MongoPrivatePostStore{C: db.Collection("privatePosts")}, nil
}

type deleter struct {
	Private  st.PrivatePostStore
	Expiry   st.ExpiryIndex
	wipCache gcache.Cache
}

func runDeleter() error {
	viper.AutomaticEnv()
	logging.SetupLog("JuspostDeleter")
	// setup dependencies
	clog := logging.WithFuncName()
	expiry, err := setupExpiryIndex()
	if err != nil {
		clog.WithError(err).Error("error setting up expiry index")
		return err
	}
	defer expiry.Close()
	private, err := setupPrivatePostStore()
	if err != nil {
		clog.WithError(err).Error("error setting up private post store")
		return err
	}
	localCacheSize := viper.GetInt(cst.EnvDeleterLocalCacheSize)
	wipCache := gcache.New(localCacheSize).LRU().Build()
	d := &deleter{Private: private, Expiry: expiry, wipCache: wipCache}
	return d.Run()
}

func (d *deleter) Run() *pe.Err {
	clog := logging.WithFuncName()
	freq := viper.GetDuration(cst.EnvDeleterSweepFreq)
	if freq <= 0 {
		clog.WithField("sweepFrequency", freq).Fatal("got non-positive deleter sweep frequency")
	}
	execPoolSize := viper.GetInt(cst.EnvDeleterExecutorPoolSize)
	if execPoolSize <= 0 {
		clog.WithField("deleterExecutorPoolSize", execPoolSize).Fatal("got non-positive deleter executor pool size")
	}
	quotas := make(chan struct{}, execPoolSize)
	maxLoad := viper.GetInt(cst.EnvDeleterMaxSweepLoad)
	loadTkr := time.NewTicker(freq)
	// ensure the worker can be responsive to system signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM)
LoopRun:
	for {
		select {
		case <-loadTkr.C:
			ids, err := d.Load(maxLoad)
			if err != nil {
				clog.WithError(err).Error("error loading lapsed private posts")
				return err
			}
			clog.WithField("count", len(ids)).Debug("lapsed private posts loaded")
			// dispatch lapsed posts to workers in pool for disposal
			for _, id := range ids {
				go func(uniqueID string) {
					quotas <- struct{}{}
					defer func() { <-quotas }()
					if err := d.Delete(uniqueID); err != nil {
						clog.WithError(err).WithField("uniqueID", uniqueID).Error("error purging lapsed private post")
						return
					}
					clog.WithField("uniqueID", uniqueID).Debug("successfully purged lapsed private post")
				}(id)
			}
		case <-sigChan:
			clog.Info("got termination signal from kernel. Stopping")
			break LoopRun
		}
	}
	return nil
}

// Load loads up to max lapsed private post ids from the expiry index. It loads
// all lapsed ids available if max == 0.
func (d *deleter) Load(max int) ([]string, *pe.Err) {
	clog := logging.WithFuncName()
	ids, err := d.Expiry.Junk(max)
	if err != nil {
		clog.WithError(err).Error("error loading lapsed ids from expiry index")
		return nil, err
	}
	// query local cache to filter out posts whose purge is already WIP
	newIDs := []string{}
	for _, id := range ids {
		if _, err := d.wipCache.Get(id); err != nil {
			if err == gcache.KeyNotFoundError {
				newIDs = append(newIDs, id)
			} else {
				msg := "error getting post id from local cache"
				clog.WithError(err).Error(msg)
				return nil, pe.NewServiceFailure(msg).WithCause(err)
			}
		}
	}
	// cache these ids in WIP cache in best-effort manner - an id which we failed
	// to set in cache will be picked up again in the next sweep
	exp := viper.GetDuration(cst.EnvDeleterWIPCacheEntryExpiry)
	for _, id := range newIDs {
		if err := d.wipCache.SetWithExpire(id, struct{}{}, exp); err != nil {
			clog.WithError(err).Errorf("error keying post id %s in local cache", id)
		}
	}
	return newIDs, nil
}

// Delete purges a single lapsed private post, then removes it from the expiry
// index so future sweeps skip it.
func (d *deleter) Delete(uniqueID string) *pe.Err {
	clog := logging.WithFuncName().WithField("uniqueID", uniqueID)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := d.Private.DeleteByUniqueID(ctx, uniqueID); err != nil {
		// an author may have deleted the post before it lapsed; the index
		// entry is then the only leftover
		if err.Code != pe.ErrCodeNotFound {
			clog.WithError(err).Error("error deleting lapsed private post from store")
			return err
		}
	}
	if err := d.Expiry.Deregister(uniqueID); err != nil {
		clog.WithError(err).Error("error deregistering lapsed private post from expiry index")
		return err
	}
	d.wipCache.Remove(uniqueID)
	return nil
}
