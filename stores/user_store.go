package stores

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	pe "github.com/HarshAmrute/JusPost-Fullstack-project/errors"
	md "github.com/HarshAmrute/JusPost-Fullstack-project/models"
)

// UserStore vends operations to manage service users.
type UserStore interface {
	// Create persists a new user. It fails with ErrCodeBadInput when the
	// username is already taken.
	Create(ctx context.Context, u *md.User) *pe.Err
	// GetByUsername resolves a user by its private handle.
	GetByUsername(ctx context.Context, username string) (*md.User, *pe.Err)
	List(ctx context.Context) ([]md.User, *pe.Err)
	// Delete removes the user record. Delete must be idempotent.
	Delete(ctx context.Context, username string) *pe.Err
}

// MongoUserStore implements UserStore backed by a MongoDB collection.
type MongoUserStore struct {
	C *mongo.Collection
}

// EnsureIndexes sets up the unique index on username. Usernames are immutable
// after creation so the index never needs rebuilding.
func (s *MongoUserStore) EnsureIndexes(ctx context.Context) *pe.Err {
	_, err := s.C.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return pe.NewServiceFailure("error creating username index").WithCause(err)
	}
	return nil
}

func (s *MongoUserStore) Create(ctx context.Context, u *md.User) *pe.Err {
	clog := log.WithField("username", u.Username)
	if _, err := s.C.InsertOne(ctx, u); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return pe.NewBadInput("username already taken").WithCause(err)
		}
		clog.WithError(err).Error("error saving user to DB")
		return pe.NewServiceFailure("error saving user").WithCause(err)
	}
	return nil
}

func (s *MongoUserStore) GetByUsername(ctx context.Context, username string) (*md.User, *pe.Err) {
	u := &md.User{}
	err := s.C.FindOne(ctx, bson.M{"username": username}).Decode(u)
	if err == mongo.ErrNoDocuments {
		return nil, pe.NewNotFound(fmt.Sprintf("user %s not found", username))
	}
	if err != nil {
		log.WithError(err).WithField("username", username).Error("error getting user from DB")
		return nil, pe.NewServiceFailure("error getting user").WithCause(err)
	}
	return u, nil
}

func (s *MongoUserStore) List(ctx context.Context) ([]md.User, *pe.Err) {
	cur, err := s.C.Find(ctx, bson.M{})
	if err != nil {
		log.WithError(err).Error("error listing users from DB")
		return nil, pe.NewServiceFailure("error listing users").WithCause(err)
	}
	users := []md.User{}
	if err := cur.All(ctx, &users); err != nil {
		log.WithError(err).Error("error decoding user list")
		return nil, pe.NewServiceFailure("error listing users").WithCause(err)
	}
	return users, nil
}

func (s *MongoUserStore) Delete(ctx context.Context, username string) *pe.Err {
	if _, err := s.C.DeleteOne(ctx, bson.M{"username": username}); err != nil {
		log.WithError(err).WithField("username", username).Error("error deleting user from DB")
		return pe.NewServiceFailure("error deleting user").WithCause(err)
	}
	return nil
}
