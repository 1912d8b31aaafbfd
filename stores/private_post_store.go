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

// PrivatePostStore vends operations to manage private posts. Private posts
// are keyed by their unguessable uniqueId on every external path; the mongo
// _id never leaves the store.
type PrivatePostStore interface {
	Create(ctx context.Context, p *md.PrivatePost) *pe.Err
	GetByUniqueID(ctx context.Context, uniqueID string) (*md.PrivatePost, *pe.Err)
	// ListByAuthor returns the author's own private posts, newest first.
	// Expired posts are filtered by the caller.
	ListByAuthor(ctx context.Context, authorID string) ([]md.PrivatePost, *pe.Err)
	// DeleteByUniqueID removes the post. Delete must be idempotent.
	DeleteByUniqueID(ctx context.Context, uniqueID string) *pe.Err
}

// MongoPrivatePostStore implements PrivatePostStore backed by a MongoDB collection.
type MongoPrivatePostStore struct {
	C *mongo.Collection
}

func (s *MongoPrivatePostStore) EnsureIndexes(ctx context.Context) *pe.Err {
	_, err := s.C.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "uniqueId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return pe.NewServiceFailure("error creating uniqueId index").WithCause(err)
	}
	return nil
}

func (s *MongoPrivatePostStore) Create(ctx context.Context, p *md.PrivatePost) *pe.Err {
	clog := log.WithField("uniqueID", p.UniqueID)
	if _, err := s.C.InsertOne(ctx, p); err != nil {
		clog.WithError(err).Error("error saving private post to DB")
		return pe.NewServiceFailure("error saving private post").WithCause(err)
	}
	return nil
}

func (s *MongoPrivatePostStore) GetByUniqueID(ctx context.Context, uniqueID string) (*md.PrivatePost, *pe.Err) {
	p := &md.PrivatePost{}
	err := s.C.FindOne(ctx, bson.M{"uniqueId": uniqueID}).Decode(p)
	if err == mongo.ErrNoDocuments {
		return nil, pe.NewNotFound(fmt.Sprintf("private post %s not found", uniqueID))
	}
	if err != nil {
		log.WithError(err).WithField("uniqueID", uniqueID).Error("error getting private post from DB")
		return nil, pe.NewServiceFailure("error getting private post").WithCause(err)
	}
	return p, nil
}

func (s *MongoPrivatePostStore) ListByAuthor(ctx context.Context, authorID string) ([]md.PrivatePost, *pe.Err) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cur, err := s.C.Find(ctx, bson.M{"authorId": authorID}, opts)
	if err != nil {
		log.WithError(err).WithField("authorID", authorID).Error("error listing private posts from DB")
		return nil, pe.NewServiceFailure("error listing private posts").WithCause(err)
	}
	posts := []md.PrivatePost{}
	if err := cur.All(ctx, &posts); err != nil {
		log.WithError(err).Error("error decoding private post list")
		return nil, pe.NewServiceFailure("error listing private posts").WithCause(err)
	}
	return posts, nil
}

func (s *MongoPrivatePostStore) DeleteByUniqueID(ctx context.Context, uniqueID string) *pe.Err {
	if _, err := s.C.DeleteOne(ctx, bson.M{"uniqueId": uniqueID}); err != nil {
		log.WithError(err).WithField("uniqueID", uniqueID).Error("error deleting private post from DB")
		return pe.NewServiceFailure("error deleting private post").WithCause(err)
	}
	return nil
}
