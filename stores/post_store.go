package stores

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	cst "github.com/HarshAmrute/JusPost-Fullstack-project/constants"
	pe "github.com/HarshAmrute/JusPost-Fullstack-project/errors"
	md "github.com/HarshAmrute/JusPost-Fullstack-project/models"
)

// PostStore vends operations to manage public posts.
type PostStore interface {
	Create(ctx context.Context, p *md.Post) *pe.Err
	Get(ctx context.Context, id string) (*md.Post, *pe.Err)
	// List returns all public posts, newest first.
	List(ctx context.Context) ([]md.Post, *pe.Err)
	// ToggleLike flips likerID's membership in the post's like set and
	// returns the updated post. The membership flip is a single atomic
	// update, so concurrent toggles by different likers cannot erase each
	// other.
	ToggleLike(ctx context.Context, id, likerID string) (*md.Post, *pe.Err)
	Delete(ctx context.Context, id string) *pe.Err
	// AnonymizeByUsername rewrites the author fields of all of username's
	// posts in place, severing the display linkage while preserving ids and
	// message bodies.
	AnonymizeByUsername(ctx context.Context, username string) *pe.Err
}

// MongoPostStore implements PostStore backed by a MongoDB collection.
type MongoPostStore struct {
	C *mongo.Collection
}

func (s *MongoPostStore) Create(ctx context.Context, p *md.Post) *pe.Err {
	clog := log.WithField("postID", p.ID)
	if _, err := s.C.InsertOne(ctx, p); err != nil {
		clog.WithError(err).Error("error saving post to DB")
		return pe.NewServiceFailure("error saving post").WithCause(err)
	}
	return nil
}

func (s *MongoPostStore) Get(ctx context.Context, id string) (*md.Post, *pe.Err) {
	p := &md.Post{}
	err := s.C.FindOne(ctx, bson.M{"_id": id}).Decode(p)
	if err == mongo.ErrNoDocuments {
		return nil, pe.NewNotFound(fmt.Sprintf("post %s not found", id))
	}
	if err != nil {
		log.WithError(err).WithField("postID", id).Error("error getting post from DB")
		return nil, pe.NewServiceFailure("error getting post").WithCause(err)
	}
	return p, nil
}

func (s *MongoPostStore) List(ctx context.Context) ([]md.Post, *pe.Err) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cur, err := s.C.Find(ctx, bson.M{}, opts)
	if err != nil {
		log.WithError(err).Error("error listing posts from DB")
		return nil, pe.NewServiceFailure("error listing posts").WithCause(err)
	}
	posts := []md.Post{}
	if err := cur.All(ctx, &posts); err != nil {
		log.WithError(err).Error("error decoding post list")
		return nil, pe.NewServiceFailure("error listing posts").WithCause(err)
	}
	return posts, nil
}

func (s *MongoPostStore) ToggleLike(ctx context.Context, id, likerID string) (*md.Post, *pe.Err) {
	clog := log.WithFields(log.Fields{"postID": id, "likerID": likerID})
	cur, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	// the membership check and the update are not one transaction, but both
	// branches of the update are atomic set operations: the worst outcome of
	// a concurrent toggle on the same likerID is a no-op, never a lost like
	// from a different liker
	update := bson.M{"$addToSet": bson.M{"likes": likerID}}
	if cur.LikedBy(likerID) {
		update = bson.M{"$pull": bson.M{"likes": likerID}}
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	p := &md.Post{}
	ferr := s.C.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(p)
	if ferr == mongo.ErrNoDocuments {
		return nil, pe.NewNotFound(fmt.Sprintf("post %s not found", id))
	}
	if ferr != nil {
		clog.WithError(ferr).Error("error toggling like in DB")
		return nil, pe.NewServiceFailure("error toggling like").WithCause(ferr)
	}
	return p, nil
}

func (s *MongoPostStore) Delete(ctx context.Context, id string) *pe.Err {
	res, err := s.C.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		log.WithError(err).WithField("postID", id).Error("error deleting post from DB")
		return pe.NewServiceFailure("error deleting post").WithCause(err)
	}
	if res.DeletedCount == 0 {
		return pe.NewNotFound(fmt.Sprintf("post %s not found", id))
	}
	return nil
}

func (s *MongoPostStore) AnonymizeByUsername(ctx context.Context, username string) *pe.Err {
	clog := log.WithField("username", username)
	update := bson.M{"$set": bson.M{
		"username": md.DeletedUsername(username),
		"nickname": cst.AnonymousLabel,
	}}
	res, err := s.C.UpdateMany(ctx, bson.M{"username": username}, update)
	if err != nil {
		clog.WithError(err).Error("error anonymizing posts in DB")
		return pe.NewServiceFailure("error anonymizing posts").WithCause(err)
	}
	clog.WithField("modifiedCount", res.ModifiedCount).Info("anonymized posts of deleted user")
	return nil
}
