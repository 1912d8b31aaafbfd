package models

import (
	"strings"
	"time"

	cst "github.com/HarshAmrute/JusPost-Fullstack-project/constants"
)

/*
 Application layer data models.
*/

// User models an individual service user. Username is the private handle used
// for authorization checks; Nickname is the public display name.
type User struct {
	ID        string    `bson:"_id" json:"_id"`
	Username  string    `bson:"username" json:"username"`
	Nickname  string    `bson:"nickname" json:"nickname"`
	Role      string    `bson:"role" json:"role"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

func (u *User) Admin() bool {
	return u != nil && u.Role == cst.RoleAdmin
}

// Post is a publicly listed post. Likes holds liker identifiers - registered
// usernames or anonymous ids - and must never contain duplicates.
type Post struct {
	ID        string    `bson:"_id" json:"_id"`
	Username  string    `bson:"username" json:"username"`
	Nickname  string    `bson:"nickname" json:"nickname"`
	Message   string    `bson:"message" json:"message"`
	Likes     []string  `bson:"likes" json:"likes"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

// LikedBy reports whether likerID is in the post's like set.
func (p *Post) LikedBy(likerID string) bool {
	for _, id := range p.Likes {
		if id == likerID {
			return true
		}
	}
	return false
}

// ToggleLike flips likerID's membership in the like set and reports whether
// the set now contains it. Toggling the same id twice restores the set.
func (p *Post) ToggleLike(likerID string) bool {
	for i, id := range p.Likes {
		if id == likerID {
			p.Likes = append(p.Likes[:i], p.Likes[i+1:]...)
			return false
		}
	}
	p.Likes = append(p.Likes, likerID)
	return true
}

// PrivatePost is accessible via its unguessable UniqueID only and never shows
// up in any public feed.
type PrivatePost struct {
	ID        string     `bson:"_id" json:"_id"`
	UniqueID  string     `bson:"uniqueId" json:"uniqueId"`
	AuthorID  string     `bson:"authorId" json:"authorId"`
	Nickname  string     `bson:"nickname,omitempty" json:"nickname,omitempty"`
	Message   string     `bson:"message" json:"message"`
	CreatedAt time.Time  `bson:"createdAt" json:"createdAt"`
	ExpiresAt *time.Time `bson:"expiresAt,omitempty" json:"expiresAt,omitempty"`
}

// Expired reports whether the post's expiry has passed. Expired posts must be
// treated as absent by every read path, regardless of when the deleter worker
// actually purges them.
func (p *PrivatePost) Expired() bool {
	return p.ExpiresAt != nil && time.Now().After(*p.ExpiresAt)
}

// AnonymousID reports whether a liker identifier was generated for a user who
// never logged in.
func AnonymousID(id string) bool {
	return strings.HasPrefix(id, cst.AnonymousIDPrefix)
}

// DeletedUsername returns the anonymized author handle posts carry after
// their author got deleted.
func DeletedUsername(username string) string {
	return cst.DeletedUsernamePrefix + username
}
