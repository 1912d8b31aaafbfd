// Package events vends the realtime side channel pushing public-post CRUD
// events to connected clients. Delivery is at-most-once to currently attached
// listeners only; there is no replay of missed events - clients resynchronize
// by re-fetching the post list.
package events

// Kind names a broadcast event.
type Kind string

const (
	// KindNewPost carries the full post, emitted once after creation.
	KindNewPost Kind = "new_post"
	// KindUpdatePost carries the full updated post, emitted once after a like toggle.
	KindUpdatePost Kind = "update_post"
	// KindDeletePost carries {_id}, emitted once after deletion.
	KindDeletePost Kind = "delete_post"
	// KindPostsUpdated carries no payload; a hint for clients to resync,
	// emitted after bulk rewrites such as deleted-user anonymization.
	KindPostsUpdated Kind = "posts_updated"
)

// Broadcaster fans out exactly one event per public-post mutation to every
// connected client, with no per-client filtering. Implementations must never
// block the publishing request handler on a slow subscriber.
type Broadcaster interface {
	Publish(kind Kind, payload interface{})
}

// Envelope is the wire form of a broadcast event.
type Envelope struct {
	Event Kind        `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// NopBroadcaster discards every event. Private-post flows and tests use it.
type NopBroadcaster struct{}

func (NopBroadcaster) Publish(Kind, interface{}) {}
