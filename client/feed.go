package client

import (
	"context"
	"sync"

	cst "github.com/HarshAmrute/JusPost-Fullstack-project/constants"
	pe "github.com/HarshAmrute/JusPost-Fullstack-project/errors"
	md "github.com/HarshAmrute/JusPost-Fullstack-project/models"
)

// Feed is the client-side copy of the public post list, reconciled against
// broadcast events, plus a display-only nickname map. All methods are safe
// for concurrent use.
type Feed struct {
	mu        sync.Mutex
	posts     []md.Post
	nicknames map[string]string
}

func NewFeed() *Feed {
	return &Feed{nicknames: map[string]string{}}
}

// Posts returns a snapshot of the feed, newest first.
func (f *Feed) Posts() []md.Post {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]md.Post{}, f.posts...)
}

// ApplyNew prepends the post. A post already present by id is left untouched,
// so replayed or echoed creation events cannot duplicate entries.
func (f *Feed) ApplyNew(p md.Post) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.indexOf(p.ID) >= 0 {
		return
	}
	f.posts = append([]md.Post{p}, f.posts...)
}

// ApplyUpdate replaces the post with the same id in place. Updates of posts
// the feed never saw are dropped; an update must not insert.
func (f *Feed) ApplyUpdate(p md.Post) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i := f.indexOf(p.ID); i >= 0 {
		f.posts[i] = p
	}
}

// ApplyDelete removes the post by id. Deleting an absent post is a no-op.
func (f *Feed) ApplyDelete(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i := f.indexOf(id); i >= 0 {
		f.posts = append(f.posts[:i], f.posts[i+1:]...)
	}
}

// Replace swaps the whole feed for the authoritative server listing.
func (f *Feed) Replace(posts []md.Post) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts = append([]md.Post{}, posts...)
}

// ToggleLike optimistically flips likerID's like on the post, then issues
// the server call. On failure the pre-mutation like set is restored and the
// error returned; on success the server's authoritative post replaces the
// optimistic one.
func (f *Feed) ToggleLike(ctx context.Context, api *Client, postID, likerID string) *pe.Err {
	f.mu.Lock()
	i := f.indexOf(postID)
	if i < 0 {
		f.mu.Unlock()
		return pe.NewNotFound("post not in feed")
	}
	snapshot := append([]string{}, f.posts[i].Likes...)
	f.posts[i].ToggleLike(likerID)
	f.mu.Unlock()

	p, err := api.ToggleLike(ctx, postID, likerID)
	f.mu.Lock()
	defer f.mu.Unlock()
	// the post may have been deleted out from under the request
	i = f.indexOf(postID)
	if err != nil {
		if i >= 0 {
			f.posts[i].Likes = snapshot
		}
		return err
	}
	if i >= 0 {
		f.posts[i] = *p
	}
	return nil
}

// MergeNicknames folds resolved nicknames into the display map, overwriting
// stale entries.
func (f *Feed) MergeNicknames(nicknames map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, nickname := range nicknames {
		f.nicknames[id] = nickname
	}
}

// Nickname returns the display name of a liker id, falling back to the
// anonymous label for unresolved ids.
func (f *Feed) Nickname(id string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n, ok := f.nicknames[id]; ok {
		return n
	}
	return cst.AnonymousLabel
}

// indexOf must run under f.mu
func (f *Feed) indexOf(id string) int {
	for i := range f.posts {
		if f.posts[i].ID == id {
			return i
		}
	}
	return -1
}
