package client

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"github.com/HarshAmrute/JusPost-Fullstack-project/common/logging"
	"github.com/HarshAmrute/JusPost-Fullstack-project/events"
	md "github.com/HarshAmrute/JusPost-Fullstack-project/models"
)

const defaultReconnectDelay = 2 * time.Second

// Subscriber holds one persistent realtime subscription per session and
// reconciles broadcast events into its Feed. Whenever the event stream
// (re)starts, or the server hints the feed changed shape, the full post list
// is re-fetched so the feed never drifts.
type Subscriber struct {
	// URL is the websocket endpoint, e.g. ws://localhost:8080/ws
	URL  string
	API  *Client
	Feed *Feed
	// Dialer defaults to websocket.DefaultDialer when nil
	Dialer *websocket.Dialer
	// ReconnectDelay defaults to 2s when zero
	ReconnectDelay time.Duration
}

// Run subscribes and dispatches events until ctx is done, redialing on any
// connection failure.
func (s *Subscriber) Run(ctx context.Context) error {
	clog := logging.WithFuncName()
	delay := s.ReconnectDelay
	if delay <= 0 {
		delay = defaultReconnectDelay
	}
	for {
		if err := s.subscribe(ctx); err != nil {
			clog.WithError(err).Warn("realtime subscription dropped. Redialing")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (s *Subscriber) dialer() *websocket.Dialer {
	if s.Dialer != nil {
		return s.Dialer
	}
	return websocket.DefaultDialer
}

// subscribe runs one connection to completion: dial, resync, then dispatch
// until the connection breaks or ctx is done.
func (s *Subscriber) subscribe(ctx context.Context) error {
	clog := logging.WithFuncName()
	conn, _, err := s.dialer().DialContext(ctx, s.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	// unblock ReadMessage when the caller gives up
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()
	// events missed while disconnected are gone for good; the fresh listing
	// papers over the gap
	if err := s.resync(ctx); err != nil {
		return err
	}
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if err := s.dispatch(ctx, raw); err != nil {
			clog.WithError(err).WithField("raw", string(raw)).Warn("error dispatching event")
		}
	}
}

func (s *Subscriber) resync(ctx context.Context) error {
	posts, err := s.API.ListPosts(ctx)
	if err != nil {
		return err
	}
	s.Feed.Replace(posts)
	return nil
}

func (s *Subscriber) dispatch(ctx context.Context, raw []byte) error {
	var env struct {
		Event events.Kind     `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return err
	}
	switch env.Event {
	case events.KindNewPost:
		var p md.Post
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return err
		}
		s.Feed.ApplyNew(p)
	case events.KindUpdatePost:
		var p md.Post
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return err
		}
		s.Feed.ApplyUpdate(p)
	case events.KindDeletePost:
		var ref struct {
			ID string `json:"_id"`
		}
		if err := json.Unmarshal(env.Data, &ref); err != nil {
			return err
		}
		s.Feed.ApplyDelete(ref.ID)
	case events.KindPostsUpdated:
		return s.resync(ctx)
	}
	// unknown kinds are ignored so the server can grow its event set
	return nil
}
