// Package client vends the Go client of the juspost service: an HTTP API
// client, an identity session, a reconciling post feed and a realtime
// subscriber.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	pe "github.com/HarshAmrute/JusPost-Fullstack-project/errors"
	md "github.com/HarshAmrute/JusPost-Fullstack-project/models"
)

// Client calls the juspost HTTP API. Methods issue a single attempt each;
// callers own any retry policy.
type Client struct {
	// BaseURL is the server root, e.g. http://localhost:8080
	BaseURL string
	// HTTP defaults to http.DefaultClient when nil
	HTTP *http.Client
}

func New(baseURL string) *Client {
	return &Client{BaseURL: baseURL}
}

// apiEnvelope mirrors the uniform response body of every endpoint.
type apiEnvelope struct {
	Success   bool              `json:"success"`
	Data      json.RawMessage   `json:"data,omitempty"`
	Nicknames map[string]string `json:"nicknames,omitempty"`
	Message   string            `json:"message,omitempty"`
	Error     string            `json:"error,omitempty"`
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

// do issues one request and decodes the response envelope. Non-2xx statuses
// come back as typed errors carrying the server's error message.
func (c *Client) do(ctx context.Context, method, path string, body interface{}) (*apiEnvelope, *pe.Err) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, pe.NewBadInput("error encoding request body").WithCause(err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, &buf)
	if err != nil {
		return nil, pe.NewBadInput("error building request").WithCause(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, pe.NewServiceFailure("error calling juspost service").WithCause(err)
	}
	defer resp.Body.Close()
	env := &apiEnvelope{}
	if err := json.NewDecoder(resp.Body).Decode(env); err != nil {
		return nil, pe.NewServiceFailure("error decoding response body").WithCause(err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, errFromStatus(resp.StatusCode, env.Error)
	}
	return env, nil
}

func errFromStatus(code int, msg string) *pe.Err {
	if msg == "" {
		msg = http.StatusText(code)
	}
	switch code {
	case http.StatusBadRequest:
		return pe.NewBadInput(msg)
	case http.StatusForbidden:
		return pe.NewForbidden(msg)
	case http.StatusNotFound:
		return pe.NewNotFound(msg)
	default:
		return pe.NewServiceFailure(msg)
	}
}

func decodeData(env *apiEnvelope, out interface{}) *pe.Err {
	if err := json.Unmarshal(env.Data, out); err != nil {
		return pe.NewServiceFailure("error decoding response data").WithCause(err)
	}
	return nil
}

// Login logs an existing user in, or registers the username with the given
// nickname when it is free.
func (c *Client) Login(ctx context.Context, username, nickname string) (*md.User, *pe.Err) {
	env, err := c.do(ctx, http.MethodPost, "/users/login", map[string]string{
		"username": username,
		"nickname": nickname,
	})
	if err != nil {
		return nil, err
	}
	u := &md.User{}
	if err := decodeData(env, u); err != nil {
		return nil, err
	}
	return u, nil
}

// ListPosts fetches the public feed, newest first.
func (c *Client) ListPosts(ctx context.Context) ([]md.Post, *pe.Err) {
	env, err := c.do(ctx, http.MethodGet, "/posts", nil)
	if err != nil {
		return nil, err
	}
	var posts []md.Post
	if err := decodeData(env, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (c *Client) CreatePost(ctx context.Context, message, username, nickname string) (*md.Post, *pe.Err) {
	env, err := c.do(ctx, http.MethodPost, "/posts", map[string]string{
		"message":  message,
		"username": username,
		"nickname": nickname,
	})
	if err != nil {
		return nil, err
	}
	p := &md.Post{}
	if err := decodeData(env, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ToggleLike flips likerID's like on the post and returns the post's
// authoritative new state.
func (c *Client) ToggleLike(ctx context.Context, postID, likerID string) (*md.Post, *pe.Err) {
	env, err := c.do(ctx, http.MethodPost, "/posts/"+postID+"/like", map[string]string{"likerId": likerID})
	if err != nil {
		return nil, err
	}
	p := &md.Post{}
	if err := decodeData(env, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (c *Client) DeletePost(ctx context.Context, postID, username string) *pe.Err {
	_, err := c.do(ctx, http.MethodDelete, "/posts/"+postID, map[string]string{"username": username})
	return err
}

// ResolveNicknames maps liker ids to display nicknames. Unknown ids are
// absent from the result.
func (c *Client) ResolveNicknames(ctx context.Context, userIDs []string) (map[string]string, *pe.Err) {
	env, err := c.do(ctx, http.MethodPost, "/posts/nicknames", map[string][]string{"userIds": userIDs})
	if err != nil {
		return nil, err
	}
	return env.Nicknames, nil
}

// CreatePrivatePost creates a link-access-only post. expiresInMillis == 0
// means the post never expires.
func (c *Client) CreatePrivatePost(ctx context.Context, message, authorID, nickname string, expiresInMillis int64) (*md.PrivatePost, *pe.Err) {
	env, err := c.do(ctx, http.MethodPost, "/private-posts", map[string]interface{}{
		"message":   message,
		"authorId":  authorID,
		"nickname":  nickname,
		"expiresIn": expiresInMillis,
	})
	if err != nil {
		return nil, err
	}
	p := &md.PrivatePost{}
	if err := decodeData(env, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (c *Client) GetPrivatePost(ctx context.Context, uniqueID string) (*md.PrivatePost, *pe.Err) {
	env, err := c.do(ctx, http.MethodGet, "/private-posts/"+uniqueID, nil)
	if err != nil {
		return nil, err
	}
	p := &md.PrivatePost{}
	if err := decodeData(env, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (c *Client) ListPrivatePosts(ctx context.Context, authorID string) ([]md.PrivatePost, *pe.Err) {
	env, err := c.do(ctx, http.MethodGet, "/private-posts?authorId="+authorID, nil)
	if err != nil {
		return nil, err
	}
	var posts []md.PrivatePost
	if err := decodeData(env, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (c *Client) DeletePrivatePost(ctx context.Context, uniqueID, userID, userRole string) *pe.Err {
	_, err := c.do(ctx, http.MethodDelete, "/private-posts/"+uniqueID, map[string]string{
		"userId":   userID,
		"userRole": userRole,
	})
	return err
}

// ListUsers lists all users; the server rejects requesters without the admin
// role.
func (c *Client) ListUsers(ctx context.Context, adminUsername string) ([]md.User, *pe.Err) {
	env, err := c.do(ctx, http.MethodGet, "/users/"+adminUsername, nil)
	if err != nil {
		return nil, err
	}
	var users []md.User
	if err := decodeData(env, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// DeleteUser removes a user and anonymizes their public posts in place.
func (c *Client) DeleteUser(ctx context.Context, usernameToDelete, adminUsername string) *pe.Err {
	_, err := c.do(ctx, http.MethodDelete, "/users/"+usernameToDelete, map[string]string{
		"adminUsername": adminUsername,
	})
	return err
}
