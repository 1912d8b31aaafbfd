package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bluele/gcache"
	hr "github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	pe "github.com/HarshAmrute/JusPost-Fullstack-project/errors"
	"github.com/HarshAmrute/JusPost-Fullstack-project/events"
	md "github.com/HarshAmrute/JusPost-Fullstack-project/models"
)

func TestHandleTaskCreatePost(t *testing.T) {
	tcs := []struct {
		name         string
		reqBody      string
		storeErr     *pe.Err
		expCode      int
		expCreated   bool
		expBroadcast bool
	}{
		{
			name:         "HappyCase",
			reqBody:      `{"message":"hello","username":"alice","nickname":"Al"}`,
			expCode:      http.StatusCreated,
			expCreated:   true,
			expBroadcast: true,
		},
		{
			name:    "EmptyMessage",
			reqBody: `{"message":"","username":"alice","nickname":"Al"}`,
			expCode: http.StatusBadRequest,
		},
		{
			name:    "JunkBody",
			reqBody: `{junk`,
			expCode: http.StatusBadRequest,
		},
		{
			name:       "StoreFailure",
			reqBody:    `{"message":"hello","username":"alice"}`,
			storeErr:   pe.NewServiceFailure("db nuked"),
			expCode:    http.StatusInternalServerError,
			expCreated: true,
		},
	}
	for _, c := range tcs {
		t.Run(c.name, func(t *testing.T) {
			posts, b := &MockPostStore{}, &recordingBroadcaster{}
			posts.On("Create", mock.Anything, mock.AnythingOfType("*models.Post")).Return(c.storeErr)
			svr := newTestServer(nil, posts, nil, nil, b)
			wrec, r := httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/posts", strings.NewReader(c.reqBody))

			svr.HandleTaskCreatePost()(wrec, r, nil)

			assert.Equal(t, c.expCode, wrec.Code, "unexpected response status code")
			if c.expCreated {
				posts.AssertCalled(t, "Create", mock.Anything, mock.AnythingOfType("*models.Post"))
			} else {
				posts.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
			}
			if c.expBroadcast {
				assert.Equal(t, []events.Kind{events.KindNewPost}, b.Kinds(), "creation must broadcast exactly one new_post")
				body := decodeResp(t, wrec)
				post := body["data"].(map[string]interface{})
				assert.Equal(t, "hello", post["message"])
				assert.Equal(t, []interface{}{}, post["likes"], "new post must start with an empty like set")
			} else {
				assert.Empty(t, b.Kinds(), "no event must go out on failure")
			}
		})
	}
}

func TestHandleTaskToggleLike(t *testing.T) {
	liked := &md.Post{ID: "p1", Username: "alice", Message: "hello", Likes: []string{"bob"}}
	tcs := []struct {
		name      string
		reqBody   string
		storePost *md.Post
		storeErr  *pe.Err
		expCode   int
		expLikes  []interface{}
	}{
		{
			name:      "HappyCase",
			reqBody:   `{"likerId":"bob"}`,
			storePost: liked,
			expCode:   http.StatusOK,
			expLikes:  []interface{}{"bob"},
		},
		{
			name:     "UnknownPost",
			reqBody:  `{"likerId":"bob"}`,
			storeErr: pe.NewNotFound("post p1 not found"),
			expCode:  http.StatusNotFound,
		},
		{
			name:    "MissingLikerID",
			reqBody: `{}`,
			expCode: http.StatusBadRequest,
		},
	}
	for _, c := range tcs {
		t.Run(c.name, func(t *testing.T) {
			posts, b := &MockPostStore{}, &recordingBroadcaster{}
			posts.On("ToggleLike", mock.Anything, "p1", "bob").Return(c.storePost, c.storeErr)
			svr := newTestServer(nil, posts, nil, nil, b)
			wrec, r := httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/posts/p1/like", strings.NewReader(c.reqBody))

			svr.HandleTaskToggleLike()(wrec, r, hr.Params{{Key: "id", Value: "p1"}})

			assert.Equal(t, c.expCode, wrec.Code, "unexpected response status code")
			if c.expCode == http.StatusOK {
				assert.Equal(t, []events.Kind{events.KindUpdatePost}, b.Kinds(), "like toggle must broadcast exactly one update_post")
				body := decodeResp(t, wrec)
				post := body["data"].(map[string]interface{})
				assert.Equal(t, c.expLikes, post["likes"], "unexpected like set")
			} else {
				assert.Empty(t, b.Kinds(), "no event must go out on failure")
			}
		})
	}
}

func TestHandleTaskDeletePost(t *testing.T) {
	post := &md.Post{ID: "p1", Username: "alice", Message: "hello"}
	tcs := []struct {
		name       string
		reqBody    string
		requester  *md.User
		getErr     *pe.Err
		expCode    int
		expDeleted bool
	}{
		{
			name:       "AuthorDeletesOwnPost",
			reqBody:    `{"username":"alice"}`,
			expCode:    http.StatusOK,
			expDeleted: true,
		},
		{
			name:       "AdminDeletesForeignPost",
			reqBody:    `{"username":"harsh-admin"}`,
			requester:  &md.User{Username: "harsh-admin", Role: "admin"},
			expCode:    http.StatusOK,
			expDeleted: true,
		},
		{
			name:      "NonAuthorNonAdminForbidden",
			reqBody:   `{"username":"mallory"}`,
			requester: &md.User{Username: "mallory", Role: "user"},
			expCode:   http.StatusForbidden,
		},
		{
			name:    "UnknownRequesterForbidden",
			reqBody: `{"username":"ghost"}`,
			getErr:  pe.NewNotFound("user ghost not found"),
			expCode: http.StatusForbidden,
		},
		{
			name:    "MissingUsername",
			reqBody: `{}`,
			expCode: http.StatusBadRequest,
		},
	}
	for _, c := range tcs {
		t.Run(c.name, func(t *testing.T) {
			posts, users, b := &MockPostStore{}, &MockUserStore{}, &recordingBroadcaster{}
			posts.On("Get", mock.Anything, "p1").Return(post, (*pe.Err)(nil))
			posts.On("Delete", mock.Anything, "p1").Return((*pe.Err)(nil))
			users.On("GetByUsername", mock.Anything, mock.AnythingOfType("string")).Return(c.requester, c.getErr)
			svr := newTestServer(users, posts, nil, nil, b)
			wrec, r := httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/posts/p1", strings.NewReader(c.reqBody))

			svr.HandleTaskDeletePost()(wrec, r, hr.Params{{Key: "id", Value: "p1"}})

			assert.Equal(t, c.expCode, wrec.Code, "unexpected response status code")
			if c.expDeleted {
				posts.AssertCalled(t, "Delete", mock.Anything, "p1")
				assert.Equal(t, []events.Kind{events.KindDeletePost}, b.Kinds(), "deletion must broadcast exactly one delete_post")
			} else {
				posts.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
				assert.Empty(t, b.Kinds(), "no event must go out when deletion is refused")
			}
		})
	}
}

func TestHandleTaskDeletePostUnknownPost(t *testing.T) {
	posts, b := &MockPostStore{}, &recordingBroadcaster{}
	posts.On("Get", mock.Anything, "nope").Return((*md.Post)(nil), pe.NewNotFound("post nope not found"))
	svr := newTestServer(nil, posts, nil, nil, b)
	wrec, r := httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/posts/nope", strings.NewReader(`{"username":"alice"}`))

	svr.HandleTaskDeletePost()(wrec, r, hr.Params{{Key: "id", Value: "nope"}})

	assert.Equal(t, http.StatusNotFound, wrec.Code)
	posts.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestHandleTaskResolveNicknames(t *testing.T) {
	users := &MockUserStore{}
	users.On("GetByUsername", mock.Anything, "alice").Return(&md.User{Username: "alice", Nickname: "Al"}, (*pe.Err)(nil))
	users.On("GetByUsername", mock.Anything, "ghost").Return((*md.User)(nil), pe.NewNotFound("user ghost not found"))
	svr := newTestServer(users, nil, nil, nil, &recordingBroadcaster{})
	reqBody := `{"userIds":["alice","anon-0ujsszwN8NRY24YaXiTIE2VWDTS","ghost","alice"]}`
	wrec, r := httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/posts/nicknames", strings.NewReader(reqBody))

	svr.HandleTaskResolveNicknames()(wrec, r, nil)

	assert.Equal(t, http.StatusOK, wrec.Code)
	body := decodeResp(t, wrec)
	nicknames := body["nicknames"].(map[string]interface{})
	assert.Equal(t, "Al", nicknames["alice"], "registered likers resolve to their current nickname")
	assert.Equal(t, "Anonymous", nicknames["anon-0ujsszwN8NRY24YaXiTIE2VWDTS"], "anonymous likers resolve to the fixed label")
	_, ok := nicknames["ghost"]
	assert.False(t, ok, "unknown likers are omitted")
	// duplicate input ids must not trigger a second lookup
	users.AssertNumberOfCalls(t, "GetByUsername", 2)
}

func TestHandleAuthLogin(t *testing.T) {
	existing := &md.User{ID: "u1", Username: "alice", Nickname: "Al", Role: "user"}
	tcs := []struct {
		name          string
		reqBody       string
		storeUser     *md.User
		storeErr      *pe.Err
		expCode       int
		expRegistered bool
	}{
		{
			name:      "ExistingUserLogsIn",
			reqBody:   `{"username":"alice","nickname":"Al"}`,
			storeUser: existing,
			expCode:   http.StatusOK,
		},
		{
			name:          "NewUserRegisters",
			reqBody:       `{"username":"bob","nickname":"Bobby"}`,
			storeErr:      pe.NewNotFound("user bob not found"),
			expCode:       http.StatusCreated,
			expRegistered: true,
		},
		{
			name:     "ReservedAdminHandleRejected",
			reqBody:  `{"username":"harsh-admin","nickname":"Root"}`,
			storeErr: pe.NewNotFound("user harsh-admin not found"),
			expCode:  http.StatusForbidden,
		},
		{
			name:    "MissingNickname",
			reqBody: `{"username":"alice"}`,
			expCode: http.StatusBadRequest,
		},
	}
	for _, c := range tcs {
		t.Run(c.name, func(t *testing.T) {
			users := &MockUserStore{}
			users.On("GetByUsername", mock.Anything, mock.AnythingOfType("string")).Return(c.storeUser, c.storeErr)
			users.On("Create", mock.Anything, mock.AnythingOfType("*models.User")).Return((*pe.Err)(nil))
			svr := newTestServer(users, nil, nil, nil, &recordingBroadcaster{})
			wrec, r := httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/users/login", strings.NewReader(c.reqBody))

			svr.HandleAuthLogin()(wrec, r, nil)

			assert.Equal(t, c.expCode, wrec.Code, "unexpected response status code")
			if c.expRegistered {
				users.AssertCalled(t, "Create", mock.Anything, mock.MatchedBy(func(u *md.User) bool {
					return u.Username == "bob" && u.Role == "user"
				}))
			} else {
				users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestHandleAdminListUsers(t *testing.T) {
	tcs := []struct {
		name      string
		requester *md.User
		getErr    *pe.Err
		expCode   int
	}{
		{
			name:      "AdminListsUsers",
			requester: &md.User{Username: "harsh-admin", Role: "admin"},
			expCode:   http.StatusOK,
		},
		{
			name:      "NonAdminForbidden",
			requester: &md.User{Username: "alice", Role: "user"},
			expCode:   http.StatusForbidden,
		},
		{
			name:    "UnknownRequesterForbidden",
			getErr:  pe.NewNotFound("user ghost not found"),
			expCode: http.StatusForbidden,
		},
	}
	for _, c := range tcs {
		t.Run(c.name, func(t *testing.T) {
			users := &MockUserStore{}
			users.On("GetByUsername", mock.Anything, mock.AnythingOfType("string")).Return(c.requester, c.getErr)
			users.On("List", mock.Anything).Return([]md.User{{Username: "alice"}}, (*pe.Err)(nil))
			svr := newTestServer(users, nil, nil, nil, &recordingBroadcaster{})
			wrec, r := httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/users/x", nil)

			svr.HandleAdminListUsers()(wrec, r, hr.Params{{Key: "adminUsername", Value: "x"}})

			assert.Equal(t, c.expCode, wrec.Code, "unexpected response status code")
		})
	}
}

func TestHandleAdminDeleteUser(t *testing.T) {
	admin := &md.User{Username: "harsh-admin", Role: "admin"}
	target := &md.User{Username: "alice", Nickname: "Al", Role: "user"}
	tcs := []struct {
		name          string
		adminName     string
		adminUser     *md.User
		targetUser    *md.User
		targetErr     *pe.Err
		expCode       int
		expAnonymized bool
	}{
		{
			name:          "HappyCase",
			adminName:     "harsh-admin",
			adminUser:     admin,
			targetUser:    target,
			expCode:       http.StatusOK,
			expAnonymized: true,
		},
		{
			name:      "NonAdminForbidden",
			adminName: "mallory",
			adminUser: &md.User{Username: "mallory", Role: "user"},
			expCode:   http.StatusForbidden,
		},
		{
			name:      "TargetNotFound",
			adminName: "harsh-admin",
			adminUser: admin,
			targetErr: pe.NewNotFound("user alice not found"),
			expCode:   http.StatusNotFound,
		},
	}
	for _, c := range tcs {
		t.Run(c.name, func(t *testing.T) {
			users, posts, b := &MockUserStore{}, &MockPostStore{}, &recordingBroadcaster{}
			users.On("GetByUsername", mock.Anything, c.adminName).Return(c.adminUser, (*pe.Err)(nil))
			users.On("GetByUsername", mock.Anything, "alice").Return(c.targetUser, c.targetErr)
			users.On("Delete", mock.Anything, "alice").Return((*pe.Err)(nil))
			posts.On("AnonymizeByUsername", mock.Anything, "alice").Return((*pe.Err)(nil))
			svr := newTestServer(users, posts, nil, nil, b)
			reqBody := `{"adminUsername":"` + c.adminName + `"}`
			wrec, r := httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/users/alice", strings.NewReader(reqBody))

			svr.HandleAdminDeleteUser()(wrec, r, hr.Params{{Key: "usernameToDelete", Value: "alice"}})

			assert.Equal(t, c.expCode, wrec.Code, "unexpected response status code")
			if c.expAnonymized {
				posts.AssertCalled(t, "AnonymizeByUsername", mock.Anything, "alice")
				users.AssertCalled(t, "Delete", mock.Anything, "alice")
				assert.Equal(t, []events.Kind{events.KindPostsUpdated}, b.Kinds(), "anonymization must broadcast a resync hint")
			} else {
				posts.AssertNotCalled(t, "AnonymizeByUsername", mock.Anything, mock.Anything)
				users.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
				assert.Empty(t, b.Kinds())
			}
		})
	}
}

// mocks

type MockUserStore struct{ mock.Mock }

func (m *MockUserStore) Create(ctx context.Context, u *md.User) *pe.Err {
	e, _ := m.Called(ctx, u).Get(0).(*pe.Err)
	return e
}

func (m *MockUserStore) GetByUsername(ctx context.Context, username string) (*md.User, *pe.Err) {
	args := m.Called(ctx, username)
	u, _ := args.Get(0).(*md.User)
	e, _ := args.Get(1).(*pe.Err)
	return u, e
}

func (m *MockUserStore) List(ctx context.Context) ([]md.User, *pe.Err) {
	args := m.Called(ctx)
	us, _ := args.Get(0).([]md.User)
	e, _ := args.Get(1).(*pe.Err)
	return us, e
}

func (m *MockUserStore) Delete(ctx context.Context, username string) *pe.Err {
	e, _ := m.Called(ctx, username).Get(0).(*pe.Err)
	return e
}

type MockPostStore struct{ mock.Mock }

func (m *MockPostStore) Create(ctx context.Context, p *md.Post) *pe.Err {
	e, _ := m.Called(ctx, p).Get(0).(*pe.Err)
	return e
}

func (m *MockPostStore) Get(ctx context.Context, id string) (*md.Post, *pe.Err) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*md.Post)
	e, _ := args.Get(1).(*pe.Err)
	return p, e
}

func (m *MockPostStore) List(ctx context.Context) ([]md.Post, *pe.Err) {
	args := m.Called(ctx)
	ps, _ := args.Get(0).([]md.Post)
	e, _ := args.Get(1).(*pe.Err)
	return ps, e
}

func (m *MockPostStore) ToggleLike(ctx context.Context, id, likerID string) (*md.Post, *pe.Err) {
	args := m.Called(ctx, id, likerID)
	p, _ := args.Get(0).(*md.Post)
	e, _ := args.Get(1).(*pe.Err)
	return p, e
}

func (m *MockPostStore) Delete(ctx context.Context, id string) *pe.Err {
	e, _ := m.Called(ctx, id).Get(0).(*pe.Err)
	return e
}

func (m *MockPostStore) AnonymizeByUsername(ctx context.Context, username string) *pe.Err {
	e, _ := m.Called(ctx, username).Get(0).(*pe.Err)
	return e
}

type MockPrivatePostStore struct{ mock.Mock }

func (m *MockPrivatePostStore) Create(ctx context.Context, p *md.PrivatePost) *pe.Err {
	e, _ := m.Called(ctx, p).Get(0).(*pe.Err)
	return e
}

func (m *MockPrivatePostStore) GetByUniqueID(ctx context.Context, uniqueID string) (*md.PrivatePost, *pe.Err) {
	args := m.Called(ctx, uniqueID)
	p, _ := args.Get(0).(*md.PrivatePost)
	e, _ := args.Get(1).(*pe.Err)
	return p, e
}

func (m *MockPrivatePostStore) ListByAuthor(ctx context.Context, authorID string) ([]md.PrivatePost, *pe.Err) {
	args := m.Called(ctx, authorID)
	ps, _ := args.Get(0).([]md.PrivatePost)
	e, _ := args.Get(1).(*pe.Err)
	return ps, e
}

func (m *MockPrivatePostStore) DeleteByUniqueID(ctx context.Context, uniqueID string) *pe.Err {
	e, _ := m.Called(ctx, uniqueID).Get(0).(*pe.Err)
	return e
}

type MockExpiryIndex struct{ mock.Mock }

func (m *MockExpiryIndex) Register(uniqueID string, expiresAt time.Time) *pe.Err {
	e, _ := m.Called(uniqueID, expiresAt).Get(0).(*pe.Err)
	return e
}

func (m *MockExpiryIndex) Deregister(uniqueID string) *pe.Err {
	e, _ := m.Called(uniqueID).Get(0).(*pe.Err)
	return e
}

func (m *MockExpiryIndex) Junk(max int) ([]string, *pe.Err) {
	args := m.Called(max)
	ids, _ := args.Get(0).([]string)
	e, _ := args.Get(1).(*pe.Err)
	return ids, e
}

func (m *MockExpiryIndex) Close() *pe.Err {
	e, _ := m.Called().Get(0).(*pe.Err)
	return e
}

// recordingBroadcaster captures published event kinds in order
type recordingBroadcaster struct {
	mu    sync.Mutex
	kinds []events.Kind
}

func (b *recordingBroadcaster) Publish(k events.Kind, payload interface{}) {
	b.mu.Lock()
	b.kinds = append(b.kinds, k)
	b.mu.Unlock()
}

func (b *recordingBroadcaster) Kinds() []events.Kind {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]events.Kind{}, b.kinds...)
}

// utils

func newTestServer(users *MockUserStore, posts *MockPostStore, private *MockPrivatePostStore, expiry *MockExpiryIndex, b events.Broadcaster) *juspostServer {
	svr := &juspostServer{B: b, Nicknames: gcache.New(16).LRU().Build()}
	if users != nil {
		svr.Users = users
	}
	if posts != nil {
		svr.Posts = posts
	}
	if private != nil {
		svr.Private = private
	}
	if expiry != nil {
		svr.Expiry = expiry
	}
	return svr
}

func decodeResp(t *testing.T, wrec *httptest.ResponseRecorder) map[string]interface{} {
	body := map[string]interface{}{}
	if err := json.Unmarshal(wrec.Body.Bytes(), &body); err != nil {
		t.Fatalf("error decoding response body %q: %v", wrec.Body.String(), err)
	}
	return body
}
