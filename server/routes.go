package main

import (
	"net/http"

	hr "github.com/julienschmidt/httprouter"
	"github.com/spf13/viper"

	mw "github.com/HarshAmrute/JusPost-Fullstack-project/common/middleware"
	cst "github.com/HarshAmrute/JusPost-Fullstack-project/constants"
	pe "github.com/HarshAmrute/JusPost-Fullstack-project/errors"
	"github.com/HarshAmrute/JusPost-Fullstack-project/events"
)

// set up routes
func (s *juspostServer) SetupMux(hub *events.Hub) {
	r := hr.New()
	ms := []mw.Middleware{
		mw.CORS(viper.GetString(cst.EnvAllowedOrigin)),
		mw.PanicRecoverer(),
	}
	chain := func(h hr.Handle) hr.Handle { return mw.Chain(h, ms...) }

	// public posts. httprouter forbids a static sibling next to the :id
	// wildcard, so POST /posts/nicknames is carved out of the wildcard
	// subtree by hand.
	r.GET("/posts", chain(s.HandleTaskListPosts()))
	r.POST("/posts", chain(s.HandleTaskCreatePost()))
	r.POST("/posts/:id", chain(s.dispatchPostSubresource()))
	r.POST("/posts/:id/like", chain(s.HandleTaskToggleLike()))
	r.DELETE("/posts/:id", chain(s.HandleTaskDeletePost()))
	// private posts
	r.GET("/private-posts", chain(s.HandleTaskListPrivatePosts()))
	r.POST("/private-posts", chain(s.HandleTaskCreatePrivatePost()))
	r.GET("/private-posts/:uniqueId", chain(s.HandleTaskGetPrivatePost()))
	r.DELETE("/private-posts/:uniqueId", chain(s.HandleTaskDeletePrivatePost()))
	// users
	r.POST("/users/login", chain(s.HandleAuthLogin()))
	r.GET("/users/:adminUsername", chain(s.HandleAdminListUsers()))
	r.DELETE("/users/:usernameToDelete", chain(s.HandleAdminDeleteUser()))
	// realtime subscription
	r.GET("/ws", hub.HandleSubscribe())

	s.Router = r
}

// dispatchPostSubresource serves POST /posts/:id, whose only legal form is the
// nickname resolution endpoint /posts/nicknames.
func (s *juspostServer) dispatchPostSubresource() hr.Handle {
	nicknames := s.HandleTaskResolveNicknames()
	return func(w http.ResponseWriter, r *http.Request, ps hr.Params) {
		if ps.ByName("id") == "nicknames" {
			nicknames(w, r, ps)
			return
		}
		respondErr(w, pe.NewNotFound("not found"))
	}
}
