package main

import (
	"net/http"
	"time"

	hr "github.com/julienschmidt/httprouter"
	"github.com/segmentio/ksuid"

	"github.com/HarshAmrute/JusPost-Fullstack-project/common/logging"
	cst "github.com/HarshAmrute/JusPost-Fullstack-project/constants"
	pe "github.com/HarshAmrute/JusPost-Fullstack-project/errors"
	"github.com/HarshAmrute/JusPost-Fullstack-project/events"
	md "github.com/HarshAmrute/JusPost-Fullstack-project/models"
)

// HandleAuthLogin logs an existing user in or registers a new one. There is
// no credential beyond the private username itself.
func (s *juspostServer) HandleAuthLogin() hr.Handle {
	clog := logging.WithFuncName()
	return func(w http.ResponseWriter, r *http.Request, _ hr.Params) {
		var req struct {
			Username string `json:"username"`
			Nickname string `json:"nickname"`
		}
		if err := decode(w, r, &req); err != nil {
			respondErr(w, err)
			return
		}
		if req.Username == "" || req.Nickname == "" {
			respondErr(w, pe.NewBadInput("Username and nickname are required"))
			return
		}
		u, err := s.Users.GetByUsername(r.Context(), req.Username)
		if err == nil {
			respondJSON(w, http.StatusOK, apiResponse{Success: true, Data: u})
			return
		}
		if err.Code != pe.ErrCodeNotFound {
			clog.WithError(err).Error("error looking up user at login")
			respondErr(w, err)
			return
		}
		// user does not exist; register them. The admin handle can never be
		// claimed through this path.
		if req.Username == cst.ReservedAdminHandle {
			respondErr(w, pe.NewForbidden("Cannot register admin user this way."))
			return
		}
		nu := &md.User{
			ID:        ksuid.New().String(),
			Username:  req.Username,
			Nickname:  req.Nickname,
			Role:      cst.RoleUser,
			CreatedAt: time.Now(),
		}
		if err := s.Users.Create(r.Context(), nu); err != nil {
			clog.WithError(err).WithField("username", req.Username).Error("error registering user")
			respondErr(w, err)
			return
		}
		respondJSON(w, http.StatusCreated, apiResponse{Success: true, Data: nu})
	}
}

// HandleAdminListUsers lists all users. The requester's role is looked up
// server-side from their own user record.
func (s *juspostServer) HandleAdminListUsers() hr.Handle {
	clog := logging.WithFuncName()
	return func(w http.ResponseWriter, r *http.Request, ps hr.Params) {
		admin, err := s.Users.GetByUsername(r.Context(), ps.ByName("adminUsername"))
		if err != nil && err.Code != pe.ErrCodeNotFound {
			clog.WithError(err).Error("error resolving admin user")
			respondErr(w, err)
			return
		}
		if !admin.Admin() {
			respondErr(w, pe.NewForbidden("Not authorized"))
			return
		}
		users, err := s.Users.List(r.Context())
		if err != nil {
			clog.WithError(err).Error("error listing users")
			respondErr(w, err)
			return
		}
		respondJSON(w, http.StatusOK, apiResponse{Success: true, Data: users})
	}
}

// HandleAdminDeleteUser removes a user record. The user's public posts are
// not deleted: their author fields get rewritten to anonymized placeholders,
// and a resync hint is broadcast so feeds pick up the rewrite.
func (s *juspostServer) HandleAdminDeleteUser() hr.Handle {
	clog := logging.WithFuncName()
	return func(w http.ResponseWriter, r *http.Request, ps hr.Params) {
		usernameToDelete := ps.ByName("usernameToDelete")
		var req struct {
			AdminUsername string `json:"adminUsername"`
		}
		if err := decode(w, r, &req); err != nil {
			respondErr(w, err)
			return
		}
		admin, err := s.Users.GetByUsername(r.Context(), req.AdminUsername)
		if err != nil && err.Code != pe.ErrCodeNotFound {
			clog.WithError(err).Error("error resolving admin user")
			respondErr(w, err)
			return
		}
		if !admin.Admin() {
			respondErr(w, pe.NewForbidden("Not authorized"))
			return
		}
		target, err := s.Users.GetByUsername(r.Context(), usernameToDelete)
		if err != nil {
			if err.Code == pe.ErrCodeNotFound {
				respondErr(w, pe.NewNotFound("User to delete not found"))
				return
			}
			clog.WithError(err).Error("error resolving user to delete")
			respondErr(w, err)
			return
		}
		dlog := clog.WithField("username", target.Username)
		// anonymize first: a failure here must leave the user record intact
		// so the operation can be retried
		if err := s.Posts.AnonymizeByUsername(r.Context(), target.Username); err != nil {
			dlog.WithError(err).Error("error anonymizing posts of deleted user")
			respondErr(w, err)
			return
		}
		if err := s.Users.Delete(r.Context(), target.Username); err != nil {
			dlog.WithError(err).Error("error deleting user")
			respondErr(w, err)
			return
		}
		// notify all clients the post list changed shape
		s.B.Publish(events.KindPostsUpdated, nil)
		respondJSON(w, http.StatusOK, apiResponse{Success: true, Message: "User deleted and posts anonymized."})
	}
}
