package main

import (
	"encoding/json"
	"net/http"
	"time"

	hr "github.com/julienschmidt/httprouter"
	"github.com/segmentio/ksuid"
	"github.com/spf13/viper"

	"github.com/HarshAmrute/JusPost-Fullstack-project/common/logging"
	cst "github.com/HarshAmrute/JusPost-Fullstack-project/constants"
	pe "github.com/HarshAmrute/JusPost-Fullstack-project/errors"
	"github.com/HarshAmrute/JusPost-Fullstack-project/events"
	md "github.com/HarshAmrute/JusPost-Fullstack-project/models"
)

const defaultReqBodySizeMaxByte = 1 << 20

// apiResponse is the uniform response body of every endpoint.
type apiResponse struct {
	Success   bool              `json:"success"`
	Data      interface{}       `json:"data,omitempty"`
	Nicknames map[string]string `json:"nicknames,omitempty"`
	Message   string            `json:"message,omitempty"`
	Error     string            `json:"error,omitempty"`
}

func respondJSON(w http.ResponseWriter, code int, body apiResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.WithFuncName().WithError(err).Error("error encoding response body")
	}
}

// respondErr converts an application error to its http form. Validation and
// authorization failures carry their message; everything else collapses to a
// generic 500 with no internal detail leaked.
func respondErr(w http.ResponseWriter, err *pe.Err) {
	code := err.StatusCode()
	msg := err.Error()
	if code >= http.StatusInternalServerError {
		msg = "Server error"
	}
	respondJSON(w, code, apiResponse{Error: msg})
}

// decode parses the size-capped request body into ptr
func decode(w http.ResponseWriter, r *http.Request, ptr interface{}) *pe.Err {
	maxBytes := viper.GetInt64(cst.EnvReqBodySizeMaxByte)
	if maxBytes <= 0 {
		maxBytes = defaultReqBodySizeMaxByte
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := json.NewDecoder(r.Body).Decode(ptr); err != nil {
		return pe.NewBadInput("error parsing request body").WithCause(err)
	}
	return nil
}

func (s *juspostServer) HandleTaskListPosts() hr.Handle {
	clog := logging.WithFuncName()
	return func(w http.ResponseWriter, r *http.Request, _ hr.Params) {
		posts, err := s.Posts.List(r.Context())
		if err != nil {
			clog.WithError(err).Error("error listing posts")
			respondErr(w, err)
			return
		}
		respondJSON(w, http.StatusOK, apiResponse{Success: true, Data: posts})
	}
}

func (s *juspostServer) HandleTaskCreatePost() hr.Handle {
	clog := logging.WithFuncName()
	return func(w http.ResponseWriter, r *http.Request, _ hr.Params) {
		var req struct {
			Message  string `json:"message"`
			Username string `json:"username"`
			Nickname string `json:"nickname"`
		}
		if err := decode(w, r, &req); err != nil {
			respondErr(w, err)
			return
		}
		if req.Message == "" {
			respondErr(w, pe.NewBadInput("message is required"))
			return
		}
		if req.Nickname == "" {
			req.Nickname = cst.AnonymousLabel
		}
		p := &md.Post{
			ID:        ksuid.New().String(),
			Username:  req.Username,
			Nickname:  req.Nickname,
			Message:   req.Message,
			Likes:     []string{},
			CreatedAt: time.Now(),
		}
		if err := s.Posts.Create(r.Context(), p); err != nil {
			clog.WithError(err).Error("error creating post")
			respondErr(w, err)
			return
		}
		s.B.Publish(events.KindNewPost, p)
		respondJSON(w, http.StatusCreated, apiResponse{Success: true, Data: p})
	}
}

func (s *juspostServer) HandleTaskToggleLike() hr.Handle {
	clog := logging.WithFuncName()
	return func(w http.ResponseWriter, r *http.Request, ps hr.Params) {
		postID := ps.ByName("id")
		var req struct {
			LikerID string `json:"likerId"`
		}
		if err := decode(w, r, &req); err != nil {
			respondErr(w, err)
			return
		}
		if req.LikerID == "" {
			respondErr(w, pe.NewBadInput("likerId is required"))
			return
		}
		p, err := s.Posts.ToggleLike(r.Context(), postID, req.LikerID)
		if err != nil {
			clog.WithError(err).WithField("postID", postID).Error("error toggling like")
			respondErr(w, err)
			return
		}
		s.B.Publish(events.KindUpdatePost, p)
		respondJSON(w, http.StatusOK, apiResponse{Success: true, Data: p})
	}
}

func (s *juspostServer) HandleTaskDeletePost() hr.Handle {
	clog := logging.WithFuncName()
	return func(w http.ResponseWriter, r *http.Request, ps hr.Params) {
		postID := ps.ByName("id")
		var req struct {
			Username string `json:"username"`
		}
		if err := decode(w, r, &req); err != nil {
			respondErr(w, err)
			return
		}
		if req.Username == "" {
			respondErr(w, pe.NewBadInput("username is required"))
			return
		}
		p, err := s.Posts.Get(r.Context(), postID)
		if err != nil {
			respondErr(w, err)
			return
		}
		// the author may always remove their own post; anyone else needs the
		// admin role, looked up server-side
		if p.Username != req.Username {
			requester, uerr := s.Users.GetByUsername(r.Context(), req.Username)
			if uerr != nil && uerr.Code != pe.ErrCodeNotFound {
				clog.WithError(uerr).Error("error resolving delete requester")
				respondErr(w, uerr)
				return
			}
			if !requester.Admin() {
				respondErr(w, pe.NewForbidden("Not authorized"))
				return
			}
		}
		if err := s.Posts.Delete(r.Context(), postID); err != nil {
			clog.WithError(err).WithField("postID", postID).Error("error deleting post")
			respondErr(w, err)
			return
		}
		s.B.Publish(events.KindDeletePost, map[string]string{"_id": postID})
		respondJSON(w, http.StatusOK, apiResponse{Success: true, Message: "Post deleted"})
	}
}

func (s *juspostServer) HandleTaskResolveNicknames() hr.Handle {
	clog := logging.WithFuncName()
	cacheTTL := viper.GetDuration(cst.EnvNicknameCacheTTL)
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	return func(w http.ResponseWriter, r *http.Request, _ hr.Params) {
		var req struct {
			UserIDs []string `json:"userIds"`
		}
		if err := decode(w, r, &req); err != nil {
			respondErr(w, err)
			return
		}
		nicknames := map[string]string{}
		for _, id := range req.UserIDs {
			if _, seen := nicknames[id]; seen {
				continue
			}
			if md.AnonymousID(id) {
				nicknames[id] = cst.AnonymousLabel
				continue
			}
			if v, err := s.Nicknames.Get(id); err == nil {
				nicknames[id] = v.(string)
				continue
			}
			u, err := s.Users.GetByUsername(r.Context(), id)
			if err != nil {
				if err.Code == pe.ErrCodeNotFound {
					// deleted or never-registered liker; client falls back
					// to its placeholder label
					continue
				}
				clog.WithError(err).WithField("likerID", id).Error("error resolving liker nickname")
				respondErr(w, err)
				return
			}
			nicknames[id] = u.Nickname
			if cerr := s.Nicknames.SetWithExpire(id, u.Nickname, cacheTTL); cerr != nil {
				clog.WithError(cerr).WithField("likerID", id).Debug("error caching nickname")
			}
		}
		respondJSON(w, http.StatusOK, apiResponse{Success: true, Nicknames: nicknames})
	}
}
