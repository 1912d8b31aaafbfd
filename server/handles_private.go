package main

import (
	"net/http"
	"time"

	hr "github.com/julienschmidt/httprouter"
	"github.com/segmentio/ksuid"

	"github.com/HarshAmrute/JusPost-Fullstack-project/common/logging"
	cst "github.com/HarshAmrute/JusPost-Fullstack-project/constants"
	pe "github.com/HarshAmrute/JusPost-Fullstack-project/errors"
	md "github.com/HarshAmrute/JusPost-Fullstack-project/models"
)

/*
 Private post handlers. Private posts are reachable through their unguessable
 uniqueId only: they never enter any public feed and their mutations are never
 broadcast, as no feed subscriber exists for them.
*/

func (s *juspostServer) HandleTaskCreatePrivatePost() hr.Handle {
	clog := logging.WithFuncName()
	return func(w http.ResponseWriter, r *http.Request, _ hr.Params) {
		var req struct {
			Message  string `json:"message"`
			AuthorID string `json:"authorId"`
			Nickname string `json:"nickname"`
			// expiry period in milliseconds; zero means the post never expires
			ExpiresIn int64 `json:"expiresIn"`
		}
		if err := decode(w, r, &req); err != nil {
			respondErr(w, err)
			return
		}
		if req.Message == "" {
			respondErr(w, pe.NewBadInput("message is required"))
			return
		}
		if req.AuthorID == "" {
			respondErr(w, pe.NewBadInput("authorId is required"))
			return
		}
		if req.ExpiresIn < 0 {
			respondErr(w, pe.NewBadInput("expiresIn must not be negative"))
			return
		}
		p := &md.PrivatePost{
			ID:        ksuid.New().String(),
			UniqueID:  ksuid.New().String(),
			AuthorID:  req.AuthorID,
			Nickname:  req.Nickname,
			Message:   req.Message,
			CreatedAt: time.Now(),
		}
		plog := clog.WithField("uniqueID", p.UniqueID)
		if req.ExpiresIn > 0 {
			expiresAt := p.CreatedAt.Add(time.Duration(req.ExpiresIn) * time.Millisecond)
			p.ExpiresAt = &expiresAt
			// index before persisting so the deleter can never miss the post
			if err := s.Expiry.Register(p.UniqueID, expiresAt); err != nil {
				plog.WithError(err).Error("error registering private post expiry")
				respondErr(w, err)
				return
			}
		}
		if err := s.Private.Create(r.Context(), p); err != nil {
			plog.WithError(err).Error("error creating private post")
			if p.ExpiresAt != nil {
				if derr := s.Expiry.Deregister(p.UniqueID); derr != nil {
					plog.WithError(derr).Error("error deregistering private post expiry after failed create")
				}
			}
			respondErr(w, err)
			return
		}
		respondJSON(w, http.StatusCreated, apiResponse{Success: true, Data: p})
	}
}

func (s *juspostServer) HandleTaskGetPrivatePost() hr.Handle {
	clog := logging.WithFuncName()
	return func(w http.ResponseWriter, r *http.Request, ps hr.Params) {
		uniqueID := ps.ByName("uniqueId")
		p, err := s.Private.GetByUniqueID(r.Context(), uniqueID)
		if err != nil {
			if err.Code != pe.ErrCodeNotFound {
				clog.WithError(err).WithField("uniqueID", uniqueID).Error("error getting private post")
			}
			respondErr(w, err)
			return
		}
		// lapsed posts are absent no matter when the deleter purges them
		if p.Expired() {
			respondErr(w, pe.NewNotFound("private post not found"))
			return
		}
		respondJSON(w, http.StatusOK, apiResponse{Success: true, Data: p})
	}
}

func (s *juspostServer) HandleTaskListPrivatePosts() hr.Handle {
	clog := logging.WithFuncName()
	return func(w http.ResponseWriter, r *http.Request, _ hr.Params) {
		authorID := r.URL.Query().Get("authorId")
		if authorID == "" {
			respondErr(w, pe.NewBadInput("authorId is required"))
			return
		}
		posts, err := s.Private.ListByAuthor(r.Context(), authorID)
		if err != nil {
			clog.WithError(err).WithField("authorID", authorID).Error("error listing private posts")
			respondErr(w, err)
			return
		}
		fresh := make([]md.PrivatePost, 0, len(posts))
		for _, p := range posts {
			if !p.Expired() {
				fresh = append(fresh, p)
			}
		}
		respondJSON(w, http.StatusOK, apiResponse{Success: true, Data: fresh})
	}
}

func (s *juspostServer) HandleTaskDeletePrivatePost() hr.Handle {
	clog := logging.WithFuncName()
	return func(w http.ResponseWriter, r *http.Request, ps hr.Params) {
		uniqueID := ps.ByName("uniqueId")
		var req struct {
			UserID   string `json:"userId"`
			UserRole string `json:"userRole"`
		}
		if err := decode(w, r, &req); err != nil {
			respondErr(w, err)
			return
		}
		if req.UserID == "" {
			respondErr(w, pe.NewBadInput("userId is required"))
			return
		}
		p, err := s.Private.GetByUniqueID(r.Context(), uniqueID)
		if err != nil {
			respondErr(w, err)
			return
		}
		if p.AuthorID != req.UserID && req.UserRole != cst.RoleAdmin {
			respondErr(w, pe.NewForbidden("Not authorized"))
			return
		}
		if err := s.Private.DeleteByUniqueID(r.Context(), uniqueID); err != nil {
			clog.WithError(err).WithField("uniqueID", uniqueID).Error("error deleting private post")
			respondErr(w, err)
			return
		}
		if p.ExpiresAt != nil {
			if derr := s.Expiry.Deregister(uniqueID); derr != nil {
				clog.WithError(derr).WithField("uniqueID", uniqueID).Error("error deregistering private post expiry")
			}
		}
		respondJSON(w, http.StatusOK, apiResponse{Success: true, Message: "Private post deleted"})
	}
}
