package middleware

import (
	"net/http"

	hr "github.com/julienschmidt/httprouter"
	log "github.com/sirupsen/logrus"
)

type Middleware func(hr.Handle) hr.Handle

// Chain composites given handler and middlewares
func Chain(h hr.Handle, ms ...Middleware) hr.Handle {
	for _, m := range ms {
		h = m(h)
	}
	return h
}

// PanicRecoverer recovers from panic of underlying handlers
func PanicRecoverer() Middleware {
	return func(h hr.Handle) hr.Handle {
		return func(w http.ResponseWriter, r *http.Request, p hr.Params) {
			defer func() {
				if reason := recover(); reason != nil {
					log.WithField("panicReason", reason).Error("got panic from underlying handler")
					http.Error(w, "internal server error", http.StatusInternalServerError)
				}
			}()
			h(w, r, p)
		}
	}
}

// CORS tags responses with the allowed origin and short-circuits preflight
// requests. The web client is served from a different origin than the API.
func CORS(allowedOrigin string) Middleware {
	return func(h hr.Handle) hr.Handle {
		return func(w http.ResponseWriter, r *http.Request, p hr.Params) {
			headers := w.Header()
			headers.Set("Access-Control-Allow-Origin", allowedOrigin)
			headers.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			headers.Set("Access-Control-Allow-Headers", "Content-Type")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			h(w, r, p)
		}
	}
}
