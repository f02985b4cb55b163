// Package api exposes the review workflow over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/ozark-survey/cavedb/internal/model"
	"github.com/ozark-survey/cavedb/internal/review"
	"github.com/ozark-survey/cavedb/internal/store"
)

// ReviewService is the surface of the review workflow the handlers consume.
type ReviewService interface {
	Submit(ctx context.Context, in review.SubmitInput) (*model.ChangeRequest, error)
	Get(ctx context.Context, userID, accountID, requestID uuid.UUID) (*model.ChangeRequest, []model.ChangeRecord, error)
	List(ctx context.Context, userID uuid.UUID, filter store.RequestFilter) ([]model.ChangeRequest, error)
	Approve(ctx context.Context, reviewerID, accountID, requestID uuid.UUID, notes string) error
	Reject(ctx context.Context, reviewerID, accountID, requestID uuid.UUID, notes string) error
	Cave(ctx context.Context, userID, accountID, caveID uuid.UUID) (*model.CaveSnapshot, error)
	History(ctx context.Context, userID, accountID, caveID uuid.UUID) ([]model.ChangeRecord, error)
	DisplayID(ctx context.Context, snap model.CaveSnapshot) (string, error)
}

// Options tunes the outer middleware. Zero values disable the rate limiter
// and allow all origins.
type Options struct {
	AllowedOrigins []string
	// RateLimit is requests per second per client IP; 0 disables limiting.
	RateLimit float64
	RateBurst int
}

// Server holds the handler dependencies.
type Server struct {
	svc ReviewService
}

// NewRouter builds the chi router for the review API.
func NewRouter(svc ReviewService, opts Options) http.Handler {
	s := &Server{svc: svc}

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "X-User-ID", "X-Account-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(requestLogger)
	if opts.RateLimit > 0 {
		r.Use(rateLimiter(opts.RateLimit, opts.RateBurst))
	}

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(identity)

		r.Route("/change-requests", func(r chi.Router) {
			r.Post("/", s.handleSubmit)
			r.Get("/", s.handleList)
			r.Get("/{id}", s.handleGet)
			r.Post("/{id}/approve", s.handleApprove)
			r.Post("/{id}/reject", s.handleReject)
		})

		r.Route("/caves/{id}", func(r chi.Router) {
			r.Get("/", s.handleCave)
			r.Get("/history", s.handleHistory)
		})
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
