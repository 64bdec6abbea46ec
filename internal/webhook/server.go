// Package webhook receives LINE webhook deliveries. Requests are acknowledged
// immediately and their events are processed in the background.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"

	"github.com/comigor/duckling-go/internal/dedupe"
	"github.com/comigor/duckling-go/internal/line"
	"github.com/comigor/duckling-go/internal/logger"
)

// maxBodyBytes bounds a webhook body read before its signature is checked.
const maxBodyBytes = 1 << 20

// EventHandler processes one webhook event.
type EventHandler interface {
	Handle(ctx context.Context, ev line.Event) error
}

// Server is the HTTP surface of the relay.
type Server struct {
	handler       EventHandler
	channelSecret string
	seen          *dedupe.Cache

	inflight conc.WaitGroup
}

// New creates a Server. An empty channelSecret disables signature checks and a
// nil cache disables redelivery dedupe.
func New(handler EventHandler, channelSecret string, seen *dedupe.Cache) *Server {
	return &Server{handler: handler, channelSecret: channelSecret, seen: seen}
}

// Router returns the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleHealth)
	r.Post("/callback", s.handleCallback)
	return r
}

// Wait blocks until every dispatched batch has been processed.
func (s *Server) Wait() {
	s.inflight.Wait()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Connected successfully!",
	})
}

type callbackRequest struct {
	Destination string        `json:"destination"`
	Events      *[]line.Event `json:"events"`
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			logger.L.Warn("rejected oversized webhook body", "limit", tooLarge.Limit)
			respondError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		logger.L.Error("read webhook body", "error", err)
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if s.channelSecret != "" && !line.ValidateSignature(s.channelSecret, body, r.Header.Get(line.SignatureHeader)) {
		logger.L.Warn("rejected webhook with invalid signature", "request_id", middleware.GetReqID(r.Context()))
		respondError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	var req callbackRequest
	if err := json.Unmarshal(body, &req); err != nil {
		logger.L.Error("decode webhook body", "error", err)
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if req.Events == nil {
		logger.L.Error("webhook body has no events field")
		respondError(w, http.StatusInternalServerError, "missing events")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "success"})

	events := *req.Events
	if len(events) == 0 {
		return
	}
	batchID := uuid.NewString()
	logger.L.Info("webhook received", "batch_id", batchID, "events", len(events))

	// the request context ends with the response; processing must outlive it
	ctx := context.WithoutCancel(r.Context())
	s.inflight.Go(func() {
		s.dispatch(ctx, batchID, events)
	})
}

// dispatch handles every event of a batch concurrently. A failing or panicking
// event is logged and does not affect its siblings.
func (s *Server) dispatch(ctx context.Context, batchID string, events []line.Event) {
	var wg conc.WaitGroup
	for _, ev := range events {
		if s.seen != nil && s.seen.Seen(ev.WebhookEventID) {
			logger.L.Info("skipping redelivered event", "batch_id", batchID, "event_id", ev.WebhookEventID)
			continue
		}
		wg.Go(func() {
			var (
				pc  panics.Catcher
				err error
			)
			pc.Try(func() { err = s.handler.Handle(ctx, ev) })
			if rec := pc.Recovered(); rec != nil {
				err = rec.AsError()
			}
			if err != nil {
				logger.L.Error("event processing failed",
					"batch_id", batchID,
					"event_id", ev.WebhookEventID,
					"type", ev.Type,
					"error", err,
				)
			}
		})
	}
	wg.Wait()
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"status": "error", "message": message})
}
