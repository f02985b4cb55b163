package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/ozark-survey/cavedb/internal/model"
	"github.com/ozark-survey/cavedb/internal/review"
	"github.com/ozark-survey/cavedb/internal/store"
)

type submitRequest struct {
	Type     model.RequestType  `json:"type,omitempty"`
	Notes    string             `json:"notes,omitempty"`
	Snapshot model.CaveSnapshot `json:"snapshot"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	userID, accountID := callerIDs(r)

	var body submitRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req, err := s.svc.Submit(r.Context(), review.SubmitInput{
		UserID:    userID,
		AccountID: accountID,
		Type:      body.Type,
		Notes:     body.Notes,
		Snapshot:  body.Snapshot,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"change_request_id": req.ID,
		"cave_id":           req.Snapshot.ID,
		"status":            req.Status,
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	userID, accountID := callerIDs(r)

	filter := store.RequestFilter{AccountID: accountID}
	if status := r.URL.Query().Get("status"); status != "" {
		rs := model.RequestStatus(status)
		if !rs.Valid() {
			writeError(w, http.StatusBadRequest, "unknown status filter")
			return
		}
		filter.Status = rs
	}
	filter.Limit = queryInt(r, "limit")
	filter.Offset = queryInt(r, "offset")

	reqs, err := s.svc.List(r.Context(), userID, filter)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"change_requests": reqs})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	userID, accountID := callerIDs(r)
	requestID, ok := pathID(w, r)
	if !ok {
		return
	}

	req, records, err := s.svc.Get(r.Context(), userID, accountID, requestID)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"change_request": req,
		"records":        records,
	})
}

type resolveBody struct {
	Notes string `json:"notes,omitempty"`
}

type resolveFn func(ctx context.Context, reviewerID, accountID, requestID uuid.UUID, notes string) error

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	s.handleResolve(w, r, s.svc.Approve, "approved")
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	s.handleResolve(w, r, s.svc.Reject, "rejected")
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request, fn resolveFn, outcome string) {
	userID, accountID := callerIDs(r)
	requestID, ok := pathID(w, r)
	if !ok {
		return
	}

	var body resolveBody
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	if err := fn(r.Context(), userID, accountID, requestID, body.Notes); err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"change_request_id": requestID.String(),
		"status":            outcome,
	})
}

func (s *Server) handleCave(w http.ResponseWriter, r *http.Request) {
	userID, accountID := callerIDs(r)
	caveID, ok := pathID(w, r)
	if !ok {
		return
	}

	snap, err := s.svc.Cave(r.Context(), userID, accountID, caveID)
	if err != nil {
		respondError(w, err)
		return
	}
	displayID, err := s.svc.DisplayID(r.Context(), *snap)
	if err != nil {
		respondError(w, err)
		return
	}
	resp := map[string]any{
		"cave":       snap,
		"display_id": displayID,
	}
	if primary := snap.PrimaryEntrance(); primary != nil {
		point, err := geojson.Marshal(primary.Location.Point())
		if err != nil {
			respondError(w, err)
			return
		}
		resp["location"] = json.RawMessage(point)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID, accountID := callerIDs(r)
	caveID, ok := pathID(w, r)
	if !ok {
		return
	}

	records, err := s.svc.History(r.Context(), userID, accountID, caveID)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

func queryInt(r *http.Request, key string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed id")
		return uuid.Nil, false
	}
	return id, true
}
