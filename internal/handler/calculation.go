package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/calculations-api/internal/apperror"
	"github.com/sakif/calculations-api/internal/auth"
	"github.com/sakif/calculations-api/internal/model"
	"github.com/sakif/calculations-api/internal/service"
)

// CalculationHandler exposes CRUD over the caller's own calculations.
//
// Every route is mounted behind auth.RequireUser. The handler pulls the
// user out of the request context and hands it to the service, which
// scopes every query to that user. A calculation owned by someone else
// is answered exactly like one that does not exist: 404.
type CalculationHandler struct {
	calcs  *service.CalculationService
	logger *slog.Logger
}

// NewCalculationHandler creates a CalculationHandler.
func NewCalculationHandler(calcs *service.CalculationService, logger *slog.Logger) *CalculationHandler {
	return &CalculationHandler{
		calcs:  calcs,
		logger: logger,
	}
}

// calculationRequest is the body of create and update.
//
// The operands are pointers so a missing field is distinguishable from an
// explicit 0.
type calculationRequest struct {
	A    *float64 `json:"a"`
	B    *float64 `json:"b"`
	Type string   `json:"type"`
}

func (req calculationRequest) input() (service.CalculationInput, error) {
	if req.A == nil {
		return service.CalculationInput{}, apperror.ValidationFailed("a", "a is required")
	}
	if req.B == nil {
		return service.CalculationInput{}, apperror.ValidationFailed("b", "b is required")
	}
	return service.CalculationInput{A: *req.A, B: *req.B, Type: req.Type}, nil
}

// CalculationResponse is a stored calculation plus its derived result.
type CalculationResponse struct {
	ID        string                `json:"id"`
	A         float64               `json:"a"`
	B         float64               `json:"b"`
	Type      model.CalculationType `json:"type"`
	Result    *float64              `json:"result"`
	UserID    string                `json:"userId"`
	CreatedAt time.Time             `json:"createdAt"`
	UpdatedAt time.Time             `json:"updatedAt"`
}

func newCalculationResponse(c *model.Calculation) CalculationResponse {
	resp := CalculationResponse{
		ID:        c.ID,
		A:         c.A,
		B:         c.B,
		Type:      c.Type,
		UserID:    c.UserID,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	// Rows written before divide-by-zero was rejected may have no result.
	if v, ok := c.Result(); ok {
		resp.Result = &v
	}
	return resp
}

// currentUser fetches the authenticated user or writes a 401.
func (h *CalculationHandler) currentUser(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		writeError(w, h.logger, apperror.Unauthorized("not authenticated"))
		return nil, false
	}
	return user, true
}

// HandleCreate stores a new calculation for the caller.
//
// HTTP: POST /calculations/
// REQUEST BODY: {"a": 4, "b": 2, "type": "divide"}
func (h *CalculationHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	var req calculationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	in, err := req.input()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	calc, err := h.calcs.Create(r.Context(), user, in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusCreated, newCalculationResponse(calc))
}

// HandleList returns the caller's calculations, oldest first.
//
// HTTP: GET /calculations/
//
// An empty collection is [] rather than null.
func (h *CalculationHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	calcs, err := h.calcs.List(r.Context(), user)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	resp := make([]CalculationResponse, 0, len(calcs))
	for i := range calcs {
		resp = append(resp, newCalculationResponse(&calcs[i]))
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}

// HandleGet returns one calculation.
//
// HTTP: GET /calculations/{id}
func (h *CalculationHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	calc, err := h.calcs.Get(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, newCalculationResponse(calc))
}

// HandleUpdate replaces a, b and type of one calculation.
//
// HTTP: PUT /calculations/{id}
// REQUEST BODY: {"a": 6, "b": 3, "type": "multiply"}
func (h *CalculationHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	var req calculationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	in, err := req.input()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	calc, err := h.calcs.Update(r.Context(), user, chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, newCalculationResponse(calc))
}

// HandleDelete removes one calculation.
//
// HTTP: DELETE /calculations/{id}
// 204 No Content on success, no body.
func (h *CalculationHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	if err := h.calcs.Delete(r.Context(), user, chi.URLParam(r, "id")); err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
