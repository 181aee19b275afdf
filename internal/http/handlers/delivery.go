package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/logx"
)

// DeliveryHandler serves delivery requests and their lifecycle.
type DeliveryHandler struct {
	uc     dispatchUsecase
	logger logx.Logger
}

// NewDeliveryHandler creates a DeliveryHandler.
func NewDeliveryHandler(logger logx.Logger, uc dispatchUsecase) *DeliveryHandler {
	if logger == nil {
		logger = logx.Nop()
	}
	return &DeliveryHandler{uc: uc, logger: logger}
}

// Create handles POST /delivery-requests.
// 201 when a courier was bound, 202 while the request waits for one.
func (h *DeliveryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createDeliveryRequest
	if !decodeJSON(h.logger, w, r, &req) {
		return
	}
	if req.Origin == nil || req.Destination == nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid location")
		return
	}

	d, err := h.uc.CreateAndAssign(r.Context(), req.toInput())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Location", "/delivery-requests/"+d.ID)
	writeJSON(h.logger, w, r, createdStatus(d), deliveryToResponse(d))
}

// Get handles GET /delivery-requests/{id}.
func (h *DeliveryHandler) Get(w http.ResponseWriter, r *http.Request) {
	d, err := h.uc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, deliveryToResponse(d))
}

// Events handles GET /delivery-requests/{id}/events.
func (h *DeliveryHandler) Events(w http.ResponseWriter, r *http.Request) {
	events, err := h.uc.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, eventsToResponse(events))
}

// Assign handles POST /delivery-requests/{id}/assign for a pending request.
func (h *DeliveryHandler) Assign(w http.ResponseWriter, r *http.Request) {
	var req assignDeliveryRequest
	if !decodeOptionalJSON(h.logger, w, r, &req) {
		return
	}

	d, err := h.uc.AssignPending(r.Context(), chi.URLParam(r, "id"), req.CandidateIDs)
	switch {
	case err == nil:
		writeJSON(h.logger, w, r, http.StatusOK, deliveryToResponse(d))
	case errors.Is(err, apperr.ErrNoCourierAvailable):
		writeJSON(h.logger, w, r, http.StatusAccepted, deliveryToResponse(d))
	default:
		h.fail(w, r, err)
	}
}

// Status handles POST /delivery-requests/{id}/status.
func (h *DeliveryHandler) Status(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !decodeJSON(h.logger, w, r, &req) {
		return
	}
	if !req.Status.IsValid() {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid status")
		return
	}
	pos, ok := req.position()
	if !ok {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid location")
		return
	}

	id := chi.URLParam(r, "id")
	var (
		d   domain.DeliveryRequest
		err error
	)
	if req.Status == domain.DeliveryCancelled {
		d, err = h.uc.Cancel(r.Context(), id)
	} else {
		d, err = h.uc.Advance(r.Context(), id, req.Status, pos)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, deliveryToResponse(d))
}

// Cancel handles POST /delivery-requests/{id}/cancel.
func (h *DeliveryHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	d, err := h.uc.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, deliveryToResponse(d))
}

// FreeCourier handles POST /couriers/{id}/release.
func (h *DeliveryHandler) FreeCourier(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r, "id")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid id")
		return
	}
	if err := h.uc.MarkCourierFreed(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func createdStatus(d domain.DeliveryRequest) int {
	if d.Status == domain.DeliveryPending {
		return http.StatusAccepted
	}
	return http.StatusCreated
}

func (h *DeliveryHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("delivery handler failed",
			logx.String("request_id", reqID(r.Context())),
			logx.String("path", r.URL.Path),
			logx.Err(err),
		)
	}
	writeError(h.logger, w, r, status, msg)
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, apperr.ErrInvalidLocation):
		return http.StatusBadRequest, "invalid location"
	case errors.Is(err, apperr.ErrInvalid):
		return http.StatusBadRequest, "invalid input"
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, apperr.ErrAssignmentConflict):
		return http.StatusConflict, "assignment conflict, retry"
	case errors.Is(err, apperr.ErrAlreadyTerminal):
		return http.StatusConflict, "delivery already finished"
	case errors.Is(err, apperr.ErrInvalidTransition):
		return http.StatusUnprocessableEntity, "invalid status transition"
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict, "conflict"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
