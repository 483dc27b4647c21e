// Package handler exposes the charge endpoints and the gateway webhook.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"agendahub/internal/agenda"
	"agendahub/internal/payment"
	"agendahub/internal/payment/service"
	"agendahub/internal/platform/middleware"
	"agendahub/pkg/platform/httputil"

	dErrors "agendahub/pkg/domain-errors"
)

type Handler struct {
	service   *service.Service
	validator middleware.TokenValidator
	logger    *slog.Logger
}

func New(svc *service.Service, validator middleware.TokenValidator, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: svc, validator: validator, logger: logger}
}

// Register mounts the payment routes. The charge endpoints run under
// OptionalAuth because guests pay too; possession of the registration id is
// the capability. The webhook is authenticated by its signature alone.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.OptionalAuth(h.validator))
		r.Post("/agenda/{agendaID}/{role}/register/{regID}/payment", h.handleCreateCharge)
		r.Get("/agenda/{agendaID}/{role}/register/{regID}/payment", h.handleGetPayment)
	})
	r.Post("/payment/notification", h.handleNotification)
}

type bankTransferRequest struct {
	Bank string `json:"bank"`
}

type createChargeRequest struct {
	PaymentType  string               `json:"payment_type"`
	BankTransfer *bankTransferRequest `json:"bank_transfer,omitempty"`
}

func (h *Handler) handleCreateCharge(w http.ResponseWriter, r *http.Request) {
	agendaID, role, regID, ok := h.pathIDs(w, r)
	if !ok {
		return
	}

	var req createChargeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PaymentType == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "payment_type is required"))
		return
	}

	in := service.ChargeInput{Method: agenda.PaymentMethod(req.PaymentType)}
	if req.BankTransfer != nil {
		in.Bank = req.BankTransfer.Bank
	}

	p, err := h.service.CreateCharge(r.Context(), agendaID, role, regID, in)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, p)
}

func (h *Handler) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	agendaID, role, regID, ok := h.pathIDs(w, r)
	if !ok {
		return
	}

	p, err := h.service.GetPayment(r.Context(), agendaID, role, regID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) handleNotification(w http.ResponseWriter, r *http.Request) {
	var n payment.Notification
	if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid notification body"))
		return
	}

	if err := h.service.HandleNotification(r.Context(), n); err != nil {
		httputil.WriteError(w, err)
		return
	}
	// Always 200 on processed notifications so the gateway stops retrying.
	httputil.WriteJSON(w, http.StatusOK, struct{}{})
}

func (h *Handler) pathIDs(w http.ResponseWriter, r *http.Request) (uuid.UUID, agenda.Role, uuid.UUID, bool) {
	agendaID, err := uuid.Parse(chi.URLParam(r, "agendaID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid agenda id"))
		return uuid.Nil, "", uuid.Nil, false
	}
	role, ok := agenda.ParseRole(chi.URLParam(r, "role"))
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "unknown role"))
		return uuid.Nil, "", uuid.Nil, false
	}
	regID, err := uuid.Parse(chi.URLParam(r, "regID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid registration id"))
		return uuid.Nil, "", uuid.Nil, false
	}
	return agendaID, role, regID, true
}
