// Package handler exposes the agenda and registration endpoints.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"agendahub/internal/agenda"
	"agendahub/internal/agenda/service"
	"agendahub/internal/member"
	"agendahub/internal/platform/middleware"
	"agendahub/pkg/platform/httputil"
	pstrings "agendahub/pkg/platform/strings"

	dErrors "agendahub/pkg/domain-errors"
)

type Handler struct {
	service    *service.Service
	members    *member.Service
	validator  middleware.TokenValidator
	guestLimit func(http.Handler) http.Handler
	logger     *slog.Logger
}

type Option func(*Handler)

// WithGuestRateLimit throttles the anonymous participant registration route,
// which is the only unauthenticated write surface.
func WithGuestRateLimit(mw func(http.Handler) http.Handler) Option {
	return func(h *Handler) { h.guestLimit = mw }
}

func New(svc *service.Service, members *member.Service, validator middleware.TokenValidator, logger *slog.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{service: svc, members: members, validator: validator, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts all agenda routes. Participant registration accepts
// anonymous guests, so it runs under OptionalAuth; everything operator-facing
// requires an admin bearer token.
func (h *Handler) Register(r chi.Router) {
	r.Route("/agenda", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Get("/{agendaID}", h.handleGet)

		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuth(h.validator))
			if h.guestLimit != nil {
				r.Use(h.guestLimit)
			}
			r.Post("/{agendaID}/participant/register", h.handleRegisterParticipant)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(h.validator, h.logger))
			r.Post("/{agendaID}/committee/register", h.handleRegisterCommittee)
			r.Post("/{agendaID}/attend", h.handleAttend)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(h.validator, h.logger))
			r.Use(middleware.RequireAdmin)
			r.Post("/", h.handleCreate)
			r.Get("/{agendaID}/registrations", h.handleListRegistrations)
			r.Post("/{agendaID}/scan", h.handleScan)
			r.Post("/{agendaID}/{role}/register/batch", h.handleBatchImport)
			r.Post("/{agendaID}/{role}/batch", h.handleBatchToggle)
		})
	})
}

type jobSlotRequest struct {
	Label string `json:"label"`
	Slots int    `json:"slots"`
}

type createAgendaRequest struct {
	Title           string           `json:"title"`
	Description     string           `json:"description"`
	StartsAt        time.Time        `json:"starts_at"`
	EndsAt          time.Time        `json:"ends_at"`
	RegStart        *time.Time       `json:"registration_start,omitempty"`
	RegEnd          *time.Time       `json:"registration_end,omitempty"`
	ParticipantRule string           `json:"participant_rule"`
	CommitteeRule   string           `json:"committee_rule"`
	FeeAmount       int64            `json:"fee_amount"`
	Points          int              `json:"points"`
	RequirePayment  bool             `json:"require_payment"`
	Jobs            []jobSlotRequest `json:"jobs,omitempty"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createAgendaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	a := &agenda.Agenda{
		Title:           req.Title,
		Description:     req.Description,
		StartsAt:        req.StartsAt,
		EndsAt:          req.EndsAt,
		RegStart:        req.RegStart,
		RegEnd:          req.RegEnd,
		ParticipantRule: req.ParticipantRule,
		CommitteeRule:   req.CommitteeRule,
		FeeAmount:       req.FeeAmount,
		Points:          req.Points,
		RequirePayment:  req.RequirePayment,
	}
	for _, j := range req.Jobs {
		a.Jobs = append(a.Jobs, agenda.JobSlot{Label: j.Label, Slots: j.Slots})
	}

	if err := h.service.CreateAgenda(r.Context(), a); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, a)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.agendaID(w, r)
	if !ok {
		return
	}
	a, err := h.service.GetAgenda(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, a)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	agendas, err := h.service.ListAgendas(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, agendas)
}

type guestRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
}

type registerParticipantRequest struct {
	Guest *guestRequest `json:"guest,omitempty"`
}

type registrationResponse struct {
	RegistrationID string `json:"registration_id"`
	Role           string `json:"role"`
}

func (h *Handler) handleRegisterParticipant(w http.ResponseWriter, r *http.Request) {
	id, ok := h.agendaID(w, r)
	if !ok {
		return
	}

	// A bearer token wins over a guest payload: authenticated members
	// always register under their own identity.
	var m *member.Member
	if memberID := middleware.GetMemberID(r.Context()); memberID != "" {
		resolved, err := h.resolveMember(r.Context(), memberID)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		m = resolved
	}

	var guest *agenda.GuestProfile
	if m == nil {
		var req registerParticipantRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Guest == nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "guest profile or bearer token is required"))
			return
		}
		if !govalidator.IsEmail(req.Guest.Email) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "a valid guest email is required"))
			return
		}
		guest = &agenda.GuestProfile{
			FullName: req.Guest.FullName,
			Email:    req.Guest.Email,
			Phone:    req.Guest.Phone,
		}
	}

	reg, err := h.service.RegisterParticipant(r.Context(), id, m, guest)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, registrationResponse{
		RegistrationID: reg.ID.String(),
		Role:           string(reg.Role),
	})
}

type registerCommitteeRequest struct {
	Job string `json:"job"`
}

func (h *Handler) handleRegisterCommittee(w http.ResponseWriter, r *http.Request) {
	id, ok := h.agendaID(w, r)
	if !ok {
		return
	}

	var req registerCommitteeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Job == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "job is required"))
		return
	}

	m, err := h.resolveMember(r.Context(), middleware.GetMemberID(r.Context()))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	reg, err := h.service.RegisterCommittee(r.Context(), id, m, req.Job)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, registrationResponse{
		RegistrationID: reg.ID.String(),
		Role:           string(reg.Role),
	})
}

func (h *Handler) handleAttend(w http.ResponseWriter, r *http.Request) {
	id, ok := h.agendaID(w, r)
	if !ok {
		return
	}
	memberID, err := uuid.Parse(middleware.GetMemberID(r.Context()))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid token subject"))
		return
	}

	result, err := h.service.CheckInMember(r.Context(), id, memberID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

type scanRequest struct {
	Code string `json:"code"`
}

func (h *Handler) handleScan(w http.ResponseWriter, r *http.Request) {
	id, ok := h.agendaID(w, r)
	if !ok {
		return
	}
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "code is required"))
		return
	}

	result, err := h.service.Scan(r.Context(), id, req.Code)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

type batchImportRequest struct {
	Items []service.BatchItem `json:"items"`
}

func (h *Handler) handleBatchImport(w http.ResponseWriter, r *http.Request) {
	id, ok := h.agendaID(w, r)
	if !ok {
		return
	}
	role, ok := h.roleParam(w, r)
	if !ok {
		return
	}

	var req batchImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	report, err := h.service.BatchImport(r.Context(), id, role, req.Items)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

type batchToggleRequest struct {
	IDs           []string `json:"ids"`
	PaymentStatus *string  `json:"payment_status,omitempty"`
	Visiting      *bool    `json:"visiting,omitempty"`
}

type batchToggleResponse struct {
	Updated int `json:"updated"`
}

func (h *Handler) handleBatchToggle(w http.ResponseWriter, r *http.Request) {
	id, ok := h.agendaID(w, r)
	if !ok {
		return
	}
	if _, ok := h.roleParam(w, r); !ok {
		return
	}

	var req batchToggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	patch := service.BatchPatch{Visiting: req.Visiting}
	for _, raw := range pstrings.DedupeAndTrim(req.IDs) {
		regID, err := uuid.Parse(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid registration id"))
			return
		}
		patch.IDs = append(patch.IDs, regID)
	}
	if req.PaymentStatus != nil {
		status := agenda.PaymentStatus(*req.PaymentStatus)
		patch.PaymentStatus = &status
	}

	updated, err := h.service.BatchToggle(r.Context(), id, patch)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, batchToggleResponse{Updated: updated})
}

func (h *Handler) handleListRegistrations(w http.ResponseWriter, r *http.Request) {
	id, ok := h.agendaID(w, r)
	if !ok {
		return
	}

	role := agenda.RoleParticipant
	if raw := r.URL.Query().Get("role"); raw != "" {
		parsed, ok := agenda.ParseRole(raw)
		if !ok {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "unknown role"))
			return
		}
		role = parsed
	}

	regs, err := h.service.ListRegistrations(r.Context(), id, role)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, regs)
}

func (h *Handler) agendaID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "agendaID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid agenda id"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) roleParam(w http.ResponseWriter, r *http.Request) (agenda.Role, bool) {
	role, ok := agenda.ParseRole(chi.URLParam(r, "role"))
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "unknown role"))
		return "", false
	}
	return role, true
}

func (h *Handler) resolveMember(ctx context.Context, memberID string) (*member.Member, error) {
	id, err := uuid.Parse(memberID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token subject")
	}
	return h.members.Resolve(ctx, id)
}
