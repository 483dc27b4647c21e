package member

import (
	"encoding/json"
	"net/http"

	"github.com/asaskevich/govalidator"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"agendahub/pkg/platform/httputil"

	dErrors "agendahub/pkg/domain-errors"
)

// Handler exposes the account endpoints.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/auth/register", h.handleRegister)
	r.Post("/auth/login", h.handleLogin)
}

type registerRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Semester int    `json:"semester,omitempty"`
	Faculty  string `json:"faculty,omitempty"`
}

type registerResponse struct {
	MemberID string `json:"member_id"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.FullName == "" || !govalidator.IsEmail(req.Email) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "full_name and a valid email are required"))
		return
	}
	if len(req.Password) < 8 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "password must be at least 8 characters"))
		return
	}

	// Role is always plain member here; operator accounts are provisioned
	// out of band.
	m := &Member{
		ID:       uuid.New(),
		FullName: req.FullName,
		Email:    req.Email,
		Role:     "member",
		Semester: req.Semester,
		Faculty:  req.Faculty,
	}
	if err := h.service.Register(r.Context(), m, req.Password); err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, registerResponse{MemberID: m.ID.String()})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token    string `json:"token"`
	MemberID string `json:"member_id"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if !govalidator.IsEmail(req.Email) || req.Password == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "email and password are required"))
		return
	}

	token, m, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, loginResponse{
		Token:    token,
		MemberID: m.ID.String(),
		FullName: m.FullName,
		Role:     m.Role,
	})
}
