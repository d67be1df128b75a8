// Package rest exposes the auth service over HTTP. Routes are served both
// under /auth and /api/auth.
package rest

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/dmitrijs2005/citygate/internal/common"
	"github.com/dmitrijs2005/citygate/internal/identity"
	"github.com/dmitrijs2005/citygate/internal/logging"
	"github.com/dmitrijs2005/citygate/internal/server/models"
	"github.com/dmitrijs2005/citygate/internal/server/services"
	"github.com/go-playground/validator/v10"
)

// AuthService is the subset of services.UserService used by the handlers.
type AuthService interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.User, error)
	Login(ctx context.Context, userName, password string) (*services.LoginResult, error)
	GetProfile(ctx context.Context, userName string) (*models.User, error)
	UpdateProfile(ctx context.Context, userName string, upd services.ProfileUpdate) (*models.User, error)
	ChangePassword(ctx context.Context, userName, oldPassword, newPassword string) (bool, error)
}

const (
	msgInvalidCredentials = "Invalid username or password"
	msgInvalidOldPassword = "Invalid old password"
	msgUsernameTaken      = "Username already exists"
	msgEmailTaken         = "Email already in use"
	msgUserNotFound       = "User not found"
	msgInvalidBody        = "Invalid request body"
	msgInternal           = "internal error"
)

type Handler struct {
	svc      AuthService
	validate *validator.Validate
	log      logging.Logger
}

func NewHandler(svc AuthService, log logging.Logger) *Handler {
	if log == nil {
		log = logging.Nop{}
	}
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Handler{svc: svc, validate: v, log: log}
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
	Token    string   `json:"token"`
}

type registerRequest struct {
	Username string   `json:"username" validate:"required,max=64"`
	Password string   `json:"password" validate:"required,max=72"`
	Email    string   `json:"email" validate:"omitempty,email"`
	Roles    []string `json:"roles" validate:"omitempty,dive,required,max=32,excludesall=0x2C"`
}

type profileResponse struct {
	Message  string   `json:"message,omitempty"`
	ID       string   `json:"id,omitempty"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Roles    []string `json:"roles"`
}

type updateProfileRequest struct {
	Email *string `json:"email"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,max=72"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.bind(w, r, &req) {
		return
	}

	res, err := h.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, common.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, msgInvalidCredentials)
			return
		}
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{Username: res.UserName, Roles: nonNil(res.Roles), Token: res.Token})
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.bind(w, r, &req) {
		return
	}

	u, err := h.svc.Register(r.Context(), services.RegisterInput{
		UserName: req.Username,
		Password: req.Password,
		Email:    req.Email,
		Roles:    req.Roles,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	p := u.Profile()
	writeJSON(w, http.StatusOK, profileResponse{
		Message:  "User registered successfully",
		Username: p.UserName,
		Email:    p.Email,
		Roles:    p.Roles,
	})
}

func (h *Handler) getProfile(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.GetProfile(r.Context(), identity.FromContext(r.Context()).Username)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	p := u.Profile()
	writeJSON(w, http.StatusOK, profileResponse{ID: p.ID, Username: p.UserName, Email: p.Email, Roles: p.Roles})
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	if req.Email != nil {
		if err := h.validate.Var(strings.TrimSpace(*req.Email), "omitempty,email"); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid email")
			return
		}
	}

	u, err := h.svc.UpdateProfile(r.Context(), identity.FromContext(r.Context()).Username, services.ProfileUpdate{Email: req.Email})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	p := u.Profile()
	writeJSON(w, http.StatusOK, profileResponse{
		Message:  "Profile updated successfully",
		Username: p.UserName,
		Email:    p.Email,
		Roles:    p.Roles,
	})
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if !h.bind(w, r, &req) {
		return
	}

	ok, err := h.svc.ChangePassword(r.Context(), identity.FromContext(r.Context()).Username, req.OldPassword, req.NewPassword)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !ok {
		writeError(w, http.StatusBadRequest, msgInvalidOldPassword)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Password changed successfully"})
}

// bind decodes and validates the body, answering 400 on failure.
func (h *Handler) bind(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := decodeJSON(w, r, v); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

// fail maps service errors to fixed statuses. Anything unexpected is logged
// and reported without detail.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, common.ErrDuplicateIdentity):
		writeError(w, http.StatusBadRequest, msgUsernameTaken)
	case errors.Is(err, common.ErrEmailTaken):
		writeError(w, http.StatusBadRequest, msgEmailTaken)
	case errors.Is(err, common.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, common.ErrorNotFound):
		writeError(w, http.StatusNotFound, msgUserNotFound)
	default:
		if !errors.Is(err, common.ErrorInternal) {
			h.log.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		}
		writeError(w, http.StatusInternalServerError, msgInternal)
	}
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return msgInvalidBody
	}
	fe := verrs[0]
	if fe.Tag() == "required" {
		return "Missing required field: " + fe.Field()
	}
	return "Invalid field: " + fe.Field()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
