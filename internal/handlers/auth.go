package handlers

import (
	stdErrors "errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/eventnest/eventnest/internal/auth"
	"github.com/eventnest/eventnest/internal/models"
	"github.com/eventnest/eventnest/pkg/errors"
	"github.com/eventnest/eventnest/pkg/metrics"
	"github.com/eventnest/eventnest/pkg/response"
)

// AuthHandler manages registration, password login and the current user.
type AuthHandler struct {
	local *iauth.LocalAuthenticator
	jwt   *iauth.JWTService
}

func NewAuthHandler(local *iauth.LocalAuthenticator, jwt *iauth.JWTService) *AuthHandler {
	return &AuthHandler{local: local, jwt: jwt}
}

type registerRequest struct {
	Username  string `json:"username" validate:"required,min=3,max=150"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8,max=128"`
	FirstName string `json:"first_name" validate:"max=150"`
	LastName  string `json:"last_name" validate:"max=150"`
}

type loginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

type tokenResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresIn   int         `json:"expires_in"`
	User        userPayload `json:"user"`
}

type userPayload struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	IsActive  bool   `json:"is_active"`
}

func newUserPayload(user *models.User) userPayload {
	return userPayload{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		IsActive:  user.IsActive,
	}
}

// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.local.Register(requestContext(c), iauth.RegisterInput{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		if stdErrors.Is(err, iauth.ErrUserExists) {
			response.Error(c, errors.NewBadRequest("A user with this username or email already exists"))
			return
		}
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, newUserPayload(user))
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}
	req.Identifier = strings.TrimSpace(req.Identifier)
	if req.Identifier == "" {
		response.Error(c, errors.NewBadRequest("identifier is required"))
		return
	}

	user, err := h.local.Authenticate(requestContext(c), req.Identifier, req.Password)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		switch {
		case stdErrors.Is(err, iauth.ErrAccountLocked):
			response.Error(c, errors.ErrUnauthorized.WithMessage("Account is temporarily locked"))
		case stdErrors.Is(err, iauth.ErrAccountDisabled):
			response.Error(c, errors.ErrUnauthorized.WithMessage("Account is disabled"))
		case stdErrors.Is(err, iauth.ErrInvalidCredentials):
			response.Error(c, errors.ErrInvalidCredentials)
		default:
			response.Error(c, err)
		}
		return
	}

	token, err := h.jwt.GenerateAccessToken(iauth.AccessTokenInput{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
	})
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		response.Error(c, errors.ErrInternalServer.WithInternal(err))
		return
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	response.Success(c, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(h.jwt.TTL().Seconds()),
		User:        newUserPayload(user),
	})
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	user, err := h.local.FindUser(requestContext(c), userID)
	if err != nil {
		if stdErrors.Is(err, iauth.ErrInvalidCredentials) {
			response.Error(c, errors.ErrUnauthorized)
			return
		}
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, newUserPayload(user))
}
