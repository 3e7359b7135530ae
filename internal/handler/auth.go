package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-ticket-order/internal/apperr"
	"github.com/iliyamo/cinema-ticket-order/internal/config"
	"github.com/iliyamo/cinema-ticket-order/internal/model"
	"github.com/iliyamo/cinema-ticket-order/internal/utils"
)

// MemberStore is the member persistence the auth endpoints need.
type MemberStore interface {
	Create(ctx context.Context, email, name, password, role string, cost int) (*model.Member, error)
	GetByEmail(ctx context.Context, email string) (*model.Member, error)
	GetByID(ctx context.Context, id string) (*model.Member, error)
}

// RefreshTokenStore keeps hashed refresh tokens.
type RefreshTokenStore interface {
	StoreRefresh(ctx context.Context, memberID, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (string, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForMember(ctx context.Context, memberID string) error
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg      config.Config
	Members  MemberStore
	Tokens   RefreshTokenStore
	Validate *validator.Validate
	Logger   *logrus.Logger
}

func NewAuthHandler(cfg config.Config, m MemberStore, t RefreshTokenStore, v *validator.Validate, logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Members: m, Tokens: t, Validate: v, Logger: logger}
}

// ----- DTOs -----

type registerReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name" validate:"required,max=100"`
}
type loginReq struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type memberPart struct {
	ID               string `json:"id"`
	Email            string `json:"email,omitempty"`
	Name             string `json:"name,omitempty"`
	Role             string `json:"role"`
	MembershipNumber string `json:"membership_number,omitempty"`
}
type authResp struct {
	Member  memberPart `json:"member"`
	Access  tokenPart  `json:"access"`
	Refresh *tokenPart `json:"refresh,omitempty"`
}

// issue signs an access token for m and stores a fresh refresh token.
func (h *AuthHandler) issue(ctx context.Context, m *model.Member) (authResp, error) {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, m.ID, m.Role, m.Name, m.MembershipNumber, h.Cfg.AccessTTLMin)
	if err != nil {
		return authResp{}, err
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return authResp{}, err
	}
	if err := h.Tokens.StoreRefresh(ctx, m.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return authResp{}, err
	}
	return authResp{
		Member:  memberPart{ID: m.ID, Email: m.Email, Name: m.Name, Role: m.Role, MembershipNumber: m.MembershipNumber},
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: &tokenPart{Token: refresh.Raw, Expires: refresh.Exp}, // raw back to client
	}, nil
}

// Register creates a member with a membership number and returns tokens.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := bindAndValidate(c, h.Validate, &req); err != nil {
		return writeError(c, h.Logger, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	m, err := h.Members.Create(ctx, req.Email, req.Name, req.Password, utils.RoleMember, h.Cfg.BcryptCost)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	resp, err := h.issue(ctx, m)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusCreated, resp)
}

// Login verifies the password and returns a new token pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bindAndValidate(c, h.Validate, &req); err != nil {
		return writeError(c, h.Logger, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	m, err := h.Members.GetByEmail(ctx, req.Email)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return c.JSON(http.StatusUnauthorized, errorBody{Error: "invalid credentials"})
		}
		return writeError(c, h.Logger, err)
	}
	if !m.IsActive || !utils.VerifyPassword(m.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, errorBody{Error: "invalid credentials"})
	}
	resp, err := h.issue(ctx, m)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Refresh validates a refresh token by hash, revokes it and issues a new
// pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := bindAndValidate(c, h.Validate, &req); err != nil {
		return writeError(c, h.Logger, err)
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	memberID, err := h.Tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, errorBody{Error: "invalid refresh"})
	}
	if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
		return writeError(c, h.Logger, err)
	}
	m, err := h.Members.GetByID(ctx, memberID)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return c.JSON(http.StatusUnauthorized, errorBody{Error: "invalid refresh"})
		}
		return writeError(c, h.Logger, err)
	}
	resp, err := h.issue(ctx, m)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Anonymous issues an access token for a buyer without an account. The
// subject is a fresh id; no refresh token is issued.
func (h *AuthHandler) Anonymous(c echo.Context) error {
	id := uuid.NewString()
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, id, utils.RoleAnonymous, "", "", h.Cfg.AccessTTLMin)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusCreated, authResp{
		Member: memberPart{ID: id, Role: utils.RoleAnonymous},
		Access: tokenPart{Token: access.Token, Expires: access.Exp},
	})
}

// Logout revokes the given refresh token, or every refresh token of the
// bearer when no refresh token is sent.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	_ = c.Bind(&req)
	refreshToken := strings.TrimSpace(req.RefreshToken)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if refreshToken != "" {
		hash := utils.HashRefreshRaw(refreshToken)
		if _, err := h.Tokens.ValidateRefresh(ctx, hash); err != nil {
			return c.JSON(http.StatusUnauthorized, errorBody{Error: "invalid refresh token"})
		}
		if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
			return writeError(c, h.Logger, err)
		}
		return c.NoContent(http.StatusNoContent)
	}

	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if !strings.HasPrefix(auth, "Bearer ") {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "provide Authorization header or refresh_token"})
	}
	claims, err := utils.ParseAccessToken(h.Cfg.JWTSecret, strings.TrimPrefix(auth, "Bearer "))
	if err != nil || claims.Subject == "" {
		return c.JSON(http.StatusUnauthorized, errorBody{Error: "unauthorized"})
	}
	if err := h.Tokens.RevokeAllForMember(ctx, claims.Subject); err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Me echoes the authenticated buyer.
func (h *AuthHandler) Me(c echo.Context) error {
	agent, err := agentOf(c, h.Cfg.ProgramName)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, agent)
}
