package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-ticket-order/internal/apperr"
	"github.com/iliyamo/cinema-ticket-order/internal/config"
	"github.com/iliyamo/cinema-ticket-order/internal/handler"
	"github.com/iliyamo/cinema-ticket-order/internal/model"
	"github.com/iliyamo/cinema-ticket-order/internal/router"
	"github.com/iliyamo/cinema-ticket-order/internal/utils"
)

type memberStore struct {
	mu      sync.Mutex
	members map[string]*model.Member
}

func (s *memberStore) Create(_ context.Context, email, name, password, role string, cost int) (*model.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.members {
		if m.Email == email {
			return nil, apperr.AlreadyInUse("member", "email %s is taken", email)
		}
	}
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return nil, err
	}
	m := &model.Member{
		ID:               "member-" + email,
		Email:            email,
		Name:             name,
		PasswordHash:     hash,
		Role:             role,
		MembershipNumber: "MB0001",
		IsActive:         true,
	}
	s.members[m.ID] = m
	return m, nil
}

func (s *memberStore) GetByEmail(_ context.Context, email string) (*model.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.members {
		if m.Email == email {
			return m, nil
		}
	}
	return nil, apperr.NotFound("member")
}

func (s *memberStore) GetByID(_ context.Context, id string) (*model.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.members[id]; ok {
		return m, nil
	}
	return nil, apperr.NotFound("member")
}

type tokenStore struct {
	mu     sync.Mutex
	owners map[string]string
}

func (s *tokenStore) StoreRefresh(_ context.Context, memberID, hash string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owners[hash] = memberID
	return nil
}

func (s *tokenStore) ValidateRefresh(_ context.Context, hash string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.owners[hash]
	if !ok {
		return "", apperr.NotFound("refresh token")
	}
	return id, nil
}

func (s *tokenStore) RevokeByHash(_ context.Context, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.owners, hash)
	return nil
}

func (s *tokenStore) RevokeAllForMember(_ context.Context, memberID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for hash, id := range s.owners {
		if id == memberID {
			delete(s.owners, hash)
		}
	}
	return nil
}

type authResp struct {
	Member struct {
		ID               string `json:"id"`
		Role             string `json:"role"`
		MembershipNumber string `json:"membership_number"`
	} `json:"member"`
	Access struct {
		Token string `json:"token"`
	} `json:"access"`
	Refresh *struct {
		Token string `json:"token"`
	} `json:"refresh"`
}

func newAuthServer(t *testing.T) (*echo.Echo, *tokenStore) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	tokens := &tokenStore{owners: map[string]string{}}
	cfg := config.Config{JWTSecret: secret, AccessTTLMin: 10, RefreshTTLDays: 1, BcryptCost: 4, ProgramName: "CinemaPointMembership"}
	e := echo.New()
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, &memberStore{members: map[string]*model.Member{}}, tokens, handler.NewValidator(), logger), secret, passThrough)
	return e, tokens
}

func post(t *testing.T, e *echo.Echo, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRegisterLoginRefresh(t *testing.T) {
	e, tokens := newAuthServer(t)

	rec := post(t, e, "/v1/auth/register", map[string]string{"email": "taro@example.com", "password": "correct-horse", "name": "Taro"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var reg authResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reg))
	assert.Equal(t, utils.RoleMember, reg.Member.Role)
	require.NotNil(t, reg.Refresh)

	claims, err := utils.ParseAccessToken(secret, reg.Access.Token)
	require.NoError(t, err)
	assert.Equal(t, "MB0001", claims.MembershipNumber)

	rec = post(t, e, "/v1/auth/register", map[string]string{"email": "taro@example.com", "password": "correct-horse", "name": "Taro"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = post(t, e, "/v1/auth/login", map[string]string{"email": "taro@example.com", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = post(t, e, "/v1/auth/login", map[string]string{"email": "nobody@example.com", "password": "whatever"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = post(t, e, "/v1/auth/login", map[string]string{"email": "taro@example.com", "password": "correct-horse"})
	require.Equal(t, http.StatusOK, rec.Code)

	// refresh tokens rotate
	rec = post(t, e, "/v1/auth/refresh", map[string]string{"refresh_token": reg.Refresh.Token})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = post(t, e, "/v1/auth/refresh", map[string]string{"refresh_token": reg.Refresh.Token})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// logout by bearer drops every remaining refresh token
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/logout", strings.NewReader("{}"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+reg.Access.Token)
	out := httptest.NewRecorder()
	e.ServeHTTP(out, req)
	assert.Equal(t, http.StatusNoContent, out.Code)
	assert.Empty(t, tokens.owners)
}

func TestAnonymousTokenHasNoRefresh(t *testing.T) {
	e, _ := newAuthServer(t)
	rec := post(t, e, "/v1/auth/anonymous", map[string]string{})
	require.Equal(t, http.StatusCreated, rec.Code)
	var resp authResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Nil(t, resp.Refresh)
	assert.Equal(t, utils.RoleAnonymous, resp.Member.Role)

	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+resp.Access.Token)
	me := httptest.NewRecorder()
	e.ServeHTTP(me, req)
	require.Equal(t, http.StatusOK, me.Code)
	var agent model.Party
	require.NoError(t, json.Unmarshal(me.Body.Bytes(), &agent))
	assert.Equal(t, resp.Member.ID, agent.ID)
	assert.Nil(t, agent.MemberOf)
}

func TestRegisterValidation(t *testing.T) {
	e, _ := newAuthServer(t)
	rec := post(t, e, "/v1/auth/register", map[string]string{"email": "not-an-email", "password": "short"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"entity":"email"`)
	assert.Contains(t, rec.Body.String(), `"entity":"password"`)
	assert.Contains(t, rec.Body.String(), `"entity":"name"`)
}
