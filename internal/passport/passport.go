// Package passport issues and verifies the signed, scope-bound credentials
// that admit a buyer to start a place-order transaction. Issuing counts
// passports per scope and time window in Redis; once the window's quota is
// used up no more passports are handed out until the next window.
package passport

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iliyamo/cinema-ticket-order/internal/apperr"
	"github.com/iliyamo/cinema-ticket-order/internal/config"
	"github.com/iliyamo/cinema-ticket-order/internal/model"
)

// ScopePrefix is the transaction kind part of a place-order scope.
const ScopePrefix = "placeOrderTransaction"

// Scope returns the scope a passport must carry to start a place-order
// transaction with the seller.
func Scope(sellerIdentifier string) string {
	return ScopePrefix + "." + sellerIdentifier
}

// Counter counts passports per scope and window.
type Counter interface {
	Incr(ctx context.Context, scope string, windowStart time.Time, unit time.Duration) (int64, error)
}

// Claims is the JWT payload of a passport.
type Claims struct {
	Scope     string                  `json:"scope"`
	IssueUnit model.PassportIssueUnit `json:"issueUnit"`
	jwt.RegisteredClaims
}

// Service issues and verifies passports.
type Service struct {
	secret          []byte
	issuer          string
	allowedIssuers  map[string]bool
	unit            time.Duration
	maxCountPerUnit int64
	ttl             time.Duration
	counter         Counter
	now             func() time.Time
}

// New builds a Service. counter may be nil for a verify-only service.
func New(cfg config.PassportConfig, counter Counter) *Service {
	allowed := make(map[string]bool, len(cfg.AllowedIssuers))
	for _, iss := range cfg.AllowedIssuers {
		allowed[iss] = true
	}
	unit := cfg.Unit
	if unit <= 0 {
		unit = time.Minute
	}
	return &Service{
		secret:          []byte(cfg.Secret),
		issuer:          cfg.Issuer,
		allowedIssuers:  allowed,
		unit:            unit,
		maxCountPerUnit: cfg.MaxCountPerUnit,
		ttl:             cfg.TTL,
		counter:         counter,
		now:             time.Now,
	}
}

// Issue hands out a passport for scope. When the current window already
// issued maxCountPerUnit passports it fails with ServiceUnavailable.
func (s *Service) Issue(ctx context.Context, scope string) (string, error) {
	if !strings.HasPrefix(scope, ScopePrefix+".") || len(scope) == len(ScopePrefix)+1 {
		return "", apperr.Argument("scope", "scope must look like %s.<seller>", ScopePrefix)
	}
	if s.counter == nil {
		return "", apperr.NotImplemented("passport issuing is not configured")
	}
	now := s.now().UTC()
	windowStart := now.Truncate(s.unit)
	n, err := s.counter.Incr(ctx, scope, windowStart, s.unit)
	if err != nil {
		return "", err
	}
	if n > s.maxCountPerUnit {
		return "", apperr.ServiceUnavailable(nil, "passport quota for %s exhausted until %s", scope, windowStart.Add(s.unit).Format(time.RFC3339))
	}
	claims := Claims{
		Scope: scope,
		IssueUnit: model.PassportIssueUnit{
			Identifier:       fmt.Sprintf("%s:%d", scope, windowStart.Unix()),
			ValidFrom:        windowStart,
			ValidThrough:     windowStart.Add(s.unit),
			NumberOfRequests: n,
		},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify checks signature, expiry and issuer of a passport and returns its
// content. A forged or malformed passport is an Argument error. A passport
// numbered past the quota of its window is ServiceUnavailable, whoever
// issued it.
func (s *Service) Verify(token string) (*model.Passport, error) {
	var claims Claims
	tok, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !tok.Valid {
		return nil, apperr.Argument("passport", "invalid passport: %v", err)
	}
	if !s.allowedIssuers[claims.Issuer] {
		return nil, apperr.Argument("passport", "issuer %q is not allowed", claims.Issuer)
	}
	if claims.Scope == "" {
		return nil, apperr.Argument("passport", "passport has no scope")
	}
	if s.maxCountPerUnit > 0 && claims.IssueUnit.NumberOfRequests > s.maxCountPerUnit {
		return nil, apperr.ServiceUnavailable(nil, "passport quota for %s exhausted", claims.Scope)
	}
	return &model.Passport{Issuer: claims.Issuer, Scope: claims.Scope, IssueUnit: claims.IssueUnit}, nil
}
