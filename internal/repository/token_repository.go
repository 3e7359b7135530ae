package repository

import (
	"context"
	"database/sql"
	"time"
)

// TokenRepo persists/validates refresh tokens (single 'token_hash' column).
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// StoreRefresh inserts a refresh token hash row.
func (r *TokenRepo) StoreRefresh(ctx context.Context, memberID, tokenHash string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO refresh_tokens (member_id, token_hash, expires_at) VALUES (?,?,?)",
		memberID, tokenHash, exp)
	return err
}

// ValidateRefresh returns the member id if a non-revoked, non-expired token
// exists.
func (r *TokenRepo) ValidateRefresh(ctx context.Context, tokenHash string) (string, error) {
	var (
		memberID  string
		expiresAt time.Time
		revokedAt sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT member_id, expires_at, revoked_at FROM refresh_tokens WHERE token_hash=? LIMIT 1",
		tokenHash).Scan(&memberID, &expiresAt, &revokedAt)
	if err != nil {
		return "", err
	}
	if revokedAt.Valid {
		return "", sql.ErrNoRows
	}
	if time.Now().UTC().After(expiresAt) {
		return "", sql.ErrNoRows
	}
	return memberID, nil
}

// RevokeByHash marks a token as revoked.
func (r *TokenRepo) RevokeByHash(ctx context.Context, tokenHash string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=NOW() WHERE token_hash=? AND revoked_at IS NULL",
		tokenHash)
	return err
}

// RevokeAllForMember revokes all of a member's active tokens.
func (r *TokenRepo) RevokeAllForMember(ctx context.Context, memberID string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=NOW() WHERE member_id=? AND revoked_at IS NULL",
		memberID)
	return err
}
