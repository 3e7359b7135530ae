package repository

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/cinema-ticket-order/internal/apperr"
	"github.com/iliyamo/cinema-ticket-order/internal/model"
	"github.com/iliyamo/cinema-ticket-order/internal/utils"
)

type MemberRepo struct{ DB *sql.DB }

func NewMemberRepo(db *sql.DB) *MemberRepo { return &MemberRepo{DB: db} }

const memberColumns = "id,email,name,password_hash,role,membership_number,point_account,is_active,created_at,updated_at"

func scanMember(s rowScanner) (*model.Member, error) {
	var (
		m                              model.Member
		membershipNumber, pointAccount sql.NullString
	)
	err := s.Scan(&m.ID, &m.Email, &m.Name, &m.PasswordHash, &m.Role, &membershipNumber, &pointAccount,
		&m.IsActive, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	m.MembershipNumber = membershipNumber.String
	m.PointAccount = pointAccount.String
	return &m, nil
}

// Create inserts a member with a freshly issued membership number and returns
// it. The membership number doubles as the member's point account number.
func (r *MemberRepo) Create(ctx context.Context, email, name, password, role string, cost int) (*model.Member, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return nil, err
	}
	number, err := newMembershipNumber()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	m := &model.Member{
		ID:               uuid.NewString(),
		Email:            email,
		Name:             strings.TrimSpace(name),
		PasswordHash:     hash,
		Role:             role,
		MembershipNumber: number,
		PointAccount:     number,
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	_, err = r.DB.ExecContext(ctx,
		"INSERT INTO members (id, email, name, password_hash, role, membership_number, point_account) VALUES (?,?,?,?,?,?,?)",
		m.ID, m.Email, m.Name, m.PasswordHash, m.Role, m.MembershipNumber, m.PointAccount)
	if err != nil {
		if isDuplicateKey(err) {
			return nil, apperr.AlreadyInUse("member", "email already exists")
		}
		return nil, err
	}
	return m, nil
}

// GetByEmail fetches a member by normalized email.
func (r *MemberRepo) GetByEmail(ctx context.Context, email string) (*model.Member, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	m, err := scanMember(r.DB.QueryRowContext(ctx,
		"SELECT "+memberColumns+" FROM members WHERE email=? LIMIT 1", email))
	if err != nil {
		return nil, notFoundOr(err, "member")
	}
	return m, nil
}

// GetByID fetches a member by id.
func (r *MemberRepo) GetByID(ctx context.Context, id string) (*model.Member, error) {
	m, err := scanMember(r.DB.QueryRowContext(ctx,
		"SELECT "+memberColumns+" FROM members WHERE id=? LIMIT 1", id))
	if err != nil {
		return nil, notFoundOr(err, "member")
	}
	return m, nil
}

// GetByMembershipNumber fetches the member holding a membership number.
func (r *MemberRepo) GetByMembershipNumber(ctx context.Context, number string) (*model.Member, error) {
	m, err := scanMember(r.DB.QueryRowContext(ctx,
		"SELECT "+memberColumns+" FROM members WHERE membership_number=? LIMIT 1", number))
	if err != nil {
		return nil, notFoundOr(err, "member")
	}
	return m, nil
}

// newMembershipNumber returns a 12 digit number prefixed with "M".
func newMembershipNumber() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("M%012d", n.Int64()), nil
}
