package model

import "time"

// Member represents a registered buyer as stored in the `members` table.
// Members authenticate with email and password and may hold a program
// membership number, which makes them eligible for point payments and
// awards once the matching ownership info is active.
//
// Fields:
//  ID               – uuid primary key, used as the agent id on transactions.
//  Email            – unique email address.
//  PasswordHash     – bcrypt hashed password.
//  Role             – MEMBER or ADMIN.
//  MembershipNumber – program membership number (empty when none issued).
//  PointAccount     – point ledger account number of the member.
//  IsActive         – whether the account may log in.
type Member struct {
	ID               string    // members.id
	Email            string    // members.email
	Name             string    // members.name
	PasswordHash     string    // members.password_hash
	Role             string    // members.role
	MembershipNumber string    // members.membership_number
	PointAccount     string    // members.point_account
	IsActive         bool      // members.is_active
	CreatedAt        time.Time // members.created_at
	UpdatedAt        time.Time // members.updated_at
}

// AsAgent returns the member as a transaction agent.
func (m Member) AsAgent(programName string) Party {
	p := Party{ID: m.ID, TypeOf: PartyTypePerson, Name: m.Name}
	if m.MembershipNumber != "" {
		p.MemberOf = &MemberOf{MembershipNumber: m.MembershipNumber, ProgramName: programName}
	}
	return p
}

// RefreshToken models an entry in the `refresh_tokens` table. Only the
// SHA-256 hash of the raw token is stored.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	MemberID  string     // refresh_tokens.member_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
