package model

import "time"

// TransactionType identifies the kind of transaction. Only place-order
// transactions exist at the moment.
type TransactionType string

const TransactionTypePlaceOrder TransactionType = "PlaceOrder"

// TransactionStatus is the state of a transaction. InProgress moves exactly
// once to Confirmed or Expired and never leaves a terminal state.
type TransactionStatus string

const (
	TransactionStatusInProgress TransactionStatus = "InProgress"
	TransactionStatusConfirmed  TransactionStatus = "Confirmed"
	TransactionStatusExpired    TransactionStatus = "Expired"
)

// IsTerminal reports whether s is Confirmed or Expired.
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionStatusConfirmed || s == TransactionStatusExpired
}

// TasksExportationStatus guards the one-time export of follow-up tasks.
type TasksExportationStatus string

const (
	TasksExportationStatusUnexported TasksExportationStatus = "Unexported"
	TasksExportationStatusExporting  TasksExportationStatus = "Exporting"
	TasksExportationStatusExported   TasksExportationStatus = "Exported"
)

// PartyType is the schema type of an agent, recipient or seller.
type PartyType string

const (
	PartyTypePerson       PartyType = "Person"
	PartyTypeMovieTheater PartyType = "MovieTheater"
)

// MemberOf records a person's program membership, if any.
type MemberOf struct {
	MembershipNumber string `json:"membershipNumber"`
	ProgramName      string `json:"programName"`
}

// Party is an agent, recipient or seller snapshot. MemberOf is nil for
// anonymous buyers and for organizations.
type Party struct {
	ID       string    `json:"id"`
	TypeOf   PartyType `json:"typeOf"`
	Name     string    `json:"name,omitempty"`
	URL      string    `json:"url,omitempty"`
	MemberOf *MemberOf `json:"memberOf,omitempty"`
}

// Passport is the verified content of a quota credential.
type Passport struct {
	Issuer    string            `json:"iss"`
	Scope     string            `json:"scope"`
	IssueUnit PassportIssueUnit `json:"issueUnit"`
}

// PassportIssueUnit is the quota window a passport was issued in and its
// position within that window.
type PassportIssueUnit struct {
	Identifier       string    `json:"identifier"`
	ValidFrom        time.Time `json:"validFrom"`
	ValidThrough     time.Time `json:"validThrough"`
	NumberOfRequests int64     `json:"numberOfRequests"`
}

// ClientUser is the API client context the transaction was started from.
type ClientUser struct {
	ClientID string `json:"clientId,omitempty"`
	Username string `json:"username,omitempty"`
	Subject  string `json:"sub,omitempty"`
}

// CustomerContact is the buyer's contact. Telephone is stored in E.164.
type CustomerContact struct {
	GivenName  string `json:"givenName"`
	FamilyName string `json:"familyName"`
	Email      string `json:"email"`
	Telephone  string `json:"telephone"`
}

// TransactionObject is the mutable working state of an in-progress
// transaction. AuthorizeActions is not persisted with the transaction: it is
// the view of the actions table loaded for the transaction when needed.
type TransactionObject struct {
	PassportToken    string            `json:"passportToken"`
	Passport         *Passport         `json:"passport,omitempty"`
	ClientUser       *ClientUser       `json:"clientUser,omitempty"`
	CustomerContact  *CustomerContact  `json:"customerContact,omitempty"`
	AuthorizeActions []AuthorizeAction `json:"-"`
}

// TransactionResult is present only on Confirmed transactions.
type TransactionResult struct {
	Order          Order           `json:"order"`
	OwnershipInfos []OwnershipInfo `json:"ownershipInfos"`
}

// Transaction is the place-order aggregate root.
type Transaction struct {
	ID                     string                 `json:"id"`
	TypeOf                 TransactionType        `json:"typeOf"`
	Status                 TransactionStatus      `json:"status"`
	Agent                  Party                  `json:"agent"`
	Seller                 Party                  `json:"seller"`
	Object                 TransactionObject      `json:"object"`
	Expires                time.Time              `json:"expires"`
	StartDate              time.Time              `json:"startDate"`
	EndDate                *time.Time             `json:"endDate,omitempty"`
	Result                 *TransactionResult     `json:"result,omitempty"`
	PotentialActions       *PotentialActions      `json:"potentialActions,omitempty"`
	TasksExportationStatus TasksExportationStatus `json:"tasksExportationStatus"`
	TasksExportedAt        *time.Time             `json:"tasksExportedAt,omitempty"`
	Tasks                  []Task                 `json:"tasks,omitempty"`
	UpdatedAt              time.Time              `json:"updatedAt"`

	// ExportClaim is the token of the export claim held on the transaction.
	// Only the holder of the current claim may mark its tasks exported.
	ExportClaim string `json:"-"`
}
