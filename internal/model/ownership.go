package model

import "time"

// OwnershipInfo asserts that OwnedBy owns TypeOfGood between OwnedFrom and
// OwnedThrough. It is derived once per accepted offer at confirmation.
type OwnershipInfo struct {
	ID           string      `json:"id"`
	Identifier   string      `json:"identifier"`
	OwnedBy      Party       `json:"ownedBy"`
	AcquiredFrom Party       `json:"acquiredFrom"`
	OwnedFrom    time.Time   `json:"ownedFrom"`
	OwnedThrough time.Time   `json:"ownedThrough"`
	TypeOfGood   ItemOffered `json:"typeOfGood"`
}

// ActiveAt reports whether t falls inside the ownership window.
func (o OwnershipInfo) ActiveAt(t time.Time) bool {
	return !t.Before(o.OwnedFrom) && !t.After(o.OwnedThrough)
}
