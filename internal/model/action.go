package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// ActionType is the schema type of an action record.
type ActionType string

const ActionTypeAuthorize ActionType = "AuthorizeAction"

// ActionStatus is the lifecycle state of an action.
type ActionStatus string

const (
	ActionStatusActive    ActionStatus = "ActiveActionStatus"
	ActionStatusCompleted ActionStatus = "CompletedActionStatus"
	ActionStatusFailed    ActionStatus = "FailedActionStatus"
	ActionStatusCanceled  ActionStatus = "CanceledActionStatus"
)

// AuthorizeObjectType discriminates the authorize action union.
type AuthorizeObjectType string

const (
	AuthorizeObjectSeatReservation   AuthorizeObjectType = "SeatReservation"
	AuthorizeObjectCreditCard        AuthorizeObjectType = "CreditCard"
	AuthorizeObjectMvtk              AuthorizeObjectType = "Mvtk"
	AuthorizeObjectAccount           AuthorizeObjectType = "Account"
	AuthorizeObjectProgramMembership AuthorizeObjectType = "ProgramMembershipOffer"
	AuthorizeObjectPointAward        AuthorizeObjectType = "PointAward"
)

// AuthorizeObject is the type-specific request payload of an authorize
// action. The set of implementations is closed to this package.
type AuthorizeObject interface {
	ObjectType() AuthorizeObjectType
	isAuthorizeObject()
}

// AuthorizeResult is the type-specific outcome of a completed authorize
// action. Its ObjectType always matches the action's object.
type AuthorizeResult interface {
	ObjectType() AuthorizeObjectType
	isAuthorizeResult()
}

// ActionPurpose points an action back at its owning transaction.
type ActionPurpose struct {
	TypeOf TransactionType `json:"typeOf"`
	ID     string          `json:"id"`
}

// ActionError is recorded on failed actions.
type ActionError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// AuthorizeAction is one reservation or payment attempt against a
// transaction. Result is set only once Completed and Error only once Failed.
type AuthorizeAction struct {
	ID           string          `json:"id"`
	TypeOf       ActionType      `json:"typeOf"`
	ActionStatus ActionStatus    `json:"actionStatus"`
	Agent        Party           `json:"agent"`
	Recipient    Party           `json:"recipient"`
	Purpose      ActionPurpose   `json:"purpose"`
	Object       AuthorizeObject `json:"object"`
	Result       AuthorizeResult `json:"result,omitempty"`
	Error        *ActionError    `json:"error,omitempty"`
	StartDate    time.Time       `json:"startDate"`
	EndDate      *time.Time      `json:"endDate,omitempty"`
}

// ObjectType returns the union discriminator of the action.
func (a AuthorizeAction) ObjectType() AuthorizeObjectType {
	if a.Object == nil {
		return ""
	}
	return a.Object.ObjectType()
}

// DecodeAuthorizeObject decodes raw into the variant named by t.
func DecodeAuthorizeObject(t AuthorizeObjectType, raw []byte) (AuthorizeObject, error) {
	var obj AuthorizeObject
	switch t {
	case AuthorizeObjectSeatReservation:
		obj = &SeatReservationObject{}
	case AuthorizeObjectCreditCard:
		obj = &CreditCardObject{}
	case AuthorizeObjectMvtk:
		obj = &MvtkObject{}
	case AuthorizeObjectAccount:
		obj = &AccountObject{}
	case AuthorizeObjectProgramMembership:
		obj = &ProgramMembershipObject{}
	case AuthorizeObjectPointAward:
		obj = &PointAwardObject{}
	default:
		return nil, fmt.Errorf("unknown authorize object type %q", t)
	}
	if err := json.Unmarshal(raw, obj); err != nil {
		return nil, fmt.Errorf("decode %s object: %w", t, err)
	}
	return obj, nil
}

// DecodeAuthorizeResult decodes raw into the result variant named by t. A
// null or empty payload yields a nil result.
func DecodeAuthorizeResult(t AuthorizeObjectType, raw []byte) (AuthorizeResult, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var res AuthorizeResult
	switch t {
	case AuthorizeObjectSeatReservation:
		res = &SeatReservationResult{}
	case AuthorizeObjectCreditCard:
		res = &CreditCardResult{}
	case AuthorizeObjectMvtk:
		res = &MvtkResult{}
	case AuthorizeObjectAccount:
		res = &AccountResult{}
	case AuthorizeObjectProgramMembership:
		res = &ProgramMembershipResult{}
	case AuthorizeObjectPointAward:
		res = &PointAwardResult{}
	default:
		return nil, fmt.Errorf("unknown authorize result type %q", t)
	}
	if err := json.Unmarshal(raw, res); err != nil {
		return nil, fmt.Errorf("decode %s result: %w", t, err)
	}
	return res, nil
}

// MarshalJSON adds the union discriminator next to the object.
func (a AuthorizeAction) MarshalJSON() ([]byte, error) {
	type plain AuthorizeAction
	return json.Marshal(struct {
		plain
		ObjectType AuthorizeObjectType `json:"objectType"`
	}{plain(a), a.ObjectType()})
}

// UnmarshalJSON restores the object/result union using objectType.
func (a *AuthorizeAction) UnmarshalJSON(b []byte) error {
	type plain AuthorizeAction
	var aux struct {
		plain
		ObjectType AuthorizeObjectType `json:"objectType"`
		Object     json.RawMessage     `json:"object"`
		Result     json.RawMessage     `json:"result,omitempty"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	obj, err := DecodeAuthorizeObject(aux.ObjectType, aux.Object)
	if err != nil {
		return err
	}
	res, err := DecodeAuthorizeResult(aux.ObjectType, aux.Result)
	if err != nil {
		return err
	}
	*a = AuthorizeAction(aux.plain)
	a.Object = obj
	a.Result = res
	return nil
}
