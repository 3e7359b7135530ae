package model

import (
	"encoding/json"
	"time"
)

// TaskName identifies the handler a task runs.
type TaskName string

const (
	TaskSettleSeatReservation       TaskName = "settle-seat-reservation"
	TaskSettlePayment               TaskName = "settle-payment"
	TaskSettleAccount               TaskName = "settle-account"
	TaskSettleVoucher               TaskName = "settle-voucher"
	TaskGivePointAward              TaskName = "give-point-award"
	TaskCreateOrder                 TaskName = "create-order"
	TaskSendEmailMessage            TaskName = "send-email-message"
	TaskCancelSeatReservation       TaskName = "cancel-seat-reservation"
	TaskCancelPayment               TaskName = "cancel-payment"
	TaskCancelAccount               TaskName = "cancel-account"
	TaskCancelVoucher               TaskName = "cancel-voucher"
	TaskCancelPointAward            TaskName = "cancel-point-award"
	TaskRegisterProgramMembership   TaskName = "register-program-membership"
	TaskUnregisterProgramMembership TaskName = "unregister-program-membership"
)

// TaskNames lists every known task name.
var TaskNames = []TaskName{
	TaskSettleSeatReservation,
	TaskSettlePayment,
	TaskSettleAccount,
	TaskSettleVoucher,
	TaskGivePointAward,
	TaskCreateOrder,
	TaskSendEmailMessage,
	TaskCancelSeatReservation,
	TaskCancelPayment,
	TaskCancelAccount,
	TaskCancelVoucher,
	TaskCancelPointAward,
	TaskRegisterProgramMembership,
	TaskUnregisterProgramMembership,
}

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskStatusReady    TaskStatus = "Ready"
	TaskStatusRunning  TaskStatus = "Running"
	TaskStatusExecuted TaskStatus = "Executed"
	TaskStatusAborted  TaskStatus = "Aborted"
)

// TaskExecutionResult is one attempt outcome. Error is empty on success.
type TaskExecutionResult struct {
	ExecutedAt time.Time `json:"executedAt"`
	Error      string    `json:"error,omitempty"`
}

// Task is a deferred, retryable unit of work.
type Task struct {
	ID                     string                `json:"id"`
	Name                   TaskName              `json:"name"`
	Status                 TaskStatus            `json:"status"`
	RunsAt                 time.Time             `json:"runsAt"`
	RemainingNumberOfTries int                   `json:"remainingNumberOfTries"`
	NumberOfTried          int                   `json:"numberOfTried"`
	LastTriedAt            *time.Time            `json:"lastTriedAt,omitempty"`
	ExecutionResults       []TaskExecutionResult `json:"executionResults"`
	Data                   json.RawMessage       `json:"data"`
}

// DecodeData unmarshals the task payload into v.
func (t Task) DecodeData(v any) error {
	return json.Unmarshal(t.Data, v)
}

// TransactionTaskData is the payload of every settle/cancel/create-order task.
type TransactionTaskData struct {
	TransactionID string `json:"transactionId"`
}

// SendEmailMessageTaskData is the payload of a send-email-message task.
type SendEmailMessageTaskData struct {
	OrderNumber      string                 `json:"orderNumber"`
	ActionAttributes SendEmailMessageAction `json:"actionAttributes"`
}

// RegisterProgramMembershipData is everything needed to renew a membership
// without the member being present.
type RegisterProgramMembershipData struct {
	Agent               Party           `json:"agent"`
	SellerID            string          `json:"sellerId"`
	ProgramMembershipID string          `json:"programMembershipId"`
	OfferIdentifier     string          `json:"offerIdentifier"`
	MembershipNumber    string          `json:"membershipNumber"`
	CustomerContact     CustomerContact `json:"customerContact"`
	Card                *CardRef        `json:"card,omitempty"`
}

// UnregisterProgramMembershipData stops the renewal of a membership.
type UnregisterProgramMembershipData struct {
	AgentID             string `json:"agentId"`
	MembershipNumber    string `json:"membershipNumber"`
	ProgramMembershipID string `json:"programMembershipId"`
}
