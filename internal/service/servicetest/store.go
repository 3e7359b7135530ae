// Package servicetest provides in-memory repositories and gateways for
// service tests. Conditional updates behave like the MySQL statements they
// stand in for: each one checks and writes under a single lock.
package servicetest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/cinema-ticket-order/internal/apperr"
	"github.com/iliyamo/cinema-ticket-order/internal/model"
)

// Transactions is an in-memory transaction repository.
type Transactions struct {
	mu     sync.Mutex
	byID   map[string]*model.Transaction
	tokens map[string]string
}

func NewTransactions() *Transactions {
	return &Transactions{byID: map[string]*model.Transaction{}, tokens: map[string]string{}}
}

func copyTransaction(t *model.Transaction) *model.Transaction {
	c := *t
	if t.Object.CustomerContact != nil {
		cc := *t.Object.CustomerContact
		c.Object.CustomerContact = &cc
	}
	c.Object.AuthorizeActions = nil
	c.Tasks = append([]model.Task(nil), t.Tasks...)
	return &c
}

func (r *Transactions) Start(_ context.Context, t *model.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.tokens[t.Object.PassportToken]; dup {
		return apperr.AlreadyInUse("transaction", "passport token already in use")
	}
	r.tokens[t.Object.PassportToken] = t.ID
	r.byID[t.ID] = copyTransaction(t)
	return nil
}

// Put stores t as is, bypassing the state machine.
func (r *Transactions) Put(t *model.Transaction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[t.ID] = copyTransaction(t)
	r.tokens[t.Object.PassportToken] = t.ID
}

func (r *Transactions) FindByID(_ context.Context, id string) (*model.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[id]
	if !ok {
		return nil, apperr.NotFound("transaction")
	}
	return copyTransaction(t), nil
}

func (r *Transactions) FindInProgressByID(_ context.Context, id string) (*model.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[id]
	if !ok || t.Status != model.TransactionStatusInProgress {
		return nil, apperr.NotFound("transaction")
	}
	return copyTransaction(t), nil
}

func (r *Transactions) SetCustomerContact(_ context.Context, id string, contact model.CustomerContact, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[id]
	if !ok || t.Status != model.TransactionStatusInProgress {
		return apperr.NotFound("transaction")
	}
	t.Object.CustomerContact = &contact
	t.UpdatedAt = now
	return nil
}

func (r *Transactions) Confirm(_ context.Context, id string, endDate time.Time, result model.TransactionResult, actions model.PotentialActions) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[id]
	if !ok || t.Status != model.TransactionStatusInProgress {
		return apperr.NotFound("transaction")
	}
	t.Status = model.TransactionStatusConfirmed
	t.EndDate = &endDate
	t.Result = &result
	t.PotentialActions = &actions
	t.UpdatedAt = endDate
	return nil
}

func (r *Transactions) MakeExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, t := range r.byID {
		if t.Status == model.TransactionStatusInProgress && t.Expires.Before(now) {
			end := now
			t.Status = model.TransactionStatusExpired
			t.EndDate = &end
			t.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (r *Transactions) StartExportTasks(_ context.Context, status model.TransactionStatus, now time.Time) (*model.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var candidates []*model.Transaction
	for _, t := range r.byID {
		if t.Status == status && t.TasksExportationStatus == model.TasksExportationStatusUnexported {
			candidates = append(candidates, t)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		return endOf(candidates[i]).Before(endOf(candidates[j]))
	})
	t := candidates[0]
	t.TasksExportationStatus = model.TasksExportationStatusExporting
	t.ExportClaim = uuid.NewString()
	t.UpdatedAt = now
	return copyTransaction(t), nil
}

func endOf(t *model.Transaction) time.Time {
	if t.EndDate == nil {
		return time.Time{}
	}
	return *t.EndDate
}

func (r *Transactions) SetTasksExported(_ context.Context, id, claim string, tasks []model.Task, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[id]
	if !ok || t.TasksExportationStatus != model.TasksExportationStatusExporting || t.ExportClaim != claim {
		return apperr.NotFound("transaction")
	}
	t.ExportClaim = ""
	t.TasksExportationStatus = model.TasksExportationStatusExported
	t.TasksExportedAt = &at
	t.Tasks = append([]model.Task(nil), tasks...)
	t.UpdatedAt = at
	return nil
}

func (r *Transactions) ReexportTasks(_ context.Context, olderThan time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, t := range r.byID {
		if t.TasksExportationStatus == model.TasksExportationStatusExporting && t.UpdatedAt.Before(olderThan) {
			t.TasksExportationStatus = model.TasksExportationStatusUnexported
			t.ExportClaim = ""
			n++
		}
	}
	return n, nil
}

// Actions is an in-memory action repository.
type Actions struct {
	mu    sync.Mutex
	byID  map[string]*model.AuthorizeAction
	order []string
}

func NewActions() *Actions {
	return &Actions{byID: map[string]*model.AuthorizeAction{}}
}

func (r *Actions) Start(_ context.Context, a *model.AuthorizeAction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byID[a.ID]; dup {
		return apperr.AlreadyInUse("action", "action %s exists", a.ID)
	}
	c := *a
	r.byID[a.ID] = &c
	r.order = append(r.order, a.ID)
	return nil
}

// Put stores a as is, bypassing the state machine.
func (r *Actions) Put(a model.AuthorizeAction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[a.ID]; !ok {
		r.order = append(r.order, a.ID)
	}
	r.byID[a.ID] = &a
}

func (r *Actions) transition(id string, from model.ActionStatus, apply func(a *model.AuthorizeAction)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok || a.ActionStatus != from {
		return apperr.NotFound("action")
	}
	apply(a)
	return nil
}

func (r *Actions) Complete(_ context.Context, id string, result model.AuthorizeResult, endDate time.Time) error {
	return r.transition(id, model.ActionStatusActive, func(a *model.AuthorizeAction) {
		a.ActionStatus = model.ActionStatusCompleted
		a.Result = result
		a.EndDate = &endDate
	})
}

func (r *Actions) GiveUp(_ context.Context, id string, actionErr model.ActionError, endDate time.Time) error {
	return r.transition(id, model.ActionStatusActive, func(a *model.AuthorizeAction) {
		a.ActionStatus = model.ActionStatusFailed
		a.Error = &actionErr
		a.EndDate = &endDate
	})
}

func (r *Actions) Cancel(_ context.Context, transactionID, id string) (*model.AuthorizeAction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok || a.Purpose.ID != transactionID || a.ActionStatus != model.ActionStatusCompleted {
		return nil, apperr.NotFound("action")
	}
	a.ActionStatus = model.ActionStatusCanceled
	c := *a
	return &c, nil
}

func (r *Actions) UpdateCompleted(_ context.Context, id string, object model.AuthorizeObject, result model.AuthorizeResult) error {
	return r.transition(id, model.ActionStatusCompleted, func(a *model.AuthorizeAction) {
		a.Object = object
		a.Result = result
	})
}

func (r *Actions) FindByID(_ context.Context, id string) (*model.AuthorizeAction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return nil, apperr.NotFound("action")
	}
	c := *a
	return &c, nil
}

func (r *Actions) FindAuthorizeByTransactionID(_ context.Context, transactionID string) ([]model.AuthorizeAction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.AuthorizeAction
	for _, id := range r.order {
		if a := r.byID[id]; a.Purpose.ID == transactionID {
			out = append(out, *a)
		}
	}
	return out, nil
}

// Tasks is an in-memory task repository.
type Tasks struct {
	mu   sync.Mutex
	byID map[string]*model.Task
}

func NewTasks() *Tasks {
	return &Tasks{byID: map[string]*model.Task{}}
}

func copyTask(t *model.Task) model.Task {
	c := *t
	c.ExecutionResults = append([]model.TaskExecutionResult{}, t.ExecutionResults...)
	return c
}

func (r *Tasks) Save(_ context.Context, tasks []model.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range tasks {
		if _, exists := r.byID[t.ID]; exists {
			continue
		}
		c := copyTask(&t)
		r.byID[t.ID] = &c
	}
	return nil
}

func (r *Tasks) Claim(_ context.Context, name model.TaskName, now time.Time) (*model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var best *model.Task
	for _, t := range r.byID {
		if t.Name != name || t.Status != model.TaskStatusReady || !t.RunsAt.Before(now) {
			continue
		}
		if best == nil || t.NumberOfTried < best.NumberOfTried ||
			(t.NumberOfTried == best.NumberOfTried && t.RunsAt.Before(best.RunsAt)) {
			best = t
		}
	}
	if best == nil {
		return nil, nil
	}
	at := now
	best.Status = model.TaskStatusRunning
	best.LastTriedAt = &at
	best.NumberOfTried++
	best.RemainingNumberOfTries--
	c := copyTask(best)
	return &c, nil
}

func (r *Tasks) PushExecutionResult(_ context.Context, id string, status model.TaskStatus, result model.TaskExecutionResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[id]
	if !ok {
		return apperr.NotFound("task")
	}
	t.Status = status
	t.ExecutionResults = append(t.ExecutionResults, result)
	return nil
}

func (r *Tasks) Retry(_ context.Context, lastTriedBefore time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, t := range r.byID {
		if t.Status == model.TaskStatusRunning && t.LastTriedAt != nil && t.LastTriedAt.Before(lastTriedBefore) && t.RemainingNumberOfTries > 0 {
			t.Status = model.TaskStatusReady
			n++
		}
	}
	return n, nil
}

func (r *Tasks) Abort(_ context.Context, lastTriedBefore time.Time) ([]model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Task
	for _, t := range r.byID {
		if t.Status == model.TaskStatusRunning && t.LastTriedAt != nil && t.LastTriedAt.Before(lastTriedBefore) && t.RemainingNumberOfTries == 0 {
			t.Status = model.TaskStatusAborted
			out = append(out, copyTask(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RunsAt.Before(out[j].RunsAt) })
	return out, nil
}

func (r *Tasks) AbortReadyRegistrations(_ context.Context, membershipNumber, programMembershipID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, t := range r.byID {
		if t.Name != model.TaskRegisterProgramMembership || t.Status != model.TaskStatusReady {
			continue
		}
		var data model.RegisterProgramMembershipData
		if err := t.DecodeData(&data); err != nil {
			continue
		}
		if data.MembershipNumber == membershipNumber && data.ProgramMembershipID == programMembershipID {
			t.Status = model.TaskStatusAborted
			n++
		}
	}
	return n, nil
}

// All returns every task sorted by name then runsAt.
func (r *Tasks) All() []model.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Task, 0, len(r.byID))
	for _, t := range r.byID {
		out = append(out, copyTask(t))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].RunsAt.Before(out[j].RunsAt)
	})
	return out
}

// Get returns one task.
func (r *Tasks) Get(id string) (model.Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[id]
	if !ok {
		return model.Task{}, false
	}
	return copyTask(t), true
}

// Catalog serves sellers, events and program memberships.
type Catalog struct {
	Sellers  map[string]*model.Seller
	Events   map[string]*model.ScreeningEvent
	Programs map[string]*model.ProgramMembership
}

func NewCatalog() *Catalog {
	return &Catalog{
		Sellers:  map[string]*model.Seller{},
		Events:   map[string]*model.ScreeningEvent{},
		Programs: map[string]*model.ProgramMembership{},
	}
}

// Sellers adapts the catalog to the seller repository.
type Sellers struct{ C *Catalog }

func (r Sellers) FindByID(_ context.Context, id string) (*model.Seller, error) {
	s, ok := r.C.Sellers[id]
	if !ok {
		return nil, apperr.NotFound("seller")
	}
	c := *s
	return &c, nil
}

// Events adapts the catalog to the event repository.
type Events struct{ C *Catalog }

func (r Events) FindByIdentifier(_ context.Context, identifier string) (*model.ScreeningEvent, error) {
	e, ok := r.C.Events[identifier]
	if !ok {
		return nil, apperr.NotFound("event")
	}
	c := *e
	return &c, nil
}

// Programs adapts the catalog to the program membership repository.
type Programs struct{ C *Catalog }

func (r Programs) FindByID(_ context.Context, id string) (*model.ProgramMembership, error) {
	p, ok := r.C.Programs[id]
	if !ok {
		return nil, apperr.NotFound("programMembership")
	}
	c := *p
	c.Offers = append([]model.ProgramMembershipOffer(nil), p.Offers...)
	return &c, nil
}

// Orders is an in-memory order repository.
type Orders struct {
	mu     sync.Mutex
	Orders map[string]model.Order
}

func NewOrders() *Orders { return &Orders{Orders: map[string]model.Order{}} }

func (r *Orders) Save(_ context.Context, o model.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Orders[o.OrderNumber] = o
	return nil
}

func (r *Orders) FindByOrderNumber(_ context.Context, orderNumber string) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.Orders[orderNumber]
	if !ok {
		return nil, apperr.NotFound("order")
	}
	return &o, nil
}

func (r *Orders) FindByInquiryKey(_ context.Context, key model.OrderInquiryKey) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.Orders {
		if o.OrderInquiryKey == key {
			return &o, nil
		}
	}
	return nil, apperr.NotFound("order")
}

// Ownerships is an in-memory ownership info repository keyed by identifier.
type Ownerships struct {
	mu    sync.Mutex
	Infos map[string]model.OwnershipInfo
}

func NewOwnerships() *Ownerships { return &Ownerships{Infos: map[string]model.OwnershipInfo{}} }

func (r *Ownerships) Save(_ context.Context, infos []model.OwnershipInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, info := range infos {
		if old, ok := r.Infos[info.Identifier]; ok {
			info.ID = old.ID
		}
		r.Infos[info.Identifier] = info
	}
	return nil
}

func (r *Ownerships) SearchActiveMembership(_ context.Context, ownedByID string, at time.Time) ([]model.OwnershipInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.OwnershipInfo
	for _, info := range r.Infos {
		if info.OwnedBy.ID == ownedByID && info.TypeOfGood.TypeOf() == model.GoodTypeProgramMembership && info.ActiveAt(at) {
			out = append(out, info)
		}
	}
	return out, nil
}

func (r *Ownerships) EndMembership(_ context.Context, ownedByID, programMembershipID string, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for k, info := range r.Infos {
		pm := info.TypeOfGood.ProgramMembership
		if info.OwnedBy.ID != ownedByID || pm == nil || pm.ID != programMembershipID || !info.OwnedThrough.After(at) {
			continue
		}
		info.OwnedThrough = at
		r.Infos[k] = info
		n++
	}
	return n, nil
}

// OrderNumbers hands out sequential order numbers.
type OrderNumbers struct {
	mu sync.Mutex
	n  int
}

func (r *OrderNumbers) Publish(_ context.Context, branchCode string, orderDate time.Time) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.n++
	return fmt.Sprintf("%s-%s-%06d", branchCode, orderDate.Format("060102"), r.n), nil
}

// Locks is an in-memory advisory lock.
type Locks struct {
	mu   sync.Mutex
	held map[string]string
}

func NewLocks() *Locks { return &Locks{held: map[string]string{}} }

func (r *Locks) Lock(_ context.Context, key string, _ time.Duration) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.held[key]; ok {
		return "", apperr.AlreadyInUse("lock", "%s is locked", key)
	}
	token := uuid.NewString()
	r.held[key] = token
	return token, nil
}

func (r *Locks) Unlock(_ context.Context, key, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.held[key] == token {
		delete(r.held, key)
	}
	return nil
}
