package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-ticket-order/internal/apperr"
	"github.com/iliyamo/cinema-ticket-order/internal/model"
	"github.com/iliyamo/cinema-ticket-order/internal/passport"
	"github.com/iliyamo/cinema-ticket-order/internal/service"
)

func TestStartTransaction(t *testing.T) {
	e := newEnv(t)
	tx := e.start(t, anonymous)

	assert.Equal(t, model.TransactionStatusInProgress, tx.Status)
	assert.Equal(t, model.TasksExportationStatusUnexported, tx.TasksExportationStatus)
	assert.Equal(t, "seller-1", tx.Seller.ID)
	assert.Equal(t, e.clock.Now().Add(15*time.Minute), tx.Expires)
	assert.NotEmpty(t, tx.Object.PassportToken)

	stored, err := e.txs.FindInProgressByID(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, tx.ID, stored.ID)
}

func TestStartTransactionPassport(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.verifier.Passports["good"] = model.Passport{Issuer: "cinema-waiter", Scope: passport.Scope("MovieTheater-118")}
	e.verifier.Passports["other-seller"] = model.Passport{Issuer: "cinema-waiter", Scope: passport.Scope("MovieTheater-999")}

	tx, err := e.txs.Start(ctx, service.StartParams{Agent: anonymous, SellerID: "seller-1", PassportToken: "good"})
	require.NoError(t, err)
	require.NotNil(t, tx.Object.Passport)
	assert.Equal(t, "good", tx.Object.PassportToken)

	_, err = e.txs.Start(ctx, service.StartParams{Agent: anonymous, SellerID: "seller-1", PassportToken: "good"})
	requireKind(t, err, apperr.KindAlreadyInUse)

	_, err = e.txs.Start(ctx, service.StartParams{Agent: anonymous, SellerID: "seller-1", PassportToken: "other-seller"})
	requireKind(t, err, apperr.KindArgument)

	_, err = e.txs.Start(ctx, service.StartParams{Agent: anonymous, SellerID: "seller-1", PassportToken: "forged"})
	requireKind(t, err, apperr.KindArgument)
}

func TestStartTransactionRejectsPastExpiry(t *testing.T) {
	e := newEnv(t)
	_, err := e.txs.Start(context.Background(), service.StartParams{
		Agent:    anonymous,
		SellerID: "seller-1",
		Expires:  e.clock.Now().Add(-time.Second),
	})
	requireKind(t, err, apperr.KindArgument)

	_, err = e.txs.Start(context.Background(), service.StartParams{Agent: anonymous, SellerID: "nowhere"})
	requireKind(t, err, apperr.KindNotFound)
}

func TestSetCustomerContactNormalizesTelephone(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tx := e.start(t, anonymous)

	got, err := e.txs.SetCustomerContact(ctx, anonymous.ID, tx.ID, contact)
	require.NoError(t, err)
	assert.Equal(t, "+81312345678", got.Telephone)

	stored, err := e.txs.FindByID(ctx, tx.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Object.CustomerContact)
	assert.Equal(t, "+81312345678", stored.Object.CustomerContact.Telephone)

	bad := contact
	bad.Telephone = "12"
	_, err = e.txs.SetCustomerContact(ctx, anonymous.ID, tx.ID, bad)
	requireKind(t, err, apperr.KindArgument)

	_, err = e.txs.SetCustomerContact(ctx, member.ID, tx.ID, contact)
	requireKind(t, err, apperr.KindForbidden)
}

// placeOrder reserves two general seats and pays them by card.
func placeOrder(t *testing.T, e *env) *model.Transaction {
	t.Helper()
	ctx := context.Background()
	tx := e.start(t, anonymous)
	_, err := e.seats.Create(ctx, anonymous.ID, tx.ID, "ev-1", []model.SeatReservationOffer{offer("A-1", "10"), offer("A-2", "10")})
	require.NoError(t, err)
	_, err = e.cards.Create(ctx, anonymous.ID, tx.ID, model.CreditCardObject{OrderID: "118-" + tx.ID[:8], Amount: 3600, Token: "tok_visa"})
	require.NoError(t, err)
	_, err = e.txs.SetCustomerContact(ctx, anonymous.ID, tx.ID, contact)
	require.NoError(t, err)
	return tx
}

func TestConfirm(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tx := placeOrder(t, e)

	result, err := e.txs.Confirm(ctx, service.ConfirmParams{AgentID: anonymous.ID, TransactionID: tx.ID, SendEmailMessage: true})
	require.NoError(t, err)

	order := result.Order
	assert.Equal(t, "118-261018-000001", order.OrderNumber)
	assert.Equal(t, model.OrderStatusProcessing, order.OrderStatus)
	assert.Equal(t, 3600, order.Price)
	assert.Equal(t, 1001, order.ConfirmationNumber)
	assert.Len(t, order.AcceptedOffers, 2)
	require.Len(t, order.PaymentMethods, 1)
	assert.Equal(t, model.PaymentMethodCreditCard, order.PaymentMethods[0].TypeOf)
	assert.Equal(t, model.OrderInquiryKey{TheaterCode: "118", ConfirmationNumber: 1001, Telephone: "+81312345678"}, order.OrderInquiryKey)
	assert.Equal(t, "Yamada Taro", order.Customer.Name)
	assert.Contains(t, order.URL, "https://tickets.example.com/inquiry?")

	require.Len(t, result.OwnershipInfos, 2)
	assert.Equal(t, e.catalog.Events["ev-1"].EndDate, result.OwnershipInfos[0].OwnedThrough)

	stored, err := e.txs.FindByID(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TransactionStatusConfirmed, stored.Status)
	require.NotNil(t, stored.PotentialActions)
	require.NotNil(t, stored.PotentialActions.PayCreditCard)
	assert.Equal(t, 3600, stored.PotentialActions.PayCreditCard.Amount)
	require.NotNil(t, stored.PotentialActions.SendOrder.SendEmailMessage)
	assert.Equal(t, "taro@example.com", stored.PotentialActions.SendOrder.SendEmailMessage.ToRecipient.Email)

	_, err = e.txs.Confirm(ctx, service.ConfirmParams{AgentID: anonymous.ID, TransactionID: tx.ID})
	requireKind(t, err, apperr.KindNotFound)
}

func TestConfirmRejectsUnbalancedActions(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tx := e.start(t, anonymous)
	_, err := e.seats.Create(ctx, anonymous.ID, tx.ID, "ev-1", []model.SeatReservationOffer{offer("A-1", "10")})
	require.NoError(t, err)
	_, err = e.txs.SetCustomerContact(ctx, anonymous.ID, tx.ID, contact)
	require.NoError(t, err)

	_, err = e.txs.Confirm(ctx, service.ConfirmParams{AgentID: anonymous.ID, TransactionID: tx.ID})
	requireKind(t, err, apperr.KindArgument)

	stored, _ := e.txs.FindByID(ctx, tx.ID)
	assert.Equal(t, model.TransactionStatusInProgress, stored.Status)
}

func TestConfirmRequiresCustomerContact(t *testing.T) {
	e := newEnv(t)
	tx := e.start(t, anonymous)
	_, err := e.txs.Confirm(context.Background(), service.ConfirmParams{AgentID: anonymous.ID, TransactionID: tx.ID})
	requireKind(t, err, apperr.KindArgument)
}

func TestConfirmIgnoresCanceledActions(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tx := placeOrder(t, e)

	extra, err := e.seats.Create(ctx, anonymous.ID, tx.ID, "ev-1", []model.SeatReservationOffer{offer("B-1", "10")})
	require.NoError(t, err)
	_, err = e.seats.Cancel(ctx, anonymous.ID, tx.ID, extra.ID)
	require.NoError(t, err)

	result, err := e.txs.Confirm(ctx, service.ConfirmParams{AgentID: anonymous.ID, TransactionID: tx.ID})
	require.NoError(t, err)
	assert.Equal(t, 3600, result.Order.Price)
}

func TestMakeExpiredIsIdempotent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tx := e.start(t, anonymous)
	keep, err := e.txs.Start(ctx, service.StartParams{Agent: anonymous, SellerID: "seller-1", Expires: e.clock.Now().Add(time.Hour)})
	require.NoError(t, err)

	n, err := e.txs.MakeExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	e.clock.Advance(16 * time.Minute)
	n, err = e.txs.MakeExpired(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = e.txs.MakeExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	stored, _ := e.txs.FindByID(ctx, tx.ID)
	assert.Equal(t, model.TransactionStatusExpired, stored.Status)
	still, _ := e.txs.FindByID(ctx, keep.ID)
	assert.Equal(t, model.TransactionStatusInProgress, still.Status)

	_, err = e.seats.Create(ctx, anonymous.ID, tx.ID, "ev-1", []model.SeatReservationOffer{offer("A-1", "10")})
	requireKind(t, err, apperr.KindNotFound)
}

func TestExportTasksRunsOncePerTransaction(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tx := e.start(t, anonymous)
	e.clock.Advance(16 * time.Minute)
	_, err := e.txs.MakeExpired(ctx)
	require.NoError(t, err)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		exported []*model.Transaction
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := e.txs.ExportTasks(ctx, model.TransactionStatusExpired)
			assert.NoError(t, err)
			if got != nil {
				mu.Lock()
				exported = append(exported, got)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, exported, 1)
	assert.Equal(t, tx.ID, exported[0].ID)
	tasks := e.tasks.All()
	assert.Len(t, tasks, 5)
	for _, task := range tasks {
		assert.Equal(t, model.TaskStatusReady, task.Status)
		assert.Equal(t, 3, task.RemainingNumberOfTries)
	}

	stored, _ := e.txs.FindByID(ctx, tx.ID)
	assert.Equal(t, model.TasksExportationStatusExported, stored.TasksExportationStatus)
	assert.NotNil(t, stored.TasksExportedAt)
}

func TestExportTasksOfConfirmedTransaction(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tx := placeOrder(t, e)
	_, err := e.txs.Confirm(ctx, service.ConfirmParams{AgentID: anonymous.ID, TransactionID: tx.ID})
	require.NoError(t, err)

	got, err := e.txs.ExportTasks(ctx, model.TransactionStatusConfirmed)
	require.NoError(t, err)
	require.NotNil(t, got)

	var names []model.TaskName
	for _, task := range got.Tasks {
		names = append(names, task.Name)
	}
	assert.Equal(t, []model.TaskName{model.TaskSettleSeatReservation, model.TaskSettlePayment, model.TaskCreateOrder}, names)

	none, err := e.txs.ExportTasks(ctx, model.TransactionStatusConfirmed)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestExportTasksRejectsNonTerminalStatus(t *testing.T) {
	e := newEnv(t)
	_, err := e.txs.ExportTasks(context.Background(), model.TransactionStatusInProgress)
	requireKind(t, err, apperr.KindArgument)
}

func TestReexportTasksReleasesStuckExports(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tx := e.start(t, anonymous)
	e.clock.Advance(16 * time.Minute)
	_, err := e.txs.MakeExpired(ctx)
	require.NoError(t, err)

	// A worker claimed the export and died.
	_, err = e.transactions.StartExportTasks(ctx, model.TransactionStatusExpired, e.clock.Now())
	require.NoError(t, err)

	n, err := e.txs.ReexportTasks(ctx, 10*time.Minute)
	require.NoError(t, err)
	assert.Zero(t, n)

	e.clock.Advance(11 * time.Minute)
	n, err = e.txs.ReexportTasks(ctx, 10*time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, err := e.txs.ExportTasks(ctx, model.TransactionStatusExpired)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, tx.ID, got.ID)
}

func TestStaleExporterDoesNotDuplicateTasks(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tx := e.start(t, anonymous)
	e.clock.Advance(16 * time.Minute)
	_, err := e.txs.MakeExpired(ctx)
	require.NoError(t, err)

	slow, err := e.transactions.StartExportTasks(ctx, model.TransactionStatusExpired, e.clock.Now())
	require.NoError(t, err)
	require.NotNil(t, slow)

	e.clock.Advance(11 * time.Minute)
	_, err = e.txs.ReexportTasks(ctx, 10*time.Minute)
	require.NoError(t, err)
	fast, err := e.txs.ExportTasks(ctx, model.TransactionStatusExpired)
	require.NoError(t, err)
	require.NotNil(t, fast)
	exported := len(e.tasks.All())

	// The first exporter resumes with its released claim.
	tasks, err := e.txs.ExportTasksByID(ctx, tx.ID)
	require.NoError(t, err)
	err = e.transactions.SetTasksExported(ctx, tx.ID, slow.ExportClaim, tasks, e.clock.Now())
	requireKind(t, err, apperr.KindNotFound)

	assert.Len(t, e.tasks.All(), exported)
	assert.Len(t, fast.Tasks, exported)
}
