package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-ticket-order/internal/apperr"
	"github.com/iliyamo/cinema-ticket-order/internal/gateway"
	"github.com/iliyamo/cinema-ticket-order/internal/model"
	"github.com/iliyamo/cinema-ticket-order/internal/service"
)

func readyTask(id string, name model.TaskName, runsAt time.Time, tried, remaining int) model.Task {
	return model.Task{
		ID:                     id,
		Name:                   name,
		Status:                 model.TaskStatusReady,
		RunsAt:                 runsAt,
		NumberOfTried:          tried,
		RemainingNumberOfTries: remaining,
		ExecutionResults:       []model.TaskExecutionResult{},
		Data:                   json.RawMessage(`{}`),
	}
}

func TestExecuteByNameClaimOrder(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	now := e.clock.Now()
	var ran []string
	e.taskRunner.Handle(model.TaskSendEmailMessage, func(_ context.Context, task model.Task) error {
		ran = append(ran, task.ID)
		return nil
	})
	require.NoError(t, e.taskRunner.Save(ctx, []model.Task{
		readyTask("retried", model.TaskSendEmailMessage, now.Add(-10*time.Minute), 1, 2),
		readyTask("newer", model.TaskSendEmailMessage, now.Add(-5*time.Minute), 0, 3),
		readyTask("older", model.TaskSendEmailMessage, now.Add(-8*time.Minute), 0, 3),
		readyTask("due-now", model.TaskSendEmailMessage, now, 0, 3),
		readyTask("future", model.TaskSendEmailMessage, now.Add(time.Minute), 0, 3),
		readyTask("other-name", model.TaskCreateOrder, now.Add(-time.Hour), 0, 3),
	}))

	for {
		task, err := e.taskRunner.ExecuteByName(ctx, model.TaskSendEmailMessage)
		require.NoError(t, err)
		if task == nil {
			break
		}
	}
	assert.Equal(t, []string{"older", "newer", "retried"}, ran)

	older, _ := e.tasks.Get("older")
	assert.Equal(t, model.TaskStatusExecuted, older.Status)
	assert.Equal(t, 1, older.NumberOfTried)
	assert.Equal(t, 2, older.RemainingNumberOfTries)
	require.Len(t, older.ExecutionResults, 1)
	assert.Empty(t, older.ExecutionResults[0].Error)
}

func TestRetryAndAbortBoundaries(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	now := e.clock.Now()
	e.taskRunner.Handle(model.TaskSendEmailMessage, func(context.Context, model.Task) error {
		return errors.New("smtp relay refused")
	})
	require.NoError(t, e.taskRunner.Save(ctx, []model.Task{
		readyTask("last-try", model.TaskSendEmailMessage, now.Add(-time.Minute), 0, 1),
		readyTask("has-tries", model.TaskSendEmailMessage, now.Add(-30*time.Second), 0, 2),
	}))
	for i := 0; i < 2; i++ {
		task, err := e.taskRunner.ExecuteByName(ctx, model.TaskSendEmailMessage)
		require.Error(t, err)
		require.NotNil(t, task)
	}
	lastTry, _ := e.tasks.Get("last-try")
	assert.Equal(t, model.TaskStatusRunning, lastTry.Status)
	assert.Equal(t, 0, lastTry.RemainingNumberOfTries)
	assert.Equal(t, "smtp relay refused", lastTry.ExecutionResults[0].Error)

	// Exactly at the interval nothing is old enough yet.
	e.clock.Advance(10 * time.Minute)
	n, err := e.taskRunner.Retry(ctx, 10*time.Minute)
	require.NoError(t, err)
	assert.Zero(t, n)
	aborted, err := e.taskRunner.Abort(ctx, 10*time.Minute)
	require.NoError(t, err)
	assert.Empty(t, aborted)

	e.clock.Advance(time.Second)
	n, err = e.taskRunner.Retry(ctx, 10*time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	aborted, err = e.taskRunner.Abort(ctx, 10*time.Minute)
	require.NoError(t, err)
	require.Len(t, aborted, 1)
	assert.Equal(t, "last-try", aborted[0].ID)

	hasTries, _ := e.tasks.Get("has-tries")
	assert.Equal(t, model.TaskStatusReady, hasTries.Status)
	lastTry, _ = e.tasks.Get("last-try")
	assert.Equal(t, model.TaskStatusAborted, lastTry.Status)

	require.Len(t, e.publisher.Aborted, 1)
	assert.Equal(t, "last-try", e.publisher.Aborted[0].TaskID)
	assert.Equal(t, "smtp relay refused", e.publisher.Aborted[0].LastError)
}

func TestExecuteWithoutHandler(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	bare := service.NewTaskService(service.TaskServiceProperty{
		Logger:         e.logger,
		TaskRepository: e.tasks,
		Now:            e.clock.Now,
	})
	task := readyTask("t-1", model.TaskSettlePayment, e.clock.Now().Add(-time.Second), 0, 3)
	require.NoError(t, bare.Save(ctx, []model.Task{task}))

	_, err := bare.ExecuteByName(ctx, model.TaskSettlePayment)
	requireKind(t, err, apperr.KindNotImplemented)
	got, _ := e.tasks.Get("t-1")
	assert.Equal(t, model.TaskStatusRunning, got.Status)
}

// runAll executes every ready task until none is left.
func runAll(t *testing.T, e *env) {
	t.Helper()
	ctx := context.Background()
	e.clock.Advance(time.Second)
	for _, name := range model.TaskNames {
		for {
			task, err := e.taskRunner.ExecuteByName(ctx, name)
			require.NoError(t, err, "task %s", name)
			if task == nil {
				break
			}
		}
	}
}

func TestSettleConfirmedTransaction(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tx := placeOrder(t, e)
	result, err := e.txs.Confirm(ctx, service.ConfirmParams{AgentID: anonymous.ID, TransactionID: tx.ID, SendEmailMessage: true})
	require.NoError(t, err)
	_, err = e.txs.ExportTasks(ctx, model.TransactionStatusConfirmed)
	require.NoError(t, err)

	runAll(t, e)
	// send-email-message is created by create-order.
	runAll(t, e)

	require.Len(t, e.seatGW.Confirmed, 1)
	settled := e.seatGW.Confirmed[0]
	assert.Equal(t, 3600, settled.ReserveAmount)
	assert.Equal(t, "81312345678", settled.TelNum)
	assert.Len(t, settled.ListTicket, 2)

	require.Len(t, e.paymentGW.Alters, 1)
	assert.Equal(t, gateway.JobCodeSales, e.paymentGW.Alters[0].JobCode)
	assert.Equal(t, 3600, e.paymentGW.Alters[0].Amount)

	order, err := e.orderLookup.FindByOrderNumber(ctx, result.Order.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusDelivered, order.OrderStatus)

	byKey, err := e.orderLookup.FindByInquiryKey(ctx, model.OrderInquiryKey{TheaterCode: "118", ConfirmationNumber: 1001, Telephone: "03-1234-5678"})
	require.NoError(t, err)
	assert.Equal(t, order.OrderNumber, byKey.OrderNumber)

	require.Len(t, e.publisher.Emails, 1)
	assert.Equal(t, order.OrderNumber, e.publisher.Emails[0].OrderNumber)
	assert.Equal(t, "taro@example.com", e.publisher.Emails[0].RecipientEmail)

	for _, task := range e.tasks.All() {
		assert.Equal(t, model.TaskStatusExecuted, task.Status, "task %s", task.Name)
	}
}

func TestSettleHandlersAreRepeatable(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tx := placeOrder(t, e)
	_, err := e.txs.Confirm(ctx, service.ConfirmParams{AgentID: anonymous.ID, TransactionID: tx.ID, SendEmailMessage: true})
	require.NoError(t, err)
	exported, err := e.txs.ExportTasks(ctx, model.TransactionStatusConfirmed)
	require.NoError(t, err)
	runAll(t, e)
	before := len(e.tasks.All())

	for _, task := range exported.Tasks {
		require.NoError(t, e.taskRunner.Execute(ctx, task), "task %s", task.Name)
	}
	assert.Len(t, e.paymentGW.Alters, 1)
	assert.Len(t, e.tasks.All(), before)
}

func TestCancelExpiredTransaction(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tx := placeOrder(t, e)
	e.clock.Advance(16 * time.Minute)
	_, err := e.txs.MakeExpired(ctx)
	require.NoError(t, err)
	exported, err := e.txs.ExportTasks(ctx, model.TransactionStatusExpired)
	require.NoError(t, err)
	require.Equal(t, tx.ID, exported.ID)

	runAll(t, e)

	require.Len(t, e.seatGW.Released, 1)
	assert.Equal(t, 1001, e.seatGW.Released[0].TmpReserveNum)
	require.Len(t, e.paymentGW.Alters, 1)
	assert.Equal(t, gateway.JobCodeVoid, e.paymentGW.Alters[0].JobCode)
	assert.Empty(t, e.seatGW.Confirmed)

	for _, task := range exported.Tasks {
		if task.Name == model.TaskCancelPayment {
			require.NoError(t, e.taskRunner.Execute(ctx, task))
		}
	}
	assert.Len(t, e.paymentGW.Alters, 1)
}

func TestSettleTaskRejectsWrongTransactionState(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tx := e.start(t, anonymous)
	task := readyTask("t-1", model.TaskSettleSeatReservation, e.clock.Now().Add(-time.Second), 0, 3)
	task.Data = json.RawMessage(`{"transactionId":"` + tx.ID + `"}`)
	require.NoError(t, e.taskRunner.Save(ctx, []model.Task{task}))

	_, err := e.taskRunner.ExecuteByName(ctx, model.TaskSettleSeatReservation)
	requireKind(t, err, apperr.KindArgument)
	assert.Empty(t, e.seatGW.Confirmed)
}
