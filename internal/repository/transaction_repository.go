package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/cinema-ticket-order/internal/apperr"
	"github.com/iliyamo/cinema-ticket-order/internal/model"
)

// TransactionRepo persists place-order transactions in the `transactions`
// table. passport_token carries a UNIQUE index, which is what makes a
// passport single-use.
type TransactionRepo struct{ DB *sql.DB }

func NewTransactionRepo(db *sql.DB) *TransactionRepo { return &TransactionRepo{DB: db} }

const transactionColumns = `id, type_of, status, agent, seller, object, expires, start_date, end_date,
	result, potential_actions, tasks_exportation_status, tasks_exported_at, tasks, updated_at`

func scanTransaction(s rowScanner) (*model.Transaction, error) {
	var (
		t                               model.Transaction
		agent, seller, object           []byte
		result, potentialActions, tasks []byte
		endDate, tasksExportedAt        sql.NullTime
	)
	err := s.Scan(&t.ID, &t.TypeOf, &t.Status, &agent, &seller, &object, &t.Expires, &t.StartDate, &endDate,
		&result, &potentialActions, &t.TasksExportationStatus, &tasksExportedAt, &tasks, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a, err := decodeJSON[model.Party](agent)
	if err != nil {
		return nil, err
	}
	sl, err := decodeJSON[model.Party](seller)
	if err != nil {
		return nil, err
	}
	o, err := decodeJSON[model.TransactionObject](object)
	if err != nil {
		return nil, err
	}
	if a != nil {
		t.Agent = *a
	}
	if sl != nil {
		t.Seller = *sl
	}
	if o != nil {
		t.Object = *o
	}
	if t.Result, err = decodeJSON[model.TransactionResult](result); err != nil {
		return nil, err
	}
	if t.PotentialActions, err = decodeJSON[model.PotentialActions](potentialActions); err != nil {
		return nil, err
	}
	ts, err := decodeJSON[[]model.Task](tasks)
	if err != nil {
		return nil, err
	}
	if ts != nil {
		t.Tasks = *ts
	}
	t.EndDate = nullTimePtr(endDate)
	t.TasksExportedAt = nullTimePtr(tasksExportedAt)
	return &t, nil
}

// Start inserts a new transaction. A second transaction with the same
// passport token fails with AlreadyInUse.
func (r *TransactionRepo) Start(ctx context.Context, t *model.Transaction) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO transactions (id, type_of, status, agent, seller, object, passport_token, expires, start_date,
			tasks_exportation_status, updated_at) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.TypeOf, t.Status, mustJSON(t.Agent), mustJSON(t.Seller), mustJSON(t.Object),
		t.Object.PassportToken, t.Expires, t.StartDate, t.TasksExportationStatus, t.UpdatedAt)
	if err != nil {
		if isDuplicateKey(err) {
			return apperr.AlreadyInUse("transaction", "passport token already in use")
		}
		return err
	}
	return nil
}

// FindByID loads a transaction in any status.
func (r *TransactionRepo) FindByID(ctx context.Context, id string) (*model.Transaction, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE id=? LIMIT 1", id)
	t, err := scanTransaction(row)
	if err != nil {
		return nil, notFoundOr(err, "transaction")
	}
	return t, nil
}

// FindInProgressByID loads a transaction only while it is InProgress.
func (r *TransactionRepo) FindInProgressByID(ctx context.Context, id string) (*model.Transaction, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE id=? AND status=? LIMIT 1",
		id, model.TransactionStatusInProgress)
	t, err := scanTransaction(row)
	if err != nil {
		return nil, notFoundOr(err, "transaction")
	}
	return t, nil
}

// SetCustomerContact stores the contact on an InProgress transaction.
func (r *TransactionRepo) SetCustomerContact(ctx context.Context, id string, contact model.CustomerContact, now time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE transactions SET object=JSON_SET(object, '$.customerContact', CAST(? AS JSON)), updated_at=?
		 WHERE id=? AND status=?`,
		mustJSON(contact), now, id, model.TransactionStatusInProgress)
	return expectOneRow(res, err, "transaction")
}

// Confirm moves an InProgress transaction to Confirmed, attaching the result
// and potential actions in the same statement. When the transaction is no
// longer InProgress nothing is written and NotFound is returned.
func (r *TransactionRepo) Confirm(ctx context.Context, id string, endDate time.Time, result model.TransactionResult, actions model.PotentialActions) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE transactions SET status=?, end_date=?, result=?, potential_actions=?, updated_at=?
		 WHERE id=? AND status=?`,
		model.TransactionStatusConfirmed, endDate, mustJSON(result), mustJSON(actions), endDate,
		id, model.TransactionStatusInProgress)
	return expectOneRow(res, err, "transaction")
}

// MakeExpired expires every InProgress transaction whose deadline has passed
// and returns how many rows changed. Rows already expired do not match again.
func (r *TransactionRepo) MakeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE transactions SET status=?, end_date=?, updated_at=? WHERE status=? AND expires < ?`,
		model.TransactionStatusExpired, now, now, model.TransactionStatusInProgress, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// StartExportTasks claims one transaction in status whose tasks were not
// exported yet. The claim stamps a fresh token on exactly one row, which is
// then read back by that token. It returns nil when nothing is claimable.
func (r *TransactionRepo) StartExportTasks(ctx context.Context, status model.TransactionStatus, now time.Time) (*model.Transaction, error) {
	token := uuid.NewString()
	res, err := r.DB.ExecContext(ctx,
		`UPDATE transactions SET tasks_exportation_status=?, claim_token=?, updated_at=?
		 WHERE status=? AND tasks_exportation_status=? ORDER BY end_date ASC LIMIT 1`,
		model.TasksExportationStatusExporting, token, now, status, model.TasksExportationStatusUnexported)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE claim_token=? LIMIT 1", token)
	t, err := scanTransaction(row)
	if err != nil {
		return nil, notFoundOr(err, "transaction")
	}
	t.ExportClaim = token
	return t, nil
}

// SetTasksExported records the exported tasks and finishes the claim. A
// claim released by ReexportTasks and taken by another exporter no longer
// matches, so the stale holder gets NotFound.
func (r *TransactionRepo) SetTasksExported(ctx context.Context, id, claim string, tasks []model.Task, at time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE transactions SET tasks_exportation_status=?, tasks_exported_at=?, tasks=?, claim_token=NULL, updated_at=?
		 WHERE id=? AND tasks_exportation_status=? AND claim_token=?`,
		model.TasksExportationStatusExported, at, mustJSON(tasks), at, id, model.TasksExportationStatusExporting, claim)
	return expectOneRow(res, err, "transaction")
}

// ReexportTasks releases export claims older than olderThan so a crashed
// exporter cannot hold a transaction forever.
func (r *TransactionRepo) ReexportTasks(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE transactions SET tasks_exportation_status=?, claim_token=NULL
		 WHERE tasks_exportation_status=? AND updated_at < ?`,
		model.TasksExportationStatusUnexported, model.TasksExportationStatusExporting, olderThan)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// expectOneRow turns a conditional update that matched nothing into NotFound.
func expectOneRow(res sql.Result, err error, entity string) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound(entity)
	}
	return nil
}
