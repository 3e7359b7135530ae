package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/cinema-ticket-order/internal/model"
)

// ActionRepo persists authorize actions in the `actions` table. The object
// and result columns hold one variant of the authorize union, discriminated
// by object_type.
type ActionRepo struct{ DB *sql.DB }

func NewActionRepo(db *sql.DB) *ActionRepo { return &ActionRepo{DB: db} }

const actionColumns = `id, type_of, action_status, object_type, agent, recipient, purpose_type, purpose_id,
	object, result, error, start_date, end_date`

func scanAction(s rowScanner) (*model.AuthorizeAction, error) {
	var (
		a                         model.AuthorizeAction
		objectType                model.AuthorizeObjectType
		agent, recipient          []byte
		object, result, actionErr []byte
		endDate                   sql.NullTime
	)
	err := s.Scan(&a.ID, &a.TypeOf, &a.ActionStatus, &objectType, &agent, &recipient, &a.Purpose.TypeOf, &a.Purpose.ID,
		&object, &result, &actionErr, &a.StartDate, &endDate)
	if err != nil {
		return nil, err
	}
	ag, err := decodeJSON[model.Party](agent)
	if err != nil {
		return nil, err
	}
	rc, err := decodeJSON[model.Party](recipient)
	if err != nil {
		return nil, err
	}
	if ag != nil {
		a.Agent = *ag
	}
	if rc != nil {
		a.Recipient = *rc
	}
	if a.Object, err = model.DecodeAuthorizeObject(objectType, object); err != nil {
		return nil, err
	}
	if a.Result, err = model.DecodeAuthorizeResult(objectType, result); err != nil {
		return nil, err
	}
	if a.Error, err = decodeJSON[model.ActionError](actionErr); err != nil {
		return nil, err
	}
	a.EndDate = nullTimePtr(endDate)
	return &a, nil
}

// Start inserts a new Active action.
func (r *ActionRepo) Start(ctx context.Context, a *model.AuthorizeAction) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO actions (id, type_of, action_status, object_type, agent, recipient, purpose_type, purpose_id,
			object, start_date) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		a.ID, a.TypeOf, a.ActionStatus, a.ObjectType(), mustJSON(a.Agent), mustJSON(a.Recipient),
		a.Purpose.TypeOf, a.Purpose.ID, mustJSON(a.Object), a.StartDate)
	return err
}

// Complete moves an Active action to Completed with its result.
func (r *ActionRepo) Complete(ctx context.Context, id string, result model.AuthorizeResult, endDate time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE actions SET action_status=?, result=?, end_date=? WHERE id=? AND action_status=?`,
		model.ActionStatusCompleted, mustJSON(result), endDate, id, model.ActionStatusActive)
	return expectOneRow(res, err, "action")
}

// GiveUp moves an Active action to Failed, recording why.
func (r *ActionRepo) GiveUp(ctx context.Context, id string, actionErr model.ActionError, endDate time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE actions SET action_status=?, error=?, end_date=? WHERE id=? AND action_status=?`,
		model.ActionStatusFailed, mustJSON(actionErr), endDate, id, model.ActionStatusActive)
	return expectOneRow(res, err, "action")
}

// Cancel flips a Completed action of the transaction to Canceled and returns
// it. Only a previously completed result may be reversed, so any other state
// is NotFound.
func (r *ActionRepo) Cancel(ctx context.Context, transactionID, id string) (*model.AuthorizeAction, error) {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE actions SET action_status=? WHERE id=? AND purpose_id=? AND action_status=?`,
		model.ActionStatusCanceled, id, transactionID, model.ActionStatusCompleted)
	if err := expectOneRow(res, err, "action"); err != nil {
		return nil, err
	}
	return r.FindByID(ctx, id)
}

// UpdateCompleted replaces object and result of a Completed action.
func (r *ActionRepo) UpdateCompleted(ctx context.Context, id string, object model.AuthorizeObject, result model.AuthorizeResult) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE actions SET object=?, result=? WHERE id=? AND action_status=?`,
		mustJSON(object), mustJSON(result), id, model.ActionStatusCompleted)
	return expectOneRow(res, err, "action")
}

func (r *ActionRepo) FindByID(ctx context.Context, id string) (*model.AuthorizeAction, error) {
	row := r.DB.QueryRowContext(ctx, "SELECT "+actionColumns+" FROM actions WHERE id=? LIMIT 1", id)
	a, err := scanAction(row)
	if err != nil {
		return nil, notFoundOr(err, "action")
	}
	return a, nil
}

// FindAuthorizeByTransactionID lists every authorize action of a transaction
// in start order, whatever its status.
func (r *ActionRepo) FindAuthorizeByTransactionID(ctx context.Context, transactionID string) ([]model.AuthorizeAction, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+actionColumns+" FROM actions WHERE purpose_id=? AND type_of=? ORDER BY start_date ASC, id ASC",
		transactionID, model.ActionTypeAuthorize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.AuthorizeAction
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}
