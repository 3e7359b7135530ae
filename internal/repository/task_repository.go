package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/cinema-ticket-order/internal/model"
)

// TaskRepo stores deferred tasks in the `tasks` table. The poll index is
// (name, status, number_of_tried, runs_at): claims take the fewest-tried
// task first and the oldest runs_at among equals.
type TaskRepo struct{ DB *sql.DB }

func NewTaskRepo(db *sql.DB) *TaskRepo { return &TaskRepo{DB: db} }

const taskColumns = `id, name, status, runs_at, remaining_number_of_tries, number_of_tried, last_tried_at,
	execution_results, data`

func scanTask(s rowScanner) (*model.Task, error) {
	var (
		t           model.Task
		lastTriedAt sql.NullTime
		results     []byte
		data        []byte
	)
	err := s.Scan(&t.ID, &t.Name, &t.Status, &t.RunsAt, &t.RemainingNumberOfTries, &t.NumberOfTried, &lastTriedAt,
		&results, &data)
	if err != nil {
		return nil, err
	}
	rs, err := decodeJSON[[]model.TaskExecutionResult](results)
	if err != nil {
		return nil, err
	}
	if rs != nil {
		t.ExecutionResults = *rs
	}
	t.LastTriedAt = nullTimePtr(lastTriedAt)
	t.Data = data
	return &t, nil
}

func scanTasks(rows *sql.Rows) ([]model.Task, error) {
	defer rows.Close()
	var out []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// Save inserts tasks in one database transaction. A task whose id already
// exists is left as it is, so saving the same follow-up tasks twice is safe.
func (r *TaskRepo) Save(ctx context.Context, tasks []model.Task) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	for _, t := range tasks {
		results := t.ExecutionResults
		if results == nil {
			results = []model.TaskExecutionResult{}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT IGNORE INTO tasks (id, name, status, runs_at, remaining_number_of_tries, number_of_tried, execution_results, data)
			 VALUES (?,?,?,?,?,?,?,?)`,
			t.ID, t.Name, t.Status, t.RunsAt, t.RemainingNumberOfTries, t.NumberOfTried, mustJSON(results), []byte(t.Data),
		); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// Claim flips one Ready task named name with runs_at before now to Running,
// counting the attempt. It returns nil when no task is claimable.
func (r *TaskRepo) Claim(ctx context.Context, name model.TaskName, now time.Time) (*model.Task, error) {
	token := uuid.NewString()
	res, err := r.DB.ExecContext(ctx,
		`UPDATE tasks SET status=?, claim_token=?, last_tried_at=?,
			number_of_tried=number_of_tried+1, remaining_number_of_tries=remaining_number_of_tries-1
		 WHERE name=? AND status=? AND runs_at < ?
		 ORDER BY number_of_tried ASC, runs_at ASC LIMIT 1`,
		model.TaskStatusRunning, token, now, name, model.TaskStatusReady, now)
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
	t, err := scanTask(r.DB.QueryRowContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE claim_token=? LIMIT 1", token))
	if err != nil {
		return nil, notFoundOr(err, "task")
	}
	return t, nil
}

// PushExecutionResult appends an attempt outcome and sets the status.
func (r *TaskRepo) PushExecutionResult(ctx context.Context, id string, status model.TaskStatus, result model.TaskExecutionResult) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE tasks SET status=?, execution_results=JSON_ARRAY_APPEND(execution_results, '$', CAST(? AS JSON))
		 WHERE id=?`,
		status, mustJSON(result), id)
	return expectOneRow(res, err, "task")
}

// Retry makes Running tasks last tried before lastTriedBefore Ready again,
// as long as they have tries left.
func (r *TaskRepo) Retry(ctx context.Context, lastTriedBefore time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE tasks SET status=?, claim_token=NULL
		 WHERE status=? AND last_tried_at < ? AND remaining_number_of_tries > 0`,
		model.TaskStatusReady, model.TaskStatusRunning, lastTriedBefore)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Abort gives up on Running tasks last tried before lastTriedBefore that have
// no tries left and returns them so they can be reported.
func (r *TaskRepo) Abort(ctx context.Context, lastTriedBefore time.Time) ([]model.Task, error) {
	token := uuid.NewString()
	res, err := r.DB.ExecContext(ctx,
		`UPDATE tasks SET status=?, claim_token=?
		 WHERE status=? AND last_tried_at < ? AND remaining_number_of_tries = 0`,
		model.TaskStatusAborted, token, model.TaskStatusRunning, lastTriedBefore)
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
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE claim_token=? ORDER BY runs_at ASC", token)
	if err != nil {
		return nil, err
	}
	return scanTasks(rows)
}

// AbortReadyRegistrations aborts the scheduled membership renewals of one
// member and program.
func (r *TaskRepo) AbortReadyRegistrations(ctx context.Context, membershipNumber, programMembershipID string) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE tasks SET status=?
		 WHERE name=? AND status=?
		   AND JSON_UNQUOTE(JSON_EXTRACT(data, '$.membershipNumber'))=?
		   AND JSON_UNQUOTE(JSON_EXTRACT(data, '$.programMembershipId'))=?`,
		model.TaskStatusAborted, model.TaskRegisterProgramMembership, model.TaskStatusReady,
		membershipNumber, programMembershipID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// FindByID loads one task.
func (r *TaskRepo) FindByID(ctx context.Context, id string) (*model.Task, error) {
	t, err := scanTask(r.DB.QueryRowContext(ctx, "SELECT "+taskColumns+" FROM tasks WHERE id=? LIMIT 1", id))
	if err != nil {
		return nil, notFoundOr(err, "task")
	}
	return t, nil
}
