// Package repository implements persistence for the place-order domain on
// MySQL and Redis. Every state transition that matters for correctness is a
// conditional UPDATE that matches the expected current state; a statement
// that affects no rows means another worker got there first.
//
// Repositories report failures callers branch on as *apperr.Error values:
// a missing row is apperr.KindNotFound and a unique key violation is
// apperr.KindAlreadyInUse. Other driver errors are returned unchanged.
package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/cinema-ticket-order/internal/apperr"
)

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// isDuplicateKey reports whether err is a unique key violation.
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == mysqlDuplicateEntry
	}
	return strings.Contains(strings.ToLower(err.Error()), "1062")
}

// notFoundOr maps sql.ErrNoRows to a NotFound error for entity.
func notFoundOr(err error, entity string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound(entity)
	}
	return err
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// mustJSON encodes v for a JSON column. Encoding domain structs cannot fail.
func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic("repository: encode json column: " + err.Error())
	}
	return b
}

// nullJSON encodes v, or returns nil for a NULL column when v is nil.
func nullJSON[T any](v *T) []byte {
	if v == nil {
		return nil
	}
	return mustJSON(v)
}

// decodeJSON decodes a nullable JSON column into a new T.
func decodeJSON[T any](raw []byte) (*T, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	v := new(T)
	if err := json.Unmarshal(raw, v); err != nil {
		return nil, err
	}
	return v, nil
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
