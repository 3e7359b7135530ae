package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/cinema-ticket-order/internal/model"
)

// OwnershipRepo stores ownership infos. The ownership window lives in its
// own columns so time-windowed searches can use an index; the columns win
// over the JSON copy when reading.
type OwnershipRepo struct{ DB *sql.DB }

func NewOwnershipRepo(db *sql.DB) *OwnershipRepo { return &OwnershipRepo{DB: db} }

// Save upserts ownership infos by identifier.
func (r *OwnershipRepo) Save(ctx context.Context, infos []model.OwnershipInfo) error {
	for _, o := range infos {
		var programID sql.NullString
		if pm := o.TypeOfGood.ProgramMembership; pm != nil {
			programID = sql.NullString{String: pm.ID, Valid: true}
		}
		if _, err := r.DB.ExecContext(ctx,
			`INSERT INTO ownership_infos (id, identifier, owned_by_id, type_of_good, program_membership_id,
				owned_from, owned_through, data) VALUES (?,?,?,?,?,?,?,?)
			 ON DUPLICATE KEY UPDATE owned_from=VALUES(owned_from), owned_through=VALUES(owned_through), data=VALUES(data)`,
			o.ID, o.Identifier, o.OwnedBy.ID, o.TypeOfGood.TypeOf(), programID, o.OwnedFrom, o.OwnedThrough, mustJSON(o),
		); err != nil {
			return err
		}
	}
	return nil
}

// SearchActiveMembership returns the program memberships ownedByID holds at
// the given instant (owned_from <= at <= owned_through).
func (r *OwnershipRepo) SearchActiveMembership(ctx context.Context, ownedByID string, at time.Time) ([]model.OwnershipInfo, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT data, owned_from, owned_through FROM ownership_infos
		 WHERE owned_by_id=? AND type_of_good=? AND owned_from <= ? AND owned_through >= ?
		 ORDER BY owned_from DESC`,
		ownedByID, model.GoodTypeProgramMembership, at, at)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.OwnershipInfo
	for rows.Next() {
		var (
			data          []byte
			from, through time.Time
		)
		if err := rows.Scan(&data, &from, &through); err != nil {
			return nil, err
		}
		o, err := decodeJSON[model.OwnershipInfo](data)
		if err != nil {
			return nil, err
		}
		if o == nil {
			continue
		}
		o.OwnedFrom, o.OwnedThrough = from, through
		out = append(out, *o)
	}
	return out, rows.Err()
}

// EndMembership cuts every still-running ownership of the program short at
// the given instant.
func (r *OwnershipRepo) EndMembership(ctx context.Context, ownedByID, programMembershipID string, at time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE ownership_infos SET owned_through=?
		 WHERE owned_by_id=? AND program_membership_id=? AND owned_through > ?`,
		at, ownedByID, programMembershipID, at)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
