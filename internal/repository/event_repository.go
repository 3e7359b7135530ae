package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/cinema-ticket-order/internal/model"
)

// EventRepo reads screening events imported from the seat reservation
// gateway.
type EventRepo struct{ DB *sql.DB }

func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{DB: db} }

func (r *EventRepo) FindByIdentifier(ctx context.Context, identifier string) (*model.ScreeningEvent, error) {
	var e model.ScreeningEvent
	err := r.DB.QueryRowContext(ctx,
		`SELECT identifier, name, seller_id, theater_code, screen_code, date_jouei, title_code, title_branch_num,
			time_begin, start_date, end_date, mvtk_exclude_flg FROM screening_events WHERE identifier=? LIMIT 1`,
		identifier,
	).Scan(&e.Identifier, &e.Name, &e.SellerID, &e.TheaterCode, &e.ScreenCode, &e.DateJouei, &e.TitleCode,
		&e.TitleBranchNum, &e.TimeBegin, &e.StartDate, &e.EndDate, &e.MvtkExcludeFlg)
	if err != nil {
		return nil, notFoundOr(err, "event")
	}
	return &e, nil
}
