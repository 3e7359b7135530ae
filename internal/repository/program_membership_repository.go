package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/cinema-ticket-order/internal/model"
)

// ProgramMembershipRepo reads membership programs and their offers.
type ProgramMembershipRepo struct{ DB *sql.DB }

func NewProgramMembershipRepo(db *sql.DB) *ProgramMembershipRepo {
	return &ProgramMembershipRepo{DB: db}
}

func (r *ProgramMembershipRepo) FindByID(ctx context.Context, id string) (*model.ProgramMembership, error) {
	var (
		p      model.ProgramMembership
		offers []byte
	)
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, program_name, hosting_organization_id, award_point, offers FROM program_memberships
		 WHERE id=? LIMIT 1`, id,
	).Scan(&p.ID, &p.ProgramName, &p.HostingOrganizationID, &p.AwardPoint, &offers)
	if err != nil {
		return nil, notFoundOr(err, "programMembership")
	}
	list, err := decodeJSON[[]model.ProgramMembershipOffer](offers)
	if err != nil {
		return nil, err
	}
	if list != nil {
		p.Offers = *list
	}
	return &p, nil
}
