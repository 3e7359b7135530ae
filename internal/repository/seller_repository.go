package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/cinema-ticket-order/internal/model"
)

// SellerRepo reads movie theater organizations. Sellers are master data and
// are maintained outside this service.
type SellerRepo struct{ DB *sql.DB }

func NewSellerRepo(db *sql.DB) *SellerRepo { return &SellerRepo{DB: db} }

// FindByID returns the seller or NotFound.
func (r *SellerRepo) FindByID(ctx context.Context, id string) (*model.Seller, error) {
	var (
		s            model.Seller
		pointAccount sql.NullString
	)
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, identifier, name, branch_code, telephone, email, url, gmo_site_id, gmo_shop_id, gmo_shop_pass,
			point_account_number, created_at, updated_at FROM sellers WHERE id=? LIMIT 1`, id,
	).Scan(&s.ID, &s.Identifier, &s.Name, &s.BranchCode, &s.Telephone, &s.Email, &s.URL,
		&s.GMO.SiteID, &s.GMO.ShopID, &s.GMO.ShopPass, &pointAccount, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, notFoundOr(err, "seller")
	}
	s.PointAccountNumber = pointAccount.String
	return &s, nil
}
