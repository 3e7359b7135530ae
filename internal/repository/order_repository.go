package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/cinema-ticket-order/internal/model"
)

// OrderRepo stores confirmed orders. The full order is kept as JSON next to
// the columns it is looked up by.
type OrderRepo struct{ DB *sql.DB }

func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{DB: db} }

// Save inserts the order. Saving the same order number again only refreshes
// its status, so a retried create-order task is harmless.
func (r *OrderRepo) Save(ctx context.Context, o model.Order) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO orders (order_number, confirmation_number, theater_code, telephone, customer_id, seller_id,
			order_date, order_status, price, data) VALUES (?,?,?,?,?,?,?,?,?,?)
		 ON DUPLICATE KEY UPDATE order_status=VALUES(order_status)`,
		o.OrderNumber, o.ConfirmationNumber, o.OrderInquiryKey.TheaterCode, o.OrderInquiryKey.Telephone,
		o.Customer.ID, o.Seller.ID, o.OrderDate, o.OrderStatus, o.Price, mustJSON(o))
	return err
}

func (r *OrderRepo) FindByOrderNumber(ctx context.Context, orderNumber string) (*model.Order, error) {
	return r.findOne(ctx, "SELECT data FROM orders WHERE order_number=? LIMIT 1", orderNumber)
}

// FindByInquiryKey looks an order up by theater, confirmation number and
// telephone, which is what a customer without an account can provide.
func (r *OrderRepo) FindByInquiryKey(ctx context.Context, key model.OrderInquiryKey) (*model.Order, error) {
	return r.findOne(ctx,
		`SELECT data FROM orders WHERE theater_code=? AND confirmation_number=? AND telephone=?
		 ORDER BY order_date DESC LIMIT 1`,
		key.TheaterCode, key.ConfirmationNumber, key.Telephone)
}

func (r *OrderRepo) findOne(ctx context.Context, query string, args ...any) (*model.Order, error) {
	var data []byte
	if err := r.DB.QueryRowContext(ctx, query, args...).Scan(&data); err != nil {
		return nil, notFoundOr(err, "order")
	}
	o, err := decodeJSON[model.Order](data)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, notFoundOr(sql.ErrNoRows, "order")
	}
	return o, nil
}
