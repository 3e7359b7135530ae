package service

import (
	"context"

	"github.com/iliyamo/cinema-ticket-order/internal/model"
)

// OrderService answers order lookups.
type OrderService struct {
	orders OrderRepository
}

func NewOrderService(orders OrderRepository) *OrderService {
	return &OrderService{orders: orders}
}

// FindByInquiryKey looks an order up by theater, confirmation number and
// telephone. The telephone may be given in any format the contact accepted.
func (s *OrderService) FindByInquiryKey(ctx context.Context, key model.OrderInquiryKey) (*model.Order, error) {
	tel, err := normalizeTelephone(key.Telephone)
	if err != nil {
		return nil, err
	}
	key.Telephone = tel
	return s.orders.FindByInquiryKey(ctx, key)
}

func (s *OrderService) FindByOrderNumber(ctx context.Context, orderNumber string) (*model.Order, error) {
	return s.orders.FindByOrderNumber(ctx, orderNumber)
}
