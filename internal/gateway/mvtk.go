package gateway

import (
	"context"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-ticket-order/internal/model"
)

// Seat sync result code for success.
const SeatInfoSyncSucceeded = "01"

type SeatInfoSyncResult struct {
	ZskyykResult string `json:"zskyykResult"`
}

// VoucherClient talks to the movie-ticket voucher service.
type VoucherClient struct{ c client }

func NewVoucherClient(baseURL string, logger *logrus.Logger, hc *http.Client) *VoucherClient {
	return &VoucherClient{c: newClient("voucher", baseURL, "", logger, hc)}
}

// SeatInfoSync consumes (or, with TrkshFlg "1", releases) vouchers against
// seats.
func (v *VoucherClient) SeatInfoSync(ctx context.Context, in model.MvtkSeatInfoSync) (SeatInfoSyncResult, error) {
	var out SeatInfoSyncResult
	err := v.c.do(ctx, http.MethodPost, "/seat/seatInfoSync", in, &out)
	return out, err
}
