package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Order is one commerce-tracking order. Amounts are in minor units (cents);
// callers divide by 100 before treating them as currency.
type Order struct {
	Status      string
	AmountCents int64
}

// UTMifyClient polls the commerce-tracking API for orders in a date range.
type UTMifyClient struct {
	c       HTTPClient
	token   string
	baseURL string
}

func NewUTMifyClient(c HTTPClient, token, baseURL string) *UTMifyClient {
	return &UTMifyClient{c: c, token: token, baseURL: baseURL}
}

type rawOrder struct {
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
	TotalAmount   *int64 `json:"total_amount"`
	Amount        *int64 `json:"amount"`
}

// GetOrders lists orders created between start and end (inclusive dates).
// Status filtering is the caller's job.
func (u *UTMifyClient) GetOrders(ctx context.Context, start, end time.Time) ([]Order, error) {
	q := url.Values{}
	q.Set("date_start", start.Format("2006-01-02"))
	q.Set("date_end", end.Format("2006-01-02"))

	h := http.Header{}
	h.Set("x-api-key", u.token)

	var raw []rawOrder
	if err := getJSON(ctx, u.c, u.baseURL+"/orders?"+q.Encode(), h, &raw); err != nil {
		return nil, fmt.Errorf("utmify orders: %w", err)
	}
	out := make([]Order, 0, len(raw))
	for _, r := range raw {
		st := r.Status
		if st == "" {
			st = r.PaymentStatus
		}
		var cents int64
		if r.TotalAmount != nil {
			cents = *r.TotalAmount
		} else if r.Amount != nil {
			cents = *r.Amount
		}
		out = append(out, Order{Status: st, AmountCents: cents})
	}
	return out, nil
}
