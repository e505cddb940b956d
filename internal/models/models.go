package models

import "time"

// SaleStatus is the normalized status of a webhook-ingested sale.
type SaleStatus string

const (
	SalePending  SaleStatus = "PENDING"
	SalePaid     SaleStatus = "PAID"
	SaleRefused  SaleStatus = "REFUSED"
	SaleRefunded SaleStatus = "REFUNDED"
)

// Sale is one external order, keyed by the platform's order id.
// Amounts are in currency units (webhook payloads carry cents).
type Sale struct {
	Platform      string
	ExternalID    string
	Status        SaleStatus
	Amount        float64
	CustomerEmail string
	UTMSource     string
	UTMMedium     string
	UTMCampaign   string
	UTMContent    string
	UTMTerm       string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Player identifies one trackable video asset.
type Player struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Duration int    `json:"duration"` // seconds
}

// DailyPerformance is the per-day aggregate. Exactly one row exists per date.
// Percentage fields are whole integers in [0,100] except VSLConversion, which
// keeps two decimals and is not capped.
type DailyPerformance struct {
	Date        time.Time `json:"date"`
	Spend       float64   `json:"spend"`
	LinkClicks  int       `json:"link_clicks"`
	Impressions int       `json:"impressions"`
	PageViews   int       `json:"page_views"`

	UniquePlays    int `json:"unique_plays"`
	Views          int `json:"views"`
	Finishes       int `json:"finishes"`
	LeadRetention  int `json:"lead_retention"`
	Engagement     int `json:"engagement"`
	PitchRetention int `json:"pitch_retention"`

	Sales         int     `json:"sales"`
	Revenue       float64 `json:"revenue"`
	CPA           float64 `json:"cpa"`
	AvgTicket     float64 `json:"avg_ticket"`
	VSLConversion float64 `json:"vsl_conversion"`

	CheckoutConversion     int `json:"checkout_conversion"`
	OrderBumpConversion    int `json:"order_bump_conversion"`
	BackRedirectConversion int `json:"back_redirect_conversion"`
	UpsellConversion       int `json:"upsell_conversion"`
	Upsell2Conversion      int `json:"upsell2_conversion"`
	DownsellConversion     int `json:"downsell_conversion"`
}

// PerformancePatch carries the fields one sync computed. A nil field means
// "leave the stored value alone" - upserts are field-level merges, never
// wholesale replaces, so a partial sync cannot erase what it did not source.
type PerformancePatch struct {
	Spend       *float64
	LinkClicks  *int
	Impressions *int
	PageViews   *int

	UniquePlays    *int
	Views          *int
	Finishes       *int
	LeadRetention  *int
	Engagement     *int
	PitchRetention *int

	Sales         *int
	Revenue       *float64
	CPA           *float64
	AvgTicket     *float64
	VSLConversion *float64

	CheckoutConversion     *int
	OrderBumpConversion    *int
	BackRedirectConversion *int
	UpsellConversion       *int
	Upsell2Conversion      *int
	DownsellConversion     *int
}

// Apply merges the patch into p, touching only the non-nil fields.
func (pp PerformancePatch) Apply(p *DailyPerformance) {
	setF(&p.Spend, pp.Spend)
	setI(&p.LinkClicks, pp.LinkClicks)
	setI(&p.Impressions, pp.Impressions)
	setI(&p.PageViews, pp.PageViews)
	setI(&p.UniquePlays, pp.UniquePlays)
	setI(&p.Views, pp.Views)
	setI(&p.Finishes, pp.Finishes)
	setI(&p.LeadRetention, pp.LeadRetention)
	setI(&p.Engagement, pp.Engagement)
	setI(&p.PitchRetention, pp.PitchRetention)
	setI(&p.Sales, pp.Sales)
	setF(&p.Revenue, pp.Revenue)
	setF(&p.CPA, pp.CPA)
	setF(&p.AvgTicket, pp.AvgTicket)
	setF(&p.VSLConversion, pp.VSLConversion)
	setI(&p.CheckoutConversion, pp.CheckoutConversion)
	setI(&p.OrderBumpConversion, pp.OrderBumpConversion)
	setI(&p.BackRedirectConversion, pp.BackRedirectConversion)
	setI(&p.UpsellConversion, pp.UpsellConversion)
	setI(&p.Upsell2Conversion, pp.Upsell2Conversion)
	setI(&p.DownsellConversion, pp.DownsellConversion)
}

func setF(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}

func setI(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

// F and I build patch fields from literals.
func F(v float64) *float64 { return &v }
func I(v int) *int         { return &v }

// DayUTC truncates t to midnight UTC. Aggregate rows are keyed on this.
func DayUTC(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
