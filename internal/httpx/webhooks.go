package httpx

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Sevenatila/dashdesenrolado/internal/models"
)

var kiwifyStatus = map[string]models.SaleStatus{
	"paid":        models.SalePaid,
	"pending":     models.SalePending,
	"refunded":    models.SaleRefunded,
	"refused":     models.SaleRefused,
	"chargedback": models.SaleRefunded,
}

var hublaStatus = map[string]models.SaleStatus{
	"confirmed": models.SalePaid,
	"pending":   models.SalePending,
	"canceled":  models.SaleRefused,
	"refunded":  models.SaleRefunded,
}

type kiwifyPayload struct {
	OrderID     string `json:"order_id"`
	OrderStatus string `json:"order_status"`
	Amount      int64  `json:"amount"`
	Customer    struct {
		Email string `json:"email"`
	} `json:"customer"`
	TrackingParameters struct {
		UTMSource   string `json:"utm_source"`
		UTMMedium   string `json:"utm_medium"`
		UTMCampaign string `json:"utm_campaign"`
		UTMContent  string `json:"utm_content"`
		UTMTerm     string `json:"utm_term"`
	} `json:"tracking_parameters"`
}

// handleKiwifyWebhook ingests one sale event. The HMAC-SHA1 signature is
// checked only when both the secret and the header are present.
func (d Deps) handleKiwifyWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, 400, "unreadable body")
		return
	}

	signature := r.Header.Get("x-kiwify-signature")
	if d.KiwifySecret != "" && signature != "" {
		mac := hmac.New(sha1.New, []byte(d.KiwifySecret))
		mac.Write(body)
		expected := hex.EncodeToString(mac.Sum(nil))
		if !hmac.Equal([]byte(signature), []byte(expected)) {
			d.Log.Error("kiwify webhook: invalid signature")
			writeError(w, 401, "invalid signature")
			return
		}
	}

	var p kiwifyPayload
	if err := json.Unmarshal(body, &p); err != nil {
		writeError(w, 400, "bad payload")
		return
	}
	if p.OrderID == "" {
		writeJSON(w, map[string]string{"status": "ignored", "message": "no order id"})
		return
	}

	status, ok := kiwifyStatus[p.OrderStatus]
	if !ok {
		status = models.SalePending
	}
	email := p.Customer.Email
	if email == "" {
		email = "unknown@email.com"
	}
	sale := models.Sale{
		Platform:      "KIWIFY",
		ExternalID:    p.OrderID,
		Status:        status,
		Amount:        centsToCurrency(p.Amount),
		CustomerEmail: email,
		UTMSource:     p.TrackingParameters.UTMSource,
		UTMMedium:     p.TrackingParameters.UTMMedium,
		UTMCampaign:   p.TrackingParameters.UTMCampaign,
		UTMContent:    p.TrackingParameters.UTMContent,
		UTMTerm:       p.TrackingParameters.UTMTerm,
	}
	if err := d.Sales.UpsertSale(r.Context(), sale); err != nil {
		d.Log.Error("kiwify webhook: upsert failed", slog.String("order", p.OrderID), slog.String("err", err.Error()))
		writeError(w, 500, "persist failed")
		return
	}
	writeJSON(w, map[string]string{"status": "success"})
}

type hublaPayload struct {
	Data struct {
		ID     json.RawMessage `json:"id"` // arrives as a string or a number
		Status string          `json:"status"`
		Amount int64           `json:"amount"`
		Buyer  struct {
			Email string `json:"email"`
		} `json:"buyer"`
		UTMSource   string `json:"utm_source"`
		UTMMedium   string `json:"utm_medium"`
		UTMCampaign string `json:"utm_campaign"`
	} `json:"data"`
}

func (d Deps) handleHublaWebhook(w http.ResponseWriter, r *http.Request) {
	var p hublaPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, 400, "bad payload")
		return
	}
	externalID := strings.Trim(string(p.Data.ID), `"`)
	if externalID == "" || externalID == "null" {
		writeJSON(w, map[string]string{"status": "ignored", "message": "no data id"})
		return
	}

	status, ok := hublaStatus[p.Data.Status]
	if !ok {
		status = models.SalePending
	}
	email := p.Data.Buyer.Email
	if email == "" {
		email = "unknown@email.com"
	}
	sale := models.Sale{
		Platform:      "HUBLA",
		ExternalID:    externalID,
		Status:        status,
		Amount:        centsToCurrency(p.Data.Amount),
		CustomerEmail: email,
		UTMSource:     p.Data.UTMSource,
		UTMMedium:     p.Data.UTMMedium,
		UTMCampaign:   p.Data.UTMCampaign,
	}
	if err := d.Sales.UpsertSale(r.Context(), sale); err != nil {
		d.Log.Error("hubla webhook: upsert failed", slog.String("order", externalID), slog.String("err", err.Error()))
		writeError(w, 500, "persist failed")
		return
	}
	writeJSON(w, map[string]string{"status": "success"})
}

func centsToCurrency(cents int64) float64 {
	return decimal.NewFromInt(cents).Div(decimal.NewFromInt(100)).InexactFloat64()
}
