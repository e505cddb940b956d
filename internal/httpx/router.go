package httpx

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Sevenatila/dashdesenrolado/internal/metrics"
	"github.com/Sevenatila/dashdesenrolado/internal/store"
	"github.com/Sevenatila/dashdesenrolado/internal/sync"
	"github.com/Sevenatila/dashdesenrolado/internal/utils"
)

// Deps carries everything the router serves. Video may be nil when the
// engagement source is not configured.
type Deps struct {
	Log     *slog.Logger
	Engine  *sync.Service
	Metrics *metrics.Service
	Sales   store.SaleStore
	Video   sync.EngagementSource

	KiwifySecret string
	SyncToken    string
}

func NewRouter(d Deps) http.Handler {
	mux := chi.NewRouter()
	mux.Use(utils.RequestID)
	mux.Use(utils.Logger(d.Log))
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) })
	mux.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ready")) })
	mux.Handle("/metrics", promhttp.Handler())

	mux.Post("/sync/run", d.handleSyncRun)
	mux.Get("/vturb/players", d.handleListPlayers)
	mux.Post("/webhooks/kiwify", d.handleKiwifyWebhook)
	mux.Post("/webhooks/hubla", d.handleHublaWebhook)

	mux.Get("/performance/latest", func(w http.ResponseWriter, r *http.Request) {
		row, err := d.Metrics.Latest(r.Context())
		if err != nil {
			writeError(w, 500, "query failed")
			return
		}
		if row == nil {
			writeError(w, 404, "no data")
			return
		}
		writeJSON(w, row)
	})

	mux.Get("/performance", func(w http.ResponseWriter, r *http.Request) {
		start, err1 := time.Parse("2006-01-02", r.URL.Query().Get("start"))
		end, err2 := time.Parse("2006-01-02", r.URL.Query().Get("end"))
		if err1 != nil || err2 != nil {
			writeError(w, 400, "start and end required (YYYY-MM-DD)")
			return
		}
		row, err := d.Metrics.QueryRange(r.Context(), start, end)
		if err != nil {
			writeError(w, 500, "query failed")
			return
		}
		if row == nil {
			writeError(w, 404, "no data in range")
			return
		}
		writeJSON(w, row)
	})

	return mux
}

// handleSyncRun triggers a day or range sync. Defaults to today. Which
// source degraded is deliberately not surfaced here; check the logs.
func (d Deps) handleSyncRun(w http.ResponseWriter, r *http.Request) {
	if d.SyncToken != "" && r.Header.Get("Authorization") != "Bearer "+d.SyncToken {
		writeError(w, 401, "unauthorized")
		return
	}

	q := r.URL.Query()
	player := q.Get("player_id")

	if q.Get("start") != "" || q.Get("end") != "" {
		start, err1 := time.Parse("2006-01-02", q.Get("start"))
		end, err2 := time.Parse("2006-01-02", q.Get("end"))
		if err1 != nil || err2 != nil {
			writeError(w, 400, "start and end required together (YYYY-MM-DD)")
			return
		}
		if err := d.Engine.SyncRange(r.Context(), start, end, player); err != nil {
			d.Log.Error("range sync failed", slog.String("err", err.Error()))
			writeError(w, 500, "sync failed")
			return
		}
		writeJSON(w, map[string]string{
			"status":  "success",
			"message": "sync complete from " + start.Format("2006-01-02") + " to " + end.Format("2006-01-02"),
		})
		return
	}

	dateStr := q.Get("date")
	if dateStr == "" {
		dateStr = time.Now().UTC().Format("2006-01-02")
	}
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		writeError(w, 400, "bad date (YYYY-MM-DD)")
		return
	}
	if err := d.Engine.SyncDay(r.Context(), date, player); err != nil {
		d.Log.Error("day sync failed", slog.String("date", dateStr), slog.String("err", err.Error()))
		writeError(w, 500, "sync failed")
		return
	}
	writeJSON(w, map[string]string{
		"status":  "success",
		"message": "sync complete for " + dateStr,
	})
}

func (d Deps) handleListPlayers(w http.ResponseWriter, r *http.Request) {
	if d.Video == nil {
		writeError(w, 500, "engagement source not configured")
		return
	}
	players, err := d.Video.ListPlayers(r.Context())
	if err != nil {
		d.Log.Error("player list failed", slog.String("err", err.Error()))
		writeError(w, 502, "player listing failed")
		return
	}
	writeJSON(w, players)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
