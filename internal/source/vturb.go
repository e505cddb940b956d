package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Sevenatila/dashdesenrolado/internal/models"
)

// EventCounts holds the playback funnel totals for one player and range.
// Event types the API did not report stay at zero.
type EventCounts struct {
	Started  int
	Viewed   int
	Finished int
}

// Engagement is the watch-behavior figure for one player and range. Rate may
// come back as a fraction in (0,1] or as an already-scaled percentage; the
// engine decides which.
type Engagement struct {
	Rate         float64
	AvgWatchTime float64
}

// VTurbClient talks to the video analytics API. Its payload shapes drift
// between accounts (id vs _id, total vs count vs unique_devices, arrays vs
// keyed objects), so every response goes through an explicit parser and the
// raw shape never leaves this package.
type VTurbClient struct {
	c        HTTPClient
	key      string
	baseURL  string
	timezone string
}

func NewVTurbClient(c HTTPClient, key, baseURL, timezone string) *VTurbClient {
	return &VTurbClient{c: c, key: key, baseURL: baseURL, timezone: timezone}
}

func (v *VTurbClient) headers() http.Header {
	h := http.Header{}
	h.Set("X-Api-Token", v.key)
	h.Set("X-Api-Version", "v1")
	h.Set("Content-Type", "application/json")
	return h
}

type rawPlayer struct {
	ID            string  `json:"id"`
	AltID         string  `json:"_id"`
	Name          string  `json:"name"`
	VideoDuration float64 `json:"video_duration"`
	Duration      float64 `json:"duration"`
}

// ListPlayers returns every trackable video in the account. An empty list is
// a valid outcome, not an error.
func (v *VTurbClient) ListPlayers(ctx context.Context) ([]models.Player, error) {
	var raw []rawPlayer
	if err := getJSON(ctx, v.c, v.baseURL+"/players/list", v.headers(), &raw); err != nil {
		return nil, fmt.Errorf("vturb list players: %w", err)
	}
	out := make([]models.Player, 0, len(raw))
	for _, p := range raw {
		id := p.ID
		if id == "" {
			id = p.AltID
		}
		dur := p.VideoDuration
		if dur == 0 {
			dur = p.Duration
		}
		name := p.Name
		if name == "" {
			name = "unnamed"
		}
		out = append(out, models.Player{ID: id, Name: name, Duration: int(dur)})
	}
	return out, nil
}

// GetEvents fetches started/viewed/finished totals for the range.
func (v *VTurbClient) GetEvents(ctx context.Context, playerID string, start, end time.Time) (EventCounts, error) {
	body := map[string]any{
		"player_id":  playerID,
		"events":     []string{"started", "finished", "viewed"},
		"start_date": start.Format("2006-01-02"),
		"end_date":   end.Format("2006-01-02"),
		"timezone":   v.timezone,
	}
	var raw json.RawMessage
	if err := postJSON(ctx, v.c, v.baseURL+"/events/total_by_company", v.headers(), body, &raw); err != nil {
		return EventCounts{}, fmt.Errorf("vturb events: %w", err)
	}
	return parseEventCounts(raw), nil
}

// GetEngagement fetches the engagement/retention figure for the range.
func (v *VTurbClient) GetEngagement(ctx context.Context, playerID string, duration int, start, end time.Time) (Engagement, error) {
	body := map[string]any{
		"player_id":      playerID,
		"video_duration": duration,
		"start_date":     start.Format("2006-01-02"),
		"end_date":       end.Format("2006-01-02"),
		"timezone":       v.timezone,
	}
	var raw struct {
		EngagementRate float64 `json:"engagement_rate"`
		Rate           float64 `json:"rate"`
		AvgWatchTime   float64 `json:"avg_watch_time"`
		AverageTime    float64 `json:"average_watch_time"`
	}
	if err := postJSON(ctx, v.c, v.baseURL+"/times/user_engagement", v.headers(), body, &raw); err != nil {
		return Engagement{}, fmt.Errorf("vturb engagement: %w", err)
	}
	e := Engagement{Rate: raw.EngagementRate, AvgWatchTime: raw.AvgWatchTime}
	if e.Rate == 0 {
		e.Rate = raw.Rate
	}
	if e.AvgWatchTime == 0 {
		e.AvgWatchTime = raw.AverageTime
	}
	return e, nil
}

// event payloads arrive either as an array of rows or as an object keyed by
// event name, with the count under total, count or unique_devices (tried in
// that order).
type rawEventRow struct {
	EventName     string   `json:"event_name"`
	Name          string   `json:"name"`
	Total         *float64 `json:"total"`
	Count         *float64 `json:"count"`
	UniqueDevices *float64 `json:"unique_devices"`
}

func (r rawEventRow) value() int {
	for _, v := range []*float64{r.Total, r.Count, r.UniqueDevices} {
		if v != nil {
			return int(*v)
		}
	}
	return 0
}

func parseEventCounts(raw json.RawMessage) EventCounts {
	var out EventCounts
	if len(raw) == 0 {
		return out
	}

	var rows []rawEventRow
	if err := json.Unmarshal(raw, &rows); err == nil {
		for _, r := range rows {
			name := r.EventName
			if name == "" {
				name = r.Name
			}
			assignEvent(&out, name, r.value())
		}
		return out
	}

	var keyed map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keyed); err != nil {
		return out
	}
	for name, v := range keyed {
		// value is either a bare number or {"total": n, ...}
		var n float64
		if err := json.Unmarshal(v, &n); err == nil {
			assignEvent(&out, name, int(n))
			continue
		}
		var row rawEventRow
		if err := json.Unmarshal(v, &row); err == nil {
			assignEvent(&out, name, row.value())
		}
	}
	return out
}

func assignEvent(out *EventCounts, name string, n int) {
	switch name {
	case "started":
		out.Started = n
	case "viewed":
		out.Viewed = n
	case "finished":
		out.Finished = n
	}
}
