package source

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// AdMetrics is one day of ad-account performance.
type AdMetrics struct {
	Spend       float64
	Clicks      int
	Impressions int
}

// MetaClient pulls daily spend/clicks/impressions from the Meta Graph
// insights API for a single ad account.
type MetaClient struct {
	c         HTTPClient
	token     string
	accountID string
	baseURL   string
}

func NewMetaClient(c HTTPClient, token, accountID string) *MetaClient {
	if !strings.HasPrefix(accountID, "act_") {
		accountID = "act_" + accountID
	}
	return &MetaClient{c: c, token: token, accountID: accountID, baseURL: "https://graph.facebook.com/v19.0"}
}

// Graph returns numeric insight fields as strings.
type metaInsightsResp struct {
	Data []struct {
		Spend       string `json:"spend"`
		Clicks      string `json:"clicks"`
		Impressions string `json:"impressions"`
	} `json:"data"`
}

// DailyMetrics fetches insights for one calendar day. A day with no rows is a
// zero result, not an error; transport and auth failures are returned as-is.
func (m *MetaClient) DailyMetrics(ctx context.Context, date time.Time) (AdMetrics, error) {
	day := date.Format("2006-01-02")
	q := url.Values{}
	q.Set("fields", "spend,clicks,impressions")
	q.Set("time_range", fmt.Sprintf("{'since':'%s','until':'%s'}", day, day))
	q.Set("access_token", m.token)
	u := fmt.Sprintf("%s/%s/insights?%s", m.baseURL, m.accountID, q.Encode())

	var resp metaInsightsResp
	if err := getJSON(ctx, m.c, u, nil, &resp); err != nil {
		return AdMetrics{}, fmt.Errorf("meta insights: %w", err)
	}
	if len(resp.Data) == 0 {
		return AdMetrics{}, nil
	}
	row := resp.Data[0]
	return AdMetrics{
		Spend:       parseF(row.Spend),
		Clicks:      parseI(row.Clicks),
		Impressions: parseI(row.Impressions),
	}, nil
}

func parseF(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

func parseI(s string) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return v
}
