package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func metaServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "spend,clicks,impressions", q.Get("fields"))
		assert.Equal(t, "tok", q.Get("access_token"))
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testMetaClient(srv *httptest.Server) *MetaClient {
	cl := NewMetaClient(NewHTTPClient(2*time.Second), "tok", "123456")
	cl.baseURL = srv.URL
	return cl
}

func TestMetaClient_ParsesStringNumerics(t *testing.T) {
	srv := metaServer(t, `{"data": [{"spend": "142.57", "clicks": "318", "impressions": "12040"}]}`)
	m, err := testMetaClient(srv).DailyMetrics(context.Background(), time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.InDelta(t, 142.57, m.Spend, 0.001)
	assert.Equal(t, 318, m.Clicks)
	assert.Equal(t, 12040, m.Impressions)
}

func TestMetaClient_NoRowsIsZeroNotError(t *testing.T) {
	srv := metaServer(t, `{"data": []}`)
	m, err := testMetaClient(srv).DailyMetrics(context.Background(), time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, AdMetrics{}, m)
}

func TestMetaClient_AccountIDGetsActPrefix(t *testing.T) {
	assert.Equal(t, "act_42", NewMetaClient(nil, "tok", "42").accountID)
	assert.Equal(t, "act_42", NewMetaClient(nil, "tok", "act_42").accountID)
}

func TestMetaClient_Non2xxIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "Invalid OAuth access token"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	cl := NewMetaClient(NewHTTPClient(2*time.Second), "bad", "42")
	cl.baseURL = srv.URL
	_, err := cl.DailyMetrics(context.Background(), time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC))
	require.Error(t, err)
}

func TestHTTPClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer srv.Close()

	cl := NewMetaClient(NewHTTPClient(50*time.Millisecond), "tok", "42")
	cl.baseURL = srv.URL
	_, err := cl.DailyMetrics(context.Background(), time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC))
	require.Error(t, err)
}
