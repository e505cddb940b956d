package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Sevenatila/dashdesenrolado/internal/utils"
)

// HTTPClient is the transport the source clients talk through. Tests swap in
// httptest-backed clients.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

func NewHTTPClient(timeout time.Duration) HTTPClient {
	return &http.Client{Timeout: timeout}
}

var retryPolicy = utils.NewBackoff(100*time.Millisecond, 2)

func getJSON(ctx context.Context, c HTTPClient, url string, hdr http.Header, v any) error {
	return doJSON(ctx, c, http.MethodGet, url, hdr, nil, v)
}

func postJSON(ctx context.Context, c HTTPClient, url string, hdr http.Header, body, v any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return doJSON(ctx, c, http.MethodPost, url, hdr, b, v)
}

func doJSON(ctx context.Context, c HTTPClient, method, url string, hdr http.Header, body []byte, v any) error {
	if url == "" {
		return errors.New("empty url")
	}
	return retryPolicy.Do(func(i int) error {
		var rd io.Reader
		if body != nil {
			rd = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, rd)
		if err != nil {
			return err
		}
		for k, vals := range hdr {
			for _, val := range vals {
				req.Header.Add(k, val)
			}
		}
		if body != nil && req.Header.Get("Content-Type") == "" {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := c.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			return fmt.Errorf("non-2xx: %d body=%s", resp.StatusCode, string(b))
		}
		return json.NewDecoder(resp.Body).Decode(v)
	})
}
