package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/August26/proxyscout/internal/logging"
)

const DefaultIPAPIURL = "http://ip-api.com/json/"

// ipAPIResponse matches the fields we care about from ip-api.com.
type ipAPIResponse struct {
	Status  string `json:"status"`
	Country string `json:"country"`
	Message string `json:"message"`
}

// IPAPI looks countries up with the ip-api.com JSON endpoint.
type IPAPI struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
	log     *slog.Logger
}

// NewIPAPI returns a client for baseURL (DefaultIPAPIURL when empty). Every
// lookup is bounded by timeout.
func NewIPAPI(baseURL string, timeout time.Duration, log *slog.Logger) *IPAPI {
	if baseURL == "" {
		baseURL = DefaultIPAPIURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	if log == nil {
		log = logging.Discard()
	}
	return &IPAPI{
		baseURL: baseURL,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
		log:     log.With("component", "geo.ipapi"),
	}
}

func (a *IPAPI) Lookup(ctx context.Context, host string) string {
	country, err := a.lookup(ctx, host)
	if err != nil {
		a.log.Debug("geo lookup failed", "host", host, "err", err)
		return Unknown
	}
	return country
}

func (a *IPAPI) lookup(ctx context.Context, host string) (string, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+url.PathEscape(host), nil)
	if err != nil {
		return "", err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var parsed ipAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if parsed.Status == "fail" {
		return "", fmt.Errorf("lookup refused: %s", parsed.Message)
	}
	if parsed.Country == "" {
		return Unknown, nil
	}
	return parsed.Country, nil
}
