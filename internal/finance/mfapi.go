package finance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultMFAPIBaseURL = "https://api.mfapi.in"
	navDateLayout       = "02-01-2006"
	bodyPreviewLen      = 120
)

// mfapiHistoryResp mirrors GET /mf/{code} (trimmed to needed fields).
type mfapiHistoryResp struct {
	Meta struct {
		FundHouse      string `json:"fund_house"`
		SchemeType     string `json:"scheme_type"`
		SchemeCategory string `json:"scheme_category"`
		SchemeCode     int64  `json:"scheme_code"`
		SchemeName     string `json:"scheme_name"`
	} `json:"meta"`
	Data []struct {
		Date string `json:"date"`
		NAV  string `json:"nav"`
	} `json:"data"`
	Status string `json:"status"`
}

// mfapiScheme mirrors one entry of GET /mf.
type mfapiScheme struct {
	SchemeCode int64  `json:"schemeCode"`
	SchemeName string `json:"schemeName"`
}

// ClientOptions tunes the mfapi.in client.
type ClientOptions struct {
	BaseURL     string
	Timeout     time.Duration
	RatePerSec  float64
	MaxTries    int
	InitialWait time.Duration
}

// Client fetches NAV history and the scheme catalogue from mfapi.in.
type Client struct {
	baseURL     string
	http        *http.Client
	limiter     *rate.Limiter
	maxTries    uint
	initialWait time.Duration
	logger      *zap.Logger
}

// NewClient creates a client; zero options fall back to defaults.
func NewClient(opts ClientOptions, logger *zap.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultMFAPIBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 5
	}
	if opts.MaxTries <= 0 {
		opts.MaxTries = 4
	}
	if opts.InitialWait <= 0 {
		opts.InitialWait = 200 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		http:        &http.Client{Timeout: opts.Timeout},
		limiter:     rate.NewLimiter(rate.Limit(opts.RatePerSec), 1),
		maxTries:    uint(opts.MaxTries),
		initialWait: opts.InitialWait,
		logger:      logger.With(zap.String("component", "mfapi")),
	}
}

// FetchHistory fetches and parses the NAV history of a scheme.
func (c *Client) FetchHistory(ctx context.Context, code string) (Scheme, PriceSeries, error) {
	body, err := c.FetchHistoryRaw(ctx, code)
	if err != nil {
		return Scheme{}, PriceSeries{}, err
	}
	return ParseHistory(code, body)
}

// FetchHistoryRaw returns the undecoded /mf/{code} payload so callers can cache it.
func (c *Client) FetchHistoryRaw(ctx context.Context, code string) ([]byte, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("%w: empty scheme code", ErrNotFound)
	}
	return c.get(ctx, "/mf/"+url.PathEscape(code))
}

// FetchSchemes returns the full scheme catalogue.
func (c *Client) FetchSchemes(ctx context.Context) ([]Scheme, error) {
	body, err := c.get(ctx, "/mf")
	if err != nil {
		return nil, err
	}
	var raw []mfapiScheme
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse mfapi scheme list: %w", err)
	}
	out := make([]Scheme, 0, len(raw))
	for _, s := range raw {
		if s.SchemeCode == 0 {
			continue
		}
		out = append(out, Scheme{Code: strconv.FormatInt(s.SchemeCode, 10), Name: strings.TrimSpace(s.SchemeName)})
	}
	return out, nil
}

// ParseHistory decodes a /mf/{code} payload into a scheme and a sanitized series.
func ParseHistory(code string, body []byte) (Scheme, PriceSeries, error) {
	var resp mfapiHistoryResp
	if err := json.Unmarshal(body, &resp); err != nil {
		return Scheme{}, PriceSeries{}, fmt.Errorf("failed to parse mfapi json: %w; body: %s", err, preview(body))
	}
	if resp.Meta.SchemeName == "" && len(resp.Data) == 0 {
		return Scheme{}, PriceSeries{}, fmt.Errorf("%w: %s", ErrNotFound, code)
	}
	loc := istLocation()
	raw := make([]NAVPoint, 0, len(resp.Data))
	for _, d := range resp.Data {
		t, err := time.ParseInLocation(navDateLayout, strings.TrimSpace(d.Date), loc)
		if err != nil {
			continue
		}
		nav, err := strconv.ParseFloat(strings.TrimSpace(d.NAV), 64)
		if err != nil {
			continue
		}
		raw = append(raw, NAVPoint{Date: t, Price: nav})
	}
	scheme := Scheme{Code: code, Name: DisplayName(resp.Meta.SchemeName)}
	if scheme.Name == "" {
		scheme.Name = code
	}
	return scheme, NewPriceSeries(raw), nil
}

// DisplayName trims plan suffixes from a scheme name.
func DisplayName(name string) string {
	if i := strings.Index(name, "- Direct Plan"); i >= 0 {
		name = name[:i]
	}
	return strings.TrimSpace(name)
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	u := c.baseURL + path

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.initialWait
	policy.MaxInterval = c.initialWait * 10

	notify := func(err error, wait time.Duration) {
		c.logger.Warn("mfapi request failed, retrying", zap.String("url", u), zap.Error(err), zap.Duration("backoff", wait))
	}

	operation := func() ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, backoff.Permanent(err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "mfguru-bot/1.0")
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("failed to read mfapi response: %w", readErr)
		}
		switch {
		case resp.StatusCode == http.StatusNotFound:
			return nil, backoff.Permanent(fmt.Errorf("%w: %s", ErrNotFound, path))
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return nil, fmt.Errorf("mfapi returned %d: %s", resp.StatusCode, preview(body))
		case resp.StatusCode != http.StatusOK:
			return nil, backoff.Permanent(fmt.Errorf("mfapi returned %d: %s", resp.StatusCode, preview(body)))
		}
		if strings.HasPrefix(strings.TrimSpace(string(body)), "<") {
			return nil, fmt.Errorf("mfapi returned non-json body: %s", preview(body))
		}
		return body, nil
	}

	body, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(c.maxTries),
		backoff.WithNotify(notify))
	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Unwrap()
		}
		return nil, fmt.Errorf("mfapi GET %s: %w", path, err)
	}
	return body, nil
}

func preview(body []byte) string {
	s := string(body)
	if len(s) > bodyPreviewLen {
		s = s[:bodyPreviewLen]
	}
	return s
}
