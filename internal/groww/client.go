// Package groww implements the REST client for the Groww brokerage API.
//
// The API type is the unauthenticated entry point (login only):
//   - Login: POST /v1/token/api/access — exchange key/secret/TOTP for a session
//
// A successful login yields a Client bound to that session's access token:
//   - Quote:             GET /v1/live-data/quote    — full market quote
//   - LTP:               GET /v1/live-data/ltp      — last traded price only
//   - HistoricalCandles: GET /v1/historical/candles — OHLCV bars for a range
//
// Every request goes through a resty client with a bounded timeout and
// automatic retry on 5xx responses. Data endpoints answer in a
// {status, payload} envelope; a non-SUCCESS status becomes an error carrying
// the provider's message.
package groww

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"groww-gateway/internal/config"
	"groww-gateway/internal/session"
	"groww-gateway/pkg/types"
)

// API dials the Groww REST API. It performs logins and mints authenticated
// Clients; it holds no session state itself.
type API struct {
	baseURL string
	timeout time.Duration
	logger  *slog.Logger
}

// NewAPI creates the login-capable API entry point from config.
func NewAPI(cfg config.GrowwConfig, logger *slog.Logger) *API {
	return &API{
		baseURL: cfg.BaseURL,
		timeout: cfg.Timeout,
		logger:  logger.With("component", "groww"),
	}
}

// loginResponse mirrors the provider's login envelope. Data carries opaque
// session metadata (session id, user id, access token).
type loginResponse struct {
	Status string         `json:"status"`
	Error  string         `json:"error"`
	Data   map[string]any `json:"data"`
}

// Login exchanges credentials for a session. A provider-side rejection comes
// back as a LoginResult with a non-success status; the error return is
// reserved for transport failures.
func (a *API) Login(ctx context.Context, creds session.Login) (session.LoginResult, error) {
	body := map[string]string{
		"api_key":    creds.APIKey,
		"api_secret": creds.APISecret,
	}
	if creds.TOTPCode != "" {
		body["totp"] = creds.TOTPCode
	}

	var result loginResponse
	resp, err := a.newHTTP("").R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		SetError(&result).
		Post("/v1/token/api/access")
	if err != nil {
		return session.LoginResult{}, fmt.Errorf("login: %w", err)
	}
	if result.Status == "" {
		return session.LoginResult{}, fmt.Errorf("login: status %d: %s", resp.StatusCode(), resp.String())
	}

	out := session.LoginResult{
		Status:       result.Status,
		ErrorMessage: result.Error,
		Metadata:     result.Data,
	}
	if strings.EqualFold(result.Status, "success") {
		token, _ := result.Data["token"].(string)
		out.Client = &Client{
			http:   a.newHTTP(token),
			logger: a.logger,
		}
	}
	return out, nil
}

// newHTTP builds a resty client with timeout and 5xx retry. The token is
// empty for the login call itself.
func (a *API) newHTTP(token string) *resty.Client {
	c := resty.New().
		SetBaseURL(a.baseURL).
		SetTimeout(a.timeout).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json")
	if token != "" {
		c.SetAuthToken(token)
	}
	return c
}

// Client is an authenticated handle to Groww market-data endpoints. It
// implements session.Client and stays valid for the lifetime of the session
// whose token it carries.
type Client struct {
	http   *resty.Client
	logger *slog.Logger
}

// envelope is the {status, payload} wrapper on every data endpoint.
type envelope[T any] struct {
	Status  string `json:"status"`
	Error   string `json:"error"`
	Payload T      `json:"payload"`
}

// Quote fetches the full market quote for one instrument.
func (c *Client) Quote(ctx context.Context, inst types.Instrument) (types.QuotePayload, error) {
	var result envelope[types.QuotePayload]
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(instrumentParams(inst)).
		SetResult(&result).
		Get("/v1/live-data/quote")
	if err != nil {
		return types.QuotePayload{}, fmt.Errorf("get quote: %w", err)
	}
	if err := checkEnvelope(resp, result.Status, result.Error, "get quote"); err != nil {
		return types.QuotePayload{}, err
	}
	return result.Payload, nil
}

// LTP fetches only the last traded price for one instrument.
func (c *Client) LTP(ctx context.Context, inst types.Instrument) (types.LTPPayload, error) {
	var result envelope[types.LTPPayload]
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(instrumentParams(inst)).
		SetResult(&result).
		Get("/v1/live-data/ltp")
	if err != nil {
		return types.LTPPayload{}, fmt.Errorf("get ltp: %w", err)
	}
	if err := checkEnvelope(resp, result.Status, result.Error, "get ltp"); err != nil {
		return types.LTPPayload{}, err
	}
	return result.Payload, nil
}

// candlePayload is the historical endpoint's payload shape.
type candlePayload struct {
	Candles []types.RawCandle `json:"candles"`
}

// HistoricalCandles fetches raw candle records for a time range. Records
// come back as fixed-position arrays; normalization is the gateway's job.
func (c *Client) HistoricalCandles(ctx context.Context, req types.HistoricalRequest) ([]types.RawCandle, error) {
	params := instrumentParams(req.Instrument)
	params["start_time"] = req.StartTime
	params["end_time"] = req.EndTime
	params["interval_in_minutes"] = fmt.Sprintf("%d", req.IntervalMinutes)

	var result envelope[candlePayload]
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(&result).
		Get("/v1/historical/candles")
	if err != nil {
		return nil, fmt.Errorf("get historical candles: %w", err)
	}
	if err := checkEnvelope(resp, result.Status, result.Error, "get historical candles"); err != nil {
		return nil, err
	}
	return result.Payload.Candles, nil
}

func instrumentParams(inst types.Instrument) map[string]string {
	return map[string]string{
		"exchange":       string(inst.Exchange),
		"segment":        string(inst.Segment),
		"trading_symbol": inst.Symbol,
	}
}

func checkEnvelope(resp *resty.Response, status, errMsg, op string) error {
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("%s: status %d: %s", op, resp.StatusCode(), resp.String())
	}
	if !strings.EqualFold(status, "SUCCESS") {
		if errMsg == "" {
			errMsg = fmt.Sprintf("provider returned status %q", status)
		}
		return fmt.Errorf("%s: %s", op, errMsg)
	}
	return nil
}
