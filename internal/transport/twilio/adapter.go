// Package twilio implements the hosted-messaging transport over Twilio's
// WhatsApp REST API.
package twilio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"reportbot/internal/transport"
	logx "reportbot/pkg/logx"
)

const (
	defaultBaseURL = "https://api.twilio.com"

	// rateLimitCode is Twilio's error code for the exhausted daily WhatsApp
	// quota. The textual marker covers older API responses that omit it.
	rateLimitCode   = 63038
	rateLimitMarker = "daily messages limit"
)

// deliveredStatuses are the create-then-poll statuses counted as success.
var deliveredStatuses = map[string]bool{
	"queued":    true,
	"sent":      true,
	"delivered": true,
}

type Config struct {
	AccountSID string
	AuthToken  string
	// From is the sending address without the "whatsapp:" scheme.
	From string
	// SettleDelay is the pause between creating a message and re-fetching
	// its status.
	SettleDelay time.Duration
	// RatePerSec caps outgoing API calls client-side.
	RatePerSec int

	// BaseURL overrides the API host (tests only).
	BaseURL string
}

type Adapter struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	log     logx.Logger
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.AccountSID) == "" || strings.TrimSpace(cfg.AuthToken) == "" {
		return nil, errors.New("twilio credentials are empty")
	}
	if strings.TrimSpace(cfg.From) == "" {
		return nil, errors.New("twilio sending address is empty")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = 2 * time.Second
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 1
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Adapter{
		cfg:     cfg,
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
		log:     log,
	}, nil
}

func (a *Adapter) Name() string { return "twilio" }

// Close is a no-op; the adapter holds no session state.
func (a *Adapter) Close(ctx context.Context) error { return nil }

type messageResource struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
	// Code/Message come on HTTP error bodies; ErrorCode/ErrorMessage on a
	// fetched message resource that failed after being accepted.
	Code         int    `json:"code"`
	Message      string `json:"message"`
	ErrorCode    int    `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

func (a *Adapter) Send(ctx context.Context, msg transport.Message) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}

	res, err := a.createMessage(ctx, msg)
	if err != nil {
		return err
	}
	a.log.Debug("twilio message created",
		logx.String("sid", res.SID), logx.String("status", res.Status), logx.String("to", msg.To))

	// Let the provider settle before trusting the status field.
	if err := sleepCtx(ctx, a.cfg.SettleDelay); err != nil {
		return err
	}

	cur, err := a.fetchMessage(ctx, res.SID)
	if err != nil {
		return err
	}
	if !deliveredStatuses[cur.Status] {
		// The quota signal can surface here too: the create call succeeds
		// and the message then fails with the rate-limit error code.
		if isRateLimit(cur.ErrorCode, cur.ErrorMessage) {
			return fmt.Errorf("twilio message %s: %d %s: %w",
				cur.SID, cur.ErrorCode, cur.ErrorMessage, transport.ErrRateLimited)
		}
		return fmt.Errorf("twilio message %s in status %q", cur.SID, cur.Status)
	}
	a.log.Info("twilio message delivered",
		logx.String("sid", cur.SID), logx.String("status", cur.Status), logx.String("to", msg.To))
	return nil
}

func (a *Adapter) createMessage(ctx context.Context, msg transport.Message) (*messageResource, error) {
	form := url.Values{}
	form.Set("Body", msg.Body)
	form.Set("From", "whatsapp:"+a.cfg.From)
	form.Set("To", "whatsapp:"+msg.To)
	for _, u := range msg.MediaURLs {
		form.Add("MediaUrl", u)
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", a.cfg.BaseURL, a.cfg.AccountSID)
	return a.do(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
}

func (a *Adapter) fetchMessage(ctx context.Context, sid string) (*messageResource, error) {
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages/%s.json", a.cfg.BaseURL, a.cfg.AccountSID, sid)
	return a.do(ctx, http.MethodGet, endpoint, nil)
}

func (a *Adapter) do(ctx context.Context, method, endpoint string, body io.Reader) (*messageResource, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.SetBasicAuth(a.cfg.AccountSID, a.cfg.AuthToken)

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("twilio request: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	var res messageResource
	_ = json.Unmarshal(raw, &res)

	if resp.StatusCode >= 400 {
		if isRateLimit(res.Code, res.Message) {
			return nil, fmt.Errorf("twilio %d %s: %w", res.Code, res.Message, transport.ErrRateLimited)
		}
		if res.Message != "" {
			return nil, fmt.Errorf("twilio HTTP %d: code %d: %s", resp.StatusCode, res.Code, res.Message)
		}
		return nil, fmt.Errorf("twilio HTTP %d", resp.StatusCode)
	}
	return &res, nil
}

// isRateLimit is the boundary translation from provider error classification
// to the distinguished rate-limit signal.
func isRateLimit(code int, message string) bool {
	if code == rateLimitCode {
		return true
	}
	return strings.Contains(strings.ToLower(message), rateLimitMarker)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
