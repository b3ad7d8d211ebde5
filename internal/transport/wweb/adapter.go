// Package wweb drives WhatsApp Web through an automated browser (go-rod).
//
// The session is a scoped external resource: the first Send launches the
// browser and waits (bounded) for the operator to scan the QR code; Close
// must run on every exit path of the surrounding operation or the automated
// browser leaks.
package wweb

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"reportbot/internal/transport"
	logx "reportbot/pkg/logx"
)

const (
	baseURL = "https://web.whatsapp.com"

	// loggedInSelector is the chat-list pane, present only after login.
	loggedInSelector = "#side"
	// composeSelector is the message box inside an open chat.
	composeSelector = "footer div[contenteditable='true']"

	sendTimeout = 60 * time.Second
)

type Config struct {
	// Bin is the browser binary; empty lets the launcher locate one.
	Bin      string
	Headless bool
	// QRTimeout bounds the wait for the manual QR-code scan.
	QRTimeout time.Duration
}

type Adapter struct {
	cfg Config
	log logx.Logger

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
}

func New(cfg Config, log logx.Logger) *Adapter {
	if cfg.QRTimeout <= 0 {
		cfg.QRTimeout = 30 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Adapter{cfg: cfg, log: log}
}

func (a *Adapter) Name() string { return "browser" }

// ensureSession launches the browser and blocks until WhatsApp Web is logged
// in, or the QR wait expires.
func (a *Adapter) ensureSession(ctx context.Context) (*rod.Browser, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.browser != nil {
		return a.browser, nil
	}

	l := launcher.New().Headless(a.cfg.Headless)
	if strings.TrimSpace(a.cfg.Bin) != "" {
		l = l.Bin(a.cfg.Bin)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: baseURL})
	if err != nil {
		_ = browser.Close()
		l.Cleanup()
		return nil, fmt.Errorf("open whatsapp web: %w", err)
	}

	a.log.Info("waiting for WhatsApp Web login (scan QR if prompted)",
		logx.Duration("timeout", a.cfg.QRTimeout))
	if _, err := page.Timeout(a.cfg.QRTimeout).Element(loggedInSelector); err != nil {
		_ = browser.Close()
		l.Cleanup()
		return nil, fmt.Errorf("whatsapp web login not confirmed within %s: %w", a.cfg.QRTimeout, err)
	}

	a.launcher = l
	a.browser = browser
	return browser, nil
}

func (a *Adapter) Send(ctx context.Context, msg transport.Message) error {
	browser, err := a.ensureSession(ctx)
	if err != nil {
		return err
	}

	// Media cannot be attached this way; public links are already part of
	// the message body.
	chatURL := fmt.Sprintf("%s/send?phone=%s&text=%s",
		baseURL, url.QueryEscape(normalizePhone(msg.To)), url.QueryEscape(msg.Body))

	page, err := browser.Page(proto.TargetCreateTarget{URL: chatURL})
	if err != nil {
		return fmt.Errorf("open chat: %w", err)
	}
	defer func() { _ = page.Close() }()

	box, err := page.Timeout(sendTimeout).Element(composeSelector)
	if err != nil {
		return fmt.Errorf("chat compose box not found: %w", err)
	}
	if err := box.Focus(); err != nil {
		return fmt.Errorf("focus compose box: %w", err)
	}
	if err := page.Keyboard.Type(input.Enter); err != nil {
		return fmt.Errorf("press enter: %w", err)
	}

	// Give the web client a moment to hand the message to the server before
	// the page is closed.
	if err := sleepCtx(ctx, 2*time.Second); err != nil {
		return err
	}
	a.log.Info("whatsapp web message dispatched", logx.String("to", msg.To))
	return nil
}

// Close tears the browser session down. Safe to call multiple times and
// after failed sends.
func (a *Adapter) Close(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	var err error
	if a.browser != nil {
		err = a.browser.Close()
		a.browser = nil
	}
	if a.launcher != nil {
		a.launcher.Cleanup()
		a.launcher = nil
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("close browser: %w", err)
	}
	return nil
}

// normalizePhone strips everything but digits; the send URL wants a bare
// international number.
func normalizePhone(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
