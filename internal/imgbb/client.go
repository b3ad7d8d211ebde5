// Package imgbb uploads chart images to the imgbb hosting service so WhatsApp
// messages can link (or attach) them by public URL.
package imgbb

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	logx "reportbot/pkg/logx"
)

const defaultEndpoint = "https://api.imgbb.com/1/upload"

// Client talks to the imgbb upload endpoint.
type Client struct {
	endpoint string
	http     *http.Client
	log      logx.Logger

	// now is swappable in tests; uploads share one timestamp per batch.
	now func() time.Time
}

type Option func(*Client)

// WithEndpoint overrides the upload URL (tests use an httptest server).
func WithEndpoint(u string) Option { return func(c *Client) { c.endpoint = u } }

func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

func WithLogger(log logx.Logger) Option { return func(c *Client) { c.log = log } }

func New(opts ...Option) *Client {
	c := &Client{
		endpoint: defaultEndpoint,
		http:     &http.Client{Timeout: 30 * time.Second},
		log:      logx.Nop(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type uploadResponse struct {
	Data struct {
		URL        string `json:"url"`
		DisplayURL string `json:"display_url"`
		Image      struct {
			URL string `json:"url"`
		} `json:"image"`
	} `json:"data"`
}

// UploadOne posts a single image and returns its direct URL.
// Missing file, non-200 status and URL-less responses are plain errors;
// nothing escapes as a panic.
func (c *Client) UploadOne(ctx context.Context, path, apiKey, name string) (string, error) {
	st, err := os.Stat(path)
	if err != nil || st.IsDir() {
		return "", fmt.Errorf("image not found: %s", path)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}

	form := url.Values{}
	form.Set("key", apiKey)
	form.Set("image", base64.StdEncoding.EncodeToString(raw))
	if name != "" {
		form.Set("name", name)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("imgbb post: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("imgbb HTTP %d", resp.StatusCode)
	}

	var ur uploadResponse
	if err := json.Unmarshal(body, &ur); err != nil {
		return "", fmt.Errorf("imgbb response: %w", err)
	}
	// Field priority: nested image URL, then display URL, then generic URL.
	direct := ur.Data.Image.URL
	if direct == "" {
		direct = ur.Data.DisplayURL
	}
	if direct == "" {
		direct = ur.Data.URL
	}
	if direct == "" {
		return "", errors.New("imgbb response has no usable URL")
	}
	return direct, nil
}

// UploadMany uploads up to maxCount images in the given order and returns the
// URLs of the successes only, order preserved. Individual failures are logged
// and skipped, never retried and never fatal.
func (c *Client) UploadMany(ctx context.Context, paths []string, apiKey, namePrefix string, maxCount int) []string {
	if maxCount >= 0 && len(paths) > maxCount {
		paths = paths[:maxCount]
	}
	urls := make([]string, 0, len(paths))
	ts := c.now().Unix()
	for i, p := range paths {
		name := ""
		if namePrefix != "" {
			base := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
			name = fmt.Sprintf("%s_%s_%d_%d", namePrefix, base, ts, i+1)
		}
		u, err := c.UploadOne(ctx, p, apiKey, name)
		if err != nil {
			c.log.Warn("image upload skipped", logx.String("path", p), logx.Err(err))
			continue
		}
		urls = append(urls, u)
	}
	return urls
}
