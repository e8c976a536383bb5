// Package baidu implements ocr.Recognizer on top of Baidu AI's VAT invoice
// recognition endpoint.
package baidu

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"github.com/joseph-ayodele/invoice-ocr/internal/core/ocr"
)

var _ ocr.Recognizer = (*Client)(nil)

// ErrMissingCredentials is returned by NewClient without an API/secret key pair.
var ErrMissingCredentials = errors.New("baidu: api key and secret key are required")

type Client struct {
	cfg     Config
	http    *http.Client
	creds   clientcredentials.Config
	limiter *rate.Limiter
	logger  *slog.Logger

	tokenMu sync.Mutex
	token   *oauth2.Token
}

func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		return nil, ErrMissingCredentials
	}
	cfg.setDefaults()
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		cfg:  cfg,
		http: httpClient,
		creds: clientcredentials.Config{
			ClientID:     cfg.APIKey,
			ClientSecret: cfg.SecretKey,
			TokenURL:     cfg.BaseURL + tokenPath,
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.QPS), cfg.Burst),
		logger:  defaultLogger(logger),
	}, nil
}

// accessToken returns the cached token, fetching a new one with ctx once it
// is missing or about to expire.
func (c *Client) accessToken(ctx context.Context) (*oauth2.Token, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	if c.token.Valid() {
		return c.token, nil
	}
	tok, err := c.creds.Token(context.WithValue(ctx, oauth2.HTTPClient, c.http))
	if err != nil {
		return nil, err
	}
	c.token = tok
	return tok, nil
}

// Recognize posts one image to vat_invoice and returns the decoded document.
// Vendor error codes are left in the document for the caller to classify.
func (c *Client) Recognize(ctx context.Context, image []byte) (ocr.RawResult, error) {
	rid := uuid.New().String()
	start := time.Now()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	tok, err := c.accessToken(ctx)
	if err != nil {
		c.logger.Error("ocr.baidu.token_error", "req_id", rid, "error", err)
		return nil, fmt.Errorf("fetch access token: %w", err)
	}

	form := url.Values{}
	form.Set("image", base64.StdEncoding.EncodeToString(image))
	endpoint := c.cfg.BaseURL + vatInvoicePath + "?access_token=" + url.QueryEscape(tok.AccessToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	c.logger.Debug("ocr.baidu.request", "req_id", rid, "image_bytes", len(image), "app_id", c.cfg.AppID)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("ocr.baidu.send_error", "req_id", rid, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, fmt.Errorf("baidu http error: %w", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.logger.Warn("baidu response body close error", "error", err)
		}
	}(resp.Body)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		c.logger.Error("ocr.baidu.http_status", "req_id", rid, "status", resp.StatusCode, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, fmt.Errorf("baidu status %d: %s", resp.StatusCode, truncate(string(raw), 512))
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc ocr.RawResult
	if err := dec.Decode(&doc); err != nil {
		c.logger.Error("ocr.baidu.decode_error", "req_id", rid, "error", err, "raw_bytes", len(raw))
		return nil, fmt.Errorf("decode baidu response: %w", err)
	}
	if doc == nil {
		doc = ocr.RawResult{}
	}

	c.logger.Info("ocr.baidu.response",
		"req_id", rid,
		"log_id", doc[ocr.KeyLogID],
		"error_code", doc[ocr.KeyErrorCode],
		"words_result_num", doc["words_result_num"],
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return doc, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "...(truncated)"
}
