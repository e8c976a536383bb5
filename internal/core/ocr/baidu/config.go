package baidu

import (
	"log/slog"
	"net/http"
	"time"
)

const (
	DefaultBaseURL = "https://aip.baidubce.com"
	tokenPath      = "/oauth/2.0/token"
	vatInvoicePath = "/rest/2.0/ocr/v1/vat_invoice"
)

// Config for the Baidu AI client.
type Config struct {
	AppID     string        // informational; the REST API authenticates with the key pair
	APIKey    string        // OAuth2 client_id
	SecretKey string        // OAuth2 client_secret
	BaseURL   string        // default https://aip.baidubce.com
	QPS       float64       // request rate towards vat_invoice, default 2 (free tier)
	Burst     int           // default 1
	Timeout   time.Duration // per HTTP request, default 30s

	HTTPClient *http.Client // optional; overrides Timeout
}

func (c *Config) setDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.QPS <= 0 {
		c.QPS = 2
	}
	if c.Burst <= 0 {
		c.Burst = 1
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
}

func defaultLogger(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
