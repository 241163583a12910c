package hostfunc

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultMaxURLLength   = 8192
	DefaultMaxBodySize    = 1 << 20 // 1MB
	DefaultRequestTimeout = 30 * time.Second
)

// HTTPConfig controls outbound requests. An allowed host matches itself
// and its subdomains; IP addresses and CIDR prefixes match addresses only.
type HTTPConfig struct {
	AllowedHosts   []string
	MaxBodySize    int64
	MaxURLLength   int
	RequestTimeout time.Duration
}

type HTTP struct {
	cfg    HTTPConfig
	client *http.Client
}

func NewHTTP(cfg HTTPConfig) *HTTP {
	if cfg.MaxBodySize == 0 {
		cfg.MaxBodySize = DefaultMaxBodySize
	}
	if cfg.MaxURLLength == 0 {
		cfg.MaxURLLength = DefaultMaxURLLength
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}

	return &HTTP{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.RequestTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if !hostAllowed(cfg.AllowedHosts, req.URL.Hostname()) {
					return fmt.Errorf("redirect to host not allowed: %s", req.URL.Hostname())
				}
				return nil
			},
		},
	}
}

func (h *HTTP) Request(ctx context.Context, req HTTPRequest) (any, error) {
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}

	switch method {
	case "GET", "POST", "PUT", "DELETE", "PATCH", "HEAD", "OPTIONS":
	default:
		return nil, fmt.Errorf("unsupported method: %s", method)
	}

	if req.URL == "" {
		return nil, fmt.Errorf("url required")
	}
	if len(req.URL) > h.cfg.MaxURLLength {
		return nil, fmt.Errorf("url exceeds max length")
	}

	parsed, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid url")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("scheme must be http or https")
	}

	if len(h.cfg.AllowedHosts) == 0 {
		return nil, fmt.Errorf("http not enabled")
	}

	host := parsed.Hostname()
	if !hostAllowed(h.cfg.AllowedHosts, host) {
		return nil, fmt.Errorf("host not allowed: %s", host)
	}

	var body io.Reader
	if req.Body != "" {
		if int64(len(req.Body)) > h.cfg.MaxBodySize {
			return nil, fmt.Errorf("request body exceeds max size")
		}
		body = strings.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	Logger().Debug("http request", zap.String("method", method), zap.String("host", host))

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, h.cfg.MaxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	respHeaders := make(map[string]string, len(resp.Header))
	for k, v := range resp.Header {
		if len(v) > 0 {
			respHeaders[k] = v[0]
		}
	}

	return &HTTPResponse{
		Status:  resp.StatusCode,
		Body:    string(respBody),
		Headers: respHeaders,
	}, nil
}

// Get is Request with the method fixed to GET.
func (h *HTTP) Get(ctx context.Context, req HTTPGetRequest) (any, error) {
	return h.Request(ctx, HTTPRequest{Method: http.MethodGet, URL: req.URL, Headers: req.Headers})
}

func hostAllowed(allowed []string, host string) bool {
	addr, addrErr := netip.ParseAddr(host)
	for _, a := range allowed {
		if prefix, err := netip.ParsePrefix(a); err == nil {
			if addrErr == nil && prefix.Contains(addr) {
				return true
			}
			continue
		}
		if ip, err := netip.ParseAddr(a); err == nil {
			if addrErr == nil && ip == addr {
				return true
			}
			continue
		}
		if addrErr != nil && (strings.EqualFold(host, a) || strings.HasSuffix(strings.ToLower(host), "."+strings.ToLower(a))) {
			return true
		}
	}
	return false
}
