// Package upload submits averaged samples to radmon.org.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/radmon-relay/internal/httputil"
	"github.com/banshee-data/radmon-relay/internal/monitoring"
	"github.com/banshee-data/radmon-relay/internal/sample"
	"github.com/banshee-data/radmon-relay/internal/version"
)

const (
	DefaultHost = "www.radmon.org"
	DefaultPort = 80

	// maxResponseBytes caps how much of a reply is buffered for inspection.
	maxResponseBytes = 64 << 10
)

var (
	// ErrUpload covers transport and HTTP failures. The sample is lost.
	ErrUpload = errors.New("upload failed")
	// ErrAuth means radmon.org rejected the credentials.
	ErrAuth = errors.New("incorrect user/password combination")
)

var logf = monitoring.Scoped("upload")

// Config identifies the server and account.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
}

// Client performs one submit request per sample.
type Client struct {
	cfg  Config
	http httputil.HTTPClient
}

// New returns a client. Empty host and port fall back to radmon.org:80 and
// a nil HTTP client uses httputil.NewStandardClient.
func New(cfg Config, client httputil.HTTPClient) *Client {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if client == nil {
		client = httputil.NewStandardClient(nil)
	}
	return &Client{cfg: cfg, http: client}
}

// FormatDatetime renders t in UTC as radmon.org expects, with the only
// escaped character being the space.
func FormatDatetime(t time.Time) string {
	return t.UTC().Format("2006-01-02") + "%20" + t.UTC().Format("15:04:05")
}

// Query builds the raw submit query. Credentials are sent verbatim.
func (c *Client) Query(s sample.Sample) string {
	var b strings.Builder
	b.WriteString("user=")
	b.WriteString(c.cfg.User)
	b.WriteString("&password=")
	b.WriteString(c.cfg.Password)
	b.WriteString("&function=submit&datetime=")
	b.WriteString(FormatDatetime(s.Timestamp))
	b.WriteString("&value=")
	b.WriteString(strconv.Itoa(s.CPM))
	b.WriteString("&unit=CPM")
	return b.String()
}

// RequestLine returns the HTTP request line sent for s.
func (c *Client) RequestLine(s sample.Sample) string {
	return "GET /radmon.php?" + c.Query(s) + " HTTP/1.1"
}

// Send submits s. It returns an error wrapping ErrAuth when the reply says
// the login is incorrect, and one wrapping ErrUpload for any other failure.
// The whole reply is read before it is inspected.
func (c *Client) Send(ctx context.Context, s sample.Sample) error {
	endpoint := "http://" + net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port)) + "/radmon.php"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: build request: %w", ErrUpload, err)
	}
	req.URL.RawQuery = c.Query(s)
	req.Host = c.cfg.Host
	req.Header.Set("User-Agent", version.UserAgent())

	logf("sending average sample %s", s)
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpload, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: read response: %w", ErrUpload, err)
	}
	logf("server response: %s %d", resp.Proto, resp.StatusCode)

	if IsAuthFailure(body) {
		return ErrAuth
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%w: HTTP %d", ErrUpload, resp.StatusCode)
	}
	return nil
}

// IsAuthFailure reports whether a radmon.org reply rejects the login.
func IsAuthFailure(body []byte) bool {
	return strings.Contains(strings.ToLower(string(body)), "incorrect login")
}
