package xprotect

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Client retrieves the server configuration over SOAP. All fields are read
// once at call entry, mutating them later never affects a call in flight.
// Hostname and credentials are not validated, the request is attempted as-is.
type Client struct {
	Hostname string // host or host:port, default port 443
	Username string
	Password string
	Token    string // session token from a prior login, empty on first call
	Timeout  time.Duration
}

const defaultTimeout = 15 * time.Second

// ServerError is a non-200 answer. Status holds the bare status message,
// the response body is never parsed.
type ServerError struct {
	Code   int
	Status string
}

func (e *ServerError) Error() string {
	return "xprotect: server response: " + e.Status
}

// ConfigResult is the single terminal outcome of an async retrieval.
type ConfigResult struct {
	Config *Configuration
	Err    error
}

// GetConfiguration runs the retrieval with the server chain pinned to the
// supplied trust material (PEM or PKCS#12, see NewTrustPool). Trust failures
// come back through the same error return as transport failures.
func (c *Client) GetConfiguration(ctx context.Context, trust io.ReadCloser, passphrase string) (*Configuration, error) {
	pool, err := NewTrustPool(trust, passphrase)
	if err != nil {
		return nil, err
	}
	return c.getConfiguration(ctx, SecureConfig(pool))
}

// GetConfigurationInsecure accepts any server certificate. Lab use only.
func (c *Client) GetConfigurationInsecure(ctx context.Context) (*Configuration, error) {
	return c.getConfiguration(ctx, InsecureConfig())
}

// RequestConfiguration runs GetConfiguration in the background and delivers
// exactly one result, then closes the channel.
func (c *Client) RequestConfiguration(ctx context.Context, trust io.ReadCloser, passphrase string) <-chan ConfigResult {
	client := *c // snapshot before spawning
	ch := make(chan ConfigResult, 1)
	go func() {
		conf, err := client.GetConfiguration(ctx, trust, passphrase)
		ch <- ConfigResult{Config: conf, Err: err}
		close(ch)
	}()
	return ch
}

// RequestConfigurationInsecure is the async form of GetConfigurationInsecure.
func (c *Client) RequestConfigurationInsecure(ctx context.Context) <-chan ConfigResult {
	client := *c
	ch := make(chan ConfigResult, 1)
	go func() {
		conf, err := client.GetConfigurationInsecure(ctx)
		ch <- ConfigResult{Config: conf, Err: err}
		close(ch)
	}()
	return ch
}

func (c *Client) getConfiguration(ctx context.Context, conf *tls.Config) (*Configuration, error) {
	// snapshot all request parameters before any I/O
	host := c.Hostname
	auth := BasicAuth(c.Username, c.Password)
	body := configurationEnvelope(c.Token)
	timeout := c.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	if strings.IndexByte(host, ':') < 0 {
		host += ":443"
	}

	req, err := http.NewRequestWithContext(ctx, "POST", "https://"+host+ServicePath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", ActionGetConfiguration)
	// Content-Length is set from the bytes.Reader size

	// transport lives for this one call
	client := &http.Client{
		Transport: &http.Transport{TLSClientConfig: conf},
		Timeout:   timeout,
	}
	defer client.CloseIdleConnections()

	res, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, &ServerError{Code: res.StatusCode, Status: statusText(res)}
	}

	raw, err := collapse(res.Body)
	if err != nil {
		return nil, err
	}

	return parseConfiguration(raw)
}

// statusText strips the numeric prefix from the status line.
func statusText(res *http.Response) string {
	s := strings.TrimPrefix(res.Status, strconv.Itoa(res.StatusCode))
	return strings.TrimSpace(s)
}
