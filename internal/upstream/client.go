package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dployr-io/sandbox/internal/logging"
	"github.com/dployr-io/sandbox/internal/models"
)

const (
	probeTimeout     = 3 * time.Second
	maxResponseBytes = 4 << 20
)

// Client talks to the remote provisioning service. Every call carries a hard
// deadline; transport-level failures are classified as warming (the upstream
// runs in a scale-to-zero environment and cold-starts) after kicking a
// detached health probe.
type Client struct {
	baseURL string
	timeout time.Duration
	httpc   *http.Client
	probec  *http.Client
	logger  logging.Logger
}

func New(baseURL string, timeout time.Duration, logger logging.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		httpc:   &http.Client{}, // per-call deadline comes from the context
		probec:  &http.Client{Timeout: probeTimeout},
		logger:  logger,
	}
}

// Call issues a single request and returns the raw response body. It never
// retries; retry is pushed to the caller via the warming classification.
func (c *Client) Call(ctx context.Context, method, endpoint string, body []byte) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	var rd io.Reader
	if len(body) > 0 {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, rd)
	if err != nil {
		return nil, &Error{Kind: KindInternal, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpc.Do(req)
	if err != nil {
		// connection refused, DNS failure, or deadline hit: the upstream is
		// unreachable, most likely cold. Kick it awake and report warming.
		c.fireHealthProbe()
		return nil, &Error{Kind: KindWarming, Err: err}
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &Error{Kind: KindInternal, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{Kind: KindUpstream, Status: resp.StatusCode}
	}
	return data, nil
}

// fireHealthProbe pings the upstream health endpoint to trigger a wake-up.
// It runs detached with its own short timeout; the caller never joins it and
// its outcome is ignored.
func (c *Client) fireHealthProbe() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
		defer cancel()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
		if err != nil {
			return
		}
		resp, err := c.probec.Do(req)
		if err != nil {
			c.logger.Debug("health probe failed", "error", err.Error())
			return
		}
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
		resp.Body.Close()
	}()
}

// CreateInstance forwards the client payload verbatim and parses the
// descriptor the upstream returns. The descriptor must carry an instance id.
func (c *Client) CreateInstance(ctx context.Context, body []byte) (*models.InstanceRecord, error) {
	data, err := c.Call(ctx, http.MethodPost, "/api/instances", body)
	if err != nil {
		return nil, err
	}
	var rec models.InstanceRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, &Error{Kind: KindInternal, Err: err}
	}
	if rec.ID == "" {
		return nil, &Error{Kind: KindInternal, Err: errors.New("upstream response missing instance id")}
	}
	return &rec, nil
}

// DestroyInstance tears down the instance. The provider name travels in the
// body so the upstream can route to the backend that created it.
func (c *Client) DestroyInstance(ctx context.Context, id, provider string) error {
	body, err := json.Marshal(map[string]string{"provider": provider})
	if err != nil {
		return &Error{Kind: KindInternal, Err: err}
	}
	_, err = c.Call(ctx, http.MethodDelete, "/api/instances/"+url.PathEscape(id), body)
	return err
}

// ListInstances fetches the upstream's view of live instances. Used by the
// reconciliation sweep, never by the request path.
func (c *Client) ListInstances(ctx context.Context) ([]models.InstanceRecord, error) {
	data, err := c.Call(ctx, http.MethodGet, "/api/instances", nil)
	if err != nil {
		return nil, err
	}
	var recs []models.InstanceRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, &Error{Kind: KindInternal, Err: err}
	}
	return recs, nil
}
