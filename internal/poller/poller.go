// Package poller is an HTTP client for the job API. It submits content and
// follows a job until it reaches a terminal status.
package poller

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/SirClappington/enq/internal/domain"
)

const DefaultInterval = 2 * time.Second

// Status is the job view returned by the status endpoint.
type Status struct {
	ID        string          `json:"id"`
	Status    domain.Status   `json:"status"`
	Meta      json.RawMessage `json:"meta"`
	CreatedAt time.Time       `json:"created_at"`
}

type Client struct {
	BaseURL  string
	HTTP     *http.Client
	Interval time.Duration
	// OnError is told about failed status fetches during Poll, which keeps going.
	OnError func(error)
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		HTTP:     &http.Client{Timeout: 30 * time.Second},
		Interval: DefaultInterval,
	}
}

// Submit posts html to the submission endpoint and returns the new job id.
func (c *Client) Submit(ctx context.Context, html string) (string, error) {
	body, err := json.Marshal(map[string]string{"html_content": html})
	if err != nil {
		return "", errors.Wrap(err, "encode request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/jobs", bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	var out struct {
		JobID string `json:"jobId"`
	}
	if err := c.do(req, http.StatusAccepted, &out); err != nil {
		return "", errors.Wrap(err, "submit job")
	}
	return out.JobID, nil
}

func (c *Client) Status(ctx context.Context, jobID string) (Status, error) {
	u := c.BaseURL + "/api/jobs/" + url.PathEscape(jobID) + "/status"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Status{}, errors.Wrap(err, "build request")
	}
	var st Status
	if err := c.do(req, http.StatusOK, &st); err != nil {
		return Status{}, errors.Wrapf(err, "status of job %s", jobID)
	}
	return st, nil
}

// Poll reports an optimistic queued status, then fetches the job every
// Interval until it is succeeded or failed. onUpdate is called whenever the
// observed status changes. Failed fetches go to OnError and polling carries
// on; only ctx cancellation ends it early.
func (c *Client) Poll(ctx context.Context, jobID string, onUpdate func(Status)) (Status, error) {
	last := Status{ID: jobID, Status: domain.Queued}
	if onUpdate != nil {
		onUpdate(last)
	}

	interval := c.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	tick := time.NewTicker(interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-tick.C:
		}

		st, err := c.Status(ctx, jobID)
		if err != nil {
			if ctx.Err() != nil {
				return last, ctx.Err()
			}
			if c.OnError != nil {
				c.OnError(err)
			}
			continue
		}
		if st.Status != last.Status && onUpdate != nil {
			onUpdate(st)
		}
		last = st
		if st.Status.Terminal() {
			return st, nil
		}
	}
}

func (c *Client) do(req *http.Request, want int, out any) error {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		var e struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			return errors.Errorf("http %d: %s", resp.StatusCode, e.Error)
		}
		return errors.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return errors.Wrap(json.NewDecoder(resp.Body).Decode(out), "decode response")
}
