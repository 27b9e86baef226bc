package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

var ErrNotConfigured = errors.New("judge endpoint not configured")

// Utterance is one line of a debate transcript.
type Utterance struct {
	Speaker string `json:"speaker"`
	Team    string `json:"team,omitempty"`
	Text    string `json:"text"`
}

// Verdict is the structured ruling returned by the remote judge.
type Verdict struct {
	Winner      string         `json:"winner"`
	Scores      map[string]int `json:"scores"`
	BestSpeaker string         `json:"bestSpeaker"`
	Feedback    string         `json:"feedback"`
}

type request struct {
	Transcript []Utterance `json:"transcript"`
	Resolution string      `json:"resolution"`
}

// Client calls a remote judging endpoint. All calls share one rate limiter.
type Client struct {
	url     string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
}

type Options struct {
	URL     string
	APIKey  string
	Timeout time.Duration
	// PerMinute caps outbound calls; zero disables limiting.
	PerMinute int
}

func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.PerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.PerMinute)), opts.PerMinute)
	}
	return &Client{
		url:     opts.URL,
		apiKey:  opts.APIKey,
		http:    &http.Client{Timeout: timeout},
		limiter: limiter,
	}
}

func (c *Client) Judge(ctx context.Context, transcript []Utterance, resolution string) (Verdict, error) {
	if c == nil || c.url == "" {
		return Verdict{}, ErrNotConfigured
	}
	if len(transcript) == 0 {
		return Verdict{}, errors.New("empty transcript")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return Verdict{}, fmt.Errorf("judge rate limit: %w", err)
	}

	body, err := json.Marshal(request{Transcript: transcript, Resolution: resolution})
	if err != nil {
		return Verdict{}, fmt.Errorf("marshal judge request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Verdict{}, fmt.Errorf("build judge request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return Verdict{}, fmt.Errorf("judge request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusBadRequest {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return Verdict{}, fmt.Errorf("judge request: status %d: %s", res.StatusCode, bytes.TrimSpace(msg))
	}
	var v Verdict
	if err := json.NewDecoder(res.Body).Decode(&v); err != nil {
		return Verdict{}, fmt.Errorf("decode verdict: %w", err)
	}
	if v.Scores == nil {
		v.Scores = map[string]int{}
	}
	return v, nil
}
