// Package llamacpp adapts a llama.cpp HTTP server to ports.LanguageModel.
//
// The server reports only the top candidates of each next-token distribution.
// Every other vocabulary entry gets a floor log-probability.
package llamacpp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/cogflow/internal/logging"
)

const (
	// DefaultTopK is the number of candidates requested per query.
	DefaultTopK = 64
	// DefaultFloor is the log-probability of tokens outside the top candidates.
	DefaultFloor = -30.0
	// DefaultTimeout bounds one HTTP exchange.
	DefaultTimeout = 60 * time.Second
)

// StatusError is a non-200 answer of the server.
type StatusError struct {
	Path string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("llama.cpp %s: status %d: %s", e.Path, e.Code, e.Body)
}

// Client talks to one llama.cpp server.
type Client struct {
	endpoint  string
	vocabSize int
	topK      int
	floor     float64
	http      *http.Client
	logger    *slog.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option { return func(cl *Client) { cl.http = c } }

// WithTopK sets how many candidates are requested per query.
func WithTopK(k int) Option { return func(cl *Client) { cl.topK = k } }

// WithFloor sets the log-probability given to unreported tokens.
func WithFloor(lp float64) Option { return func(cl *Client) { cl.floor = lp } }

// WithTimeout bounds each HTTP exchange.
func WithTimeout(d time.Duration) Option { return func(cl *Client) { cl.http.Timeout = d } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(cl *Client) { cl.logger = l } }

// New creates a client for the server at endpoint (e.g. http://localhost:8080).
// vocabSize must match the model served.
func New(endpoint string, vocabSize int, opts ...Option) *Client {
	c := &Client{
		endpoint:  strings.TrimRight(endpoint, "/"),
		vocabSize: vocabSize,
		topK:      DefaultTopK,
		floor:     DefaultFloor,
		http:      &http.Client{Timeout: DefaultTimeout},
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type tokenizeRequest struct {
	Content    string `json:"content"`
	AddSpecial bool   `json:"add_special"`
}

type tokenizeResponse struct {
	Tokens []int `json:"tokens"`
}

type detokenizeRequest struct {
	Tokens []int `json:"tokens"`
}

type detokenizeResponse struct {
	Content string `json:"content"`
}

type completionRequest struct {
	Prompt      []int   `json:"prompt"`
	NPredict    int     `json:"n_predict"`
	NProbs      int     `json:"n_probs"`
	Temperature float64 `json:"temperature"`
	CachePrompt bool    `json:"cache_prompt"`
}

type candidate struct {
	ID      int     `json:"id"`
	LogProb float64 `json:"logprob"`
}

type completionResponse struct {
	Probabilities []struct {
		TopLogProbs []candidate `json:"top_logprobs"`
	} `json:"completion_probabilities"`
}

// Tokenize implements ports.LanguageModel. Special tokens are not added.
func (c *Client) Tokenize(ctx context.Context, text string) ([]int, error) {
	var resp tokenizeResponse
	if err := c.post(ctx, "/tokenize", tokenizeRequest{Content: text}, &resp); err != nil {
		return nil, err
	}
	return resp.Tokens, nil
}

// Detokenize implements ports.LanguageModel.
func (c *Client) Detokenize(ctx context.Context, tokens []int) (string, error) {
	var resp detokenizeResponse
	if err := c.post(ctx, "/detokenize", detokenizeRequest{Tokens: tokens}, &resp); err != nil {
		return "", err
	}
	return resp.Content, nil
}

// NextTokenLogProbs implements ports.LanguageModel with a one-token completion.
func (c *Client) NextTokenLogProbs(ctx context.Context, tokens []int) ([]float64, error) {
	req := completionRequest{Prompt: tokens, NPredict: 1, NProbs: c.topK, CachePrompt: true}
	var resp completionResponse
	if err := c.post(ctx, "/completion", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Probabilities) == 0 {
		return nil, fmt.Errorf("llama.cpp /completion: no probabilities in response")
	}

	out := make([]float64, c.vocabSize)
	for i := range out {
		out[i] = c.floor
	}
	for _, cand := range resp.Probabilities[0].TopLogProbs {
		if cand.ID < 0 || cand.ID >= c.vocabSize {
			return nil, fmt.Errorf("llama.cpp /completion: token %d outside vocabulary of %d", cand.ID, c.vocabSize)
		}
		if !math.IsInf(cand.LogProb, -1) {
			out[cand.ID] = cand.LogProb
		}
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("error marshaling request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("llama.cpp %s: %w", path, err)
	}
	defer resp.Body.Close()
	c.logger.Debug("llama.cpp request", "path", path, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("llama.cpp %s: error decoding response: %w", path, err)
	}
	return nil
}
