// Package llm implements the OpenAI-compatible LLM connector: prompt
// assembly, HTTP dispatch with bounded retry, format-aware response
// parsing, and a circuit breaker guarding a misbehaving endpoint.
package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	json "github.com/goccy/go-json"

	"github.com/nudge-sh/nudge/internal/config"
	"github.com/nudge-sh/nudge/internal/errs"
	"github.com/nudge-sh/nudge/internal/telemetry"
	"github.com/nudge-sh/nudge/pkg/protocol"
)

// chatMessage mirrors the OpenAI chat/completions message shape.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
}

// Connector calls an OpenAI-compatible chat/completions endpoint.
type Connector struct {
	client  *http.Client
	cfg     config.ModelConfig
	breaker *breaker
}

// New builds a Connector from the model configuration, grounded on the
// teacher's embedding HTTP client shape (a single *http.Client with a fixed
// Timeout per internal/embedding/openai.go). tel may be nil (telemetry is
// advisory instrumentation, not a request-path dependency).
func New(cfg config.ModelConfig, bcfg BreakerConfig, tel *telemetry.Telemetry) *Connector {
	timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	var onTransition func(BreakerState)
	if tel != nil {
		onTransition = func(s BreakerState) {
			tel.RecordBreakerTransition(context.Background(), s.String())
		}
	}
	return &Connector{
		client:  &http.Client{Timeout: timeout},
		cfg:     cfg,
		breaker: newBreaker(bcfg, onTransition),
	}
}

func (c *Connector) apiKey() string {
	if c.cfg.APIKey != "" {
		return c.cfg.APIKey
	}
	if c.cfg.APIKeyEnv != "" {
		return os.Getenv(c.cfg.APIKeyEnv)
	}
	return ""
}

// BreakerState exposes the connector's circuit breaker state for telemetry.
func (c *Connector) BreakerState() BreakerState {
	return c.breaker.State()
}

// Complete builds the prompt, calls the endpoint (with one retry on
// connection error only, never on 4xx/5xx status), and returns the
// format-parsed result.
func (c *Connector) Complete(ctx context.Context, format protocol.Format, bundle *protocol.ContextBundle, buffer string, cursor int) (Parsed, error) {
	if !c.breaker.Allow() {
		return Parsed{}, errs.New(errs.LLMTransport, "llm endpoint circuit breaker open")
	}

	prompt := BuildPrompt(format, bundle, buffer, cursor)
	reqBody := chatRequest{
		Model: c.cfg.Name,
		Messages: []chatMessage{
			{Role: "system", Content: SystemPrompt(c.cfg.SystemPrompt)},
			{Role: "user", Content: prompt},
		},
	}

	body, err := c.call(ctx, reqBody)
	if err != nil {
		if isConnErr(err) {
			body, err = c.call(ctx, reqBody)
		}
		if err != nil {
			c.breaker.RecordFailure()
			return Parsed{}, err
		}
	}
	c.breaker.RecordSuccess()

	var decoded chatResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return Parsed{}, errs.Wrap(errs.LLMParse, "decode chat/completions response", err)
	}
	if len(decoded.Choices) == 0 {
		return Parsed{}, errs.New(errs.LLMParse, "chat/completions response had no choices")
	}

	return Parse(format, decoded.Choices[0].Message.Content), nil
}

type connError struct{ error }

func isConnErr(err error) bool {
	_, ok := err.(connError)
	return ok
}

func (c *Connector) call(ctx context.Context, reqBody chatRequest) ([]byte, error) {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, errs.Wrap(errs.LLMTransport, "marshal chat/completions request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, errs.Wrap(errs.LLMTransport, "build chat/completions request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if key := c.apiKey(); key != "" {
		httpReq.Header.Set("Authorization", "Bearer "+key)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, connError{errs.Wrap(errs.LLMTransport, "send chat/completions request", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errs.Wrap(errs.LLMTransport, "read chat/completions response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errs.New(errs.LLMHTTPStatus, fmt.Sprintf("chat/completions status=%d body=%s", resp.StatusCode, string(respBody)))
	}
	return respBody, nil
}
