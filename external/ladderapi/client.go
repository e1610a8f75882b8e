package ladderapi

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/riskibarqy/challenge-ladder/internal/domain/ladder"
	"github.com/riskibarqy/challenge-ladder/internal/platform/logging"
	"github.com/riskibarqy/challenge-ladder/internal/platform/resilience"
	"github.com/riskibarqy/challenge-ladder/internal/usecase"
	"github.com/valyala/bytebufferpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultTimeout   = 20 * time.Second
	maxResponseBytes = 6 << 20
	submitAction     = "submitMatch"
	stateFlightKey   = "state"
	wireDateLayout   = "2006-01-02T15:04:05.000Z"
)

var errLadderTransient = crerr.New("ladder api transient failure")

type ClientConfig struct {
	HTTPClient     *http.Client
	BaseURL        string
	Timeout        time.Duration
	MaxRetries     int
	Logger         *logging.Logger
	CircuitBreaker resilience.CircuitBreakerConfig
}

// Client talks to the single-endpoint ladder API: a bodyless GET returns the
// full state, a JSON POST submits one match. Only reads are retried.
type Client struct {
	httpClient *http.Client
	baseURL    string
	maxRetries int
	backoff    time.Duration
	logger     *logging.Logger
	breaker    *resilience.CircuitBreaker
	flight     resilience.Flight[ladder.Snapshot]
}

func NewClient(cfg ClientConfig) (*Client, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	baseURL, err := validateHTTPBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, crerr.Wrap(err, "invalid LADDER_API_URL")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = defaultTimeout
	}

	breakerCfg := cfg.CircuitBreaker
	if breakerCfg.OnStateChange == nil {
		breakerCfg.OnStateChange = func(from, to resilience.CircuitState) {
			logger.Warn("ladder api circuit breaker state changed", "from", from, "to", to)
		}
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		maxRetries: max(cfg.MaxRetries, 0),
		backoff:    time.Second,
		logger:     logger,
		breaker:    resilience.NewCircuitBreaker(breakerCfg),
	}, nil
}

// FetchState reads the whole ladder. Concurrent callers share one request.
func (c *Client) FetchState(ctx context.Context) (ladder.Snapshot, error) {
	snapshot, err, shared := c.flight.Do(stateFlightKey, func() (ladder.Snapshot, error) {
		var out ladder.Snapshot
		err := c.breaker.Execute(func() error {
			raw, reqErr := c.executeRequest(ctx, http.MethodGet, nil, c.maxRetries, "")
			if reqErr != nil {
				return reqErr
			}
			decoded, decodeErr := decodeState(raw)
			if decodeErr != nil {
				return decodeErr
			}
			out = decoded
			return nil
		}, isCircuitFailure)
		return out, c.circuitError(ctx, err)
	})
	if shared {
		c.logger.DebugContext(ctx, "ladder state fetch shared with in-flight request")
	}
	if err != nil {
		return ladder.Snapshot{}, err
	}

	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.SetAttributes(
			attribute.Int("ladder.players", len(snapshot.Players)),
			attribute.Int("ladder.matches", len(snapshot.Matches)),
		)
	}
	return snapshot.Clone(), nil
}

// SubmitMatch posts one match. It is never retried here: a lost response
// could otherwise record the match twice.
func (c *Client) SubmitMatch(ctx context.Context, candidate ladder.PendingMatch, pin string) (usecase.SubmitReceipt, error) {
	body, err := sonic.Marshal(newSubmitRequest(candidate, pin))
	if err != nil {
		return usecase.SubmitReceipt{}, crerr.Wrap(err, "marshal submit payload")
	}

	var receipt usecase.SubmitReceipt
	err = c.breaker.Execute(func() error {
		raw, reqErr := c.executeRequest(ctx, http.MethodPost, body, 0, pin)
		if reqErr != nil {
			return reqErr
		}
		decoded, decodeErr := decodeSubmit(raw, pin)
		if decodeErr != nil {
			return decodeErr
		}
		receipt = decoded
		return nil
	}, isCircuitFailure)
	if err = c.circuitError(ctx, err); err != nil {
		return usecase.SubmitReceipt{}, err
	}

	c.logger.InfoContext(ctx, "match submitted", "match", candidate.String(), "state_returned", receipt.HasSnapshot)
	return receipt, nil
}

func (c *Client) circuitError(ctx context.Context, err error) error {
	if !stderrors.Is(err, resilience.ErrCircuitOpen) {
		return err
	}
	c.logger.WarnContext(ctx, "ladder api circuit breaker rejected request", "state", c.breaker.State())
	return fmt.Errorf("%w: %w: ladder api is temporarily unavailable", usecase.ErrNetwork, usecase.ErrDependencyUnavailable)
}

func (c *Client) executeRequest(ctx context.Context, method string, body []byte, retries int, secret string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL, reader)
		if err != nil {
			return "", crerr.Wrap(err, "build request")
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", fmt.Errorf("%w: %w", usecase.ErrNetwork, ctxErr)
			}
			lastErr = crerr.Mark(
				fmt.Errorf("%w: send request: %s", usecase.ErrNetwork, sanitizeSensitiveText(err.Error(), secret)),
				errLadderTransient,
			)
		} else {
			raw, readErr := readBody(resp)
			switch {
			case readErr != nil:
				lastErr = crerr.Mark(fmt.Errorf("%w: read response body: %v", usecase.ErrNetwork, readErr), errLadderTransient)
			case resp.StatusCode >= 200 && resp.StatusCode < 300:
				return raw, nil
			case isRetryableStatus(resp.StatusCode):
				lastErr = crerr.Mark(
					fmt.Errorf("%w: status=%d body=%s", usecase.ErrNetwork, resp.StatusCode, abbreviateBody(sanitizeSensitiveText(raw, secret))),
					errLadderTransient,
				)
			default:
				lastErr = fmt.Errorf("%w: status=%d body=%s", usecase.ErrNetwork, resp.StatusCode, abbreviateBody(sanitizeSensitiveText(raw, secret)))
				c.logger.WarnContext(ctx, "ladder api request failed", "method", method, "status", resp.StatusCode, "error", lastErr)
				return "", lastErr
			}
		}

		if attempt == retries {
			break
		}
		timer := time.NewTimer(time.Duration(attempt+1) * c.backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", fmt.Errorf("%w: %w", usecase.ErrNetwork, ctx.Err())
		case <-timer.C:
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("%w: request failed", usecase.ErrNetwork)
	}
	c.logger.WarnContext(ctx, "ladder api request failed", "method", method, "attempts", retries+1, "error", lastErr)
	return "", lastErr
}

func readBody(resp *http.Response) (string, error) {
	defer func() {
		_ = resp.Body.Close()
	}()

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	if _, err := buf.ReadFrom(io.LimitReader(resp.Body, maxResponseBytes)); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func isCircuitFailure(err error) bool {
	return crerr.Is(err, errLadderTransient)
}

func isRetryableStatus(code int) bool {
	return code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

func validateHTTPBaseURL(raw string) (string, error) {
	candidate := strings.TrimSpace(raw)
	if candidate == "" {
		return "", crerr.New("value is empty")
	}

	parsed, err := url.Parse(candidate)
	if err != nil {
		return "", crerr.Wrapf(err, "parse %q", candidate)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", crerr.Newf("%q uses unsupported scheme=%q; expected http or https", candidate, parsed.Scheme)
	}
	if strings.TrimSpace(parsed.Host) == "" {
		return "", crerr.Newf("%q has empty host", candidate)
	}
	return candidate, nil
}

func sanitizeSensitiveText(value, secret string) string {
	value = strings.TrimSpace(value)
	if value == "" || secret == "" {
		return value
	}
	return strings.ReplaceAll(value, secret, "REDACTED")
}

func abbreviateBody(text string) string {
	text = strings.TrimSpace(text)
	if len(text) <= 240 {
		return text
	}
	return text[:240] + "..."
}
