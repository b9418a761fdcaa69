// Package accounting is the HTTP client of the external accounting ledger service.
package accounting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"checkbook/internal/core/apperror"
	"checkbook/internal/domain/posting"
	"checkbook/pkg/logger"
)

const (
	entriesPath     = "/api/public/entradas-contables"
	apiKeyHeader    = "X-Api-Key"
	maxErrorExcerpt = 512
)

var tracer = otel.Tracer("checkbook/accounting")

// Config configures the accounting client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration

	// Breaker settings. Zero values fall back to DefaultConfig.
	BreakerMaxRequests         uint32
	BreakerInterval            time.Duration
	BreakerOpenTimeout         time.Duration
	BreakerConsecutiveFailures uint32
}

// DefaultConfig returns conservative client defaults.
func DefaultConfig(baseURL, apiKey string) Config {
	return Config{
		BaseURL:                    baseURL,
		APIKey:                     apiKey,
		Timeout:                    15 * time.Second,
		BreakerMaxRequests:         1,
		BreakerInterval:            time.Minute,
		BreakerOpenTimeout:         30 * time.Second,
		BreakerConsecutiveFailures: 5,
	}
}

// Client implements posting.AccountingClient.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

var _ posting.AccountingClient = (*Client)(nil)

// entryPayload is the wire format of one ledger entry.
type entryPayload struct {
	Description string      `json:"descripcion"`
	AccountID   int64       `json:"cuenta_Id"`
	AuxiliaryID int64       `json:"auxiliar_Id"`
	Movement    string      `json:"tipoMovimiento"`
	PostingDate string      `json:"fechaAsiento"`
	Amount      json.Number `json:"montoAsiento"`
}

type entryResponse struct {
	Data *struct {
		ID *int64 `json:"id"`
	} `json:"data"`
}

// NewClient creates an accounting client with its own circuit breaker.
func NewClient(cfg Config) *Client {
	def := DefaultConfig(cfg.BaseURL, cfg.APIKey)
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.BreakerMaxRequests == 0 {
		cfg.BreakerMaxRequests = def.BreakerMaxRequests
	}
	if cfg.BreakerInterval <= 0 {
		cfg.BreakerInterval = def.BreakerInterval
	}
	if cfg.BreakerOpenTimeout <= 0 {
		cfg.BreakerOpenTimeout = def.BreakerOpenTimeout
	}
	if cfg.BreakerConsecutiveFailures == 0 {
		cfg.BreakerConsecutiveFailures = def.BreakerConsecutiveFailures
	}

	threshold := cfg.BreakerConsecutiveFailures
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "service-" + posting.ServiceName,
		MaxRequests: cfg.BreakerMaxRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn(context.Background(), "circuit breaker state changed",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: breaker,
	}
}

// CreateEntry posts one entry and returns the id the service assigned.
func (c *Client) CreateEntry(ctx context.Context, entry posting.EntryRequest) (int64, error) {
	ctx, span := tracer.Start(ctx, "accounting.CreateEntry")
	defer span.End()
	span.SetAttributes(
		attribute.String("accounting.movement", string(entry.Movement)),
		attribute.Int64("accounting.account_id", entry.AccountID),
	)

	res, err := c.breaker.Execute(func() (any, error) {
		return c.send(ctx, entry)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return 0, apperror.NewExternalService(posting.ServiceName, "accounting service unavailable (circuit open)").
				WithCause(err)
		}
		return 0, err
	}

	entryID := res.(int64)
	span.SetAttributes(attribute.Int64("accounting.entry_id", entryID))
	return entryID, nil
}

func (c *Client) send(ctx context.Context, entry posting.EntryRequest) (int64, error) {
	body, err := json.Marshal(entryPayload{
		Description: entry.Description,
		AccountID:   entry.AccountID,
		AuxiliaryID: entry.AuxiliaryID,
		Movement:    string(entry.Movement),
		PostingDate: entry.PostingDate.Format("2006-01-02"),
		Amount:      json.Number(entry.Amount.StringFixed(2)),
	})
	if err != nil {
		return 0, fmt.Errorf("encode entry: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+entriesPath, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, excerpt(raw))
	}

	var out entryResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}
	if out.Data == nil || out.Data.ID == nil {
		return 0, fmt.Errorf("response has no data.id: %s", excerpt(raw))
	}
	return *out.Data.ID, nil
}

func excerpt(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > maxErrorExcerpt {
		return s[:maxErrorExcerpt] + "..."
	}
	return s
}
