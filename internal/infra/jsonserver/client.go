// Package jsonserver is the REST client for the json-server-style backend
// that persists the ledger under /transactions.
package jsonserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/boddenberg/pj-ledger-bfa-go/internal/domain"
	"github.com/boddenberg/pj-ledger-bfa-go/internal/infra/resilience"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("jsonserver")

const resource = "transactions"

// Client wraps HTTP calls to the /transactions resource.
// It implements port.TransactionStore.
type Client struct {
	httpClient *http.Client
	baseURL    string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	logger     *zap.Logger
}

// NewClient creates a json-server client.
func NewClient(httpClient *http.Client, baseURL string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		cb:         cb,
		cfg:        cfg,
		logger:     logger,
	}
}

// ListTransactions fetches GET /transactions with the json-server query params.
func (c *Client) ListTransactions(ctx context.Context, filter domain.ListFilter) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "JSONServer.ListTransactions")
	defer span.End()

	q := url.Values{}
	if filter.Query != "" {
		q.Set("q", filter.Query)
	}
	if filter.Type != "" {
		q.Set("type", string(filter.Type))
	}
	if filter.Status != "" {
		q.Set("status", string(filter.Status))
	}
	if filter.Sort != "" {
		q.Set("_sort", filter.Sort)
	}
	if filter.Order != "" {
		q.Set("_order", filter.Order)
	}
	if filter.Page > 0 {
		q.Set("_page", strconv.Itoa(filter.Page))
	}
	if filter.Limit > 0 {
		q.Set("_limit", strconv.Itoa(filter.Limit))
	}

	var transactions []domain.Transaction
	err := resilience.Guard(ctx, c.cb, c.cfg, "jsonserver", func() error {
		body, err := c.doRequest(ctx, http.MethodGet, resource, q, nil, nil)
		if err != nil {
			return err
		}
		transactions = nil
		if len(body) == 0 {
			return nil
		}
		if err := json.Unmarshal(body, &transactions); err != nil {
			return resilience.Permanent(fmt.Errorf("failed to decode transactions: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, wrap("list", err)
	}

	span.SetAttributes(attribute.Int("transactions.count", len(transactions)))
	if transactions == nil {
		transactions = []domain.Transaction{}
	}
	return transactions, nil
}

// CreateTransaction POSTs a record without id and returns the stored record.
// Creates are never retried: json-server has no idempotency, so a retry
// could store the record twice.
func (c *Client) CreateTransaction(ctx context.Context, t domain.Transaction) (*domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "JSONServer.CreateTransaction")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.type", string(t.Type)))

	t.ID = ""
	headers := map[string]string{"Idempotency-Key": uuid.New().String()}
	noRetry := c.cfg
	noRetry.MaxRetries = 0

	var created domain.Transaction
	err := resilience.Guard(ctx, c.cb, noRetry, "jsonserver", func() error {
		body, err := c.doRequest(ctx, http.MethodPost, resource, nil, t, headers)
		if err != nil {
			return err
		}
		return decodeRecord(body, &created)
	})
	if err != nil {
		return nil, wrap("create", err)
	}
	if created.ID == "" {
		return nil, wrap("create", fmt.Errorf("backend returned a record without id"))
	}

	span.SetAttributes(attribute.String("transaction.id", created.ID))
	return &created, nil
}

// PatchTransaction sends PATCH /transactions/{id} and returns the full updated record.
func (c *Client) PatchTransaction(ctx context.Context, id string, fields map[string]any) (*domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "JSONServer.PatchTransaction")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", id))

	var updated domain.Transaction
	err := resilience.Guard(ctx, c.cb, c.cfg, "jsonserver", func() error {
		body, err := c.doRequest(ctx, http.MethodPatch, itemPath(id), nil, fields, nil)
		if err != nil {
			return err
		}
		return decodeRecord(body, &updated)
	})
	if err != nil {
		return nil, wrap("patch", err)
	}
	return &updated, nil
}

// DeleteTransaction sends DELETE /transactions/{id}.
func (c *Client) DeleteTransaction(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "JSONServer.DeleteTransaction")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", id))

	err := resilience.Guard(ctx, c.cb, c.cfg, "jsonserver", func() error {
		_, err := c.doRequest(ctx, http.MethodDelete, itemPath(id), nil, nil, nil)
		return err
	})
	if err != nil {
		return wrap("delete", err)
	}
	return nil
}

// doRequest executes one request. 4xx answers are Permanent so they are not retried;
// 404 becomes domain.ErrNotFound.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, payload any, headers map[string]string) ([]byte, error) {
	u := fmt.Sprintf("%s/%s", c.baseURL, path)
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if payload != nil {
		jsonBody, err := json.Marshal(payload)
		if err != nil {
			return nil, resilience.Permanent(err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		c.logger.Error("jsonserver: failed to create request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, resilience.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("jsonserver: request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, resilience.Permanent(&domain.ErrNotFound{Resource: "transaction", ID: strings.TrimPrefix(path, resource+"/")})
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		c.logger.Warn("jsonserver: client error",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		return nil, resilience.Permanent(fmt.Errorf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode)))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		c.logger.Warn("jsonserver: non-2xx response",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		return nil, fmt.Errorf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	c.logger.Debug("jsonserver: request OK",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
	)
	return body, nil
}

func itemPath(id string) string {
	return resource + "/" + url.PathEscape(id)
}

func decodeRecord(body []byte, out *domain.Transaction) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return resilience.Permanent(fmt.Errorf("empty response body"))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return resilience.Permanent(fmt.Errorf("failed to decode transaction: %w", err))
	}
	return nil
}

// wrap tags err as a backend failure. Wrapped not-found and open-circuit
// errors stay reachable through errors.As.
func wrap(op string, err error) error {
	return &domain.ErrExternalService{Service: "jsonserver/" + op, Err: err}
}
