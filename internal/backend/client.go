package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/carlosbmello/echef-caixa-web/internal/common"
	"github.com/carlosbmello/echef-caixa-web/internal/config"
	"github.com/carlosbmello/echef-caixa-web/internal/money"
	"github.com/carlosbmello/echef-caixa-web/internal/resilience"
)

// Client is a typed HTTP client for the POS backend. Read endpoints retry on
// transient failures; money-moving endpoints are sent exactly once so a
// timed-out finalize or payment is never silently replayed.
type Client struct {
	BaseURL string
	Reads   resilience.HTTPClient
	Writes  resilience.HTTPClient
	Logger  zerolog.Logger
}

// New builds a Client from configuration. Reads and writes share one breaker
// so backend outages are detected regardless of which path trips first.
func New(cfg *config.Config, logger zerolog.Logger) *Client {
	breaker := resilience.NewBreaker(5, 0.5, 10*time.Second).
		WithTarget("pos-backend").
		WithLogger(logger)
	httpClient := &http.Client{Timeout: cfg.BackendTimeout}
	return &Client{
		BaseURL: strings.TrimRight(cfg.BackendBaseURL, "/"),
		Reads: resilience.HTTPClient{
			Client:      httpClient,
			Breaker:     breaker,
			MaxAttempts: cfg.BackendMaxRetries,
			BaseBackoff: 150 * time.Millisecond,
			Jitter:      0.2,
		},
		Writes: resilience.HTTPClient{
			Client:      httpClient,
			Breaker:     breaker,
			MaxAttempts: 1,
		},
		Logger: logger.With().Str("component", "backend").Logger(),
	}
}

type messageEnvelope struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (c *Client) do(ctx context.Context, cl resilience.HTTPClient, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("backend: encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("backend: build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token, ok := common.AuthToken(ctx); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := cl.Do(ctx, req)
	if err != nil {
		c.Logger.Warn().Err(err).Str("method", method).Str("path", path).Msg("backend request failed")
		return common.UnavailableError("pos backend unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return common.UnavailableError("pos backend returned malformed response", err)
		}
		return nil
	}
	return c.statusError(resp, method, path)
}

// statusError maps backend HTTP failures onto the engine's error taxonomy,
// carrying the backend's own message through where one is present.
func (c *Client) statusError(resp *http.Response, method, path string) error {
	var env messageEnvelope
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_ = json.Unmarshal(data, &env)
	msg := env.Message
	if msg == "" {
		msg = env.Error
	}
	if msg == "" {
		msg = resp.Status
	}
	c.Logger.Debug().
		Int("status", resp.StatusCode).
		Str("method", method).
		Str("path", path).
		Str("message", msg).
		Msg("backend error response")

	switch resp.StatusCode {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return common.ValidationError(msg)
	case http.StatusUnauthorized, http.StatusForbidden:
		return common.NewAppError(common.CodeUnauthorized, msg, http.StatusUnauthorized, nil)
	case http.StatusNotFound:
		return common.NotFoundError(msg)
	case http.StatusConflict:
		return common.ConflictError(msg)
	default:
		return common.UnavailableError(msg, nil)
	}
}

// Ping probes backend reachability. Any HTTP response counts as reachable;
// only transport failures are errors.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.Reads.Client.Do(req)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

// GetOpenSession returns the register's currently open session, or nil when
// none is open. A 404 from the backend means "no open session", not an error.
func (c *Client) GetOpenSession(ctx context.Context) (*Session, error) {
	var s Session
	err := c.do(ctx, c.Reads, http.MethodGet, "/sessions/last-open", nil, &s)
	if err != nil {
		if common.HasCode(err, common.CodeNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

type openSessionRequest struct {
	OpeningFloat money.Amount `json:"valor_abertura"`
}

type sessionEnvelope struct {
	Message string  `json:"message"`
	Session Session `json:"session"`
}

// OpenSession opens a new cash session with the given float. The backend
// answers 409 when a session is already open for the register.
func (c *Client) OpenSession(ctx context.Context, openingFloat money.Money) (*Session, error) {
	var env sessionEnvelope
	in := openSessionRequest{OpeningFloat: money.Amount(openingFloat)}
	if err := c.do(ctx, c.Writes, http.MethodPost, "/sessions/open", in, &env); err != nil {
		return nil, err
	}
	return &env.Session, nil
}

type closeSessionRequest struct {
	CountedAmount money.Amount `json:"valor_fechamento_informado"`
	Note          *string      `json:"observacao,omitempty"`
}

// CloseSession closes an open session, submitting the counted drawer amount.
// The returned session carries the backend's computed expected amount and
// discrepancy.
func (c *Client) CloseSession(ctx context.Context, sessionID int64, counted money.Money, note *string) (*Session, error) {
	var env sessionEnvelope
	in := closeSessionRequest{CountedAmount: money.Amount(counted), Note: note}
	path := fmt.Sprintf("/sessions/%d/close", sessionID)
	if err := c.do(ctx, c.Writes, http.MethodPost, path, in, &env); err != nil {
		return nil, err
	}
	return &env.Session, nil
}

type createMovementRequest struct {
	Kind        string       `json:"tipo"`
	Description string       `json:"descricao"`
	Amount      money.Amount `json:"valor"`
}

type movementEnvelope struct {
	Message    string `json:"message"`
	MovementID int64  `json:"movementId"`
}

// CreateMovement records an ad-hoc cash movement against the open session.
func (c *Client) CreateMovement(ctx context.Context, kind MovementKind, description string, amount money.Money) (int64, error) {
	wire, err := kind.WireValue()
	if err != nil {
		return 0, common.ValidationError(err.Error())
	}
	var env movementEnvelope
	in := createMovementRequest{Kind: wire, Description: description, Amount: money.Amount(amount)}
	if err := c.do(ctx, c.Writes, http.MethodPost, "/movements", in, &env); err != nil {
		return 0, err
	}
	return env.MovementID, nil
}

// ListMovements returns every movement recorded against the session.
func (c *Client) ListMovements(ctx context.Context, sessionID int64) ([]Movement, error) {
	var out []Movement
	path := fmt.Sprintf("/movements/session/%d", sessionID)
	if err := c.do(ctx, c.Reads, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ResolveTab looks a tab up by its human-entered number or barcode.
func (c *Client) ResolveTab(ctx context.Context, identifier string) (*Tab, error) {
	var t Tab
	path := "/comandas/" + url.PathEscape(identifier)
	if err := c.do(ctx, c.Reads, http.MethodGet, path, nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// ListOpenTabs returns every tab currently open on the floor.
func (c *Client) ListOpenTabs(ctx context.Context) ([]Tab, error) {
	var out []Tab
	if err := c.do(ctx, c.Reads, http.MethodGet, "/comandas?status=aberta", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListTabItems returns the order lines for one tab.
func (c *Client) ListTabItems(ctx context.Context, tabID int64) ([]LineItem, error) {
	var out []LineItem
	path := fmt.Sprintf("/pedidos/comanda/%d/items", tabID)
	if err := c.do(ctx, c.Reads, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type cancelItemRequest struct {
	Reason string `json:"motivo"`
}

// CancelLineItem voids a single order line, recording the supplied reason.
func (c *Client) CancelLineItem(ctx context.Context, itemID int64, reason string) error {
	path := fmt.Sprintf("/pedidos/itens/%d/cancelar", itemID)
	return c.do(ctx, c.Writes, http.MethodPatch, path, cancelItemRequest{Reason: reason}, nil)
}

// ListTenderMethods returns the active payment methods.
func (c *Client) ListTenderMethods(ctx context.Context) ([]TenderMethod, error) {
	var out []TenderMethod
	if err := c.do(ctx, c.Reads, http.MethodGet, "/payment-methods?ativo=true", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListSessionPayments returns every payment committed during the session.
func (c *Client) ListSessionPayments(ctx context.Context, sessionID int64) ([]PaymentRecord, error) {
	var out []PaymentRecord
	path := fmt.Sprintf("/payments/session/%d", sessionID)
	if err := c.do(ctx, c.Reads, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type finalizeEnvelope struct {
	Message       string `json:"message"`
	TransactionID string `json:"transacao_uuid"`
}

// FinalizeTransaction commits a settled checkout group atomically. It is sent
// exactly once; on ambiguity (timeout, connection reset) the error is
// surfaced so the operator can verify on the backend before retrying.
func (c *Client) FinalizeTransaction(ctx context.Context, in FinalizeInput) (string, error) {
	var env finalizeEnvelope
	if err := c.do(ctx, c.Writes, http.MethodPost, "/transacoes/finalizar", in, &env); err != nil {
		return "", err
	}
	return env.TransactionID, nil
}

// SubmitConferenceSlip queues a conference slip print for the given point.
func (c *Client) SubmitConferenceSlip(ctx context.Context, slip ConferenceSlip) error {
	return c.do(ctx, c.Writes, http.MethodPost, "/print/conferencia", slip, nil)
}

// ListFailedPrintJobs returns print jobs the backend could not deliver.
func (c *Client) ListFailedPrintJobs(ctx context.Context, pointID string) ([]PrintJob, error) {
	var out []PrintJob
	path := "/print/jobs/failed?pointId=" + url.QueryEscape(pointID)
	if err := c.do(ctx, c.Reads, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RetryPrintJob requeues a failed print job.
func (c *Client) RetryPrintJob(ctx context.Context, jobID int64) error {
	path := fmt.Sprintf("/print/jobs/%d/retry", jobID)
	return c.do(ctx, c.Writes, http.MethodPost, path, nil, nil)
}
