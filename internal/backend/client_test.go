package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/carlosbmello/echef-caixa-web/internal/common"
	"github.com/carlosbmello/echef-caixa-web/internal/config"
	"github.com/carlosbmello/echef-caixa-web/internal/money"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := &config.Config{
		BackendBaseURL:    srv.URL,
		BackendTimeout:    2 * time.Second,
		BackendMaxRetries: 1,
	}
	return New(cfg, zerolog.Nop())
}

func TestGetOpenSessionNotFoundMeansNone(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/sessions/last-open", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "nenhuma sessao aberta"})
	}))

	s, err := c.GetOpenSession(context.Background())
	require.NoError(t, err)
	require.Nil(t, s)
}

func TestGetOpenSessionDecodesWireFormat(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":                  42,
			"usuario_abertura_id": 7,
			"data_abertura":       "2026-08-30T09:00:00Z",
			"valor_abertura":      "150.00",
			"status":              "aberta",
		})
	}))

	s, err := c.GetOpenSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, s)
	require.Equal(t, int64(42), s.ID)
	require.Equal(t, SessionOpen, s.Status)
	require.Equal(t, money.Money(15000), money.Money(s.OpeningFloat))
}

func TestOpenSessionConflictOnDoubleOpen(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "sessao ja aberta"})
	}))

	_, err := c.OpenSession(context.Background(), 10000)
	require.Error(t, err)
	require.True(t, common.HasCode(err, common.CodeConflict))
}

func TestOpenSessionSendsFloatAndBearer(t *testing.T) {
	var gotAuth string
	var gotBody map[string]json.RawMessage
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(sessionEnvelope{
			Message: "ok",
			Session: Session{ID: 1, Status: SessionOpen},
		})
	}))

	ctx := common.WithAuthToken(context.Background(), "tok-123")
	s, err := c.OpenSession(ctx, 15000)
	require.NoError(t, err)
	require.Equal(t, int64(1), s.ID)
	require.Equal(t, "Bearer tok-123", gotAuth)
	require.JSONEq(t, `150`, string(gotBody["valor_abertura"]))
}

func TestCreateMovementMapsKindToWire(t *testing.T) {
	var gotBody map[string]json.RawMessage
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(movementEnvelope{Message: "ok", MovementID: 99})
	}))

	id, err := c.CreateMovement(context.Background(), MovementExpense, "gelo", 2500)
	require.NoError(t, err)
	require.Equal(t, int64(99), id)
	require.JSONEq(t, `"despesa"`, string(gotBody["tipo"]))
	require.JSONEq(t, `25`, string(gotBody["valor"]))
}

func TestCreateMovementRejectsUnknownKind(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("unexpected backend call")
	}))

	_, err := c.CreateMovement(context.Background(), MovementKind("transferencia"), "x", 100)
	require.Error(t, err)
	require.True(t, common.HasCode(err, common.CodeValidation))
}

func TestResolveTabEscapesIdentifier(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/comandas/A%2F12", r.URL.EscapedPath())
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":                    3,
			"numero":                "A/12",
			"status":                "aberta",
			"total_atual_calculado": 80.5,
		})
	}))

	tab, err := c.ResolveTab(context.Background(), "A/12")
	require.NoError(t, err)
	require.Equal(t, TabOpen, tab.Status)
	require.Equal(t, money.Money(8050), money.Money(tab.ConsumptionTotal))
}

func TestResolveTabNotFound(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "comanda nao encontrada"})
	}))

	_, err := c.ResolveTab(context.Background(), "999")
	require.Error(t, err)
	require.True(t, common.HasCode(err, common.CodeNotFound))
	require.Contains(t, err.Error(), "comanda nao encontrada")
}

func TestFinalizeTransactionReturnsGroupUUID(t *testing.T) {
	var got FinalizeInput
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/transacoes/finalizar", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(finalizeEnvelope{Message: "ok", TransactionID: "uuid-1"})
	}))

	in := FinalizeInput{
		TabIDs:        []int64{1, 2},
		ServiceCharge: 2830,
		Payments:      []FinalizePayment{{TenderMethodID: 1, Amount: 31130}},
	}
	uuid, err := c.FinalizeTransaction(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, "uuid-1", uuid)
	require.Equal(t, []int64{1, 2}, got.TabIDs)
	require.Len(t, got.Payments, 1)
}

func TestBackendUnreachableMapsToUnavailable(t *testing.T) {
	cfg := &config.Config{
		BackendBaseURL:    "http://127.0.0.1:1",
		BackendTimeout:    200 * time.Millisecond,
		BackendMaxRetries: 1,
	}
	c := New(cfg, zerolog.Nop())

	_, err := c.GetOpenSession(context.Background())
	require.Error(t, err)
	require.True(t, common.HasCode(err, common.CodeUnavailable))
}

func TestStatusEnumsRejectUnknownValues(t *testing.T) {
	var s SessionStatus
	require.Error(t, json.Unmarshal([]byte(`"suspensa"`), &s))

	var ts TabStatus
	require.Error(t, json.Unmarshal([]byte(`"pendente"`), &ts))

	var tk TenderKind
	require.Error(t, json.Unmarshal([]byte(`"cheque"`), &tk))
}
