package zerodha_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/quantnest/executor/pkg/actions/broker"
	"github.com/quantnest/executor/pkg/actions/zerodha"
	"github.com/quantnest/executor/pkg/market"
	"github.com/quantnest/executor/pkg/models"
	"github.com/quantnest/executor/pkg/tokens"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	marketOpen   = time.Date(2026, 10, 16, 10, 0, 0, 0, market.IST)
	marketClosed = time.Date(2026, 10, 17, 10, 0, 0, 0, market.IST)
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func tradeNode(meta map[string]any) *models.Node {
	return &models.Node{ID: "z", NodeID: "zerodha-1", Type: models.NodeTypeZerodha, Data: models.NodeData{Kind: "action", Metadata: meta}}
}

func buyTCS() map[string]any {
	return map[string]any{"type": "buy", "qty": 5, "symbol": "TCS", "apiKey": "key"}
}

type kiteServer struct {
	*httptest.Server

	calls atomic.Int32
}

func newKiteServer(t *testing.T, status int, body map[string]any) *kiteServer {
	t.Helper()

	server := &kiteServer{}
	server.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		server.calls.Add(1)

		assert.Equal(t, "/orders/regular", r.URL.Path)
		assert.Equal(t, "3", r.Header.Get("X-Kite-Version"))
		assert.Equal(t, "token key:secret", r.Header.Get("Authorization"))
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "TCS", r.PostForm.Get("tradingsymbol"))
		assert.Equal(t, "NSE", r.PostForm.Get("exchange"))
		assert.Equal(t, "BUY", r.PostForm.Get("transaction_type"))
		assert.Equal(t, "5", r.PostForm.Get("quantity"))
		assert.Equal(t, "MARKET", r.PostForm.Get("order_type"))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(server.Close)

	return server
}

func newAction(t *testing.T, server *kiteServer, now time.Time, withToken bool) *zerodha.Action {
	t.Helper()

	store := tokens.NewStore(discardLogger(), tokens.NewMemoryBackend()).WithClock(func() time.Time { return now })
	if withToken {
		require.NoError(t, store.Save(t.Context(), "user-1", "wf-1", "secret"))
	}

	client := zerodha.NewKiteClient(server.URL, server.Client())

	return zerodha.NewAction(discardLogger(), client, store).WithClock(func() time.Time { return now })
}

func TestAction_PlacesOrder(t *testing.T) {
	t.Parallel()

	server := newKiteServer(t, http.StatusOK, map[string]any{"status": "success", "data": map[string]any{"order_id": "151220000000000"}})
	action := newAction(t, server, marketOpen, true)
	run := models.NewExecutionContext("user-1", "wf-1")

	result := action.Execute(t.Context(), tradeNode(buyTCS()), run)

	assert.Equal(t, models.ExecutionStatusSuccess, result.Status)
	assert.Equal(t, "BUY order executed for TCS", result.Message)
	assert.Equal(t, int32(1), server.calls.Load())

	snapshot := run.Snapshot()
	assert.Equal(t, models.EventBuy, snapshot.EventType)
	require.NotNil(t, snapshot.Details)
	assert.Equal(t, "TCS", snapshot.Details.Symbol)
	assert.InDelta(t, 5.0, snapshot.Details.Quantity, 0)
	assert.Equal(t, "NSE", snapshot.Details.Exchange)
}

func TestAction_MarketClosed(t *testing.T) {
	t.Parallel()

	server := newKiteServer(t, http.StatusOK, map[string]any{"status": "success"})
	action := newAction(t, server, marketClosed, true)

	result := action.Execute(t.Context(), tradeNode(buyTCS()), models.NewExecutionContext("user-1", "wf-1"))

	assert.Equal(t, models.ExecutionStatusFailed, result.Status)
	assert.Equal(t, "Cannot execute trade: Market is closed on Saturdays. Next opening: Monday 9:15 AM IST", result.Message)
	assert.Zero(t, server.calls.Load())
}

func TestAction_MissingTokenPausesWorkflow(t *testing.T) {
	t.Parallel()

	server := newKiteServer(t, http.StatusOK, map[string]any{"status": "success"})
	action := newAction(t, server, marketOpen, false)

	result := action.Execute(t.Context(), tradeNode(buyTCS()), models.NewExecutionContext("user-1", "wf-1"))

	assert.Equal(t, models.ExecutionStatusFailed, result.Status)
	assert.Contains(t, result.Message, "Workflow paused: "+tokens.MessageTokenRequired)
	assert.Contains(t, result.Message, "(Request ID: ")
	assert.Zero(t, server.calls.Load())
}

type validWithoutToken struct{}

func (validWithoutToken) Status(context.Context, string, string) (tokens.Status, error) {
	return tokens.Status{Valid: true}, nil
}

func (validWithoutToken) AccessToken(context.Context, string, string) (string, error) {
	return "", nil
}

func TestAction_TokenUnavailable(t *testing.T) {
	t.Parallel()

	action := zerodha.NewAction(discardLogger(), nil, validWithoutToken{}).WithClock(func() time.Time { return marketOpen })

	result := action.Execute(t.Context(), tradeNode(buyTCS()), models.NewExecutionContext("user-1", "wf-1"))

	assert.Equal(t, models.ExecutionStatusFailed, result.Status)
	assert.Equal(t, zerodha.MessageTokenUnavailable, result.Message)
}

type unreachableTokens struct{}

func (unreachableTokens) Status(context.Context, string, string) (tokens.Status, error) {
	return tokens.Status{}, errors.New("redis: connection refused")
}

func (unreachableTokens) AccessToken(context.Context, string, string) (string, error) {
	return "secret", nil
}

func TestAction_TokenStatusErrorCarriesReason(t *testing.T) {
	t.Parallel()

	server := newKiteServer(t, http.StatusOK, map[string]any{"status": "success"})
	client := zerodha.NewKiteClient(server.URL, server.Client())
	action := zerodha.NewAction(discardLogger(), client, unreachableTokens{}).WithClock(func() time.Time { return marketOpen })

	result := action.Execute(t.Context(), tradeNode(buyTCS()), models.NewExecutionContext("user-1", "wf-1"))

	assert.Equal(t, models.ExecutionStatusFailed, result.Status)
	assert.Equal(t, "Workflow paused: "+tokens.MessageStatusError+": redis: connection refused", result.Message)
	assert.Zero(t, server.calls.Load())
}

func TestAction_OrderRejected(t *testing.T) {
	t.Parallel()

	server := newKiteServer(t, http.StatusBadRequest, map[string]any{
		"status":     "error",
		"message":    "Insufficient funds",
		"error_type": "InputException",
	})
	action := newAction(t, server, marketOpen, true)
	run := models.NewExecutionContext("user-1", "wf-1")

	result := action.Execute(t.Context(), tradeNode(buyTCS()), run)

	assert.Equal(t, models.ExecutionStatusFailed, result.Status)
	assert.Equal(t, "Trade execution failed for TCS", result.Message)

	snapshot := run.Snapshot()
	assert.Equal(t, models.EventTradeFailed, snapshot.EventType)
	require.NotNil(t, snapshot.Details)
	assert.Equal(t, broker.RejectedReason, snapshot.Details.FailureReason)
	assert.Equal(t, "buy", snapshot.Details.TradeType)
}

func TestAction_TransportError(t *testing.T) {
	t.Parallel()

	server := newKiteServer(t, http.StatusOK, map[string]any{"status": "success"})
	action := newAction(t, server, marketOpen, true)
	server.Close()

	run := models.NewExecutionContext("user-1", "wf-1")
	result := action.Execute(t.Context(), tradeNode(buyTCS()), run)

	assert.Equal(t, models.ExecutionStatusFailed, result.Status)
	assert.Contains(t, result.Message, "kite order request failed")

	snapshot := run.Snapshot()
	assert.Equal(t, models.EventTradeFailed, snapshot.EventType)
	require.NotNil(t, snapshot.Details)
	assert.Equal(t, result.Message, snapshot.Details.FailureReason)
}

func TestAction_InvalidMetadata(t *testing.T) {
	t.Parallel()

	action := zerodha.NewAction(discardLogger(), nil, validWithoutToken{}).WithClock(func() time.Time { return marketOpen })
	run := models.NewExecutionContext("user-1", "wf-1")

	result := action.Execute(t.Context(), tradeNode(map[string]any{"type": "hold", "symbol": "TCS"}), run)

	assert.Equal(t, models.ExecutionStatusFailed, result.Status)
	assert.Contains(t, result.Message, "invalid node metadata")
	assert.Equal(t, models.EventTradeFailed, run.Snapshot().EventType)
}

func TestAction_Describes(t *testing.T) {
	t.Parallel()

	action := zerodha.NewAction(discardLogger(), nil, validWithoutToken{})

	assert.Equal(t, models.NodeTypeZerodha, action.ID())
	assert.Equal(t, zerodha.NodeType, action.Name())
	assert.NotEmpty(t, action.Description())
	assert.Contains(t, action.Schema()["required"], "apiKey")
}
