package exchange

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/furkntrg41/opus-trade-bot/internal/core"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*BinanceClient, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	cfg := DefaultBinanceConfig()
	cfg.TestnetRESTURL = server.URL
	cfg.APIKey = "test-key"
	cfg.SecretKey = "test-secret"
	cfg.RequestsPerSecond = 1000
	cfg.Burst = 1000
	return NewBinanceClient(cfg, nil), server
}

func TestSignatureAppendedToSignedRequests(t *testing.T) {
	var gotQuery url.Values
	client, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Write([]byte(`{"totalWalletBalance":"100.0","totalUnrealizedProfit":"1.5","availableBalance":"98.5"}`))
	})
	defer server.Close()

	info, err := client.AccountInfo(context.Background())
	require.NoError(t, err)
	require.Equal(t, 100.0, info.TotalWalletBalanceUSD)
	require.Equal(t, 1.5, info.TotalUnrealizedPnLUSD)
	require.NotEmpty(t, gotQuery.Get("signature"))
	require.NotEmpty(t, gotQuery.Get("timestamp"))
}

func TestPositionsSkipsZeroQuantityAndSignsShort(t *testing.T) {
	client, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"symbol":"BTCUSDT","positionAmt":"0","entryPrice":"0","markPrice":"0","unRealizedProfit":"0","positionSide":"BOTH"},
			{"symbol":"ETHUSDT","positionAmt":"-2.5","entryPrice":"3000","markPrice":"2950","unRealizedProfit":"125","positionSide":"SHORT"}
		]`))
	})
	defer server.Close()

	positions, err := client.Positions(context.Background())
	require.NoError(t, err)
	require.Len(t, positions, 1)
	require.Equal(t, "ETHUSDT", positions[0].Symbol.String())
	require.False(t, positions[0].IsLong)
	require.InDelta(t, 2.5, positions[0].Quantity.Float64(), 1e-9)
}

func TestPlaceOrderSendsClientOrderIDAndReturnsInfo(t *testing.T) {
	var gotQuery url.Values
	client, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body := r.URL.Query()
		if r.Method == http.MethodPost {
			require.NoError(t, r.ParseForm())
			gotQuery = r.Form
		} else {
			gotQuery = body
		}
		resp := binanceOrderResponse{
			OrderID:       42,
			ClientOrderID: gotQuery.Get("newClientOrderId"),
			Symbol:        "BTCUSDT",
			Side:          "BUY",
			Type:          "MARKET",
			Status:        "NEW",
			Price:         "0",
			OrigQty:       "0.01",
			ExecutedQty:   "0",
		}
		json.NewEncoder(w).Encode(resp)
	})
	defer server.Close()

	req := OrderRequest{
		Symbol:        core.NewSymbol("BTCUSDT"),
		Side:          core.Buy,
		Type:          core.Market,
		Quantity:      core.QuantityFromFloat64(0.01),
		ClientOrderID: "opus_1",
	}
	info, err := client.PlaceOrder(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, int64(42), info.OrderID)
	require.Equal(t, "opus_1", info.ClientOrderID)
	require.Equal(t, core.Buy, info.Side)
}

func TestSignedRequestWrapsNonOKStatus(t *testing.T) {
	client, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":-2010,"msg":"insufficient balance"}`))
	})
	defer server.Close()

	_, err := client.AccountInfo(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "insufficient balance")
}

func TestDepthDecodesBidsAndAsksAsLevels(t *testing.T) {
	client, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"lastUpdateId":123,"bids":[["100.5","2.0"]],"asks":[["101.0","1.5"]]}`))
	})
	defer server.Close()

	depth, err := client.Depth(context.Background(), core.NewSymbol("BTCUSDT"), 10)
	require.NoError(t, err)
	require.Equal(t, uint64(123), depth.SequenceID)
	require.Len(t, depth.Bids, 1)
	require.InDelta(t, 100.5, depth.Bids[0].Price.Float64(), 1e-9)
	require.InDelta(t, 1.5, depth.Asks[0].Quantity.Float64(), 1e-9)
}

func TestDispatchDepthRoutesToSubscribedCallback(t *testing.T) {
	client := NewBinanceClient(DefaultBinanceConfig(), nil)
	symbol := core.NewSymbol("BTCUSDT")
	stream := streamName(symbol, "depth20@100ms")

	received := make(chan *DepthUpdate, 1)
	client.mu.Lock()
	client.depthCbs[stream] = func(d *DepthUpdate) { received <- d }
	client.subscriptions[stream] = streamDepth
	client.mu.Unlock()

	msg := []byte(`{"stream":"` + stream + `","data":{"E":1000,"s":"BTCUSDT","u":5,"b":[["100","1"]],"a":[["101","1"]]}}`)
	client.dispatch(msg)

	select {
	case d := <-received:
		require.Equal(t, uint64(5), d.SequenceID)
		require.Len(t, d.Bids, 1)
	default:
		t.Fatal("expected depth callback to fire")
	}
}

func TestUnsubscribeRemovesAllStreamsForSymbol(t *testing.T) {
	client := NewBinanceClient(DefaultBinanceConfig(), nil)
	symbol := core.NewSymbol("BTCUSDT")
	depthStream := streamName(symbol, "depth20@100ms")
	tradeStream := streamName(symbol, "aggTrade")

	client.subscriptions[depthStream] = streamDepth
	client.subscriptions[tradeStream] = streamTrade
	client.subscriptions[streamName(core.NewSymbol("ETHUSDT"), "aggTrade")] = streamTrade

	require.NoError(t, client.Unsubscribe(symbol))
	require.Len(t, client.subscriptions, 1)
	_, stillThere := client.subscriptions[streamName(core.NewSymbol("ETHUSDT"), "aggTrade")]
	require.True(t, stillThere)
}

func TestOrderTypeRoundTripsThroughBinanceStrings(t *testing.T) {
	types := []core.OrderType{core.Market, core.Limit, core.StopMarket, core.StopLimit, core.TakeProfit, core.TakeProfitMarket}
	for _, ot := range types {
		require.Equal(t, ot, orderTypeFromBinance(orderTypeToBinance(ot)))
	}
}
