package exchange

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/furkntrg41/opus-trade-bot/internal/core"
	"github.com/furkntrg41/opus-trade-bot/internal/logging"
	"github.com/furkntrg41/opus-trade-bot/internal/metrics"
	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// BinanceConfig configures a BinanceClient's endpoints and credentials.
type BinanceConfig struct {
	APIKey    string
	SecretKey string
	Testnet   bool

	TestnetRESTURL string
	TestnetWSURL   string
	MainnetRESTURL string
	MainnetWSURL   string

	RequestsPerSecond float64
	Burst             int
}

// DefaultBinanceConfig mirrors the original client's testnet-first
// defaults: a fresh config always points at testnet until the caller
// explicitly flips Testnet to false.
func DefaultBinanceConfig() BinanceConfig {
	return BinanceConfig{
		Testnet:           true,
		TestnetRESTURL:    "https://testnet.binancefuture.com",
		TestnetWSURL:      "wss://stream.binancefuture.com",
		MainnetRESTURL:    "https://fapi.binance.com",
		MainnetWSURL:      "wss://fstream.binance.com",
		RequestsPerSecond: 10,
		Burst:             20,
	}
}

func (c BinanceConfig) restBaseURL() string {
	if c.Testnet {
		return c.TestnetRESTURL
	}
	return c.MainnetRESTURL
}

func (c BinanceConfig) wsBaseURL() string {
	if c.Testnet {
		return c.TestnetWSURL
	}
	return c.MainnetWSURL
}

// BinanceClient is the live exchange.Client implementation: signed REST
// calls over net/http, rate-limited and circuit-broken, plus a
// combined-stream websocket for depth/trade/kline subscriptions.
type BinanceClient struct {
	cfg  BinanceConfig
	http *http.Client
	log  *logging.Logger

	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[[]byte]

	ws            *wsConn
	reconnectID   string
	subscriptions map[string]streamKind

	mu            sync.Mutex
	depthCbs      map[string]func(*DepthUpdate)
	tradeCbs      map[string]func(*TradeUpdate)
	klineCbs      map[string]klineSub
	errCb         func(error)
	reconnectCb   func()
	wsConnectCb   func()
	connected     bool
	lastErr       string
}

type streamKind int

const (
	streamDepth streamKind = iota
	streamTrade
	streamKline
)

type klineSub struct {
	interval string
	cb       func(*KlineUpdate)
}

// NewBinanceClient constructs a client against cfg's REST/WS endpoints.
func NewBinanceClient(cfg BinanceConfig, log *logging.Logger) *BinanceClient {
	if log == nil {
		log = logging.NewNop()
	}

	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "binance-rest",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(breakerStateValue(to)))
			log.Warn("circuit breaker state change", zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})

	return &BinanceClient{
		cfg:           cfg,
		http:          &http.Client{Timeout: 10 * time.Second},
		log:           log,
		limiter:       rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		breaker:       breaker,
		depthCbs:      make(map[string]func(*DepthUpdate)),
		tradeCbs:      make(map[string]func(*TradeUpdate)),
		klineCbs:      make(map[string]klineSub),
		subscriptions: make(map[string]streamKind),
	}
}

func breakerStateValue(s gobreaker.State) int {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}

// sign computes the HMAC-SHA256 signature Binance requires on every
// authenticated request, over the exact query string that will be sent.
func (c *BinanceClient) sign(query string) string {
	mac := hmac.New(sha256.New, []byte(c.cfg.SecretKey))
	mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil))
}

// signedRequest builds a signed GET/POST/DELETE request, rate-limits and
// circuit-breaks it, and returns the raw response body.
func (c *BinanceClient) signedRequest(ctx context.Context, method, path string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	query := params.Encode()
	signature := c.sign(query)
	query = query + "&signature=" + signature

	body, err := c.breaker.Execute(func() ([]byte, error) {
		reqURL := c.cfg.restBaseURL() + path
		var req *http.Request
		var buildErr error
		if method == http.MethodGet || method == http.MethodDelete {
			req, buildErr = http.NewRequestWithContext(ctx, method, reqURL+"?"+query, nil)
		} else {
			req, buildErr = http.NewRequestWithContext(ctx, method, reqURL, bytes.NewBufferString(query))
			if req != nil {
				req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			}
		}
		if buildErr != nil {
			return nil, buildErr
		}
		req.Header.Set("X-MBX-APIKEY", c.cfg.APIKey)

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("http do: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read response body: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("binance api error %d: %s", resp.StatusCode, bodyExcerpt(respBody))
		}
		return respBody, nil
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			metrics.CircuitBreakerRejectTotal.WithLabelValues("binance-rest").Inc()
		}
		c.setLastError(err.Error())
		return nil, err
	}
	return body, nil
}

// bodyExcerpt truncates a response body to a size sane for a LastError
// string or a log line.
func bodyExcerpt(body []byte) string {
	const maxLen = 200
	if len(body) > maxLen {
		return string(body[:maxLen])
	}
	return string(body)
}

func (c *BinanceClient) publicRequest(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	reqURL := c.cfg.restBaseURL() + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("binance api error %d: %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

// --- exchange.Client: account & trading ---

func (c *BinanceClient) AccountInfo(ctx context.Context) (*AccountInfo, error) {
	body, err := c.signedRequest(ctx, http.MethodGet, "/fapi/v2/account", nil)
	if err != nil {
		return nil, fmt.Errorf("account info: %w", err)
	}
	var raw struct {
		TotalWalletBalance    string `json:"totalWalletBalance"`
		TotalUnrealizedProfit string `json:"totalUnrealizedProfit"`
		AvailableBalance      string `json:"availableBalance"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode account info: %w", err)
	}
	return &AccountInfo{
		TotalWalletBalanceUSD: parseFloat(raw.TotalWalletBalance),
		TotalUnrealizedPnLUSD: parseFloat(raw.TotalUnrealizedProfit),
		AvailableBalanceUSD:   parseFloat(raw.AvailableBalance),
	}, nil
}

func (c *BinanceClient) Positions(ctx context.Context) ([]PositionInfo, error) {
	body, err := c.signedRequest(ctx, http.MethodGet, "/fapi/v2/positionRisk", nil)
	if err != nil {
		return nil, fmt.Errorf("positions: %w", err)
	}
	var raw []struct {
		Symbol           string `json:"symbol"`
		PositionAmt      string `json:"positionAmt"`
		EntryPrice       string `json:"entryPrice"`
		MarkPrice        string `json:"markPrice"`
		UnRealizedProfit string `json:"unRealizedProfit"`
		PositionSide     string `json:"positionSide"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode positions: %w", err)
	}

	out := make([]PositionInfo, 0, len(raw))
	for _, p := range raw {
		qty := parseFloat(p.PositionAmt)
		if qty == 0 {
			continue
		}
		out = append(out, PositionInfo{
			Symbol:        core.NewSymbol(p.Symbol),
			PositionSide:  positionSideFromString(p.PositionSide),
			Quantity:      core.QuantityFromFloat64(absFloat(qty)),
			EntryPrice:    core.PriceFromFloat64(parseFloat(p.EntryPrice)),
			MarkPrice:     core.PriceFromFloat64(parseFloat(p.MarkPrice)),
			UnrealizedPnL: parseFloat(p.UnRealizedProfit),
			IsLong:        qty > 0,
		})
	}
	return out, nil
}

func (c *BinanceClient) OpenOrders(ctx context.Context, symbol core.Symbol) ([]OrderInfo, error) {
	params := url.Values{"symbol": {symbol.String()}}
	body, err := c.signedRequest(ctx, http.MethodGet, "/fapi/v1/openOrders", params)
	if err != nil {
		return nil, fmt.Errorf("open orders: %w", err)
	}
	var raw []binanceOrderResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode open orders: %w", err)
	}
	out := make([]OrderInfo, 0, len(raw))
	for _, o := range raw {
		out = append(out, o.toOrderInfo())
	}
	return out, nil
}

func (c *BinanceClient) AccountTrades(ctx context.Context, symbol core.Symbol, limit int) ([]TradeInfo, error) {
	params := url.Values{"symbol": {symbol.String()}, "limit": {strconv.Itoa(limit)}}
	body, err := c.signedRequest(ctx, http.MethodGet, "/fapi/v1/userTrades", params)
	if err != nil {
		return nil, fmt.Errorf("account trades: %w", err)
	}
	var raw []struct {
		Symbol      string `json:"symbol"`
		OrderID     int64  `json:"orderId"`
		Price       string `json:"price"`
		Qty         string `json:"qty"`
		RealizedPnl string `json:"realizedPnl"`
		Commission  string `json:"commission"`
		Time        int64  `json:"time"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode account trades: %w", err)
	}
	out := make([]TradeInfo, 0, len(raw))
	for _, t := range raw {
		out = append(out, TradeInfo{
			Symbol:      core.NewSymbol(t.Symbol),
			OrderID:     t.OrderID,
			Price:       core.PriceFromFloat64(parseFloat(t.Price)),
			Quantity:    core.QuantityFromFloat64(parseFloat(t.Qty)),
			RealizedPnL: parseFloat(t.RealizedPnl),
			Commission:  parseFloat(t.Commission),
			TimeMs:      t.Time,
		})
	}
	return out, nil
}

func (c *BinanceClient) PlaceOrder(ctx context.Context, req OrderRequest) (*OrderInfo, error) {
	params := url.Values{
		"symbol":           {req.Symbol.String()},
		"side":             {req.Side.String()},
		"type":             {orderTypeToBinance(req.Type)},
		"quantity":         {strconv.FormatFloat(req.Quantity.Float64(), 'f', -1, 64)},
		"newClientOrderId": {req.ClientOrderID},
	}
	if req.Price.IsValid() {
		params.Set("price", strconv.FormatFloat(req.Price.Float64(), 'f', -1, 64))
		params.Set("timeInForce", timeInForceToBinance(req.TimeInForce))
	}
	if req.StopPrice.IsValid() {
		params.Set("stopPrice", strconv.FormatFloat(req.StopPrice.Float64(), 'f', -1, 64))
	}
	if req.ReduceOnly {
		params.Set("reduceOnly", "true")
	}
	if req.ClosePosition {
		params.Set("closePosition", "true")
	}

	body, err := c.signedRequest(ctx, http.MethodPost, "/fapi/v1/order", params)
	if err != nil {
		c.setLastError(fmt.Sprintf(
			"place order failed: %v (symbol=%s side=%s qty=%s price=%s stop=%s)",
			err, req.Symbol, req.Side,
			strconv.FormatFloat(req.Quantity.Float64(), 'f', -1, 64),
			strconv.FormatFloat(req.Price.Float64(), 'f', -1, 64),
			strconv.FormatFloat(req.StopPrice.Float64(), 'f', -1, 64)))
		return nil, fmt.Errorf("place order: %w", err)
	}
	var raw binanceOrderResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode order response: %w", err)
	}
	info := raw.toOrderInfo()
	return &info, nil
}

func (c *BinanceClient) CancelOrder(ctx context.Context, symbol core.Symbol, orderID int64) error {
	params := url.Values{"symbol": {symbol.String()}, "orderId": {strconv.FormatInt(orderID, 10)}}
	_, err := c.signedRequest(ctx, http.MethodDelete, "/fapi/v1/order", params)
	if err != nil {
		return fmt.Errorf("cancel order %d: %w", orderID, err)
	}
	return nil
}

func (c *BinanceClient) CancelAllOrders(ctx context.Context, symbol core.Symbol) error {
	params := url.Values{"symbol": {symbol.String()}}
	_, err := c.signedRequest(ctx, http.MethodDelete, "/fapi/v1/allOpenOrders", params)
	if err != nil {
		return fmt.Errorf("cancel all orders for %s: %w", symbol, err)
	}
	return nil
}

func (c *BinanceClient) SetLeverage(ctx context.Context, symbol core.Symbol, leverage int) error {
	params := url.Values{"symbol": {symbol.String()}, "leverage": {strconv.Itoa(leverage)}}
	_, err := c.signedRequest(ctx, http.MethodPost, "/fapi/v1/leverage", params)
	if err != nil {
		return fmt.Errorf("set leverage for %s: %w", symbol, err)
	}
	return nil
}

func (c *BinanceClient) Price(ctx context.Context, symbol core.Symbol) (core.Price, error) {
	params := url.Values{"symbol": {symbol.String()}}
	body, err := c.publicRequest(ctx, "/fapi/v1/ticker/price", params)
	if err != nil {
		return 0, fmt.Errorf("price: %w", err)
	}
	var raw struct {
		Price string `json:"price"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return 0, fmt.Errorf("decode price: %w", err)
	}
	return core.PriceFromFloat64(parseFloat(raw.Price)), nil
}

func (c *BinanceClient) Depth(ctx context.Context, symbol core.Symbol, limit int) (*DepthUpdate, error) {
	params := url.Values{"symbol": {symbol.String()}, "limit": {strconv.Itoa(limit)}}
	body, err := c.publicRequest(ctx, "/fapi/v1/depth", params)
	if err != nil {
		return nil, fmt.Errorf("depth: %w", err)
	}
	var raw struct {
		LastUpdateID uint64     `json:"lastUpdateId"`
		Bids         [][]string `json:"bids"`
		Asks         [][]string `json:"asks"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode depth: %w", err)
	}
	return &DepthUpdate{
		Symbol:     symbol,
		SequenceID: raw.LastUpdateID,
		Bids:       decodeLevels(raw.Bids),
		Asks:       decodeLevels(raw.Asks),
	}, nil
}

func (c *BinanceClient) Klines(ctx context.Context, symbol core.Symbol, interval string, limit int) ([]Kline, error) {
	params := url.Values{"symbol": {symbol.String()}, "interval": {interval}, "limit": {strconv.Itoa(limit)}}
	body, err := c.publicRequest(ctx, "/fapi/v1/klines", params)
	if err != nil {
		return nil, fmt.Errorf("klines: %w", err)
	}
	var raw [][]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode klines: %w", err)
	}
	out := make([]Kline, 0, len(raw))
	for _, row := range raw {
		if len(row) < 7 {
			continue
		}
		out = append(out, Kline{
			OpenTime:  time.UnixMilli(int64(anyToFloat(row[0]))),
			Open:      core.PriceFromFloat64(anyToFloat(row[1])),
			High:      core.PriceFromFloat64(anyToFloat(row[2])),
			Low:       core.PriceFromFloat64(anyToFloat(row[3])),
			Close:     core.PriceFromFloat64(anyToFloat(row[4])),
			Volume:    core.QuantityFromFloat64(anyToFloat(row[5])),
			CloseTime: time.UnixMilli(int64(anyToFloat(row[6]))),
		})
	}
	return out, nil
}

// --- exchange.Client: websocket subscriptions ---

func (c *BinanceClient) SubscribeDepth(symbol core.Symbol, cb func(*DepthUpdate)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	stream := streamName(symbol, "depth20@100ms")
	c.depthCbs[stream] = cb
	c.subscriptions[stream] = streamDepth
	return c.sendSubscribeLocked(stream)
}

func (c *BinanceClient) SubscribeTrades(symbol core.Symbol, cb func(*TradeUpdate)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	stream := streamName(symbol, "aggTrade")
	c.tradeCbs[stream] = cb
	c.subscriptions[stream] = streamTrade
	return c.sendSubscribeLocked(stream)
}

func (c *BinanceClient) SubscribeKlines(symbol core.Symbol, interval string, cb func(*KlineUpdate)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	stream := streamName(symbol, "kline_"+interval)
	c.klineCbs[stream] = klineSub{interval: interval, cb: cb}
	c.subscriptions[stream] = streamKline
	return c.sendSubscribeLocked(stream)
}

func (c *BinanceClient) Unsubscribe(symbol core.Symbol) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	prefix := symbol.String()
	var toRemove []string
	for stream := range c.subscriptions {
		if hasStreamPrefix(stream, prefix) {
			toRemove = append(toRemove, stream)
		}
	}
	for _, stream := range toRemove {
		delete(c.subscriptions, stream)
		delete(c.depthCbs, stream)
		delete(c.tradeCbs, stream)
		delete(c.klineCbs, stream)
	}
	if c.ws == nil || len(toRemove) == 0 {
		return nil
	}
	return c.ws.writeJSON(map[string]any{
		"method": "UNSUBSCRIBE",
		"params": toRemove,
		"id":     time.Now().UnixNano(),
	})
}

func (c *BinanceClient) sendSubscribeLocked(stream string) error {
	if c.ws == nil || !c.ws.isConnected() {
		return nil // queued; Start's resubscribe pass will pick it up
	}
	return c.ws.writeJSON(map[string]any{
		"method": "SUBSCRIBE",
		"params": []string{stream},
		"id":     time.Now().UnixNano(),
	})
}

// --- exchange.Client: lifecycle ---

// Start connects the combined-stream websocket, replays every stream
// registered via Subscribe* before the connection existed, and begins
// the read loop with reconnect-with-backoff. reconnectID correlates log
// lines across a reconnect the way a trace id correlates a request.
func (c *BinanceClient) Start(ctx context.Context) error {
	c.reconnectID = uuid.NewString()
	c.ws = newWSConn(c.cfg.wsBaseURL()+"/stream", c.log)

	if err := c.ws.connect(); err != nil {
		return fmt.Errorf("websocket connect: %w", err)
	}

	c.mu.Lock()
	c.connected = true
	streams := make([]string, 0, len(c.subscriptions))
	for s := range c.subscriptions {
		streams = append(streams, s)
	}
	c.mu.Unlock()

	if len(streams) > 0 {
		if err := c.ws.writeJSON(map[string]any{"method": "SUBSCRIBE", "params": streams, "id": 1}); err != nil {
			return fmt.Errorf("resubscribe: %w", err)
		}
	}

	c.mu.Lock()
	wsConnectCb := c.wsConnectCb
	c.mu.Unlock()
	if wsConnectCb != nil {
		wsConnectCb()
	}

	go c.readLoop(ctx)
	return nil
}

func (c *BinanceClient) readLoop(ctx context.Context) {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, message, err := c.ws.readMessage()
		if err != nil {
			c.mu.Lock()
			c.connected = false
			errCb := c.errCb
			c.mu.Unlock()
			if errCb != nil {
				errCb(fmt.Errorf("websocket read (session %s): %w", c.reconnectID, err))
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			if reconnectErr := c.Start(ctx); reconnectErr != nil {
				continue
			}
			// Start just spawned a fresh readLoop goroutine that owns
			// c.ws exclusively; this goroutine must not touch it again,
			// or two goroutines end up calling ReadMessage concurrently.
			c.mu.Lock()
			reconnectCb := c.reconnectCb
			c.mu.Unlock()
			if reconnectCb != nil {
				reconnectCb()
			}
			return
		}

		backoff = time.Second
		c.dispatch(message)
	}
}

func (c *BinanceClient) dispatch(message []byte) {
	var env struct {
		Stream string          `json:"stream"`
		Data   json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(message, &env); err != nil || env.Stream == "" {
		return
	}

	c.mu.Lock()
	kind, ok := c.subscriptions[env.Stream]
	c.mu.Unlock()
	if !ok {
		return
	}

	switch kind {
	case streamDepth:
		c.dispatchDepth(env.Stream, env.Data)
	case streamTrade:
		c.dispatchTrade(env.Stream, env.Data)
	case streamKline:
		c.dispatchKline(env.Stream, env.Data)
	}
}

func (c *BinanceClient) dispatchDepth(stream string, data json.RawMessage) {
	var raw struct {
		EventTime int64      `json:"E"`
		Symbol    string     `json:"s"`
		FinalID   uint64     `json:"u"`
		Bids      [][]string `json:"b"`
		Asks      [][]string `json:"a"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return
	}
	c.mu.Lock()
	cb := c.depthCbs[stream]
	c.mu.Unlock()
	if cb == nil {
		return
	}
	cb(&DepthUpdate{
		Symbol:      core.NewSymbol(raw.Symbol),
		SequenceID:  raw.FinalID,
		EventTimeMs: raw.EventTime,
		Bids:        decodeLevels(raw.Bids),
		Asks:        decodeLevels(raw.Asks),
	})
}

func (c *BinanceClient) dispatchTrade(stream string, data json.RawMessage) {
	var raw struct {
		EventTime int64  `json:"E"`
		Symbol    string `json:"s"`
		Price     string `json:"p"`
		Quantity  string `json:"q"`
		BuyerMM   bool   `json:"m"` // true when buyer is the market maker: taker sold
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return
	}
	c.mu.Lock()
	cb := c.tradeCbs[stream]
	c.mu.Unlock()
	if cb == nil {
		return
	}
	side := core.Buy
	if raw.BuyerMM {
		side = core.Sell
	}
	cb(&TradeUpdate{
		Symbol:    core.NewSymbol(raw.Symbol),
		Price:     core.PriceFromFloat64(parseFloat(raw.Price)),
		Quantity:  core.QuantityFromFloat64(parseFloat(raw.Quantity)),
		Side:      side,
		TradeTime: raw.EventTime,
	})
}

func (c *BinanceClient) dispatchKline(stream string, data json.RawMessage) {
	var raw struct {
		Kline struct {
			StartTime int64  `json:"t"`
			CloseTime int64  `json:"T"`
			Open      string `json:"o"`
			High      string `json:"h"`
			Low       string `json:"l"`
			Close     string `json:"c"`
			Volume    string `json:"v"`
			QuoteVol  string `json:"q"`
			Trades    uint32 `json:"n"`
		} `json:"k"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return
	}
	c.mu.Lock()
	sub, ok := c.klineCbs[stream]
	c.mu.Unlock()
	if !ok || sub.cb == nil {
		return
	}
	sub.cb(&KlineUpdate{
		Interval: sub.interval,
		Kline: Kline{
			OpenTime:    time.UnixMilli(raw.Kline.StartTime),
			CloseTime:   time.UnixMilli(raw.Kline.CloseTime),
			Open:        core.PriceFromFloat64(parseFloat(raw.Kline.Open)),
			High:        core.PriceFromFloat64(parseFloat(raw.Kline.High)),
			Low:         core.PriceFromFloat64(parseFloat(raw.Kline.Low)),
			Close:       core.PriceFromFloat64(parseFloat(raw.Kline.Close)),
			Volume:      core.QuantityFromFloat64(parseFloat(raw.Kline.Volume)),
			QuoteVolume: core.QuantityFromFloat64(parseFloat(raw.Kline.QuoteVol)),
			TradeCount:  raw.Kline.Trades,
		},
	})
}

func (c *BinanceClient) Stop(ctx context.Context) error {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	if c.ws == nil {
		return nil
	}
	return c.ws.close()
}

func (c *BinanceClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *BinanceClient) OnError(cb func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errCb = cb
}

// OnReconnect registers a callback invoked after the websocket has
// successfully re-established a connection following a read error. It
// is never called for the initial Start.
func (c *BinanceClient) OnReconnect(cb func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reconnectCb = cb
}

// OnWSConnect registers a callback invoked every time the websocket
// connects, including the initial Start and every subsequent reconnect.
func (c *BinanceClient) OnWSConnect(cb func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wsConnectCb = cb
}

// LastError returns a formatted description of the most recent request
// failure, or "" if nothing has failed yet.
func (c *BinanceClient) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *BinanceClient) setLastError(msg string) {
	c.mu.Lock()
	c.lastErr = msg
	c.mu.Unlock()
}

var _ Client = (*BinanceClient)(nil)
