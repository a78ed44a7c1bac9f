package exchange

import (
	"strconv"
	"strings"

	"github.com/furkntrg41/opus-trade-bot/internal/book"
	"github.com/furkntrg41/opus-trade-bot/internal/core"
)

// binanceOrderResponse is the shared shape of /fapi/v1/order's response,
// whether from a fresh placement or an open-orders listing.
type binanceOrderResponse struct {
	OrderID       int64  `json:"orderId"`
	ClientOrderID string `json:"clientOrderId"`
	Symbol        string `json:"symbol"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	Status        string `json:"status"`
	Price         string `json:"price"`
	OrigQty       string `json:"origQty"`
	ExecutedQty   string `json:"executedQty"`
	UpdateTime    int64  `json:"updateTime"`
}

func (o binanceOrderResponse) toOrderInfo() OrderInfo {
	return OrderInfo{
		OrderID:       o.OrderID,
		ClientOrderID: o.ClientOrderID,
		Symbol:        core.NewSymbol(o.Symbol),
		Side:          sideFromBinance(o.Side),
		Type:          orderTypeFromBinance(o.Type),
		Status:        orderStatusFromBinance(o.Status),
		Price:         core.PriceFromFloat64(parseFloat(o.Price)),
		Quantity:      core.QuantityFromFloat64(parseFloat(o.OrigQty)),
		ExecutedQty:   core.QuantityFromFloat64(parseFloat(o.ExecutedQty)),
		UpdateTimeMs:  o.UpdateTime,
	}
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func anyToFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		return parseFloat(t)
	default:
		return 0
	}
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func decodeLevels(raw [][]string) []book.PriceLevel {
	out := make([]book.PriceLevel, 0, len(raw))
	for _, lvl := range raw {
		if len(lvl) < 2 {
			continue
		}
		out = append(out, book.PriceLevel{
			Price:    core.PriceFromFloat64(parseFloat(lvl[0])),
			Quantity: core.QuantityFromFloat64(parseFloat(lvl[1])),
		})
	}
	return out
}

func positionSideFromString(s string) core.PositionSide {
	switch s {
	case "LONG":
		return core.PositionLong
	case "SHORT":
		return core.PositionShort
	default:
		return core.PositionBoth
	}
}

func sideFromBinance(s string) core.Side {
	if s == "SELL" {
		return core.Sell
	}
	return core.Buy
}

func orderTypeToBinance(t core.OrderType) string {
	switch t {
	case core.Limit:
		return "LIMIT"
	case core.StopMarket:
		return "STOP_MARKET"
	case core.StopLimit:
		return "STOP"
	case core.TakeProfit:
		return "TAKE_PROFIT"
	case core.TakeProfitMarket:
		return "TAKE_PROFIT_MARKET"
	default:
		return "MARKET"
	}
}

func orderTypeFromBinance(s string) core.OrderType {
	switch s {
	case "LIMIT":
		return core.Limit
	case "STOP_MARKET":
		return core.StopMarket
	case "STOP":
		return core.StopLimit
	case "TAKE_PROFIT":
		return core.TakeProfit
	case "TAKE_PROFIT_MARKET":
		return core.TakeProfitMarket
	default:
		return core.Market
	}
}

func orderStatusFromBinance(s string) core.OrderStatus {
	switch s {
	case "PARTIALLY_FILLED":
		return core.OrderPartiallyFilled
	case "FILLED":
		return core.OrderFilled
	case "CANCELED":
		return core.OrderCanceled
	case "REJECTED":
		return core.OrderRejected
	case "EXPIRED":
		return core.OrderExpired
	default:
		return core.OrderNew
	}
}

func timeInForceToBinance(t core.TimeInForce) string {
	switch t {
	case core.IOC:
		return "IOC"
	case core.FOK:
		return "FOK"
	case core.GTX:
		return "GTX"
	default:
		return "GTC"
	}
}

func streamName(symbol core.Symbol, suffix string) string {
	return strings.ToLower(symbol.String()) + "@" + suffix
}

func hasStreamPrefix(stream, symbolPrefix string) bool {
	return strings.HasPrefix(stream, strings.ToLower(symbolPrefix)+"@")
}
