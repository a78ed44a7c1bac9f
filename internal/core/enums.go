package core

// Side is the direction of an order or position.
type Side uint8

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "BUY"
	}
	return "SELL"
}

// Opposite returns the closing side for a reduce-only order.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// OrderType enumerates the order types the exchange client accepts.
type OrderType uint8

const (
	Market OrderType = iota
	Limit
	StopMarket
	StopLimit
	TakeProfit
	TakeProfitMarket
)

// PositionSide distinguishes one-way vs hedge-mode positions.
type PositionSide uint8

const (
	PositionBoth PositionSide = iota
	PositionLong
	PositionShort
)

// OrderStatus mirrors the exchange's order lifecycle states.
type OrderStatus uint8

const (
	OrderNew OrderStatus = iota
	OrderPartiallyFilled
	OrderFilled
	OrderCanceled
	OrderRejected
	OrderExpired
)

func (s OrderStatus) String() string {
	switch s {
	case OrderNew:
		return "NEW"
	case OrderPartiallyFilled:
		return "PARTIALLY_FILLED"
	case OrderFilled:
		return "FILLED"
	case OrderCanceled:
		return "CANCELED"
	case OrderRejected:
		return "REJECTED"
	case OrderExpired:
		return "EXPIRED"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal reports whether the order can receive no further fills.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderFilled, OrderCanceled, OrderRejected, OrderExpired:
		return true
	default:
		return false
	}
}

// TimeInForce enumerates order duration semantics.
type TimeInForce uint8

const (
	GTC TimeInForce = iota
	IOC
	FOK
	GTX
)
