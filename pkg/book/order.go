package book

// Side is the direction of trading interest.
type Side uint8

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "buy"
	}
	return "sell"
}

// Order is one unit of resting interest. Price is in ticks (smallest
// price unit) to keep comparisons exact. Timestamp is assigned by the
// book at insertion and is monotonically non-decreasing in insertion
// order. Qty is the only field amended after insertion (by Modify).
type Order struct {
	ID        uint64
	Side      Side
	Price     int64
	Qty       int64
	Timestamp int64 // unix nanos, set by OrderBook.Add
}

// Trade is an executed match. The pipeline has no crossing engine, so
// trades are produced by the market simulator rather than the book.
type Trade struct {
	ID          uint64
	Price       int64
	Qty         int64
	Timestamp   int64 // unix millis
	BuyOrderID  uint64
	SellOrderID uint64
}

// OpKind selects which book mutation an Op carries.
type OpKind uint8

const (
	OpAdd OpKind = iota
	OpCancel
	OpModify
)

func (k OpKind) String() string {
	switch k {
	case OpAdd:
		return "add"
	case OpCancel:
		return "cancel"
	default:
		return "modify"
	}
}

// Op is the queue payload. Add uses the full Order; Cancel and Modify
// use its ID, Side and Price to locate the resting order, and Modify
// additionally carries NewQty.
type Op struct {
	Kind   OpKind
	Order  Order
	NewQty int64
}
