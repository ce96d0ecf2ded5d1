package book

// priceLevel holds all orders resting at one price on one side, in
// arrival order. totalQty is maintained incrementally on every
// insert/remove/modify so it always equals the sum of the resting
// orders' quantities.
type priceLevel struct {
	price    int64
	totalQty int64
	orders   []*Order // FIFO, front = oldest
}

func newPriceLevel(price int64) *priceLevel {
	return &priceLevel{price: price}
}

func (l *priceLevel) add(o *Order) {
	l.orders = append(l.orders, o)
	l.totalQty += o.Qty
}

// remove takes the order with the given id out of the level,
// preserving the relative order of the rest. Returns false if the id
// does not rest here.
func (l *priceLevel) remove(id uint64) (*Order, bool) {
	for i, o := range l.orders {
		if o.ID == id {
			l.orders = append(l.orders[:i], l.orders[i+1:]...)
			l.totalQty -= o.Qty
			return o, true
		}
	}
	return nil, false
}

// amend overwrites the quantity of the order with the given id in
// place. Time priority is untouched.
func (l *priceLevel) amend(id uint64, newQty int64) bool {
	for _, o := range l.orders {
		if o.ID == id {
			l.totalQty += newQty - o.Qty
			o.Qty = newQty
			return true
		}
	}
	return false
}

func (l *priceLevel) empty() bool { return len(l.orders) == 0 }
