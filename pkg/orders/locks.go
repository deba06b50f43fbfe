package orders

import "sync"

// orderLocks hands out one mutex per order ID so mutations of the same
// order serialize while different orders proceed in parallel.
type orderLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func newOrderLocks() *orderLocks {
	return &orderLocks{locks: make(map[int64]*sync.Mutex)}
}

// lock acquires the mutex for the given order and returns its release func.
func (ol *orderLocks) lock(orderID int64) func() {
	ol.mu.Lock()
	l, ok := ol.locks[orderID]
	if !ok {
		l = &sync.Mutex{}
		ol.locks[orderID] = l
	}
	ol.mu.Unlock()
	l.Lock()
	return l.Unlock
}
