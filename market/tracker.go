package market

import (
	"sync"
	"time"

	"trading-engine-go/symbol"
)

// Tracker 按 (符号, 场所) 维护订单簿与最近更新时间。
// 写入来自行情 goroutine；读取来自决策循环，持锁期间只做指针拷贝。
type Tracker struct {
	mu      sync.RWMutex
	books   map[symbol.ID]map[Venue]*Book
	updated map[symbol.ID]map[Venue]time.Time
}

// NewTracker 创建空 tracker。
func NewTracker() *Tracker {
	return &Tracker{
		books:   make(map[symbol.ID]map[Venue]*Book),
		updated: make(map[symbol.ID]map[Venue]time.Time),
	}
}

// ApplySnapshot 全量覆盖某符号在某场所的盘口。
func (t *Tracker) ApplySnapshot(sym symbol.ID, venue Venue, bids, asks []Level, ts time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	book := t.bookLocked(sym, venue)
	book.ApplySnapshot(bids, asks, ts)
	t.updated[sym][venue] = ts
}

// UpdateLevel 增量更新单个价位，qty 为 0 表示删除。
func (t *Tracker) UpdateLevel(sym symbol.ID, venue Venue, isBid bool, price, qty float64, ts time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	book := t.bookLocked(sym, venue)
	if isBid {
		book.UpdateBid(price, qty)
	} else {
		book.UpdateAsk(price, qty)
	}
	t.updated[sym][venue] = ts
}

func (t *Tracker) bookLocked(sym symbol.ID, venue Venue) *Book {
	byVenue, ok := t.books[sym]
	if !ok {
		byVenue = make(map[Venue]*Book)
		t.books[sym] = byVenue
		t.updated[sym] = make(map[Venue]time.Time)
	}
	book, ok := byVenue[venue]
	if !ok {
		book = NewBook()
		byVenue[venue] = book
	}
	return book
}

// Book 返回符号在场所的订单簿，不存在返回 nil。
func (t *Tracker) Book(sym symbol.ID, venue Venue) *Book {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.books[sym][venue]
}

// Books 返回符号在全部场所的订单簿与更新时间的浅拷贝。
func (t *Tracker) Books(sym symbol.ID) (map[Venue]*Book, map[Venue]time.Time) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	src, ok := t.books[sym]
	if !ok {
		return nil, nil
	}
	books := make(map[Venue]*Book, len(src))
	updated := make(map[Venue]time.Time, len(src))
	for v, b := range src {
		books[v] = b
		updated[v] = t.updated[sym][v]
	}
	return books, updated
}

// Mid 返回符号在场所的中间价，缺盘口返回 0。
func (t *Tracker) Mid(sym symbol.ID, venue Venue) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	b := t.books[sym][venue]
	if b == nil {
		return 0
	}
	return b.Mid()
}

// Staleness 返回符号在场所距上次更新的时长；无数据返回一年。
func (t *Tracker) Staleness(sym symbol.ID, venue Venue, now time.Time) time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ts, ok := t.updated[sym][venue]
	if !ok {
		return 365 * 24 * time.Hour
	}
	return now.Sub(ts)
}
