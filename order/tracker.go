package order

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"trading-engine-go/symbol"
)

var (
	ErrUnknownOrder   = errors.New("unknown order")
	ErrDuplicateOrder = errors.New("duplicate client order id")
	ErrBadTransition  = errors.New("illegal status transition")
)

// DefaultSoftCap 跟踪订单数软上限，超出后逐出最旧的已完结订单。
const DefaultSoftCap = 100_000

// Tracker 在场订单状态仓库。
// 以客户端 ID 为主键，维护交易所 ID 反查、按符号索引与活跃集合；
// 活跃集合是唯一的在场判定来源，不做全表扫描。
// 单把读写锁保护全部索引，四者必须同步更新。
type Tracker struct {
	mu       sync.RWMutex
	byClient map[string]*Order
	byExch   map[string]string          // exchange id -> client id
	bySymbol map[symbol.ID][]string     // symbol -> client ids
	active   map[string]struct{}        // 在场客户端 ID 集合
	softCap  int
}

// NewTracker 创建订单跟踪器；softCap <= 0 时使用 DefaultSoftCap。
func NewTracker(softCap int) *Tracker {
	if softCap <= 0 {
		softCap = DefaultSoftCap
	}
	return &Tracker{
		byClient: make(map[string]*Order),
		byExch:   make(map[string]string),
		bySymbol: make(map[symbol.ID][]string),
		active:   make(map[string]struct{}),
		softCap:  softCap,
	}
}

// Track 登记新订单。超过软上限时先逐出最旧的已完结订单。
func (t *Tracker) Track(o *Order) error {
	if o == nil || o.ClientOrderID == "" {
		return errors.New("order requires client order id")
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.byClient[o.ClientOrderID]; ok {
		return fmt.Errorf("track %s: %w", o.ClientOrderID, ErrDuplicateOrder)
	}
	if len(t.byClient) >= t.softCap {
		t.evictOldestCompletedLocked()
	}

	t.byClient[o.ClientOrderID] = o
	if o.ExchangeOrderID != "" {
		t.byExch[o.ExchangeOrderID] = o.ClientOrderID
	}
	t.bySymbol[o.Symbol] = append(t.bySymbol[o.Symbol], o.ClientOrderID)
	if o.Status.Active() {
		t.active[o.ClientOrderID] = struct{}{}
	}
	return nil
}

// SetExchangeID 确认回报路径：补齐交易所 ID 并建立反查索引。
func (t *Tracker) SetExchangeID(clientID, exchangeID string, ackedAt time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	o, ok := t.byClient[clientID]
	if !ok {
		return fmt.Errorf("ack %s: %w", clientID, ErrUnknownOrder)
	}
	o.ExchangeOrderID = exchangeID
	o.AckedAt = ackedAt
	t.byExch[exchangeID] = clientID
	return nil
}

// UpdateStatus 推进订单状态并同步活跃集合。非法迁移返回错误且不落盘。
func (t *Tracker) UpdateStatus(clientID string, st Status) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	o, ok := t.byClient[clientID]
	if !ok {
		return fmt.Errorf("update %s: %w", clientID, ErrUnknownOrder)
	}
	if !CanTransition(o.Status, st) {
		return fmt.Errorf("update %s: %s -> %s: %w", clientID, o.Status, st, ErrBadTransition)
	}
	o.Status = st
	if st.Terminal() && o.CompletedAt.IsZero() {
		o.CompletedAt = time.Now()
	}
	t.reindexActiveLocked(o)
	return nil
}

// Apply 在锁内修改订单后重建活跃集合成员关系。
func (t *Tracker) Apply(clientID string, fn func(*Order)) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	o, ok := t.byClient[clientID]
	if !ok {
		return fmt.Errorf("apply %s: %w", clientID, ErrUnknownOrder)
	}
	fn(o)
	t.reindexActiveLocked(o)
	return nil
}

func (t *Tracker) reindexActiveLocked(o *Order) {
	if o.Status.Active() {
		t.active[o.ClientOrderID] = struct{}{}
	} else {
		delete(t.active, o.ClientOrderID)
	}
}

// GetByClient 按客户端 ID 查询，返回副本。
func (t *Tracker) GetByClient(clientID string) (Order, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	o, ok := t.byClient[clientID]
	if !ok {
		return Order{}, false
	}
	return *o, true
}

// GetByExchange 按交易所 ID 查询，返回副本。
func (t *Tracker) GetByExchange(exchangeID string) (Order, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	clientID, ok := t.byExch[exchangeID]
	if !ok {
		return Order{}, false
	}
	o, ok := t.byClient[clientID]
	if !ok {
		return Order{}, false
	}
	return *o, true
}

// SymbolOf 返回交易所 ID 对应订单的符号；成交回报只带交易所 ID 时使用。
func (t *Tracker) SymbolOf(exchangeID string) (symbol.ID, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	clientID, ok := t.byExch[exchangeID]
	if !ok {
		return symbol.Invalid, false
	}
	o, ok := t.byClient[clientID]
	if !ok {
		return symbol.Invalid, false
	}
	return o.Symbol, true
}

// OrdersOfSymbol 返回该符号下全部订单的副本。
func (t *Tracker) OrdersOfSymbol(sym symbol.ID) []Order {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := t.bySymbol[sym]
	out := make([]Order, 0, len(ids))
	for _, id := range ids {
		if o, ok := t.byClient[id]; ok {
			out = append(out, *o)
		}
	}
	return out
}

// ActiveOrders 返回全部在场订单的副本。
func (t *Tracker) ActiveOrders() []Order {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Order, 0, len(t.active))
	for id := range t.active {
		if o, ok := t.byClient[id]; ok {
			out = append(out, *o)
		}
	}
	return out
}

// ActiveCount 返回在场订单数。
func (t *Tracker) ActiveCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.active)
}

// Count 返回跟踪中的订单总数。
func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byClient)
}

// CleanupCompleted 移除完结时间早于 retention 的终态订单，返回移除数量。
func (t *Tracker) CleanupCompleted(retention time.Duration) int {
	cutoff := time.Now().Add(-retention)
	t.mu.Lock()
	defer t.mu.Unlock()
	removed := 0
	for id, o := range t.byClient {
		if o.Status.Terminal() && !o.CompletedAt.IsZero() && o.CompletedAt.Before(cutoff) {
			t.removeLocked(id, o)
			removed++
		}
	}
	return removed
}

// evictOldestCompletedLocked 软上限触发时的逐出；只淘汰终态订单。
func (t *Tracker) evictOldestCompletedLocked() {
	var oldestID string
	var oldest *Order
	for id, o := range t.byClient {
		if !o.Status.Terminal() {
			continue
		}
		if oldest == nil || o.CompletedAt.Before(oldest.CompletedAt) {
			oldestID, oldest = id, o
		}
	}
	if oldest != nil {
		t.removeLocked(oldestID, oldest)
	}
}

func (t *Tracker) removeLocked(id string, o *Order) {
	delete(t.byClient, id)
	delete(t.active, id)
	if o.ExchangeOrderID != "" {
		delete(t.byExch, o.ExchangeOrderID)
	}
	ids := t.bySymbol[o.Symbol]
	for i, cid := range ids {
		if cid == id {
			t.bySymbol[o.Symbol] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(t.bySymbol[o.Symbol]) == 0 {
		delete(t.bySymbol, o.Symbol)
	}
	ReleaseOrder(o)
}
