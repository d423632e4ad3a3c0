// Package symbol 将交易对字符串驻留为紧凑整数 ID，热路径上只比较整数。
package symbol

import "sync"

// ID 驻留后的符号标识。0 保留为非法值。
type ID uint16

// Invalid 表示未注册符号。
const Invalid ID = 0

// Registry 符号注册表。注册幂等，ID 在进程生命周期内稳定。
type Registry struct {
	mu     sync.Mutex
	byName map[string]ID
	byID   map[ID]string
	next   ID
}

// NewRegistry 创建空注册表，ID 从 1 起分配。
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]ID),
		byID:   make(map[ID]string),
		next:   1,
	}
}

// Register 注册符号并返回 ID；已注册时返回既有 ID。
func (r *Registry) Register(name string) ID {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byName[name]; ok {
		return id
	}
	id := r.next
	r.next++
	r.byName[name] = id
	r.byID[id] = name
	return id
}

// Lookup 查询符号 ID，未注册返回 Invalid。
func (r *Registry) Lookup(name string) ID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byName[name]
}

// Name 返回 ID 对应的符号名，非法 ID 返回空串。
func (r *Registry) Name(id ID) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byID[id]
}

// Registered 判断符号是否已注册。
func (r *Registry) Registered(name string) bool {
	return r.Lookup(name) != Invalid
}

// All 返回全部已注册符号名。
func (r *Registry) All() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.byName))
	for name := range r.byName {
		out = append(out, name)
	}
	return out
}

// Count 返回已注册符号数。
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byName)
}

// Default 进程级默认注册表，启动时初始化后不再替换。
var Default = NewRegistry()

// Register 在默认注册表上注册。
func Register(name string) ID { return Default.Register(name) }

// Lookup 在默认注册表上查询。
func Lookup(name string) ID { return Default.Lookup(name) }

// Name 在默认注册表上反查符号名。
func Name(id ID) string { return Default.Name(id) }

// RegisterCommon 预注册常见交易对，供启动时调用。
func RegisterCommon() {
	for _, s := range []string{
		"BTCUSDT", "ETHUSDT", "BNBUSDT", "SOLUSDT", "XRPUSDT",
		"ADAUSDT", "AVAXUSDT", "DOGEUSDT", "DOTUSDT", "MATICUSDT",
		"LINKUSDT", "UNIUSDT", "ATOMUSDT", "LTCUSDT", "ETCUSDT",
		"ETHBTC", "BNBBTC", "SOLBTC",
	} {
		Default.Register(s)
	}
}
