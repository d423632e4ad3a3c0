package gateway

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"trading-engine-go/market"
)

// combinedMessage 对应 combined stream 外层包装。
type combinedMessage struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// depthUpdate 深度消息的核心字段。
type depthUpdate struct {
	Symbol  string               `json:"s"`
	EventMs int64                `json:"E"`
	Bids    [][2]json.RawMessage `json:"b"`
	Asks    [][2]json.RawMessage `json:"a"`
}

// DepthSnapshot 解析后的盘口快照。
type DepthSnapshot struct {
	Symbol string
	Bids   []market.Level
	Asks   []market.Level
	Ts     time.Time
}

// ParseDepthSnapshot 解析 combined stream 的 depth 消息。
// 外层没有 stream 包装时按裸 depth 消息解析。
func ParseDepthSnapshot(raw []byte) (DepthSnapshot, error) {
	var snap DepthSnapshot

	payload := raw
	var msg combinedMessage
	if err := json.Unmarshal(raw, &msg); err == nil && len(msg.Data) > 0 {
		payload = msg.Data
	}

	var depth depthUpdate
	if err := json.Unmarshal(payload, &depth); err != nil {
		return snap, fmt.Errorf("parse depth: %w", err)
	}
	if depth.Symbol == "" {
		return snap, fmt.Errorf("depth message missing symbol")
	}

	snap.Symbol = depth.Symbol
	snap.Bids = parseLevels(depth.Bids)
	snap.Asks = parseLevels(depth.Asks)
	if depth.EventMs > 0 {
		snap.Ts = time.UnixMilli(depth.EventMs).UTC()
	} else {
		snap.Ts = time.Now().UTC()
	}
	return snap, nil
}

func parseLevels(raw [][2]json.RawMessage) []market.Level {
	levels := make([]market.Level, 0, len(raw))
	for _, pair := range raw {
		price, err1 := strconv.ParseFloat(strings.Trim(string(pair[0]), `"`), 64)
		qty, err2 := strconv.ParseFloat(strings.Trim(string(pair[1]), `"`), 64)
		if err1 != nil || err2 != nil || price <= 0 {
			continue
		}
		levels = append(levels, market.Level{Price: price, Qty: qty})
	}
	return levels
}
