package market

// Venue 交易所枚举。
type Venue int

const (
	VenueUnknown Venue = iota
	VenueBinance
	VenueBybit
	VenueCoinbase
	VenueKraken
)

var venueNames = map[Venue]string{
	VenueUnknown:  "UNKNOWN",
	VenueBinance:  "BINANCE",
	VenueBybit:    "BYBIT",
	VenueCoinbase: "COINBASE",
	VenueKraken:   "KRAKEN",
}

func (v Venue) String() string {
	if name, ok := venueNames[v]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseVenue 按名称解析交易所，未知名称返回 VenueUnknown。
func ParseVenue(name string) Venue {
	switch name {
	case "BINANCE":
		return VenueBinance
	case "BYBIT":
		return VenueBybit
	case "COINBASE":
		return VenueCoinbase
	case "KRAKEN":
		return VenueKraken
	default:
		return VenueUnknown
	}
}

// TakerFeeBps 返回吃单费率（基点）。
func (v Venue) TakerFeeBps() float64 {
	switch v {
	case VenueBinance:
		return 10.0
	case VenueKraken:
		return 16.0
	case VenueCoinbase:
		return 40.0
	default:
		return 20.0
	}
}
