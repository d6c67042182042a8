package indicator

import (
	"fmt"
	"time"
)

// Vector is the full indicator readout for one (symbol, timeframe) after a snapshot.
type Vector struct {
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"timeframe"`
	Ts        time.Time `json:"ts"`
	Price     float64   `json:"price"`

	OBI      float64  `json:"obi"`
	BidWalls []Wall   `json:"bid_walls,omitempty"`
	AskWalls []Wall   `json:"ask_walls,omitempty"`
	Depth    [3]Depth `json:"depth"`

	CVD1m   float64 `json:"cvd_1m"`
	CVD3m   float64 `json:"cvd_3m"`
	CVD5m   float64 `json:"cvd_5m"`
	Delta1m float64 `json:"delta_1m"`

	POC  float64 `json:"poc"`
	VWAP float64 `json:"vwap"`

	RSI        float64 `json:"rsi"`
	RSIReady   bool    `json:"rsi_ready"`
	MACD       float64 `json:"macd"`
	MACDSignal float64 `json:"macd_signal"`
	MACDHist   float64 `json:"macd_hist"`
	EMAShort   float64 `json:"ema_short"`
	EMALong    float64 `json:"ema_long"`
	EMATrend   int     `json:"ema_trend"`
	Cross      Cross   `json:"cross"`
	Heikin     int     `json:"heikin_streak"`
	Bars       int     `json:"bars"`
}

// Map flattens the vector into named scalars for logs and trade records.
func (v Vector) Map() map[string]float64 {
	m := map[string]float64{
		"price":         v.Price,
		"obi":           v.OBI,
		"bid_walls":     float64(len(v.BidWalls)),
		"ask_walls":     float64(len(v.AskWalls)),
		"cvd_1m":        v.CVD1m,
		"cvd_3m":        v.CVD3m,
		"cvd_5m":        v.CVD5m,
		"delta_1m":      v.Delta1m,
		"poc":           v.POC,
		"vwap":          v.VWAP,
		"rsi":           v.RSI,
		"macd":          v.MACD,
		"macd_signal":   v.MACDSignal,
		"macd_hist":     v.MACDHist,
		"ema_short":     v.EMAShort,
		"ema_long":      v.EMALong,
		"ema_trend":     float64(v.EMATrend),
		"ema_cross":     float64(v.Cross),
		"heikin_streak": float64(v.Heikin),
	}
	for _, d := range v.Depth {
		m[fmt.Sprintf("depth_bid_%.1f", d.Pct)] = d.Bid
		m[fmt.Sprintf("depth_ask_%.1f", d.Pct)] = d.Ask
	}
	return m
}
