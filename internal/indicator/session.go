package indicator

import (
	"math"
	"sort"
	"time"

	"st1ne-assistant/internal/signal"
)

// ProfileBucket is one price bucket of the session volume profile.
type ProfileBucket struct {
	Price  float64 `json:"price"`
	Volume float64 `json:"volume"`
}

// Session accumulates VWAP and the volume profile for one trading day,
// resetting when a trade lands past midnight in loc.
type Session struct {
	loc       *time.Location
	bucketPct float64

	day     string
	pv      float64
	vol     float64
	width   float64
	buckets map[int64]float64
}

// NewSession builds a session tracker; nil loc means UTC.
func NewSession(loc *time.Location, bucketPct float64) *Session {
	if loc == nil {
		loc = time.UTC
	}
	if bucketPct <= 0 {
		bucketPct = 0.05
	}
	return &Session{loc: loc, bucketPct: bucketPct, buckets: make(map[int64]float64)}
}

// AddTrade folds a print into the session, rolling over at the boundary.
func (s *Session) AddTrade(tr signal.Trade) bool {
	if !finitePositive(tr.Price) || !finitePositive(tr.Size) {
		return false
	}
	s.rollover(tr.Ts)
	s.pv += tr.Price * tr.Size
	s.vol += tr.Size
	if s.width == 0 {
		s.width = tr.Price * s.bucketPct / 100
	}
	s.buckets[int64(math.Floor(tr.Price/s.width))] += tr.Size
	return true
}

func (s *Session) rollover(ts time.Time) {
	day := ts.In(s.loc).Format(time.DateOnly)
	if day == s.day {
		return
	}
	if s.day != "" && day < s.day {
		return
	}
	s.day = day
	s.pv, s.vol, s.width = 0, 0, 0
	s.buckets = make(map[int64]float64)
}

// Day returns the current session date in the session timezone.
func (s *Session) Day() string { return s.day }

// VWAP returns the session volume-weighted average price, 0 before the first trade.
func (s *Session) VWAP() float64 {
	if s.vol <= 0 {
		return 0
	}
	return s.pv / s.vol
}

// POC returns the center of the highest-volume bucket. Equal volumes resolve
// to the bucket closest to price.
func (s *Session) POC(price float64) float64 {
	var (
		best    float64
		bestVol float64
		found   bool
	)
	for idx, vol := range s.buckets {
		center := s.center(idx)
		switch {
		case !found || vol > bestVol:
			best, bestVol, found = center, vol, true
		case vol == bestVol && math.Abs(center-price) < math.Abs(best-price):
			best = center
		case vol == bestVol && math.Abs(center-price) == math.Abs(best-price) && center < best:
			best = center
		}
	}
	return best
}

func (s *Session) center(idx int64) float64 {
	return (float64(idx) + 0.5) * s.width
}

// Profile returns the session buckets ordered by price.
func (s *Session) Profile() []ProfileBucket {
	out := make([]ProfileBucket, 0, len(s.buckets))
	for idx, vol := range s.buckets {
		out = append(out, ProfileBucket{Price: s.center(idx), Volume: vol})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	return out
}
