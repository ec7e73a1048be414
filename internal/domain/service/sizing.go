package service

import (
	"errors"
	"strings"
)

// ErrNonPositivePrice rejects quantity derivation when the price would end
// up in a denominator.
var ErrNonPositivePrice = errors.New("sizing: price must be positive")

// SizerConfig holds the portfolio value and allocation ceilings.
type SizerConfig struct {
	StartingCashUSD     float64
	DefaultMaxAllocPct  float64 // ceiling in default risk mode
	ModerateMaxAllocPct float64 // ceiling when risk mode is "moderate"
}

// Sizer converts an outperform probability and risk penalties into an
// allocation percentage, and an allocation into a share quantity.
type Sizer struct {
	cfg SizerConfig
}

func NewSizer(cfg SizerConfig) *Sizer {
	return &Sizer{cfg: cfg}
}

// AllocPct maps probability linearly from 1% (prob 0.5) to 5% (prob 1.0),
// subtracts volatility/velocity/correlation penalties, floors at 1% and caps
// at the mode-dependent ceiling.
func (s *Sizer) AllocPct(probOutperform90d, vol20d, velocity, corrPenalty float64, riskMode string) float64 {
	prob := probOutperform90d
	if prob < 0.5 {
		prob = 0.5
	}
	if prob > 1.0 {
		prob = 1.0
	}
	base := 0.01 + (prob-0.5)*(0.05-0.01)/0.5

	penalty := 0.20*max(0, vol20d) + 0.10*max(0, velocity) + 0.10*max(0, corrPenalty)
	alloc := max(0.01, base-penalty)

	ceiling := s.cfg.DefaultMaxAllocPct
	if strings.EqualFold(riskMode, "moderate") {
		ceiling = s.cfg.ModerateMaxAllocPct
	}
	return min(ceiling, alloc)
}

// DeriveQty resolves the share quantity for an order. An explicit quantity
// wins, then an explicit notional, then the portfolio allocation. The
// notional and allocation paths divide by price and reject a non-positive
// one.
func (s *Sizer) DeriveQty(price, allocPct float64, qty, notionalUSD *float64) (float64, error) {
	if qty != nil {
		return max(0, *qty), nil
	}
	if price <= 0 {
		return 0, ErrNonPositivePrice
	}
	if notionalUSD != nil {
		return max(0, *notionalUSD/price), nil
	}
	return max(0, s.cfg.StartingCashUSD*allocPct/price), nil
}
