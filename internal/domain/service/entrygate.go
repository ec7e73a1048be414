package service

import (
	"context"
	"strings"

	"stockbot/internal/domain/model"
)

// Entry gate rejection and acceptance reasons.
const (
	ReasonLiquidityGuardFailed  = "liquidity_guard_failed"
	ReasonSectorCapFailed       = "sector_cap_failed"
	ReasonCorrPenaltyFailed     = "corr_penalty_failed"
	ReasonHardVeto              = "hard_veto"
	ReasonSignalThresholdFailed = "signal_threshold_failed"
	ReasonShockOverride         = "shock_override"
	ReasonHysteresisPass        = "hysteresis_pass"
	ReasonHysteresisWait        = "hysteresis_wait"
)

// GateConfig holds the liquidity and veto limits for the entry gate.
type GateConfig struct {
	MinMarketCap       float64
	MinAvgDollarVol20d float64
	HardVetoKeywords   []string
}

// Overrides carries the external risk checks the gate consults but does not
// compute. Zero values mean the checks passed.
type Overrides struct {
	SectorCapBreached   bool
	CorrPenaltyBreached bool
	WalkForwardFailed   bool
}

// EntryInput is one gate evaluation for one ticker.
type EntryInput struct {
	Decision    model.DecisionPayload
	AvgVol20d   float64
	AvgClose20d float64
	MarketCap   *float64 // nil when unknown; unknown fails the liquidity guard
	ShockScore  float64
	Overrides   Overrides
}

// EntryGate decides BUY vs NO_TRADE. Checks run in a strict order and every
// evaluation persists the ticker's consecutive-pass counter: any failure
// resets it to zero, a threshold pass increments it even when the verdict is
// still NO_TRADE (hysteresis_wait), so the next passing call sees two in a
// row.
type EntryGate struct {
	cfg   GateConfig
	state StateStore
}

func NewEntryGate(cfg GateConfig, state StateStore) *EntryGate {
	return &EntryGate{cfg: cfg, state: state}
}

func (g *EntryGate) Evaluate(ctx context.Context, ticker string, in EntryInput) (model.EntryDecision, error) {
	noTrade := func(reason string) (model.EntryDecision, error) {
		if err := g.state.SetEntryStreak(ctx, ticker, 0); err != nil {
			return model.EntryDecision{}, err
		}
		return model.EntryDecision{Action: model.ActionNoTrade, Reason: reason}, nil
	}

	if !g.liquidityOK(in) {
		return noTrade(ReasonLiquidityGuardFailed)
	}
	if in.Overrides.SectorCapBreached {
		return noTrade(ReasonSectorCapFailed)
	}
	if in.Overrides.CorrPenaltyBreached {
		return noTrade(ReasonCorrPenaltyFailed)
	}
	if g.hasHardVeto(in.Decision.KeyRisks) {
		return noTrade(ReasonHardVeto)
	}

	score := in.Decision.SignalScore
	prob := in.Decision.ProbOutperform90d
	strongOK := in.Decision.Rec == model.RecStrongBuy &&
		score >= 0.80 && prob >= 0.60 && !in.Overrides.WalkForwardFailed
	normalOK := score >= 0.70 && prob >= 0.55
	passGate := strongOK || normalOK

	st, err := g.state.HysteresisState(ctx, ticker)
	if err != nil {
		return model.EntryDecision{}, err
	}
	streak := 0
	if passGate {
		streak = st.ConsecutiveOK + 1
	}
	if err := g.state.SetEntryStreak(ctx, ticker, streak); err != nil {
		return model.EntryDecision{}, err
	}

	if !passGate {
		return model.EntryDecision{Action: model.ActionNoTrade, Reason: ReasonSignalThresholdFailed}, nil
	}
	if in.ShockScore > 0.7 {
		return model.EntryDecision{Action: model.ActionBuy, Reason: ReasonShockOverride}, nil
	}
	if streak >= 2 {
		return model.EntryDecision{Action: model.ActionBuy, Reason: ReasonHysteresisPass}, nil
	}
	// Counter was incremented and persisted above: the no-action result still
	// advances the hysteresis state.
	return model.EntryDecision{Action: model.ActionNoTrade, Reason: ReasonHysteresisWait}, nil
}

func (g *EntryGate) liquidityOK(in EntryInput) bool {
	avgDollarVol := in.AvgVol20d * in.AvgClose20d
	capOK := in.MarketCap != nil && *in.MarketCap >= g.cfg.MinMarketCap
	return avgDollarVol >= g.cfg.MinAvgDollarVol20d && capOK
}

func (g *EntryGate) hasHardVeto(keyRisks []string) bool {
	joined := strings.ToLower(strings.Join(keyRisks, " "))
	for _, kw := range g.cfg.HardVetoKeywords {
		if strings.Contains(joined, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
