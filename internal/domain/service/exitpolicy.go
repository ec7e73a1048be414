package service

import (
	"context"

	"stockbot/internal/domain/model"
)

// Exit policy reasons.
const (
	ReasonTrailingStopHit = "atr_trailing_stop_hit"
	ReasonTakeProfit1Pct  = "take_profit_plus_1pct_day"
	ReasonDowngradeStreak = "downgrade_streak_trigger"
	ReasonHoldConditions  = "hold_conditions"
)

// ExitInput is one exit evaluation for an open position.
type ExitInput struct {
	CurrentPrice float64
	PrevClose    float64
	ATR14d       float64
	SignalScore  float64
}

// ExitPolicy decides HOLD / SELL_PARTIAL / SELL_ALL from the trailing-stop,
// take-profit and downgrade-streak rules. Every evaluation persists the new
// peak price (monotone max) and downgrade streak before deciding, so the
// stored state advances even on HOLD.
type ExitPolicy struct {
	state StateStore
}

func NewExitPolicy(state StateStore) *ExitPolicy {
	return &ExitPolicy{state: state}
}

func (p *ExitPolicy) Evaluate(ctx context.Context, ticker string, in ExitInput) (model.ExitDecision, error) {
	st, err := p.state.HysteresisState(ctx, ticker)
	if err != nil {
		return model.ExitDecision{}, err
	}

	peak := in.CurrentPrice
	if st.PeakPrice != nil && *st.PeakPrice > peak {
		peak = *st.PeakPrice
	}

	trailStop := peak - 3.0*in.ATR14d
	trailStopHit := in.CurrentPrice < trailStop

	pnlToday := 0.0
	if in.PrevClose > 0 {
		pnlToday = in.CurrentPrice/in.PrevClose - 1.0
	}

	streak := 0
	if in.SignalScore < 0.70 {
		streak = st.DowngradeStreak + 1
	}
	if err := p.state.SetExitState(ctx, ticker, peak, streak); err != nil {
		return model.ExitDecision{}, err
	}

	// Order matters: the trailing stop wins even when the take-profit
	// condition also holds.
	switch {
	case trailStopHit:
		return model.ExitDecision{Action: model.ActionSellAll, Frac: 1.0, Reason: ReasonTrailingStopHit}, nil
	case pnlToday >= 0.01:
		return model.ExitDecision{Action: model.ActionSellPartial, Frac: 0.4, Reason: ReasonTakeProfit1Pct}, nil
	case streak >= 2 && in.SignalScore < 0.70:
		return model.ExitDecision{Action: model.ActionSellAll, Frac: 1.0, Reason: ReasonDowngradeStreak}, nil
	default:
		return model.ExitDecision{Action: model.ActionHold, Frac: 0.0, Reason: ReasonHoldConditions}, nil
	}
}
