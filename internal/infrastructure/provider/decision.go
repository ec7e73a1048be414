package provider

import (
	"context"
	"errors"
	"fmt"
	"math"

	"stockbot/internal/application/port"
	"stockbot/internal/domain/model"
)

// ErrInvalidDecision marks a decision payload that fails schema validation.
var ErrInvalidDecision = errors.New("invalid decision payload")

// Decision is a deterministic stand-in for the LLM decision step. It maps
// momentum, realized volatility and news sentiment onto the recommendation
// schema the gates consume. Every payload is validated before it leaves.
type Decision struct{}

func NewDecision() *Decision { return &Decision{} }

func (d *Decision) Decide(ctx context.Context, ev model.EvidencePacket) (model.DecisionPayload, error) {
	momentum := ev.PriceMomentum20d
	vol := ev.Vol20d
	sentiment := ev.NewsSentiment

	signalScore := clamp01(0.55 + momentum*2.0 + sentiment*0.2 - vol)
	probOutperform := clamp01(0.50 + momentum + sentiment*0.25)

	var rec string
	switch {
	case signalScore >= 0.80 && probOutperform >= 0.60:
		rec = model.RecStrongBuy
	case signalScore >= 0.70 && probOutperform >= 0.55:
		rec = model.RecBuy
	case signalScore < 0.40:
		rec = model.RecSell
	default:
		rec = model.RecHold
	}

	payload := model.DecisionPayload{
		Rec:               rec,
		SignalScore:       round4(signalScore),
		ProbOutperform90d: round4(probOutperform),
		HorizonDays:       90,
		KeyDrivers: []string{
			"Price trend over last 20 sessions",
			"Recent headline flow balance",
		},
		KeyRisks: []string{
			"Macro shock could reverse momentum",
			"Guidance uncertainty remains",
		},
		DisconfirmingEvidence: []string{
			"Momentum can mean-revert quickly",
		},
		WhatChangedSinceLast: []string{},
		ExitTriggers: []string{
			"Signal score drops below 0.70",
			"ATR trailing stop is hit",
		},
	}
	if err := ValidateDecision(payload); err != nil {
		return model.DecisionPayload{}, err
	}
	return payload, nil
}

// ValidateDecision enforces the decision schema: a known recommendation,
// scores inside [0,1] and all required list fields present.
func ValidateDecision(p model.DecisionPayload) error {
	switch p.Rec {
	case model.RecStrongBuy, model.RecBuy, model.RecHold, model.RecSell, model.RecStrongSell:
	default:
		return fmt.Errorf("%w: unknown rec %q", ErrInvalidDecision, p.Rec)
	}
	if p.SignalScore < 0 || p.SignalScore > 1 {
		return fmt.Errorf("%w: signal_score %v out of range", ErrInvalidDecision, p.SignalScore)
	}
	if p.ProbOutperform90d < 0 || p.ProbOutperform90d > 1 {
		return fmt.Errorf("%w: prob_outperform_90d %v out of range", ErrInvalidDecision, p.ProbOutperform90d)
	}
	if p.KeyDrivers == nil {
		return fmt.Errorf("%w: key_drivers missing", ErrInvalidDecision)
	}
	if p.KeyRisks == nil {
		return fmt.Errorf("%w: key_risks missing", ErrInvalidDecision)
	}
	if p.DisconfirmingEvidence == nil {
		return fmt.Errorf("%w: disconfirming_evidence missing", ErrInvalidDecision)
	}
	if p.ExitTriggers == nil {
		return fmt.Errorf("%w: exit_triggers missing", ErrInvalidDecision)
	}
	return nil
}

func clamp01(x float64) float64 { return math.Max(0, math.Min(1, x)) }

func round4(x float64) float64 { return math.Round(x*10_000) / 10_000 }

var _ port.DecisionProvider = (*Decision)(nil)
