package models

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	MinProgress = 0
	MaxProgress = 100
)

var hundred = decimal.NewFromInt(100)

// CalculateToInvoice returns newProgress% of the contract sum minus what has
// already been invoiced. Negative results are credits and are kept as-is.
func CalculateToInvoice(newProgress int, contractSum, invoiced decimal.Decimal) decimal.Decimal {
	return contractSum.Mul(decimal.NewFromInt(int64(newProgress))).Div(hundred).Sub(invoiced)
}

func ClampProgress(p int) int {
	if p < MinProgress {
		return MinProgress
	}
	if p > MaxProgress {
		return MaxProgress
	}
	return p
}

// ParseProgress coerces user input into a percentage. Anything that is not a
// number becomes 0; numbers are rounded and clamped to [0, 100]. Exponents
// that overflow a float64 clamp like any other out-of-range number.
func ParseProgress(raw string) int {
	s := strings.TrimSpace(raw)
	s = strings.TrimSuffix(s, "%")
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return MinProgress
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		var numErr *strconv.NumError
		if !errors.As(err, &numErr) || !errors.Is(numErr.Err, strconv.ErrRange) {
			return MinProgress
		}
	} else if math.IsNaN(f) || math.IsInf(f, 0) {
		return MinProgress
	}

	if f <= MinProgress {
		return MinProgress
	}
	if f >= MaxProgress {
		return MaxProgress
	}
	return ClampProgress(int(math.Round(f)))
}

// DeriveProgress is the invoiced share of the contract sum as a whole percent.
func DeriveProgress(invoiced, contractSum decimal.Decimal) int {
	if !contractSum.IsPositive() {
		return 0
	}
	return int(invoiced.Div(contractSum).Mul(hundred).Round(0).IntPart())
}

// ProgressBasis is the percentage ToInvoice is computed from: the pending edit
// when there is one, the current progress otherwise.
func (p *Phase) ProgressBasis() int {
	if p.NewProgress != nil {
		return *p.NewProgress
	}
	return p.Progress
}

// Recalculate restores the ToInvoice invariant. Every mutation of
// NewProgress, ContractSum or Invoiced must be followed by a call.
func (p *Phase) Recalculate() {
	p.ToInvoice = CalculateToInvoice(p.ProgressBasis(), p.ContractSum, p.Invoiced)
}

// SetNewProgress clamps and stores a pending edit and returns the stored value.
func (p *Phase) SetNewProgress(value int) int {
	clamped := ClampProgress(value)
	p.NewProgress = &clamped
	p.Recalculate()
	return clamped
}

func (p *Phase) ClearNewProgress() {
	p.NewProgress = nil
	p.Recalculate()
}

// RollProgress moves a pending edit into Progress after a submission attempt.
func (p *Phase) RollProgress() {
	if p.NewProgress == nil {
		return
	}
	p.Progress = *p.NewProgress
	p.NewProgress = nil
	p.Recalculate()
}

// Invoiceable reports whether the phase belongs in a submission batch.
func (p *Phase) Invoiceable() bool {
	return p.NewProgress != nil && p.ToInvoice.IsPositive()
}
