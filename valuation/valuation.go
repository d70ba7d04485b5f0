// Package valuation implements classic equity valuation models: relative
// multiples (PE, PB), dividend discounting, and free-cash-flow
// discounting. All functions are pure; callers supply the inputs, usually
// from fundamentals fetched elsewhere.
package valuation

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidInput marks inputs a model cannot price from, such as
// non-positive earnings or a growth rate at or above the discount rate.
var ErrInvalidInput = errors.New("invalid valuation input")

// PEValuation prices a share by applying a risk-adjusted industry PE
// multiple to earnings per share. riskFactor above 1 means the company is
// riskier than the industry average and deserves a higher multiple.
func PEValuation(eps, industryPE, riskFactor float64) (float64, error) {
	if eps <= 0 {
		return 0, fmt.Errorf("%w: earnings per share must be positive, got %g", ErrInvalidInput, eps)
	}
	if industryPE <= 0 {
		return 0, fmt.Errorf("%w: industry PE must be positive, got %g", ErrInvalidInput, industryPE)
	}
	if riskFactor <= 0 {
		riskFactor = 1.0
	}

	adjustedPE := industryPE * riskFactor
	return eps * adjustedPE, nil
}

// PBValuation prices a share by scaling the industry PB multiple with the
// company's ROE relative to the industry's.
func PBValuation(bookValuePerShare, industryPB, roe, industryROE float64) (float64, error) {
	if bookValuePerShare <= 0 {
		return 0, fmt.Errorf("%w: book value per share must be positive, got %g", ErrInvalidInput, bookValuePerShare)
	}
	if industryPB <= 0 {
		return 0, fmt.Errorf("%w: industry PB must be positive, got %g", ErrInvalidInput, industryPB)
	}
	if industryROE <= 0 {
		return 0, fmt.Errorf("%w: industry ROE must be positive, got %g", ErrInvalidInput, industryROE)
	}

	roeFactor := roe / industryROE
	adjustedPB := industryPB * roeFactor
	return bookValuePerShare * adjustedPB, nil
}

// DDMValuation runs a two-stage dividend discount model: highGrowthYears
// of dividends growing at growthRate, then a Gordon perpetuity at
// stableGrowthRate. Passing stableGrowthRate <= 0 defaults it to half the
// high-growth rate.
func DDMValuation(currentDividend, growthRate, discountRate float64, highGrowthYears int, stableGrowthRate float64) (float64, error) {
	if currentDividend <= 0 {
		return 0, fmt.Errorf("%w: current dividend must be positive, got %g", ErrInvalidInput, currentDividend)
	}
	if growthRate >= discountRate {
		return 0, fmt.Errorf("%w: dividend growth rate %g must be below discount rate %g", ErrInvalidInput, growthRate, discountRate)
	}
	if highGrowthYears <= 0 {
		highGrowthYears = 5
	}
	if stableGrowthRate <= 0 {
		stableGrowthRate = growthRate / 2
	}
	if stableGrowthRate >= discountRate {
		return 0, fmt.Errorf("%w: stable growth rate %g must be below discount rate %g", ErrInvalidInput, stableGrowthRate, discountRate)
	}

	highGrowthPV := 0.0
	for year := 1; year <= highGrowthYears; year++ {
		dividend := currentDividend * math.Pow(1+growthRate, float64(year))
		highGrowthPV += dividend / math.Pow(1+discountRate, float64(year))
	}

	finalDividend := currentDividend * math.Pow(1+growthRate, float64(highGrowthYears))
	stableDividend := finalDividend * (1 + stableGrowthRate)
	terminalValue := stableDividend / (discountRate - stableGrowthRate)
	terminalPV := terminalValue / math.Pow(1+discountRate, float64(highGrowthYears))

	return highGrowthPV + terminalPV, nil
}

// FCFValuation discounts projected free cash flows plus a terminal
// perpetuity and returns the enterprise value. growthRates holds one rate
// per projection year.
func FCFValuation(currentFCF float64, growthRates []float64, discountRate, terminalGrowthRate float64) (float64, error) {
	if currentFCF <= 0 {
		return 0, fmt.Errorf("%w: current free cash flow must be positive, got %g", ErrInvalidInput, currentFCF)
	}
	if len(growthRates) == 0 {
		return 0, fmt.Errorf("%w: at least one growth rate is required", ErrInvalidInput)
	}
	if terminalGrowthRate >= discountRate {
		return 0, fmt.Errorf("%w: terminal growth rate %g must be below discount rate %g", ErrInvalidInput, terminalGrowthRate, discountRate)
	}

	fcfPV := 0.0
	fcf := currentFCF
	for year, rate := range growthRates {
		fcf *= 1 + rate
		fcfPV += fcf / math.Pow(1+discountRate, float64(year+1))
	}

	years := float64(len(growthRates))
	terminalValue := fcf * (1 + terminalGrowthRate) / (discountRate - terminalGrowthRate)
	terminalPV := terminalValue / math.Pow(1+discountRate, years)

	return fcfPV + terminalPV, nil
}

// MethodResult is one valuation method's answer for the summary table.
type MethodResult struct {
	Method string  `json:"method"`
	Price  float64 `json:"price"`
}

// Assessment compares one method's price to the market.
type Assessment struct {
	Method      string  `json:"method"`
	Price       float64 `json:"price"`
	MarketRatio float64 `json:"market_ratio"`
	Undervalued bool    `json:"undervalued"`
	PremiumPct  float64 `json:"premium_pct"`
}

// Summarize compares each method's price against the current market
// price. A positive PremiumPct means the model sees upside.
func Summarize(results []MethodResult, currentPrice float64) ([]Assessment, error) {
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: no valuation results to summarize", ErrInvalidInput)
	}
	if currentPrice <= 0 {
		return nil, fmt.Errorf("%w: current price must be positive, got %g", ErrInvalidInput, currentPrice)
	}

	assessments := make([]Assessment, 0, len(results))
	for _, r := range results {
		ratio := r.Price / currentPrice
		assessments = append(assessments, Assessment{
			Method:      r.Method,
			Price:       r.Price,
			MarketRatio: ratio,
			Undervalued: r.Price > currentPrice,
			PremiumPct:  (ratio - 1) * 100,
		})
	}
	return assessments, nil
}
