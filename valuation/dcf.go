package valuation

import (
	"fmt"
	"math"
)

// Default assumptions for the company-level DCF.
const (
	defaultRiskFreeRate  = 0.03
	marketRiskPremium    = 0.07
	defaultTaxRate       = 0.21
	creditSpread         = 0.02
	depreciationOfSales  = 0.05
	defaultTerminalRate  = 0.025
	fallbackDiscountRate = 0.10
)

// CompanyInputs carries the balance-sheet and market data a company-level
// DCF needs. Zero values stand for "unavailable" and trigger fallbacks.
type CompanyInputs struct {
	Revenue            float64
	Beta               float64
	MarketCap          float64
	TotalDebt          float64
	InterestExpense    float64
	CashAndEquivalents float64
	SharesOutstanding  float64
	CurrentPrice       float64
	RiskFreeRate       float64
}

// Projection holds the per-year forecast assumptions. All four slices
// must have the same length, one entry per forecast year.
type Projection struct {
	GrowthRates           []float64
	ProfitMargins         []float64
	CapExRatios           []float64
	WorkingCapitalChanges []float64
	TerminalGrowthRate    float64
}

// DCFResult is the full output of a company-level DCF run.
type DCFResult struct {
	WACC                   float64   `json:"wacc"`
	CashFlows              []float64 `json:"cash_flows"`
	TerminalValue          float64   `json:"terminal_value"`
	EnterpriseValue        float64   `json:"enterprise_value"`
	EquityValue            float64   `json:"equity_value"`
	IntrinsicValuePerShare float64   `json:"intrinsic_value_per_share"`
	CurrentPrice           float64   `json:"current_price,omitempty"`
	UpsidePct              float64   `json:"upside_pct,omitempty"`
}

// WACC computes the weighted average cost of capital from CAPM equity
// cost and observed debt cost. Missing debt data falls back to the
// risk-free rate plus a fixed credit spread.
func WACC(in CompanyInputs, taxRate float64) float64 {
	riskFree := in.RiskFreeRate
	if riskFree <= 0 {
		riskFree = defaultRiskFreeRate
	}
	if taxRate <= 0 {
		taxRate = defaultTaxRate
	}
	beta := in.Beta
	if beta == 0 {
		beta = 1.0
	}

	costOfEquity := riskFree + beta*marketRiskPremium

	totalValue := in.TotalDebt + in.MarketCap
	if totalValue == 0 {
		return costOfEquity
	}

	costOfDebt := riskFree + creditSpread
	if in.InterestExpense != 0 && in.TotalDebt > 0 {
		costOfDebt = math.Abs(in.InterestExpense) / in.TotalDebt
	}

	return (in.MarketCap/totalValue)*costOfEquity +
		(in.TotalDebt/totalValue)*costOfDebt*(1-taxRate)
}

// IntrinsicValue runs the full DCF: project free cash flows from revenue,
// discount them at WACC, add a terminal perpetuity, then bridge from
// enterprise to equity value and divide by shares outstanding.
func IntrinsicValue(in CompanyInputs, proj Projection) (DCFResult, error) {
	if in.Revenue <= 0 {
		return DCFResult{}, fmt.Errorf("%w: revenue is required for cash flow projection", ErrInvalidInput)
	}
	years := len(proj.GrowthRates)
	if years == 0 {
		return DCFResult{}, fmt.Errorf("%w: at least one forecast year is required", ErrInvalidInput)
	}
	if len(proj.ProfitMargins) != years || len(proj.CapExRatios) != years || len(proj.WorkingCapitalChanges) != years {
		return DCFResult{}, fmt.Errorf("%w: all projection slices must have length %d", ErrInvalidInput, years)
	}

	terminalRate := proj.TerminalGrowthRate
	if terminalRate == 0 {
		terminalRate = defaultTerminalRate
	}

	wacc := WACC(in, defaultTaxRate)
	if wacc <= terminalRate {
		wacc = fallbackDiscountRate
	}
	if wacc <= terminalRate {
		return DCFResult{}, fmt.Errorf("%w: discount rate %g must exceed terminal growth rate %g", ErrInvalidInput, wacc, terminalRate)
	}

	cashFlows := make([]float64, years)
	revenue := in.Revenue
	for i := 0; i < years; i++ {
		revenue *= 1 + proj.GrowthRates[i]
		netIncome := revenue * proj.ProfitMargins[i]
		depreciation := revenue * depreciationOfSales
		capEx := revenue * proj.CapExRatios[i]
		wcChange := revenue * proj.WorkingCapitalChanges[i]
		cashFlows[i] = netIncome + depreciation - capEx - wcChange
	}

	terminalValue := cashFlows[years-1] * (1 + terminalRate) / (wacc - terminalRate)

	presentValue := 0.0
	for i, cf := range cashFlows {
		presentValue += cf / math.Pow(1+wacc, float64(i+1))
	}
	terminalPV := terminalValue / math.Pow(1+wacc, float64(years))

	enterpriseValue := presentValue + terminalPV
	equityValue := enterpriseValue - in.TotalDebt + in.CashAndEquivalents

	shares := in.SharesOutstanding
	if shares <= 0 {
		shares = 1
	}
	perShare := equityValue / shares

	result := DCFResult{
		WACC:                   wacc,
		CashFlows:              cashFlows,
		TerminalValue:          terminalValue,
		EnterpriseValue:        enterpriseValue,
		EquityValue:            equityValue,
		IntrinsicValuePerShare: perShare,
		CurrentPrice:           in.CurrentPrice,
	}
	if in.CurrentPrice > 0 {
		result.UpsidePct = (perShare/in.CurrentPrice - 1) * 100
	}
	return result, nil
}

// DefaultProjection returns the moderate five-year baseline: decelerating
// growth, compressing margins, and easing capital intensity.
func DefaultProjection() Projection {
	return Projection{
		GrowthRates:           []float64{0.12, 0.10, 0.09, 0.08, 0.07},
		ProfitMargins:         []float64{0.25, 0.24, 0.23, 0.22, 0.21},
		CapExRatios:           []float64{0.06, 0.055, 0.05, 0.045, 0.04},
		WorkingCapitalChanges: []float64{0.02, 0.015, 0.01, 0.005, 0},
		TerminalGrowthRate:    defaultTerminalRate,
	}
}
