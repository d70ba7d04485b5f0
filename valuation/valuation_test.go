package valuation

import (
	"errors"
	"math"
	"testing"
)

func almostEqual(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance
}

func TestPEValuation(t *testing.T) {
	price, err := PEValuation(5.2, 18.5, 0.95)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 5.2 * 18.5 * 0.95 = 91.39
	if !almostEqual(price, 91.39, 0.01) {
		t.Errorf("expected 91.39, got %g", price)
	}
}

func TestPEValuationRejectsNegativeEPS(t *testing.T) {
	_, err := PEValuation(-1.0, 18.5, 1.0)
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestPBValuation(t *testing.T) {
	price, err := PBValuation(35.8, 2.4, 0.18, 0.15)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 35.8 * 2.4 * (0.18/0.15) = 103.104
	if !almostEqual(price, 103.104, 0.01) {
		t.Errorf("expected 103.104, got %g", price)
	}
}

func TestDDMValuation(t *testing.T) {
	price, err := DDMValuation(2.1, 0.12, 0.15, 5, 0.05)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Five years of growing dividends plus a Gordon terminal value.
	highGrowthPV := 0.0
	for year := 1; year <= 5; year++ {
		dividend := 2.1 * math.Pow(1.12, float64(year))
		highGrowthPV += dividend / math.Pow(1.15, float64(year))
	}
	finalDividend := 2.1 * math.Pow(1.12, 5)
	terminal := finalDividend * 1.05 / (0.15 - 0.05)
	want := highGrowthPV + terminal/math.Pow(1.15, 5)
	if !almostEqual(price, want, 0.001) {
		t.Errorf("expected %g, got %g", want, price)
	}
}

func TestDDMValuationDefaultsStableRate(t *testing.T) {
	// Stable rate defaults to half the growth rate when not given.
	explicit, err := DDMValuation(2.0, 0.10, 0.14, 5, 0.05)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defaulted, err := DDMValuation(2.0, 0.10, 0.14, 5, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !almostEqual(explicit, defaulted, 1e-9) {
		t.Errorf("expected default stable rate to match explicit half rate: %g vs %g", defaulted, explicit)
	}
}

func TestDDMValuationRejectsGrowthAboveDiscount(t *testing.T) {
	_, err := DDMValuation(2.1, 0.20, 0.15, 5, 0.05)
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestFCFValuation(t *testing.T) {
	growth := []float64{0.15, 0.14, 0.12, 0.10, 0.08}
	value, err := FCFValuation(150_000_000, growth, 0.14, 0.03)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value <= 150_000_000 {
		t.Errorf("expected enterprise value above current FCF, got %g", value)
	}
}

func TestFCFValuationRejectsTerminalAboveDiscount(t *testing.T) {
	_, err := FCFValuation(1000, []float64{0.1}, 0.05, 0.06)
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSummarize(t *testing.T) {
	results := []MethodResult{
		{Method: "pe", Price: 110},
		{Method: "pb", Price: 90},
	}
	assessments, err := Summarize(results, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(assessments) != 2 {
		t.Fatalf("expected 2 assessments, got %d", len(assessments))
	}
	if !assessments[0].Undervalued {
		t.Error("expected pe assessment to flag undervaluation")
	}
	if assessments[1].Undervalued {
		t.Error("expected pb assessment to flag overvaluation")
	}
	if !almostEqual(assessments[0].PremiumPct, 10, 1e-9) {
		t.Errorf("expected 10%% premium, got %g", assessments[0].PremiumPct)
	}
}

func TestWACCFallsBackToCostOfEquity(t *testing.T) {
	// No debt and no market cap: WACC degenerates to CAPM equity cost.
	wacc := WACC(CompanyInputs{Beta: 1.2, RiskFreeRate: 0.03}, 0.21)
	want := 0.03 + 1.2*0.07
	if !almostEqual(wacc, want, 1e-9) {
		t.Errorf("expected %g, got %g", want, wacc)
	}
}

func TestWACCBlendsDebtAndEquity(t *testing.T) {
	in := CompanyInputs{
		Beta:            1.0,
		MarketCap:       800,
		TotalDebt:       200,
		InterestExpense: 10,
		RiskFreeRate:    0.03,
	}
	wacc := WACC(in, 0.21)
	costOfEquity := 0.03 + 1.0*0.07
	costOfDebt := 10.0 / 200.0
	want := 0.8*costOfEquity + 0.2*costOfDebt*(1-0.21)
	if !almostEqual(wacc, want, 1e-9) {
		t.Errorf("expected %g, got %g", want, wacc)
	}
}

func TestIntrinsicValue(t *testing.T) {
	in := CompanyInputs{
		Revenue:            100_000,
		Beta:               1.1,
		MarketCap:          500_000,
		TotalDebt:          50_000,
		CashAndEquivalents: 20_000,
		SharesOutstanding:  10_000,
		CurrentPrice:       40,
	}
	result, err := IntrinsicValue(in, DefaultProjection())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.CashFlows) != 5 {
		t.Fatalf("expected 5 projected cash flows, got %d", len(result.CashFlows))
	}
	if result.EnterpriseValue <= 0 {
		t.Errorf("expected positive enterprise value, got %g", result.EnterpriseValue)
	}
	if !almostEqual(result.EquityValue, result.EnterpriseValue-50_000+20_000, 1e-6) {
		t.Errorf("equity bridge mismatch: %g vs %g", result.EquityValue, result.EnterpriseValue-30_000)
	}
	if result.IntrinsicValuePerShare <= 0 {
		t.Errorf("expected positive per-share value, got %g", result.IntrinsicValuePerShare)
	}
}

func TestIntrinsicValueRequiresRevenue(t *testing.T) {
	_, err := IntrinsicValue(CompanyInputs{}, DefaultProjection())
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestIntrinsicValueRejectsMismatchedProjection(t *testing.T) {
	proj := DefaultProjection()
	proj.ProfitMargins = proj.ProfitMargins[:3]
	_, err := IntrinsicValue(CompanyInputs{Revenue: 1000}, proj)
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}
