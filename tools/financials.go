// Financial statements tool.

package tools

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"
)

// FinancialStatementsTool fetches balance sheet, income statement and cash
// flow data plus headline valuation metrics for a ticker.
type FinancialStatementsTool struct {
	yahoo  *YahooClient
	logger zerolog.Logger
}

// NewFinancialStatementsTool creates the tool backed by the given Yahoo client.
func NewFinancialStatementsTool(yahoo *YahooClient, logger zerolog.Logger) *FinancialStatementsTool {
	return &FinancialStatementsTool{
		yahoo:  yahoo,
		logger: logger.With().Str("tool", "get_financial_statements").Logger(),
	}
}

// Descriptor returns the tool metadata.
func (t *FinancialStatementsTool) Descriptor() Descriptor {
	return Descriptor{
		Name:        "get_financial_statements",
		Description: "Fetch company financial statements: balance sheet, income statement and cash flow statement",
		Parameters: []Parameter{
			{Name: "ticker", Type: "str", Description: "Stock ticker symbol, e.g. AAPL"},
			{Name: "period", Type: "str", Description: "Reporting period: 'annual' or 'quarterly', defaults to annual", Default: "annual"},
			{Name: "num_periods", Type: "int", Description: "Number of reporting periods to fetch (1-5), defaults to 1", Default: 1},
		},
	}
}

// Run fetches the statements and headline metrics.
func (t *FinancialStatementsTool) Run(ctx context.Context, params map[string]any) (any, error) {
	ticker, err := StringParam(params, "ticker")
	if err != nil {
		return nil, err
	}
	period := OptionalString(params, "period", "annual")
	if period != "annual" && period != "quarterly" {
		period = "annual"
	}
	numPeriods := OptionalInt(params, "num_periods", 1)
	if numPeriods < 1 || numPeriods > 5 {
		numPeriods = 1
	}

	t.logger.Info().Str("ticker", ticker).Str("period", period).
		Int("num_periods", numPeriods).Msg("fetching financial statements")

	modules := []string{
		"balanceSheetHistory", "incomeStatementHistory", "cashflowStatementHistory",
		"financialData", "summaryDetail", "defaultKeyStatistics", "price",
	}
	if period == "quarterly" {
		modules[0] = "balanceSheetHistoryQuarterly"
		modules[1] = "incomeStatementHistoryQuarterly"
		modules[2] = "cashflowStatementHistoryQuarterly"
	}

	summary, err := t.yahoo.QuoteSummary(ctx, ticker, modules...)
	if err != nil {
		return nil, fmt.Errorf("fetch financial statements for %s: %w", ticker, err)
	}

	balance := statementList(summary, modules[0], "balanceSheetStatements", numPeriods)
	income := statementList(summary, modules[1], "incomeStatementHistory", numPeriods)
	cashflow := statementList(summary, modules[2], "cashflowStatements", numPeriods)

	financial, _ := dig(summary, "financialData").(map[string]any)
	detail, _ := dig(summary, "summaryDetail").(map[string]any)
	stats, _ := dig(summary, "defaultKeyStatistics").(map[string]any)
	price, _ := dig(summary, "price").(map[string]any)

	result := map[string]any{
		"key_metrics": map[string]any{
			"market_cap":           rawValue(price, "marketCap"),
			"pe_ratio":             rawValue(detail, "trailingPE"),
			"pb_ratio":             rawValue(stats, "priceToBook"),
			"dividend_yield":       rawValue(detail, "dividendYield"),
			"debt_to_equity":       rawValue(financial, "debtToEquity"),
			"roe":                  rawValue(financial, "returnOnEquity"),
			"profit_margin":        rawValue(financial, "profitMargins"),
			"beta":                 rawValue(detail, "beta"),
			"earnings_growth":      earningsGrowth(income),
			"earnings_per_share":   rawValue(stats, "trailingEps"),
			"book_value_per_share": rawValue(stats, "bookValue"),
			"dividend_per_share":   rawValue(detail, "dividendRate"),
		},
		"balance_sheet": balance,
		"income_stmt":   income,
		"cash_flow":     cashflow,
		"period":        period,
		"num_periods":   numPeriods,
	}

	t.logger.Info().Str("ticker", ticker).Msg("financial statements fetched")
	return result, nil
}

// statementList extracts up to limit statement entries from a history module.
func statementList(summary map[string]any, module, key string, limit int) []any {
	entries, _ := dig(summary, module, key).([]any)
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

// earningsGrowth computes year-over-year net income growth (percent) from
// the two most recent income statements, "N/A" when either side is missing.
func earningsGrowth(income []any) any {
	if len(income) < 2 {
		return "N/A"
	}
	current := netIncome(income[0])
	previous := netIncome(income[1])
	if current == 0 || previous == 0 {
		return "N/A"
	}
	growth := (current - previous) / math.Abs(previous) * 100
	return math.Round(growth*100) / 100
}

func netIncome(stmt any) float64 {
	m, ok := stmt.(map[string]any)
	if !ok {
		return 0
	}
	v := rawValue(m, "netIncome")
	f, ok := v.(float64)
	if !ok {
		return 0
	}
	return f
}
