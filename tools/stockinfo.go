// Stock profile and quote tool.

package tools

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// StockInfoTool fetches a company profile, current quote figures and
// analyst targets for a ticker.
type StockInfoTool struct {
	yahoo  *YahooClient
	logger zerolog.Logger
}

// NewStockInfoTool creates the tool backed by the given Yahoo client.
func NewStockInfoTool(yahoo *YahooClient, logger zerolog.Logger) *StockInfoTool {
	return &StockInfoTool{
		yahoo:  yahoo,
		logger: logger.With().Str("tool", "get_stock_info").Logger(),
	}
}

// Descriptor returns the tool metadata.
func (t *StockInfoTool) Descriptor() Descriptor {
	return Descriptor{
		Name:        "get_stock_info",
		Description: "Fetch basic stock information: company profile, sector, market cap, price, 52-week range and analyst targets",
		Parameters: []Parameter{
			{Name: "ticker", Type: "str", Description: "Stock ticker symbol, e.g. AAPL"},
		},
	}
}

// Run fetches the profile, quote and analyst sections.
func (t *StockInfoTool) Run(ctx context.Context, params map[string]any) (any, error) {
	ticker, err := StringParam(params, "ticker")
	if err != nil {
		return nil, err
	}

	t.logger.Info().Str("ticker", ticker).Msg("fetching stock info")

	summary, err := t.yahoo.QuoteSummary(ctx, ticker,
		"assetProfile", "price", "summaryDetail", "financialData", "defaultKeyStatistics")
	if err != nil {
		return nil, fmt.Errorf("fetch stock info for %s: %w", ticker, err)
	}

	profile, _ := dig(summary, "assetProfile").(map[string]any)
	price, _ := dig(summary, "price").(map[string]any)
	detail, _ := dig(summary, "summaryDetail").(map[string]any)
	financial, _ := dig(summary, "financialData").(map[string]any)
	stats, _ := dig(summary, "defaultKeyStatistics").(map[string]any)

	result := map[string]any{
		"ticker": ticker,
		"company_info": map[string]any{
			"name":                stringOr(dig(price, "longName"), "N/A"),
			"sector":              stringOr(dig(profile, "sector"), "N/A"),
			"industry":            stringOr(dig(profile, "industry"), "N/A"),
			"country":             stringOr(dig(profile, "country"), "N/A"),
			"website":             stringOr(dig(profile, "website"), "N/A"),
			"business_summary":    stringOr(dig(profile, "longBusinessSummary"), "N/A"),
			"full_time_employees": rawValue(profile, "fullTimeEmployees"),
		},
		"stock_data": map[string]any{
			"current_price":          rawValue(financial, "currentPrice"),
			"previous_close":         rawValue(detail, "previousClose"),
			"open":                   rawValue(detail, "open"),
			"day_low":                rawValue(detail, "dayLow"),
			"day_high":               rawValue(detail, "dayHigh"),
			"52_week_low":            rawValue(detail, "fiftyTwoWeekLow"),
			"52_week_high":           rawValue(detail, "fiftyTwoWeekHigh"),
			"volume":                 rawValue(detail, "volume"),
			"avg_volume":             rawValue(detail, "averageVolume"),
			"market_cap":             rawValue(price, "marketCap"),
			"beta":                   rawValue(detail, "beta"),
			"price_to_earnings":      rawValue(detail, "trailingPE"),
			"earnings_per_share":     rawValue(stats, "trailingEps"),
			"forward_dividend_yield": rawValue(detail, "dividendYield"),
			"ex_dividend_date":       rawValue(detail, "exDividendDate"),
		},
		"analysts_data": map[string]any{
			"target_price":       rawValue(financial, "targetMeanPrice"),
			"target_high":        rawValue(financial, "targetHighPrice"),
			"target_low":         rawValue(financial, "targetLowPrice"),
			"recommendation":     stringOr(dig(financial, "recommendationKey"), "N/A"),
			"number_of_analysts": rawValue(financial, "numberOfAnalystOpinions"),
		},
	}

	t.logger.Info().Str("ticker", ticker).Msg("stock info fetched")
	return result, nil
}

func stringOr(v any, def string) any {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return def
}
