package tools

import (
	"time"

	"github.com/rs/zerolog"
)

// DefaultTimeout bounds each upstream data request.
const DefaultTimeout = 30 * time.Second

// DefaultRegistry builds the standard stock-analysis registry: price
// history, financial statements, news, technical indicators, company info
// and web search, in that order. serpAPIKey may be empty.
func DefaultRegistry(timeout time.Duration, serpAPIKey string, logger zerolog.Logger) (*Registry, error) {
	yahoo := NewYahooClient(timeout, logger)

	return NewRegistry(
		NewHistoricalDataTool(yahoo, logger),
		NewFinancialStatementsTool(yahoo, logger),
		NewNewsTool(timeout, logger),
		NewTechnicalAnalysisTool(yahoo, logger),
		NewStockInfoTool(yahoo, logger),
		NewWebSearchTool(timeout, serpAPIKey, logger),
	)
}
