// Command execution for CLI commands.
//
// Information Hiding:
// - Provider and registry setup hidden
// - Output formatting hidden
// - Logger construction hidden

package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/finsight/stockagent/agent"
	"github.com/finsight/stockagent/config"
	"github.com/finsight/stockagent/llm"
	"github.com/finsight/stockagent/server"
	"github.com/finsight/stockagent/storage"
	"github.com/finsight/stockagent/tools"
	"github.com/finsight/stockagent/valuation"
)

// Options holds CLI execution options.
type Options struct {
	Provider string
	MaxSteps int
	Verbose  bool
}

// DefaultOptions returns default CLI options.
func DefaultOptions() Options {
	return Options{
		Provider: "openai",
		MaxSteps: agent.DefaultMaxSteps,
	}
}

// NewLogger builds the console logger. Verbose mode lowers the level to
// debug; otherwise tool chatter stays hidden behind warn.
func NewLogger(verbose bool) zerolog.Logger {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}

// buildSetup resolves settings and constructs the provider and registry
// shared by every command.
func buildSetup(opts Options, logger zerolog.Logger) (config.Settings, llm.Provider, *tools.Registry, error) {
	providerName := opts.Provider
	if providerName == "" {
		providerName = DefaultOptions().Provider
	}

	settings, err := config.New(providerName)
	if err != nil {
		return config.Settings{}, nil, nil, err
	}

	apiKey, err := config.APIKeyFor(settings.LLM.Provider)
	if err != nil {
		return config.Settings{}, nil, nil, err
	}

	providerType, err := llm.ParseProviderType(settings.LLM.Provider)
	if err != nil {
		return config.Settings{}, nil, nil, err
	}

	builder := llm.NewProviderBuilder(providerType).
		Model(settings.LLM.Model).
		MaxTokens(settings.LLM.MaxTokens).
		Temperature(float32(settings.LLM.Temperature))
	if settings.LLM.BaseURL != "" {
		builder = builder.BaseURL(settings.LLM.BaseURL)
	}

	provider, err := builder.APIKey(apiKey)
	if err != nil {
		return config.Settings{}, nil, nil, err
	}

	timeout := time.Duration(settings.Tools.TimeoutSeconds) * time.Second
	registry, err := tools.DefaultRegistry(timeout, settings.Tools.SerpAPIKey, logger)
	if err != nil {
		return config.Settings{}, nil, nil, err
	}

	return settings, provider, registry, nil
}

// Analyze runs one analysis from the command line, streaming progress to
// stdout as it happens.
func Analyze(ctx context.Context, query string, opts Options) error {
	logger := NewLogger(opts.Verbose)

	settings, provider, registry, err := buildSetup(opts, logger)
	if err != nil {
		return err
	}

	maxSteps := opts.MaxSteps
	if maxSteps <= 0 {
		maxSteps = settings.Agent.MaxSteps
	}

	a := agent.New(provider, registry, logger)

	fmt.Printf("Analyzing with %s (%s)...\n\n", provider.Name(), provider.Model())

	var failure string
	for event := range a.AnalyzeStream(ctx, query, maxSteps) {
		switch event.Type {
		case agent.EventThinking:
			fmt.Printf("\n[%s]\n", event.Content)
		case agent.EventStream, agent.EventFinalStream:
			fmt.Print(event.Content)
		case agent.EventTool:
			fmt.Printf("\n>> %s\n", event.Content)
		case agent.EventFinalStart:
			fmt.Printf("\n\n=== Final Analysis ===\n\n")
		case agent.EventFinal:
			// Already printed chunk by chunk.
			fmt.Println()
		case agent.EventError:
			failure = event.Content
		}
	}

	if failure != "" {
		return fmt.Errorf("%s", failure)
	}
	return nil
}

// Serve starts the HTTP API.
func Serve(ctx context.Context, opts Options) error {
	logger := NewLogger(opts.Verbose)

	settings, provider, registry, err := buildSetup(opts, logger)
	if err != nil {
		return err
	}

	store, err := storage.OpenSqlite(settings.Server.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open run store: %w", err)
	}
	defer store.Close()

	maxSteps := opts.MaxSteps
	if maxSteps <= 0 {
		maxSteps = settings.Agent.MaxSteps
	}

	srv := server.New(server.Config{
		Factory: func() (*agent.Agent, error) {
			return agent.New(provider, registry, logger), nil
		},
		Store:    store,
		Provider: provider.Name(),
		Model:    provider.Model(),
		MaxSteps: maxSteps,
		Logger:   logger,
	})

	addr := fmt.Sprintf(":%d", settings.Server.Port)
	return srv.ListenAndServe(addr)
}

// ListTools prints the tool catalogue.
func ListTools(verbose bool) error {
	logger := NewLogger(false)
	registry, err := tools.DefaultRegistry(tools.DefaultTimeout, os.Getenv("SERPAPI_API_KEY"), logger)
	if err != nil {
		return err
	}

	if verbose {
		fmt.Println(registry.Describe())
		return nil
	}
	for _, name := range registry.Names() {
		fmt.Println(name)
	}
	return nil
}

// Valuate runs the standalone DCF model for a ticker using fundamentals
// fetched from the market data client.
func Valuate(ctx context.Context, ticker string, opts Options) error {
	logger := NewLogger(opts.Verbose)

	timeout := tools.DefaultTimeout
	yahoo := tools.NewYahooClient(timeout, logger)

	inputs, err := fetchCompanyInputs(ctx, yahoo, ticker)
	if err != nil {
		return err
	}

	result, err := valuation.IntrinsicValue(inputs, valuation.DefaultProjection())
	if err != nil {
		return err
	}

	fmt.Printf("DCF valuation for %s\n", strings.ToUpper(ticker))
	fmt.Printf("  WACC:                  %.2f%%\n", result.WACC*100)
	fmt.Printf("  Enterprise value:      %.0f\n", result.EnterpriseValue)
	fmt.Printf("  Equity value:          %.0f\n", result.EquityValue)
	fmt.Printf("  Intrinsic value/share: %.2f\n", result.IntrinsicValuePerShare)
	if result.CurrentPrice > 0 {
		fmt.Printf("  Current price:         %.2f\n", result.CurrentPrice)
		if result.UpsidePct >= 0 {
			fmt.Printf("  Verdict: undervalued, potential upside %.1f%%\n", result.UpsidePct)
		} else {
			fmt.Printf("  Verdict: overvalued, potential downside %.1f%%\n", -result.UpsidePct)
		}
	}
	return nil
}

// fetchCompanyInputs pulls the fundamentals the DCF needs from the quote
// summary endpoint. Missing fields stay zero and fall back inside the
// model.
func fetchCompanyInputs(ctx context.Context, yahoo *tools.YahooClient, ticker string) (valuation.CompanyInputs, error) {
	summary, err := yahoo.QuoteSummary(ctx, ticker,
		"financialData", "summaryDetail", "defaultKeyStatistics", "price", "balanceSheetHistory", "incomeStatementHistory")
	if err != nil {
		return valuation.CompanyInputs{}, fmt.Errorf("fetch fundamentals for %s: %w", ticker, err)
	}

	return valuation.CompanyInputs{
		Revenue:            tools.RawFloat(summary, "financialData", "totalRevenue"),
		Beta:               tools.RawFloat(summary, "summaryDetail", "beta"),
		MarketCap:          tools.RawFloat(summary, "price", "marketCap"),
		TotalDebt:          tools.RawFloat(summary, "financialData", "totalDebt"),
		CashAndEquivalents: tools.RawFloat(summary, "financialData", "totalCash"),
		SharesOutstanding:  tools.RawFloat(summary, "defaultKeyStatistics", "sharesOutstanding"),
		CurrentPrice:       tools.RawFloat(summary, "financialData", "currentPrice"),
	}, nil
}
