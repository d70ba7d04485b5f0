// Package main provides the stockagent CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/finsight/stockagent/cli"
)

var (
	// Global flags
	provider string
	maxSteps int
	verbose  bool
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	rootCmd := &cobra.Command{
		Use:   "stockagent",
		Short: "Tool-augmented LLM agent for stock analysis",
		Long: `A conversational stock-analysis agent that plans tool calls,
fetches market data, and produces a grounded analysis.

Data sources cover price history, fundamentals, technical indicators,
news, and web search. Supports OpenAI, Anthropic, DeepSeek, and Gemini.`,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&provider, "provider", "p", "", "LLM provider (openai, anthropic, deepseek, gemini)")
	rootCmd.PersistentFlags().IntVarP(&maxSteps, "max-steps", "m", 0, "Maximum reasoning steps (default from AGENT_MAX_STEPS)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show verbose output")

	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(toolsCmd())
	rootCmd.AddCommand(valuateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func options() cli.Options {
	return cli.Options{
		Provider: provider,
		MaxSteps: maxSteps,
		Verbose:  verbose,
	}
}

func analyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze [query]",
		Short: "Run one stock analysis and stream the reasoning",
		Long: `Run one analysis. The agent decides which tools to call, feeds their
results back into its reasoning, and finishes with a written analysis.

An empty query analyzes Apple (AAPL) over the last three months.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			return cli.Analyze(context.Background(), query, options())
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API.

Endpoints:
- POST /api/analyze  buffered JSON result
- POST /api/stream   newline-delimited JSON progress events
- GET  /api/runs     recent stored runs
- GET  /api/runs/:id one stored run with full step history`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Serve(context.Background(), options())
		},
	}
}

func toolsCmd() *cobra.Command {
	var verboseTools bool

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List available tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.ListTools(verboseTools)
		},
	}

	cmd.Flags().BoolVarP(&verboseTools, "verbose", "V", false, "Show tool parameters")

	return cmd
}

func valuateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "valuate [ticker]",
		Short: "Run a standalone DCF valuation for a ticker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Valuate(context.Background(), args[0], options())
		},
	}
}
