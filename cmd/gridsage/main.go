// GridSage — European day-ahead power prices, analytics and assistant.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/gridsage/gridsage/api"
	"github.com/gridsage/gridsage/internal/assistant"
	"github.com/gridsage/gridsage/internal/config"
	"github.com/gridsage/gridsage/internal/insight"
	"github.com/gridsage/gridsage/internal/llm"
	"github.com/gridsage/gridsage/internal/market"
	"github.com/gridsage/gridsage/internal/volatility"
	"github.com/gridsage/gridsage/pkg/models"
	"github.com/gridsage/gridsage/pkg/utils"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config
var cfg *config.Config

func main() {
	// A local .env carries credentials in development setups.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "gridsage",
	Short: "GridSage — European day-ahead power prices, analytics and assistant",
	Long: `GridSage aggregates day-ahead electricity prices across European
bidding zones, analyses price volatility and anomalies, and answers
market questions through a tool-calling assistant.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(pricesCmd)
	rootCmd.AddCommand(volatilityCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(statusCmd)
}

// newMarketService builds the market layer from configured credentials.
func newMarketService() (*market.Service, error) {
	session, err := insight.NewSession(insight.Config{
		ClientID:     cfg.Insight.ClientID,
		ClientSecret: cfg.Insight.ClientSecret,
		AuthURL:      cfg.Insight.AuthURL,
		BaseURL:      cfg.Insight.BaseURL,
	})
	if err != nil {
		return nil, err
	}
	return market.NewService(session), nil
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("GridSage %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Serve Command (API Server) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		api.Version = version
		srv, err := api.NewServer(cfg)
		if err != nil {
			return err
		}

		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		fmt.Printf("Starting GridSage API server on %s\n", addr)
		return srv.ListenAndServe(addr)
	},
}

// --- Prices Command ---

var pricesCmd = &cobra.Command{
	Use:   "prices [date]",
	Short: "Print the European day-ahead price grid for a date",
	Long: `Print the hourly day-ahead price grid across all supported bidding
zones for the given date (YYYY-MM-DD). Forecast prices fall back to
settled prices where the run is not published.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		day, err := utils.ParseDate(args[0])
		if err != nil {
			return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", args[0])
		}
		run, _ := cmd.Flags().GetString("run")

		svc, err := newMarketService()
		if err != nil {
			return err
		}

		grid, err := svc.EuropePrices(cmd.Context(), day, run)
		if err != nil {
			return err
		}

		printGrid(grid)
		return nil
	},
}

func init() {
	pricesCmd.Flags().String("run", market.DefaultRun, "forecast run token")
}

// printGrid renders the price grid as a fixed-width table.
func printGrid(grid *models.PriceGrid) {
	fmt.Printf("Day-ahead prices %s (run %s, %s)\n\n", grid.Date, grid.Run, grid.Unit)

	fmt.Printf("%-5s", "hour")
	for _, area := range models.Areas {
		fmt.Printf("%8s", strings.ToUpper(area))
	}
	fmt.Println()

	for _, slot := range grid.Hours {
		fmt.Printf("%02d:00", slot.Hour)
		for _, area := range models.Areas {
			v := slot.Prices[strings.ToUpper(area)]
			if v == nil {
				fmt.Printf("%8s", "-")
			} else {
				fmt.Printf("%8.2f", *v)
			}
		}
		fmt.Println()
	}

	if len(grid.Missing) > 0 {
		fmt.Printf("\nno data: %s\n", strings.Join(grid.Missing, ", "))
	}
}

// --- Volatility Command ---

var volatilityCmd = &cobra.Command{
	Use:   "volatility [area] [date]",
	Short: "Analyse price volatility and anomalies for an area and date",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		area := strings.ToLower(args[0])
		if !market.ValidArea(area) {
			return fmt.Errorf("unknown area %q", args[0])
		}
		day, err := utils.ParseDate(args[1])
		if err != nil {
			return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", args[1])
		}

		svc, err := newMarketService()
		if err != nil {
			return err
		}

		from, to := volatility.Lookback(day)
		series, err := svc.ActualsHourly(cmd.Context(), area, from, to)
		if err != nil {
			return err
		}

		report, err := volatility.Analyze(series, day)
		if err != nil {
			return err
		}
		report.Area = strings.ToUpper(area)

		fmt.Printf("Volatility report %s %s\n", report.Area, report.Date)
		fmt.Printf("  level:       %s\n", report.Volatility.Level)
		fmt.Printf("  percentile:  %.0f%%\n", report.Volatility.Percentile*100)
		fmt.Printf("  unusual day: %v\n", report.PriceAnomaly.Unusual)
		if report.PriceAnomaly.Unusual {
			fmt.Printf("  excess move: %.2f €/MWh\n", report.PriceAnomaly.ExcessiveReturn)
		}
		return nil
	},
}

// --- Chat Command ---

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive assistant session",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.LLM.OpenAIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is not configured")
		}

		provider, err := llm.NewOpenAIProvider(cfg.LLM.OpenAIKey, llm.WithModel(cfg.LLM.Model))
		if err != nil {
			return err
		}

		// Run without market data when credentials are missing; the
		// data tool then reports the problem in-band.
		marketSvc, err := newMarketService()
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: price data unavailable: %v\n", err)
			marketSvc = nil
		}

		asst := assistant.NewService(provider, marketSvc, assistant.Config{
			SessionCapacity: cfg.Assistant.SessionCapacity,
			SessionTTL:      time.Duration(cfg.Assistant.SessionTTLMin) * time.Minute,
			ChatOptions: &llm.ChatOptions{
				Model:       cfg.LLM.Model,
				Temperature: cfg.LLM.Temperature,
				MaxTokens:   cfg.LLM.MaxTokens,
			},
		})

		fmt.Println("GridSage assistant. Type 'exit' to quit.")
		scanner := bufio.NewScanner(os.Stdin)
		sessionID := ""
		for {
			fmt.Print("> ")
			if !scanner.Scan() {
				break
			}
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if line == "exit" || line == "quit" {
				break
			}

			turn := asst.Run(cmd.Context(), line, sessionID)
			sessionID = turn.SessionID
			fmt.Println(turn.TextContent)
			if turn.ChartData != nil {
				fmt.Println("(chart attached; view it through the web dashboard)")
			}
		}
		return scanner.Err()
	},
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show system status and configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  GridSage — System Status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:    %s (%s)\n", version, commit)
		fmt.Printf("  Time (CET): %s\n", utils.FormatDateTime(utils.NowCET()))
		fmt.Println()

		fmt.Println("  Configuration:")
		fmt.Printf("    LLM Model:   %s\n", cfg.LLM.Model)
		fmt.Printf("    API Server:  %s:%d\n", cfg.API.Host, cfg.API.Port)
		fmt.Printf("    Sessions:    %d (ttl %dm)\n", cfg.Assistant.SessionCapacity, cfg.Assistant.SessionTTLMin)
		fmt.Println()

		fmt.Println("  Credentials:")
		for _, k := range cfg.CheckAPIKeys() {
			status := "not set"
			if k.Configured {
				status = fmt.Sprintf("set (%s)", k.Masked)
			}
			fmt.Printf("    %-24s %s\n", k.Name+":", status)
		}

		fmt.Println("═══════════════════════════════════════")
		return nil
	},
}
