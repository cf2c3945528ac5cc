package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/meridianins/ratekeeper/internal/core/config"
	"github.com/meridianins/ratekeeper/internal/core/db"
	"github.com/meridianins/ratekeeper/internal/demographic"
	"github.com/meridianins/ratekeeper/internal/dependency"
	"github.com/meridianins/ratekeeper/internal/orchestration"
	"github.com/meridianins/ratekeeper/internal/premium"
	"github.com/meridianins/ratekeeper/internal/types"
	"github.com/spf13/cobra"
)

var priceCmd = &cobra.Command{
	Use:   "price",
	Short: "Run one premium calculation from a JSON request",
	RunE:  runPrice,
}

func init() {
	rootCmd.AddCommand(priceCmd)
	priceCmd.Flags().String("request", "", "path to a JSON calculation request (required)")
	priceCmd.Flags().String("rules", "", "path to a JSON rule list (used when no --db-url)")
	priceCmd.Flags().String("pricing", "", "path to JSON age brackets and actuarial tables")
	priceCmd.MarkFlagRequired("request")
}

// pricingConfig is the on-disk shape of demographic pricing configuration.
type pricingConfig struct {
	AgeBrackets     []types.AgeBracket    `json:"age_brackets"`
	ActuarialTables []types.ActuarialTable `json:"actuarial_tables"`
}

func runPrice(cmd *cobra.Command, args []string) error {
	logger := setupLogger()
	ctx := context.Background()

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if dbURL != "" {
		cfg.DatabaseURL = dbURL
	}

	requestPath, _ := cmd.Flags().GetString("request")
	var req types.CalculationRequest
	if err := readJSONFile(requestPath, &req); err != nil {
		return fmt.Errorf("failed to read request: %w", err)
	}

	var store dependency.Store
	var source orchestration.RuleSource

	if cfg.DatabaseURL != "" {
		database, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer database.Close()

		queries, err := db.LoadQueries(database)
		if err != nil {
			return fmt.Errorf("failed to load queries: %w", err)
		}
		store = dependency.NewSQLStore(queries)
		source = orchestration.NewSQLRuleSource(queries)
	} else {
		rulesPath, _ := cmd.Flags().GetString("rules")
		if rulesPath == "" {
			return fmt.Errorf("--rules or --db-url required")
		}
		var rules []*types.AdvancedRule
		if err := readJSONFile(rulesPath, &rules); err != nil {
			return fmt.Errorf("failed to read rules: %w", err)
		}
		memSource, err := orchestration.NewMemoryRuleSource(rules)
		if err != nil {
			return err
		}
		store = dependency.NewMemoryStore()
		source = memSource
	}

	opts := orchestration.Options{Logger: logger}
	if pricingPath, _ := cmd.Flags().GetString("pricing"); pricingPath != "" {
		var pricing pricingConfig
		if err := readJSONFile(pricingPath, &pricing); err != nil {
			return fmt.Errorf("failed to read pricing config: %w", err)
		}
		opts.Demographics = demographic.NewCalculator(demographic.Config{
			Brackets: pricing.AgeBrackets,
			Tables:   pricing.ActuarialTables,
			Logger:   logger,
		})
	}

	manager := dependency.NewManager(store, logger)
	engine, err := orchestration.NewEngine(manager, source, cfg, opts)
	if err != nil {
		return err
	}
	calculator, err := premium.NewCalculator(engine, logger)
	if err != nil {
		return err
	}

	result, err := calculator.Calculate(ctx, req)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func readJSONFile(path string, dest any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}
