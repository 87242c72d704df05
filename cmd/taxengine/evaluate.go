package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"abgeltungsteuer-engine/internal/config"
	"abgeltungsteuer-engine/internal/engine"
	"abgeltungsteuer-engine/internal/engine/money"
	"abgeltungsteuer-engine/internal/engine/payout"
	"abgeltungsteuer-engine/internal/engine/types"
)

var (
	inputPath string
	netTarget float64
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate a portfolio bundle for one tax year",
	RunE:  runEvaluate,
}

func init() {
	evaluateCmd.Flags().StringVar(&inputPath, "input", "", "Path to the parser-produced JSON bundle")
	evaluateCmd.Flags().Float64Var(&netTarget, "net-target", 0, "Target net payout; when > 0, prints a net-payout plan instead of an allowance plan")
	evaluateCmd.MarkFlagRequired("input")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	logger, err := zap.NewProduction()
	if err != nil {
		logger = zap.NewNop()
	}
	defer logger.Sync()

	settings := config.ReadSettings()
	if settings.Year == 0 {
		return fmt.Errorf("evaluate: --year is required")
	}

	table, err := config.Load(settings.ParamsFile)
	if err != nil {
		return err
	}

	b, err := loadBundle(inputPath)
	if err != nil {
		return err
	}
	securities, txs, prices, err := b.toEngineInputs()
	if err != nil {
		return err
	}

	e := engine.NewEngine(table, logger)
	ctx := cmd.Context()
	if err := e.BuildLedgers(ctx, securities, txs); err != nil {
		return fmt.Errorf("evaluate: building ledgers: %w", err)
	}

	if netTarget > 0 {
		plan, err := e.PlanNetPayout(ctx, payout.Request{
			TargetNet:     money.New(netTarget),
			Year:          settings.Year,
			FilingStatus:  settings.FilingStatus,
			Church:        settings.Church,
			Region:        settings.Region,
			CurrentPrices: prices,
		})
		if err != nil {
			return fmt.Errorf("evaluate: planning net payout: %w", err)
		}
		printNetPayoutPlan(plan)
		return nil
	}

	result, err := e.PlanAllowance(ctx, settings.Year, settings.FilingStatus, money.Zero, prices)
	if err != nil {
		return fmt.Errorf("evaluate: planning allowance: %w", err)
	}
	printAllowanceResult(result)
	return nil
}

func printAllowanceResult(result types.AllowanceOptimisationResult) {
	fmt.Printf("Allowance %d: total=%s used=%s remaining=%s\n", result.Year, result.TotalAllowance, result.AlreadyUsed, result.Remaining)
	for _, p := range result.Proposals {
		fmt.Printf("  sell %s %s u @ %s -> tax=%s net=%s\n", p.SecurityName, p.Units, p.CurrentPrice, p.Tax, p.NetProceeds)
	}
}

func printNetPayoutPlan(plan types.NetPayoutPlan) {
	fmt.Printf("Net payout target=%s achieved=%s gross=%s tax=%s\n", plan.TargetNet, plan.AchievedNet, plan.GrossTotal, plan.TaxTotal)
	for _, p := range plan.Proposals {
		fmt.Printf("  sell %s %s u @ %s -> tax=%s net=%s legacy_exempt=%t\n", p.SecurityName, p.Units, p.CurrentPrice, p.Tax, p.NetProceeds, p.LegacyExempt)
	}
}
