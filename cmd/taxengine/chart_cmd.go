package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"abgeltungsteuer-engine/internal/config"
	"abgeltungsteuer-engine/internal/engine/money"
	"abgeltungsteuer-engine/internal/engine/types"
	"abgeltungsteuer-engine/internal/engine/vorab"
	"abgeltungsteuer-engine/internal/report/chart"
)

var (
	chartParamsFile string
	chartOutFile    string
	chartFundType   string
)

var chartCmd = &cobra.Command{
	Use:   "chart",
	Short: "Render a PNG history of Vorabpauschale results for one security from a year-by-year value series",
	RunE:  runChart,
}

func init() {
	chartCmd.Flags().StringVar(&chartParamsFile, "series", "", "Path to a JSON array of {year, value_start, value_end, distributions}")
	chartCmd.Flags().StringVar(&chartOutFile, "out", "chart.png", "Output PNG path")
	chartCmd.Flags().StringVar(&chartFundType, "fund-type", "equity-fund", "Fund type tag for Teilfreistellung lookup")
}

type chartSeriesEntry struct {
	Year          int     `json:"year"`
	ValueStart    float64 `json:"value_start"`
	ValueEnd      float64 `json:"value_end"`
	Distributions float64 `json:"distributions"`
}

func runChart(cmd *cobra.Command, args []string) error {
	if chartParamsFile == "" {
		return fmt.Errorf("chart: --series is required")
	}

	settings := config.ReadSettings()
	table, err := config.Load(settings.ParamsFile)
	if err != nil {
		return err
	}

	raw, err := os.ReadFile(chartParamsFile)
	if err != nil {
		return fmt.Errorf("chart: reading series: %w", err)
	}
	var entries []chartSeriesEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return fmt.Errorf("chart: parsing series: %w", err)
	}

	sec := types.Security{FundType: types.ParseFundType(chartFundType), IsFund: true}

	var results []types.AdvanceLumpSumResult
	for _, e := range entries {
		result, err := vorab.Calculate(table, sec, vorab.Inputs{
			Year:          e.Year,
			ValueStart:    money.New(e.ValueStart),
			ValueEnd:      money.New(e.ValueEnd),
			Distributions: money.New(e.Distributions),
		})
		if err != nil {
			return fmt.Errorf("chart: computing year %d: %w", e.Year, err)
		}
		results = append(results, result)
	}

	png, err := chart.RenderVorabpauschaleHistory(results, 800, 400)
	if err != nil {
		return fmt.Errorf("chart: rendering: %w", err)
	}
	if err := os.WriteFile(chartOutFile, png, 0o644); err != nil {
		return fmt.Errorf("chart: writing %s: %w", chartOutFile, err)
	}
	return nil
}
