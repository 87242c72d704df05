// Package config loads the bundled tax-parameter document and binds the
// CLI/env surface (§6.7), following the teacher-pack's viper.BindEnv +
// PersistentFlags + BindPFlag convention (penny-vault-pvbt's cmd/root.go).
package config

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"abgeltungsteuer-engine/internal/engine/taxparams"
)

// Load reads the tax-parameter document at path (§6.2 JSON shape) and
// returns the parsed, immutable Table.
func Load(path string) (*taxparams.Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	table, err := taxparams.Load(raw)
	if err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return table, nil
}

// BindFlags registers the filing-status/church/region/year flags on cmd and
// wires them to environment variables and viper keys, matching the
// teacher-pack's root-command binding style.
func BindFlags(cmd *cobra.Command) {
	viper.BindEnv("filing_status", "TAXENGINE_FILING_STATUS")
	cmd.PersistentFlags().String("filing-status", "single", "Filing status: single or joint")
	viper.BindPFlag("filing_status", cmd.PersistentFlags().Lookup("filing-status"))

	viper.BindEnv("church", "TAXENGINE_CHURCH")
	cmd.PersistentFlags().Bool("church", false, "Subject to Kirchensteuer")
	viper.BindPFlag("church", cmd.PersistentFlags().Lookup("church"))

	viper.BindEnv("region", "TAXENGINE_REGION")
	cmd.PersistentFlags().String("region", "default", "Federal state, for church-tax rate lookup")
	viper.BindPFlag("region", cmd.PersistentFlags().Lookup("region"))

	viper.BindEnv("year", "TAXENGINE_YEAR")
	cmd.PersistentFlags().Int("year", 0, "Tax year to evaluate")
	viper.BindPFlag("year", cmd.PersistentFlags().Lookup("year"))

	viper.BindEnv("params_file", "TAXENGINE_PARAMS_FILE")
	cmd.PersistentFlags().String("params-file", "data/tax_params.json", "Path to the tax-parameter document")
	viper.BindPFlag("params_file", cmd.PersistentFlags().Lookup("params-file"))
}

// Settings is the resolved set of bound values, read once viper flags have
// parsed.
type Settings struct {
	FilingStatus string
	Church       bool
	Region       string
	Year         int
	ParamsFile   string
}

// ReadSettings collects the bound viper values into a Settings struct.
func ReadSettings() Settings {
	return Settings{
		FilingStatus: viper.GetString("filing_status"),
		Church:       viper.GetBool("church"),
		Region:       viper.GetString("region"),
		Year:         viper.GetInt("year"),
		ParamsFile:   viper.GetString("params_file"),
	}
}
