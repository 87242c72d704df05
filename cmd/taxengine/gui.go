package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var guiCmd = &cobra.Command{
	Use:   "gui",
	Short: "Launch the interactive GUI (not implemented)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return fmt.Errorf("gui: not implemented, use 'taxengine evaluate' instead")
	},
}
