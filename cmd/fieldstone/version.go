// Version command for the fieldstone CLI.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/fieldstone/pkg/fieldstone"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the fieldstone version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("fieldstone", fieldstone.Version)
	},
}
