package cmd

import (
	"fmt"

	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/internal/version"
	"github.com/spf13/cobra"
)

var runVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the version of the governor",
	Run: func(cmd *cobra.Command, args []string) {
		bindCommandFlags(cmd)

		v := version.GetVersion()
		commit := version.GetCommit()

		fmt.Printf("GovernorVersion: %s\nCommit: %s\n", v, commit)
	},
}
