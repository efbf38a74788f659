package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Build-time variables set via ldflags.
var (
	Version   = "dev"
	GitCommit = "none"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(titleStyle.Render("fincast") + "  " + valueStyle.Render("v"+Version))
		fmt.Println()
		fmt.Println(field("version", Version))
		fmt.Println(field("commit", GitCommit))
		fmt.Println(field("built", BuildDate))
		fmt.Println(field("go", runtime.Version()))
		fmt.Println(field("os/arch", runtime.GOOS+"/"+runtime.GOARCH))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
