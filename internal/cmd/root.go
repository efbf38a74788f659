package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"FinCast/internal/di"
	"FinCast/pkg/config"
)

var (
	cfgFile string
	verbose bool
	noColor bool
)

var rootCmd = &cobra.Command{
	Use:   "fincast",
	Short: "Walk-forward ridge forecasts for BTC returns",
	Long: `FinCast - walk-forward return forecasting

Prepares the feature and sentiment tables of each data version, runs an
expanding-window ridge forecast over them and writes one predictions table
per version. The insight and plot commands read those tables back.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			lipgloss.SetColorProfile(termenv.Ascii)
		}
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml or ./config/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable color output")
	rootCmd.PersistentFlags().String("data-dir", "", "directory holding the feature and sentiment tables")
	rootCmd.PersistentFlags().String("output-dir", "", "directory for predictions tables and charts")

	_ = viper.BindPFlag("data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	_ = viper.BindPFlag("output_dir", rootCmd.PersistentFlags().Lookup("output-dir"))
}

// initConfig only locates the config file; parsing stays in pkg/config.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("config")
	}
	viper.SetEnvPrefix("FINCAST")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	_ = viper.ReadInConfig()
}

// loadConfig merges the YAML file, the environment and the persistent flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithEnv(viper.ConfigFileUsed())
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if v := viper.GetString("data_dir"); v != "" {
		cfg.Data.Dir = v
	}
	if v := viper.GetString("output_dir"); v != "" {
		cfg.Data.OutputDir = v
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	// stdout carries command output
	if cfg.Logging.Output == "" || cfg.Logging.Output == "stdout" {
		cfg.Logging.Output = "stderr"
	}
	return cfg, nil
}

// withCLI builds the command dependencies and releases them after fn.
func withCLI(fn func(*di.CLI) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cli, cleanup, err := di.InitializeCLI(cfg)
	if err != nil {
		return fmt.Errorf("initializing: %w", err)
	}
	defer cleanup()
	return fn(cli)
}
