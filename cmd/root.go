package cmd

import (
	"fmt"
	"log/slog"
	"os"

	cfgpkg "github.com/KaramelBytes/trendmerge/internal/config"
	"github.com/KaramelBytes/trendmerge/internal/logging"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	debug   bool
	// Overrides (applied only when set)
	flagLogLevel   string
	flagSeqURL     string
	flagExportsDir string

	// Loaded configuration
	cfg *cfgpkg.Global
)

var rootCmd = &cobra.Command{
	Use:   "trendmerge",
	Short: "Merge building-automation trend exports onto one timeline",
	Long: `trendmerge aligns CSV/XLSX trend exports from building-automation systems onto the
timestamps of a primary export, forward-fills the gaps and renders a merged table,
an interactive trend viewer and a chart. It can also run as a small upload server.`,
	SilenceUsage: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	cobra.OnInitialize(loadConfig)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.trendmerge/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug|info|warn|error (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagSeqURL, "seq-url", "", "Seq server URL for structured logs (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagExportsDir, "exports-dir", "", "directory for saved exports (overrides config)")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: allow running commands that don't need config
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		return
	}
	cfg = c

	f := rootCmd.PersistentFlags()
	if f.Changed("log-level") && flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	if debug {
		cfg.LogLevel = "debug"
	}
	if f.Changed("seq-url") {
		cfg.SeqURL = flagSeqURL
	}
	if f.Changed("exports-dir") && flagExportsDir != "" {
		cfg.ExportsDir = flagExportsDir
	}
}

// requireConfig returns the loaded config, loading it when initialisation
// was skipped or failed.
func requireConfig() (*cfgpkg.Global, error) {
	if cfg != nil {
		return cfg, nil
	}
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	cfg = c
	return cfg, nil
}

// newLogger builds the process logger from the config.
func newLogger(c *cfgpkg.Global) (*slog.Logger, func()) {
	return logging.Setup(c.LogLevel, c.SeqURL)
}
