package cli

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/0x6d61/sqlsiphon/internal/config"
)

// Version information (set by build flags)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	configFile string
	noColor    bool

	// settings and logger are set before any subcommand runs.
	settings *config.Config
	logger   = slog.New(slog.DiscardHandler)
)

var rootCmd = &cobra.Command{
	Use:   "sqlsiphon",
	Short: "Extract data through a confirmed SQL injection point",
	Long: `sqlsiphon - SQL injection data extraction tool

Retrieves the value of SQL expressions through an injection point that is
already known to be exploitable, using UNION, error-based, boolean-based
blind, time-based blind and stacked query techniques.

WARNING: Use this tool only against systems you have explicit permission to test.
Unauthorized access to computer systems is illegal.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadSettings,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "Config file (default ./sqlsiphon.yaml or $HOME/.sqlsiphon/sqlsiphon.yaml)")

	// Connection flags
	pf.String("proxy", "", "Proxy URL (http://host:port or socks5://host:port)")
	pf.Int("threads", 1, "Concurrent requests per blind retrieval")
	pf.Duration("timeout", 30*time.Second, "Request timeout")
	pf.Float64("rate", 0, "Maximum requests per second (0 = unlimited)")
	pf.String("user-agent", "", "User-Agent header value")
	pf.Bool("random-agent", false, "Use random User-Agent")

	// Output flags
	pf.IntP("verbose", "v", 0, "Verbosity level (0-3)")
	pf.BoolVar(&noColor, "no-color", false, "Disable coloured output")

	// Session
	pf.String("session", "", "SQLite file caching retrieved values between runs")
}

// loadSettings merges defaults, the config file, the environment and the
// command-line flags.
func loadSettings(cmd *cobra.Command, _ []string) error {
	v := viper.New()
	if err := config.BindFlags(v, cmd.Flags()); err != nil {
		return err
	}
	cfg, err := config.Load(v, configFile)
	if err != nil {
		return err
	}
	settings = cfg
	logger = newLogger(cmd.ErrOrStderr(), cfg.Verbose)
	if cfg.File != "" {
		logger.Info("config file loaded", "path", cfg.File)
	}
	return nil
}

// newLogger returns a text logger whose level follows the verbosity:
// 0 warn, 1 info, 2 and above debug.
func newLogger(w io.Writer, verbose int) *slog.Logger {
	level := slog.LevelWarn
	switch {
	case verbose >= 2:
		level = slog.LevelDebug
	case verbose == 1:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "sqlsiphon %s (commit: %s, built: %s)\n", version, commit, date)
	},
}
