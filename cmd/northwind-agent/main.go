package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/northwind-rmm/agent/internal/config"
	"github.com/northwind-rmm/agent/internal/logging"
	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	cfgFile string
)

var log = logging.L("main")

var rootCmd = &cobra.Command{
	Use:   "northwind-agent",
	Short: "Northwind Screen-Capture Agent",
	Long:  `Northwind Agent - screen-capture and file-service endpoint for Windows, macOS, and Linux`,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the agent",
	Run: func(cmd *cobra.Command, args []string) {
		runAgent()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Northwind Agent v%s\n", version)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check agent status",
	Run: func(cmd *cobra.Command, args []string) {
		checkStatus()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is /etc/northwind/agent.yaml)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
}

func main() {
	if isWindowsService() {
		if err := runAsService(startAgent); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initLogging sets up structured logging from config. Call after config.Load().
func initLogging(cfg *config.Config) {
	var output io.Writer = os.Stdout
	logFileFallback := false

	if cfg.LogFile != "" {
		rw, err := logging.NewRotatingWriter(cfg.LogFile, cfg.LogMaxSizeMB, cfg.LogMaxBackups)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v (logging to stdout)\n", cfg.LogFile, err)
			logFileFallback = true
		} else {
			output = logging.TeeWriter(os.Stdout, rw)
		}
	}

	logging.Init(cfg.LogFormat, cfg.LogLevel, output)
	// Re-bind package-level logger after Init
	log = logging.L("main")

	// Re-log fallback via structured logger so it appears in journalctl/Event Viewer
	if logFileFallback {
		log.Warn("log file fallback active, logging to stdout only", "requestedFile", cfg.LogFile)
	}
}

// startAgent loads config, wires up logging/shipping, and starts the
// screen-capture session. Shared by console mode (runAgent) and Windows
// service mode, where the SCM itself owns the start/stop lifecycle.
func startAgent() (*screenSession, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	initLogging(cfg)

	if cfg.ServerURL != "" && cfg.AgentID != "" {
		logging.InitShipper(logging.ShipperConfig{
			ServerURL:    cfg.ServerURL,
			AgentID:      cfg.AgentID,
			AuthToken:    cfg.AuthToken,
			AgentVersion: version,
			HTTPClient:   nil, // will use default
			MinLevel:     cfg.LogShippingLevel,
		})
	}

	log.Info("starting agent", "version", version)

	screen, err := startScreenSession(cfg)
	if err != nil {
		log.Error("screen-capture session failed to start, continuing without it", "error", err)
	}
	if screen == nil {
		log.Warn("screen-capture session disabled (no screen_config_line configured)")
	}

	log.Info("agent is running")
	return screen, nil
}

// runAgent starts the screen-capture session and blocks until a shutdown
// signal arrives. The file-agent command handler and the screen-capture
// pipeline both run inside startScreenSession, multiplexed over the same
// relay connection per §4-§6.
func runAgent() {
	screen, err := startAgent()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logging.StopShipper()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("shutting down agent")
	screen.stop()
	log.Info("agent stopped")
}

func checkStatus() {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Println("Status: not configured")
		return
	}

	if cfg.ScreenConfigLine == "" {
		fmt.Println("Status: no screen-capture relay configured")
		return
	}

	fmt.Println("Status: screen-capture relay configured")
	fmt.Printf("Files root: %s\n", cfg.ScreenFilesRoot)
	fmt.Printf("Log level: %s\n", cfg.LogLevel)
}
