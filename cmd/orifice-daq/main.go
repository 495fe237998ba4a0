package main

import (
	"bufio"
	"context"
	_ "embed"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	orificeflow "github.com/muhammedalf909/Smart-Orifice-Flow-System"
	"github.com/muhammedalf909/Smart-Orifice-Flow-System/internal/adapters/serialport"
	"github.com/muhammedalf909/Smart-Orifice-Flow-System/internal/adapters/sink"
)

//go:embed assets/banner_color.ansi
var bannerColor string

//go:embed assets/banner_plain.txt
var bannerPlain string

const defaultConfigPath = "./data/config.yaml"

var (
	runConfigPath string
	runDuration   time.Duration
	runSource     string
	runMode       string
	runPort       string
	runBaud       int
	runMaxPoints  int
	runLogLevel   string

	validateConfigPath string

	runsDBPath string

	statsURL      string
	statsInterval time.Duration
)

func main() {
	fmt.Print(selectBanner())
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "orifice-daq",
		Short:        "Acquisition daemon for the orifice flow bench",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newPortsCmd())
	rootCmd.AddCommand(newRunsCmd())
	rootCmd.AddCommand(newStatsCmd())

	return rootCmd
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start an acquisition run until interrupted",
		Args:  cobra.NoArgs,
		RunE:  runRunCmd,
	}
	cmd.Flags().StringVar(&runConfigPath, "config", defaultConfigPath, "path to the configuration file")
	cmd.Flags().DurationVar(&runDuration, "duration", 0, "stop the run after this long (0 runs until a signal)")
	cmd.Flags().StringVar(&runSource, "source", "", "override the configured source (auto, serial, sim)")
	cmd.Flags().StringVar(&runMode, "mode", "", "override the storage mode (final, stream)")
	cmd.Flags().StringVar(&runPort, "port", "", "serial device path (empty autodetects)")
	cmd.Flags().IntVar(&runBaud, "baud", 0, "serial baud rate")
	cmd.Flags().IntVar(&runMaxPoints, "max-points", 0, "live window capacity in samples")
	cmd.Flags().StringVar(&runLogLevel, "log-level", "", "log level (debug, info, warn, error)")
	return cmd
}

func runRunCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd, runConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cmd.Flags().Changed("source") {
		cfg.Source = runSource
	}
	if cmd.Flags().Changed("mode") {
		cfg.Storage.Mode = runMode
	}
	if cmd.Flags().Changed("port") {
		cfg.Serial.Port = runPort
	}
	if cmd.Flags().Changed("baud") {
		cfg.Serial.Baud = runBaud
	}
	if cmd.Flags().Changed("max-points") {
		cfg.Policy.WindowPoints = runMaxPoints
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Logging.Level = runLogLevel
	}

	rt, err := orificeflow.NewRuntime(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if runDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runDuration)
		defer cancel()
	}

	if err := rt.Run(ctx); err != nil {
		return err
	}
	fmt.Printf("run %s finished with %d samples (state %s)\n",
		rt.RunID(), rt.Samples(), rt.SourceState())
	return nil
}

// loadConfig falls back to built-in defaults when the default config
// path does not exist, so the daemon starts on a bare bench. An
// explicitly given path must exist.
func loadConfig(cmd *cobra.Command, path string) (*orificeflow.Config, error) {
	if !cmd.Flags().Changed("config") {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "no config at %s, using defaults\n", path)
			return orificeflow.DefaultConfig(), nil
		}
	}
	return orificeflow.LoadConfig(path)
}

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Load and validate a config file without starting a run",
		Args:  cobra.NoArgs,
		RunE:  runValidateCmd,
	}
	cmd.Flags().StringVar(&validateConfigPath, "config", defaultConfigPath, "path to the configuration file")
	return cmd
}

func runValidateCmd(_ *cobra.Command, _ []string) error {
	cfg, err := orificeflow.LoadConfig(validateConfigPath)
	if err != nil {
		return err
	}

	fmt.Printf("source:   %s\n", cfg.Source)
	if cfg.Serial.Port == "" {
		fmt.Printf("serial:   autodetect @ %d baud\n", cfg.Serial.Baud)
	} else {
		fmt.Printf("serial:   %s @ %d baud\n", cfg.Serial.Port, cfg.Serial.Baud)
	}
	fmt.Printf("storage:  %s mode, dir %s\n", cfg.Storage.Mode, cfg.Storage.Dir)
	fmt.Printf("postgres: %s\n", enabledWhen(cfg.Storage.Postgres.ConnString != ""))
	fmt.Printf("archive:  %s\n", enabledWhen(cfg.Storage.SQLitePath != ""))
	fmt.Printf("metrics:  %s\n", enabledWhen(cfg.Metrics.Addr != ""))
	fmt.Printf("config %s looks good ✅\n", validateConfigPath)
	return nil
}

func enabledWhen(on bool) string {
	if on {
		return "enabled"
	}
	return "disabled"
}

func newPortsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List serial devices that look like the instrument",
		Args:  cobra.NoArgs,
		RunE:  runPortsCmd,
	}
}

func runPortsCmd(cmd *cobra.Command, _ []string) error {
	cands := serialport.Candidates()
	if len(cands) == 0 {
		return fmt.Errorf("no serial devices found")
	}
	for _, c := range cands {
		fmt.Fprintln(cmd.OutOrStdout(), c)
	}
	if best, err := serialport.Detect(); err == nil {
		fmt.Fprintf(cmd.OutOrStdout(), "would open: %s\n", best)
	}
	return nil
}

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List past acquisition runs from the SQLite archive",
		Args:  cobra.NoArgs,
		RunE:  runRunsCmd,
	}
	cmd.Flags().StringVar(&runsDBPath, "db", "./data/orifice_runs.db", "path to the archive database")
	return cmd
}

func runRunsCmd(cmd *cobra.Command, _ []string) error {
	arch, err := sink.OpenArchive(runsDBPath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer arch.Close()

	runs, err := arch.ListRuns(context.Background())
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "archive is empty")
		return nil
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-36s  %-19s  %-19s  %-12s  %8s\n",
		"RUN", "STARTED", "ENDED", "SOURCE", "SAMPLES")
	for _, r := range runs {
		ended := "-"
		if !r.EndedAt.IsZero() {
			ended = r.EndedAt.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(out, "%-36s  %-19s  %-19s  %-12s  %8d\n",
			r.ID,
			r.StartedAt.Format("2006-01-02 15:04:05"),
			ended,
			r.Source,
			r.SampleCount)
	}
	return nil
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Poll the Prometheus endpoint and print live counters",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	cmd.Flags().StringVar(&statsURL, "url", "http://localhost:9100/metrics", "Prometheus metrics endpoint")
	cmd.Flags().DurationVar(&statsInterval, "interval", 2*time.Second, "refresh interval")
	return cmd
}

func runStatsCmd(_ *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	fmt.Printf("Streaming metrics from %s (Ctrl+C to stop)\n", statsURL)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := printMetricsSnapshot(statsURL); err != nil {
				fmt.Fprintf(os.Stderr, "stats error: %v\n", err)
			}
		}
	}
}

func printMetricsSnapshot(url string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	targets := map[string]float64{
		"orifice_samples_appended_total": 0,
		"orifice_queue_depth":            0,
		"orifice_window_size":            0,
		"orifice_source_state":           0,
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") {
			continue
		}
		for key := range targets {
			if strings.HasPrefix(line, key+" ") {
				var value float64
				if _, err := fmt.Sscanf(line, key+" %f", &value); err == nil {
					targets[key] = value
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	fmt.Printf("[%s] samples=%.0f queue=%.0f window=%.0f state=%s\n",
		time.Now().Format(time.RFC3339),
		targets["orifice_samples_appended_total"],
		targets["orifice_queue_depth"],
		targets["orifice_window_size"],
		orificeflow.SourceState(targets["orifice_source_state"]))
	return nil
}

func selectBanner() string {
	if os.Getenv("NO_COLOR") != "" {
		return bannerPlain
	}
	return bannerColor
}
