package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"applister/internal/app"
	"applister/internal/applister"
	"applister/internal/config"
	"applister/internal/encryption"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file, falling back to defaults when it does not exist.
func loadConfig() (*config.Config, string, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, "", fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.Load(defaults["config_path"], defaults["base_dir"])
	if err != nil {
		return nil, "", fmt.Errorf("reading config: %w", err)
	}
	return cfg, defaults["config_path"], nil
}

// newApp reads the config and creates an App. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "scan", "export").
func newApp(ctx context.Context, operation string) (*app.App, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a, err := app.NewApp(ctx, cfg, operation, app.Options{})
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

func stdoutIsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// readPassphrase prompts on stderr and reads a passphrase without echo.
func readPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(b), nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

// printThreatCheck prints matches. Feed failures are already logged to stderr.
func printThreatCheck(res *applister.ThreatCheckResult) {
	fmt.Print(applister.FormatThreats(res.Matches, stdoutIsTerminal()))
}

func runScan(cmd *cobra.Command, force bool) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, "scan")
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.Inventory(ctx, force)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if res.FromCache {
		fmt.Fprintf(os.Stderr, "Using cached inventory (scanned within the last %s, use --force to rescan)\n", a.ScanInterval())
	}

	fmt.Print(applister.FormatInventory(applister.GroupAndDedup(res.Entries)))

	threats, err := a.CheckThreats(ctx, false)
	if err != nil {
		return fmt.Errorf("threat check failed: %w", err)
	}
	printThreatCheck(threats)
	return nil
}

var rootCmd = &cobra.Command{
	Use:          "applister",
	Short:        "List installed applications and check them against a threat feed",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScan(cmd, false)
	},
}

// scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan installed applications (cached for the scan interval)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		return runScan(cmd, force)
	},
}

// list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the stored inventory without scanning",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "list")
		if err != nil {
			return err
		}
		defer a.Close()

		apps, err := a.CachedInventory()
		if err != nil {
			return err
		}

		fmt.Print(applister.FormatInventory(applister.GroupAndDedup(apps)))
		return nil
	},
}

// threats command
var threatsCmd = &cobra.Command{
	Use:   "threats",
	Short: "Check the stored inventory against the threat feed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		a, err := newApp(cmd.Context(), "threats")
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.CheckThreats(cmd.Context(), force)
		if err != nil {
			return err
		}

		switch {
		case res.Skipped:
			fmt.Println("Threat feed checked recently, use --force to check again.")
		case res.FeedErr != nil:
			fmt.Println("Threat feed unavailable.")
		case len(res.Matches) == 0:
			fmt.Printf("No threats found (%d feed record(s) checked).\n", res.FeedSize)
		default:
			printThreatCheck(res)
		}
		return nil
	},
}

// status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show when the last scan and threat check ran",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "status")
		if err != nil {
			return err
		}
		defer a.Close()

		meta, err := a.Status()
		if err != nil {
			return err
		}

		var lastScan, lastCheck time.Time
		if meta != nil {
			lastScan, lastCheck = meta.LastScanAt, meta.LastThreatCheckAt
		}

		fmt.Printf("Database:          %s\n", a.DatabasePath())
		fmt.Printf("Last scan:         %s\n", formatTime(lastScan))
		fmt.Printf("Last threat check: %s\n", formatTime(lastCheck))
		fmt.Printf("Scan interval:     %s\n", a.ScanInterval())
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View scan and threat-check history",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd.Context(), "history")
		if err != nil {
			return err
		}
		defer a.Close()

		runs, err := a.GetHistory(limit)
		if err != nil {
			return err
		}

		if len(runs) == 0 {
			fmt.Println("No scans recorded.")
			return nil
		}

		for _, r := range runs {
			duration := ""
			if r.FinishedAt != nil {
				duration = r.FinishedAt.Sub(r.StartedAt).Truncate(time.Second).String()
			}
			failed := ""
			if len(r.FailedSources) > 0 {
				names := make([]string, len(r.FailedSources))
				for i, s := range r.FailedSources {
					names[i] = s.String()
				}
				failed = "  failed:" + strings.Join(names, ",")
			}
			fmt.Printf("%s  %-12s  %s  %-8s  %5d  %s%s\n",
				shortID(r.ID),
				r.Operation,
				r.StartedAt.Local().Format("2006-01-02 15:04:05"),
				r.Status,
				r.EntryCount,
				duration,
				failed,
			)
		}
		return nil
	},
}

// export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a JSON report of the stored inventory to the configured sink",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		withThreats, _ := cmd.Flags().GetBool("threats")

		a, err := newApp(cmd.Context(), "export")
		if err != nil {
			return err
		}
		defer a.Close()

		key, err := a.Export(cmd.Context(), withThreats)
		if err != nil {
			return fmt.Errorf("export failed: %w", err)
		}

		fmt.Printf("Report written: %s\n", key)
		return nil
	},
}

// decrypt command
var decryptCmd = &cobra.Command{
	Use:   "decrypt FILE",
	Short: "Decrypt an exported report to stdout",
	Long:  "Decrypt an exported report with the host key, or with --identity when holding an extra recipient key.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}

		in, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening report: %w", err)
		}
		defer in.Close()

		identity, _ := cmd.Flags().GetString("identity")
		var dec *encryption.ReportReader
		if identity != "" {
			dec, err = encryption.LoadIdentityFile(identity)
		} else {
			var passphrase string
			passphrase, err = readPassphrase("Passphrase: ")
			if err != nil {
				return err
			}
			dec, err = encryption.NewKeyring(cfg.Encryption).Open(passphrase)
		}
		if err != nil {
			return err
		}

		var out bytes.Buffer
		if err := dec.Decrypt(in, &out); err != nil {
			return err
		}
		_, err = out.WriteTo(os.Stdout)
		return err
	},
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig()
		if err != nil {
			return err
		}

		exportType := cfg.Export.Type
		if exportType == "" {
			exportType = "disabled"
		}

		fmt.Printf("Configuration from %s:\n\n", path)
		fmt.Printf("Base Dir:       %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:        %s\n", cfg.LogDir)
		fmt.Printf("Log Level:      %s\n", cfg.LogLevel)
		fmt.Printf("Database:       %s (%s)\n", cfg.Database.Type, cfg.Database.DataDir)
		fmt.Printf("Scan Interval:  %dh\n", cfg.Scan.IntervalHours)
		fmt.Printf("Threat Check:   %dh\n", cfg.Scan.ThreatCheckIntervalHours)
		fmt.Printf("Collectors:     %s\n", strings.Join(cfg.Collectors.Enabled, ", "))
		fmt.Printf("Feed:           %s\n", cfg.Feed.Type)
		fmt.Printf("Export:         %s (encrypt: %t)\n", exportType, cfg.Export.Encrypt)
		return nil
	},
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage report encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a passphrase-protected key pair for report encryption",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}

		keyring := encryption.NewKeyring(cfg.Encryption)
		if keyring.Exists() {
			return fmt.Errorf("keys already exist at %s", cfg.Encryption.PublicKeyPath)
		}

		passphrase, err := readPassphrase("New passphrase: ")
		if err != nil {
			return err
		}
		confirm, err := readPassphrase("Confirm passphrase: ")
		if err != nil {
			return err
		}
		if passphrase != confirm {
			return fmt.Errorf("passphrases do not match")
		}

		if err := keyring.Create(passphrase); err != nil {
			return fmt.Errorf("creating keys: %w", err)
		}

		fmt.Printf("Public key:  %s\n", cfg.Encryption.PublicKeyPath)
		fmt.Printf("Private key: %s\n", cfg.Encryption.PrivateKeyPath)
		fmt.Println("Set export.encrypt = true in the config to encrypt reports.")
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// keys subcommands
	keysCmd.AddCommand(keysInitCmd)

	// root commands
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().BoolP("force", "f", false, "Rescan even if the cached inventory is fresh")
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(threatsCmd)
	threatsCmd.Flags().BoolP("force", "f", false, "Query the feed even if it was checked recently")
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 20, "Maximum number of runs to show")
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().Bool("threats", false, "Query the threat feed and include matches in the report")
	decryptCmd.Flags().StringP("identity", "i", "", "Decrypt with this age identity file instead of the host key")
	rootCmd.AddCommand(decryptCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(keysCmd)
}
