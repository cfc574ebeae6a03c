package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"time"

	"rmbot/internal/config"
	"rmbot/internal/domain"

	"github.com/spf13/cobra"
)

func doctorCmd() *cobra.Command {
	var ensureFolder bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your rmbot installation",
		Long: `Verifies that rmbot's configuration, Telegram token, rmapi binary and
reMarkable connection are correctly set up. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("rmbot doctor v%s\n", version)
			fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			passed := 0
			failed := 0
			warned := 0

			// 1. Config file
			cfgPath := resolveConfigPath()
			if cfgPath == "" {
				printWarn("Config file", "none found, using defaults and environment")
				warned++
			} else if _, err := os.Stat(cfgPath); err != nil {
				printFail("Config file", fmt.Sprintf("not found at %s", cfgPath))
				failed++
				fmt.Printf("\nRun 'rmbot init' to create a default configuration.\n")
				return fmt.Errorf("config file not found")
			} else {
				printPass("Config file", cfgPath)
				passed++
			}

			// 2. Config loads and validates
			cfg, err := loadConfig()
			if err != nil {
				printFail("Config validation", err.Error())
				failed++
				fmt.Printf("\n%d passed, %d failed\n", passed, failed)
				return fmt.Errorf("%d check(s) failed", failed)
			}
			printPass("Config validation", "valid")
			passed++

			// 3. Telegram token
			if cfg.Telegram.Token == "" {
				printFail("Telegram token", config.EnvToken+" is not set")
				failed++
			} else {
				printPass("Telegram token", config.Sanitize(cfg).Telegram.Token)
				passed++
			}

			if len(cfg.Telegram.AllowFrom) == 0 {
				printWarn("Allow list", "empty, anyone who finds the bot can use it")
				warned++
			} else {
				printPass("Allow list", fmt.Sprintf("%d user(s)", len(cfg.Telegram.AllowFrom)))
				passed++
			}

			// 4. rmapi binary and connection
			deliverer := newDeliverer(cfg)
			if err := config.CheckExecutable(cfg.Remarkable.RmapiPath); err != nil {
				printFail("rmapi", err.Error())
				failed++
			} else {
				printPass("rmapi", cfg.Remarkable.RmapiPath)
				passed++

				s := deliverer.Status(cmd.Context())
				switch s.State {
				case domain.SyncOperational:
					printPass("reMarkable cloud", "connected")
					passed++
				case domain.SyncDegraded:
					printFail("reMarkable cloud", "rmapi ls failed: "+s.Diagnostic)
					failed++
				default:
					printFail("reMarkable cloud", s.Diagnostic)
					failed++
				}

				if ensureFolder {
					if err := deliverer.Ensure(cmd.Context()); err != nil {
						printWarn("Folder "+cfg.Remarkable.Folder, err.Error())
						warned++
					} else {
						printPass("Folder "+cfg.Remarkable.Folder, "ready")
						passed++
					}
				}
			}

			// 5. Scratch space for EPUB files
			if err := checkTempDir(); err != nil {
				printFail("Temp directory", err.Error())
				failed++
			} else {
				printPass("Temp directory", os.TempDir())
				passed++
			}

			// 6. Renderer
			if cfg.Fetch.Renderer == "chrome" {
				if path, err := findChrome(); err != nil {
					printFail("Chrome", err.Error())
					failed++
				} else {
					printPass("Chrome", path)
					passed++
				}
			}

			// 7. Metrics listener
			if cfg.Metrics.Listen != "" {
				if err := checkListen(cfg.Metrics.Listen); err != nil {
					printWarn("Metrics listen", fmt.Sprintf("%s may be in use: %v", cfg.Metrics.Listen, err))
					warned++
				} else {
					printPass("Metrics listen", cfg.Metrics.Listen+cfg.Metrics.Path)
					passed++
				}
			}

			// 8. Telegram reachability
			if err := checkReachable("api.telegram.org:443"); err != nil {
				printWarn("Telegram API", err.Error())
				warned++
			} else {
				printPass("Telegram API", "reachable")
				passed++
			}

			// Summary
			fmt.Printf("\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
			fmt.Printf("Results: %d passed, %d warnings, %d failed\n", passed, warned, failed)
			if failed > 0 {
				fmt.Printf("\nPlease fix the failed checks before running rmbot.\n")
				return fmt.Errorf("%d check(s) failed", failed)
			}
			if warned > 0 {
				fmt.Printf("\nrmbot should work but consider fixing the warnings.\n")
			} else {
				fmt.Printf("\nAll checks passed! rmbot is ready to run.\n")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&ensureFolder, "ensure-folder", false, "create the target folder on the tablet if missing")
	return cmd
}

func checkTempDir() error {
	dir, err := os.MkdirTemp("", "rmbot-doctor-*")
	if err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	return os.RemoveAll(dir)
}

func findChrome() (string, error) {
	for _, name := range []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "chrome"} {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	if _, err := os.Stat("/Applications/Google Chrome.app/Contents/MacOS/Google Chrome"); err == nil {
		return "/Applications/Google Chrome.app", nil
	}
	return "", fmt.Errorf("no Chrome or Chromium found in PATH")
}

func checkListen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	ln.Close()
	return nil
}

func checkReachable(addr string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("cannot reach %s: %w", addr, err)
	}
	conn.Close()
	return nil
}

func printPass(check, detail string) {
	fmt.Printf("  [PASS] %-20s %s\n", check, detail)
}

func printFail(check, detail string) {
	fmt.Printf("  [FAIL] %-20s %s\n", check, detail)
}

func printWarn(check, detail string) {
	fmt.Printf("  [WARN] %-20s %s\n", check, detail)
}
