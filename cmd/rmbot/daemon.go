package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
)

func daemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Manage rmbot as a background service",
	}
	cmd.AddCommand(installDaemonCmd())
	cmd.AddCommand(uninstallDaemonCmd())
	return cmd
}

func installDaemonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Install rmbot as a user service (launchd/systemd)",
		Long: `Generates and installs a service file that runs "rmbot run" on login.
The token is read from the config file or from ~/.rmbot/env on Linux.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			execPath, err := os.Executable()
			if err != nil {
				return fmt.Errorf("cannot determine executable path: %w", err)
			}
			cfgPath := resolveConfigPath()
			if cfgPath != "" {
				if abs, err := filepath.Abs(cfgPath); err == nil {
					cfgPath = abs
				}
			}

			home, err := os.UserHomeDir()
			if err != nil {
				return err
			}
			switch runtime.GOOS {
			case "darwin":
				return installLaunchd(home, execPath, cfgPath)
			case "linux":
				return installSystemd(home, execPath, cfgPath)
			default:
				return fmt.Errorf("unsupported OS: %s (supported: darwin, linux)", runtime.GOOS)
			}
		},
	}
}

func uninstallDaemonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall",
		Short: "Remove the rmbot user service",
		RunE: func(cmd *cobra.Command, args []string) error {
			home, err := os.UserHomeDir()
			if err != nil {
				return err
			}
			switch runtime.GOOS {
			case "darwin":
				return removeServiceFile(launchdPath(home))
			case "linux":
				return removeServiceFile(systemdPath(home))
			default:
				return fmt.Errorf("unsupported OS: %s", runtime.GOOS)
			}
		},
	}
}

const (
	launchdLabel = "com.rmbot.bot"
	systemdUnit  = "rmbot.service"
)

func launchdPath(home string) string {
	return filepath.Join(home, "Library", "LaunchAgents", launchdLabel+".plist")
}

func systemdPath(home string) string {
	return filepath.Join(home, ".config", "systemd", "user", systemdUnit)
}

// runArgs is the command line the service starts with.
func runArgs(execPath, cfgPath string) []string {
	args := []string{execPath, "run"}
	if cfgPath != "" {
		args = append(args, "--config", cfgPath)
	}
	return args
}

func renderLaunchd(home, execPath, cfgPath string) string {
	var argXML strings.Builder
	for _, a := range runArgs(execPath, cfgPath) {
		fmt.Fprintf(&argXML, "        <string>%s</string>\n", a)
	}
	logDir := filepath.Join(home, ".rmbot", "logs")

	plist := strings.ReplaceAll(launchdTemplate, "{{LABEL}}", launchdLabel)
	plist = strings.ReplaceAll(plist, "{{ARGS}}", strings.TrimRight(argXML.String(), "\n"))
	plist = strings.ReplaceAll(plist, "{{LOG}}", filepath.Join(logDir, "rmbot.log"))
	plist = strings.ReplaceAll(plist, "{{ERR_LOG}}", filepath.Join(logDir, "rmbot-error.log"))
	return plist
}

func renderSystemd(execPath, cfgPath string) string {
	return strings.ReplaceAll(systemdTemplate, "{{EXEC}}", strings.Join(runArgs(execPath, cfgPath), " "))
}

func installLaunchd(home, execPath, cfgPath string) error {
	plistPath := launchdPath(home)
	if err := os.MkdirAll(filepath.Join(home, ".rmbot", "logs"), 0o755); err != nil {
		return err
	}
	if err := writeServiceFile(plistPath, renderLaunchd(home, execPath, cfgPath)); err != nil {
		return err
	}

	fmt.Printf("Daemon installed: %s\n", plistPath)
	fmt.Printf("To start: launchctl load %s\n", plistPath)
	fmt.Printf("To stop:  launchctl unload %s\n", plistPath)
	return nil
}

func installSystemd(home, execPath, cfgPath string) error {
	unitPath := systemdPath(home)
	if err := writeServiceFile(unitPath, renderSystemd(execPath, cfgPath)); err != nil {
		return err
	}

	fmt.Printf("Daemon installed: %s\n", unitPath)
	fmt.Printf("Put TELEGRAM_TOKEN=... in ~/.rmbot/env if it is not in the config file.\n")
	fmt.Printf("To start:  systemctl --user start rmbot\n")
	fmt.Printf("To enable: systemctl --user enable rmbot\n")
	fmt.Printf("To stop:   systemctl --user stop rmbot\n")
	return nil
}

func writeServiceFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

func removeServiceFile(path string) error {
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove service file: %w", err)
	}
	fmt.Printf("Daemon uninstalled: %s\n", path)
	return nil
}

const launchdTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{LABEL}}</string>
    <key>ProgramArguments</key>
    <array>
{{ARGS}}
    </array>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <true/>
    <key>StandardOutPath</key>
    <string>{{LOG}}</string>
    <key>StandardErrorPath</key>
    <string>{{ERR_LOG}}</string>
</dict>
</plist>`

const systemdTemplate = `[Unit]
Description=Telegram to reMarkable article bot
After=network-online.target
Wants=network-online.target

[Service]
Type=simple
EnvironmentFile=-%h/.rmbot/env
ExecStart={{EXEC}}
Restart=on-failure
RestartSec=5

[Install]
WantedBy=default.target`
