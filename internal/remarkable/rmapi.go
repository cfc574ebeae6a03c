// Package remarkable delivers documents to a reMarkable tablet through the
// rmapi command line tool.
package remarkable

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"rmbot/internal/config"
	"rmbot/internal/domain"
)

const (
	defaultUploadTimeout = 60 * time.Second
	defaultStatusTimeout = 10 * time.Second

	// waitDelay bounds how long Wait lingers on output pipes after a kill.
	waitDelay = 2 * time.Second
)

type Config struct {
	RmapiPath string
	Folder    string

	// Zero means the production defaults; tests shorten these.
	UploadTimeout time.Duration
	StatusTimeout time.Duration

	Logger *slog.Logger
}

// Client implements domain.Deliverer by running rmapi as a subprocess.
type Client struct {
	rmapiPath     string
	folder        string
	uploadTimeout time.Duration
	statusTimeout time.Duration
	logger        *slog.Logger
}

func New(cfg Config) *Client {
	if cfg.UploadTimeout <= 0 {
		cfg.UploadTimeout = defaultUploadTimeout
	}
	if cfg.StatusTimeout <= 0 {
		cfg.StatusTimeout = defaultStatusTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		rmapiPath:     cfg.RmapiPath,
		folder:        cfg.Folder,
		uploadTimeout: cfg.UploadTimeout,
		statusTimeout: cfg.StatusTimeout,
		logger:        cfg.Logger,
	}
}

func (c *Client) Folder() string { return c.folder }

// Deliver uploads the file at path into the configured folder. It never
// starts a process when the rmapi binary is missing.
func (c *Client) Deliver(ctx context.Context, path string) domain.DeliveryOutcome {
	if err := config.CheckExecutable(c.rmapiPath); err != nil {
		c.logger.Error("rmapi unavailable", "path", c.rmapiPath, "err", err)
		return domain.DeliveryOutcome{Diagnostic: err.Error()}
	}

	c.logger.Info("uploading to remarkable", "file", path, "folder", c.folder)
	stderr, err := c.run(ctx, c.uploadTimeout, "put", path, c.folder)
	switch {
	case err == nil:
		c.logger.Info("upload succeeded", "file", path)
		return domain.DeliveryOutcome{Succeeded: true}
	case errors.Is(err, context.DeadlineExceeded):
		c.logger.Error("upload timed out", "file", path, "timeout", c.uploadTimeout)
		return domain.DeliveryOutcome{Diagnostic: "upload timed out after " + seconds(c.uploadTimeout)}
	default:
		diag := stderr
		if diag == "" {
			diag = err.Error()
		}
		c.logger.Error("upload failed", "file", path, "err", err, "stderr", stderr)
		return domain.DeliveryOutcome{Diagnostic: diag}
	}
}

// Status probes connectivity with "rmapi ls". A clean exit is operational,
// a failing exit degraded, and anything that prevents an answer an error.
func (c *Client) Status(ctx context.Context) domain.SyncStatus {
	if err := config.CheckExecutable(c.rmapiPath); err != nil {
		return domain.SyncStatus{State: domain.SyncError, Diagnostic: err.Error()}
	}

	stderr, err := c.run(ctx, c.statusTimeout, "ls")
	if err == nil {
		return domain.SyncStatus{State: domain.SyncOperational}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		diag := stderr
		if diag == "" {
			diag = err.Error()
		}
		c.logger.Warn("rmapi ls failed", "err", err, "stderr", stderr)
		return domain.SyncStatus{State: domain.SyncDegraded, Diagnostic: diag}
	}

	c.logger.Error("rmapi status check failed", "err", err)
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.SyncStatus{State: domain.SyncError, Diagnostic: "status check timed out after " + seconds(c.statusTimeout)}
	}
	return domain.SyncStatus{State: domain.SyncError, Diagnostic: err.Error()}
}

// Ensure creates the target folder. rmapi reports an error when it already
// exists, so failures are returned for display only.
func (c *Client) Ensure(ctx context.Context) error {
	if err := config.CheckExecutable(c.rmapiPath); err != nil {
		return err
	}
	if c.folder == "" || c.folder == "/" {
		return nil
	}
	stderr, err := c.run(ctx, c.statusTimeout, "mkdir", c.folder)
	if err != nil {
		if stderr != "" {
			return fmt.Errorf("mkdir %s: %s", c.folder, stderr)
		}
		return fmt.Errorf("mkdir %s: %w", c.folder, err)
	}
	return nil
}

// run executes rmapi with args under timeout and returns trimmed stderr.
// A deadline hit is reported as context.DeadlineExceeded.
func (c *Client) run(ctx context.Context, timeout time.Duration, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.rmapiPath, args...)
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	err := cmd.Run()
	if err != nil && ctx.Err() != nil {
		return strings.TrimSpace(stderr.String()), ctx.Err()
	}
	return strings.TrimSpace(stderr.String()), err
}

func seconds(d time.Duration) string {
	if d%time.Second == 0 {
		return fmt.Sprintf("%ds", int(d/time.Second))
	}
	return d.String()
}
