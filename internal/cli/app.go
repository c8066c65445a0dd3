package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/LeJamon/goxrpl-escrow/internal/api"
	"github.com/LeJamon/goxrpl-escrow/internal/config"
	"github.com/LeJamon/goxrpl-escrow/internal/core/escrow"
	"github.com/LeJamon/goxrpl-escrow/internal/core/mpt"
	"github.com/LeJamon/goxrpl-escrow/internal/gateway"
	"github.com/LeJamon/goxrpl-escrow/internal/storage/journal"
)

var (
	// Set by loadConfig
	loaded *config.Config
	logger *slog.Logger

	// newDialer builds the ledger connection factory. Tests replace it.
	newDialer = func(cfg *config.Config, logger *slog.Logger) gateway.Dialer {
		return &gateway.RetryDialer{
			Dialer: &gateway.WSDialer{
				URL:              cfg.Network.URL,
				HandshakeTimeout: cfg.Gateway.RequestTimeout,
				Logger:           logger,
			},
			Retries:   cfg.Gateway.ConnectRetries,
			BaseDelay: cfg.Gateway.RetryBaseDelay,
			Logger:    logger,
		}
	}
)

// errFailed is returned after a failed Result was already printed.
var errFailed = errors.New("operation failed")

// app wires the managers for one command invocation.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	dialer  gateway.Dialer
	opts    gateway.Options
	journal *journal.Journal
	service *api.Service
}

func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{
		cfg:    cfg,
		logger: logger,
		dialer: newDialer(cfg, logger),
		opts: gateway.Options{
			RequestTimeout: cfg.Gateway.RequestTimeout,
			SubmitTimeout:  cfg.Gateway.SubmitTimeout,
			PollInterval:   cfg.Gateway.PollInterval,
			LedgerOffset:   cfg.Gateway.LedgerOffset,
		},
	}
	if cfg.JournalEnabled() {
		j, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return nil, fmt.Errorf("opening journal: %w", err)
		}
		a.journal = j
		a.opts.Journal = j
	}

	issuances, err := mpt.New(mpt.Config{
		Dialer:           a.dialer,
		Gateway:          a.opts,
		Logger:           logger,
		MetadataMaxBytes: cfg.Metadata.MaxBytes,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.service = api.NewService(api.ServiceConfig{
		Escrows: escrow.New(escrow.Config{
			Dialer:            a.dialer,
			Gateway:           a.opts,
			VerifyFulfillment: cfg.Operator.VerifyFulfillment,
			Logger:            logger,
		}),
		Issuances: issuances,
		AdminSeed: cfg.Operator.AdminSeed,
		Logger:    logger,
	})
	return a, nil
}

// Close releases the journal.
func (a *app) Close() {
	if a.journal == nil {
		return
	}
	if err := a.journal.Close(); err != nil {
		a.logger.Warn("closing journal", "error", err)
	}
}

// withApp runs fn with a freshly wired app.
func withApp(fn func(a *app) error) error {
	a, err := newApp(loaded, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

// printJSON pretty prints v.
func printJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

// printResult prints the envelope and turns a failed Result into an error
// so the process exits non-zero.
func printResult(cmd *cobra.Command, res api.Result) error {
	if err := printJSON(cmd.OutOrStdout(), res); err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("%w: %s", errFailed, res.Error.Kind)
	}
	return nil
}
