// Package reconcile settles journal entries whose outcome was never
// observed. Transactions are looked up by hash; nothing is resubmitted.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/LeJamon/goxrpl-escrow/internal/core/failure"
	"github.com/LeJamon/goxrpl-escrow/internal/core/tx"
	"github.com/LeJamon/goxrpl-escrow/internal/gateway"
	"github.com/LeJamon/goxrpl-escrow/internal/storage/journal"
)

const (
	defaultConcurrency       = 4
	defaultRequestsPerSecond = 10
)

// Config holds the collaborators of a Reconciler.
type Config struct {
	Dialer  gateway.Dialer
	Gateway gateway.Options
	Journal *journal.Journal
	Logger  *slog.Logger

	// Concurrency bounds the lookups in flight.
	Concurrency int

	// RequestsPerSecond limits lookups against the node.
	RequestsPerSecond float64
}

// Reconciler resolves pending and ambiguous submissions.
type Reconciler struct {
	cfg     Config
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New creates a Reconciler.
func New(cfg Config) (*Reconciler, error) {
	if cfg.Journal == nil {
		return nil, fmt.Errorf("reconcile: journal is required")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = defaultRequestsPerSecond
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	// Lookups write their own results; the session must not journal them.
	cfg.Gateway.Journal = nil
	return &Reconciler{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Concurrency),
		logger:  cfg.Logger.With("component", "reconcile"),
	}, nil
}

// Outcome is what reconciliation learned about one entry.
type Outcome struct {
	Hash     string        `json:"hash"`
	TxType   string        `json:"tx_type"`
	Previous journal.State `json:"previous"`
	State    journal.State `json:"state"`
	Result   string        `json:"result,omitempty"`
}

// Settled reports whether the entry reached a final state.
func (o Outcome) Settled() bool {
	return o.State.Final()
}

// Report summarizes one run.
type Report struct {
	Checked   int       `json:"checked"`
	Validated int       `json:"validated"`
	Failed    int       `json:"failed"`
	Pending   int       `json:"pending"`
	Outcomes  []Outcome `json:"outcomes"`
}

// Run looks up every unresolved journal entry. An entry stays unresolved
// while its transaction can still validate. A lookup error aborts the run;
// entries already settled stay settled.
func (r *Reconciler) Run(ctx context.Context) (*Report, error) {
	entries, err := r.cfg.Journal.Unresolved()
	if err != nil {
		return nil, failure.Wrap(failure.KindInternal, "reconcile", err)
	}

	var (
		mu     sync.Mutex
		report = &Report{}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)
	for _, e := range entries {
		g.Go(func() error {
			out, err := r.settle(gctx, e)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			report.add(out)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}
	r.logger.Info("reconciliation finished",
		"checked", report.Checked, "validated", report.Validated, "failed", report.Failed, "pending", report.Pending)
	return report, nil
}

func (rep *Report) add(o Outcome) {
	rep.Checked++
	switch o.State {
	case journal.StateValidated:
		rep.Validated++
	case journal.StateFailed:
		rep.Failed++
	default:
		rep.Pending++
	}
	rep.Outcomes = append(rep.Outcomes, o)
}

func (r *Reconciler) settle(ctx context.Context, e journal.Entry) (Outcome, error) {
	out := Outcome{Hash: e.Hash, TxType: e.TxType, Previous: e.State, State: e.State}
	if err := r.limiter.Wait(ctx); err != nil {
		return out, err
	}

	err := gateway.WithConn(ctx, r.cfg.Dialer, r.cfg.Gateway, r.logger, func(s *gateway.Session) error {
		info, err := s.Tx(ctx, e.Hash)
		switch {
		case gateway.IsRPCError(err, gateway.ErrNameTxnNotFound):
			return r.checkExpired(ctx, s, e, &out)
		case err != nil:
			return gateway.QueryFailure("reconcile.tx", err)
		case !info.Validated:
			return r.checkExpired(ctx, s, e, &out)
		}
		result := info.Result()
		out.Result = string(result)
		out.State = journal.StateFailed
		if result.IsSuccess() {
			out.State = journal.StateValidated
		}
		return nil
	})
	if err != nil {
		return out, err
	}

	if out.State != e.State || out.Result != e.Result {
		if _, err := r.cfg.Journal.Resolve(e.Hash, out.State, out.Result); err != nil {
			return out, failure.Wrap(failure.KindInternal, "reconcile", err)
		}
		r.logger.Info("submission settled", "hash", e.Hash, "tx_type", e.TxType, "state", out.State, "result", out.Result)
	}
	return out, nil
}

// checkExpired marks an unvalidated transaction failed once the validated
// ledger has passed its LastLedgerSequence, after which it can never apply.
func (r *Reconciler) checkExpired(ctx context.Context, s *gateway.Session, e journal.Entry, out *Outcome) error {
	if e.LastLedgerSequence == 0 {
		return nil
	}
	si, err := s.ServerInfo(ctx)
	if err != nil {
		return gateway.QueryFailure("reconcile.server_info", err)
	}
	if si.ValidatedLedger > e.LastLedgerSequence {
		out.State = journal.StateFailed
		out.Result = string(tx.TefMAX_LEDGER)
	}
	return nil
}
