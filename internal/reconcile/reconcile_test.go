package reconcile_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeJamon/goxrpl-escrow/internal/codec/ledgertime"
	"github.com/LeJamon/goxrpl-escrow/internal/core/failure"
	"github.com/LeJamon/goxrpl-escrow/internal/core/tx"
	"github.com/LeJamon/goxrpl-escrow/internal/gateway"
	"github.com/LeJamon/goxrpl-escrow/internal/logging"
	"github.com/LeJamon/goxrpl-escrow/internal/reconcile"
	"github.com/LeJamon/goxrpl-escrow/internal/storage/journal"
	jtx "github.com/LeJamon/goxrpl-escrow/internal/testing"
	"github.com/LeJamon/goxrpl-escrow/internal/wallet"
)

type fixture struct {
	env     *jtx.TestEnv
	journal *journal.Journal
	opts    gateway.Options
	alice   *jtx.Account
	bob     *jtx.Account
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	j, err := journal.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })

	env := jtx.NewTestEnv(t)
	f := &fixture{
		env:     env,
		journal: j,
		opts:    gateway.Options{PollInterval: time.Millisecond, Journal: j},
		alice:   jtx.NewAccount("alice"),
		bob:     jtx.NewAccount("bob"),
	}
	env.Fund(f.alice, f.bob)
	return f
}

func (f *fixture) reconciler(t *testing.T) *reconcile.Reconciler {
	t.Helper()
	r, err := reconcile.New(reconcile.Config{
		Dialer:            f.env,
		Gateway:           f.opts,
		Journal:           f.journal,
		Logger:            logging.Discard(),
		RequestsPerSecond: 1000,
	})
	require.NoError(t, err)
	return r
}

// submitCreate submits an escrow create and returns the submission error.
func (f *fixture) submitCreate(t *testing.T, ctx context.Context) error {
	t.Helper()
	w, err := wallet.FromSeed(f.alice.Seed)
	require.NoError(t, err)
	defer w.Close()

	create := tx.NewEscrowCreate(f.alice.Address, f.bob.Address, jtx.XRPAmount(1))
	fa := uint32(ledgertime.ToLedgerTime(f.env.Now().Add(time.Hour).Unix()))
	create.FinishAfter = &fa

	return gateway.WithConn(ctx, f.env, f.opts, logging.Discard(), func(s *gateway.Session) error {
		_, err := s.SubmitAndWait(ctx, "escrow.create", create, w)
		return err
	})
}

func TestRunSettlesDroppedSubmission(t *testing.T) {
	f := newFixture(t)
	f.env.DropNextSubmit()
	err := f.submitCreate(t, context.Background())
	require.ErrorIs(t, err, failure.ErrAmbiguous)

	report, err := f.reconciler(t).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Checked)
	assert.Equal(t, 1, report.Validated)
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, journal.StateAmbiguous, report.Outcomes[0].Previous)
	assert.True(t, report.Outcomes[0].Settled())

	unresolved, err := f.journal.Unresolved()
	require.NoError(t, err)
	assert.Empty(t, unresolved)
	assert.Equal(t, 1, f.env.Requests("submit"), "reconciliation never resubmits")
}

func TestRunLeavesOpenSubmissionPending(t *testing.T) {
	f := newFixture(t)
	f.env.SetAutoClose(false)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, f.submitCreate(t, ctx), failure.ErrAmbiguous)

	r := f.reconciler(t)
	report, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Pending)

	f.env.Close()
	report, err = r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Validated)
	assert.Equal(t, string(tx.TesSUCCESS), report.Outcomes[0].Result)
}

func TestRunFailsExpiredSubmission(t *testing.T) {
	f := newFixture(t)
	hash := strings.Repeat("AB", 32)
	require.NoError(t, f.journal.Record(journal.Entry{
		Hash:               hash,
		TxType:             string(tx.TypeEscrowFinish),
		Account:            f.bob.Address,
		LastLedgerSequence: 1,
		State:              journal.StateAmbiguous,
	}))

	report, err := f.reconciler(t).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)

	entry, found, err := f.journal.Get(hash)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, journal.StateFailed, entry.State)
	assert.Equal(t, string(tx.TefMAX_LEDGER), entry.Result)
}

func TestRunLookupFailure(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.journal.Record(journal.Entry{Hash: strings.Repeat("CD", 32), TxType: "EscrowCancel"}))
	f.env.FailNext("tx", assert.AnError)

	_, err := f.reconciler(t).Run(context.Background())
	require.Error(t, err)
	assert.True(t, failure.Retryable(err))

	unresolved, err := f.journal.Unresolved()
	require.NoError(t, err)
	assert.Len(t, unresolved, 1)
}

func TestNewRequiresJournal(t *testing.T) {
	_, err := reconcile.New(reconcile.Config{})
	assert.Error(t, err)
}
