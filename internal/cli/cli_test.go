package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeJamon/goxrpl-escrow/internal/api"
	"github.com/LeJamon/goxrpl-escrow/internal/config"
	"github.com/LeJamon/goxrpl-escrow/internal/core/escrow"
	"github.com/LeJamon/goxrpl-escrow/internal/gateway"
	jtx "github.com/LeJamon/goxrpl-escrow/internal/testing"
)

// resetFlags restores every flag to its default between runs.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

type harness struct {
	env    *jtx.TestEnv
	conf   string
	dotenv string
}

func newHarness(t *testing.T, extraConfig string) *harness {
	t.Helper()
	dir := t.TempDir()
	conf := filepath.Join(dir, "escrowd.toml")
	require.NoError(t, os.WriteFile(conf, []byte(`
[network]
name = "custom"
url = "ws://127.0.0.1:6006"

[gateway]
poll_interval = "1ms"
`+extraConfig), 0644))
	dotenv := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(dotenv, nil, 0644))

	env := jtx.NewTestEnv(t)
	prev := newDialer
	newDialer = func(*config.Config, *slog.Logger) gateway.Dialer { return env }
	t.Cleanup(func() { newDialer = prev })

	return &harness{env: env, conf: conf, dotenv: dotenv}
}

func (h *harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--conf", h.conf, "--env-file", h.dotenv, "--quiet"}, args...))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *api.ErrorBody  `json:"error"`
}

func parseEnvelope(t *testing.T, out string) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal([]byte(out), &env), out)
	return env
}

func TestParseBound(t *testing.T) {
	b, err := parseBound("")
	require.NoError(t, err)
	assert.Nil(t, b)

	b, err = parseBound("90s")
	require.NoError(t, err)
	require.NotNil(t, b.Seconds)
	assert.Equal(t, int64(90), *b.Seconds)

	b, err = parseBound("2h")
	require.NoError(t, err)
	assert.Equal(t, int64(7200), *b.Seconds)

	b, err = parseBound("3d")
	require.NoError(t, err)
	require.NotNil(t, b.Days)
	assert.Equal(t, int64(3), *b.Days)

	b, err = parseBound("2030-01-02T03:04:05Z")
	require.NoError(t, err)
	require.NotNil(t, b.At)
	assert.Equal(t, time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC), b.At.UTC())

	_, err = parseBound("soon")
	assert.Error(t, err)
}

func TestParseAmount(t *testing.T) {
	a, err := parseAmount("1000000")
	require.NoError(t, err)
	assert.True(t, a.IsNative())
	assert.Equal(t, "1000000", a.Drops)

	a, err = parseAmount(`{"mpt_issuance_id":"00000001B5F762798A53D543A014CAF8B297CFF8F2F937E8","value":"10"}`)
	require.NoError(t, err)
	assert.True(t, a.IsMPT())
	assert.Equal(t, "10", a.Value)

	_, err = parseAmount("1.5")
	assert.Error(t, err)
	_, err = parseAmount("{nope")
	assert.Error(t, err)
}

func TestParseSequence(t *testing.T) {
	seq, err := parseSequence("42")
	require.NoError(t, err)
	assert.Equal(t, uint32(42), seq)

	_, err = parseSequence("-1")
	assert.Error(t, err)
	_, err = parseSequence("4294967296")
	assert.Error(t, err)
}

func TestConditionCommands(t *testing.T) {
	h := newHarness(t, "")

	out, err := h.run(t, "condition", "generate")
	require.NoError(t, err)
	env := parseEnvelope(t, out)
	require.True(t, env.Success)
	var pair api.ConditionPair
	require.NoError(t, json.Unmarshal(env.Data, &pair))

	out, err = h.run(t, "condition", "verify", pair.Condition, pair.Fulfillment)
	require.NoError(t, err)
	assert.JSONEq(t, `{"valid":true}`, string(parseEnvelope(t, out).Data))

	_, err = h.run(t, "condition", "verify", pair.Condition, "zz")
	assert.ErrorIs(t, err, errFailed)
}

func TestMetadataCommands(t *testing.T) {
	h := newHarness(t, "")

	out, err := h.run(t, "metadata", "encode", `{"name":"Grain","harvest":"2025"}`)
	require.NoError(t, err)
	var enc struct {
		Hex string `json:"hex"`
	}
	require.NoError(t, json.Unmarshal(parseEnvelope(t, out).Data, &enc))
	require.NotEmpty(t, enc.Hex)

	out, err = h.run(t, "metadata", "decode", enc.Hex)
	require.NoError(t, err)
	var dec api.DecodedMetadata
	require.NoError(t, json.Unmarshal(parseEnvelope(t, out).Data, &dec))
	assert.Equal(t, map[string]any{"name": "Grain", "harvest": "2025"}, dec.Merged)
}

func TestEscrowCommands(t *testing.T) {
	h := newHarness(t, "")
	alice, bob := jtx.NewAccount("alice"), jtx.NewAccount("bob")
	h.env.Fund(alice, bob)

	out, err := h.run(t, "condition", "generate")
	require.NoError(t, err)
	var pair api.ConditionPair
	require.NoError(t, json.Unmarshal(parseEnvelope(t, out).Data, &pair))

	out, err = h.run(t, "escrow", "create",
		"--seed", alice.Seed,
		"--destination", bob.Address,
		"--amount", "3000000",
		"--condition", pair.Condition,
		"--destination-tag", "7")
	require.NoError(t, err, out)
	var created escrow.CreateResult
	require.NoError(t, json.Unmarshal(parseEnvelope(t, out).Data, &created))
	seq := strconv.FormatUint(uint64(created.Sequence), 10)

	out, err = h.run(t, "escrow", "info", alice.Address, seq)
	require.NoError(t, err)
	var state api.EscrowState
	require.NoError(t, json.Unmarshal(parseEnvelope(t, out).Data, &state))
	assert.Equal(t, escrow.StatusActive, state.Status)
	require.NotNil(t, state.Escrow.DestinationTag)
	assert.Equal(t, uint32(7), *state.Escrow.DestinationTag)

	out, err = h.run(t, "escrow", "status", alice.Address, seq)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"active"}`, string(parseEnvelope(t, out).Data))

	out, err = h.run(t, "escrow", "list", alice.Address)
	require.NoError(t, err)
	var views []escrow.View
	require.NoError(t, json.Unmarshal(parseEnvelope(t, out).Data, &views))
	assert.Len(t, views, 1)

	out, err = h.run(t, "escrow", "finish", alice.Address, seq, "--seed", bob.Seed)
	assert.ErrorIs(t, err, errFailed)
	assert.Equal(t, "precondition", parseEnvelope(t, out).Error.Kind)

	out, err = h.run(t, "escrow", "finish", alice.Address, seq, "--seed", bob.Seed, "--fulfillment", pair.Fulfillment)
	require.NoError(t, err, out)

	out, err = h.run(t, "escrow", "info", alice.Address, seq)
	assert.ErrorIs(t, err, errFailed)
	assert.Equal(t, api.KindNotFound, parseEnvelope(t, out).Error.Kind)

	out, err = h.run(t, "escrow", "outcome", alice.Address, seq)
	require.NoError(t, err)
	var res escrow.Resolution
	require.NoError(t, json.Unmarshal(parseEnvelope(t, out).Data, &res))
	assert.Equal(t, escrow.ResolutionFinished, res.State)
	assert.Equal(t, bob.Address, res.By)
}

func TestEscrowCreateUsesOperatorSeed(t *testing.T) {
	alice, bob := jtx.NewAccount("alice"), jtx.NewAccount("bob")
	h := newHarness(t, "\n[operator]\nadmin_seed = \""+alice.Seed+"\"\n")
	h.env.Fund(alice, bob)

	pair, err := h.run(t, "condition", "generate")
	require.NoError(t, err)
	var cond api.ConditionPair
	require.NoError(t, json.Unmarshal(parseEnvelope(t, pair).Data, &cond))

	out, err := h.run(t, "escrow", "create", "--destination", bob.Address, "--amount", "1000000", "--condition", cond.Condition)
	require.NoError(t, err, out)
	var created escrow.CreateResult
	require.NoError(t, json.Unmarshal(parseEnvelope(t, out).Data, &created))
	assert.Equal(t, alice.Address, created.Owner)
}

func TestMPTCommands(t *testing.T) {
	h := newHarness(t, "")
	issuer := jtx.NewAccount("issuer")
	h.env.Fund(issuer)

	out, err := h.run(t, "mpt", "create",
		"--seed", issuer.Seed,
		"--asset-scale", "2",
		"--can-transfer",
		"--transfer-fee", "250",
		"--metadata", `{"name":"Seed Bank","region":"Alentejo"}`)
	require.NoError(t, err, out)
	var created struct {
		IssuanceID string `json:"issuance_id"`
	}
	require.NoError(t, json.Unmarshal(parseEnvelope(t, out).Data, &created))
	require.NotEmpty(t, created.IssuanceID)

	out, err = h.run(t, "mpt", "info", issuer.Address, created.IssuanceID)
	require.NoError(t, err, out)
	var view struct {
		TransferFee uint16         `json:"transfer_fee"`
		AssetScale  uint8          `json:"asset_scale"`
		Additional  map[string]any `json:"additional"`
	}
	require.NoError(t, json.Unmarshal(parseEnvelope(t, out).Data, &view))
	assert.Equal(t, uint16(250), view.TransferFee)
	assert.Equal(t, uint8(2), view.AssetScale)
	assert.Equal(t, "Alentejo", view.Additional["region"])

	out, err = h.run(t, "mpt", "destroy", created.IssuanceID, "--seed", issuer.Seed)
	require.NoError(t, err, out)
}

func TestReconcileCommand(t *testing.T) {
	h := newHarness(t, "")
	_, err := h.run(t, "reconcile")
	assert.Error(t, err, "a journal is required")

	journalDir := filepath.Join(t.TempDir(), "journal")
	h = newHarness(t, "\n[journal]\npath = \""+filepath.ToSlash(journalDir)+"\"\n")
	out, err := h.run(t, "reconcile")
	require.NoError(t, err, out)
	var report struct {
		Checked int `json:"checked"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Zero(t, report.Checked)
}

func TestFundRequiresFaucet(t *testing.T) {
	h := newHarness(t, "")
	_, err := h.run(t, "fund", jtx.NewAccount("carol").Address)
	assert.ErrorContains(t, err, "no faucet")
}

func TestVersionCommand(t *testing.T) {
	h := newHarness(t, "")
	out, err := h.run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "escrowd version "+rootCmd.Version)
}
