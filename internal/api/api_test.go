package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeJamon/goxrpl-escrow/internal/api"
	"github.com/LeJamon/goxrpl-escrow/internal/codec/condition"
	"github.com/LeJamon/goxrpl-escrow/internal/core/escrow"
	"github.com/LeJamon/goxrpl-escrow/internal/core/failure"
	"github.com/LeJamon/goxrpl-escrow/internal/core/mpt"
	"github.com/LeJamon/goxrpl-escrow/internal/gateway"
	"github.com/LeJamon/goxrpl-escrow/internal/logging"
	jtx "github.com/LeJamon/goxrpl-escrow/internal/testing"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixture struct {
	env     *jtx.TestEnv
	service *api.Service
	router  *gin.Engine
	alice   *jtx.Account
	bob     *jtx.Account
}

func newFixture(t *testing.T, adminSeed string) *fixture {
	t.Helper()
	env := jtx.NewTestEnv(t)
	opts := gateway.Options{PollInterval: time.Millisecond}
	issuances, err := mpt.New(mpt.Config{Dialer: env, Gateway: opts, Logger: logging.Discard()})
	require.NoError(t, err)

	service := api.NewService(api.ServiceConfig{
		Escrows: escrow.New(escrow.Config{
			Dialer:  env,
			Gateway: opts,
			Clock:   env.Clock(),
			Logger:  logging.Discard(),
		}),
		Issuances: issuances,
		AdminSeed: adminSeed,
		Logger:    logging.Discard(),
	})
	f := &fixture{
		env:     env,
		service: service,
		router:  api.NewHandler(service, logging.Discard()).Router(),
		alice:   jtx.NewAccount("alice"),
		bob:     jtx.NewAccount("bob"),
	}
	env.Fund(f.alice, f.bob)
	return f
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *api.ErrorBody  `json:"error"`
}

func (f *fixture) do(t *testing.T, method, path string, body any) (int, envelope, http.Header) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var env envelope
	if w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w.Code, env, w.Header()
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestEscrowLifecycleOverHTTP(t *testing.T) {
	f := newFixture(t, "")

	code, res, hdr := f.do(t, http.MethodPost, "/v1/escrows", map[string]any{
		"seed":         f.alice.Seed,
		"destination":  f.bob.Address,
		"amount":       "2000000",
		"finish_after": map[string]any{"seconds": 120},
	})
	require.Equal(t, http.StatusCreated, code, "%+v", res.Error)
	assert.NotEmpty(t, hdr.Get(api.RequestIDHeader))
	created := decode[escrow.CreateResult](t, res.Data)
	assert.Equal(t, f.alice.Address, created.Owner)

	path := fmt.Sprintf("/v1/escrows/%s/%d", f.alice.Address, created.Sequence)
	code, res, _ = f.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, code)
	state := decode[api.EscrowState](t, res.Data)
	assert.Equal(t, escrow.StatusActive, state.Status)
	assert.Equal(t, f.bob.Address, state.Escrow.Destination)

	code, res, _ = f.do(t, http.MethodPost, path+"/finish", map[string]any{"seed": f.bob.Seed})
	assert.Equal(t, http.StatusBadRequest, code)
	require.NotNil(t, res.Error)
	assert.Equal(t, string(failure.KindPrecondition), res.Error.Kind)

	f.env.AdvanceTime(3 * time.Minute)
	code, res, _ = f.do(t, http.MethodPost, path+"/finish", map[string]any{"seed": f.bob.Seed})
	require.Equal(t, http.StatusOK, code, "%+v", res.Error)
	rcpt := decode[api.Receipt](t, res.Data)
	assert.Equal(t, "tesSUCCESS", rcpt.Result)

	code, res, _ = f.do(t, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, api.KindNotFound, res.Error.Kind)

	code, res, _ = f.do(t, http.MethodGet, path+"/outcome", nil)
	require.Equal(t, http.StatusOK, code)
	outcome := decode[escrow.Resolution](t, res.Data)
	assert.Equal(t, escrow.ResolutionFinished, outcome.State)
	assert.Equal(t, rcpt.TxHash, outcome.TxHash)
}

func TestConditionalEscrowOverHTTP(t *testing.T) {
	f := newFixture(t, "")

	code, res, _ := f.do(t, http.MethodPost, "/v1/conditions", nil)
	require.Equal(t, http.StatusCreated, code)
	pair := decode[api.ConditionPair](t, res.Data)

	code, res, _ = f.do(t, http.MethodPost, "/v1/conditions/verify", pair)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]bool{"valid": true}, decode[map[string]bool](t, res.Data))

	code, res, _ = f.do(t, http.MethodPost, "/v1/escrows", map[string]any{
		"seed":        f.alice.Seed,
		"destination": f.bob.Address,
		"amount":      "1000000",
		"condition":   pair.Condition,
	})
	require.Equal(t, http.StatusCreated, code, "%+v", res.Error)
	created := decode[escrow.CreateResult](t, res.Data)
	path := fmt.Sprintf("/v1/escrows/%s/%d", f.alice.Address, created.Sequence)

	other, err := condition.Generate()
	require.NoError(t, err)
	code, res, _ = f.do(t, http.MethodPost, path+"/finish", map[string]any{"seed": f.bob.Seed, "fulfillment": other.Fulfillment})
	assert.Equal(t, http.StatusInternalServerError, code)
	require.NotNil(t, res.Error)
	assert.Equal(t, string(failure.KindRejected), res.Error.Kind)
	assert.Equal(t, "tecCRYPTOCONDITION_ERROR", res.Error.Code)
	assert.NotEmpty(t, res.Error.TxHash)

	code, res, _ = f.do(t, http.MethodPost, path+"/finish", map[string]any{"seed": f.bob.Seed, "fulfillment": pair.Fulfillment})
	require.Equal(t, http.StatusOK, code, "%+v", res.Error)
}

func TestCancelUsesOperatorSeed(t *testing.T) {
	f := newFixture(t, jtx.NewAccount("alice").Seed)

	code, res, _ := f.do(t, http.MethodPost, "/v1/escrows", map[string]any{
		"destination":  f.bob.Address,
		"amount":       "1000000",
		"finish_after": map[string]any{"seconds": 60},
		"cancel_after": map[string]any{"days": 1},
	})
	require.Equal(t, http.StatusCreated, code, "%+v", res.Error)
	created := decode[escrow.CreateResult](t, res.Data)
	assert.Equal(t, f.alice.Address, created.Owner)

	path := fmt.Sprintf("/v1/escrows/%s/%d", f.alice.Address, created.Sequence)
	f.env.AdvanceTime(25 * time.Hour)

	code, res, _ = f.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, escrow.StatusExpired, decode[api.EscrowState](t, res.Data).Status)

	code, res, _ = f.do(t, http.MethodPost, path+"/cancel", nil)
	require.Equal(t, http.StatusOK, code, "%+v", res.Error)

	code, res, _ = f.do(t, http.MethodGet, path+"/outcome", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, escrow.ResolutionCancelled, decode[escrow.Resolution](t, res.Data).State)
}

func TestListEscrows(t *testing.T) {
	f := newFixture(t, "")
	for i := 0; i < 2; i++ {
		code, res, _ := f.do(t, http.MethodPost, "/v1/escrows", map[string]any{
			"seed":         f.alice.Seed,
			"destination":  f.bob.Address,
			"amount":       "1000000",
			"finish_after": map[string]any{"seconds": 60},
		})
		require.Equal(t, http.StatusCreated, code, "%+v", res.Error)
	}

	code, res, _ := f.do(t, http.MethodGet, "/v1/escrows/"+f.alice.Address, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]escrow.View](t, res.Data), 2)

	code, res, _ = f.do(t, http.MethodGet, "/v1/escrows/"+f.bob.Address, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, decode[[]escrow.View](t, res.Data))
}

func TestRequestValidation(t *testing.T) {
	f := newFixture(t, "")

	tests := []struct {
		name   string
		method string
		path   string
		body   any
	}{
		{"bad sequence", http.MethodGet, "/v1/escrows/" + f.alice.Address + "/abc", nil},
		{"two bounds", http.MethodPost, "/v1/escrows", map[string]any{
			"seed": f.alice.Seed, "destination": f.bob.Address, "amount": "1",
			"finish_after": map[string]any{"seconds": 60, "days": 1},
		}},
		{"numeric amount", http.MethodPost, "/v1/escrows", map[string]any{
			"seed": f.alice.Seed, "destination": f.bob.Address, "amount": 5,
		}},
		{"no seed and no operator", http.MethodPost, "/v1/escrows", map[string]any{
			"destination": f.bob.Address, "amount": "1", "finish_after": map[string]any{"seconds": 60},
		}},
		{"bad owner", http.MethodGet, "/v1/escrows/nope/1", nil},
		{"bad issuance id", http.MethodGet, "/v1/issuances/" + f.alice.Address + "/XYZ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, res, _ := f.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, code)
			require.NotNil(t, res.Error)
			assert.False(t, res.Success)
			assert.Equal(t, string(failure.KindValidation), res.Error.Kind)
		})
	}
	assert.Zero(t, f.env.Requests("submit"))
}

func TestIssuanceOverHTTP(t *testing.T) {
	f := newFixture(t, "")
	issuer := jtx.NewAccount("issuer")
	f.env.Fund(issuer)

	code, res, _ := f.do(t, http.MethodPost, "/v1/issuances", map[string]any{
		"seed":        issuer.Seed,
		"asset_scale": 2,
		"flags":       map[string]any{"can_transfer": true, "can_escrow": true},
		"metadata": map[string]any{
			"name":     "Orchard Notes",
			"ticker":   "ORCH",
			"location": "Porto",
			"socials":  map[string]any{"x": "@orchard"},
		},
	})
	require.Equal(t, http.StatusCreated, code, "%+v", res.Error)
	created := decode[mpt.CreateResult](t, res.Data)
	require.NotEmpty(t, created.IssuanceID)

	path := fmt.Sprintf("/v1/issuances/%s/%s", issuer.Address, created.IssuanceID)
	code, res, _ = f.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, code)
	view := decode[mpt.View](t, res.Data)
	assert.Equal(t, "Orchard Notes", view.Metadata["name"])
	assert.Equal(t, "Porto", view.Additional["location"])
	assert.True(t, view.Flags.CanEscrow)

	code, res, _ = f.do(t, http.MethodPost, path+"/destroy", map[string]any{"seed": issuer.Seed})
	require.Equal(t, http.StatusOK, code, "%+v", res.Error)

	code, res, _ = f.do(t, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, api.KindNotFound, res.Error.Kind)
}

func TestEncodeMetadata(t *testing.T) {
	f := newFixture(t, "")
	code, res, _ := f.do(t, http.MethodPost, "/v1/metadata/encode", map[string]any{"name": "Tiny"})
	require.Equal(t, http.StatusOK, code)
	out := decode[map[string]any](t, res.Data)
	assert.Equal(t, true, out["fits"])
	assert.NotEmpty(t, out["hex"])
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t, "")

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(api.RequestIDHeader, "req-123")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-123", w.Header().Get(api.RequestIDHeader))

	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "escrowd_http_requests_total")
}

func TestResultStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		res  api.Result
		want int
	}{
		{"ok", api.OK(nil), http.StatusOK},
		{"not found", api.NotFound("gone"), http.StatusNotFound},
		{"validation", api.Fail(failure.Validation("op", "bad")), http.StatusBadRequest},
		{"precondition", api.Fail(failure.Precondition("op", "early")), http.StatusBadRequest},
		{"rejected", api.Fail(failure.Rejected("op", "tecNO_PERMISSION", "AB", "no")), http.StatusInternalServerError},
		{"network", api.Fail(failure.Network("op", errors.New("down"))), http.StatusInternalServerError},
		{"ambiguous", api.Fail(failure.Ambiguous("op", "AB", context.DeadlineExceeded)), http.StatusInternalServerError},
		{"untyped", api.Fail(errors.New("boom")), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.res.HTTPStatus())
		})
	}

	net := api.Fail(failure.Network("op", errors.New("down")))
	assert.True(t, net.Error.Retryable)
	rej := api.Fail(failure.Rejected("op", "tecNO_PERMISSION", "AB", "no"))
	assert.Equal(t, "tecNO_PERMISSION", rej.Error.Code)
	assert.Equal(t, "AB", rej.Error.TxHash)
}
