package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/LeJamon/goxrpl-escrow/internal/api"
	"github.com/LeJamon/goxrpl-escrow/internal/core/tx"
)

// parseAmount reads an amount flag: a drops integer, or a ledger JSON
// object for token amounts.
func parseAmount(s string) (tx.Amount, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "{") {
		var a tx.Amount
		if err := json.Unmarshal([]byte(s), &a); err != nil {
			return tx.Amount{}, fmt.Errorf("amount: %w", err)
		}
		return a, nil
	}
	if _, err := strconv.ParseUint(s, 10, 64); err != nil {
		return tx.Amount{}, fmt.Errorf("amount %q is neither drops nor a JSON token amount", s)
	}
	return tx.Amount{Drops: s}, nil
}

// parseBound reads a time bound flag: a Go duration ("90s", "2h"), whole
// days ("3d") or an RFC 3339 instant. Empty means no bound.
func parseBound(s string) (*api.TimeBound, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if days, ok := strings.CutSuffix(s, "d"); ok {
		if n, err := strconv.ParseInt(days, 10, 64); err == nil {
			return &api.TimeBound{Days: &n}, nil
		}
	}
	if d, err := time.ParseDuration(s); err == nil {
		secs := int64(d / time.Second)
		return &api.TimeBound{Seconds: &secs}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &api.TimeBound{At: &t}, nil
	}
	return nil, fmt.Errorf("time bound %q is not a duration, a day count or an RFC 3339 time", s)
}

// parseSequence reads an escrow sequence argument.
func parseSequence(s string) (uint32, error) {
	seq, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("sequence %q is not a 32-bit unsigned integer", s)
	}
	return uint32(seq), nil
}

// readJSONObject reads a JSON object from inline text, or from a file when
// the value starts with @.
func readJSONObject(value string) (map[string]any, error) {
	raw := []byte(value)
	if path, ok := strings.CutPrefix(value, "@"); ok {
		var err error
		if raw, err = os.ReadFile(path); err != nil {
			return nil, err
		}
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("expected a JSON object: %w", err)
	}
	return out, nil
}
