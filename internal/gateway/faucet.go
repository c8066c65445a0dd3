package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Faucet funds accounts on test networks.
type Faucet struct {
	URL  string
	HTTP *http.Client
}

// FundResult is the faucet's answer.
type FundResult struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

// Fund asks the faucet to fund address. The account exists once a later
// validated ledger includes the payment.
func (f *Faucet) Fund(ctx context.Context, address string) (*FundResult, error) {
	if f.URL == "" {
		return nil, fmt.Errorf("faucet: no faucet configured for this network")
	}
	body, err := json.Marshal(map[string]string{"destination": address})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("faucet: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := f.HTTP
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("faucet: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("faucet: reading response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("faucet: status %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
	}

	var res struct {
		Account struct {
			Address        string `json:"address"`
			ClassicAddress string `json:"classicAddress"`
		} `json:"account"`
		Amount json.Number `json:"amount"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("faucet: decoding response: %w", err)
	}
	out := &FundResult{Address: res.Account.ClassicAddress, Amount: res.Amount.String()}
	if out.Address == "" {
		out.Address = res.Account.Address
	}
	if out.Address == "" {
		out.Address = address
	}
	return out, nil
}
