// Package testing provides an in-memory ledger for exercising the escrow and
// issuance managers without a network.
//
// TestEnv implements gateway.Dialer and answers the WebSocket commands the
// orchestrator uses (account_info, account_objects, account_tx, ledger,
// ledger_entry, server_info, submit, tx) against simulated state. Submitted
// blobs are decoded with the binary codec and applied with the ledger's
// escrow and MPT issuance rules, so tests see the same engine results a
// real node would return.
//
// # Basic Usage
//
//	env := testing.NewTestEnv(t)
//	alice := testing.NewAccount("alice")
//	bob := testing.NewAccount("bob")
//	env.Fund(alice, bob)
//
//	mgr := escrow.NewManager(env, gateway.Options{}, env.Clock(), logger)
//	res, err := mgr.Create(ctx, escrow.CreateRequest{Seed: alice.Seed, ...})
//
// # Ledger Closing
//
// By default every accepted submission closes a ledger immediately, so
// submit-and-wait returns on its first poll. SetAutoClose(false) holds
// submissions until Close, which lets tests observe pending and ambiguous
// states.
//
// # Clock Control
//
// Ledger close times come from a ManualClock shared with the code under
// test:
//
//	env.AdvanceTime(10 * time.Second)
//	env.Now()
//
// # Fault Injection
//
//	env.DropNextSubmit()            // apply, then lose the response
//	env.FailNext("tx", err)         // next tx request fails
//	env.FailDial(err)               // connections are refused
package testing
