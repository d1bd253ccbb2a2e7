package feed

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"testing"

	"arbscope/internal/model"
)

func registeredClient(t *testing.T, handler Handler) *Client {
	t.Helper()

	c := NewClient("https://api.mainnet-beta.solana.com", handler, nil)
	c.RegisterDecoder(NewRaydiumDecoder())

	dec := uint8(6)
	c.RegisterPool(model.PoolSeed{
		Address:   "pool1",
		Venue:     model.VenueRaydium,
		TokenA:    "tokenA",
		TokenB:    "tokenB",
		DecimalsA: &dec,
		DecimalsB: &dec,
		FeeRate:   0.0025,
	})
	return c
}

func TestNewClientRewritesScheme(t *testing.T) {
	c := NewClient("https://api.mainnet-beta.solana.com", nil, nil)
	if c.url != "wss://api.mainnet-beta.solana.com" {
		t.Fatalf("https not rewritten: %s", c.url)
	}
	c = NewClient("http://localhost:8899", nil, nil)
	if c.url != "ws://localhost:8899" {
		t.Fatalf("http not rewritten: %s", c.url)
	}
}

func TestSubscriptionResponseMapsIDs(t *testing.T) {
	c := registeredClient(t, nil)
	c.pending[1] = command{op: opSubscribe, address: "pool1"}

	c.handleMessage([]byte(`{"jsonrpc":"2.0","id":1,"result":42}`))

	if c.subByAddr["pool1"] != 42 {
		t.Fatalf("subscription id not recorded: %v", c.subByAddr)
	}
	if c.addrBySub[42] != "pool1" {
		t.Fatalf("reverse mapping not recorded: %v", c.addrBySub)
	}
	if len(c.pending) != 0 {
		t.Fatalf("request still pending: %v", c.pending)
	}
}

func TestErrorResponseLeavesNoMapping(t *testing.T) {
	c := registeredClient(t, nil)
	c.pending[1] = command{op: opSubscribe, address: "pool1"}

	c.handleMessage([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32602,"message":"invalid pubkey"}}`))

	if len(c.subByAddr) != 0 || len(c.addrBySub) != 0 {
		t.Fatalf("failed subscription left mappings: %v %v", c.subByAddr, c.addrBySub)
	}
}

func TestNotificationDeliversDecodedUpdate(t *testing.T) {
	var got []model.ReserveUpdate
	c := registeredClient(t, func(u model.ReserveUpdate) { got = append(got, u) })

	c.subByAddr["pool1"] = 42
	c.addrBySub[42] = "pool1"

	account := make([]byte, 256)
	binary.LittleEndian.PutUint64(account[raydiumReserveAOffset:], 1_000_000)
	binary.LittleEndian.PutUint64(account[raydiumReserveBOffset:], 2_000_000)

	notification := map[string]any{
		"jsonrpc": "2.0",
		"method":  "accountNotification",
		"params": map[string]any{
			"subscription": 42,
			"result": map[string]any{
				"context": map[string]any{"slot": 311_000_123},
				"value": map[string]any{
					"data": []string{base64.StdEncoding.EncodeToString(account), "base64"},
				},
			},
		},
	}
	payload, err := json.Marshal(notification)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	c.handleMessage(payload)

	if len(got) != 1 {
		t.Fatalf("expected 1 update, got %d", len(got))
	}
	u := got[0]
	if u.PoolAddress != "pool1" || u.Venue != model.VenueRaydium {
		t.Fatalf("wrong identity: %+v", u)
	}
	if u.ReserveA.Uint64() != 1_000_000 || u.ReserveB.Uint64() != 2_000_000 {
		t.Fatalf("wrong reserves: %v / %v", u.ReserveA, u.ReserveB)
	}
	if u.Timestamp != 311_000_123 {
		t.Fatalf("slot not propagated: %d", u.Timestamp)
	}
	if u.DecimalsA != 6 || u.DecimalsB != 6 || u.FeeRate != 0.0025 {
		t.Fatalf("seed metadata not propagated: %+v", u)
	}
}

func TestNotificationUnknownSubscriptionIgnored(t *testing.T) {
	called := false
	c := registeredClient(t, func(model.ReserveUpdate) { called = true })

	c.handleNotification(rpcParams{Subscription: 99})
	if called {
		t.Fatalf("handler invoked for unknown subscription")
	}
}

func TestEnqueueNeverBlocks(t *testing.T) {
	c := NewClient("http://localhost:8899", nil, nil)

	// Flood well past the queue capacity; overflow is dropped, not
	// blocked on.
	for i := 0; i < 1000; i++ {
		c.Subscribe("pool1")
	}
	if len(c.commands) != cap(c.commands) {
		t.Fatalf("queue not full after flood: %d/%d", len(c.commands), cap(c.commands))
	}
}
