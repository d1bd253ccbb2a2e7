// Package feed is the transport collaborator: a Solana JSON-RPC
// websocket client that subscribes to pool account changes and delivers
// decoded reserve updates to the engine. The core never blocks on it.
package feed

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"arbscope/internal/model"
)

// Handler receives decoded reserve updates.
type Handler func(model.ReserveUpdate)

type commandOp uint8

const (
	opSubscribe commandOp = iota
	opUnsubscribe
)

type command struct {
	op      commandOp
	address string
}

// Client maintains the websocket session, the subscription map, and the
// venue decoder registry. Subscribe and Unsubscribe satisfy the
// lifecycle manager's Subscriber interface and never block: they
// enqueue instructions serviced by the run loop.
type Client struct {
	url               string
	handler           Handler
	logger            *zap.Logger
	reconnectInterval time.Duration

	decoders map[string]AccountDecoder
	meta     map[string]model.PoolSeed
	commands chan command

	// Session state, owned by the run loop.
	conn      *websocket.Conn
	nextID    uint64
	pending   map[uint64]command
	subByAddr map[string]int64
	addrBySub map[int64]string
}

// NewClient builds a Client. rpcURL may be an http(s) endpoint; it is
// rewritten to the ws(s) scheme.
func NewClient(rpcURL string, handler Handler, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	wsURL := strings.Replace(rpcURL, "https://", "wss://", 1)
	wsURL = strings.Replace(wsURL, "http://", "ws://", 1)

	return &Client{
		url:               wsURL,
		handler:           handler,
		logger:            logger,
		reconnectInterval: 5 * time.Second,
		decoders:          make(map[string]AccountDecoder),
		meta:              make(map[string]model.PoolSeed),
		commands:          make(chan command, 256),
		pending:           make(map[uint64]command),
		subByAddr:         make(map[string]int64),
		addrBySub:         make(map[int64]string),
	}
}

// RegisterDecoder installs the account decoder for a venue tag.
func (c *Client) RegisterDecoder(d AccountDecoder) {
	c.decoders[d.Venue()] = d
}

// RegisterPool supplies the static metadata needed to decode and label
// notifications for a pool address. Must be called before the pool is
// subscribed.
func (c *Client) RegisterPool(seed model.PoolSeed) {
	c.meta[seed.Address] = seed
}

// Subscribe enqueues an account subscription instruction.
func (c *Client) Subscribe(poolAddress string) {
	c.enqueue(command{op: opSubscribe, address: poolAddress})
}

// Unsubscribe enqueues an account unsubscription instruction.
func (c *Client) Unsubscribe(poolAddress string) {
	c.enqueue(command{op: opUnsubscribe, address: poolAddress})
}

func (c *Client) enqueue(cmd command) {
	select {
	case c.commands <- cmd:
	default:
		c.logger.Warn("subscription command dropped: queue full",
			zap.String("pool", cmd.address),
		)
	}
}

// Run connects and services the session until ctx is done, reconnecting
// and resubscribing after transport failures.
func (c *Client) Run(ctx context.Context) error {
	for {
		if err := c.runSession(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("websocket session ended", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.reconnectInterval):
		}
	}
}

func (c *Client) runSession(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.url, err)
	}
	c.conn = conn
	defer func() {
		conn.Close()
		c.conn = nil
		c.pending = make(map[uint64]command)
		c.addrBySub = make(map[int64]string)
	}()

	c.logger.Info("websocket connected", zap.String("url", c.url))

	// Re-issue subscriptions that survived the previous session.
	resubscribe := c.subByAddr
	c.subByAddr = make(map[string]int64)
	for address := range resubscribe {
		if err := c.sendSubscribe(address); err != nil {
			return err
		}
	}

	messages := make(chan []byte, 64)
	readErr := make(chan error, 1)
	go func() {
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case messages <- payload:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			return fmt.Errorf("read: %w", err)
		case cmd := <-c.commands:
			if err := c.serviceCommand(cmd); err != nil {
				return err
			}
		case payload := <-messages:
			c.handleMessage(payload)
		}
	}
}

func (c *Client) serviceCommand(cmd command) error {
	switch cmd.op {
	case opSubscribe:
		if _, ok := c.subByAddr[cmd.address]; ok {
			return nil
		}
		return c.sendSubscribe(cmd.address)
	case opUnsubscribe:
		subID, ok := c.subByAddr[cmd.address]
		if !ok {
			return nil
		}
		delete(c.subByAddr, cmd.address)
		delete(c.addrBySub, subID)
		return c.sendRequest(cmd, "accountUnsubscribe", []any{subID})
	}
	return nil
}

func (c *Client) sendSubscribe(address string) error {
	params := []any{
		address,
		map[string]string{"encoding": "base64", "commitment": "confirmed"},
	}
	return c.sendRequest(command{op: opSubscribe, address: address}, "accountSubscribe", params)
}

func (c *Client) sendRequest(cmd command, method string, params []any) error {
	c.nextID++
	id := c.nextID
	c.pending[id] = cmd

	msg := map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  method,
		"params":  params,
	}
	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("write %s: %w", method, err)
	}
	return nil
}

type rpcMessage struct {
	ID     uint64          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Params *rpcParams      `json:"params,omitempty"`
	Error  *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcParams struct {
	Subscription int64         `json:"subscription"`
	Result       accountUpdate `json:"result"`
}

type accountUpdate struct {
	Context struct {
		Slot uint64 `json:"slot"`
	} `json:"context"`
	Value struct {
		Data []string `json:"data"`
	} `json:"value"`
}

func (c *Client) handleMessage(payload []byte) {
	var msg rpcMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		c.logger.Warn("undecodable websocket message", zap.Error(err))
		return
	}

	if msg.ID != 0 {
		c.handleResponse(msg)
		return
	}
	if msg.Method == "accountNotification" && msg.Params != nil {
		c.handleNotification(*msg.Params)
	}
}

func (c *Client) handleResponse(msg rpcMessage) {
	cmd, ok := c.pending[msg.ID]
	if !ok {
		return
	}
	delete(c.pending, msg.ID)

	if msg.Error != nil {
		c.logger.Warn("rpc request failed",
			zap.String("pool", cmd.address),
			zap.Int("code", msg.Error.Code),
			zap.String("message", msg.Error.Message),
		)
		return
	}

	if cmd.op == opSubscribe {
		var subID int64
		if err := json.Unmarshal(msg.Result, &subID); err != nil {
			c.logger.Warn("bad subscription id", zap.String("pool", cmd.address), zap.Error(err))
			return
		}
		c.subByAddr[cmd.address] = subID
		c.addrBySub[subID] = cmd.address
		c.logger.Info("subscribed", zap.String("pool", cmd.address), zap.Int64("subscription", subID))
	}
}

func (c *Client) handleNotification(params rpcParams) {
	address, ok := c.addrBySub[params.Subscription]
	if !ok {
		return
	}
	seed, ok := c.meta[address]
	if !ok {
		c.logger.Warn("notification for unregistered pool", zap.String("pool", address))
		return
	}
	decoder, ok := c.decoders[seed.Venue]
	if !ok {
		c.logger.Warn("no decoder for venue", zap.String("venue", seed.Venue))
		return
	}
	if seed.DecimalsA == nil || seed.DecimalsB == nil {
		c.logger.Warn("pool metadata missing decimals", zap.String("pool", address))
		return
	}
	if len(seed.Address) == 0 || len(params.Result.Value.Data) == 0 {
		return
	}

	raw, err := base64.StdEncoding.DecodeString(params.Result.Value.Data[0])
	if err != nil {
		c.logger.Warn("bad account payload", zap.String("pool", address), zap.Error(err))
		return
	}

	reserveA, reserveB, err := decoder.DecodeReserves(raw)
	if err != nil {
		c.logger.Warn("account decode failed",
			zap.String("pool", address),
			zap.String("venue", seed.Venue),
			zap.Error(err),
		)
		return
	}

	c.handler(model.ReserveUpdate{
		PoolAddress: address,
		Venue:       seed.Venue,
		TokenA:      seed.TokenA,
		TokenB:      seed.TokenB,
		ReserveA:    reserveA,
		ReserveB:    reserveB,
		FeeRate:     seed.FeeRate,
		DecimalsA:   *seed.DecimalsA,
		DecimalsB:   *seed.DecimalsB,
		Timestamp:   params.Result.Context.Slot,
	})
}
