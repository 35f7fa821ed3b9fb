// Package bridge is the client side of the gateway protocol: a WebSocket
// connection with request/response correlation, plus a live query cache
// that applies server pushes and supports optimistic local patches.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jhomra21/opencanvas/internal/gateway"
	"github.com/jhomra21/opencanvas/internal/logging"
)

// ErrClosed is returned by calls on a closed client.
var ErrClosed = errors.New("bridge: connection closed")

// RPCError is a structured error response from the gateway.
type RPCError struct {
	Code    string
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Options configure a bridge connection.
type Options struct {
	URL         string // ws:// or wss:// endpoint
	UserID      string
	DisplayName string
	Token       string
	Password    string
	Log         *logging.Logger

	// OnCanvasDeleted is invoked when the server announces a canvas
	// deletion, so an open workspace can leave it.
	OnCanvasDeleted func(canvasID string)
}

// Client is an authenticated connection to the gateway.
type Client struct {
	conn *websocket.Conn
	log  *logging.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan gateway.Frame
	closed  bool
	done    chan struct{}

	reqSeq atomic.Int64
	cache  *QueryCache
	hello  gateway.HelloOK

	onCanvasDeleted func(string)
}

// Dial connects to the gateway and completes the authentication
// handshake: the server sends a challenge event, the client answers with
// a connect request, and the server replies hello-ok.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	if opts.UserID == "" {
		return nil, errors.New("bridge: userID is required")
	}
	log := opts.Log
	if log == nil {
		log = logging.New(nil, "silent")
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, opts.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing gateway: %w", err)
	}

	c := &Client{
		conn:            conn,
		log:             log.Sub("bridge"),
		pending:         make(map[string]chan gateway.Frame),
		done:            make(chan struct{}),
		cache:           NewQueryCache(log),
		onCanvasDeleted: opts.OnCanvasDeleted,
	}

	if err := c.handshake(ctx, opts); err != nil {
		conn.Close()
		return nil, err
	}

	go c.readLoop()
	return c, nil
}

func (c *Client) handshake(ctx context.Context, opts Options) error {
	deadline := time.Now().Add(10 * time.Second)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	c.conn.SetReadDeadline(deadline)
	defer c.conn.SetReadDeadline(time.Time{})

	var challenge gateway.Frame
	if err := c.conn.ReadJSON(&challenge); err != nil {
		return fmt.Errorf("reading challenge: %w", err)
	}
	if challenge.Event != "connect.challenge" {
		return fmt.Errorf("expected connect.challenge, got %q", challenge.Event)
	}

	var auth *gateway.ConnectAuth
	if opts.Token != "" || opts.Password != "" {
		auth = &gateway.ConnectAuth{Token: opts.Token, Password: opts.Password}
	}

	req, err := gateway.NewRequest("connect-1", "connect", gateway.ConnectParams{
		MinProtocol: gateway.ProtocolVersion,
		MaxProtocol: gateway.ProtocolVersion,
		Client: gateway.ClientInfo{
			UserID:      opts.UserID,
			DisplayName: opts.DisplayName,
			Version:     "1",
			Platform:    "go",
		},
		Auth: auth,
	})
	if err != nil {
		return err
	}
	if err := c.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("sending connect: %w", err)
	}

	var resp gateway.Frame
	if err := c.conn.ReadJSON(&resp); err != nil {
		return fmt.Errorf("reading hello: %w", err)
	}
	if resp.OK == nil || !*resp.OK {
		if resp.Error != nil {
			return &RPCError{Code: resp.Error.Code, Message: resp.Error.Message}
		}
		return errors.New("bridge: handshake rejected")
	}
	if err := json.Unmarshal(resp.Payload, &c.hello); err != nil {
		return fmt.Errorf("parsing hello: %w", err)
	}

	c.log.Info().
		Str("connId", c.hello.Server.ConnID).
		Str("serverVersion", c.hello.Server.Version).
		Msg("connected to gateway")
	return nil
}

// Hello returns the server's handshake payload.
func (c *Client) Hello() gateway.HelloOK {
	return c.hello
}

// Cache returns the live query cache.
func (c *Client) Cache() *QueryCache {
	return c.cache
}

func (c *Client) readLoop() {
	defer c.Close()
	for {
		var frame gateway.Frame
		if err := c.conn.ReadJSON(&frame); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.mu.Lock()
				closed := c.closed
				c.mu.Unlock()
				if !closed {
					c.log.Warn().Err(err).Msg("read error")
				}
			}
			return
		}

		switch frame.Type {
		case gateway.FrameTypeResponse:
			c.mu.Lock()
			ch, ok := c.pending[frame.ID]
			delete(c.pending, frame.ID)
			c.mu.Unlock()
			if ok {
				ch <- frame
			}
		case gateway.FrameTypeEvent:
			c.handleEvent(frame)
		}
	}
}

func (c *Client) handleEvent(frame gateway.Frame) {
	switch frame.Event {
	case "query.update":
		var update gateway.QueryUpdate
		if err := json.Unmarshal(frame.Payload, &update); err != nil {
			c.log.Warn().Err(err).Msg("malformed query.update")
			return
		}
		sub := gateway.Subscription{Query: update.Query, Args: update.Args}
		c.cache.Update(sub.Key(), update.Payload)
	case "canvas.deleted":
		var payload struct {
			CanvasID string `json:"canvasId"`
		}
		if err := json.Unmarshal(frame.Payload, &payload); err != nil {
			return
		}
		if c.onCanvasDeleted != nil {
			c.onCanvasDeleted(payload.CanvasID)
		}
	default:
		c.log.Debug().Str("event", frame.Event).Msg("unhandled event")
	}
}

// Call performs an RPC round-trip, unmarshalling the response payload
// into out (which may be nil).
func (c *Client) Call(ctx context.Context, method string, params, out any) error {
	id := fmt.Sprintf("r%d", c.reqSeq.Add(1))

	req, err := gateway.NewRequest(id, method, params)
	if err != nil {
		return err
	}

	ch := make(chan gateway.Frame, 1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.pending[id] = ch
	c.mu.Unlock()

	c.writeMu.Lock()
	err = c.conn.WriteJSON(req)
	c.writeMu.Unlock()
	if err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return fmt.Errorf("sending %s: %w", method, err)
	}

	select {
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return ctx.Err()
	case <-c.done:
		return ErrClosed
	case resp := <-ch:
		if resp.OK == nil || !*resp.OK {
			if resp.Error != nil {
				return &RPCError{Code: resp.Error.Code, Message: resp.Error.Message}
			}
			return fmt.Errorf("%s failed", method)
		}
		if out == nil || resp.Payload == nil {
			return nil
		}
		return json.Unmarshal(resp.Payload, out)
	}
}

// Subscribe registers a live query with the server and returns a watch
// over its results. The initial snapshot is delivered on the watch
// channel before any pushed updates.
func (c *Client) Subscribe(ctx context.Context, query string, args map[string]any) (*Watch, error) {
	sub := gateway.Subscription{Query: query, Args: args}

	var snapshot struct {
		Key     string          `json:"key"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := c.Call(ctx, "subscribe", sub, &snapshot); err != nil {
		return nil, err
	}

	watch := c.cache.Watch(sub)
	c.cache.Update(sub.Key(), snapshot.Payload)
	return watch, nil
}

// Unsubscribe removes a live query on the server and drops the watch.
func (c *Client) Unsubscribe(ctx context.Context, watch *Watch) error {
	c.cache.Unwatch(watch)
	sub := watch.Subscription()
	return c.Call(ctx, "unsubscribe", sub, nil)
}

// Refresh re-runs a query's backing RPC method and replaces the cached
// value, pulling the authoritative state after an optimistic mutation.
// Query names double as RPC method names on the gateway.
func (c *Client) Refresh(ctx context.Context, query string, args map[string]any) error {
	var payload json.RawMessage
	if err := c.Call(ctx, query, args, &payload); err != nil {
		return err
	}
	sub := gateway.Subscription{Query: query, Args: args}
	c.cache.Update(sub.Key(), payload)
	return nil
}

// Close tears down the connection and fails all pending calls.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	for id := range c.pending {
		delete(c.pending, id)
	}
	c.mu.Unlock()

	return c.conn.Close()
}
