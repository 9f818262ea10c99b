// Package noderpc is a JSON-RPC 2.0 client for Substrate nodes over a
// persistent WebSocket connection. It owns one socket per client instance,
// correlates responses to calls by request id, delivers subscription push
// frames, and reconnects after unexpected drops up to a configured budget.
package noderpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/clad-sovereign/clad-mobile/internal/log"
	"github.com/gorilla/websocket"
)

var (
	// ErrNotConnected is returned by Call when no connection is up. Call
	// never attempts an implicit connect.
	ErrNotConnected = errors.New("noderpc: not connected")

	// ErrTimeout is returned when a call's deadline elapses before the
	// node responds. The wire request is not cancelled.
	ErrTimeout = errors.New("noderpc: call timed out")

	// ErrConnectionLost is returned for calls that were in flight when the
	// connection dropped.
	ErrConnectionLost = errors.New("noderpc: connection lost")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("noderpc: client closed")
)

// Options configures a Client.
type Options struct {
	// AutoReconnect enables reconnection after unexpected drops.
	AutoReconnect bool
	// MaxReconnectAttempts bounds the reconnect loop.
	MaxReconnectAttempts int
	// ReconnectDelay is the base backoff delay; attempt n waits n times
	// this long.
	ReconnectDelay time.Duration
	// CallTimeout applies to Call when the caller's context has no
	// deadline of its own.
	CallTimeout time.Duration
	// DialTimeout bounds the WebSocket handshake.
	DialTimeout time.Duration
}

// DefaultOptions returns the standard client configuration.
func DefaultOptions() Options {
	return Options{
		AutoReconnect:        true,
		MaxReconnectAttempts: 5,
		ReconnectDelay:       2 * time.Second,
		CallTimeout:          30 * time.Second,
		DialTimeout:          10 * time.Second,
	}
}

type callResult struct {
	msg *message
	err error
}

// Client is a JSON-RPC client bound to a single node connection.
//
// All state transitions and the pending-request table are serialized under
// one mutex; the reader goroutine and callers never race. Multiple calls may
// be in flight concurrently, each matched to its response by id.
type Client struct {
	opts Options

	mu           sync.Mutex
	conn         *websocket.Conn
	endpoint     string
	state        ConnectionState
	gen          uint64 // connection generation; stale readers bail out
	reconnecting bool
	closed       bool
	pending      map[uint64]chan callResult
	subs         map[string]*Subscription
	orphans      map[string][]json.RawMessage
	metadata     string
	messages     []NodeMessage

	watchMu       sync.Mutex
	nextWatch     int
	stateWatchers map[int]chan ConnectionState
	metaWatchers  map[int]chan string
	msgWatchers   map[int]chan NodeMessage

	writeMu   sync.Mutex
	nextReqID atomic.Uint64
	nextMsgID atomic.Uint64
}

// New creates a client. No connection is attempted until Connect.
func New(opts Options) *Client {
	return &Client{
		opts:          opts,
		state:         ConnectionState{State: StateDisconnected},
		pending:       make(map[uint64]chan callResult),
		subs:          make(map[string]*Subscription),
		orphans:       make(map[string][]json.RawMessage),
		stateWatchers: make(map[int]chan ConnectionState),
		metaWatchers:  make(map[int]chan string),
		msgWatchers:   make(map[int]chan NodeMessage),
	}
}

// Connect opens a WebSocket to the endpoint, transitioning through
// Connecting to Connected, then asynchronously primes the metadata and
// chain-properties caches. Connecting to the endpoint the client is already
// connected to is a no-op and emits no state transition.
func (c *Client) Connect(endpoint string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state.State == StateConnected && c.endpoint == endpoint {
		c.mu.Unlock()
		return nil
	}
	if c.state.State == StateConnecting {
		c.mu.Unlock()
		return fmt.Errorf("noderpc: connect to %s already in progress", c.endpoint)
	}
	if c.conn != nil {
		// Connected to a different endpoint: drop that connection first.
		c.teardownLocked(ErrConnectionLost)
	}
	c.endpoint = endpoint
	c.setStateLocked(ConnectionState{State: StateConnecting})
	// Snapshot the generation so a Disconnect or Close issued while the
	// dial is in flight wins over the late-arriving connection.
	startGen := c.gen
	c.mu.Unlock()

	conn, err := c.dial(endpoint)
	if err != nil {
		c.mu.Lock()
		if c.closed || startGen != c.gen {
			c.mu.Unlock()
			return fmt.Errorf("connect %s: %w", endpoint, ErrConnectionLost)
		}
		c.setStateLocked(ConnectionState{State: StateError, Err: err.Error()})
		c.mu.Unlock()
		return fmt.Errorf("connect %s: %w", endpoint, err)
	}

	c.mu.Lock()
	if c.closed || startGen != c.gen {
		closed := c.closed
		c.mu.Unlock()
		conn.Close()
		if closed {
			return ErrClosed
		}
		return fmt.Errorf("connect %s: %w", endpoint, ErrConnectionLost)
	}
	c.conn = conn
	c.gen++
	gen := c.gen
	c.setStateLocked(ConnectionState{State: StateConnected})
	c.mu.Unlock()

	go c.readLoop(conn, gen)
	go c.primeCaches()
	return nil
}

func (c *Client) dial(endpoint string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: c.opts.DialTimeout}
	conn, _, err := dialer.Dial(endpoint, nil)
	return conn, err
}

// Disconnect closes the connection, fails all pending calls, drops
// subscriptions, clears the metadata cache, and returns to Disconnected.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.teardownLocked(ErrConnectionLost)
	c.metadata = ""
	c.setStateLocked(ConnectionState{State: StateDisconnected})
	c.mu.Unlock()

	c.publishMetadata("")
	log.RPC.Info().Str("endpoint", c.endpoint).Msg("disconnected")
}

// Close releases all resources. Safe to call multiple times.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.teardownLocked(ErrClosed)
	c.setStateLocked(ConnectionState{State: StateDisconnected})
	c.mu.Unlock()

	c.watchMu.Lock()
	for id, ch := range c.stateWatchers {
		delete(c.stateWatchers, id)
		close(ch)
	}
	for id, ch := range c.metaWatchers {
		delete(c.metaWatchers, id)
		close(ch)
	}
	for id, ch := range c.msgWatchers {
		delete(c.msgWatchers, id)
		close(ch)
	}
	c.watchMu.Unlock()
}

// teardownLocked closes the socket (if any), bumps the connection
// generation so the reader and any reconnect loop stand down, and resolves
// every pending call and subscription. Called with c.mu held.
func (c *Client) teardownLocked(reason error) {
	c.gen++
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.failPendingLocked(reason)
	for id, sub := range c.subs {
		delete(c.subs, id)
		close(sub.ch)
	}
	c.orphans = make(map[string][]json.RawMessage)
}

// Held notifications per not-yet-registered subscription id, and how many
// such ids to hold at once. Matches the subscription channel buffer.
const (
	maxOrphanFrames = 16
	maxOrphanIDs    = 64
)

// failPendingLocked resolves every pending call with an error. Each pending
// call is resolved exactly once: entries are removed as they are notified.
func (c *Client) failPendingLocked(reason error) {
	for id, ch := range c.pending {
		delete(c.pending, id)
		ch <- callResult{err: reason}
	}
}

// Call sends a uniquely-id'd JSON-RPC request and waits for the matching
// response. If ctx carries no deadline, the client's CallTimeout applies.
// Cancelling ctx abandons the wait and removes the pending entry; it does
// not cancel the in-flight wire request.
func (c *Client) Call(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if c.state.State != StateConnected || c.conn == nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: cannot call %s", ErrNotConnected, method)
	}
	conn := c.conn
	id := c.nextReqID.Add(1)
	ch := make(chan callResult, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	if params == nil {
		params = []interface{}{}
	}
	data, err := json.Marshal(request{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		c.removePending(id)
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	if err := c.send(conn, data); err != nil {
		c.removePending(id)
		return nil, fmt.Errorf("%w: %v", ErrConnectionLost, err)
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.CallTimeout)
		defer cancel()
	}

	select {
	case res := <-ch:
		if res.err != nil {
			return nil, res.err
		}
		if res.msg.Error != nil {
			return nil, res.msg.Error
		}
		return res.msg.Result, nil
	case <-ctx.Done():
		c.removePending(id)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", ErrTimeout, method)
		}
		return nil, ctx.Err()
	}
}

func (c *Client) removePending(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// send writes one frame, logging it on the message stream. The write lock
// keeps concurrent callers from interleaving frames.
func (c *Client) send(conn *websocket.Conn, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.appendMessage(Sent, string(data))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// FetchMetadata calls state_getMetadata and updates the published metadata
// stream.
func (c *Client) FetchMetadata(ctx context.Context) (string, error) {
	res, err := c.Call(ctx, "state_getMetadata")
	if err != nil {
		return "", err
	}
	var meta string
	if err := json.Unmarshal(res, &meta); err != nil {
		return "", fmt.Errorf("decode metadata: %w", err)
	}

	c.mu.Lock()
	c.metadata = meta
	c.mu.Unlock()
	c.publishMetadata(meta)
	return meta, nil
}

// ChainProperties calls system_properties. Same error taxonomy as Call.
func (c *Client) ChainProperties(ctx context.Context) (json.RawMessage, error) {
	return c.Call(ctx, "system_properties")
}

// primeCaches fetches metadata and chain properties right after a
// connection comes up. Failures are logged, not fatal: the connection is
// already usable.
func (c *Client) primeCaches() {
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.CallTimeout)
	defer cancel()

	if _, err := c.FetchMetadata(ctx); err != nil {
		log.RPC.Warn().Err(err).Msg("initial metadata fetch failed")
	}
	if _, err := c.ChainProperties(ctx); err != nil {
		log.RPC.Warn().Err(err).Msg("initial chain properties fetch failed")
	}
}

// readLoop delivers frames from one connection until it dies. gen identifies
// the connection; once the client has moved on, a stale reader exits without
// touching anything.
func (c *Client) readLoop(conn *websocket.Conn, gen uint64) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleReadError(gen, err)
			return
		}
		c.appendMessage(Received, string(data))

		var msg message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.RPC.Warn().Err(err).Msg("dropping unparseable frame")
			continue
		}

		switch {
		case msg.isResponse():
			c.mu.Lock()
			ch, ok := c.pending[*msg.ID]
			if ok {
				delete(c.pending, *msg.ID)
			}
			c.mu.Unlock()
			if ok {
				ch <- callResult{msg: &msg}
			} else {
				log.RPC.Debug().Uint64("id", *msg.ID).Msg("response for unknown or abandoned request")
			}
		case msg.isNotification():
			c.routeNotification(&msg)
		}
	}
}

func (c *Client) routeNotification(msg *message) {
	var np notificationParams
	if err := json.Unmarshal(msg.Params, &np); err != nil {
		log.RPC.Warn().Err(err).Str("method", msg.Method).Msg("bad notification params")
		return
	}
	id := subscriptionID(np.Subscription)

	// The non-blocking send happens under c.mu so teardown cannot close
	// sub.ch mid-send.
	c.mu.Lock()
	defer c.mu.Unlock()
	sub, ok := c.subs[id]
	if !ok {
		// The node may push before the subscribe response has been
		// processed and the id registered. Hold the frames until
		// Subscribe claims them.
		if len(c.orphans) < maxOrphanIDs && len(c.orphans[id]) < maxOrphanFrames {
			c.orphans[id] = append(c.orphans[id], np.Result)
		} else {
			log.RPC.Debug().Str("subscription", id).Msg("dropping notification for unknown subscription")
		}
		return
	}
	select {
	case sub.ch <- np.Result:
	default:
		log.RPC.Warn().Str("subscription", id).Msg("dropping update for slow subscriber")
	}
}

// handleReadError reacts to a dead connection: pending calls fail with
// ConnectionLost, and if auto-reconnect is on and this was not an explicit
// disconnect, a reconnect loop starts.
func (c *Client) handleReadError(gen uint64, err error) {
	c.mu.Lock()
	if c.closed || gen != c.gen {
		// Explicit Disconnect/Close/replacement already tore this
		// connection down.
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.failPendingLocked(ErrConnectionLost)
	for id, sub := range c.subs {
		delete(c.subs, id)
		close(sub.ch)
	}
	c.orphans = make(map[string][]json.RawMessage)
	endpoint := c.endpoint
	c.setStateLocked(ConnectionState{State: StateError, Err: err.Error()})

	if !c.opts.AutoReconnect || c.reconnecting {
		c.mu.Unlock()
		return
	}
	c.reconnecting = true
	c.mu.Unlock()

	log.RPC.Warn().Err(err).Str("endpoint", endpoint).Msg("connection lost, reconnecting")
	go c.reconnectLoop(endpoint, gen)
}

// reconnectLoop makes up to MaxReconnectAttempts sequential attempts with
// linear backoff, standing down immediately if the client is closed,
// explicitly disconnected, or reconnected by other means.
func (c *Client) reconnectLoop(endpoint string, gen uint64) {
	for attempt := 1; attempt <= c.opts.MaxReconnectAttempts; attempt++ {
		time.Sleep(time.Duration(attempt) * c.opts.ReconnectDelay)

		c.mu.Lock()
		if c.closed || gen != c.gen {
			c.reconnecting = false
			c.mu.Unlock()
			return
		}
		c.setStateLocked(ConnectionState{State: StateConnecting})
		c.mu.Unlock()

		conn, err := c.dial(endpoint)
		if err != nil {
			log.RPC.Warn().Err(err).Int("attempt", attempt).Msg("reconnect attempt failed")
			c.mu.Lock()
			if c.closed || gen != c.gen {
				c.reconnecting = false
				c.mu.Unlock()
				return
			}
			c.setStateLocked(ConnectionState{State: StateError, Err: err.Error()})
			c.mu.Unlock()
			continue
		}

		c.mu.Lock()
		if c.closed || gen != c.gen {
			c.reconnecting = false
			c.mu.Unlock()
			conn.Close()
			return
		}
		c.conn = conn
		c.gen++
		newGen := c.gen
		c.reconnecting = false
		c.setStateLocked(ConnectionState{State: StateConnected})
		c.mu.Unlock()

		log.RPC.Info().Str("endpoint", endpoint).Int("attempt", attempt).Msg("reconnected")
		go c.readLoop(conn, newGen)
		go c.primeCaches()
		return
	}

	c.mu.Lock()
	c.reconnecting = false
	if !c.closed && gen == c.gen {
		c.setStateLocked(ConnectionState{
			State: StateError,
			Err:   fmt.Sprintf("gave up after %d reconnect attempts", c.opts.MaxReconnectAttempts),
		})
	}
	c.mu.Unlock()
}

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Metadata returns the cached chain metadata, or "" if none is cached.
func (c *Client) Metadata() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.metadata
}

// Messages returns a copy of the RPC traffic log.
func (c *Client) Messages() []NodeMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]NodeMessage, len(c.messages))
	copy(out, c.messages)
	return out
}

// WatchState subscribes to connection state changes: the current state is
// delivered first, then every transition. Call cancel to unsubscribe.
func (c *Client) WatchState() (<-chan ConnectionState, func()) {
	// c.mu serializes against transitions so the current value and the
	// first update cannot arrive out of order.
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, cancel := addWatcher(c, c.stateWatchers)
	ch <- c.state
	return ch, cancel
}

// WatchMetadata subscribes to metadata updates, current value first ("" when
// nothing is cached).
func (c *Client) WatchMetadata() (<-chan string, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, cancel := addWatcher(c, c.metaWatchers)
	ch <- c.metadata
	return ch, cancel
}

// WatchMessages subscribes to new traffic log entries.
func (c *Client) WatchMessages() (<-chan NodeMessage, func()) {
	ch, cancel := addWatcher(c, c.msgWatchers)
	return ch, cancel
}

// addWatcher registers a buffered channel in one of the watcher maps.
func addWatcher[T any](c *Client, watchers map[int]chan T) (chan T, func()) {
	c.watchMu.Lock()
	id := c.nextWatch
	c.nextWatch++
	ch := make(chan T, 16)
	watchers[id] = ch
	c.watchMu.Unlock()

	cancel := func() {
		c.watchMu.Lock()
		if w, ok := watchers[id]; ok {
			delete(watchers, id)
			close(w)
		}
		c.watchMu.Unlock()
	}
	return ch, cancel
}

// publish fans a value out without blocking; slow watchers lose updates.
func publish[T any](c *Client, watchers map[int]chan T, v T) {
	c.watchMu.Lock()
	for _, ch := range watchers {
		select {
		case ch <- v:
		default:
		}
	}
	c.watchMu.Unlock()
}

// setStateLocked records and publishes a state transition. Called with c.mu
// held.
func (c *Client) setStateLocked(next ConnectionState) {
	if c.state == next {
		return
	}
	log.RPC.Debug().
		Str("from", c.state.State.String()).
		Str("to", next.State.String()).
		Msg("connection state")
	c.state = next
	publish(c, c.stateWatchers, next)
}

func (c *Client) publishMetadata(meta string) {
	publish(c, c.metaWatchers, meta)
}

// appendMessage records one frame on the traffic log and notifies watchers.
func (c *Client) appendMessage(dir Direction, content string) {
	msg := NodeMessage{
		ID:        c.nextMsgID.Add(1),
		Direction: dir,
		Content:   content,
		Timestamp: time.Now(),
	}
	c.mu.Lock()
	c.messages = append(c.messages, msg)
	c.mu.Unlock()
	publish(c, c.msgWatchers, msg)
}
