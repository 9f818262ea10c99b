package noderpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// fakeNode is an in-process WebSocket JSON-RPC server speaking just enough of
// the Substrate surface for the client tests.
type fakeNode struct {
	srv       *httptest.Server
	closeOnce sync.Once
}

func newFakeNode(t *testing.T) *fakeNode {
	t.Helper()
	n := &fakeNode{}
	n.srv = httptest.NewServer(http.HandlerFunc(n.handle))
	t.Cleanup(n.close)
	return n
}

func (n *fakeNode) url() string {
	return "ws" + strings.TrimPrefix(n.srv.URL, "http")
}

func (n *fakeNode) close() {
	n.closeOnce.Do(func() {
		n.srv.CloseClientConnections()
		n.srv.Close()
	})
}

func (n *fakeNode) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/slow" {
		// Stall the handshake so tests can act while a dial is in flight.
		time.Sleep(200 * time.Millisecond)
	}
	up := websocket.Upgrader{}
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	var wmu sync.Mutex
	write := func(v interface{}) {
		wmu.Lock()
		defer wmu.Unlock()
		data, _ := json.Marshal(v)
		conn.WriteMessage(websocket.TextMessage, data)
	}
	result := func(id uint64, raw string) map[string]interface{} {
		return map[string]interface{}{"jsonrpc": "2.0", "id": id, "result": json.RawMessage(raw)}
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req struct {
			ID     uint64            `json:"id"`
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		if err := json.Unmarshal(data, &req); err != nil {
			continue
		}

		switch req.Method {
		case "state_getMetadata":
			write(result(req.ID, `"0x6d657461"`))
		case "system_properties":
			write(result(req.ID, `{"ss58Format":42,"tokenSymbol":"UNIT"}`))
		case "test_echo":
			payload := "null"
			if len(req.Params) > 0 {
				payload = string(req.Params[0])
			}
			write(result(req.ID, payload))
		case "test_slow":
			go func(id uint64) {
				time.Sleep(300 * time.Millisecond)
				write(result(id, `"slow-done"`))
			}(req.ID)
		case "test_error":
			write(map[string]interface{}{
				"jsonrpc": "2.0",
				"id":      req.ID,
				"error":   map[string]interface{}{"code": -32601, "message": "Method not found"},
			})
		case "test_die":
			conn.Close()
			return
		case "chain_subscribeNewHeads":
			// Push immediately after confirming, the way a busy chain
			// does; the client must not lose frames that land before it
			// has registered the id.
			write(result(req.ID, `"sub-heads-1"`))
			for i := 1; i <= 2; i++ {
				write(map[string]interface{}{
					"jsonrpc": "2.0",
					"method":  "chain_newHead",
					"params": map[string]interface{}{
						"subscription": "sub-heads-1",
						"result":       map[string]string{"number": fmt.Sprintf("%#x", i)},
					},
				})
			}
		case "chain_unsubscribeNewHeads":
			write(result(req.ID, "true"))
		}
	}
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.AutoReconnect = false
	opts.CallTimeout = 2 * time.Second
	return opts
}

func waitState(t *testing.T, ch <-chan ConnectionState, want State) ConnectionState {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case st, ok := <-ch:
			if !ok {
				t.Fatalf("state channel closed while waiting for %s", want)
			}
			if st.State == want {
				return st
			}
		case <-deadline:
			t.Fatalf("timed out waiting for state %s", want)
		}
	}
}

func TestConnectStateSequence(t *testing.T) {
	node := newFakeNode(t)
	c := New(testOptions())
	defer c.Close()

	states, cancel := c.WatchState()
	defer cancel()

	if st := <-states; st.State != StateDisconnected {
		t.Fatalf("initial state = %s, want disconnected", st.State)
	}

	if err := c.Connect(node.url()); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	if st := <-states; st.State != StateConnecting {
		t.Fatalf("second state = %s, want connecting", st.State)
	}
	if st := <-states; st.State != StateConnected {
		t.Fatalf("third state = %s, want connected", st.State)
	}
}

func TestConnectSameEndpointIsNoop(t *testing.T) {
	node := newFakeNode(t)
	c := New(testOptions())
	defer c.Close()

	if err := c.Connect(node.url()); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	states, cancel := c.WatchState()
	defer cancel()
	<-states // current value

	if err := c.Connect(node.url()); err != nil {
		t.Fatalf("second Connect() error: %v", err)
	}
	select {
	case st := <-states:
		t.Fatalf("unexpected transition to %s on repeat connect", st.State)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestCall(t *testing.T) {
	node := newFakeNode(t)
	c := New(testOptions())
	defer c.Close()
	if err := c.Connect(node.url()); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}

	res, err := c.Call(context.Background(), "test_echo", "hello")
	if err != nil {
		t.Fatalf("Call() error: %v", err)
	}
	var got string
	if err := json.Unmarshal(res, &got); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if got != "hello" {
		t.Errorf("echo result = %q, want %q", got, "hello")
	}
}

func TestCallWhileDisconnected(t *testing.T) {
	c := New(testOptions())
	defer c.Close()

	_, err := c.Call(context.Background(), "test_echo")
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("Call() while disconnected = %v, want ErrNotConnected", err)
	}
}

func TestCallTimeout(t *testing.T) {
	node := newFakeNode(t)
	opts := testOptions()
	opts.CallTimeout = 50 * time.Millisecond
	c := New(opts)
	defer c.Close()
	if err := c.Connect(node.url()); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}

	_, err := c.Call(context.Background(), "test_slow")
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Call() on slow method = %v, want ErrTimeout", err)
	}
}

func TestOutOfOrderResponses(t *testing.T) {
	node := newFakeNode(t)
	c := New(testOptions())
	defer c.Close()
	if err := c.Connect(node.url()); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}

	type outcome struct {
		res json.RawMessage
		err error
	}
	slow := make(chan outcome, 1)
	go func() {
		res, err := c.Call(context.Background(), "test_slow")
		slow <- outcome{res, err}
	}()

	// The fast call completes while the slow one is still pending; each must
	// receive its own response regardless of arrival order.
	res, err := c.Call(context.Background(), "test_echo", 42)
	if err != nil {
		t.Fatalf("fast Call() error: %v", err)
	}
	if string(res) != "42" {
		t.Errorf("fast result = %s, want 42", res)
	}

	out := <-slow
	if out.err != nil {
		t.Fatalf("slow Call() error: %v", out.err)
	}
	if string(out.res) != `"slow-done"` {
		t.Errorf("slow result = %s", out.res)
	}
}

func TestRPCErrorPassthrough(t *testing.T) {
	node := newFakeNode(t)
	c := New(testOptions())
	defer c.Close()
	if err := c.Connect(node.url()); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}

	_, err := c.Call(context.Background(), "test_error")
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("Call() = %v, want *RPCError", err)
	}
	if rpcErr.Code != -32601 {
		t.Errorf("rpc error code = %d, want -32601", rpcErr.Code)
	}
}

func TestDisconnectFailsPendingCalls(t *testing.T) {
	node := newFakeNode(t)
	c := New(testOptions())
	defer c.Close()
	if err := c.Connect(node.url()); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}

	errs := make(chan error, 1)
	go func() {
		_, err := c.Call(context.Background(), "test_slow")
		errs <- err
	}()
	time.Sleep(50 * time.Millisecond) // let the call register as pending
	c.Disconnect()

	if err := <-errs; !errors.Is(err, ErrConnectionLost) {
		t.Errorf("pending Call() after Disconnect() = %v, want ErrConnectionLost", err)
	}
	if st := c.State(); st.State != StateDisconnected {
		t.Errorf("state after Disconnect() = %s, want disconnected", st.State)
	}
}

func TestDisconnectClearsMetadata(t *testing.T) {
	node := newFakeNode(t)
	c := New(testOptions())
	defer c.Close()

	meta, cancel := c.WatchMetadata()
	defer cancel()
	if m := <-meta; m != "" {
		t.Fatalf("initial metadata = %q, want empty", m)
	}

	if err := c.Connect(node.url()); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	deadline := time.After(3 * time.Second)
	for {
		var m string
		select {
		case m = <-meta:
		case <-deadline:
			t.Fatal("timed out waiting for metadata")
		}
		if m == "0x6d657461" {
			break
		}
	}

	c.Disconnect()
	if m := <-meta; m != "" {
		t.Errorf("metadata after Disconnect() = %q, want empty", m)
	}
	if c.Metadata() != "" {
		t.Error("Metadata() not cleared by Disconnect()")
	}
}

func TestMessageLog(t *testing.T) {
	node := newFakeNode(t)
	c := New(testOptions())
	defer c.Close()
	if err := c.Connect(node.url()); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	if _, err := c.Call(context.Background(), "test_echo", "logged"); err != nil {
		t.Fatalf("Call() error: %v", err)
	}

	var sent, received bool
	msgs := c.Messages()
	for i, m := range msgs {
		if i > 0 && msgs[i].ID <= msgs[i-1].ID {
			t.Error("message ids not strictly increasing")
		}
		if strings.Contains(m.Content, "test_echo") && m.Direction == Sent {
			sent = true
		}
		if strings.Contains(m.Content, "logged") && m.Direction == Received {
			received = true
		}
	}
	if !sent || !received {
		t.Errorf("log missing echo frames (sent=%v received=%v) in %d messages", sent, received, len(msgs))
	}
}

func TestSubscription(t *testing.T) {
	node := newFakeNode(t)
	c := New(testOptions())
	defer c.Close()
	if err := c.Connect(node.url()); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}

	sub, err := c.Subscribe(context.Background(), "chain_subscribeNewHeads", "chain_unsubscribeNewHeads")
	if err != nil {
		t.Fatalf("Subscribe() error: %v", err)
	}
	if sub.ID() != "sub-heads-1" {
		t.Errorf("subscription id = %q", sub.ID())
	}

	for i := 1; i <= 2; i++ {
		select {
		case raw := <-sub.Updates():
			var head struct {
				Number string `json:"number"`
			}
			if err := json.Unmarshal(raw, &head); err != nil {
				t.Fatalf("decode head: %v", err)
			}
			if head.Number != fmt.Sprintf("%#x", i) {
				t.Errorf("head %d = %q", i, head.Number)
			}
		case <-time.After(3 * time.Second):
			t.Fatalf("timed out waiting for head %d", i)
		}
	}

	if err := sub.Unsubscribe(context.Background()); err != nil {
		t.Fatalf("Unsubscribe() error: %v", err)
	}
	if _, open := <-sub.Updates(); open {
		t.Error("updates channel should be closed after Unsubscribe()")
	}
	if err := sub.Unsubscribe(context.Background()); err != nil {
		t.Errorf("second Unsubscribe() = %v, want nil", err)
	}
}

func TestAutoReconnect(t *testing.T) {
	node := newFakeNode(t)
	opts := testOptions()
	opts.AutoReconnect = true
	opts.MaxReconnectAttempts = 5
	opts.ReconnectDelay = 20 * time.Millisecond
	c := New(opts)
	defer c.Close()

	if err := c.Connect(node.url()); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	states, cancel := c.WatchState()
	defer cancel()
	<-states // current: connected

	// The node drops the connection; the client should come back on its own.
	go c.Call(context.Background(), "test_die")
	waitState(t, states, StateError)
	waitState(t, states, StateConnected)
}

func TestReconnectBudgetExhausted(t *testing.T) {
	node := newFakeNode(t)
	opts := testOptions()
	opts.AutoReconnect = true
	opts.MaxReconnectAttempts = 2
	opts.ReconnectDelay = 10 * time.Millisecond
	c := New(opts)
	defer c.Close()

	if err := c.Connect(node.url()); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	states, cancel := c.WatchState()
	defer cancel()
	<-states // current: connected

	node.close() // kills the socket and refuses redials

	deadline := time.After(5 * time.Second)
	for {
		select {
		case st := <-states:
			if st.State == StateError && strings.Contains(st.Err, "gave up") {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for terminal error state")
		}
	}
}

func TestDisconnectSuppressesReconnect(t *testing.T) {
	node := newFakeNode(t)
	opts := testOptions()
	opts.AutoReconnect = true
	opts.ReconnectDelay = 20 * time.Millisecond
	c := New(opts)
	defer c.Close()

	if err := c.Connect(node.url()); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	c.Disconnect()

	time.Sleep(150 * time.Millisecond)
	if st := c.State(); st.State != StateDisconnected {
		t.Errorf("state after Disconnect() = %s, want disconnected (no reconnect)", st.State)
	}
}

func TestDisconnectDuringDialWins(t *testing.T) {
	node := newFakeNode(t)
	c := New(testOptions())
	defer c.Close()

	errs := make(chan error, 1)
	go func() { errs <- c.Connect(node.url() + "/slow") }()

	time.Sleep(50 * time.Millisecond) // dial in flight
	c.Disconnect()

	if err := <-errs; !errors.Is(err, ErrConnectionLost) {
		t.Errorf("overridden Connect() = %v, want ErrConnectionLost", err)
	}
	if st := c.State(); st.State != StateDisconnected {
		t.Errorf("state = %s, want disconnected (Disconnect must win)", st.State)
	}
	if _, err := c.Call(context.Background(), "test_echo"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Call() after overridden connect = %v, want ErrNotConnected", err)
	}
}

func TestCloseIdempotent(t *testing.T) {
	node := newFakeNode(t)
	c := New(testOptions())
	if err := c.Connect(node.url()); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	c.Close()
	c.Close()

	if _, err := c.Call(context.Background(), "test_echo"); !errors.Is(err, ErrClosed) {
		t.Errorf("Call() after Close() = %v, want ErrClosed", err)
	}
	if err := c.Connect(node.url()); !errors.Is(err, ErrClosed) {
		t.Errorf("Connect() after Close() = %v, want ErrClosed", err)
	}
}
