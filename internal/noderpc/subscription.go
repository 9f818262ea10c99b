package noderpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/clad-sovereign/clad-mobile/internal/log"
)

// Subscription is one active node-side subscription. Updates are delivered on
// Updates() until Unsubscribe is called or the connection drops, at which
// point the channel closes. Subscriptions do not survive reconnects; callers
// that still care resubscribe when the state stream reports Connected again.
type Subscription struct {
	id          string
	method      string
	unsubMethod string
	client      *Client
	ch          chan json.RawMessage
}

// Subscribe issues a subscription call (e.g. chain_subscribeNewHeads) and
// registers the returned id so push frames are routed to the subscription's
// channel. unsubMethod is the matching unsubscribe call.
func (c *Client) Subscribe(ctx context.Context, method, unsubMethod string, params ...interface{}) (*Subscription, error) {
	res, err := c.Call(ctx, method, params...)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", method, err)
	}
	id := subscriptionID(res)
	if id == "" {
		return nil, fmt.Errorf("subscribe %s: node returned empty subscription id", method)
	}

	sub := &Subscription{
		id:          id,
		method:      method,
		unsubMethod: unsubMethod,
		client:      c,
		ch:          make(chan json.RawMessage, 16),
	}

	c.mu.Lock()
	if c.closed || c.state.State != StateConnected {
		// The connection died between the response and now; the node-side
		// subscription is gone with it.
		c.mu.Unlock()
		return nil, fmt.Errorf("subscribe %s: %w", method, ErrConnectionLost)
	}
	c.subs[id] = sub
	// Claim any frames the node pushed before the id was registered; the
	// held count never exceeds the channel buffer.
	for _, raw := range c.orphans[id] {
		sub.ch <- raw
	}
	delete(c.orphans, id)
	c.mu.Unlock()

	log.RPC.Debug().Str("method", method).Str("subscription", id).Msg("subscribed")
	return sub, nil
}

// ID returns the node-assigned subscription id.
func (s *Subscription) ID() string {
	return s.id
}

// Updates returns the channel of push results. It closes when the
// subscription ends for any reason.
func (s *Subscription) Updates() <-chan json.RawMessage {
	return s.ch
}

// Unsubscribe tells the node to stop and closes the updates channel. Calling
// it on a subscription already ended by a drop is a no-op.
func (s *Subscription) Unsubscribe(ctx context.Context) error {
	c := s.client

	c.mu.Lock()
	_, active := c.subs[s.id]
	if active {
		delete(c.subs, s.id)
		close(s.ch)
	}
	c.mu.Unlock()
	if !active {
		return nil
	}

	if _, err := c.Call(ctx, s.unsubMethod, s.id); err != nil {
		// Local cleanup already happened; a lost connection cleans up the
		// node side too.
		if errors.Is(err, ErrNotConnected) || errors.Is(err, ErrConnectionLost) || errors.Is(err, ErrClosed) {
			return nil
		}
		return fmt.Errorf("unsubscribe %s: %w", s.unsubMethod, err)
	}
	log.RPC.Debug().Str("subscription", s.id).Msg("unsubscribed")
	return nil
}
