// Package turn drives a single request/response exchange against the model:
// it assembles the payload from the active session, streams the reply into a
// Sink, and commits the assistant message back to the store when the turn
// completes.
package turn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/samsaffron/webchat/internal/llm"
	"github.com/samsaffron/webchat/internal/session"
)

// State describes where a turn is in its lifecycle.
type State int

const (
	StateIdle State = iota
	StateSending
	StateStreaming
	StateCompleted
	StateCancelled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Streamer opens an event stream for a payload. *llm.Client satisfies it.
type Streamer interface {
	Stream(ctx context.Context, p llm.Payload) (llm.Stream, error)
}

// SettingsFunc supplies the model parameters for each turn. It is called
// once per turn so runtime settings changes take effect immediately.
type SettingsFunc func() session.Settings

// Controller runs at most one turn at a time against the store's active
// session. Submitting while a turn is in flight cancels the active one and
// waits for it to settle before sending. Stop may be called from another
// goroutine (or from the Sink) while Submit or Retry is blocked.
type Controller struct {
	store    *session.Store
	streamer Streamer
	sink     Sink
	settings SettingsFunc

	mu       sync.Mutex
	state    State
	cancel   context.CancelFunc
	turnDone chan struct{}
}

func NewController(store *session.Store, streamer Streamer, sink Sink, settings SettingsFunc) *Controller {
	if sink == nil {
		sink = NopSink{}
	}
	return &Controller{
		store:    store,
		streamer: streamer,
		sink:     sink,
		settings: settings,
		state:    StateIdle,
	}
}

// State reports the lifecycle state of the current turn, or StateIdle when
// none is running. Terminal outcomes are returned from Submit and Retry.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Stop cancels the in-flight turn, if any. The blocked Submit or Retry call
// then returns with StateCancelled.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
}

// Submit appends text as a user message on the active session and runs a
// turn. The user message is committed before the request is made, so a
// failed or cancelled turn still leaves it in the history for Retry.
func (c *Controller) Submit(ctx context.Context, text string) (State, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return StateIdle, errors.New("empty message")
	}
	sess := c.store.Active()
	c.store.AppendMessage(sess.ID, session.Message{Role: llm.RoleUser, Content: text})
	return c.run(ctx, sess.ID)
}

// Retry re-sends the active session's history as-is without appending a new
// user message.
func (c *Controller) Retry(ctx context.Context) (State, error) {
	sess := c.store.Active()
	if len(sess.Messages) == 0 {
		return StateIdle, errors.New("nothing to retry")
	}
	return c.run(ctx, sess.ID)
}

func (c *Controller) run(ctx context.Context, sessionID string) (State, error) {
	ctx, cancel := c.begin(ctx)
	defer c.end(cancel)

	stream, err := c.streamer.Stream(ctx, c.buildPayload(sessionID))
	if err != nil {
		return c.finish(err, "", sessionID)
	}
	defer stream.Close()

	var reply strings.Builder
	for {
		ev, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return c.finish(err, reply.String(), sessionID)
		}
		switch ev.Type {
		case llm.EventTextDelta:
			c.setState(StateStreaming)
			reply.WriteString(ev.Text)
			c.sink.Delta(ev.Text)
		case llm.EventError:
			return c.finish(ev.Err, reply.String(), sessionID)
		case llm.EventDone, llm.EventMalformed:
			// Done is followed by EOF; malformed frames are already
			// skipped by the decoder.
		}
	}
	return c.finish(nil, reply.String(), sessionID)
}

// begin claims the single turn slot: any active turn is cancelled and waited
// out first, so turns never overlap and never queue.
func (c *Controller) begin(ctx context.Context) (context.Context, context.CancelFunc) {
	c.mu.Lock()
	for c.turnDone != nil {
		if c.cancel != nil {
			c.cancel()
		}
		done := c.turnDone
		c.mu.Unlock()
		<-done
		c.mu.Lock()
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.turnDone = make(chan struct{})
	c.state = StateSending
	c.mu.Unlock()
	return ctx, cancel
}

// end releases the turn slot and returns the controller to idle regardless
// of how the turn settled.
func (c *Controller) end(cancel context.CancelFunc) {
	cancel()
	c.mu.Lock()
	close(c.turnDone)
	c.turnDone = nil
	c.cancel = nil
	c.state = StateIdle
	c.mu.Unlock()
}

// finish settles the turn: a completed turn commits the trimmed reply to the
// session, a cancelled one discards the partial text, and a failed one
// surfaces the error message verbatim.
func (c *Controller) finish(err error, partial, sessionID string) (State, error) {
	switch {
	case err == nil:
		full := strings.TrimSpace(partial)
		if full != "" {
			c.store.AppendMessage(sessionID, session.Message{Role: llm.RoleAssistant, Content: full})
		}
		c.setState(StateCompleted)
		c.sink.Done(full)
		return StateCompleted, nil
	case errors.Is(err, context.Canceled):
		c.setState(StateCancelled)
		c.sink.Done("")
		return StateCancelled, nil
	default:
		c.setState(StateFailed)
		c.sink.Error(err.Error())
		return StateFailed, err
	}
}

func (c *Controller) buildPayload(sessionID string) llm.Payload {
	cfg := c.settings()
	input := make([]llm.Message, 0, 1)
	if prompt := strings.TrimSpace(cfg.SystemPrompt); prompt != "" {
		input = append(input, llm.Message{Role: llm.RoleSystem, Content: prompt})
	}
	if sess := c.store.Get(sessionID); sess != nil {
		for _, m := range sess.Messages {
			input = append(input, llm.Message{Role: m.Role, Content: m.Content})
		}
	}
	return llm.Payload{
		Model:       cfg.Model,
		Input:       input,
		Temperature: cfg.Temperature,
		TopP:        cfg.TopP,
	}
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}
