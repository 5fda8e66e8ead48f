package chat

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/z-tavern/chatbot/internal/model/chat"
)

// Inferencer is the hosted model: it turns an assembled prompt into the
// assistant's reply text.
type Inferencer interface {
	Infer(ctx context.Context, messages []*schema.Message) (string, error)
}

// State describes where a dispatcher is in its turn cycle.
type State int32

const (
	StateIdle State = iota
	StateAwaitingResponse
)

func (s State) String() string {
	if s == StateAwaitingResponse {
		return "awaiting_response"
	}
	return "idle"
}

// Dispatcher runs one conversational turn at a time against a single history.
type Dispatcher struct {
	mu         sync.Mutex
	state      atomic.Int32
	history    *History
	assembler  *PromptAssembler
	inferencer Inferencer
	log        logrus.FieldLogger
}

// NewDispatcher wires a dispatcher to the history it owns. inferencer may be
// nil, in which case every turn fails with ErrInferenceUnavailable.
func NewDispatcher(history *History, assembler *PromptAssembler, inferencer Inferencer, log logrus.FieldLogger) *Dispatcher {
	return &Dispatcher{
		history:    history,
		assembler:  assembler,
		inferencer: inferencer,
		log:        log,
	}
}

// State reports whether a turn is currently in flight.
func (d *Dispatcher) State() State {
	return State(d.state.Load())
}

// HandleTurn sends userText to the model and records the exchange. The user
// turn and the assistant turn are appended together only after the model
// answered; on any error the history is left exactly as it was.
func (d *Dispatcher) HandleTurn(ctx context.Context, lang, userText string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	snapshot := d.history.Snapshot()
	messages, err := d.assembler.Build(ctx, lang, snapshot, userText)
	if err != nil {
		return "", err
	}

	if d.inferencer == nil {
		return "", &InferenceError{Err: ErrInferenceUnavailable}
	}

	d.state.Store(int32(StateAwaitingResponse))
	started := time.Now()
	reply, err := d.inferencer.Infer(ctx, messages)
	d.state.Store(int32(StateIdle))

	fields := logrus.Fields{
		"language": lang,
		"prompt":   len(messages),
		"duration": time.Since(started).Round(time.Millisecond),
	}
	if err != nil {
		d.log.WithFields(fields).WithError(err).Warn("inference failed, history unchanged")
		return "", &InferenceError{Err: err}
	}

	d.history.Append(chat.UserTurn(userText), chat.AssistantTurn(reply))
	fields["turns"] = d.history.Len()
	d.log.WithFields(fields).Debug("turn recorded")
	return reply, nil
}
