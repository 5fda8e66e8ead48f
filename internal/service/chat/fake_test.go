package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/z-tavern/chatbot/internal/logging"
	"github.com/zhouzirui/z-tavern/chatbot/internal/model/language"
)

var errProvider = errors.New("provider throttled")

type fakeInferencer struct {
	mu       sync.Mutex
	calls    [][]*schema.Message
	fail     bool
	inFlight atomic.Int32
	overlap  atomic.Bool
	block    chan struct{}
}

func (f *fakeInferencer) Infer(_ context.Context, messages []*schema.Message) (string, error) {
	if f.inFlight.Add(1) > 1 {
		f.overlap.Store(true)
	}
	defer f.inFlight.Add(-1)

	if f.block != nil {
		<-f.block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, messages)
	if f.fail {
		return "", errProvider
	}
	return fmt.Sprintf("reply %d", len(f.calls)), nil
}

func (f *fakeInferencer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeInferencer) lastCall() []*schema.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func newTestAssembler(window int) *PromptAssembler {
	return NewPromptAssembler(language.NewMemoryStore(language.Seed()), window)
}

func newTestDispatcher(inf Inferencer) (*Dispatcher, *History) {
	history := NewHistory()
	return NewDispatcher(history, newTestAssembler(0), inf, logging.Discard()), history
}
