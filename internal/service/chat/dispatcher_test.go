package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-tavern/chatbot/internal/model/chat"
)

func TestHandleTurnRecordsUserThenAssistant(t *testing.T) {
	inf := &fakeInferencer{}
	d, history := newTestDispatcher(inf)

	reply, err := d.HandleTurn(context.Background(), "english", "Hello")
	require.NoError(t, err)
	assert.Equal(t, "reply 1", reply)
	assert.Equal(t, []chat.Turn{chat.UserTurn("Hello"), chat.AssistantTurn("reply 1")}, history.Snapshot())
	assert.Equal(t, 1, inf.callCount())
}

func TestHandleTurnSecondPromptCarriesHistory(t *testing.T) {
	inf := &fakeInferencer{}
	d, _ := newTestDispatcher(inf)
	ctx := context.Background()

	_, err := d.HandleTurn(ctx, "english", "Hello")
	require.NoError(t, err)
	_, err = d.HandleTurn(ctx, "english", "How are you?")
	require.NoError(t, err)

	prompt := inf.lastCall()
	assert.Equal(t, []schema.RoleType{schema.System, schema.User, schema.Assistant, schema.User}, roles(prompt))
	assert.Equal(t, "Hello", prompt[1].Content)
	assert.Equal(t, "reply 1", prompt[2].Content)
	assert.Equal(t, "How are you?", prompt[3].Content)
}

func TestHandleTurnAlternatesRoles(t *testing.T) {
	d, history := newTestDispatcher(&fakeInferencer{})
	ctx := context.Background()

	const turns = 7
	for i := 0; i < turns; i++ {
		_, err := d.HandleTurn(ctx, "spanish", fmt.Sprintf("message %d", i))
		require.NoError(t, err)
	}

	snapshot := history.Snapshot()
	require.Len(t, snapshot, 2*turns)
	for i, turn := range snapshot {
		want := chat.RoleUser
		if i%2 == 1 {
			want = chat.RoleAssistant
		}
		assert.Equal(t, want, turn.Role, "turn %d", i)
	}
}

func TestHandleTurnFailureLeavesHistoryUnchanged(t *testing.T) {
	inf := &fakeInferencer{}
	d, history := newTestDispatcher(inf)
	ctx := context.Background()

	_, err := d.HandleTurn(ctx, "english", "Hello")
	require.NoError(t, err)
	before := history.Snapshot()

	inf.fail = true
	_, err = d.HandleTurn(ctx, "english", "again")
	require.Error(t, err)

	var infErr *InferenceError
	require.True(t, errors.As(err, &infErr))
	assert.ErrorIs(t, err, errProvider)
	assert.Equal(t, before, history.Snapshot())
	assert.Equal(t, StateIdle, d.State())
}

func TestHandleTurnInvalidArgumentSkipsInference(t *testing.T) {
	inf := &fakeInferencer{}
	d, history := newTestDispatcher(inf)
	ctx := context.Background()

	_, err := d.HandleTurn(ctx, "french", "Bonjour")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = d.HandleTurn(ctx, "english", "")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	assert.Zero(t, inf.callCount())
	assert.Zero(t, history.Len())
}

func TestHandleTurnWithoutInferencer(t *testing.T) {
	d, history := newTestDispatcher(nil)

	_, err := d.HandleTurn(context.Background(), "english", "Hello")

	var infErr *InferenceError
	require.True(t, errors.As(err, &infErr))
	assert.ErrorIs(t, err, ErrInferenceUnavailable)
	assert.Zero(t, history.Len())
}

func TestHandleTurnSerializesConcurrentCalls(t *testing.T) {
	inf := &fakeInferencer{block: make(chan struct{})}
	d, history := newTestDispatcher(inf)
	ctx := context.Background()

	const callers = 5
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := d.HandleTurn(ctx, "english", fmt.Sprintf("caller %d", i))
			assert.NoError(t, err)
		}(i)
	}

	require.Eventually(t, func() bool {
		return d.State() == StateAwaitingResponse
	}, time.Second, time.Millisecond)

	for i := 0; i < callers; i++ {
		inf.block <- struct{}{}
	}
	wg.Wait()

	assert.False(t, inf.overlap.Load())
	snapshot := history.Snapshot()
	require.Len(t, snapshot, 2*callers)
	for i := 0; i < len(snapshot); i += 2 {
		assert.Equal(t, chat.RoleUser, snapshot[i].Role)
		assert.Equal(t, chat.RoleAssistant, snapshot[i+1].Role)
	}
}
