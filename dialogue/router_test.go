package dialogue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fabfab/symptom-agent/chat"
	"github.com/fabfab/symptom-agent/corpus"
	"github.com/fabfab/symptom-agent/diagnostic"
)

// echoAnswerer answers with the question and the history length it saw.
type echoAnswerer struct {
	mu    sync.Mutex
	err   error
	calls []string
}

func (e *echoAnswerer) Answer(_ context.Context, question string, memory *chat.Memory) (string, error) {
	e.mu.Lock()
	e.calls = append(e.calls, question)
	e.mu.Unlock()
	if e.err != nil {
		return "", e.err
	}
	answer := fmt.Sprintf("answer to %q with %d turns", question, memory.Len())
	memory.Append(question, answer)
	return answer, nil
}

func newTestRouter(t *testing.T, answerer Answerer) *Router {
	t.Helper()
	groups := []corpus.FactorGroup{
		{GroupName: "Location", Factors: []string{"Upper", "Lower right"}},
		{GroupName: "Timing", Factors: []string{"At night", "After meals"}},
	}
	return NewRouter(
		NewDetector(nil, nil),
		diagnostic.NewEngine(groups),
		answerer,
		NewSessionStore(time.Hour, 0),
		zaptest.NewLogger(t),
	)
}

func handle(t *testing.T, r *Router, session, text string) Reply {
	t.Helper()
	reply, err := r.Handle(context.Background(), session, text)
	require.NoError(t, err)
	return reply
}

func TestQuestionnaireWalkthrough(t *testing.T) {
	r := newTestRouter(t, &echoAnswerer{})

	first := handle(t, r, "s1", "I have pain")
	assert.Equal(t, IntentStartDiagnostic, first.Intent)
	assert.Equal(t, diagnostic.Disclaimer+"Let's talk about 'Location'. Is it any of the following? Upper, Lower right", first.Response)

	second := handle(t, r, "s1", "Lower Right")
	assert.Equal(t, "Let's talk about 'Timing'. Is it any of the following? At night, After meals", second.Response)

	third := handle(t, r, "s1", "at night")
	assert.Contains(t, third.Response, "lower right, at night")
	assert.NotContains(t, third.Response, "Let's talk about")

	state, _, ok := r.Session("s1")
	require.True(t, ok)
	assert.Equal(t, diagnostic.ModeIdle, state.Mode)
	assert.Empty(t, state.Answers)

	after := handle(t, r, "s1", "anything")
	assert.Equal(t, IntentFreeformQuery, after.Intent)
}

func TestAnswersAccumulateLowerCased(t *testing.T) {
	r := newTestRouter(t, &echoAnswerer{})
	handle(t, r, "s", "help me")
	handle(t, r, "s", "UPPER Left")

	state, _, ok := r.Session("s")
	require.True(t, ok)
	assert.Equal(t, diagnostic.ModeDiagnostic, state.Mode)
	assert.Equal(t, 1, state.QuestionIndex)
	assert.Equal(t, []string{"upper left"}, state.Answers)
}

func TestTriggerPhraseDuringQuestionnaireIsAnAnswer(t *testing.T) {
	r := newTestRouter(t, &echoAnswerer{})
	handle(t, r, "s", "figure out my symptoms")

	reply := handle(t, r, "s", "help me")
	assert.Equal(t, IntentDiagnosticAnswer, reply.Intent)

	state, _, _ := r.Session("s")
	assert.Equal(t, []string{"help me"}, state.Answers)
}

func TestResetMidQuestionnaire(t *testing.T) {
	answerer := &echoAnswerer{}
	r := newTestRouter(t, answerer)
	handle(t, r, "s", "what is cramping?")
	handle(t, r, "s", "i have pain")
	handle(t, r, "s", "upper")

	reply := handle(t, r, "s", "Start over")
	assert.Equal(t, ResetAcknowledgment, reply.Response)

	state, turns, ok := r.Session("s")
	require.True(t, ok)
	assert.Equal(t, diagnostic.State{Mode: diagnostic.ModeIdle}, state)
	assert.Empty(t, turns)
}

func TestResetThenQueryMatchesFreshSession(t *testing.T) {
	r := newTestRouter(t, &echoAnswerer{})
	handle(t, r, "used", "what is cramping?")
	handle(t, r, "used", "help me")
	handle(t, r, "used", "start over")

	afterReset := handle(t, r, "used", "what causes bloating?")
	fresh := handle(t, r, "fresh", "what causes bloating?")

	assert.Equal(t, fresh.Response, afterReset.Response)
	assert.Equal(t, fresh.Intent, afterReset.Intent)
}

func TestFreeformUsesTypedTextAndSessionMemory(t *testing.T) {
	answerer := &echoAnswerer{}
	r := newTestRouter(t, answerer)

	handle(t, r, "s", "What Causes Cramps?")
	reply := handle(t, r, "s", "And Bloating?")

	assert.Equal(t, []string{"What Causes Cramps?", "And Bloating?"}, answerer.calls)
	assert.Equal(t, `answer to "And Bloating?" with 1 turns`, reply.Response)
}

func TestSessionsAreIsolated(t *testing.T) {
	r := newTestRouter(t, &echoAnswerer{})
	handle(t, r, "a", "i have pain")

	other := handle(t, r, "b", "lower right")
	assert.Equal(t, IntentFreeformQuery, other.Intent)

	stateA, _, _ := r.Session("a")
	assert.Equal(t, diagnostic.ModeDiagnostic, stateA.Mode)
	assert.Empty(t, stateA.Answers)
}

func TestEmptySessionIDCreatesSession(t *testing.T) {
	r := newTestRouter(t, &echoAnswerer{})
	reply := handle(t, r, "", "help me")
	require.NotEmpty(t, reply.SessionID)

	next := handle(t, r, reply.SessionID, "upper")
	assert.Equal(t, IntentDiagnosticAnswer, next.Intent)
}

func TestAnswererErrorPropagates(t *testing.T) {
	wantErr := fmt.Errorf("%w: model offline", chat.ErrGenerationUnavailable)
	r := newTestRouter(t, &echoAnswerer{err: wantErr})

	_, err := r.Handle(context.Background(), "s", "what is this?")
	require.Error(t, err)
	assert.True(t, errors.Is(err, chat.ErrGenerationUnavailable))
}

func TestEmptyMessageRejected(t *testing.T) {
	r := newTestRouter(t, &echoAnswerer{})
	_, err := r.Handle(context.Background(), "s", "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestRouterReset(t *testing.T) {
	r := newTestRouter(t, &echoAnswerer{})
	handle(t, r, "s", "help me")
	r.Reset("s")
	r.Reset("missing")

	state, _, ok := r.Session("s")
	require.True(t, ok)
	assert.False(t, state.Active())
}

func TestConcurrentTurnsKeepInvariant(t *testing.T) {
	groups := make([]corpus.FactorGroup, 50)
	for i := range groups {
		groups[i] = corpus.FactorGroup{GroupName: fmt.Sprintf("G%d", i), Factors: []string{"x"}}
	}
	r := NewRouter(nil, diagnostic.NewEngine(groups), &echoAnswerer{}, nil, nil)
	handle(t, r, "s", "help me")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = r.Handle(context.Background(), "s", fmt.Sprintf("answer %d", i))
		}(i)
	}
	wg.Wait()

	state, _, _ := r.Session("s")
	assert.Equal(t, 20, state.QuestionIndex)
	assert.Len(t, state.Answers, 20)
}

// gatedAnswerer blocks inside Answer until release is closed.
type gatedAnswerer struct {
	entered chan struct{}
	release chan struct{}
}

func (g *gatedAnswerer) Answer(_ context.Context, question string, memory *chat.Memory) (string, error) {
	g.entered <- struct{}{}
	<-g.release
	memory.Append(question, "slow answer")
	return "slow answer", nil
}

func TestTurnOutlastingTTLStillSerializes(t *testing.T) {
	answerer := &gatedAnswerer{entered: make(chan struct{}, 1), release: make(chan struct{})}
	groups := []corpus.FactorGroup{{GroupName: "Location", Factors: []string{"Upper"}}}
	r := NewRouter(nil, diagnostic.NewEngine(groups), answerer, NewSessionStore(80*time.Millisecond, 0), zaptest.NewLogger(t))

	first := make(chan error, 1)
	go func() {
		_, err := r.Handle(context.Background(), "s", "what is cramping?")
		first <- err
	}()
	<-answerer.entered
	time.Sleep(200 * time.Millisecond)

	second := make(chan Reply, 1)
	go func() {
		reply, _ := r.Handle(context.Background(), "s", "i have pain")
		second <- reply
	}()

	select {
	case <-second:
		t.Fatal("second turn finished while the first still held the session")
	case <-time.After(50 * time.Millisecond):
	}

	close(answerer.release)
	require.NoError(t, <-first)
	reply := <-second
	assert.Equal(t, IntentStartDiagnostic, reply.Intent)

	state, turns, ok := r.Session("s")
	require.True(t, ok)
	assert.Equal(t, diagnostic.ModeDiagnostic, state.Mode)
	assert.Len(t, state.Questions, 1)
	assert.Len(t, turns, 1)
}
