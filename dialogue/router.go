// Package dialogue routes each incoming message to the questionnaire or to
// retrieval-augmented answering, keeping per-session state between turns.
package dialogue

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fabfab/symptom-agent/chat"
	"github.com/fabfab/symptom-agent/diagnostic"
	"github.com/fabfab/symptom-agent/logging"
)

const ResetAcknowledgment = "Ok, let's start over. How can I help you?"

var ErrEmptyMessage = errors.New("message text is empty")

// Answerer produces a freeform answer and records the turn in memory.
type Answerer interface {
	Answer(ctx context.Context, question string, memory *chat.Memory) (string, error)
}

type Reply struct {
	SessionID string
	Intent    Intent
	Response  string
}

type Router struct {
	detector *Detector
	engine   *diagnostic.Engine
	answerer Answerer
	sessions *SessionStore
	logger   *zap.Logger
}

func NewRouter(detector *Detector, engine *diagnostic.Engine, answerer Answerer, sessions *SessionStore, logger *zap.Logger) *Router {
	if detector == nil {
		detector = NewDetector(nil, nil)
	}
	if sessions == nil {
		sessions = NewSessionStore(0, 0)
	}
	return &Router{
		detector: detector,
		engine:   engine,
		answerer: answerer,
		sessions: sessions,
		logger:   logging.OrNop(logger),
	}
}

// Handle processes one message for sessionID and produces exactly one
// response. An empty sessionID starts a new session; the reply carries the id
// to send on later turns. Answerer errors are returned unchanged.
func (r *Router) Handle(ctx context.Context, sessionID, text string) (Reply, error) {
	if strings.TrimSpace(text) == "" {
		return Reply{}, ErrEmptyMessage
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	sess, created := r.sessions.Acquire(sessionID)
	defer r.sessions.Release(sess)
	if created {
		r.logger.Debug("session created", zap.String("session", sessionID), zap.Int("sessions", r.sessions.Len()))
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	lowered := strings.ToLower(text)
	intent := r.detector.Classify(lowered, sess.State.Mode)
	reply := Reply{SessionID: sessionID, Intent: intent}

	log := r.logger.With(zap.String("session", sessionID), zap.Stringer("intent", intent))

	switch intent {
	case IntentReset:
		diagnostic.Reset(&sess.State)
		sess.Memory.Reset()
		reply.Response = ResetAcknowledgment

	case IntentDiagnosticAnswer:
		diagnostic.SubmitAnswer(&sess.State, lowered)
		if prompt, ok := diagnostic.NextPrompt(&sess.State); ok {
			reply.Response = prompt
		} else {
			answered := len(sess.State.Answers)
			reply.Response = diagnostic.SummarizeAndReset(&sess.State)
			log.Info("questionnaire completed", zap.Int("answers", answered))
		}

	case IntentStartDiagnostic:
		if r.engine == nil {
			return Reply{}, errors.New("diagnostic engine is not configured")
		}
		reply.Response = r.engine.Start(&sess.State)
		log.Info("questionnaire started", zap.Int("questions", len(sess.State.Questions)))

	default:
		if r.answerer == nil {
			return Reply{}, errors.New("answerer is not configured")
		}
		answer, err := r.answerer.Answer(ctx, text, sess.Memory)
		if err != nil {
			log.Warn("freeform answer failed", zap.Error(err))
			return Reply{}, err
		}
		reply.Response = answer
	}

	log.Debug("handled message")
	return reply, nil
}

// Reset clears a session as the reset phrase would.
func (r *Router) Reset(sessionID string) {
	sess, ok := r.sessions.Get(sessionID)
	if !ok {
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	diagnostic.Reset(&sess.State)
	sess.Memory.Reset()
}

// Session returns a copy of the session's questionnaire state and history.
func (r *Router) Session(sessionID string) (diagnostic.State, []chat.Turn, bool) {
	sess, ok := r.sessions.Get(sessionID)
	if !ok {
		return diagnostic.State{}, nil, false
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.State.Clone(), sess.Memory.Turns(), true
}
