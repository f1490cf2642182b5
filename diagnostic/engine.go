// Package diagnostic walks a fixed questionnaire built from the factor groups
// of the structured corpus, one group per question.
package diagnostic

import (
	"fmt"
	"strings"

	"github.com/fabfab/symptom-agent/corpus"
)

const (
	Disclaimer = "I can ask a few questions to help narrow down the factors based on my training data. " +
		"Please remember, I am an AI assistant and not a medical professional. This is not a medical diagnosis. \n\n"

	summaryPrefix = "Thank you. Based on the information you've provided, you've mentioned factors including: "

	summarySuffix = ". This information can be useful when speaking with a healthcare professional." +
		" For more specific advice, you might ask me 'When should I see a doctor?'"

	noAnswers = "none"
)

// Engine holds the questionnaire source. It never mutates its groups; every
// Start hands the State its own copy.
type Engine struct {
	groups []corpus.FactorGroup
}

func NewEngine(groups []corpus.FactorGroup) *Engine {
	return &Engine{groups: corpus.CopyGroups(groups)}
}

func (e *Engine) Questions() int {
	return len(e.groups)
}

// Start enters diagnostic mode and returns the disclaimer followed by the
// first question. With no groups only the disclaimer is returned; corpus
// loading rejects that case before an Engine is built.
func (e *Engine) Start(s *State) string {
	*s = State{
		Mode:          ModeDiagnostic,
		QuestionIndex: 0,
		Questions:     corpus.CopyGroups(e.groups),
		Answers:       []string{},
	}

	first, _ := NextPrompt(s)
	return Disclaimer + first
}

// SubmitAnswer records text verbatim against the pending question and moves
// the cursor forward. It reports false and does nothing outside diagnostic
// mode or once every question has been answered.
func SubmitAnswer(s *State, text string) bool {
	if !s.Active() || s.QuestionIndex >= len(s.Questions) {
		return false
	}
	s.Answers = append(s.Answers, text)
	s.QuestionIndex++
	return true
}

// NextPrompt returns the pending question, or false when none remain.
func NextPrompt(s *State) (string, bool) {
	if s.QuestionIndex < 0 || s.QuestionIndex >= len(s.Questions) {
		return "", false
	}
	q := s.Questions[s.QuestionIndex]
	return fmt.Sprintf("Let's talk about '%s'. Is it any of the following? %s",
		q.GroupName, strings.Join(q.Factors, ", ")), true
}

// SummarizeAndReset renders the collected answers and returns the state to
// idle.
func SummarizeAndReset(s *State) string {
	collected := noAnswers
	if len(s.Answers) > 0 {
		collected = strings.Join(s.Answers, ", ")
	}
	s.reset()
	return summaryPrefix + collected + summarySuffix
}

func Reset(s *State) {
	s.reset()
}
