package diagnostic

import "github.com/fabfab/symptom-agent/corpus"

type Mode string

const (
	ModeIdle       Mode = "idle"
	ModeDiagnostic Mode = "diagnostic"
)

// State is the questionnaire cursor of one conversation. The zero value is
// an idle session. While Mode is diagnostic, len(Answers) == QuestionIndex.
type State struct {
	Mode          Mode
	QuestionIndex int
	Questions     []corpus.FactorGroup
	Answers       []string
}

func (s *State) Active() bool {
	return s.Mode == ModeDiagnostic
}

// Clone returns a deep copy safe to hand out for inspection.
func (s *State) Clone() State {
	mode := s.Mode
	if mode == "" {
		mode = ModeIdle
	}
	return State{
		Mode:          mode,
		QuestionIndex: s.QuestionIndex,
		Questions:     corpus.CopyGroups(s.Questions),
		Answers:       append([]string(nil), s.Answers...),
	}
}

func (s *State) reset() {
	*s = State{Mode: ModeIdle}
}
