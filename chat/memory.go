package chat

// Turn is one answered freeform question.
type Turn struct {
	Question string
	Answer   string
}

// Memory is the ordered conversation history of one session. With MaxTurns
// above zero the oldest turns are evicted once the cap is exceeded. Memory is
// not safe for concurrent use; the session that owns it serializes access.
type Memory struct {
	MaxTurns int
	turns    []Turn
}

func NewMemory(maxTurns int) *Memory {
	return &Memory{MaxTurns: maxTurns}
}

func (m *Memory) Append(question, answer string) {
	m.turns = append(m.turns, Turn{Question: question, Answer: answer})
	if m.MaxTurns > 0 && len(m.turns) > m.MaxTurns {
		drop := len(m.turns) - m.MaxTurns
		m.turns = append(m.turns[:0:0], m.turns[drop:]...)
	}
}

// Turns returns a copy of the history, oldest first.
func (m *Memory) Turns() []Turn {
	return append([]Turn(nil), m.turns...)
}

func (m *Memory) Len() int {
	return len(m.turns)
}

func (m *Memory) Reset() {
	m.turns = nil
}
