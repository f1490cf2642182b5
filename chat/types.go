package chat

import "errors"

var (
	// ErrGenerationUnavailable is returned when the language model cannot
	// produce an answer. Callers surface it; there is no canned fallback.
	ErrGenerationUnavailable = errors.New("generation unavailable")
	// ErrRetrievalUnavailable is returned when the knowledge index fails.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")
)

// RelatedGroup is a factor group that shares at least one factor with a
// retrieved group.
type RelatedGroup struct {
	Name          string
	SharedFactors []string
}

type Config struct {
	TopK              int
	CondenseQuestions bool
}
