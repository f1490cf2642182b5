package dialogue

import (
	"strings"

	"github.com/fabfab/symptom-agent/diagnostic"
)

type Intent int

const (
	IntentFreeformQuery Intent = iota
	IntentReset
	IntentStartDiagnostic
	IntentDiagnosticAnswer
)

func (i Intent) String() string {
	switch i {
	case IntentReset:
		return "reset"
	case IntentStartDiagnostic:
		return "start_diagnostic"
	case IntentDiagnosticAnswer:
		return "diagnostic_answer"
	default:
		return "freeform_query"
	}
}

var (
	DefaultResetPhrases   = []string{"start over"}
	DefaultTriggerPhrases = []string{"help me", "i have pain", "figure out", "my symptoms"}
)

// Detector classifies messages by case-insensitive substring match against
// two phrase sets.
type Detector struct {
	resetPhrases   []string
	triggerPhrases []string
}

// NewDetector normalizes the phrase sets. An empty set falls back to the
// defaults.
func NewDetector(resetPhrases, triggerPhrases []string) *Detector {
	d := &Detector{
		resetPhrases:   normalizePhrases(resetPhrases),
		triggerPhrases: normalizePhrases(triggerPhrases),
	}
	if len(d.resetPhrases) == 0 {
		d.resetPhrases = normalizePhrases(DefaultResetPhrases)
	}
	if len(d.triggerPhrases) == 0 {
		d.triggerPhrases = normalizePhrases(DefaultTriggerPhrases)
	}
	return d
}

// Classify applies, in order: reset phrases in any mode; any message while a
// questionnaire is running is an answer; trigger phrases; otherwise freeform.
func (d *Detector) Classify(text string, mode diagnostic.Mode) Intent {
	lowered := strings.ToLower(text)

	if containsAny(lowered, d.resetPhrases) {
		return IntentReset
	}
	if mode == diagnostic.ModeDiagnostic {
		return IntentDiagnosticAnswer
	}
	if containsAny(lowered, d.triggerPhrases) {
		return IntentStartDiagnostic
	}
	return IntentFreeformQuery
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

func normalizePhrases(phrases []string) []string {
	out := make([]string, 0, len(phrases))
	for _, p := range phrases {
		if trimmed := strings.ToLower(strings.TrimSpace(p)); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
