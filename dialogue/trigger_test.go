package dialogue

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fabfab/symptom-agent/diagnostic"
)

func TestClassify(t *testing.T) {
	d := NewDetector(nil, nil)

	cases := []struct {
		text string
		mode diagnostic.Mode
		want Intent
	}{
		{"Start Over please", diagnostic.ModeIdle, IntentReset},
		{"let's START OVER", diagnostic.ModeDiagnostic, IntentReset},
		{"Can you HELP ME", diagnostic.ModeIdle, IntentStartDiagnostic},
		{"I have pain in my side", diagnostic.ModeIdle, IntentStartDiagnostic},
		{"help me figure out my symptoms", diagnostic.ModeIdle, IntentStartDiagnostic},
		{"help me", diagnostic.ModeDiagnostic, IntentDiagnosticAnswer},
		{"lower right", diagnostic.ModeDiagnostic, IntentDiagnosticAnswer},
		{"what causes cramps?", diagnostic.ModeIdle, IntentFreeformQuery},
		{"what causes cramps?", "", IntentFreeformQuery},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, d.Classify(tc.text, tc.mode), "text %q in mode %q", tc.text, tc.mode)
	}
}

func TestResetBeatsTrigger(t *testing.T) {
	d := NewDetector(nil, nil)
	assert.Equal(t, IntentReset, d.Classify("help me start over", diagnostic.ModeIdle))
	assert.Equal(t, IntentReset, d.Classify("my symptoms... start over", diagnostic.ModeDiagnostic))
}

func TestCustomPhrases(t *testing.T) {
	d := NewDetector([]string{" RESTART "}, []string{"It Hurts"})

	assert.Equal(t, IntentReset, d.Classify("please restart", diagnostic.ModeIdle))
	assert.Equal(t, IntentStartDiagnostic, d.Classify("it hurts a lot", diagnostic.ModeIdle))
	assert.Equal(t, IntentFreeformQuery, d.Classify("help me", diagnostic.ModeIdle))
}

func TestEmptyPhraseSetsFallBackToDefaults(t *testing.T) {
	d := NewDetector([]string{"  "}, []string{})
	assert.Equal(t, IntentReset, d.Classify("start over", diagnostic.ModeIdle))
	assert.Equal(t, IntentStartDiagnostic, d.Classify("figure out", diagnostic.ModeIdle))
}

func TestIntentString(t *testing.T) {
	assert.Equal(t, "reset", IntentReset.String())
	assert.Equal(t, "start_diagnostic", IntentStartDiagnostic.String())
	assert.Equal(t, "diagnostic_answer", IntentDiagnosticAnswer.String())
	assert.Equal(t, "freeform_query", IntentFreeformQuery.String())
}
