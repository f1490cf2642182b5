package corpus

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Normalize turns both sources into one ordered document list: Q&A pairs,
// then factor groups, then the emergency block if present.
func Normalize(general []QAPair, factors FactorCorpus) []Document {
	docs := make([]Document, 0, len(general)+len(factors.FactorGroups)+1)

	for _, item := range general {
		docs = append(docs, Document{
			Text:       fmt.Sprintf("Question: %s\nAnswer: %s", item.Question, item.Answer),
			Provenance: ProvenanceGeneralQA,
		})
	}

	for _, group := range factors.FactorGroups {
		docs = append(docs, Document{
			Text: fmt.Sprintf("Regarding the topic '%s', the related factors or characteristics are: %s.",
				group.GroupName, strings.Join(group.Factors, ", ")),
			Provenance: ProvenanceFactorGroup,
			GroupName:  group.GroupName,
		})
	}

	if factors.EmergencyInfo != nil {
		docs = append(docs, Document{
			Text:       "Emergency medical care should be sought if: " + strings.Join(factors.EmergencyInfo.Points, "; "),
			Provenance: ProvenanceEmergencyInfo,
		})
	}

	return docs
}

// Version hashes the normalized documents. Two corpora with the same
// documents in the same order share a version.
func Version(docs []Document) string {
	h := sha256.New()
	for _, d := range docs {
		h.Write([]byte(d.Provenance))
		h.Write([]byte{0})
		h.Write([]byte(d.GroupName))
		h.Write([]byte{0})
		h.Write([]byte(d.Text))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
