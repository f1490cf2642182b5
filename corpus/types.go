// Package corpus loads the two knowledge sources and normalizes them into
// searchable documents.
package corpus

// Provenance tags the source a Document was produced from.
type Provenance string

const (
	ProvenanceGeneralQA     Provenance = "general_qa"
	ProvenanceFactorGroup   Provenance = "factor_group"
	ProvenanceEmergencyInfo Provenance = "emergency_info"
)

// Document is one normalized unit of retrievable text.
type Document struct {
	Text       string     `json:"text"`
	Provenance Provenance `json:"provenance"`
	// GroupName is set only for factor_group documents.
	GroupName string `json:"group_name,omitempty"`
}

type QAPair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type FactorGroup struct {
	GroupName string   `json:"group_name"`
	Factors   []string `json:"factors"`
}

type EmergencyInfo struct {
	Title  string   `json:"title"`
	Points []string `json:"points"`
}

// FactorCorpus is the shape written by the symptom-checker scraper.
type FactorCorpus struct {
	Symptom       string         `json:"symptom"`
	SourceURL     string         `json:"source_url"`
	FactorGroups  []FactorGroup  `json:"factor_groups"`
	EmergencyInfo *EmergencyInfo `json:"emergency_info"`
}

type Corpus struct {
	General   []QAPair
	Factors   FactorCorpus
	Documents []Document
	Version   string
}

// Snapshot returns a deep copy of the factor groups so callers can hold it
// across turns without sharing backing arrays with the corpus.
func (c *Corpus) Snapshot() []FactorGroup {
	return CopyGroups(c.Factors.FactorGroups)
}

func CopyGroups(groups []FactorGroup) []FactorGroup {
	if groups == nil {
		return nil
	}
	out := make([]FactorGroup, len(groups))
	for i, g := range groups {
		out[i] = FactorGroup{
			GroupName: g.GroupName,
			Factors:   append([]string(nil), g.Factors...),
		}
	}
	return out
}

// CountByProvenance tallies documents per provenance tag.
func CountByProvenance(docs []Document) map[Provenance]int {
	counts := make(map[Provenance]int, 3)
	for _, d := range docs {
		counts[d.Provenance]++
	}
	return counts
}
