package corpus

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrStartupData marks a missing or malformed input file. The process cannot
// start without both sources.
var ErrStartupData = errors.New("startup data error")

func LoadGeneral(path string) ([]QAPair, error) {
	var pairs []QAPair
	if err := readJSON(path, &pairs); err != nil {
		return nil, err
	}
	for i, p := range pairs {
		if strings.TrimSpace(p.Question) == "" || strings.TrimSpace(p.Answer) == "" {
			return nil, fmt.Errorf("%w: %s: entry %d needs both question and answer", ErrStartupData, path, i)
		}
	}
	return pairs, nil
}

func LoadFactors(path string) (FactorCorpus, error) {
	var fc FactorCorpus
	if err := readJSON(path, &fc); err != nil {
		return FactorCorpus{}, err
	}
	if len(fc.FactorGroups) == 0 {
		return FactorCorpus{}, fmt.Errorf("%w: %s: no factor groups", ErrStartupData, path)
	}

	seen := make(map[string]struct{}, len(fc.FactorGroups))
	for i, g := range fc.FactorGroups {
		if strings.TrimSpace(g.GroupName) == "" {
			return FactorCorpus{}, fmt.Errorf("%w: %s: factor group %d has no name", ErrStartupData, path, i)
		}
		if len(g.Factors) == 0 {
			return FactorCorpus{}, fmt.Errorf("%w: %s: factor group %q has no factors", ErrStartupData, path, g.GroupName)
		}
		if _, dup := seen[g.GroupName]; dup {
			return FactorCorpus{}, fmt.Errorf("%w: %s: duplicate factor group %q", ErrStartupData, path, g.GroupName)
		}
		seen[g.GroupName] = struct{}{}
	}
	return fc, nil
}

// Load reads both sources and normalizes them.
func Load(generalPath, factorPath string) (*Corpus, error) {
	general, err := LoadGeneral(generalPath)
	if err != nil {
		return nil, err
	}
	factors, err := LoadFactors(factorPath)
	if err != nil {
		return nil, err
	}

	docs := Normalize(general, factors)
	return &Corpus{
		General:   general,
		Factors:   factors,
		Documents: docs,
		Version:   Version(docs),
	}, nil
}

func readJSON(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: read %s: %w", ErrStartupData, path, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: decode %s: %w", ErrStartupData, path, err)
	}
	return nil
}
