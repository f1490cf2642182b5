package chat

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type GraphStore interface {
	RelatedGroups(ctx context.Context, groupNames []string) (map[string][]RelatedGroup, error)
}

type Neo4jGraphStore struct {
	driver neo4j.DriverWithContext
}

func NewNeo4jGraphStore(driver neo4j.DriverWithContext) *Neo4jGraphStore {
	return &Neo4jGraphStore{driver: driver}
}

func (s *Neo4jGraphStore) RelatedGroups(ctx context.Context, groupNames []string) (map[string][]RelatedGroup, error) {
	if s.driver == nil {
		return nil, fmt.Errorf("neo4j driver is nil")
	}
	if len(groupNames) == 0 {
		return map[string][]RelatedGroup{}, nil
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (g:FactorGroup)-[:HAS_FACTOR]->(f:Factor)<-[:HAS_FACTOR]-(other:FactorGroup)
		WHERE g.name IN $names AND other.name <> g.name
		WITH g.name AS name, other.name AS related, collect(DISTINCT f.name) AS shared, other.order AS ord
		ORDER BY name, ord
		RETURN name, related, shared
	`, map[string]any{"names": groupNames})
	if err != nil {
		return nil, fmt.Errorf("run neo4j related groups query: %w", err)
	}

	related := make(map[string][]RelatedGroup, len(groupNames))
	for result.Next(ctx) {
		record := result.Record()
		nameVal, _ := record.Get("name")
		relatedVal, _ := record.Get("related")
		sharedVal, _ := record.Get("shared")

		name, ok := nameVal.(string)
		if !ok {
			continue
		}
		other, ok := relatedVal.(string)
		if !ok || other == "" {
			continue
		}
		related[name] = append(related[name], RelatedGroup{
			Name:          other,
			SharedFactors: convertStringSlice(sharedVal),
		})
	}

	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("neo4j related groups result error: %w", err)
	}

	return related, nil
}

var _ GraphStore = (*Neo4jGraphStore)(nil)

func convertStringSlice(value any) []string {
	raw, ok := value.([]any)
	if !ok {
		if v, ok := value.([]string); ok {
			return v
		}
		return nil
	}

	result := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok && s != "" {
			result = append(result, s)
		}
	}
	return result
}
