// Package knowledge mirrors the structured factor corpus into a Neo4j graph:
// a Symptom node, its FactorGroup nodes, and the Factor nodes each group lists.
package knowledge

import (
	"context"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/fabfab/symptom-agent/corpus"
)

// Graph is the node set written for one corpus version.
type Graph struct {
	Symptom   string
	SourceURL string
	Version   string
	Groups    []Group
	Emergency []string
}

type Group struct {
	Name    string
	Order   int
	Factors []string
}

// BuildGraph converts the structured corpus into graph nodes. Factor names
// are trimmed; empty ones are dropped.
func BuildGraph(fc corpus.FactorCorpus, version string) Graph {
	g := Graph{
		Symptom:   strings.TrimSpace(fc.Symptom),
		SourceURL: fc.SourceURL,
		Version:   version,
		Groups:    make([]Group, 0, len(fc.FactorGroups)),
	}
	if g.Symptom == "" {
		g.Symptom = "unspecified"
	}

	for i, fg := range fc.FactorGroups {
		factors := make([]string, 0, len(fg.Factors))
		for _, f := range fg.Factors {
			if trimmed := strings.TrimSpace(f); trimmed != "" {
				factors = append(factors, trimmed)
			}
		}
		g.Groups = append(g.Groups, Group{Name: fg.GroupName, Order: i, Factors: factors})
	}

	if fc.EmergencyInfo != nil {
		g.Emergency = append([]string(nil), fc.EmergencyInfo.Points...)
	}
	return g
}

// SyncGraph replaces the symptom's groups with the given graph in a single
// write transaction.
func SyncGraph(ctx context.Context, driver neo4j.DriverWithContext, g Graph) error {
	if driver == nil {
		return fmt.Errorf("neo4j driver is nil")
	}

	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		params := map[string]any{
			"symptom":   g.Symptom,
			"url":       g.SourceURL,
			"version":   g.Version,
			"emergency": g.Emergency,
		}

		if _, err := tx.Run(ctx, `
			MERGE (s:Symptom {name: $symptom})
			SET s.source_url = $url,
			    s.version = $version,
			    s.emergency_points = $emergency,
			    s.updated_at = datetime()
		`, params); err != nil {
			return nil, fmt.Errorf("upsert symptom node: %w", err)
		}

		if _, err := tx.Run(ctx, `
			MATCH (:Symptom {name: $symptom})-[:HAS_GROUP]->(g:FactorGroup)
			DETACH DELETE g
		`, params); err != nil {
			return nil, fmt.Errorf("clear existing factor groups: %w", err)
		}

		for _, group := range g.Groups {
			if _, err := tx.Run(ctx, `
				MATCH (s:Symptom {name: $symptom})
				CREATE (g:FactorGroup {name: $group, order: $order})
				MERGE (s)-[:HAS_GROUP {order: $order}]->(g)
				WITH g
				UNWIND $factors AS factor
				MERGE (f:Factor {name: factor})
				MERGE (g)-[:HAS_FACTOR]->(f)
			`, map[string]any{
				"symptom": g.Symptom,
				"group":   group.Name,
				"order":   group.Order,
				"factors": group.Factors,
			}); err != nil {
				return nil, fmt.Errorf("upsert factor group %q: %w", group.Name, err)
			}
		}

		return nil, nil
	})
	if err != nil {
		return err
	}

	result, err := session.Run(ctx, `
		MATCH (f:Factor)
		WHERE NOT (f)<-[:HAS_FACTOR]-(:FactorGroup)
		DELETE f
	`, nil)
	if err != nil {
		return fmt.Errorf("remove orphan factors: %w", err)
	}
	_, err = result.Consume(ctx)
	return err
}

// Purge removes every node this package writes.
func Purge(ctx context.Context, driver neo4j.DriverWithContext) error {
	if driver == nil {
		return fmt.Errorf("neo4j driver is nil")
	}

	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	for _, query := range []string{
		"MATCH (g:FactorGroup) DETACH DELETE g",
		"MATCH (f:Factor) DETACH DELETE f",
		"MATCH (s:Symptom) DETACH DELETE s",
	} {
		result, err := session.Run(ctx, query, nil)
		if err != nil {
			return err
		}
		if _, err := result.Consume(ctx); err != nil {
			return err
		}
	}
	return nil
}
