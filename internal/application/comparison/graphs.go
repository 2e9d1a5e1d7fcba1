package comparison

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/TechIntel/internal/domain/knowledge"
	"github.com/turtacn/TechIntel/internal/domain/payload"
	"github.com/turtacn/TechIntel/internal/infrastructure/monitoring/logging"
)

const graphFillConcurrency = 4

// GraphLoader supplies a technology's knowledge graph from a graph store.
// The neo4j GraphSource implements it.
type GraphLoader interface {
	LoadGraphPayload(ctx context.Context, tech string) (payload.Payload, error)
}

// fillGraphs gives every technology whose payload carries no graph nodes the
// graph held by the store.  Technologies the store cannot supply keep their
// payload unchanged.
func (s *Service) fillGraphs(ctx context.Context, snap payload.Snapshot) payload.Snapshot {
	entities := snap.Entities()
	filled := make([]map[string]interface{}, len(entities))

	var g errgroup.Group
	g.SetLimit(graphFillConcurrency)
	for i, e := range entities {
		if kg, _ := knowledge.FromPayload(e.Payload); len(kg.Nodes) > 0 {
			continue
		}
		i, name := i, e.Name
		g.Go(func() error {
			p, err := s.graphs.LoadGraphPayload(ctx, name)
			if err != nil {
				s.logger.Debug("No stored graph", logging.String("technology", name), logging.Err(err))
				return nil
			}
			filled[i], _ = p.KnowledgeGraph()
			return nil
		})
	}
	_ = g.Wait()

	for i, e := range entities {
		if filled[i] != nil {
			snap = snap.With(e.Name, e.Payload.WithKnowledgeGraph(filled[i]))
		}
	}
	return snap
}
