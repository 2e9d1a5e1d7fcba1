package app

import (
	"context"

	"github.com/turtacn/TechIntel/internal/config"
	"github.com/turtacn/TechIntel/internal/infrastructure/database/neo4j"
	"github.com/turtacn/TechIntel/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TechIntel/internal/infrastructure/storage/minio"
	"github.com/turtacn/TechIntel/internal/interfaces/cli"
	"github.com/turtacn/TechIntel/pkg/errors"
)

// OpenSource connects to the payload source named kind for a single CLI
// comparison.  The source's own enabled flag is ignored: naming it is
// enough.
func OpenSource(ctx context.Context, kind string, cfg *config.Config, log logging.Logger) (cli.SnapshotSource, func() error, error) {
	switch kind {
	case cli.SourceMinIO:
		c, err := minio.NewClient(ctx, cfg.MinIO, log)
		if err != nil {
			return nil, nil, err
		}
		return minio.NewPayloadStore(c, cfg.MinIO, log), c.Close, nil

	case cli.SourceNeo4j:
		d, err := neo4j.NewDriver(ctx, cfg.Neo4j, log)
		if err != nil {
			return nil, nil, err
		}
		g, err := neo4j.NewGraphSource(d, cfg.Neo4j.MaxDepth, log, nil)
		if err != nil {
			_ = d.Close()
			return nil, nil, err
		}
		return g, d.Close, nil
	}
	return nil, nil, errors.Newf(errors.ErrCodeBadRequest, "unknown source %q", kind)
}

// CommandDependencies returns the production wiring of the CLI.
func CommandDependencies() cli.CommandDependencies {
	return cli.CommandDependencies{
		NewBackend: cli.NewClient,
		OpenSource: OpenSource,
		Serve:      Run,
	}
}
