package tracking

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/TechIntel/internal/domain/payload"
	"github.com/turtacn/TechIntel/internal/domain/readiness"
	pkgerrors "github.com/turtacn/TechIntel/pkg/errors"
)

const fetchConcurrency = 8

// FetchAll fetches every technology once, creating missing ones when
// createIfMissing is set, and returns them in the order given.  A
// technology that is still processing, missing or unreadable is recorded as
// skipped in the snapshot; FetchAll fails only when none could be fetched or
// ctx ends.
func FetchAll(ctx context.Context, backend Backend, createIfMissing bool, techs ...string) (payload.Snapshot, error) {
	names := make([]string, len(techs))
	for i, tech := range techs {
		names[i] = strings.TrimSpace(tech)
		if names[i] == "" {
			return payload.Snapshot{}, ErrEmptyName
		}
	}

	loaded := make([]payload.Payload, len(names))
	errs := make([]error, len(names))
	var g errgroup.Group
	g.SetLimit(fetchConcurrency)
	for i, tech := range names {
		i, tech := i, tech
		g.Go(func() error {
			loaded[i], errs[i] = fetchOne(ctx, backend, createIfMissing, tech)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return payload.Snapshot{}, err
	}
	return payload.Collect(names, loaded, errs)
}

func fetchOne(ctx context.Context, backend Backend, createIfMissing bool, tech string) (payload.Payload, error) {
	var o readiness.Observation
	if createIfMissing {
		body, err := backend.FetchTechnology(ctx, tech)
		o = observationFromFetch(body, err)
	} else {
		resp, err := backend.TechnologyStatus(ctx, tech)
		if err != nil {
			o = readiness.Observation{Err: err}
		} else {
			o = readiness.Observation{StatusCode: resp.StatusCode, Body: resp.Body}
		}
	}

	switch readiness.Classify(o) {
	case readiness.Ready:
		p, err := payload.Decode(o.Body)
		if err != nil {
			return payload.Payload{}, pkgerrors.Wrap(err, pkgerrors.ErrCodePayloadDecodeFailed, "decode payload").WithDetail(tech)
		}
		return p, nil
	case readiness.Processing:
		return payload.Payload{}, ErrNotReady.WithDetail(tech + " is processing")
	default:
		if o.Err != nil {
			return payload.Payload{}, pkgerrors.Wrap(o.Err, pkgerrors.ErrCodeDataSourceUnavailable, "backend unreachable").WithDetail(tech)
		}
		return payload.Payload{}, pkgerrors.New(pkgerrors.ErrCodeTechnologyMissing, "technology is missing").WithDetail(tech)
	}
}
