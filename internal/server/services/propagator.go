package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dmitrijs2005/cartographer/internal/common"
	"github.com/dmitrijs2005/cartographer/internal/logging"
	"github.com/dmitrijs2005/cartographer/internal/metrics"
	"github.com/dmitrijs2005/cartographer/internal/server/models"
	"golang.org/x/sync/errgroup"
)

// Propagator pushes a map's publish flag to the external records referenced
// by its components. It stops at the first failure and never undoes records
// already updated.
type Propagator struct {
	archive     ArchivalClient
	concurrency int
	logger      logging.Logger
}

// NewPropagator returns a Propagator running up to concurrency updates at
// once; values below 1 mean sequential.
func NewPropagator(archive ArchivalClient, concurrency int, logger logging.Logger) *Propagator {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Propagator{archive: archive, concurrency: concurrency, logger: logger.With("module", "propagator")}
}

// Propagate sets publish on every referenced record, in order index order.
// The returned *common.PropagationError names the failing record; with
// parallel updates it is the earliest failing record in that order.
func (p *Propagator) Propagate(ctx context.Context, publish bool, components []*models.Component) error {
	targets := propagationTargets(components)
	if len(targets) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	var (
		mu       sync.Mutex
		failedAt = -1
		failure  error
		updated  int
		done     = make([]bool, len(targets))
	)
	for i, c := range targets {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				// an earlier record already failed
				return nil
			}
			if err := p.push(gctx, c.ArchivesSpaceURI, publish); err != nil {
				if errors.Is(err, context.Canceled) && gctx.Err() != nil && ctx.Err() == nil {
					// cut short by another record's failure
					return nil
				}
				mu.Lock()
				if failedAt == -1 || i < failedAt {
					failedAt, failure = i, err
				}
				mu.Unlock()
				return err
			}
			mu.Lock()
			updated++
			done[i] = true
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if failedAt == -1 && updated < len(targets) {
		// the caller gave up before every record was reached
		for i := range done {
			if !done[i] {
				failedAt, failure = i, fmt.Errorf("%w: %w", common.ErrorExternalSystem, ctx.Err())
				break
			}
		}
	}

	metrics.PropagatedRecords.Add(float64(updated))
	if failedAt == -1 {
		metrics.Propagations.WithLabelValues(metrics.StatusOK).Inc()
		p.logger.Info(ctx, "publish propagated", "records", updated, "publish", publish)
		return nil
	}

	metrics.Propagations.WithLabelValues(metrics.StatusError).Inc()
	ref := targets[failedAt].ArchivesSpaceURI
	p.logger.Error(ctx, "publish propagation stopped", "uri", ref, "updated", updated, "error", failure)
	return &common.PropagationError{Ref: ref, Err: failure}
}

func (p *Propagator) push(ctx context.Context, uri string, publish bool) error {
	rec, err := p.archive.Fetch(ctx, uri)
	if err != nil {
		return fmt.Errorf("%w: fetch %s: %w", common.ErrorExternalSystem, uri, err)
	}
	if rec == nil {
		return fmt.Errorf("%w: fetch %s: empty record", common.ErrorExternalSystem, uri)
	}
	rec["publish"] = publish
	if err := p.archive.Update(ctx, uri, rec); err != nil {
		return fmt.Errorf("%w: update %s: %w", common.ErrorExternalSystem, uri, err)
	}
	return nil
}

// propagationTargets keeps components with a reference, ordered by order
// index then id.
func propagationTargets(components []*models.Component) []*models.Component {
	var out []*models.Component
	for _, c := range components {
		if c.ArchivesSpaceURI != "" {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TreeIndex != out[j].TreeIndex {
			return out[i].TreeIndex < out[j].TreeIndex
		}
		return out[i].ID < out[j].ID
	})
	return out
}
