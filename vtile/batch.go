package vtile

import (
	"context"
	"runtime"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/paulmach/orb/maptile"
	"golang.org/x/sync/errgroup"
)

// Sink receives every built tile. It is called from worker goroutines and
// must be safe for concurrent use.
type Sink func(*Result) error

// BuildTiles builds tiles on up to workers goroutines and hands each result
// to sink. The context is checked between tiles; a tile in progress always
// runs to completion. The first sink or build error cancels the rest.
func BuildTiles(ctx context.Context, gen *Generator, tiles []maptile.Tile, workers int, sink Sink) (Stats, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	var (
		mu    sync.Mutex
		total Stats
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, t := range tiles {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := gen.Build(t)
			if err != nil {
				return err
			}

			mu.Lock()
			total.Add(res.Stats)
			mu.Unlock()

			if err := sink(res); err != nil {
				return errors.Wrapf(err, "writing tile %d/%d/%d", t.Z, t.X, t.Y)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return total, err
	}
	return total, ctx.Err()
}
