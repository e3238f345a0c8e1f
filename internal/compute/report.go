package compute

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sprintpulse/sprintpulse/internal/config"
)

// Assembler builds board reports from an Aggregator.
type Assembler struct {
	agg         *Aggregator
	concurrency int

	now   func() time.Time
	runID func() string
}

// NewAssembler returns an Assembler computing up to concurrency boards at
// once. Values below 1 mean sequential.
func NewAssembler(agg *Aggregator, concurrency int) *Assembler {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Assembler{
		agg:         agg,
		concurrency: concurrency,
		now:         func() time.Time { return time.Now().UTC() },
		runID:       func() string { return uuid.NewString() },
	}
}

// BuildReport computes a single board's report under a fresh run id.
func (a *Assembler) BuildReport(ctx context.Context, board config.Board) (*BoardReport, error) {
	return a.build(ctx, board, a.runID(), a.now())
}

// BuildReports computes every board under one run id and returns the
// reports in input order. The first failing board aborts the run and no
// reports are returned.
func (a *Assembler) BuildReports(ctx context.Context, boards []config.Board) ([]*BoardReport, error) {
	runID, started := a.runID(), a.now()
	log := slog.With("run", runID)
	log.Info("compute: building reports", "boards", len(boards), "concurrency", a.concurrency)

	reports := make([]*BoardReport, len(boards))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)

	for i, b := range boards {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			log.Info("compute: running board", "board", b.Name, "id", b.ID)
			r, err := a.build(gctx, b, runID, started)
			if err != nil {
				return fmt.Errorf("board %q (%d): %w", b.Name, b.ID, err)
			}
			reports[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.Info("compute: reports built", "boards", len(reports), "elapsed", a.now().Sub(started))
	return reports, nil
}

func (a *Assembler) build(ctx context.Context, board config.Board, runID string, at time.Time) (*BoardReport, error) {
	v, err := a.agg.ComputeBoardVelocity(ctx, board.ID)
	if err != nil {
		return nil, err
	}
	return &BoardReport{
		RunID:         runID,
		GeneratedAt:   at,
		Board:         board,
		BoardVelocity: *v,
	}, nil
}
