package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/chainwatch/internal/domain"
	"github.com/hamed0406/chainwatch/internal/probe"
	"github.com/hamed0406/chainwatch/internal/repo"
	"github.com/hamed0406/chainwatch/internal/status"
)

// CycleReport summarizes one completed check cycle.
type CycleReport struct {
	Started      time.Time
	Selected     int
	Succeeded    int
	Failed       int
	CommitErrors int
	Elapsed      time.Duration
}

// Runner drives periodic check cycles: select due endpoints, probe them with
// bounded parallelism, then commit one Check plus a status update per
// endpoint. At most one cycle runs at a time; a tick that arrives while a
// cycle is still running is skipped.
type Runner struct {
	Logger     *zap.Logger
	Catalog    repo.CatalogStore
	Checks     repo.CheckStore
	Statuses   repo.StatusStore
	Aggregator *status.Aggregator
	Prober     probe.Prober

	Interval    time.Duration // tick interval
	Timeout     time.Duration // per-probe timeout
	Concurrency int
	BatchLimit  int

	// DefaultCheckInterval applies to networks without an override.
	DefaultCheckInterval time.Duration

	// Bounded retry for check appends.
	Retries int
	Backoff time.Duration

	cycleMu sync.Mutex
}

func NewRunner(
	logger *zap.Logger,
	catalog repo.CatalogStore,
	checks repo.CheckStore,
	statuses repo.StatusStore,
	agg *status.Aggregator,
	prober probe.Prober,
	interval, timeout time.Duration,
	concurrency, batchLimit int,
) *Runner {
	if concurrency < 1 {
		concurrency = 1
	}
	if batchLimit < 1 {
		batchLimit = 1
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Runner{
		Logger:               logger,
		Catalog:              catalog,
		Checks:               checks,
		Statuses:             statuses,
		Aggregator:           agg,
		Prober:               prober,
		Interval:             interval,
		Timeout:              timeout,
		Concurrency:          concurrency,
		BatchLimit:           batchLimit,
		DefaultCheckInterval: interval,
	}
}

// Run starts the loop. It does an immediate pass, then runs each tick.
// Stops when ctx is cancelled.
func (r *Runner) Run(ctx context.Context) {
	if r.Interval <= 0 {
		r.Logger.Info("runner_disabled")
		return
	}
	t := time.NewTicker(r.Interval)
	defer t.Stop()

	r.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			r.Logger.Info("runner_stopped")
			return
		case <-t.C:
			r.tick(ctx)
		}
	}
}

// tick runs one cycle unless one is already in flight.
func (r *Runner) tick(ctx context.Context) {
	if !r.cycleMu.TryLock() {
		r.Logger.Warn("cycle_overlap_skipped")
		return
	}
	defer r.cycleMu.Unlock()

	rep, err := r.RunCycle(ctx, time.Now().UTC())
	if err != nil {
		// store unreachable or similar; the loop self-heals on the next tick
		r.Logger.Error("cycle_failed", zap.Error(err))
		return
	}
	r.Logger.Info("cycle_done",
		zap.Int("selected", rep.Selected),
		zap.Int("succeeded", rep.Succeeded),
		zap.Int("failed", rep.Failed),
		zap.Int("commit_errors", rep.CommitErrors),
		zap.Duration("elapsed", rep.Elapsed),
	)
}

type probeResult struct {
	row repo.EndpointRow
	out probe.Outcome
}

// RunCycle performs one Selecting -> Dispatching -> Collecting -> Committing
// pass. Individual endpoint failures degrade to error outcomes; only a
// selection-level store failure aborts the cycle.
func (r *Runner) RunCycle(ctx context.Context, now time.Time) (CycleReport, error) {
	rep := CycleReport{Started: now}
	start := time.Now()

	batch, err := r.selectDue(ctx, now)
	if err != nil {
		return rep, fmt.Errorf("select endpoints: %w", err)
	}
	rep.Selected = len(batch)
	if len(batch) == 0 {
		rep.Elapsed = time.Since(start)
		return rep, nil
	}

	results := r.dispatch(ctx, batch)

	r.commit(ctx, results, now, &rep)
	rep.Elapsed = time.Since(start)
	return rep, nil
}

// selectDue returns enabled endpoints whose network interval has elapsed
// since their last check, capped at the batch limit.
func (r *Runner) selectDue(ctx context.Context, now time.Time) ([]repo.EndpointRow, error) {
	rows, err := r.Catalog.ListEnabledEndpoints(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]domain.EndpointID, len(rows))
	for i, row := range rows {
		ids[i] = row.Endpoint.ID
	}
	statuses, err := r.Statuses.ListStatuses(ctx, ids)
	if err != nil {
		return nil, err
	}

	var due []repo.EndpointRow
	for _, row := range rows {
		interval := row.Network.CheckInterval
		if interval <= 0 {
			interval = r.DefaultCheckInterval
		}
		st := statuses[row.Endpoint.ID]
		if st != nil && now.Sub(st.CheckedAt) < interval {
			continue
		}
		due = append(due, row)
		if len(due) >= r.BatchLimit {
			break
		}
	}
	return due, nil
}

// dispatch probes the batch with bounded concurrency and waits for every
// probe to settle. A panic inside one probe becomes an unknown_error outcome
// for that endpoint only.
func (r *Runner) dispatch(ctx context.Context, batch []repo.EndpointRow) []probeResult {
	sem := make(chan struct{}, r.Concurrency)
	var wg sync.WaitGroup
	results := make([]probeResult, len(batch))

	for i, row := range batch {
		i, row := i, row
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer func() { <-sem }()
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					r.Logger.Error("probe_panic",
						zap.String("endpoint_id", string(row.Endpoint.ID)),
						zap.Any("panic", rec),
					)
					results[i] = probeResult{row: row, out: probe.Outcome{
						ErrorKind:   domain.ErrUnknown,
						ErrorDetail: fmt.Sprintf("probe panic: %v", rec),
					}}
				}
			}()

			cctx, cancel := context.WithTimeout(ctx, r.Timeout)
			defer cancel()

			out := r.Prober.Probe(cctx, probe.Target{
				URL:     row.Endpoint.URL,
				Kind:    row.Endpoint.Kind,
				ChainID: row.Network.ChainID,
			})
			results[i] = probeResult{row: row, out: out}
		}()
	}

	wg.Wait()
	return results
}

// commit writes one Check per result and applies each outcome to the
// aggregator. Writes keep going through shutdown so no endpoint ends up with
// a half-written cycle; a store failure for one endpoint is logged and does
// not abort the rest.
func (r *Runner) commit(ctx context.Context, results []probeResult, now time.Time, rep *CycleReport) {
	wctx := context.WithoutCancel(ctx)

	maxHeights := maxHeightPerNetwork(results)

	for _, res := range results {
		if res.out.Success {
			rep.Succeeded++
		} else {
			rep.Failed++
		}

		check := &domain.Check{
			EndpointID:  res.row.Endpoint.ID,
			Success:     res.out.Success,
			HTTPStatus:  res.out.HTTPStatus,
			LatencyMS:   res.out.LatencyMS,
			BlockHeight: res.out.BlockHeight,
			BlockTime:   res.out.BlockTime,
			ErrorKind:   res.out.ErrorKind,
			ErrorDetail: res.out.ErrorDetail,
			CheckedAt:   now,
		}
		if err := r.appendWithRetry(wctx, check); err != nil {
			rep.CommitErrors++
			r.Logger.Warn("check_append_error",
				zap.String("endpoint_id", string(res.row.Endpoint.ID)),
				zap.String("url", res.row.Endpoint.URL),
				zap.Error(err),
			)
			// no status update without its check row
			continue
		}

		if _, err := r.Aggregator.Apply(wctx, res.row, res.out, maxHeights[res.row.Network.ID], now); err != nil {
			rep.CommitErrors++
			r.Logger.Warn("status_apply_error",
				zap.String("endpoint_id", string(res.row.Endpoint.ID)),
				zap.Error(err),
			)
			continue
		}

		r.Logger.Debug("endpoint_checked",
			zap.String("endpoint_id", string(res.row.Endpoint.ID)),
			zap.String("url", res.row.Endpoint.URL),
			zap.Bool("success", res.out.Success),
			zap.Float64("latency_ms", res.out.LatencyMS),
			zap.String("error_kind", string(res.out.ErrorKind)),
		)
	}
}

// maxHeightPerNetwork finds the freshest height observed per network in this
// cycle; sibling delay is computed against it.
func maxHeightPerNetwork(results []probeResult) map[domain.NetworkID]*int64 {
	out := make(map[domain.NetworkID]*int64)
	for _, res := range results {
		if res.out.BlockHeight == nil {
			continue
		}
		cur := out[res.row.Network.ID]
		if cur == nil || *res.out.BlockHeight > *cur {
			h := *res.out.BlockHeight
			out[res.row.Network.ID] = &h
		}
	}
	return out
}

func (r *Runner) appendWithRetry(ctx context.Context, c *domain.Check) error {
	var err error
	for attempt := 0; attempt <= r.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.Backoff):
			}
		}
		if err = r.Checks.AppendCheck(ctx, c); err == nil {
			return nil
		}
	}
	return fmt.Errorf("append check after %d attempts: %w", r.Retries+1, err)
}
