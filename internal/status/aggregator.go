package status

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/chainwatch/internal/domain"
	"github.com/hamed0406/chainwatch/internal/probe"
	"github.com/hamed0406/chainwatch/internal/repo"
)

// Aggregator reduces raw probe outcomes into the per-endpoint current
// status. Writes for the same endpoint are serialized; different endpoints
// proceed concurrently.
type Aggregator struct {
	Statuses repo.StatusStore
	Log      *zap.Logger

	// Fallbacks when the network has no override.
	DefaultStaleAfter  time.Duration
	DefaultMaxBlockLag int64

	// Bounded retry for status upserts.
	Retries int
	Backoff time.Duration

	mu   sync.Mutex
	keys map[domain.EndpointID]*sync.Mutex
}

func NewAggregator(statuses repo.StatusStore, log *zap.Logger, staleAfter time.Duration, maxLag int64, retries int, backoff time.Duration) *Aggregator {
	if retries < 0 {
		retries = 0
	}
	return &Aggregator{
		Statuses:           statuses,
		Log:                log,
		DefaultStaleAfter:  staleAfter,
		DefaultMaxBlockLag: maxLag,
		Retries:            retries,
		Backoff:            backoff,
		keys:               make(map[domain.EndpointID]*sync.Mutex),
	}
}

// Apply computes the new EndpointStatus for one outcome and upserts it.
// maxSiblingHeight is the highest block height observed on the same network
// in this cycle (nil when no sibling reported one). An outcome older than
// the stored status is dropped, never applied; the stored status is
// returned unchanged in that case.
func (a *Aggregator) Apply(ctx context.Context, row repo.EndpointRow, out probe.Outcome, maxSiblingHeight *int64, now time.Time) (*domain.EndpointStatus, error) {
	lock := a.keyLock(row.Endpoint.ID)
	lock.Lock()
	defer lock.Unlock()

	cur, err := a.Statuses.GetStatus(ctx, row.Endpoint.ID)
	if err != nil {
		return nil, fmt.Errorf("load status: %w", err)
	}
	if cur != nil && cur.CheckedAt.After(now) {
		// straggler from an older cycle; keep the newer state
		a.Log.Debug("status_stale_outcome_dropped",
			zap.String("endpoint_id", string(row.Endpoint.ID)),
			zap.Time("have", cur.CheckedAt),
			zap.Time("got", now),
		)
		return cur, nil
	}

	st := a.build(row, out, maxSiblingHeight, now)
	if err := a.upsertWithRetry(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

func (a *Aggregator) build(row repo.EndpointRow, out probe.Outcome, maxSiblingHeight *int64, now time.Time) *domain.EndpointStatus {
	st := &domain.EndpointStatus{
		EndpointID:  row.Endpoint.ID,
		Success:     out.Success,
		HTTPStatus:  out.HTTPStatus,
		LatencyMS:   out.LatencyMS,
		BlockHeight: out.BlockHeight,
		BlockTime:   out.BlockTime,
		ErrorKind:   out.ErrorKind,
		ErrorDetail: out.ErrorDetail,
		CheckedAt:   now,
	}

	staleAfter := row.Network.StaleAfter
	if staleAfter <= 0 {
		staleAfter = a.DefaultStaleAfter
	}
	maxLag := row.Network.MaxBlockLag
	if maxLag <= 0 {
		maxLag = a.DefaultMaxBlockLag
	}

	st.Stale = !out.Success
	if out.Success && out.BlockTime != nil && now.Sub(*out.BlockTime) > staleAfter {
		st.Stale = true
	}

	if out.BlockHeight != nil && maxSiblingHeight != nil {
		d := *maxSiblingHeight - *out.BlockHeight
		if d < 0 {
			d = 0
		}
		st.BlockDelay = &d
	}

	st.Classification = classify(out, st, maxLag)
	return st
}

func classify(out probe.Outcome, st *domain.EndpointStatus, maxLag int64) domain.Classification {
	switch {
	case !out.Success && out.ErrorKind == domain.ErrParse:
		return domain.ClassUnknown
	case !out.Success:
		return domain.ClassDown
	case out.BlockHeight == nil:
		// reachable but no height to judge by
		return domain.ClassUnknown
	case st.Stale:
		return domain.ClassDegraded
	case st.BlockDelay != nil && *st.BlockDelay > maxLag:
		return domain.ClassDegraded
	default:
		return domain.ClassOK
	}
}

func (a *Aggregator) upsertWithRetry(ctx context.Context, st *domain.EndpointStatus) error {
	var err error
	for attempt := 0; attempt <= a.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(a.Backoff):
			}
		}
		if err = a.Statuses.UpsertStatus(ctx, st); err == nil {
			return nil
		}
		a.Log.Warn("status_upsert_retry",
			zap.String("endpoint_id", string(st.EndpointID)),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
	return fmt.Errorf("upsert status after %d attempts: %w", a.Retries+1, err)
}

func (a *Aggregator) keyLock(id domain.EndpointID) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	l := a.keys[id]
	if l == nil {
		l = &sync.Mutex{}
		a.keys[id] = l
	}
	return l
}
