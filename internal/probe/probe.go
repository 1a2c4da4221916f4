package probe

import (
	"context"
	"time"

	"github.com/hamed0406/chainwatch/internal/domain"
)

// Target describes one endpoint to probe: where, how (rpc vs api), and
// which chain we expect on the other side.
type Target struct {
	URL     string
	Kind    domain.EndpointKind
	ChainID string // expected chain id; empty disables the check
}

// Outcome is the normalized result of a single probe. All failure modes end
// up here as ErrorKind + detail; a Prober never returns an error or panics.
type Outcome struct {
	Success     bool
	HTTPStatus  *int
	LatencyMS   float64
	BlockHeight *int64
	BlockTime   *time.Time
	ErrorKind   domain.ErrorKind
	ErrorDetail string
}

// Prober performs exactly one outbound request for a target. No retries;
// retry policy, if any, belongs to the scheduler.
type Prober interface {
	Probe(ctx context.Context, t Target) Outcome
}
