package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/hamed0406/chainwatch/internal/domain"
)

// maxBodyBytes caps how much of a response we read; status payloads are
// small and a misconfigured endpoint can serve anything.
const maxBodyBytes = 1 << 20

const (
	restLatestBlockPath   = "/cosmos/base/tendermint/v1beta1/blocks/latest"
	legacyLatestBlockPath = "/blocks/latest"
)

type HTTPChecker struct {
	Client *http.Client

	// UseLegacyREST probes api endpoints via /blocks/latest instead of the
	// v1beta1 route. Still one request per probe either way.
	UseLegacyREST bool
}

func NewHTTPChecker(timeout time.Duration) *HTTPChecker {
	return &HTTPChecker{
		Client: &http.Client{Timeout: timeout},
	}
}

var _ Prober = (*HTTPChecker)(nil)

// Probe issues exactly one outbound request, dispatched on endpoint kind.
// Unknown kinds are treated as api without a chain-id expectation.
func (h *HTTPChecker) Probe(ctx context.Context, t Target) Outcome {
	switch t.Kind {
	case domain.KindRPC:
		return h.probeRPC(ctx, t)
	case domain.KindAPI:
		return h.probeAPI(ctx, t)
	default:
		t.ChainID = ""
		return h.probeAPI(ctx, t)
	}
}

// probeRPC hits the Tendermint /status route and reads
// result.sync_info.latest_block_height / latest_block_time.
func (h *HTTPChecker) probeRPC(ctx context.Context, t Target) Outcome {
	out, body := h.get(ctx, strings.TrimRight(t.URL, "/")+"/status")
	if out.ErrorKind != "" {
		return out
	}

	var resp rpcStatusResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		out.ErrorKind = domain.ErrParse
		out.ErrorDetail = "invalid json: " + err.Error()
		return out
	}
	return finishBlockInfo(out, t.ChainID, resp.Result.NodeInfo.Network,
		resp.Result.SyncInfo.LatestBlockHeight, resp.Result.SyncInfo.LatestBlockTime)
}

// probeAPI hits the Cosmos REST latest-block route and reads
// block.header.{chain_id,height,time}.
func (h *HTTPChecker) probeAPI(ctx context.Context, t Target) Outcome {
	path := restLatestBlockPath
	if h.UseLegacyREST {
		path = legacyLatestBlockPath
	}
	out, body := h.get(ctx, strings.TrimRight(t.URL, "/")+path)
	if out.ErrorKind != "" {
		return out
	}

	var resp restBlockResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		out.ErrorKind = domain.ErrParse
		out.ErrorDetail = "invalid json: " + err.Error()
		return out
	}
	return finishBlockInfo(out, t.ChainID, resp.Block.Header.ChainID,
		resp.Block.Header.Height, resp.Block.Header.Time)
}

// finishBlockInfo applies the shared tail of both probe kinds: chain-id
// verification plus height/time extraction.
func finishBlockInfo(out Outcome, want, got, rawHeight, rawTime string) Outcome {
	if h, err := parseHeight(rawHeight); err == nil {
		out.BlockHeight = &h
	}
	if bt, err := parseBlockTime(rawTime); err == nil {
		out.BlockTime = &bt
	}

	if want != "" && got != "" && want != got {
		out.ErrorKind = domain.ErrParse
		out.ErrorDetail = fmt.Sprintf("chain_id mismatch: expected %s, got %s", want, got)
		return out
	}
	if out.BlockHeight == nil || out.BlockTime == nil {
		out.ErrorKind = domain.ErrParse
		out.ErrorDetail = "block height or time missing"
		return out
	}
	out.Success = true
	return out
}

// get performs the request and fills latency, status and any transport or
// http error into the returned outcome. Body is nil unless the response was
// a 2xx that read cleanly.
func (h *HTTPChecker) get(ctx context.Context, url string) (Outcome, []byte) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Outcome{ErrorKind: domain.ErrUnknown, ErrorDetail: err.Error()}, nil
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.Client.Do(req)
	out := Outcome{LatencyMS: time.Since(start).Seconds() * 1000}
	if err != nil {
		out.ErrorKind, out.ErrorDetail = classifyTransportErr(err)
		return out, nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	out.LatencyMS = time.Since(start).Seconds() * 1000
	out.HTTPStatus = &resp.StatusCode
	if err != nil {
		out.ErrorKind, out.ErrorDetail = classifyTransportErr(err)
		return out, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		out.ErrorKind = domain.ErrHTTP
		out.ErrorDetail = fmt.Sprintf("http status %d", resp.StatusCode)
		return out, nil
	}
	return out, body
}

func classifyTransportErr(err error) (domain.ErrorKind, string) {
	var nerr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return domain.ErrTimeout, "request timed out"
	case errors.As(err, &nerr) && nerr.Timeout():
		return domain.ErrTimeout, "request timed out"
	case isConnectionErr(err):
		return domain.ErrConnection, err.Error()
	default:
		return domain.ErrUnknown, err.Error()
	}
}

func isConnectionErr(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
