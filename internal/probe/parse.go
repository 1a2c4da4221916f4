package probe

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// rpcStatusResponse is the subset of the Tendermint /status payload we use.
type rpcStatusResponse struct {
	Result struct {
		NodeInfo struct {
			Network string `json:"network"`
		} `json:"node_info"`
		SyncInfo struct {
			LatestBlockHeight string `json:"latest_block_height"`
			LatestBlockTime   string `json:"latest_block_time"`
		} `json:"sync_info"`
	} `json:"result"`
}

// restBlockResponse covers both the v1beta1 and the legacy latest-block
// shapes; the header path is the same in both.
type restBlockResponse struct {
	Block struct {
		Header struct {
			ChainID string `json:"chain_id"`
			Height  string `json:"height"`
			Time    string `json:"time"`
		} `json:"header"`
	} `json:"block"`
}

func parseHeight(raw string) (int64, error) {
	if raw == "" {
		return 0, fmt.Errorf("empty height")
	}
	h, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse height %q: %w", raw, err)
	}
	if h < 0 {
		return 0, fmt.Errorf("negative height %d", h)
	}
	return h, nil
}

// parseBlockTime accepts RFC3339 with any fractional precision up to
// nanoseconds (Tendermint emits nanosecond timestamps). Result is UTC.
func parseBlockTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty block time")
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		// some nodes emit a space instead of T
		t, err = time.Parse("2006-01-02 15:04:05.999999999Z07:00", strings.TrimSpace(raw))
		if err != nil {
			return time.Time{}, fmt.Errorf("parse block time %q: %w", raw, err)
		}
	}
	return t.UTC(), nil
}
