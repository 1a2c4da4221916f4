package domain

import "time"

type ProjectID string
type NetworkID string
type EndpointID string

type NetworkType string

const (
	Mainnet  NetworkType = "mainnet"
	Testnet  NetworkType = "testnet"
	OtherNet NetworkType = "other"
)

type EndpointKind string

const (
	KindRPC EndpointKind = "rpc"
	KindAPI EndpointKind = "api"
)

type Project struct {
	ID        ProjectID `json:"id"`
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Network belongs to exactly one Project; Slug is unique within the project.
// CheckInterval, StaleAfter and MaxBlockLag are per-network overrides; zero
// means "use the global default from config".
type Network struct {
	ID            NetworkID     `json:"id"`
	ProjectID     ProjectID     `json:"project_id"`
	Slug          string        `json:"slug"`
	Name          string        `json:"name"`
	ChainID       string        `json:"chain_id"`
	Type          NetworkType   `json:"network_type"`
	CheckInterval time.Duration `json:"check_interval,omitempty"`
	StaleAfter    time.Duration `json:"stale_after,omitempty"`
	MaxBlockLag   int64         `json:"max_block_lag,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Endpoint is a single probe target. URL is unique within its network.
type Endpoint struct {
	ID        EndpointID   `json:"id"`
	NetworkID NetworkID    `json:"network_id"`
	Name      string       `json:"name"`
	Kind      EndpointKind `json:"kind"`
	URL       string       `json:"url"`
	Enabled   bool         `json:"enabled"`
	CreatedAt time.Time    `json:"created_at"`
}
