package catalog

import (
	"fmt"
	"hash/fnv"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hamed0406/chainwatch/internal/domain"
)

// File is the declarative catalog: projects -> networks -> endpoints.
//
// Example:
//
//	projects:
//	  - slug: cosmos
//	    name: Cosmos Hub
//	    networks:
//	      - slug: cosmos-hub-mainnet
//	        name: Cosmos Hub Mainnet
//	        chain_id: cosmoshub-4
//	        network_type: mainnet
//	        endpoints:
//	          - name: Notional RPC
//	            kind: rpc
//	            url: https://rpc.cosmos.directory/cosmoshub
type File struct {
	Projects []ProjectSpec `yaml:"projects"`
}

type ProjectSpec struct {
	Slug     string        `yaml:"slug"`
	Name     string        `yaml:"name"`
	Networks []NetworkSpec `yaml:"networks"`
}

type NetworkSpec struct {
	Slug        string `yaml:"slug"`
	Name        string `yaml:"name"`
	ChainID     string `yaml:"chain_id"`
	NetworkType string `yaml:"network_type"`
	// Optional overrides; zero means "use the global default".
	CheckIntervalSeconds int            `yaml:"check_interval_seconds"`
	StaleAfterSeconds    int            `yaml:"stale_after_seconds"`
	MaxBlockLag          int64          `yaml:"max_block_lag"`
	Endpoints            []EndpointSpec `yaml:"endpoints"`
}

func (n NetworkSpec) checkInterval() time.Duration {
	return time.Duration(n.CheckIntervalSeconds) * time.Second
}

func (n NetworkSpec) staleAfter() time.Duration {
	return time.Duration(n.StaleAfterSeconds) * time.Second
}

type EndpointSpec struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`
	URL  string `yaml:"url"`
	// Pointer so an omitted field defaults to enabled.
	Enabled *bool `yaml:"enabled"`
}

func (e EndpointSpec) IsEnabled() bool {
	return e.Enabled == nil || *e.Enabled
}

// Load reads and validates a catalog file.
func Load(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *File) Validate() error {
	seenProj := map[string]bool{}
	for _, p := range f.Projects {
		if p.Slug == "" {
			return fmt.Errorf("project with empty slug")
		}
		if seenProj[p.Slug] {
			return fmt.Errorf("duplicate project slug %q", p.Slug)
		}
		seenProj[p.Slug] = true

		seenNet := map[string]bool{}
		for _, n := range p.Networks {
			if n.Slug == "" {
				return fmt.Errorf("project %s: network with empty slug", p.Slug)
			}
			if seenNet[n.Slug] {
				return fmt.Errorf("project %s: duplicate network slug %q", p.Slug, n.Slug)
			}
			seenNet[n.Slug] = true

			switch domain.NetworkType(n.NetworkType) {
			case domain.Mainnet, domain.Testnet, domain.OtherNet:
			default:
				return fmt.Errorf("network %s/%s: bad network_type %q", p.Slug, n.Slug, n.NetworkType)
			}

			seenURL := map[string]bool{}
			for _, e := range n.Endpoints {
				if e.URL == "" {
					return fmt.Errorf("network %s/%s: endpoint with empty url", p.Slug, n.Slug)
				}
				if seenURL[e.URL] {
					return fmt.Errorf("network %s/%s: duplicate endpoint url %q", p.Slug, n.Slug, e.URL)
				}
				seenURL[e.URL] = true

				switch domain.EndpointKind(e.Kind) {
				case domain.KindRPC, domain.KindAPI:
				default:
					return fmt.Errorf("network %s/%s: endpoint %q bad kind %q", p.Slug, n.Slug, e.URL, e.Kind)
				}
			}
		}
	}
	return nil
}

// Deterministic IDs derived from natural keys: re-syncing the same file maps
// to the same rows, which is what makes sync idempotent. Colon separators so
// endpoint IDs stay a single URL path segment in the API.

func projectID(slug string) domain.ProjectID {
	return domain.ProjectID(slug)
}

func networkID(projSlug, netSlug string) domain.NetworkID {
	return domain.NetworkID(projSlug + ":" + netSlug)
}

func endpointID(nid domain.NetworkID, url string) domain.EndpointID {
	h := fnv.New32a()
	_, _ = h.Write([]byte(url))
	return domain.EndpointID(fmt.Sprintf("%s:%08x", nid, h.Sum32()))
}
