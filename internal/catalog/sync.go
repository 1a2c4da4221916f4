package catalog

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hamed0406/chainwatch/internal/domain"
	"github.com/hamed0406/chainwatch/internal/repo"
)

// Sync applies a catalog file to the store. It is idempotent: running it
// twice with the same input changes nothing. Within each network still
// listed in the file, store endpoints gone from that network's list are
// disabled, never deleted, so their check history and last status survive.
// Networks removed from the file entirely are left as they are.
func Sync(ctx context.Context, store repo.CatalogStore, log *zap.Logger, f *File) error {
	for _, ps := range f.Projects {
		pid := projectID(ps.Slug)
		if err := store.UpsertProject(ctx, &domain.Project{
			ID:   pid,
			Slug: ps.Slug,
			Name: ps.Name,
		}); err != nil {
			return fmt.Errorf("sync project %s: %w", ps.Slug, err)
		}

		for _, ns := range ps.Networks {
			nid := networkID(ps.Slug, ns.Slug)
			if err := store.UpsertNetwork(ctx, &domain.Network{
				ID:            nid,
				ProjectID:     pid,
				Slug:          ns.Slug,
				Name:          ns.Name,
				ChainID:       ns.ChainID,
				Type:          domain.NetworkType(ns.NetworkType),
				CheckInterval: ns.checkInterval(),
				StaleAfter:    ns.staleAfter(),
				MaxBlockLag:   ns.MaxBlockLag,
			}); err != nil {
				return fmt.Errorf("sync network %s/%s: %w", ps.Slug, ns.Slug, err)
			}

			existing, err := store.ListEndpoints(ctx, nid)
			if err != nil {
				return fmt.Errorf("list endpoints %s/%s: %w", ps.Slug, ns.Slug, err)
			}

			inFile := make(map[domain.EndpointID]bool, len(ns.Endpoints))
			for _, es := range ns.Endpoints {
				eid := endpointID(nid, es.URL)
				inFile[eid] = true
				if err := store.UpsertEndpoint(ctx, &domain.Endpoint{
					ID:        eid,
					NetworkID: nid,
					Name:      es.Name,
					Kind:      domain.EndpointKind(es.Kind),
					URL:       es.URL,
					Enabled:   es.IsEnabled(),
				}); err != nil {
					return fmt.Errorf("sync endpoint %s: %w", es.URL, err)
				}
			}

			for _, e := range existing {
				if inFile[e.ID] || !e.Enabled {
					continue
				}
				if err := store.DisableEndpoint(ctx, e.ID); err != nil {
					return fmt.Errorf("disable endpoint %s: %w", e.URL, err)
				}
				log.Info("endpoint_disabled_not_in_catalog",
					zap.String("network", string(nid)),
					zap.String("url", e.URL),
				)
			}
		}
	}
	return nil
}
