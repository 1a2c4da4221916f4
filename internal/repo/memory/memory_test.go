package memory

import (
	"context"
	"testing"
	"time"

	"github.com/hamed0406/chainwatch/internal/domain"
)

func seed(t *testing.T, m *Store) domain.EndpointID {
	t.Helper()
	ctx := context.Background()
	if err := m.UpsertProject(ctx, &domain.Project{ID: "p", Slug: "p", Name: "P"}); err != nil {
		t.Fatal(err)
	}
	if err := m.UpsertNetwork(ctx, &domain.Network{ID: "p/n", ProjectID: "p", Slug: "n", ChainID: "c-1", Type: domain.Mainnet}); err != nil {
		t.Fatal(err)
	}
	id := domain.EndpointID("p/n/1")
	if err := m.UpsertEndpoint(ctx, &domain.Endpoint{
		ID: id, NetworkID: "p/n", Name: "e", Kind: domain.KindRPC,
		URL: "https://rpc.example.com", Enabled: true,
	}); err != nil {
		t.Fatal(err)
	}
	return id
}

func TestUpsert_PreservesCreatedAt(t *testing.T) {
	m := New()
	ctx := context.Background()
	seed(t, m)

	first, _ := m.ListProjects(ctx)
	created := first[0].CreatedAt

	time.Sleep(time.Millisecond)
	if err := m.UpsertProject(ctx, &domain.Project{ID: "p", Slug: "p", Name: "P renamed"}); err != nil {
		t.Fatal(err)
	}
	again, _ := m.ListProjects(ctx)
	if len(again) != 1 {
		t.Fatalf("duplicate project after upsert: %d", len(again))
	}
	if !again[0].CreatedAt.Equal(created) {
		t.Fatalf("created_at changed on upsert")
	}
	if again[0].Name != "P renamed" {
		t.Fatalf("name not updated")
	}
}

func TestListEnabledEndpoints_JoinsNetwork(t *testing.T) {
	m := New()
	ctx := context.Background()
	id := seed(t, m)

	rows, err := m.ListEnabledEndpoints(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Endpoint.ID != id {
		t.Fatalf("unexpected rows: %+v", rows)
	}
	if rows[0].Network.ChainID != "c-1" {
		t.Fatalf("network not joined: %+v", rows[0].Network)
	}

	if err := m.DisableEndpoint(ctx, id); err != nil {
		t.Fatal(err)
	}
	rows, _ = m.ListEnabledEndpoints(ctx)
	if len(rows) != 0 {
		t.Fatalf("disabled endpoint still listed")
	}
}

func TestListChecks_RangeAndLimit(t *testing.T) {
	m := New()
	ctx := context.Background()
	id := seed(t, m)

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		if err := m.AppendCheck(ctx, &domain.Check{
			EndpointID: id, Success: true,
			CheckedAt: base.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatal(err)
		}
	}

	all, _ := m.ListChecks(ctx, id, time.Time{}, time.Time{}, 0)
	if len(all) != 5 {
		t.Fatalf("want 5 checks, got %d", len(all))
	}
	// newest first
	if !all[0].CheckedAt.After(all[4].CheckedAt) {
		t.Fatalf("not sorted newest first")
	}

	ranged, _ := m.ListChecks(ctx, id, base.Add(time.Minute), base.Add(3*time.Minute), 0)
	if len(ranged) != 3 {
		t.Fatalf("want 3 checks in range, got %d", len(ranged))
	}

	limited, _ := m.ListChecks(ctx, id, time.Time{}, time.Time{}, 2)
	if len(limited) != 2 {
		t.Fatalf("want 2 with limit, got %d", len(limited))
	}
}

func TestStatus_UpsertIsSingleRow(t *testing.T) {
	m := New()
	ctx := context.Background()
	id := seed(t, m)

	if st, _ := m.GetStatus(ctx, id); st != nil {
		t.Fatalf("want nil status before first upsert")
	}

	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		if err := m.UpsertStatus(ctx, &domain.EndpointStatus{
			EndpointID: id, Classification: domain.ClassOK, Success: true, CheckedAt: now,
		}); err != nil {
			t.Fatal(err)
		}
	}

	got, _ := m.ListStatuses(ctx, []domain.EndpointID{id, "missing"})
	if len(got) != 1 {
		t.Fatalf("want exactly one status row, got %d", len(got))
	}
	if !got[id].CheckedAt.Equal(now) {
		t.Fatalf("bad checked_at: %v", got[id].CheckedAt)
	}
}
