package directory

import (
	"context"
	"errors"
	"testing"
	"time"
)

func seededService(t *testing.T) *Service {
	t.Helper()
	svc := NewService(NewMemoryRepo())
	svc.clock = func() time.Time { return time.Unix(1700000000, 0).UTC() }
	if err := svc.Seed(context.Background()); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	return svc
}

func TestFindDestinations_CategoryPlusGeneralCatchAll(t *testing.T) {
	svc := seededService(t)

	// One compounding destination plus two general (no location key) ones.
	got, err := svc.FindDestinations(context.Background(), "12345", "compounding")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 destinations, got %d", len(got))
	}
	// Insertion order of the backing store must be preserved.
	if got[0].ID != "cvs_main_st" || got[2].ID != "compounding_pharmacy" {
		t.Fatalf("unexpected order: %q ... %q", got[0].ID, got[2].ID)
	}
}

func TestFindDestinations_LocationFilterIsPermissiveForUntagged(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	ctx := context.Background()
	if _, err := svc.Register(ctx, Destination{ID: "a", Name: "A", Phone: "+1", Category: "compounding"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Register(ctx, Destination{ID: "b", Name: "B", Phone: "+2", Category: CategoryGeneral, LocationKey: "99999"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	got, err := svc.FindDestinations(ctx, "12345", "compounding")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	// "a" has no location key and matches any location; "b" is pinned to
	// another zip and is filtered out.
	if len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("expected only destination a, got %v", got)
	}
}

func TestApplyAvailability_UpsertsInventory(t *testing.T) {
	svc := seededService(t)
	ctx := context.Background()

	price := 15.99
	err := svc.ApplyAvailability(ctx, "cvs_main_st", "Lisinopril", AvailabilityRecord{
		Available: true,
		Quantity:  "30 tablets",
		Price:     &price,
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	d, err := svc.Get(ctx, "cvs_main_st")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	rec, ok := d.Inventory["lisinopril"]
	if !ok {
		t.Fatalf("expected inventory entry under lowercased key")
	}
	if !rec.Available || rec.Quantity != "30 tablets" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.LastChecked.IsZero() {
		t.Fatalf("expected last_checked to be stamped")
	}
}

func TestApplyAvailability_MissingDestinationIsNotFound(t *testing.T) {
	svc := seededService(t)
	err := svc.ApplyAvailability(context.Background(), "nope", "aspirin", AvailabilityRecord{Available: true})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSeed_Idempotent(t *testing.T) {
	svc := seededService(t)
	if err := svc.Seed(context.Background()); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	all, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 seeded destinations, got %d", len(all))
	}
}
