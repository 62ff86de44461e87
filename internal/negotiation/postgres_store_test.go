//go:build integration

package negotiation

import (
	"context"
	"testing"
	"time"

	"github.com/amorce/marketplace/internal/money"
	"github.com/amorce/marketplace/internal/testutil"
)

func testSession(id string) *Session {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &Session{
		ID:       id,
		BuyerID:  "sarah-buyer",
		SellerID: "henri-electronics",
		Constraints: Constraints{
			MaxBudget: money.MustParse("500.00"),
			MinPrice:  money.MustParse("450.00"),
			MinProfit: money.MustParse("100.00"),
			CostBasis: money.MustParse("350.00"),
			Item:      "MacBook Pro 2020",
		},
		Status:      StatusOpen,
		Turn:        "sarah-buyer",
		CreatedAt:   now,
		UpdatedAt:   now,
		LastOfferAt: now,
	}
}

func TestPostgres_CreateAndGetSession(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	want := testSession("sess_pg1")
	if err := store.CreateSession(ctx, want); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	got, err := store.GetSession(ctx, "sess_pg1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.BuyerID != "sarah-buyer" || got.SellerID != "henri-electronics" {
		t.Errorf("Participants not round-tripped: %s / %s", got.BuyerID, got.SellerID)
	}
	if got.Constraints.MaxBudget != money.MustParse("500.00") {
		t.Errorf("Expected budget 500.00, got %s", got.Constraints.MaxBudget)
	}
	if got.Status != StatusOpen {
		t.Errorf("Expected open, got %s", got.Status)
	}
	if len(got.Offers) != 0 {
		t.Errorf("Expected no offers, got %d", len(got.Offers))
	}
}

func TestPostgres_GetSessionNotFound(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	if _, err := store.GetSession(context.Background(), "sess_ghost"); err != ErrSessionNotFound {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
}

func TestPostgres_AppendAndListOffers(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	session := testSession("sess_pg2")
	if err := store.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	first := NewOffer("sess_pg2", "sarah-buyer", "henri-electronics", money.MustParse("450.00"), 1, "opening")
	first.OfferID = "offer_pg1"
	first.Signature = "deadbeef"
	if err := store.AppendOffer(ctx, first); err != nil {
		t.Fatalf("AppendOffer failed: %v", err)
	}

	second := NewOffer("sess_pg2", "henri-electronics", "sarah-buyer", money.MustParse("500.00"), 2, "counter")
	second.OfferID = "offer_pg2"
	second.Signature = "deadbeef"
	if err := store.AppendOffer(ctx, second); err != nil {
		t.Fatalf("AppendOffer failed: %v", err)
	}

	got, err := store.GetSession(ctx, "sess_pg2")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if len(got.Offers) != 2 {
		t.Fatalf("Expected 2 offers, got %d", len(got.Offers))
	}
	if got.Offers[0].SequenceNumber != 1 || got.Offers[1].SequenceNumber != 2 {
		t.Errorf("Offers not ordered by sequence: %d, %d",
			got.Offers[0].SequenceNumber, got.Offers[1].SequenceNumber)
	}
	if got.Offers[1].Price != money.MustParse("500.00") {
		t.Errorf("Expected counter at 500.00, got %s", got.Offers[1].Price)
	}
}

func TestPostgres_DuplicateSequenceRejected(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	if err := store.CreateSession(ctx, testSession("sess_pg3")); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	first := NewOffer("sess_pg3", "sarah-buyer", "henri-electronics", money.MustParse("450.00"), 1, "")
	first.OfferID = "offer_pg3a"
	first.Signature = "deadbeef"
	if err := store.AppendOffer(ctx, first); err != nil {
		t.Fatalf("AppendOffer failed: %v", err)
	}

	dup := NewOffer("sess_pg3", "henri-electronics", "sarah-buyer", money.MustParse("500.00"), 1, "")
	dup.OfferID = "offer_pg3b"
	dup.Signature = "deadbeef"
	if err := store.AppendOffer(ctx, dup); err == nil {
		t.Error("Expected unique constraint violation for duplicate sequence")
	}
}

func TestPostgres_UpdateSession(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	session := testSession("sess_pg4")
	if err := store.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	session.Status = StatusAccepted
	session.TransactionID = "txn_pg1"
	session.UpdatedAt = time.Now().UTC()
	if err := store.UpdateSession(ctx, session); err != nil {
		t.Fatalf("UpdateSession failed: %v", err)
	}

	got, err := store.GetSession(ctx, "sess_pg4")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.Status != StatusAccepted {
		t.Errorf("Expected accepted, got %s", got.Status)
	}
	if got.TransactionID != "txn_pg1" {
		t.Errorf("Expected transaction id, got %q", got.TransactionID)
	}
}

func TestPostgres_ListByAgent(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	a := testSession("sess_pg5")
	b := testSession("sess_pg6")
	b.BuyerID = "other-buyer"
	b.Turn = "other-buyer"
	if err := store.CreateSession(ctx, a); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if err := store.CreateSession(ctx, b); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	mine, err := store.ListByAgent(ctx, "sarah-buyer", 10)
	if err != nil {
		t.Fatalf("ListByAgent failed: %v", err)
	}
	if len(mine) != 1 {
		t.Errorf("Expected 1 session for sarah-buyer, got %d", len(mine))
	}

	// Seller participates in both
	sellers, err := store.ListByAgent(ctx, "henri-electronics", 10)
	if err != nil {
		t.Fatalf("ListByAgent failed: %v", err)
	}
	if len(sellers) != 2 {
		t.Errorf("Expected 2 sessions for seller, got %d", len(sellers))
	}
}

func TestPostgres_ListStale(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	stale := testSession("sess_pg7")
	stale.LastOfferAt = time.Now().UTC().Add(-time.Hour)
	fresh := testSession("sess_pg8")
	closed := testSession("sess_pg9")
	closed.Status = StatusRejected
	closed.LastOfferAt = time.Now().UTC().Add(-time.Hour)

	for _, s := range []*Session{stale, fresh, closed} {
		if err := store.CreateSession(ctx, s); err != nil {
			t.Fatalf("CreateSession failed: %v", err)
		}
	}

	got, err := store.ListStale(ctx, time.Now().UTC().Add(-time.Minute), 100)
	if err != nil {
		t.Fatalf("ListStale failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "sess_pg7" {
		t.Errorf("Expected only the stale open session, got %v", got)
	}
}
