package integration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/ronycse16b/soulcraft-orders/internal/auth"
	"github.com/ronycse16b/soulcraft-orders/internal/database"
	"github.com/ronycse16b/soulcraft-orders/internal/lifecycle"
	"github.com/ronycse16b/soulcraft-orders/internal/models"
	"github.com/ronycse16b/soulcraft-orders/internal/policy"
	"github.com/ronycse16b/soulcraft-orders/internal/store"
)

func newService(st *store.Store) *lifecycle.Service {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return lifecycle.NewService(st, lifecycle.NopNotifier{}, log)
}

func seedAdmin(t *testing.T, st *store.Store, email string) auth.Actor {
	t.Helper()
	user, err := st.CreateAdminUser(context.Background(), store.CreateAdminRequest{
		Email: email,
		Name:  "Test Admin",
		Role:  models.RoleAdmin,
	})
	if err != nil {
		t.Fatalf("Create admin: %v", err)
	}
	return auth.Actor{ID: user.ID, Role: user.Role, Permissions: user.Permissions}
}

func seedOrder(t *testing.T, st *store.Store, customer string) *models.Order {
	t.Helper()
	order, err := st.CreateOrder(context.Background(), store.CreateOrderRequest{
		CustomerName: customer,
		Phone:        "555-0100",
		Address:      "1 Test Street",
		ShippingCost: decimal.NewFromInt(10),
		Items: []store.OrderItemRequest{
			{ProductRef: "prod-1", SKU: "SKU-001", UnitPrice: decimal.NewFromInt(100), Quantity: 2},
			{ProductRef: "prod-2", SKU: "SKU-002", UnitPrice: decimal.NewFromInt(50), Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("Create order: %v", err)
	}
	return order
}

func TestCreateOrderInitialState(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	st := store.New(db)
	order := seedOrder(t, st, "Initial Customer")

	if order.Status != models.StatusPending {
		t.Errorf("Expected status pending, got %s", order.Status)
	}
	if order.Version != 1 {
		t.Errorf("Expected version 1, got %d", order.Version)
	}

	// 2*100 + 1*50 + 10 shipping
	expectedTotal := decimal.NewFromInt(260)
	if !order.TotalAmount.Equal(expectedTotal) {
		t.Errorf("Expected total %s, got %s", expectedTotal, order.TotalAmount)
	}

	if len(order.History) != 1 {
		t.Fatalf("Expected 1 history entry, got %d", len(order.History))
	}
	entry := order.History[0]
	if entry.Status != models.StatusPending {
		t.Errorf("Expected initial history status pending, got %s", entry.Status)
	}
	if entry.Note != nil || entry.ChangedBy != nil {
		t.Error("Initial history entry should have no note and no actor")
	}
}

func TestCreateOrderValidation(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	st := store.New(db)
	ctx := context.Background()

	_, err := st.CreateOrder(ctx, store.CreateOrderRequest{CustomerName: "No Items"})
	if !errors.Is(err, database.ErrInvalidOrder) {
		t.Errorf("Expected invalid order error, got: %v", err)
	}

	_, err = st.CreateOrder(ctx, store.CreateOrderRequest{
		CustomerName: "Bad Quantity",
		Items:        []store.OrderItemRequest{{SKU: "SKU-X", UnitPrice: decimal.NewFromInt(5), Quantity: 0}},
	})
	if !errors.Is(err, database.ErrInvalidOrder) {
		t.Errorf("Expected invalid order error, got: %v", err)
	}
}

func TestLifecycleWalk(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	st := store.New(db)
	svc := newService(st)
	actor := seedAdmin(t, st, "walk@example.com")
	order := seedOrder(t, st, "Walk Customer")

	ctx := context.Background()
	steps := []struct {
		status models.OrderStatus
		note   string
	}{
		{models.StatusProcessing, ""},
		{models.StatusConfirmed, ""},
		{models.StatusShipped, ""},
		{models.StatusDelivered, ""},
	}

	for _, step := range steps {
		updated, err := svc.Transition(ctx, order.ID, step.status, step.note, actor)
		if err != nil {
			t.Fatalf("Transition to %s: %v", step.status, err)
		}
		if updated.Status != step.status {
			t.Errorf("Expected status %s, got %s", step.status, updated.Status)
		}
		last := updated.History[len(updated.History)-1]
		if last.Status != step.status {
			t.Errorf("Last history entry should be %s, got %s", step.status, last.Status)
		}
		if last.ChangedBy == nil || *last.ChangedBy != actor.ID {
			t.Error("History entry should record the acting admin")
		}
	}

	final, err := st.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("Get order: %v", err)
	}
	if len(final.History) != 5 {
		t.Errorf("Expected 5 history entries, got %d", len(final.History))
	}
	if final.Version != 5 {
		t.Errorf("Expected version 5, got %d", final.Version)
	}

	// changed_at must be non-decreasing across the log.
	for i := 1; i < len(final.History); i++ {
		if final.History[i].ChangedAt.Before(final.History[i-1].ChangedAt) {
			t.Errorf("History entry %d is earlier than entry %d", i, i-1)
		}
	}
}

func TestReasonRequiredTransitions(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	st := store.New(db)
	svc := newService(st)
	actor := seedAdmin(t, st, "reason@example.com")
	order := seedOrder(t, st, "Reason Customer")

	ctx := context.Background()
	for _, status := range []models.OrderStatus{models.StatusProcessing, models.StatusConfirmed, models.StatusShipped} {
		if _, err := svc.Transition(ctx, order.ID, status, "", actor); err != nil {
			t.Fatalf("Transition to %s: %v", status, err)
		}
	}

	// Blank note on a reason-required target is rejected and nothing moves.
	if _, err := svc.Transition(ctx, order.ID, models.StatusReturn, "  ", actor); !errors.Is(err, policy.ErrMissingReason) {
		t.Errorf("Expected missing reason error, got: %v", err)
	}
	unchanged, err := st.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("Get order: %v", err)
	}
	if unchanged.Status != models.StatusShipped {
		t.Errorf("Status should remain shipped, got %s", unchanged.Status)
	}
	if len(unchanged.History) != 4 {
		t.Errorf("History should be untouched at 4 entries, got %d", len(unchanged.History))
	}

	updated, err := svc.Transition(ctx, order.ID, models.StatusFailed, "damaged in transit", actor)
	if err != nil {
		t.Fatalf("Transition to failed: %v", err)
	}
	last := updated.History[len(updated.History)-1]
	if last.Note == nil || *last.Note != "damaged in transit" {
		t.Error("History entry should carry the justification note")
	}
}

func TestIllegalTransitionRejected(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	st := store.New(db)
	svc := newService(st)
	actor := seedAdmin(t, st, "illegal@example.com")
	order := seedOrder(t, st, "Illegal Customer")

	ctx := context.Background()
	if _, err := svc.Transition(ctx, order.ID, models.StatusDelivered, "", actor); !errors.Is(err, policy.ErrIllegalTransition) {
		t.Errorf("Expected illegal transition error, got: %v", err)
	}

	unchanged, err := st.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("Get order: %v", err)
	}
	if unchanged.Status != models.StatusPending || len(unchanged.History) != 1 {
		t.Error("Rejected transition must not touch the order")
	}
}

func TestStoreRefusesUnvalidatedStatus(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	st := store.New(db)
	order := seedOrder(t, st, "Defense Customer")

	// Even a caller bypassing the lifecycle service cannot write an
	// off-table status.
	_, err := st.ApplyStatus(context.Background(), order.ID, order.Version, store.StatusChange{
		Status: models.StatusDelivered,
	})
	if !errors.Is(err, policy.ErrIllegalTransition) {
		t.Errorf("Expected illegal transition error, got: %v", err)
	}
}

func TestStaleVersionConflict(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	st := store.New(db)
	order := seedOrder(t, st, "Conflict Customer")

	ctx := context.Background()
	if _, err := st.ApplyStatus(ctx, order.ID, order.Version, store.StatusChange{Status: models.StatusProcessing}); err != nil {
		t.Fatalf("First write: %v", err)
	}

	// Replaying the same version must fail: the first write advanced it.
	_, err := st.ApplyStatus(ctx, order.ID, order.Version, store.StatusChange{Status: models.StatusProcessing})
	if !errors.Is(err, database.ErrStatusConflict) {
		t.Errorf("Expected status conflict, got: %v", err)
	}
}

func TestConcurrentTransitionsStayConsistent(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	st := store.New(db)
	svc := newService(st)
	actor := seedAdmin(t, st, "concurrent@example.com")
	order := seedOrder(t, st, "Concurrent Customer")

	ctx := context.Background()
	if _, err := svc.Transition(ctx, order.ID, models.StatusProcessing, "", actor); err != nil {
		t.Fatalf("Move to processing: %v", err)
	}

	concurrency := 10
	var wg sync.WaitGroup
	results := make(chan error, concurrency)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Transition(ctx, order.ID, models.StatusProcessing, "", actor)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	successes := 0
	conflicts := 0
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, database.ErrStatusConflict):
			conflicts++
		default:
			t.Errorf("Unexpected error: %v", err)
		}
	}
	if successes+conflicts != concurrency {
		t.Errorf("Expected %d outcomes, got %d successes + %d conflicts", concurrency, successes, conflicts)
	}
	if successes == 0 {
		t.Error("At least one concurrent transition should win")
	}

	// The history log must agree with the writes that actually landed:
	// initial pending + first processing + one entry per winner.
	final, err := st.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("Get order: %v", err)
	}
	if want := 2 + successes; len(final.History) != want {
		t.Errorf("Expected %d history entries, got %d", want, len(final.History))
	}
	if final.Status != models.StatusProcessing {
		t.Errorf("Expected final status processing, got %s", final.Status)
	}
}

func TestSummaryRoundTrip(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	st := store.New(db)
	svc := newService(st)
	actor := seedAdmin(t, st, "summary@example.com")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		seedOrder(t, st, fmt.Sprintf("Pending Customer %d", i))
	}
	moved := seedOrder(t, st, "Moved Customer")
	if _, err := svc.Transition(ctx, moved.ID, models.StatusProcessing, "", actor); err != nil {
		t.Fatalf("Transition: %v", err)
	}
	cancelled := seedOrder(t, st, "Cancelled Customer")
	if _, err := svc.Transition(ctx, cancelled.ID, models.StatusCancelled, "out of stock", actor); err != nil {
		t.Fatalf("Transition: %v", err)
	}

	summary, err := st.Summarize(ctx)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}

	if summary.Total != 5 {
		t.Errorf("Expected total 5, got %d", summary.Total)
	}
	sum := summary.Pending + summary.Processing + summary.Confirmed + summary.Shipped +
		summary.Hold + summary.Cancelled + summary.Delivered + summary.Failed + summary.Return
	if sum != summary.Total {
		t.Errorf("Per-status counts sum to %d, expected %d", sum, summary.Total)
	}
	if summary.Pending != 3 || summary.Processing != 1 || summary.Cancelled != 1 {
		t.Errorf("Unexpected summary: %+v", summary)
	}
}

func TestListOrdersFilters(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	st := store.New(db)
	svc := newService(st)
	actor := seedAdmin(t, st, "list@example.com")
	ctx := context.Background()

	alice := seedOrder(t, st, "Alice Archer")
	seedOrder(t, st, "Bob Builder")
	if _, err := svc.Transition(ctx, alice.ID, models.StatusProcessing, "", actor); err != nil {
		t.Fatalf("Transition: %v", err)
	}

	page, err := st.ListOrders(ctx, store.ListOptions{Status: models.StatusProcessing})
	if err != nil {
		t.Fatalf("List by status: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ID != alice.ID {
		t.Errorf("Status filter should return only the processing order, got %d items", len(page.Items))
	}

	page, err = st.ListOrders(ctx, store.ListOptions{Search: "bob"})
	if err != nil {
		t.Fatalf("List by search: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].CustomerName != "Bob Builder" {
		t.Errorf("Search should match customer name case-insensitively, got %d items", len(page.Items))
	}

	page, err = st.ListOrders(ctx, store.ListOptions{Search: alice.OrderNumber})
	if err != nil {
		t.Fatalf("List by order number: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ID != alice.ID {
		t.Errorf("Search should match order number, got %d items", len(page.Items))
	}

	page, err = st.ListOrders(ctx, store.ListOptions{Limit: 1})
	if err != nil {
		t.Fatalf("List page 1: %v", err)
	}
	if len(page.Items) != 1 || page.Total != 2 || page.TotalPages != 2 {
		t.Errorf("Expected 1 of 2 items across 2 pages, got %d items, total %d, pages %d",
			len(page.Items), page.Total, page.TotalPages)
	}
}

func TestMarkReadAndShippingEdit(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	st := store.New(db)
	order := seedOrder(t, st, "Flag Customer")
	ctx := context.Background()

	if err := st.MarkRead(ctx, order.ID, true); err != nil {
		t.Fatalf("Mark read: %v", err)
	}
	if err := st.UpdateShipping(ctx, order.ID, models.ShippingInfo{
		CustomerName: "Renamed Customer",
		Phone:        "555-0199",
		Address:      "2 Other Street",
	}); err != nil {
		t.Fatalf("Update shipping: %v", err)
	}

	updated, err := st.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("Get order: %v", err)
	}
	if !updated.Read {
		t.Error("Order should be marked read")
	}
	if updated.CustomerName != "Renamed Customer" {
		t.Errorf("Expected renamed customer, got %s", updated.CustomerName)
	}
	if updated.Status != models.StatusPending || len(updated.History) != 1 {
		t.Error("Read flag and shipping edits must not touch the lifecycle")
	}

	if err := st.MarkRead(ctx, 9999, true); !errors.Is(err, database.ErrOrderNotFound) {
		t.Errorf("Expected order not found, got: %v", err)
	}
}

func TestAdminUsers(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	st := store.New(db)
	ctx := context.Background()

	created, err := st.CreateAdminUser(ctx, store.CreateAdminRequest{
		Email:       "mod@example.com",
		Name:        "Moderator",
		Role:        models.RoleModerator,
		Permissions: models.PermissionSet{Read: true, Update: true},
	})
	if err != nil {
		t.Fatalf("Create admin user: %v", err)
	}

	fetched, err := st.GetAdminUser(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get admin user: %v", err)
	}
	if fetched.Role != models.RoleModerator || !fetched.Permissions.Update || fetched.Permissions.Delete {
		t.Errorf("Unexpected admin user: %+v", fetched)
	}

	if _, err := st.CreateAdminUser(ctx, store.CreateAdminRequest{
		Email: "mod@example.com",
		Role:  models.RoleModerator,
	}); !errors.Is(err, database.ErrDuplicateEmail) {
		t.Errorf("Expected duplicate email error, got: %v", err)
	}

	if _, err := st.GetAdminUser(ctx, 9999); !errors.Is(err, database.ErrAdminNotFound) {
		t.Errorf("Expected admin not found, got: %v", err)
	}
}
