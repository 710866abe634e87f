package completions

import (
	"context"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	"github.com/angelmondragon/storefront-checkout/pkg/migrate"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	runner, err := migrate.NewRunner(sqlDB, config.DBDriverSQLite, nil)
	if err != nil {
		t.Fatalf("migration runner: %v", err)
	}
	if _, err := runner.Up(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func strPtr(v string) *string { return &v }

func TestCreateAssignsIDAndListsNewestFirst(t *testing.T) {
	repo := NewRepository(openTestDB(t))
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first := &models.CheckoutCompletion{
		CartID:          "cart_1",
		CheckoutSession: "sess_1",
		ProviderID:      "pp_mercadopago",
		Path:            enums.CompletionPathWallet,
		ErrorMessage:    strPtr("Cart is already completed"),
		CreatedAt:       base,
	}
	second := &models.CheckoutCompletion{
		CartID:          "cart_1",
		CheckoutSession: "sess_1",
		ProviderID:      "pp_mercadopago",
		Path:            enums.CompletionPathWallet,
		PaymentID:       strPtr("pay_1"),
		Success:         true,
		RedirectURL:     strPtr("/order/confirmed/order_1"),
		Financing:       strPtr(`{"has_financing":true}`),
		CreatedAt:       base.Add(time.Minute),
	}
	other := &models.CheckoutCompletion{
		CartID:          "cart_2",
		CheckoutSession: "sess_2",
		ProviderID:      "pp_system_default",
		Path:            enums.CompletionPathGeneric,
		CreatedAt:       base,
	}
	for _, entry := range []*models.CheckoutCompletion{first, second, other} {
		if err := repo.Create(ctx, entry); err != nil {
			t.Fatalf("create: %v", err)
		}
		if entry.ID == "" {
			t.Fatalf("expected generated id")
		}
	}

	rows, err := repo.ListByCart(ctx, "cart_1", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if !rows[0].Success || rows[0].PaymentID == nil || *rows[0].PaymentID != "pay_1" {
		t.Fatalf("expected newest successful attempt first, got %+v", rows[0])
	}
	if rows[1].ErrorMessage == nil || *rows[1].ErrorMessage != "Cart is already completed" {
		t.Fatalf("unexpected failed attempt %+v", rows[1])
	}
}

func TestListByCartValidatesInput(t *testing.T) {
	repo := NewRepository(openTestDB(t))
	if _, err := repo.ListByCart(context.Background(), " ", 10); err == nil {
		t.Fatal("expected error for empty cart id")
	}
}

func TestNewRepositoryNilDB(t *testing.T) {
	if NewRepository(nil) != nil {
		t.Fatal("expected nil repository without db")
	}
}

func TestDeleteBeforeRemovesOlderAttempts(t *testing.T) {
	repo := NewRepository(openTestDB(t))
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, created := range []time.Time{base.Add(-48 * time.Hour), base.Add(time.Hour)} {
		entry := &models.CheckoutCompletion{
			CartID:          "cart_1",
			CheckoutSession: "sess_1",
			ProviderID:      "pp_system_default",
			Path:            enums.CompletionPathGeneric,
			CreatedAt:       created,
		}
		if err := repo.Create(ctx, entry); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	deleted, err := repo.DeleteBefore(ctx, base)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected one row deleted, got %d", deleted)
	}
	rows, err := repo.ListByCart(ctx, "cart_1", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 || !rows[0].CreatedAt.After(base) {
		t.Fatalf("expected only the recent attempt to remain, got %+v", rows)
	}
	if _, err := repo.DeleteBefore(ctx, time.Time{}); err == nil {
		t.Fatal("expected error for zero cutoff")
	}
}
