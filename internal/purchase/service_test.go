package purchase

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ticketblitz/ticketblitz-backend/internal/ledger"
	"github.com/ticketblitz/ticketblitz-backend/pkg/config"
	"github.com/ticketblitz/ticketblitz-backend/pkg/db/models"
	"github.com/ticketblitz/ticketblitz-backend/pkg/enums"
	pkgerrors "github.com/ticketblitz/ticketblitz-backend/pkg/errors"
	"github.com/ticketblitz/ticketblitz-backend/pkg/logger"
	"github.com/ticketblitz/ticketblitz-backend/pkg/types"
)

type testTxRunner struct {
	gdb *gorm.DB
}

func (r *testTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.gdb.WithContext(ctx).Transaction(fn)
}

type capturingEmitter struct {
	mu     sync.Mutex
	deltas []types.StockDelta
}

func (e *capturingEmitter) Emit(_ context.Context, tx *gorm.DB, delta types.StockDelta) error {
	if tx == nil {
		return fmt.Errorf("transaction required")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.deltas = append(e.deltas, delta)
	return nil
}

func (e *capturingEmitter) all() []types.StockDelta {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]types.StockDelta(nil), e.deltas...)
}

type fixture struct {
	gdb     *gorm.DB
	svc     Service
	emitter *capturingEmitter
	tier    *models.TicketTier
}

func newFixture(t *testing.T, name string, total int) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := gdb.AutoMigrate(&models.Event{}, &models.TicketTier{}, &models.Transaction{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	event := models.Event{ID: uuid.New(), Name: "Launch Night", Category: enums.EventCategoryConcert}
	if err := gdb.Create(&event).Error; err != nil {
		t.Fatalf("seed event: %v", err)
	}
	tier := models.TicketTier{
		ID:             uuid.New(),
		EventID:        event.ID,
		Name:           "General",
		Price:          decimal.NewFromInt(50),
		TotalStock:     total,
		AvailableStock: total,
	}
	if err := gdb.Create(&tier).Error; err != nil {
		t.Fatalf("seed tier: %v", err)
	}

	emitter := &capturingEmitter{}
	svc, err := NewService(
		&testTxRunner{gdb: gdb},
		NewRepository(gdb),
		ledger.NewRepository(gdb),
		emitter,
		config.PurchaseConfig{MaxQuantity: 10},
		logger.New(logger.Options{ServiceName: "purchase-test"}),
		nil,
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	return &fixture{gdb: gdb, svc: svc, emitter: emitter, tier: &tier}
}

func (f *fixture) availableStock(t *testing.T) int {
	t.Helper()
	var tier models.TicketTier
	if err := f.gdb.First(&tier, "id = ?", f.tier.ID).Error; err != nil {
		t.Fatalf("load tier: %v", err)
	}
	return tier.AvailableStock
}

func (f *fixture) buy(t *testing.T, quantity int) (*models.Transaction, error) {
	t.Helper()
	return f.svc.Purchase(context.Background(), PurchaseInput{
		EventID:   f.tier.EventID,
		TierID:    f.tier.ID,
		Purchaser: "purchaser-1",
		Quantity:  quantity,
		ClientRef: uuid.NewString(),
	})
}

func TestPurchaseScenarioWithRefund(t *testing.T) {
	f := newFixture(t, "purchase_scenario", 10)

	// 5 + 3 succeed, the next 3 won't fit, 2 drains the pool
	if _, err := f.buy(t, 5); err != nil {
		t.Fatalf("buy 5: %v", err)
	}
	if _, err := f.buy(t, 3); err != nil {
		t.Fatalf("buy 3: %v", err)
	}
	_, err := f.buy(t, 3)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeOutOfStock {
		t.Fatalf("expected out-of-stock, got %v", err)
	}
	if got := f.availableStock(t); got != 2 {
		t.Fatalf("expected 2 left after failed attempt, got %d", got)
	}
	record, err := f.buy(t, 2)
	if err != nil {
		t.Fatalf("buy 2: %v", err)
	}
	if got := f.availableStock(t); got != 0 {
		t.Fatalf("expected pool drained, got %d", got)
	}

	// refund returns the tickets
	refunded, err := f.svc.Refund(context.Background(), record.ID)
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if refunded.Status != enums.TransactionStatusCancelled {
		t.Fatalf("expected cancelled status, got %s", refunded.Status)
	}
	if refunded.CancelledAt == nil {
		t.Fatal("expected cancelled_at set")
	}
	if got := f.availableStock(t); got != 2 {
		t.Fatalf("expected 2 restored, got %d", got)
	}

	// every committed mutation queued a delta with the absolute count
	deltas := f.emitter.all()
	if len(deltas) != 4 {
		t.Fatalf("expected 4 deltas, got %d", len(deltas))
	}
	for i, want := range []int{5, 2, 0, 2} {
		if deltas[i].Remaining != want {
			t.Fatalf("delta %d: expected remaining %d, got %d", i, want, deltas[i].Remaining)
		}
	}
}

func TestPurchaseReplayReturnsOriginal(t *testing.T) {
	f := newFixture(t, "purchase_replay", 10)

	clientRef := uuid.NewString()
	input := PurchaseInput{
		EventID:   f.tier.EventID,
		TierID:    f.tier.ID,
		Purchaser: "purchaser-1",
		Quantity:  4,
		ClientRef: clientRef,
	}

	first, err := f.svc.Purchase(context.Background(), input)
	if err != nil {
		t.Fatalf("first purchase: %v", err)
	}
	second, err := f.svc.Purchase(context.Background(), input)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected original transaction %s, got %s", first.ID, second.ID)
	}
	if got := f.availableStock(t); got != 6 {
		t.Fatalf("replay must not take stock twice, got %d", got)
	}
	if len(f.emitter.all()) != 1 {
		t.Fatalf("replay must not emit a second delta")
	}
}

func TestPurchaseValidatesQuantity(t *testing.T) {
	f := newFixture(t, "purchase_quantity", 100)

	for _, quantity := range []int{0, -1, 11} {
		_, err := f.buy(t, quantity)
		typed := pkgerrors.As(err)
		if typed == nil || typed.Code() != pkgerrors.CodeValidation {
			t.Fatalf("quantity %d: expected validation error, got %v", quantity, err)
		}
	}
	if got := f.availableStock(t); got != 100 {
		t.Fatalf("invalid requests must not touch stock, got %d", got)
	}
}

func TestPurchaseUnknownTier(t *testing.T) {
	f := newFixture(t, "purchase_unknown_tier", 10)

	_, err := f.svc.Purchase(context.Background(), PurchaseInput{
		EventID:   f.tier.EventID,
		TierID:    uuid.New(),
		Purchaser: "purchaser-1",
		Quantity:  1,
		ClientRef: uuid.NewString(),
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestPurchaseTierEventMismatch(t *testing.T) {
	f := newFixture(t, "purchase_mismatch", 10)

	_, err := f.svc.Purchase(context.Background(), PurchaseInput{
		EventID:   uuid.New(),
		TierID:    f.tier.ID,
		Purchaser: "purchaser-1",
		Quantity:  1,
		ClientRef: uuid.NewString(),
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not-found for mismatched event, got %v", err)
	}
	if got := f.availableStock(t); got != 10 {
		t.Fatalf("mismatch must not touch stock, got %d", got)
	}
}

func TestRefundTwiceIsIdempotent(t *testing.T) {
	f := newFixture(t, "purchase_refund_twice", 10)

	record, err := f.buy(t, 3)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}

	first, err := f.svc.Refund(context.Background(), record.ID)
	if err != nil {
		t.Fatalf("first refund: %v", err)
	}
	second, err := f.svc.Refund(context.Background(), record.ID)
	if err != nil {
		t.Fatalf("second refund: %v", err)
	}
	if second.ID != first.ID || second.Status != enums.TransactionStatusCancelled {
		t.Fatalf("expected same cancelled transaction, got %+v", second)
	}
	if got := f.availableStock(t); got != 10 {
		t.Fatalf("double refund must not over-restore, got %d", got)
	}
}

func TestRefundUnknownTransaction(t *testing.T) {
	f := newFixture(t, "purchase_refund_unknown", 10)

	_, err := f.svc.Refund(context.Background(), uuid.New())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestPurgeRestoresStockAndDeletes(t *testing.T) {
	f := newFixture(t, "purchase_purge", 10)

	record, err := f.buy(t, 4)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}

	if err := f.svc.Purge(context.Background(), record.ID); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if got := f.availableStock(t); got != 10 {
		t.Fatalf("expected stock restored, got %d", got)
	}

	var count int64
	if err := f.gdb.Model(&models.Transaction{}).Where("id = ?", record.ID).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatal("expected transaction deleted")
	}
}

func TestConcurrentPurchasersNeverOversell(t *testing.T) {
	f := newFixture(t, "purchase_concurrent", 10)

	const buyers = 25
	var wg sync.WaitGroup
	outcomes := make(chan error, buyers)

	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := f.svc.Purchase(context.Background(), PurchaseInput{
				EventID:   f.tier.EventID,
				TierID:    f.tier.ID,
				Purchaser: fmt.Sprintf("purchaser-%d", n),
				Quantity:  1,
				ClientRef: uuid.NewString(),
			})
			outcomes <- err
		}(i)
	}
	wg.Wait()
	close(outcomes)

	confirmed := 0
	for err := range outcomes {
		if err == nil {
			confirmed++
			continue
		}
		typed := pkgerrors.As(err)
		if typed == nil || typed.Code() != pkgerrors.CodeOutOfStock {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if confirmed != 10 {
		t.Fatalf("expected exactly 10 confirmed purchases, got %d", confirmed)
	}
	if got := f.availableStock(t); got != 0 {
		t.Fatalf("expected stock drained, got %d", got)
	}
}

func TestListingsAndStats(t *testing.T) {
	f := newFixture(t, "purchase_listings", 20)

	if _, err := f.buy(t, 2); err != nil {
		t.Fatalf("buy 2: %v", err)
	}
	record, err := f.svc.Purchase(context.Background(), PurchaseInput{
		EventID:   f.tier.EventID,
		TierID:    f.tier.ID,
		Purchaser: "purchaser-2",
		Quantity:  3,
		ClientRef: uuid.NewString(),
	})
	if err != nil {
		t.Fatalf("buy 3: %v", err)
	}
	if _, err := f.svc.Refund(context.Background(), record.ID); err != nil {
		t.Fatalf("refund: %v", err)
	}

	wallet, err := f.svc.ListByPurchaser(context.Background(), "purchaser-1")
	if err != nil {
		t.Fatalf("wallet: %v", err)
	}
	if len(wallet) != 1 || wallet[0].Quantity != 2 {
		t.Fatalf("unexpected wallet %+v", wallet)
	}

	all, err := f.svc.ListAll(context.Background())
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(all))
	}

	stats, err := f.svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TicketsSold != 2 {
		t.Fatalf("expected 2 tickets sold, got %d", stats.TicketsSold)
	}
	if !stats.Revenue.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected revenue 100, got %s", stats.Revenue)
	}
	if stats.Confirmed != 1 || stats.Cancelled != 1 {
		t.Fatalf("unexpected counts %+v", stats)
	}
}
