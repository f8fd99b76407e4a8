package events

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

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
	deltas []types.StockDelta
}

func (e *capturingEmitter) Emit(_ context.Context, tx *gorm.DB, delta types.StockDelta) error {
	if tx == nil {
		return fmt.Errorf("transaction required")
	}
	e.deltas = append(e.deltas, delta)
	return nil
}

type droppingCache struct {
	dropped []uuid.UUID
}

func (c *droppingCache) DropEvent(_ context.Context, eventID uuid.UUID) error {
	c.dropped = append(c.dropped, eventID)
	return nil
}

type fixture struct {
	gdb     *gorm.DB
	svc     Service
	emitter *capturingEmitter
	cache   *droppingCache
}

func newFixture(t *testing.T, name string) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := gdb.AutoMigrate(&models.Event{}, &models.TicketTier{}, &models.Transaction{}, &models.StockDeltaEvent{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	emitter := &capturingEmitter{}
	cache := &droppingCache{}
	svc, err := NewService(&testTxRunner{gdb: gdb}, NewRepository(gdb), emitter, cache,
		logger.New(logger.Options{ServiceName: "events-test"}))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &fixture{gdb: gdb, svc: svc, emitter: emitter, cache: cache}
}

func validInput() CreateEventInput {
	return CreateEventInput{
		Name:      "Summer Festival",
		Category:  enums.EventCategoryFestival,
		EventDate: time.Date(2026, 7, 10, 0, 0, 0, 0, time.UTC),
		EventTime: "18:00",
		VenueName: "Riverside Park",
		VenueCity: "Lisbon",
		Tiers: []TierInput{
			{Name: "General", Price: decimal.NewFromInt(40), TotalStock: 100},
			{Name: "VIP", Price: decimal.NewFromInt(120), TotalStock: 20},
		},
	}
}

func TestCreateEventWithTiers(t *testing.T) {
	f := newFixture(t, "events_create")

	event, err := f.svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(event.Tiers) != 2 {
		t.Fatalf("expected 2 tiers, got %d", len(event.Tiers))
	}
	for _, tier := range event.Tiers {
		if tier.AvailableStock != tier.TotalStock {
			t.Fatalf("tier %s: expected full stock, got %d/%d", tier.Name, tier.AvailableStock, tier.TotalStock)
		}
	}

	// the opening counts were queued for cache hydration and fanout
	if len(f.emitter.deltas) != 2 {
		t.Fatalf("expected 2 opening deltas, got %d", len(f.emitter.deltas))
	}

	loaded, err := f.svc.Get(context.Background(), event.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded.Name != "Summer Festival" || len(loaded.Tiers) != 2 {
		t.Fatalf("unexpected loaded event %+v", loaded)
	}
	// tiers ordered by price
	if loaded.Tiers[0].Name != "General" || loaded.Tiers[1].Name != "VIP" {
		t.Fatalf("expected price ordering, got %s/%s", loaded.Tiers[0].Name, loaded.Tiers[1].Name)
	}
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t, "events_validation")

	cases := map[string]func(*CreateEventInput){
		"empty name":     func(in *CreateEventInput) { in.Name = " " },
		"bad category":   func(in *CreateEventInput) { in.Category = enums.EventCategory("rave") },
		"no date":        func(in *CreateEventInput) { in.EventDate = time.Time{} },
		"no tiers":       func(in *CreateEventInput) { in.Tiers = nil },
		"negative stock": func(in *CreateEventInput) { in.Tiers[0].TotalStock = -1 },
		"negative price": func(in *CreateEventInput) { in.Tiers[0].Price = decimal.NewFromInt(-5) },
	}
	for label, mutate := range cases {
		input := validInput()
		mutate(&input)
		_, err := f.svc.Create(context.Background(), input)
		typed := pkgerrors.As(err)
		if typed == nil || typed.Code() != pkgerrors.CodeValidation {
			t.Fatalf("%s: expected validation error, got %v", label, err)
		}
	}
}

func TestUpdateMetaChangesOnlyMetadata(t *testing.T) {
	f := newFixture(t, "events_update")

	event, err := f.svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	newName := "Summer Festival 2026"
	newCity := "Porto"
	updated, err := f.svc.UpdateMeta(context.Background(), event.ID, UpdateEventInput{
		Name:      &newName,
		VenueCity: &newCity,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != newName || updated.VenueCity != newCity {
		t.Fatalf("unexpected update %+v", updated)
	}
	// stock untouched
	if updated.Tiers[0].AvailableStock != 100 || updated.Tiers[0].TotalStock != 100 {
		t.Fatalf("update must not touch stock, got %+v", updated.Tiers[0])
	}
}

func TestUpdateMetaUnknownEvent(t *testing.T) {
	f := newFixture(t, "events_update_unknown")

	name := "Ghost"
	_, err := f.svc.UpdateMeta(context.Background(), uuid.New(), UpdateEventInput{Name: &name})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestDeleteCascadesAndDropsCache(t *testing.T) {
	f := newFixture(t, "events_delete")

	event, err := f.svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// a transaction exists against the event
	tier := event.Tiers[0]
	record := models.Transaction{
		ID:          uuid.New(),
		EventID:     event.ID,
		TierID:      tier.ID,
		PurchaserID: "purchaser-1",
		TierName:    tier.Name,
		Quantity:    2,
		UnitPrice:   tier.Price,
		TotalAmount: tier.Price.Mul(decimal.NewFromInt(2)),
		Reference:   "TB-TEST",
		ClientRef:   uuid.NewString(),
		Status:      enums.TransactionStatusConfirmed,
	}
	if err := f.gdb.Create(&record).Error; err != nil {
		t.Fatalf("seed transaction: %v", err)
	}

	if err := f.svc.Delete(context.Background(), event.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if len(f.cache.dropped) != 1 || f.cache.dropped[0] != event.ID {
		t.Fatalf("expected cache dropped for event, got %v", f.cache.dropped)
	}

	for _, probe := range []struct {
		label string
		model any
	}{
		{"events", &models.Event{}},
		{"tiers", &models.TicketTier{}},
		{"transactions", &models.Transaction{}},
	} {
		var count int64
		if err := f.gdb.Model(probe.model).Count(&count).Error; err != nil {
			t.Fatalf("count %s: %v", probe.label, err)
		}
		if count != 0 {
			t.Fatalf("expected %s removed, got %d", probe.label, count)
		}
	}
}

func TestDeleteUnknownEvent(t *testing.T) {
	f := newFixture(t, "events_delete_unknown")

	err := f.svc.Delete(context.Background(), uuid.New())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestListOrdersByDate(t *testing.T) {
	f := newFixture(t, "events_list")

	first := validInput()
	first.Name = "Later Event"
	first.EventDate = time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	if _, err := f.svc.Create(context.Background(), first); err != nil {
		t.Fatalf("create later: %v", err)
	}
	second := validInput()
	second.Name = "Sooner Event"
	second.EventDate = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	if _, err := f.svc.Create(context.Background(), second); err != nil {
		t.Fatalf("create sooner: %v", err)
	}

	listed, err := f.svc.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 2 || listed[0].Name != "Sooner Event" {
		t.Fatalf("expected date ordering, got %+v", listed)
	}
}
