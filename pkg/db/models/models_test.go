package models

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// The sqlite driver backs every repository test fixture, so the generated DDL
// for each model must stay valid there as well as on postgres. Function-call
// column defaults in gorm tags break sqlite; IDs are assigned in code and the
// goose migrations carry the postgres defaults.
func TestModelsMigrateOnSQLite(t *testing.T) {
	gdb, err := gorm.Open(sqlite.Open("file:models_ddl?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := gdb.AutoMigrate(&Event{}, &TicketTier{}, &Transaction{}, &StockDeltaEvent{}); err != nil {
		t.Fatalf("auto-migrate models: %v", err)
	}
}
