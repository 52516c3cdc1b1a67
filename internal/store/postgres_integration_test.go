//go:build postgres_integration

package store

import (
	"context"
	"os"
	"testing"
)

func TestPostgresSourceLoad(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}
	src, err := NewPostgresSource(dsn)
	if err != nil {
		t.Fatalf("NewPostgresSource: %v", err)
	}
	defer src.Close()
	if err := src.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	snap, err := Load(context.Background(), src)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(snap.RowCounts()) != len(AllTables) {
		t.Fatalf("row counts: %+v", snap.RowCounts())
	}
}
