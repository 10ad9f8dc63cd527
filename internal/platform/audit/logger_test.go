package audit

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"storehub/internal/platform/database"
)

func TestLogger_RecordAndList(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)
	if err := database.MigrateGlobal(db, database.Up); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	l := NewLogger(db)
	ctx := context.Background()
	l.Record(ctx, Entry{
		OrganizationID: "org_1",
		ActorID:        "user_1",
		Action:         "webhook_created",
		ResourceType:   "webhook",
		ResourceID:     "wh_1",
		Metadata:       map[string]interface{}{"topic": "order.created"},
	})
	l.Record(ctx, Entry{OrganizationID: "org_2", Action: "webhook_deleted", ResourceType: "webhook", ResourceID: "wh_2"})
	l.Wait()

	logs, err := l.List(ctx, "org_1", 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 entry for org_1, got %d", len(logs))
	}
	if logs[0].Action != "webhook_created" || logs[0].Metadata["topic"] != "order.created" {
		t.Errorf("unexpected entry %+v", logs[0])
	}
}

func TestLogger_RecordFailureIsSwallowed(t *testing.T) {
	db, _ := sql.Open("sqlite3", ":memory:")
	db.SetMaxOpenConns(1)
	db.Close()

	l := NewLogger(db)
	l.Record(context.Background(), Entry{Action: "webhook_created", ResourceType: "webhook"})
	l.Wait()
}
