package migrations

import (
	"database/sql"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"
	_ "github.com/mattn/go-sqlite3"
)

func TestStatements(t *testing.T) {
	t.Parallel()

	got := Statements("CREATE TABLE a (id INT);\n\n  ;CREATE INDEX b ON a (id);\n")
	want := []string{"CREATE TABLE a (id INT)", "CREATE INDEX b ON a (id)"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Statements() mismatch (-want +got):\n%s", diff)
	}
}

func TestPending(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"sql/002_b.sql": {Data: []byte("")},
		"sql/001_a.sql": {Data: []byte("")},
		"sql/README.md": {Data: []byte("")},
	}

	got, err := Pending(fsys, "sql", map[string]bool{"001_a.sql": true})
	if err != nil {
		t.Fatalf("Pending() error = %v", err)
	}
	if diff := cmp.Diff([]string{"002_b.sql"}, got); diff != "" {
		t.Errorf("Pending() mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	t.Parallel()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	for range 2 {
		if err := Apply(t.Context(), db); err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
	}

	var n int
	if err := db.QueryRowContext(t.Context(), "SELECT COUNT(*) FROM migrations_history").Scan(&n); err != nil {
		t.Fatalf("count history: %v", err)
	}
	if n != 2 {
		t.Errorf("migrations_history rows = %d, want 2", n)
	}

	if _, err := db.ExecContext(t.Context(),
		"INSERT INTO linked_identities (email, chat_user_id) VALUES (?, ?)", "a@example.com", "U1"); err != nil {
		t.Errorf("insert into linked_identities: %v", err)
	}
}
