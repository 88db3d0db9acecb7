package sqlutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

func newDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := Open(context.Background(), "sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Open: %s", err)
	}
	t.Cleanup(func() { db.Close() })
	db.MustExec(`CREATE TABLE kv (k TEXT NOT NULL PRIMARY KEY, v TEXT NOT NULL)`)
	return db
}

func count(t *testing.T, db *sqlx.DB) int {
	t.Helper()
	var n int
	if err := db.Get(&n, `SELECT count(*) FROM kv`); err != nil {
		t.Fatalf("count: %s", err)
	}
	return n
}

func TestWithTransaction(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)

	t.Log("A successful block is committed.")
	err := WithTransaction(ctx, db, func(txn *sqlx.Tx) error {
		_, err := txn.Exec(`INSERT INTO kv(k, v) VALUES ('a', '1')`)
		return err
	})
	if err != nil {
		t.Fatalf("WithTransaction: %s", err)
	}
	if n := count(t, db); n != 1 {
		t.Fatalf("got %d rows want 1", n)
	}

	t.Log("A failing block is rolled back.")
	err = WithTransaction(ctx, db, func(txn *sqlx.Tx) error {
		if _, err := txn.Exec(`INSERT INTO kv(k, v) VALUES ('b', '2')`); err != nil {
			return err
		}
		return fmt.Errorf("boom")
	})
	if err == nil || err.Error() != "boom" {
		t.Fatalf("WithTransaction error got %v want boom", err)
	}
	if n := count(t, db); n != 1 {
		t.Fatalf("got %d rows want 1 after rollback", n)
	}

	t.Log("A panicking block is rolled back and reported as an error.")
	err = WithTransaction(ctx, db, func(txn *sqlx.Tx) error {
		if _, err := txn.Exec(`INSERT INTO kv(k, v) VALUES ('c', '3')`); err != nil {
			return err
		}
		panic("oh no")
	})
	if err == nil {
		t.Fatalf("WithTransaction swallowed a panic")
	}
	if n := count(t, db); n != 1 {
		t.Fatalf("got %d rows want 1 after panic", n)
	}
}

func TestWithTransactionCancelledContext(t *testing.T) {
	db := newDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := WithTransaction(ctx, db, func(txn *sqlx.Tx) error {
		called = true
		return nil
	})
	if err == nil {
		t.Fatalf("WithTransaction began a transaction with a cancelled context")
	}
	if called {
		t.Fatalf("block ran with a cancelled context")
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), "nosuchdriver", "x"); err == nil {
		t.Fatalf("Open accepted an unregistered driver")
	}
}
