package tokenstore

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/contentai-pro/dashboard-core/testutils"
)

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

type storeUnderTest struct {
	store Store
	clock *clock
}

// allStores returns every store kind, each with its clock wired up.
func allStores(t *testing.T) map[string]storeUnderTest {
	t.Helper()
	stores := make(map[string]storeUnderTest)
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	mem := NewMemoryStore()
	memClock := &clock{now: start}
	mem.Now = memClock.Now
	stores["memory"] = storeUnderTest{mem, memClock}

	file := NewFileStore(filepath.Join(t.TempDir(), "nested", "session"), "secret")
	fileClock := &clock{now: start}
	file.Now = fileClock.Now
	stores["file"] = storeUnderTest{file, fileClock}

	lite, err := NewSQLStore(DriverSQLite, ":memory:", "secret", "test")
	if err != nil {
		t.Fatalf("NewSQLStore(sqlite): %s", err)
	}
	liteClock := &clock{now: start}
	lite.Now = liteClock.Now
	stores["sqlite"] = storeUnderTest{lite, liteClock}

	if dsn, ok := testutils.PostgresDSN(); ok {
		pg, err := NewSQLStore(DriverPostgres, dsn, "secret", t.Name())
		if err != nil {
			t.Fatalf("NewSQLStore(postgres): %s", err)
		}
		pgClock := &clock{now: start}
		pg.Now = pgClock.Now
		stores["postgres"] = storeUnderTest{pg, pgClock}
	}
	t.Cleanup(func() {
		for _, s := range stores {
			s.store.Close()
		}
	})
	return stores
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range allStores(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.store.Clear(ctx); err != nil {
				t.Fatalf("Clear: %s", err)
			}
			if _, err := s.store.Get(ctx); !errors.Is(err, ErrNoToken) {
				t.Fatalf("Get on empty store got %v want ErrNoToken", err)
			}
			if err := s.store.Set(ctx, "tok-1", Retention); err != nil {
				t.Fatalf("Set: %s", err)
			}
			got, err := s.store.Get(ctx)
			if err != nil {
				t.Fatalf("Get: %s", err)
			}
			if got != "tok-1" {
				t.Fatalf("Get got %q want tok-1", got)
			}
			t.Log("Set replaces the token.")
			if err = s.store.Set(ctx, "tok-2", Retention); err != nil {
				t.Fatalf("Set: %s", err)
			}
			if got, _ = s.store.Get(ctx); got != "tok-2" {
				t.Fatalf("Get after replace got %q want tok-2", got)
			}
			t.Log("Clear removes it, and clearing twice is fine.")
			if err = s.store.Clear(ctx); err != nil {
				t.Fatalf("Clear: %s", err)
			}
			if err = s.store.Clear(ctx); err != nil {
				t.Fatalf("second Clear: %s", err)
			}
			if _, err = s.store.Get(ctx); !errors.Is(err, ErrNoToken) {
				t.Fatalf("Get after Clear got %v want ErrNoToken", err)
			}
		})
	}
}

func TestStoreExpiry(t *testing.T) {
	ctx := context.Background()
	for name, s := range allStores(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.store.Set(ctx, "tok", Retention); err != nil {
				t.Fatalf("Set: %s", err)
			}
			s.clock.now = s.clock.now.Add(Retention - time.Second)
			if got, err := s.store.Get(ctx); err != nil || got != "tok" {
				t.Fatalf("Get just before expiry got %q, %v", got, err)
			}
			s.clock.now = s.clock.now.Add(2 * time.Second)
			if _, err := s.store.Get(ctx); !errors.Is(err, ErrNoToken) {
				t.Fatalf("Get after expiry got %v want ErrNoToken", err)
			}
			t.Log("The expired entry has been purged, not just hidden.")
			s.clock.now = s.clock.now.Add(-time.Hour)
			if _, err := s.store.Get(ctx); !errors.Is(err, ErrNoToken) {
				t.Fatalf("expired entry came back: %v", err)
			}
		})
	}
}

func TestFileStoreEncryptsAndRestrictsPermissions(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session")
	store := NewFileStore(path, "secret")
	if err := store.Set(ctx, "super-secret-token", Retention); err != nil {
		t.Fatalf("Set: %s", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %s", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file mode got %o want 600", perm)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %s", err)
	}
	if bytes.Contains(data, []byte("super-secret-token")) {
		t.Fatalf("token is stored in plaintext")
	}

	t.Log("A store with a different secret cannot read it.")
	other := NewFileStore(path, "another-secret")
	if _, err = other.Get(ctx); err == nil || errors.Is(err, ErrNoToken) {
		t.Fatalf("Get with wrong secret got %v want a decrypt error", err)
	}
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session")
	if err := os.WriteFile(path, []byte("not cbor at all"), 0600); err != nil {
		t.Fatalf("WriteFile: %s", err)
	}
	store := NewFileStore(path, "secret")
	if _, err := store.Get(context.Background()); err == nil {
		t.Fatalf("Get on corrupt file returned no error")
	}
}

func TestSQLStoreNamespaces(t *testing.T) {
	ctx := context.Background()
	dsn := testutils.SQLiteDSN(t)
	a, err := NewSQLStore(DriverSQLite, dsn, "secret", "http://a.example/api")
	if err != nil {
		t.Fatalf("NewSQLStore: %s", err)
	}
	defer a.Close()
	b, err := NewSQLStore(DriverSQLite, dsn, "secret", "http://b.example/api")
	if err != nil {
		t.Fatalf("NewSQLStore: %s", err)
	}
	defer b.Close()

	if err = a.Set(ctx, "token-a", Retention); err != nil {
		t.Fatalf("Set a: %s", err)
	}
	if _, err = b.Get(ctx); !errors.Is(err, ErrNoToken) {
		t.Fatalf("namespace b saw namespace a's token: %v", err)
	}
	if err = b.Set(ctx, "token-b", time.Minute); err != nil {
		t.Fatalf("Set b: %s", err)
	}
	if got, _ := a.Get(ctx); got != "token-a" {
		t.Fatalf("a got %q want token-a", got)
	}

	t.Log("PurgeExpired drops expired rows from every namespace.")
	a.Now = func() time.Time { return time.Now().Add(time.Hour) }
	n, err := a.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("PurgeExpired: %s", err)
	}
	if n != 1 {
		t.Fatalf("PurgeExpired removed %d rows want 1", n)
	}
	if _, err = b.Get(ctx); !errors.Is(err, ErrNoToken) {
		t.Fatalf("b still has a token after purge: %v", err)
	}
}

func TestNewSQLStoreUnknownDriver(t *testing.T) {
	if _, err := NewSQLStore("mysql", "", "secret", "x"); err == nil {
		t.Fatalf("NewSQLStore accepted an unsupported driver")
	}
}

