package testutils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// PostgresDSN builds a lib/pq DSN from the POSTGRES_* environment variables. It returns
// false when POSTGRES_DB is unset, in which case postgres backed tests are skipped.
func PostgresDSN() (string, bool) {
	dbName := os.Getenv("POSTGRES_DB")
	if dbName == "" {
		return "", false
	}
	parts := []string{"dbname=" + dbName, "sslmode=disable"}
	for _, kv := range []struct{ key, env string }{
		{"user", "POSTGRES_USER"},
		{"password", "POSTGRES_PASSWORD"},
		{"host", "POSTGRES_HOST"},
		{"port", "POSTGRES_PORT"},
	} {
		if v := os.Getenv(kv.env); v != "" {
			parts = append(parts, fmt.Sprintf("%s=%s", kv.key, v))
		}
	}
	return strings.Join(parts, " "), true
}

// SQLiteDSN returns the path of a fresh sqlite database which is removed when the test ends.
func SQLiteDSN(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "contentai.db")
}
