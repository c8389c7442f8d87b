package surrealdb

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bobmcallan/tally/internal/common"
	tcommon "github.com/bobmcallan/tally/tests/common"
)

// testConfig points at the shared container with a database unique to t.
func testConfig(t *testing.T) common.SurrealDBConfig {
	t.Helper()
	sc := tcommon.StartSurrealDB(t)

	// SurrealDB rejects "/" in database names, which subtests produce.
	sanitized := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	return common.SurrealDBConfig{
		Address:   sc.Address(),
		Namespace: "tally_test",
		Database:  fmt.Sprintf("t_%s_%d", sanitized, time.Now().UnixNano()%100000),
		Username:  "root",
		Password:  "root",
	}
}

// testStore connects a fresh store for t.
func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(context.Background(), testLogger(), testConfig(t))
	if err != nil {
		t.Fatalf("connect document store: %v", err)
	}
	return s
}

// testLogger returns a silent logger for tests.
func testLogger() *common.Logger {
	return common.NewSilentLogger()
}
