package testutil

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/davidahmann/opsgraph/core/model"
	"github.com/davidahmann/opsgraph/core/store"
)

func RepoRoot(t *testing.T) string {
	t.Helper()
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatalf("unable to locate testutil source file")
	}
	return filepath.Clean(filepath.Join(filepath.Dir(filename), "..", ".."))
}

// OpenStore opens a migrated database in a per-test directory and closes it
// when the test ends.
func OpenStore(t *testing.T) *store.Store {
	t.Helper()
	opened, err := store.Open(context.Background(), store.Options{Path: filepath.Join(t.TempDir(), "opsgraph.db")})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = opened.Close()
	})
	return opened
}

// Clock returns a deterministic clock that advances by step on every call.
func Clock(start time.Time, step time.Duration) func() time.Time {
	var mu sync.Mutex
	current := start.UTC()
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now := current
		current = current.Add(step)
		return now
	}
}

func MustNode(t *testing.T, id string) model.Node {
	t.Helper()
	node, err := model.NewNode(id, "node "+id, model.CategoryInfrastructure, model.TypeServer, model.Data{"owner": "ops"})
	if err != nil {
		t.Fatalf("build node %s: %v", id, err)
	}
	return node
}

func MustEdge(t *testing.T, source, target string) model.Edge {
	t.Helper()
	edge, err := model.NewEdge(source, target, "", nil)
	if err != nil {
		t.Fatalf("build edge %s -> %s: %v", source, target, err)
	}
	return edge
}

func WriteFile(t *testing.T, path string, content []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("create parent directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func MustReadFile(t *testing.T, path string) []byte {
	t.Helper()
	content, err := os.ReadFile(path) // #nosec G304 -- test helper for controlled paths.
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return content
}
