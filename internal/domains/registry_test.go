package domains_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/soulfra/chainvault/internal/domains"
	"go.uber.org/zap"
)

var ctx = context.Background()

// openRegistries returns one instance of every Registry implementation so
// the contract tests run against all of them.
func openRegistries(t *testing.T) map[string]domains.Registry {
	t.Helper()

	ldb, err := domains.OpenLevelDB(t.TempDir()+"/registry", zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ldb.Close() })

	return map[string]domains.Registry{
		"memory":  domains.NewMemory(),
		"leveldb": ldb,
	}
}

func TestRegistry_getUnknownDomain(t *testing.T) {
	for name, reg := range openRegistries(t) {
		if _, err := reg.Get(ctx, "orders"); !errors.Is(err, domains.ErrNotFound) {
			t.Errorf("%s: Get on empty registry: got %v, want ErrNotFound", name, err)
		}
	}
}

func TestRegistry_setThenGet(t *testing.T) {
	for name, reg := range openRegistries(t) {
		if err := reg.Set(ctx, "orders", "container-1"); err != nil {
			t.Fatalf("%s: Set: %v", name, err)
		}
		id, err := reg.Get(ctx, "orders")
		if err != nil {
			t.Fatalf("%s: Get after Set: %v", name, err)
		}
		if id != "container-1" {
			t.Errorf("%s: got %q, want container-1", name, id)
		}
	}
}

func TestRegistry_setIsIdempotent(t *testing.T) {
	for name, reg := range openRegistries(t) {
		if err := reg.Set(ctx, "orders", "container-1"); err != nil {
			t.Fatalf("%s: first Set: %v", name, err)
		}
		if err := reg.Set(ctx, "orders", "container-1"); err != nil {
			t.Errorf("%s: idempotent re-Set failed: %v", name, err)
		}
	}
}

func TestRegistry_conflictingSetFails(t *testing.T) {
	for name, reg := range openRegistries(t) {
		if err := reg.Set(ctx, "orders", "container-1"); err != nil {
			t.Fatalf("%s: first Set: %v", name, err)
		}
		if err := reg.Set(ctx, "orders", "container-2"); !errors.Is(err, domains.ErrConflict) {
			t.Errorf("%s: conflicting Set: got %v, want ErrConflict", name, err)
		}

		// The original mapping must be untouched.
		id, err := reg.Get(ctx, "orders")
		if err != nil || id != "container-1" {
			t.Errorf("%s: mapping changed after rejected Set: id=%q err=%v", name, id, err)
		}
	}
}

func TestRegistry_list(t *testing.T) {
	for name, reg := range openRegistries(t) {
		_ = reg.Set(ctx, "orders", "c1")
		_ = reg.Set(ctx, "audit-log", "c2")

		all, err := reg.List(ctx)
		if err != nil {
			t.Fatalf("%s: List: %v", name, err)
		}
		if len(all) != 2 || all["orders"] != "c1" || all["audit-log"] != "c2" {
			t.Errorf("%s: List: got %v", name, all)
		}
	}
}

func TestLevelDB_survivesReopen(t *testing.T) {
	dir := t.TempDir() + "/registry"

	reg, err := domains.OpenLevelDB(dir, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if err := reg.Set(ctx, "orders", "container-1"); err != nil {
		t.Fatal(err)
	}
	if err := reg.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := domains.OpenLevelDB(dir, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	id, err := reopened.Get(ctx, "orders")
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if id != "container-1" {
		t.Errorf("got %q after reopen, want container-1", id)
	}
}

func TestMemory_concurrentFirstWriters(t *testing.T) {
	reg := domains.NewMemory()

	// Two first-writers race to register the same new domain; exactly one
	// must win and the other must see ErrConflict.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{"container-a", "container-b"} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			errs[i] = reg.Set(ctx, "orders", id)
		}(i, id)
	}
	wg.Wait()

	conflicts := 0
	for _, err := range errs {
		if errors.Is(err, domains.ErrConflict) {
			conflicts++
		} else if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if conflicts != 1 {
		t.Errorf("expected exactly one ErrConflict, got %d", conflicts)
	}
}
