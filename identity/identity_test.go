package identity

import (
	"math/rand"
	"testing"

	"github.com/davecgh/go-spew/spew"
)

func TestAssignDrawsWithoutReplacement(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	names := Pool()

	used := map[string]struct{}{HostName: {}}
	seen := map[string]struct{}{HostName: {}}

	// the 19 non-host names must come out exactly once each
	for i := 0; i < len(names)-1; i++ {
		var name string
		name, used = Assign(names, used, rng)
		if _, dup := seen[name]; dup {
			t.Fatalf("name %q assigned twice, seen so far: %s", name, spew.Sdump(seen))
		}
		seen[name] = struct{}{}
	}
	if len(seen) != len(names) {
		t.Fatalf("expected whole pool assigned, got %d of %d", len(seen), len(names))
	}
}

func TestAssignResetsOnExhaustionKeepingHost(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	names := Pool()

	used := make(map[string]struct{}, len(names))
	for _, name := range names {
		used[name] = struct{}{}
	}

	name, next := Assign(names, used, rng)
	if name == HostName {
		t.Fatalf("host name %q must stay reserved after pool reset", HostName)
	}
	if _, ok := next[HostName]; !ok {
		t.Errorf("reset used-set lost the host reservation: %s", spew.Sdump(next))
	}
	if _, ok := next[name]; !ok {
		t.Errorf("assigned name %q missing from returned used-set", name)
	}
}

func TestAssignDoesNotMutateInput(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	used := map[string]struct{}{HostName: {}}

	_, _ = Assign(Pool(), used, rng)
	if len(used) != 1 {
		t.Errorf("input used-set was mutated: %s", spew.Sdump(used))
	}
}

func TestBootstrap(t *testing.T) {
	rng := rand.New(rand.NewSource(5))

	t.Run("first visitor claims host", func(t *testing.T) {
		st := NewFileStore(t.TempDir())
		rec, err := Bootstrap(st, rng)
		if err != nil {
			t.Fatalf("Bootstrap() error: %v", err)
		}
		if rec.Name != HostName || !rec.IsHost {
			t.Errorf("first visitor = %+v, want host %q", rec, HostName)
		}
	})

	t.Run("later visitor draws from pool", func(t *testing.T) {
		st := NewFileStore(t.TempDir())
		if err := st.ClaimHost(HostName); err != nil {
			t.Fatalf("ClaimHost() error: %v", err)
		}
		rec, err := Bootstrap(st, rng)
		if err != nil {
			t.Fatalf("Bootstrap() error: %v", err)
		}
		if rec.Name == HostName || rec.IsHost {
			t.Errorf("later visitor = %+v, must not be host", rec)
		}
	})

	t.Run("identity persists across restarts", func(t *testing.T) {
		dir := t.TempDir()
		first, err := Bootstrap(NewFileStore(dir), rng)
		if err != nil {
			t.Fatalf("Bootstrap() error: %v", err)
		}
		second, err := Bootstrap(NewFileStore(dir), rng)
		if err != nil {
			t.Fatalf("Bootstrap() error: %v", err)
		}
		if first != second {
			t.Errorf("identity changed across restarts: %+v vs %+v", first, second)
		}
	})
}
