package testsupport

import (
	"testing"

	"vr180/internal/config"
	"vr180/internal/jobs"
)

// MustOpenStore opens the job store selected by cfg and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) jobs.Store {
	t.Helper()

	store, err := jobs.Open(cfg)
	if err != nil {
		t.Fatalf("open job store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
