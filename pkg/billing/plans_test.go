package billing

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ringforge/callgate/pkg/observability"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

func TestDefaultPlans(t *testing.T) {
	plans := DefaultPlans()

	require.Contains(t, plans, "free")
	require.Contains(t, plans, "starter")
	require.Contains(t, plans, "pro")
	require.Contains(t, plans, "enterprise")

	pro := plans["pro"]
	assert.Equal(t, "pro", pro.Name)
	assert.Equal(t, 10, pro.ConcurrencyLimit)
	assert.Equal(t, int64(3000), pro.MinuteQuota)
	assert.Equal(t, 5, pro.NumberQuota)
}

func TestCatalogGet(t *testing.T) {
	catalog := NewCatalog(testLogger())

	plan, ok := catalog.Get("starter")
	require.True(t, ok)
	assert.Equal(t, "starter", plan.Name)
	assert.Equal(t, 2, plan.ConcurrencyLimit)

	_, ok = catalog.Get("nonexistent")
	assert.False(t, ok)
}

func TestCatalogList(t *testing.T) {
	catalog := NewCatalog(testLogger())

	plans := catalog.List()
	assert.Len(t, plans, len(DefaultPlans()))
}

func TestCatalogLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plans.yaml")

	content := `
plans:
  - name: pro
    concurrency_limit: 20
    minute_quota: 6000
    number_quota: 10
  - name: custom
    concurrency_limit: 3
    minute_quota: 900
    number_quota: 2
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	catalog := NewCatalog(testLogger())
	require.NoError(t, catalog.LoadFile(path))

	// File overrides the built-in pro plan
	pro, ok := catalog.Get("pro")
	require.True(t, ok)
	assert.Equal(t, 20, pro.ConcurrencyLimit)
	assert.Equal(t, int64(6000), pro.MinuteQuota)

	// File adds a new plan
	custom, ok := catalog.Get("custom")
	require.True(t, ok)
	assert.Equal(t, 3, custom.ConcurrencyLimit)

	// Built-in plans the file does not mention stay available
	starter, ok := catalog.Get("starter")
	require.True(t, ok)
	assert.Equal(t, 2, starter.ConcurrencyLimit)
}

func TestCatalogLoadFile_MissingFile(t *testing.T) {
	catalog := NewCatalog(testLogger())

	err := catalog.LoadFile("/nonexistent/plans.yaml")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read plan file")
}

func TestCatalogLoadFile_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plans.yaml")
	require.NoError(t, os.WriteFile(path, []byte("plans: [not valid"), 0o644))

	catalog := NewCatalog(testLogger())
	err := catalog.LoadFile(path)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse plan file")
}

func TestCatalogLoadFile_UnnamedPlan(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plans.yaml")

	content := `
plans:
  - concurrency_limit: 5
    minute_quota: 100
    number_quota: 1
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	catalog := NewCatalog(testLogger())
	err := catalog.LoadFile(path)
	assert.Error(t, err)
}

func TestCatalogLoadFile_NegativeLimits(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plans.yaml")

	content := `
plans:
  - name: broken
    concurrency_limit: -1
    minute_quota: 100
    number_quota: 1
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	catalog := NewCatalog(testLogger())
	err := catalog.LoadFile(path)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "negative limits")

	// Failed load leaves the previous catalog intact
	_, ok := catalog.Get("pro")
	assert.True(t, ok)
	_, ok = catalog.Get("broken")
	assert.False(t, ok)
}

func TestCatalogWatch_BlocksUntilCanceled(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plans.yaml")
	require.NoError(t, os.WriteFile(path, []byte("plans: []\n"), 0o644))

	catalog := NewCatalog(testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- catalog.Watch(ctx, path) }()

	// The watcher owns its goroutine for the life of the process; it must
	// not hand control back while the context is live.
	select {
	case err := <-done:
		t.Fatalf("watcher returned while context was live: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop on cancel")
	}
}

func TestCatalogWatch_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plans.yaml")
	require.NoError(t, os.WriteFile(path, []byte("plans: []\n"), 0o644))

	catalog := NewCatalog(testLogger())
	require.NoError(t, catalog.LoadFile(path))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go catalog.Watch(ctx, path)

	updated := []byte(`
plans:
  - name: pro
    concurrency_limit: 7
    minute_quota: 9000
    number_quota: 9
`)
	// Rewrite until the watcher, which registers asynchronously, picks
	// one of the writes up.
	assert.Eventually(t, func() bool {
		if err := os.WriteFile(path, updated, 0o644); err != nil {
			return false
		}
		plan, ok := catalog.Get("pro")
		return ok && plan.ConcurrencyLimit == 7
	}, 3*time.Second, 50*time.Millisecond)
}
