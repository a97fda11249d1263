package billing

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/ringforge/callgate/pkg/observability"
)

// Plan defines the limits a subscription grants
type Plan struct {
	Name             string `json:"name" yaml:"name"`
	ConcurrencyLimit int    `json:"concurrency_limit" yaml:"concurrency_limit"`
	MinuteQuota      int64  `json:"minute_quota" yaml:"minute_quota"`
	NumberQuota      int    `json:"number_quota" yaml:"number_quota"`
}

// planFile is the YAML plan catalog file format
type planFile struct {
	Plans []Plan `yaml:"plans"`
}

// DefaultPlans returns the built-in plan catalog
func DefaultPlans() map[string]Plan {
	return map[string]Plan{
		"free": {
			Name:             "free",
			ConcurrencyLimit: 1,
			MinuteQuota:      60,
			NumberQuota:      1,
		},
		"starter": {
			Name:             "starter",
			ConcurrencyLimit: 2,
			MinuteQuota:      500,
			NumberQuota:      2,
		},
		"pro": {
			Name:             "pro",
			ConcurrencyLimit: 10,
			MinuteQuota:      3000,
			NumberQuota:      5,
		},
		"enterprise": {
			Name:             "enterprise",
			ConcurrencyLimit: 50,
			MinuteQuota:      20000,
			NumberQuota:      25,
		},
	}
}

// Catalog holds the active plan set. Reads are concurrent with reloads.
type Catalog struct {
	mu     sync.RWMutex
	plans  map[string]Plan
	logger *observability.Logger
}

// NewCatalog creates a catalog seeded with the built-in plans
func NewCatalog(logger *observability.Logger) *Catalog {
	return &Catalog{
		plans:  DefaultPlans(),
		logger: logger,
	}
}

// Get returns a plan by name
func (c *Catalog) Get(name string) (Plan, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	plan, ok := c.plans[name]
	return plan, ok
}

// List returns all plans
func (c *Catalog) List() []Plan {
	c.mu.RLock()
	defer c.mu.RUnlock()

	plans := make([]Plan, 0, len(c.plans))
	for _, plan := range c.plans {
		plans = append(plans, plan)
	}
	return plans
}

// LoadFile replaces the catalog with the plans from a YAML file.
// The built-in plans remain available for names the file does not define.
func (c *Catalog) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read plan file: %w", err)
	}

	var file planFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse plan file: %w", err)
	}

	plans := DefaultPlans()
	for _, plan := range file.Plans {
		if plan.Name == "" {
			return fmt.Errorf("plan file contains a plan with no name")
		}
		if plan.ConcurrencyLimit < 0 || plan.MinuteQuota < 0 || plan.NumberQuota < 0 {
			return fmt.Errorf("plan %s has negative limits", plan.Name)
		}
		plans[plan.Name] = plan
	}

	c.mu.Lock()
	c.plans = plans
	c.mu.Unlock()

	c.logger.WithField("path", path).
		WithField("plan_count", len(plans)).
		Info("Plan catalog loaded")

	return nil
}

// Watch reloads the catalog whenever the plan file changes on disk.
// It blocks until the context is canceled, so run it in a goroutine.
// A reload failure keeps the previous catalog and logs the error.
func (c *Catalog) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create plan file watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory, not the file: editors replace files on save,
	// which drops a watch registered on the file itself.
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch plan directory: %w", err)
	}

	defer observability.RecoverPanic(c.logger, "plan catalog watcher")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := c.LoadFile(path); err != nil {
				c.logger.WithError(err).WithField("path", path).
					Error("Plan catalog reload failed, keeping previous catalog")
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.logger.WithError(err).Warn("Plan file watcher error")
		}
	}
}
