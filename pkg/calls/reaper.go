package calls

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ringforge/callgate/pkg/observability"
)

// Reaper reclaims calls that went active and never reached a terminal
// state, forcing them to failed so their slots come back and their usage
// is recorded.
type Reaper struct {
	db         *sql.DB
	controller *Controller
	logger     *observability.Logger
	metrics    *observability.Metrics
	maxAge     time.Duration
	interval   time.Duration
}

// NewReaper creates a reaper
func NewReaper(db *sql.DB, controller *Controller, logger *observability.Logger,
	metrics *observability.Metrics, maxAge, interval time.Duration) *Reaper {
	return &Reaper{
		db:         db,
		controller: controller,
		logger:     logger,
		metrics:    metrics,
		maxAge:     maxAge,
		interval:   interval,
	}
}

// Sweep fails every active call older than the max age. Returns the number
// of calls reaped. Each call goes through the normal terminal transition,
// so a sweep racing a genuine completion is harmless.
func (r *Reaper) Sweep() (int, error) {
	rows, err := r.db.Query(`
		SELECT id FROM calls
		WHERE state = 'active' AND started_at < NOW() - make_interval(secs => $1)
	`, r.maxAge.Seconds())
	if err != nil {
		return 0, fmt.Errorf("failed to find stuck calls: %w", err)
	}
	defer rows.Close()

	var callIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return 0, fmt.Errorf("failed to scan stuck call: %w", err)
		}
		callIDs = append(callIDs, id)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to iterate stuck calls: %w", err)
	}

	reaped := 0
	for _, id := range callIDs {
		if err := r.controller.Finish(id, StateFailed); err != nil {
			r.logger.WithError(err).WithField("call_id", id).
				Error("Failed to reap stuck call")
			continue
		}
		reaped++
		r.metrics.CallsReapedTotal.Inc()
	}

	if reaped > 0 {
		r.logger.WithField("reaped", reaped).Warn("Reaped stuck calls")
	}

	return reaped, nil
}

// Start schedules periodic sweeps and returns the running scheduler.
// Callers stop it with Stop() on shutdown.
func (r *Reaper) Start() (*cron.Cron, error) {
	scheduler := cron.New()
	_, err := scheduler.AddFunc(fmt.Sprintf("@every %s", r.interval), func() {
		if _, err := r.Sweep(); err != nil {
			r.logger.WithError(err).Error("Reaper sweep failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to schedule reaper: %w", err)
	}

	scheduler.Start()
	return scheduler, nil
}
