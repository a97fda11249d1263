package calls

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ringforge/callgate/pkg/admission"
	"github.com/ringforge/callgate/pkg/async"
	"github.com/ringforge/callgate/pkg/observability"
	"github.com/ringforge/callgate/pkg/usage"
)

// QuotaExhaustedError indicates the account's minute quota is used up and
// the overage policy blocks new calls
type QuotaExhaustedError struct {
	AccountID string
}

func (e *QuotaExhaustedError) Error() string {
	return fmt.Sprintf("minute quota exhausted for account %s", e.AccountID)
}

// IsQuotaExhausted checks if an error is a QuotaExhaustedError
func IsQuotaExhausted(err error) bool {
	_, ok := err.(*QuotaExhaustedError)
	return ok
}

// NotFoundError indicates a call ID that does not exist
type NotFoundError struct {
	CallID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("call %s not found", e.CallID)
}

// IsNotFound checks if an error is a NotFoundError
func IsNotFound(err error) bool {
	_, ok := err.(*NotFoundError)
	return ok
}

// Controller orchestrates call admission, simulation, and teardown
type Controller struct {
	db        *sql.DB
	admission admission.Service
	usage     usage.Service
	logger    *observability.Logger
	metrics   *observability.Metrics

	// blockOnQuotaExhausted rejects calls once paid minutes run out.
	// When false, exhausted accounts keep calling and accrue overage.
	blockOnQuotaExhausted bool
	maxHold               time.Duration
}

// NewController creates a call lifecycle controller
func NewController(db *sql.DB, admissionService admission.Service, usageService usage.Service,
	logger *observability.Logger, metrics *observability.Metrics,
	blockOnQuotaExhausted bool, maxHold time.Duration) *Controller {
	return &Controller{
		db:                    db,
		admission:             admissionService,
		usage:                 usageService,
		logger:                logger,
		metrics:               metrics,
		blockOnQuotaExhausted: blockOnQuotaExhausted,
		maxHold:               maxHold,
	}
}

// Begin admits a call and leaves it active. The caller owns the terminal
// transition via Finish; calls abandoned past the reaper's max age are
// forced to failed.
//
// On rejection the typed error is returned alongside the call, whose state
// is rejected; no slot is held and no usage is recorded.
func (c *Controller) Begin(req SimulateRequest) (*Call, error) {
	if req.AccountID == "" {
		return nil, fmt.Errorf("call request has no account")
	}
	if req.Minutes < 0 {
		return nil, fmt.Errorf("call request has negative minutes")
	}

	call := &Call{
		ID:        "call_" + uuid.NewString(),
		AccountID: req.AccountID,
		Number:    req.Number,
		State:     StateRequested,
		Minutes:   req.Minutes,
		IsTrial:   req.IsTrial,
		Message:   req.Message,
	}

	err := c.db.QueryRow(`
		INSERT INTO calls (id, account_id, number, state, minutes, is_trial, message)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING started_at
	`, call.ID, call.AccountID, call.Number, call.State, call.Minutes, call.IsTrial, call.Message).
		Scan(&call.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create call: %w", err)
	}

	if c.blockOnQuotaExhausted && !req.IsTrial {
		exhausted, err := c.usage.MinutesExhausted(req.AccountID)
		if err != nil {
			return nil, err
		}
		if exhausted {
			if err := c.setState(call, StateRejected); err != nil {
				return nil, err
			}
			c.metrics.CallsSimulatedTotal.WithLabelValues(string(StateRejected)).Inc()
			return call, &QuotaExhaustedError{AccountID: req.AccountID}
		}
	}

	if err := c.admission.TryAdmit(req.AccountID); err != nil {
		if admission.IsConcurrencyLimitExceeded(err) {
			if stateErr := c.setState(call, StateRejected); stateErr != nil {
				return nil, stateErr
			}
			c.metrics.AdmissionsTotal.WithLabelValues("rejected").Inc()
			c.metrics.CallsSimulatedTotal.WithLabelValues(string(StateRejected)).Inc()
			return call, err
		}
		return nil, err
	}

	c.metrics.AdmissionsTotal.WithLabelValues("admitted").Inc()
	c.metrics.ActiveCallsGauge.WithLabelValues(req.AccountID).Inc()

	if err := c.setState(call, StateActive); err != nil {
		// The slot is held but the call cannot go active; tear down now.
		c.releaseSlot(call.AccountID)
		return nil, err
	}

	return call, nil
}

// Simulate runs one call end to end.
//
// Rejections surface the same way as Begin. On admission the call goes
// active and, unless HoldFor asks for a lingering call, completes
// synchronously with its slot released and usage recorded.
func (c *Controller) Simulate(ctx context.Context, req SimulateRequest) (*Call, error) {
	if req.HoldFor > c.maxHold {
		req.HoldFor = c.maxHold
	}

	call, err := c.Begin(req)
	if err != nil {
		return call, err
	}

	terminal := StateCompleted
	if req.Fail {
		terminal = StateFailed
	}

	if req.HoldFor > 0 {
		async.SafeGo(context.WithoutCancel(ctx), req.HoldFor+c.maxHold, "call teardown", func(taskCtx context.Context) error {
			select {
			case <-taskCtx.Done():
			case <-time.After(req.HoldFor):
			}
			return c.Finish(call.ID, terminal)
		})
		return call, nil
	}

	if err := c.Finish(call.ID, terminal); err != nil {
		return nil, err
	}
	call.State = terminal
	now := time.Now()
	call.EndedAt = &now

	return call, nil
}

// Finish drives a call to a terminal state and performs the teardown side
// effects. The conditional UPDATE makes exactly one caller the winner, so
// the slot release and the usage recording happen exactly once per call
// even when completion races the reaper. All three writes share one
// transaction: a crash mid-teardown leaves the call active and the next
// reaper sweep retries the whole teardown.
func (c *Controller) Finish(callID string, terminal State) error {
	if !terminal.IsTerminal() {
		return fmt.Errorf("state %s is not terminal", terminal)
	}

	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin teardown: %w", err)
	}
	defer tx.Rollback()

	var accountID string
	var minutes int64
	var isTrial bool
	err = tx.QueryRow(`
		UPDATE calls
		SET state = $2, ended_at = NOW()
		WHERE id = $1 AND state = 'active'
		RETURNING account_id, minutes, is_trial
	`, callID, terminal).Scan(&accountID, &minutes, &isTrial)
	if err == sql.ErrNoRows {
		// Already terminal; the winner did the teardown.
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to finish call: %w", err)
	}

	if err := c.admission.ReleaseTx(tx, accountID); err != nil {
		c.metrics.ReleasesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to release slot for call %s: %w", callID, err)
	}

	if err := c.usage.RecordUsageTx(tx, accountID, minutes, 1, isTrial); err != nil {
		c.logger.WithError(err).
			WithField("call_id", callID).
			WithField("account_id", accountID).
			Error("Usage recording failed on call teardown")
		return fmt.Errorf("failed to record usage for call %s: %w", callID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit teardown: %w", err)
	}

	c.metrics.ReleasesTotal.WithLabelValues("ok").Inc()
	c.metrics.ActiveCallsGauge.WithLabelValues(accountID).Dec()

	bucket := "paid"
	if isTrial {
		bucket = "trial"
	}
	c.metrics.MinutesRecordedTotal.WithLabelValues(bucket).Add(float64(minutes))
	c.metrics.CallsRecordedTotal.WithLabelValues(bucket).Inc()
	c.metrics.CallsSimulatedTotal.WithLabelValues(string(terminal)).Inc()

	return nil
}

// GetCall retrieves a call by ID
func (c *Controller) GetCall(callID string) (*Call, error) {
	call := &Call{}
	var endedAt sql.NullTime
	err := c.db.QueryRow(`
		SELECT id, account_id, number, state, minutes, is_trial, message, started_at, ended_at
		FROM calls
		WHERE id = $1
	`, callID).Scan(&call.ID, &call.AccountID, &call.Number, &call.State, &call.Minutes,
		&call.IsTrial, &call.Message, &call.StartedAt, &endedAt)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{CallID: callID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get call: %w", err)
	}

	if endedAt.Valid {
		call.EndedAt = &endedAt.Time
	}

	return call, nil
}

// setState records a state change for a non-terminal transition
func (c *Controller) setState(call *Call, state State) error {
	_, err := c.db.Exec(`UPDATE calls SET state = $2 WHERE id = $1`, call.ID, state)
	if err != nil {
		return fmt.Errorf("failed to update call state: %w", err)
	}
	call.State = state
	return nil
}

// releaseSlot frees the concurrency slot and keeps the gauge honest
func (c *Controller) releaseSlot(accountID string) {
	if err := c.admission.Release(accountID); err != nil {
		c.metrics.ReleasesTotal.WithLabelValues("error").Inc()
		c.logger.WithError(err).
			WithField("account_id", accountID).
			Error("Slot release failed, account may leak a concurrency slot")
		return
	}
	c.metrics.ReleasesTotal.WithLabelValues("ok").Inc()
	c.metrics.ActiveCallsGauge.WithLabelValues(accountID).Dec()
}
