package calls

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ringforge/callgate/pkg/observability"
)

func newTestReaper(t *testing.T, adm *admissionStub, use *usageStub) (*Reaper, sqlmock.Sqlmock, func()) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	controller := NewController(db, adm, use, logger, metrics, false, 5*time.Minute)
	reaper := NewReaper(db, controller, logger, metrics, 10*time.Minute, time.Minute)
	return reaper, mock, func() { db.Close() }
}

func TestSweep_ReapsStuckCalls(t *testing.T) {
	adm := &admissionStub{}
	use := &usageStub{}
	reaper, mock, done := newTestReaper(t, adm, use)
	defer done()

	mock.ExpectQuery("SELECT id FROM calls").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).
			AddRow("call_1").
			AddRow("call_2"))
	expectFinish(mock, StateFailed, "acct_1", 5, false)
	expectFinish(mock, StateFailed, "acct_2", 3, true)

	reaped, err := reaper.Sweep()
	require.NoError(t, err)
	assert.Equal(t, 2, reaped)

	// Every reaped call released its slot and recorded its usage
	assert.Equal(t, 2, adm.releases)
	assert.Equal(t, 2, use.records)
	assert.Equal(t, int64(8), use.minutes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSweep_NothingStuck(t *testing.T) {
	reaper, mock, done := newTestReaper(t, &admissionStub{}, &usageStub{})
	defer done()

	mock.ExpectQuery("SELECT id FROM calls").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	reaped, err := reaper.Sweep()
	require.NoError(t, err)
	assert.Equal(t, 0, reaped)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSweep_RacingCompletionIsHarmless(t *testing.T) {
	adm := &admissionStub{}
	use := &usageStub{}
	reaper, mock, done := newTestReaper(t, adm, use)
	defer done()

	mock.ExpectQuery("SELECT id FROM calls").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("call_1"))

	// The call completed between the scan and the reap; the terminal
	// update matches no rows and the reaper must not double-release.
	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE calls").
		WithArgs("call_1", StateFailed).
		WillReturnRows(sqlmock.NewRows([]string{"account_id", "minutes", "is_trial"}))
	mock.ExpectRollback()

	reaped, err := reaper.Sweep()
	require.NoError(t, err)
	assert.Equal(t, 1, reaped)
	assert.Equal(t, 0, adm.releases)
	assert.Equal(t, 0, use.records)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSweep_QueryError(t *testing.T) {
	reaper, mock, done := newTestReaper(t, &admissionStub{}, &usageStub{})
	defer done()

	mock.ExpectQuery("SELECT id FROM calls").
		WillReturnError(errors.New("database error"))

	_, err := reaper.Sweep()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to find stuck calls")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReaperStart(t *testing.T) {
	reaper, mock, done := newTestReaper(t, &admissionStub{}, &usageStub{})
	defer done()

	// The scheduler ticks in the background; any sweeps it manages to run
	// before Stop find nothing.
	mock.MatchExpectationsInOrder(false)

	scheduler, err := reaper.Start()
	require.NoError(t, err)
	scheduler.Stop()
}
