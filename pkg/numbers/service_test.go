package numbers

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedAllocator always allocates the same number
type fixedAllocator struct {
	number string
}

func (a *fixedAllocator) Allocate() (string, error) {
	return a.number, nil
}

func newTestService(t *testing.T) (*PostgresService, sqlmock.Sqlmock, func()) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	service := NewPostgresService(db, &fixedAllocator{number: "+15550001111"})
	return service, mock, func() { db.Close() }
}

// The quota query must take the row lock that serializes racing adds, so
// the expectation insists on the FOR UPDATE clause.
func expectQuotaAndCount(mock sqlmock.Sqlmock, accountID string, quota, count int) {
	mock.ExpectQuery("SELECT number_quota FROM subscriptions (.+) FOR UPDATE").
		WithArgs(accountID).
		WillReturnRows(sqlmock.NewRows([]string{"number_quota"}).AddRow(quota))
	mock.ExpectQuery("SELECT COUNT").
		WithArgs(accountID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(count))
}

func TestAddNumber_Success(t *testing.T) {
	service, mock, done := newTestService(t)
	defer done()

	mock.ExpectBegin()
	expectQuotaAndCount(mock, "acct_123", 5, 1)
	mock.ExpectQuery("INSERT INTO phone_numbers").
		WithArgs(sqlmock.AnyArg(), "acct_123", "+15551234567", "Front Desk").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	mock.ExpectCommit()

	phone, err := service.AddNumber("acct_123", "+15551234567", "Front Desk")
	require.NoError(t, err)
	assert.Contains(t, phone.ID, "num_")
	assert.Equal(t, "+15551234567", phone.Number)
	assert.Equal(t, "Front Desk", phone.Label)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddNumber_NormalizesInput(t *testing.T) {
	service, mock, done := newTestService(t)
	defer done()

	mock.ExpectBegin()
	expectQuotaAndCount(mock, "acct_123", 5, 0)
	mock.ExpectQuery("INSERT INTO phone_numbers").
		WithArgs(sqlmock.AnyArg(), "acct_123", "+15551234567", "").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	mock.ExpectCommit()

	phone, err := service.AddNumber("acct_123", "+1 (555) 123-4567", "")
	require.NoError(t, err)
	assert.Equal(t, "+15551234567", phone.Number)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddNumber_AllocatesWhenOmitted(t *testing.T) {
	service, mock, done := newTestService(t)
	defer done()

	mock.ExpectBegin()
	expectQuotaAndCount(mock, "acct_123", 5, 0)
	mock.ExpectQuery("INSERT INTO phone_numbers").
		WithArgs(sqlmock.AnyArg(), "acct_123", "+15550001111", "").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	mock.ExpectCommit()

	phone, err := service.AddNumber("acct_123", "", "")
	require.NoError(t, err)
	assert.Equal(t, "+15550001111", phone.Number)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddNumber_QuotaExceeded(t *testing.T) {
	service, mock, done := newTestService(t)
	defer done()

	mock.ExpectBegin()
	expectQuotaAndCount(mock, "acct_123", 2, 2)
	mock.ExpectRollback()

	_, err := service.AddNumber("acct_123", "+15551234567", "")
	require.Error(t, err)
	assert.True(t, IsQuotaExceeded(err))

	quotaErr := err.(*QuotaExceededError)
	assert.Equal(t, 2, quotaErr.Current)
	assert.Equal(t, 2, quotaErr.Limit)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddNumber_NoSubscription_ZeroQuota(t *testing.T) {
	service, mock, done := newTestService(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT number_quota FROM subscriptions (.+) FOR UPDATE").
		WithArgs("acct_123").
		WillReturnRows(sqlmock.NewRows([]string{"number_quota"}))
	mock.ExpectQuery("SELECT COUNT").
		WithArgs("acct_123").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectRollback()

	_, err := service.AddNumber("acct_123", "+15551234567", "")
	require.Error(t, err)
	assert.True(t, IsQuotaExceeded(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddNumber_AlreadyOwned(t *testing.T) {
	service, mock, done := newTestService(t)
	defer done()

	mock.ExpectBegin()
	expectQuotaAndCount(mock, "acct_123", 5, 0)
	mock.ExpectQuery("INSERT INTO phone_numbers").
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	_, err := service.AddNumber("acct_123", "+15551234567", "")
	require.Error(t, err)
	assert.True(t, IsAlreadyOwned(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddNumber_InvalidNumber(t *testing.T) {
	service, _, done := newTestService(t)
	defer done()

	_, err := service.AddNumber("acct_123", "555-1234", "")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "country code")
}

func TestRemoveNumber_Success(t *testing.T) {
	service, mock, done := newTestService(t)
	defer done()

	mock.ExpectExec("DELETE FROM phone_numbers").
		WithArgs("acct_123", "num_1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := service.RemoveNumber("acct_123", "num_1")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRemoveNumber_NotFound(t *testing.T) {
	service, mock, done := newTestService(t)
	defer done()

	mock.ExpectExec("DELETE FROM phone_numbers").
		WithArgs("acct_123", "num_gone").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := service.RemoveNumber("acct_123", "num_gone")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRemoveNumber_RepeatedRemovalIsNotFound(t *testing.T) {
	service, mock, done := newTestService(t)
	defer done()

	mock.ExpectExec("DELETE FROM phone_numbers").
		WithArgs("acct_123", "num_1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM phone_numbers").
		WithArgs("acct_123", "num_1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, service.RemoveNumber("acct_123", "num_1"))

	err := service.RemoveNumber("acct_123", "num_1")
	assert.True(t, IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListNumbers(t *testing.T) {
	service, mock, done := newTestService(t)
	defer done()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "account_id", "number", "label", "created_at"}).
		AddRow("num_1", "acct_123", "+15551234567", "Front Desk", now).
		AddRow("num_2", "acct_123", "+15559876543", "", now)
	mock.ExpectQuery("SELECT (.+) FROM phone_numbers").
		WithArgs("acct_123").
		WillReturnRows(rows)

	numbers, err := service.ListNumbers("acct_123")
	require.NoError(t, err)
	require.Len(t, numbers, 2)
	assert.Equal(t, "Front Desk", numbers[0].Label)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListNumbers_Empty(t *testing.T) {
	service, mock, done := newTestService(t)
	defer done()

	mock.ExpectQuery("SELECT (.+) FROM phone_numbers").
		WithArgs("acct_123").
		WillReturnRows(sqlmock.NewRows([]string{"id", "account_id", "number", "label", "created_at"}))

	numbers, err := service.ListNumbers("acct_123")
	require.NoError(t, err)
	assert.Empty(t, numbers)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "already normalized", input: "+15551234567", want: "+15551234567"},
		{name: "strips formatting", input: "+1 (555) 123-4567", want: "+15551234567"},
		{name: "strips dots", input: "+1.555.123.4567", want: "+15551234567"},
		{name: "no plus prefix", input: "15551234567", wantErr: true},
		{name: "too short", input: "+1234567", wantErr: true},
		{name: "too long", input: "+1234567890123456", wantErr: true},
		{name: "letters rejected", input: "+1555CALLNOW", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRandomAllocator(t *testing.T) {
	allocator := NewRandomAllocator()

	number, err := allocator.Allocate()
	require.NoError(t, err)

	normalized, err := Normalize(number)
	require.NoError(t, err)
	assert.Equal(t, number, normalized)
	assert.Contains(t, number, "+1555")
}
