package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"

	"github.com/ringforge/callgate/pkg/numbers"
)

// numbersStub is an in-memory numbers.Service for handler tests
type numbersStub struct {
	addErr    error
	removeErr error
	owned     []*numbers.PhoneNumber
}

func (s *numbersStub) AddNumber(accountID, number, label string) (*numbers.PhoneNumber, error) {
	if s.addErr != nil {
		return nil, s.addErr
	}
	return &numbers.PhoneNumber{ID: "num_1", AccountID: accountID, Number: number, Label: label}, nil
}

func (s *numbersStub) RemoveNumber(accountID, identifier string) error {
	return s.removeErr
}

func (s *numbersStub) ListNumbers(accountID string) ([]*numbers.PhoneNumber, error) {
	return s.owned, nil
}

func newNumberRouter(stub *numbersStub) *mux.Router {
	router := mux.NewRouter()
	NewNumberHandlers(stub).RegisterRoutes(router)
	return router
}

func TestAddNumberHandler(t *testing.T) {
	router := newNumberRouter(&numbersStub{})

	body := bytes.NewBufferString(`{"number":"+15551234567","label":"support"}`)
	req := httptest.NewRequest(http.MethodPost, "/accounts/acct_123/numbers", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), "+15551234567")
}

func TestAddNumberHandler_QuotaExceeded(t *testing.T) {
	stub := &numbersStub{addErr: &numbers.QuotaExceededError{AccountID: "acct_123", Current: 2, Limit: 2}}
	router := newNumberRouter(stub)

	req := httptest.NewRequest(http.MethodPost, "/accounts/acct_123/numbers", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAddNumberHandler_AlreadyOwned(t *testing.T) {
	stub := &numbersStub{addErr: &numbers.AlreadyOwnedError{Number: "+15551234567"}}
	router := newNumberRouter(stub)

	body := bytes.NewBufferString(`{"number":"+15551234567"}`)
	req := httptest.NewRequest(http.MethodPost, "/accounts/acct_123/numbers", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRemoveNumberHandler(t *testing.T) {
	router := newNumberRouter(&numbersStub{})

	req := httptest.NewRequest(http.MethodDelete, "/accounts/acct_123/numbers/num_1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRemoveNumberHandler_NotFound(t *testing.T) {
	stub := &numbersStub{removeErr: &numbers.NotFoundError{Identifier: "num_gone"}}
	router := newNumberRouter(stub)

	req := httptest.NewRequest(http.MethodDelete, "/accounts/acct_123/numbers/num_gone", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListNumbersHandler(t *testing.T) {
	stub := &numbersStub{
		owned: []*numbers.PhoneNumber{
			{ID: "num_1", Number: "+15551234567"},
			{ID: "num_2", Number: "+15557654321"},
		},
	}
	router := newNumberRouter(stub)

	req := httptest.NewRequest(http.MethodGet, "/accounts/acct_123/numbers", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "num_2")
}
