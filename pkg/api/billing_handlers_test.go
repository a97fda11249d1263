package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ringforge/callgate/pkg/billing"
	"github.com/ringforge/callgate/pkg/observability"
)

// billingStub records processed events and returns canned outcomes
type billingStub struct {
	outcome      billing.Outcome
	err          error
	subscription *billing.Subscription
	lastEvent    *billing.WebhookEvent
	lastPlan     string
}

func (s *billingStub) Process(event *billing.WebhookEvent) (billing.Outcome, error) {
	s.lastEvent = event
	return s.outcome, s.err
}

func (s *billingStub) SimulateCheckout(accountID, plan string) (billing.Outcome, error) {
	s.lastPlan = plan
	return s.outcome, s.err
}

func (s *billingStub) GetSubscription(accountID string) (*billing.Subscription, error) {
	return s.subscription, s.err
}

func newBillingRouter(stub *billingStub) *mux.Router {
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	catalog := billing.NewCatalog(logger)
	router := mux.NewRouter()
	NewBillingHandlers(stub, catalog, nil).RegisterRoutes(router)
	return router
}

func TestCheckoutHandler(t *testing.T) {
	stub := &billingStub{outcome: billing.Applied()}
	router := newBillingRouter(stub)

	body := bytes.NewBufferString(`{"plan":"pro"}`)
	req := httptest.NewRequest(http.MethodPost, "/accounts/acct_123/checkout", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pro", stub.lastPlan)
	assert.Contains(t, rec.Body.String(), `"status":"applied"`)
}

func TestCheckoutHandler_MissingPlan(t *testing.T) {
	router := newBillingRouter(&billingStub{})

	body := bytes.NewBufferString(`{}`)
	req := httptest.NewRequest(http.MethodPost, "/accounts/acct_123/checkout", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookHandler_Applied(t *testing.T) {
	stub := &billingStub{outcome: billing.Applied()}
	router := newBillingRouter(stub)

	body := bytes.NewBufferString(`{"id":"evt_1","type":"invoice.payment_failed"}`)
	req := httptest.NewRequest(http.MethodPost, "/accounts/acct_123/webhooks", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, stub.lastEvent)
	assert.Equal(t, "evt_1", stub.lastEvent.ID)
	assert.Equal(t, "acct_123", stub.lastEvent.AccountID)
}

func TestWebhookHandler_DuplicateStillAcknowledged(t *testing.T) {
	stub := &billingStub{outcome: billing.Ignored(billing.ReasonAlreadyProcessed)}
	router := newBillingRouter(stub)

	body := bytes.NewBufferString(`{"id":"evt_1","type":"checkout.completed","plan":"pro"}`)
	req := httptest.NewRequest(http.MethodPost, "/accounts/acct_123/webhooks", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	// A duplicate is a defined no-op; the provider must see 200 so it
	// stops retrying.
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "already_processed")
}

func TestWebhookHandler_GeneratesEventID(t *testing.T) {
	stub := &billingStub{outcome: billing.Applied()}
	router := newBillingRouter(stub)

	body := bytes.NewBufferString(`{"type":"subscription.deleted"}`)
	req := httptest.NewRequest(http.MethodPost, "/accounts/acct_123/webhooks", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, stub.lastEvent)
	assert.Contains(t, stub.lastEvent.ID, "evt_")
}

func TestWebhookHandler_MissingType(t *testing.T) {
	router := newBillingRouter(&billingStub{})

	body := bytes.NewBufferString(`{"id":"evt_1"}`)
	req := httptest.NewRequest(http.MethodPost, "/accounts/acct_123/webhooks", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetSubscriptionHandler_NoSubscription(t *testing.T) {
	router := newBillingRouter(&billingStub{})

	req := httptest.NewRequest(http.MethodGet, "/accounts/acct_123/subscription", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetSubscriptionHandler(t *testing.T) {
	stub := &billingStub{
		subscription: &billing.Subscription{
			AccountID: "acct_123",
			Plan:      "starter",
			Status:    billing.StatusActive,
		},
	}
	router := newBillingRouter(stub)

	req := httptest.NewRequest(http.MethodGet, "/accounts/acct_123/subscription", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"plan":"starter"`)
}

func TestListPlansHandler(t *testing.T) {
	router := newBillingRouter(&billingStub{})

	req := httptest.NewRequest(http.MethodGet, "/plans", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var plans []billing.Plan
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &plans))
	assert.Len(t, plans, 4)
}
