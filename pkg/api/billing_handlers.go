package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/google/uuid"

	"github.com/ringforge/callgate/pkg/billing"
	"github.com/ringforge/callgate/pkg/httputil"
	"github.com/ringforge/callgate/pkg/observability"
)

// BillingHandlers handles checkout, subscription and webhook HTTP requests
type BillingHandlers struct {
	billingService billing.Service
	catalog        *billing.Catalog
	metrics        *observability.Metrics
}

// NewBillingHandlers creates a new BillingHandlers
func NewBillingHandlers(billingService billing.Service, catalog *billing.Catalog, metrics *observability.Metrics) *BillingHandlers {
	return &BillingHandlers{
		billingService: billingService,
		catalog:        catalog,
		metrics:        metrics,
	}
}

// RegisterRoutes registers billing routes
func (h *BillingHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/accounts/{id}/checkout", h.simulateCheckout).Methods("POST")
	router.HandleFunc("/accounts/{id}/subscription", h.getSubscription).Methods("GET")
	router.HandleFunc("/accounts/{id}/webhooks", h.submitWebhook).Methods("POST")
	router.HandleFunc("/plans", h.listPlans).Methods("GET")
}

type checkoutRequest struct {
	Plan string `json:"plan"`
}

func (h *BillingHandlers) simulateCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Plan == "" {
		httputil.WriteBadRequest(w, "plan is required")
		return
	}

	outcome, err := h.billingService.SimulateCheckout(mux.Vars(r)["id"], req.Plan)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	h.countWebhook(billing.EventCheckoutCompleted, outcome)
	httputil.WriteSuccess(w, outcome)
}

func (h *BillingHandlers) getSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := h.billingService.GetSubscription(mux.Vars(r)["id"])
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if sub == nil {
		httputil.WriteNotFoundError(w, "no subscription")
		return
	}

	httputil.WriteSuccess(w, sub)
}

type webhookRequest struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Plan string `json:"plan,omitempty"`
}

// submitWebhook accepts an arbitrary provider event. Ignored outcomes
// (duplicates, inapplicable transitions, unknown types) still return 200;
// the provider must not retry them.
func (h *BillingHandlers) submitWebhook(w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Type == "" {
		httputil.WriteBadRequest(w, "type is required")
		return
	}
	if req.ID == "" {
		req.ID = "evt_" + uuid.NewString()
	}

	event := &billing.WebhookEvent{
		ID:        req.ID,
		Type:      req.Type,
		AccountID: mux.Vars(r)["id"],
		Plan:      req.Plan,
	}

	outcome, err := h.billingService.Process(event)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	h.countWebhook(event.Type, outcome)
	httputil.WriteSuccess(w, outcome)
}

func (h *BillingHandlers) listPlans(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, h.catalog.List())
}

func (h *BillingHandlers) countWebhook(eventType string, outcome billing.Outcome) {
	if h.metrics == nil {
		return
	}
	h.metrics.WebhookEventsTotal.WithLabelValues(eventType, string(outcome.Status)).Inc()
}
