package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ringforge/callgate/pkg/httputil"
	"github.com/ringforge/callgate/pkg/usage"
)

// UsageHandlers handles usage metering HTTP requests
type UsageHandlers struct {
	usageService usage.Service
}

// NewUsageHandlers creates a new UsageHandlers
func NewUsageHandlers(usageService usage.Service) *UsageHandlers {
	return &UsageHandlers{usageService: usageService}
}

// RegisterRoutes registers usage routes
func (h *UsageHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/accounts/{id}/usage", h.getUsage).Methods("GET")
	router.HandleFunc("/accounts/{id}/usage", h.setUsage).Methods("PUT")
}

type usageResponse struct {
	AccountID        string        `json:"account_id"`
	Trial            *usage.Record `json:"trial"`
	Paid             *usage.Record `json:"paid"`
	RemainingMinutes int64         `json:"remaining_minutes"`
}

func (h *UsageHandlers) getUsage(w http.ResponseWriter, r *http.Request) {
	accountID := mux.Vars(r)["id"]

	trial, err := h.usageService.GetUsage(accountID, true)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	paid, err := h.usageService.GetUsage(accountID, false)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	remaining, err := h.usageService.RemainingMinutes(accountID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, usageResponse{
		AccountID:        accountID,
		Trial:            trial,
		Paid:             paid,
		RemainingMinutes: remaining,
	})
}

type setUsageRequest struct {
	MinutesUsed int64 `json:"minutes_used"`
	CallsMade   int64 `json:"calls_made"`
	IsTrial     bool  `json:"is_trial"`
}

func (h *UsageHandlers) setUsage(w http.ResponseWriter, r *http.Request) {
	var req setUsageRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.MinutesUsed < 0 || req.CallsMade < 0 {
		httputil.WriteBadRequest(w, "usage totals must be non-negative")
		return
	}

	accountID := mux.Vars(r)["id"]
	if err := h.usageService.SetUsage(accountID, req.MinutesUsed, req.CallsMade, req.IsTrial); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	record, err := h.usageService.GetUsage(accountID, req.IsTrial)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, record)
}
