package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/ringforge/callgate/pkg/admission"
	"github.com/ringforge/callgate/pkg/calls"
	"github.com/ringforge/callgate/pkg/httputil"
)

// CallHandlers handles call simulation and active-count HTTP requests
type CallHandlers struct {
	controller       *calls.Controller
	admissionService admission.Service

	// defaultHold is how long a held call stays active when the request
	// asks for a hold without a duration.
	defaultHold time.Duration
}

// NewCallHandlers creates a new CallHandlers
func NewCallHandlers(controller *calls.Controller, admissionService admission.Service, defaultHold time.Duration) *CallHandlers {
	return &CallHandlers{
		controller:       controller,
		admissionService: admissionService,
		defaultHold:      defaultHold,
	}
}

// RegisterRoutes registers call routes
func (h *CallHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/accounts/{id}/calls/simulate", h.simulateCall).Methods("POST")
	router.HandleFunc("/accounts/{id}/calls/active", h.getActiveCount).Methods("GET")
	router.HandleFunc("/accounts/{id}/calls/active", h.setActiveCount).Methods("PUT")
	router.HandleFunc("/calls/{id}", h.getCall).Methods("GET")
}

type simulateCallRequest struct {
	Number    string `json:"number,omitempty"`
	Minutes   int64  `json:"minutes"`
	IsTrial   bool   `json:"is_trial"`
	Status    string `json:"status,omitempty"`
	Message   string `json:"message,omitempty"`
	Fail      bool   `json:"fail"`
	Hold      bool   `json:"hold"`
	HoldForMS int64  `json:"hold_for_ms"`
}

func (h *CallHandlers) simulateCall(w http.ResponseWriter, r *http.Request) {
	var req simulateCallRequest
	if r.Body != nil && r.ContentLength > 0 {
		if !httputil.ParseJSONOrError(w, r, &req) {
			return
		}
	}

	// The requested terminal status may be named explicitly or via fail.
	fail := req.Fail || req.Status == string(calls.StateFailed)

	hold := time.Duration(req.HoldForMS) * time.Millisecond
	if req.Hold && hold == 0 {
		hold = h.defaultHold
	}

	call, err := h.controller.Simulate(r.Context(), calls.SimulateRequest{
		AccountID: mux.Vars(r)["id"],
		Number:    req.Number,
		Minutes:   req.Minutes,
		IsTrial:   req.IsTrial,
		Message:   req.Message,
		Fail:      fail,
		HoldFor:   hold,
	})
	if err != nil {
		switch {
		case admission.IsConcurrencyLimitExceeded(err):
			httputil.WriteConflict(w, err.Error())
		case calls.IsQuotaExhausted(err):
			httputil.WriteForbidden(w, err.Error())
		default:
			httputil.WriteInternalError(w, err)
		}
		return
	}

	httputil.WriteCreated(w, call)
}

func (h *CallHandlers) getActiveCount(w http.ResponseWriter, r *http.Request) {
	accountID := mux.Vars(r)["id"]

	count, err := h.admissionService.ActiveCount(accountID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	limit, err := h.admissionService.EffectiveLimit(accountID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]int{
		"active_count": count,
		"limit":        limit,
	})
}

type setActiveCountRequest struct {
	Count int `json:"count"`
}

func (h *CallHandlers) setActiveCount(w http.ResponseWriter, r *http.Request) {
	var req setActiveCountRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Count < 0 {
		httputil.WriteBadRequest(w, "count must be non-negative")
		return
	}

	if err := h.admissionService.SetActiveCount(mux.Vars(r)["id"], req.Count); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]int{"active_count": req.Count})
}

func (h *CallHandlers) getCall(w http.ResponseWriter, r *http.Request) {
	call, err := h.controller.GetCall(mux.Vars(r)["id"])
	if err != nil {
		if calls.IsNotFound(err) {
			httputil.WriteNotFoundError(w, err.Error())
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, call)
}
