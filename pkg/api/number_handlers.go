package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ringforge/callgate/pkg/httputil"
	"github.com/ringforge/callgate/pkg/numbers"
)

// NumberHandlers handles phone number registry HTTP requests
type NumberHandlers struct {
	numberService numbers.Service
}

// NewNumberHandlers creates a new NumberHandlers
func NewNumberHandlers(numberService numbers.Service) *NumberHandlers {
	return &NumberHandlers{numberService: numberService}
}

// RegisterRoutes registers phone number routes
func (h *NumberHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/accounts/{id}/numbers", h.addNumber).Methods("POST")
	router.HandleFunc("/accounts/{id}/numbers", h.listNumbers).Methods("GET")
	router.HandleFunc("/accounts/{id}/numbers/{identifier}", h.removeNumber).Methods("DELETE")
}

type addNumberRequest struct {
	Number string `json:"number,omitempty"`
	Label  string `json:"label,omitempty"`
}

func (h *NumberHandlers) addNumber(w http.ResponseWriter, r *http.Request) {
	var req addNumberRequest
	if r.Body != nil && r.ContentLength > 0 {
		if !httputil.ParseJSONOrError(w, r, &req) {
			return
		}
	}

	number, err := h.numberService.AddNumber(mux.Vars(r)["id"], req.Number, req.Label)
	if err != nil {
		switch {
		case numbers.IsQuotaExceeded(err):
			httputil.WriteForbidden(w, err.Error())
		case numbers.IsAlreadyOwned(err):
			httputil.WriteConflict(w, err.Error())
		case numbers.IsNotFound(err):
			httputil.WriteNotFoundError(w, err.Error())
		default:
			httputil.WriteInternalError(w, err)
		}
		return
	}

	httputil.WriteCreated(w, number)
}

func (h *NumberHandlers) listNumbers(w http.ResponseWriter, r *http.Request) {
	owned, err := h.numberService.ListNumbers(mux.Vars(r)["id"])
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, owned)
}

// removeNumber deletes by internal ID or by the number itself. Removing an
// already-removed number is an explicit 404, not a silent success.
func (h *NumberHandlers) removeNumber(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.numberService.RemoveNumber(vars["id"], vars["identifier"]); err != nil {
		if numbers.IsNotFound(err) {
			httputil.WriteNotFoundError(w, err.Error())
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}
