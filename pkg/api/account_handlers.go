package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ringforge/callgate/pkg/accounts"
	"github.com/ringforge/callgate/pkg/httputil"
)

// AccountHandlers handles account lifecycle HTTP requests
type AccountHandlers struct {
	accountService accounts.Service
}

// NewAccountHandlers creates a new AccountHandlers
func NewAccountHandlers(accountService accounts.Service) *AccountHandlers {
	return &AccountHandlers{accountService: accountService}
}

// RegisterRoutes registers account routes
func (h *AccountHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/accounts/{id}", h.createAccount).Methods("POST")
	router.HandleFunc("/accounts/{id}", h.getAccount).Methods("GET")
	router.HandleFunc("/accounts/{id}", h.deleteAccount).Methods("DELETE")
	router.HandleFunc("/accounts/{id}/reset", h.resetAccount).Methods("POST")
	router.HandleFunc("/accounts/{id}/state", h.getState).Methods("GET")
}

type createAccountRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (h *AccountHandlers) createAccount(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	// Body is optional; a bare POST installs an anonymous test account.
	var req createAccountRequest
	if r.Body != nil && r.ContentLength > 0 {
		if !httputil.ParseJSONOrError(w, r, &req) {
			return
		}
	}

	account, err := h.accountService.CreateTestAccount(id, req.Name, req.Email)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteCreated(w, account)
}

func (h *AccountHandlers) getAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.accountService.GetAccount(mux.Vars(r)["id"])
	if err != nil {
		if accounts.IsNotFound(err) {
			httputil.WriteNotFoundError(w, err.Error())
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, account)
}

func (h *AccountHandlers) deleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.accountService.DeleteAccount(mux.Vars(r)["id"]); err != nil {
		if accounts.IsNotFound(err) {
			httputil.WriteNotFoundError(w, err.Error())
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *AccountHandlers) resetAccount(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.accountService.ResetAccount(id); err != nil {
		if accounts.IsNotFound(err) {
			httputil.WriteNotFoundError(w, err.Error())
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]string{"account_id": id, "status": "reset"})
}

func (h *AccountHandlers) getState(w http.ResponseWriter, r *http.Request) {
	state, err := h.accountService.GetState(mux.Vars(r)["id"])
	if err != nil {
		if accounts.IsNotFound(err) {
			httputil.WriteNotFoundError(w, err.Error())
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, state)
}
