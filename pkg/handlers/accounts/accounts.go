package accounts

import (
	"context"
	"net/http"
	"time"

	"github.com/chris/loyalty-ledger/pkg/api"
	"github.com/chris/loyalty-ledger/pkg/handlers"
	"github.com/chris/loyalty-ledger/pkg/mapping"
	"github.com/chris/loyalty-ledger/pkg/models"
	"github.com/go-chi/chi/v5"
)

// Creator opens loyalty accounts.
type Creator interface {
	CreateAccount(ctx context.Context, userID string) (*models.Account, error)
}

// Reader looks accounts up for cashiers.
type Reader interface {
	AccountByPublicCode(ctx context.Context, publicCode string) (*models.Account, error)
	HistoryPage(ctx context.Context, accountID string, limit int, beforeTs *time.Time) (*models.EventPage, error)
}

// AccountsHandler holds the dependencies for account endpoints.
type AccountsHandler struct {
	Creator Creator
	Reader  Reader
}

// NewAccountsHandler creates a new AccountsHandler.
func NewAccountsHandler(creator Creator, reader Reader) *AccountsHandler {
	return &AccountsHandler{Creator: creator, Reader: reader}
}

// CreateAccount handles POST /admin/accounts.
func (h *AccountsHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var body api.NewAccount
	if err := handlers.DecodeJSON(r, &body); err != nil {
		handlers.WriteError(w, r, err)
		return
	}

	created, err := h.Creator.CreateAccount(r.Context(), body.UserId)
	if err != nil {
		handlers.WriteError(w, r, err)
		return
	}

	handlers.WriteJSON(w, http.StatusCreated, mapping.ToApiAccount(created))
}

// GetAccountByCode handles GET /cashier/accounts/by-code/{publicCode}.
func (h *AccountsHandler) GetAccountByCode(w http.ResponseWriter, r *http.Request) {
	acc, err := h.Reader.AccountByPublicCode(r.Context(), chi.URLParam(r, "publicCode"))
	if err != nil {
		handlers.WriteError(w, r, err)
		return
	}

	handlers.WriteJSON(w, http.StatusOK, mapping.ToApiAccountSummary(acc))
}

// ListAccountEvents handles GET /cashier/accounts/by-code/{publicCode}/events.
func (h *AccountsHandler) ListAccountEvents(w http.ResponseWriter, r *http.Request) {
	limit, beforeTs, err := handlers.HistoryParams(r)
	if err != nil {
		handlers.WriteError(w, r, err)
		return
	}

	acc, err := h.Reader.AccountByPublicCode(r.Context(), chi.URLParam(r, "publicCode"))
	if err != nil {
		handlers.WriteError(w, r, err)
		return
	}

	page, err := h.Reader.HistoryPage(r.Context(), acc.ID, limit, beforeTs)
	if err != nil {
		handlers.WriteError(w, r, err)
		return
	}

	handlers.WriteJSON(w, http.StatusOK, mapping.ToApiEventsPage(page))
}
