package ledger

import (
	"context"
	"net/http"
	"time"

	"github.com/chris/loyalty-ledger/pkg/auth"
	"github.com/chris/loyalty-ledger/pkg/errs"
	"github.com/chris/loyalty-ledger/pkg/handlers"
	"github.com/chris/loyalty-ledger/pkg/mapping"
	"github.com/chris/loyalty-ledger/pkg/models"
)

// Reader serves the caller's own account.
type Reader interface {
	AccountForUser(ctx context.Context, userID string) (*models.Account, error)
	BalanceForUser(ctx context.Context, userID string) (*models.BalanceView, error)
	HistoryPage(ctx context.Context, accountID string, limit int, beforeTs *time.Time) (*models.EventPage, error)
}

// LedgerHandler holds the dependencies for the /me endpoints.
type LedgerHandler struct {
	Reader Reader
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(reader Reader) *LedgerHandler {
	return &LedgerHandler{Reader: reader}
}

// GetProfile handles GET /me.
func (h *LedgerHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	acc, err := h.Reader.AccountForUser(r.Context(), p.UserID)
	if err != nil {
		handlers.WriteError(w, r, err)
		return
	}

	handlers.WriteJSON(w, http.StatusOK, mapping.ToApiAccount(acc))
}

// GetBalance handles GET /me/balance.
func (h *LedgerHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	bal, err := h.Reader.BalanceForUser(r.Context(), p.UserID)
	if err != nil {
		handlers.WriteError(w, r, err)
		return
	}

	handlers.WriteJSON(w, http.StatusOK, mapping.ToApiBalance(bal))
}

// ListEvents handles GET /me/events.
func (h *LedgerHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	limit, beforeTs, err := handlers.HistoryParams(r)
	if err != nil {
		handlers.WriteError(w, r, err)
		return
	}

	acc, err := h.Reader.AccountForUser(r.Context(), p.UserID)
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

func principal(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	p, ok := auth.FromContext(r.Context())
	if !ok {
		handlers.WriteError(w, r, errs.Unauthenticated("missing auth context"))
	}
	return p, ok
}
