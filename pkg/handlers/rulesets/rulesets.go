package rulesets

import (
	"context"
	"net/http"
	"time"

	"github.com/chris/loyalty-ledger/pkg/api"
	"github.com/chris/loyalty-ledger/pkg/errs"
	"github.com/chris/loyalty-ledger/pkg/handlers"
	"github.com/chris/loyalty-ledger/pkg/mapping"
	"github.com/chris/loyalty-ledger/pkg/models"
	"github.com/chris/loyalty-ledger/pkg/ruleset"
	"github.com/oapi-codegen/runtime"
)

// Creator appends rulesets to the timeline.
type Creator interface {
	CreateRuleset(ctx context.Context, in ruleset.CreateInput) (*models.Ruleset, error)
}

// Reader serves the ruleset timeline.
type Reader interface {
	CurrentRuleset(ctx context.Context, asOf time.Time) (*models.Ruleset, error)
	RulesetsPage(ctx context.Context, limit, offset int) (*models.RulesetPage, error)
}

// RulesetsHandler holds the dependencies for the admin ruleset endpoints.
type RulesetsHandler struct {
	Creator Creator
	Reader  Reader
	Now     func() time.Time
}

// NewRulesetsHandler creates a new RulesetsHandler.
func NewRulesetsHandler(creator Creator, reader Reader) *RulesetsHandler {
	return &RulesetsHandler{Creator: creator, Reader: reader, Now: time.Now}
}

// CreateRuleset handles POST /admin/rulesets.
func (h *RulesetsHandler) CreateRuleset(w http.ResponseWriter, r *http.Request) {
	var body api.NewRuleset
	if err := handlers.DecodeJSON(r, &body); err != nil {
		handlers.WriteError(w, r, err)
		return
	}

	in, err := mapping.ToDomainNewRuleset(&body)
	if err != nil {
		handlers.WriteError(w, r, err)
		return
	}

	created, err := h.Creator.CreateRuleset(r.Context(), in)
	if err != nil {
		handlers.WriteError(w, r, err)
		return
	}

	handlers.WriteJSON(w, http.StatusCreated, mapping.ToApiRuleset(created))
}

// GetCurrentRuleset handles GET /admin/rulesets/current. An optional asOf
// query parameter looks the timeline up at another instant.
func (h *RulesetsHandler) GetCurrentRuleset(w http.ResponseWriter, r *http.Request) {
	var asOf *time.Time
	if err := runtime.BindQueryParameter("form", true, false, "asOf", r.URL.Query(), &asOf); err != nil {
		handlers.WriteError(w, r, errs.Validation(errs.CodeValidation, "invalid asOf: %v", err))
		return
	}
	at := h.Now()
	if asOf != nil {
		at = *asOf
	}

	rs, err := h.Reader.CurrentRuleset(r.Context(), at)
	if err != nil {
		handlers.WriteError(w, r, err)
		return
	}

	handlers.WriteJSON(w, http.StatusOK, mapping.ToApiRuleset(rs))
}

// ListRulesets handles GET /admin/rulesets.
func (h *RulesetsHandler) ListRulesets(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := handlers.PageParams(r)
	if err != nil {
		handlers.WriteError(w, r, err)
		return
	}

	page, err := h.Reader.RulesetsPage(r.Context(), limit, offset)
	if err != nil {
		handlers.WriteError(w, r, err)
		return
	}

	handlers.WriteJSON(w, http.StatusOK, mapping.ToApiRulesetsPage(page))
}
