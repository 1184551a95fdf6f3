package operations

import (
	"context"
	"net/http"
	"strings"

	"github.com/chris/loyalty-ledger/pkg/api"
	"github.com/chris/loyalty-ledger/pkg/auth"
	"github.com/chris/loyalty-ledger/pkg/errs"
	"github.com/chris/loyalty-ledger/pkg/handlers"
	"github.com/chris/loyalty-ledger/pkg/mapping"
	"github.com/chris/loyalty-ledger/pkg/models"
)

// IdempotencyKeyHeader may carry the operation id instead of the body.
const IdempotencyKeyHeader = "Idempotency-Key"

// AccountReader resolves the public code a cashier scanned.
type AccountReader interface {
	AccountByPublicCode(ctx context.Context, publicCode string) (*models.Account, error)
}

// Executor runs EARN and SPEND operations.
type Executor interface {
	Execute(ctx context.Context, req models.OperationRequest) (*models.OperationResult, error)
}

// OperationsHandler holds the dependencies for the cashier operation endpoints.
type OperationsHandler struct {
	Accounts AccountReader
	Engine   Executor
}

// NewOperationsHandler creates a new OperationsHandler.
func NewOperationsHandler(accounts AccountReader, engine Executor) *OperationsHandler {
	return &OperationsHandler{Accounts: accounts, Engine: engine}
}

// ExecuteOperation handles POST /cashier/operations.
func (h *OperationsHandler) ExecuteOperation(w http.ResponseWriter, r *http.Request) {
	var body api.NewOperation
	if err := handlers.DecodeJSON(r, &body); err != nil {
		handlers.WriteError(w, r, err)
		return
	}
	h.execute(w, r, &body)
}

// Earn handles POST /cashier/earn.
func (h *OperationsHandler) Earn(w http.ResponseWriter, r *http.Request) {
	var body api.EarnRequest
	if err := handlers.DecodeJSON(r, &body); err != nil {
		handlers.WriteError(w, r, err)
		return
	}
	h.execute(w, r, mapping.EarnToOperation(&body))
}

// Spend handles POST /cashier/spend.
func (h *OperationsHandler) Spend(w http.ResponseWriter, r *http.Request) {
	var body api.SpendRequest
	if err := handlers.DecodeJSON(r, &body); err != nil {
		handlers.WriteError(w, r, err)
		return
	}
	h.execute(w, r, mapping.SpendToOperation(&body))
}

func (h *OperationsHandler) execute(w http.ResponseWriter, r *http.Request, op *api.NewOperation) {
	p, ok := auth.FromContext(r.Context())
	if !ok {
		handlers.WriteError(w, r, errs.Unauthenticated("missing auth context"))
		return
	}

	header := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
	switch {
	case op.OperationId == "":
		op.OperationId = header
	case header != "" && header != op.OperationId:
		handlers.WriteError(w, r, errs.Validation(errs.CodeValidation, "operationId and %s header disagree", IdempotencyKeyHeader))
		return
	}

	acc, err := h.Accounts.AccountByPublicCode(r.Context(), op.PublicCode)
	if err != nil {
		handlers.WriteError(w, r, err)
		return
	}

	req, err := mapping.ToDomainOperation(op, acc.ID, p.UserID)
	if err != nil {
		handlers.WriteError(w, r, err)
		return
	}

	res, err := h.Engine.Execute(r.Context(), req)
	if err != nil {
		handlers.WriteError(w, r, err)
		return
	}

	handlers.WriteJSON(w, http.StatusOK, mapping.ToApiOperationResult(res))
}
