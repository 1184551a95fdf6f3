package server

import (
	"bytes"
	"context"
	"errors"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/chris/loyalty-ledger/pkg/api"
	"github.com/chris/loyalty-ledger/pkg/auth"
	"github.com/chris/loyalty-ledger/pkg/engine"
	"github.com/chris/loyalty-ledger/pkg/metrics"
	"github.com/chris/loyalty-ledger/pkg/query"
	"github.com/chris/loyalty-ledger/pkg/ruleset"
	"github.com/chris/loyalty-ledger/pkg/storage/memory"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	*httptest.Server
	issuer *auth.Issuer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.New()
	m := metrics.New(prometheus.NewRegistry())

	router := NewRouter(Deps{
		Engine:   engine.New(store, engine.Options{Metrics: m, Logger: logger}),
		Query:    query.New(store, logger),
		Rulesets: ruleset.New(store, logger),
		Verifier: auth.NewVerifier("test-secret", "loyalty"),
		Metrics:  m,
		Logger:   logger,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, issuer: auth.NewIssuer("test-secret", "loyalty", time.Hour)}
}

func (s *testServer) do(t *testing.T, method, path, user string, roles []auth.Role, body any, out any) int {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.URL+path, rdr)
	require.NoError(t, err)
	if user != "" {
		token, err := s.issuer.Issue(user, roles...)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

var (
	admin   = []auth.Role{auth.RoleAdmin}
	cashier = []auth.Role{auth.RoleCashier}
	client  = []auth.Role{auth.RoleClient}
)

func TestLoyaltyFlow(t *testing.T) {
	s := newTestServer(t)
	past := time.Now().Add(-time.Hour).UTC()

	status := s.do(t, http.MethodPost, "/admin/rulesets", "root", admin, api.NewRuleset{
		EffectiveFrom:   &past,
		BaseRubPerPoint: "10.00",
		Levels: []api.LevelRule{
			{LevelCode: "Green", ThresholdTotalSpend: "0", PercentEarn: "100"},
			{LevelCode: "Light", ThresholdTotalSpend: "3000", PercentEarn: "105"},
		},
	}, nil)
	require.Equal(t, http.StatusCreated, status)

	var acc api.Account
	status = s.do(t, http.MethodPost, "/admin/accounts", "root", admin, api.NewAccount{UserId: "alice"}, &acc)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "Green", acc.LevelCode)

	earn := func(opID, amount string) (int, api.OperationResult) {
		var res api.OperationResult
		st := s.do(t, http.MethodPost, "/cashier/earn", "bob", cashier, api.EarnRequest{OperationId: opID, PublicCode: acc.PublicCode, AmountMoney: amount}, &res)
		return st, res
	}

	st, res := earn("op-1", "2500.00")
	require.Equal(t, http.StatusOK, st)
	assert.Equal(t, int64(250), res.Balance.BalancePoints)

	st, res = earn("op-2", "700.00")
	require.Equal(t, http.StatusOK, st)
	assert.Equal(t, int64(70), res.Event.DeltaPoints)
	assert.Equal(t, "3200.00", res.Balance.TotalSpendMoney)
	assert.Equal(t, "Light", res.Balance.LevelCode)
	require.NotNil(t, res.Event.ActorUserId)
	assert.Equal(t, "bob", *res.Event.ActorUserId)

	st, res = earn("op-2", "700.00")
	require.Equal(t, http.StatusOK, st)
	assert.True(t, res.IdempotentReplay)

	var problem api.Problem
	st = s.do(t, http.MethodPost, "/cashier/spend", "bob", cashier, api.SpendRequest{OperationId: "op-3", PublicCode: acc.PublicCode, AmountPoints: 1000}, &problem)
	assert.Equal(t, http.StatusConflict, st)
	require.NotNil(t, problem.Code)
	assert.Equal(t, "NOT_ENOUGH_BALANCE", *problem.Code)

	var bal api.Balance
	st = s.do(t, http.MethodGet, "/me/balance", "alice", client, nil, &bal)
	require.Equal(t, http.StatusOK, st)
	assert.Equal(t, int64(320), bal.BalancePoints)
	assert.Equal(t, "Light", bal.LevelCode)

	var page api.EventsPage
	st = s.do(t, http.MethodGet, "/me/events?limit=1", "alice", client, nil, &page)
	require.Equal(t, http.StatusOK, st)
	require.Len(t, page.Items, 1)
	require.NotNil(t, page.NextBeforeTs)
	assert.Equal(t, "op-2", page.Items[0].OperationId)

	var older api.EventsPage
	st = s.do(t, http.MethodGet, "/me/events?limit=1&beforeTs="+page.NextBeforeTs.Format(time.RFC3339Nano), "alice", client, nil, &older)
	require.Equal(t, http.StatusOK, st)
	require.Len(t, older.Items, 1)
	assert.Equal(t, "op-1", older.Items[0].OperationId)
	assert.Nil(t, older.NextBeforeTs)

	var rulesets api.RulesetsPage
	st = s.do(t, http.MethodGet, "/admin/rulesets", "root", admin, nil, &rulesets)
	require.Equal(t, http.StatusOK, st)
	assert.Equal(t, 1, rulesets.Total)
}

func TestAccessControl(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/me/balance", "", nil, nil, nil))
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/me/balance", "bob", cashier, nil, nil))
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/admin/rulesets", "alice", client, nil, nil))
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodPost, "/cashier/spend", "alice", client, api.SpendRequest{}, nil))
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/healthz", "", nil, nil, nil))
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodGet, "/healthz", "", nil, nil, nil)

	resp, err := http.Get(s.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.True(t, strings.Contains(string(body), `loyalty_http_requests_total{route="/healthz",status="200"}`))
}

func TestReadiness(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.New()

	t.Run("Ready", func(t *testing.T) {
		router := NewRouter(Deps{Engine: engine.New(store, engine.Options{}), Query: query.New(store, logger), Rulesets: ruleset.New(store, logger), Verifier: auth.NewVerifier("s", ""), Logger: logger})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("Store Down", func(t *testing.T) {
		router := NewRouter(Deps{
			Engine: engine.New(store, engine.Options{}), Query: query.New(store, logger), Rulesets: ruleset.New(store, logger),
			Verifier: auth.NewVerifier("s", ""), Logger: logger,
			Ready: func(ctx context.Context) error { return errors.New("connection refused") },
		})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}
