// Package audit replays each account's event log and checks it against the
// cached account fields.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chris/loyalty-ledger/pkg/models"
	"github.com/chris/loyalty-ledger/pkg/storage"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultConcurrency = 8
	pageSize           = 100
)

// Store is what the auditor reads.
type Store interface {
	storage.AccountReader
	storage.LedgerReader
}

// Finding is one inconsistency found in an account.
type Finding struct {
	AccountID string `json:"accountId"`
	Seq       int64  `json:"seq,omitempty"`
	Problem   string `json:"problem"`
}

type Report struct {
	Accounts int       `json:"accounts"`
	Events   int       `json:"events"`
	Findings []Finding `json:"findings"`
}

// OK reports whether the audit found nothing.
func (r *Report) OK() bool { return len(r.Findings) == 0 }

type Auditor struct {
	store       Store
	logger      *slog.Logger
	concurrency int
}

func New(store Store, logger *slog.Logger, concurrency int) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Auditor{store: store, logger: logger.With("component", "audit"), concurrency: concurrency}
}

// Run audits every account. Storage errors abort the run; inconsistencies are
// collected into the report.
func (a *Auditor) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	accounts, err := a.store.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	report := &Report{Accounts: len(accounts), Findings: []Finding{}}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i := range accounts {
		acc := accounts[i]
		g.Go(func() error {
			events, findings, err := a.CheckAccount(gctx, &acc)
			if err != nil {
				return err
			}
			mu.Lock()
			report.Events += events
			report.Findings = append(report.Findings, findings...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	log := a.logger.With("accounts", report.Accounts, "events", report.Events, "duration", time.Since(start))
	if report.OK() {
		log.Info("audit passed")
	} else {
		log.Warn("audit found inconsistencies", "findings", len(report.Findings))
	}
	return report, nil
}

// CheckAccount walks the account's events oldest first and verifies the
// balanceAfter chain, the seq and ts order and the cached totals.
func (a *Auditor) CheckAccount(ctx context.Context, acc *models.Account) (int, []Finding, error) {
	events, err := a.loadAll(ctx, acc.ID)
	if err != nil {
		return 0, nil, err
	}
	// Events appended after the account snapshot was taken are not part of it.
	for i := range events {
		if events[i].Seq > acc.LastSeq {
			events = events[:i]
			break
		}
	}

	var findings []Finding
	add := func(seq int64, format string, args ...any) {
		findings = append(findings, Finding{AccountID: acc.ID, Seq: seq, Problem: fmt.Sprintf(format, args...)})
	}

	var (
		balance int64
		spend   = decimal.Zero
		prev    *models.Event
	)
	for i := range events {
		ev := &events[i]
		balance += ev.DeltaPoints
		if ev.BalanceAfter != balance {
			add(ev.Seq, "balanceAfter %d, replay gives %d", ev.BalanceAfter, balance)
			balance = ev.BalanceAfter
		}
		if ev.BalanceAfter < 0 {
			add(ev.Seq, "negative balanceAfter %d", ev.BalanceAfter)
		}
		if ev.Type == models.EARN && ev.AmountMoney != nil {
			spend = spend.Add(*ev.AmountMoney)
		}
		if prev != nil {
			if ev.Seq != prev.Seq+1 {
				add(ev.Seq, "seq gap after %d", prev.Seq)
			}
			if !ev.Ts.After(prev.Ts) {
				add(ev.Seq, "ts %s is not after %s", ev.Ts.Format(time.RFC3339Nano), prev.Ts.Format(time.RFC3339Nano))
			}
		}
		prev = ev
	}

	if balance != acc.BalancePoints {
		add(0, "cached balance %d, ledger sum %d", acc.BalancePoints, balance)
	}
	if !spend.Equal(acc.TotalSpendMoney) {
		add(0, "cached totalSpend %s, ledger sum %s", acc.TotalSpendMoney.String(), spend.String())
	}
	if int64(len(events)) != acc.LastSeq {
		add(0, "account lastSeq %d, ledger holds %d events", acc.LastSeq, len(events))
	}
	return len(events), findings, nil
}

// loadAll pages the ledger newest first and returns it oldest first.
func (a *Auditor) loadAll(ctx context.Context, accountID string) ([]models.Event, error) {
	var (
		all    []models.Event
		cursor *time.Time
	)
	for {
		page, err := a.store.ListEvents(ctx, accountID, cursor, pageSize)
		if err != nil {
			return nil, fmt.Errorf("failed to list events for account %s: %w", accountID, err)
		}
		all = append(all, page...)
		if len(page) < pageSize {
			break
		}
		ts := page[len(page)-1].Ts
		cursor = &ts
	}
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	return all, nil
}
