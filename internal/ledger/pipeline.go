package ledger

import (
	"context"
	"fmt"

	"github.com/FacundoTogliefoso/transaction-log/internal/metrics"
	"github.com/FacundoTogliefoso/transaction-log/internal/models"

	"github.com/shopspring/decimal"
)

// UserStore is what the pipeline needs from the identity store.
type UserStore interface {
	Get(ctx context.Context, id string) (*models.User, error)
	Save(ctx context.Context, u *models.User) error
}

// TransactionStore is what the pipeline needs from the ledger store.
type TransactionStore interface {
	Save(ctx context.Context, t *models.Transaction) error
}

// DepositMode selects how deposits in a batch reach the balance.
type DepositMode string

const (
	// DepositAggregate credits the sum of every deposit before any debit
	// is looked at, so a withdrawal listed before a deposit already sees
	// that deposit.
	DepositAggregate DepositMode = "aggregate"
	// DepositSequential applies every record strictly in input order.
	DepositSequential DepositMode = "sequential"
)

func ParseDepositMode(s string) (DepositMode, error) {
	switch DepositMode(s) {
	case DepositAggregate, "":
		return DepositAggregate, nil
	case DepositSequential:
		return DepositSequential, nil
	}
	return "", fmt.Errorf("unknown deposit mode %q", s)
}

// Failure describes one record that was not applied.
type Failure struct {
	Index int    `json:"index"`
	Ref   any    `json:"ref,omitempty"`
	Error string `json:"error"`
}

// Summary is the outcome of one batch. Stored counts rejected debits too,
// since they are kept for audit.
type Summary struct {
	Total    int             `json:"total"`
	Admitted int             `json:"admitted"`
	Rejected int             `json:"rejected"`
	Invalid  int             `json:"invalid"`
	Stored   int             `json:"stored"`
	Balance  decimal.Decimal `json:"balance"`
	Failures []Failure       `json:"failures"`
}

// Complete reports whether every record of the batch was stored.
func (s Summary) Complete() bool {
	return s.Stored == s.Total
}

func (s *Summary) fail(i int, r Record, err error) {
	s.Failures = append(s.Failures, Failure{Index: i, Ref: r.ID, Error: err.Error()})
}

// Pipeline ingests batches for one owner at a time.
type Pipeline struct {
	users  UserStore
	txs    TransactionStore
	engine *Engine
	locks  *Locker
	mode   DepositMode
}

func NewPipeline(users UserStore, txs TransactionStore, engine *Engine, locks *Locker, mode DepositMode) *Pipeline {
	if engine == nil {
		engine = NewEngine(nil)
	}
	if locks == nil {
		locks = NewLocker()
	}
	if mode == "" {
		mode = DepositAggregate
	}
	return &Pipeline{users: users, txs: txs, engine: engine, locks: locks, mode: mode}
}

func (p *Pipeline) Mode() DepositMode { return p.mode }

// Ingest applies records, in order, to the account of ownerID. Records are
// independent: an invalid one is reported and skipped, and a store error
// stops the batch leaving everything before it in place. The summary is
// returned in both cases.
func (p *Pipeline) Ingest(ctx context.Context, ownerID string, records []Record) (Summary, error) {
	unlock := p.locks.Lock(ownerID)
	defer unlock()

	sum := Summary{Total: len(records), Failures: []Failure{}}

	user, err := p.users.Get(ctx, ownerID)
	if err != nil {
		metrics.BatchesFailed.Add(1)
		return sum, fmt.Errorf("load owner %s: %w", ownerID, err)
	}
	sum.Balance = user.Balance

	aggregate := p.mode == DepositAggregate
	if aggregate {
		if user, err = p.creditDeposits(ctx, user, records); err != nil {
			metrics.BatchesFailed.Add(1)
			return sum, err
		}
		sum.Balance = user.Balance
	}

	for i, r := range records {
		var t *models.Transaction
		if aggregate && isDeposit(r) {
			// already credited above, only stored here
			if t, err = p.engine.Normalize(user.ID, r); err == nil {
				t.Completed = true
			}
		} else {
			var res Result
			if res, err = p.engine.Apply(user, r); err == nil {
				if res.BalanceChanged(user.Balance) {
					if err := p.users.Save(ctx, res.User); err != nil {
						metrics.BatchesFailed.Add(1)
						return sum, fmt.Errorf("record %d: %w", i, err)
					}
					user = res.User
					sum.Balance = user.Balance
				}
				t = res.Transaction
			}
		}
		if err != nil {
			sum.Invalid++
			sum.fail(i, r, err)
			metrics.TransactionsInvalid.Add(1)
			continue
		}

		if err := p.txs.Save(ctx, t); err != nil {
			metrics.BatchesFailed.Add(1)
			return sum, fmt.Errorf("record %d: %w", i, err)
		}
		sum.Stored++
		metrics.TransactionsCreated.Add(1)
		if t.Completed {
			sum.Admitted++
		} else {
			sum.Rejected++
			sum.fail(i, r, ErrInsufficientBalance)
			metrics.TransactionsRejected.Add(1)
		}
	}

	metrics.BatchesIngested.Add(1)
	return sum, nil
}

// creditDeposits adds every valid deposit of the batch to the balance in
// a single write.
func (p *Pipeline) creditDeposits(ctx context.Context, user *models.User, records []Record) (*models.User, error) {
	total := decimal.Zero
	found := false
	for _, r := range records {
		if !isDeposit(r) {
			continue
		}
		t, err := p.engine.Normalize(user.ID, r)
		if err != nil {
			continue
		}
		total = total.Add(t.Amount)
		found = true
	}
	if !found {
		return user, nil
	}

	updated := *user
	updated.Balance = updated.Balance.Add(total)
	if err := p.users.Save(ctx, &updated); err != nil {
		return user, fmt.Errorf("credit deposits: %w", err)
	}
	return &updated, nil
}

func isDeposit(r Record) bool {
	t, err := parseType(r.Type)
	return err == nil && t == models.TypeDeposit
}
