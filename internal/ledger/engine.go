// Package ledger applies transaction records to account balances and
// ingests whole batches of them.
package ledger

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/FacundoTogliefoso/transaction-log/internal/models"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

var dateLayouts = []string{
	dateLayout,
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// Amount is a record amount kept as text until the engine parses it, so a
// malformed value fails only its own record and not the whole batch.
type Amount string

func (a *Amount) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	switch {
	case s == "null":
		*a = ""
	case strings.HasPrefix(s, `"`):
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*a = Amount(strings.TrimSpace(str))
	default:
		*a = Amount(s)
	}
	return nil
}

// Decimal parses the amount and rejects negative values.
func (a Amount) Decimal() (decimal.Decimal, error) {
	if a == "" {
		return decimal.Zero, fmt.Errorf("%w: missing", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(string(a))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, string(a))
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrNegativeAmount, d)
	}
	return d, nil
}

// Record is one raw entry of an ingested batch. ID is the caller's own
// reference and is only echoed back in failure reports.
type Record struct {
	ID          any    `json:"id,omitempty"`
	Description string `json:"description"`
	Amount      Amount `json:"amount"`
	Date        string `json:"date"`
	Type        string `json:"type"`
}

type Outcome int

const (
	Admitted Outcome = iota + 1
	Rejected
)

func (o Outcome) String() string {
	switch o {
	case Admitted:
		return "admitted"
	case Rejected:
		return "rejected"
	}
	return "unknown"
}

// Result is the effect of one record: the owner after the balance rule,
// the normalized transaction ready to store, and whether it was admitted.
type Result struct {
	User        *models.User
	Transaction *models.Transaction
	Outcome     Outcome
}

// BalanceChanged reports whether applying the record moved the balance.
func (r Result) BalanceChanged(before decimal.Decimal) bool {
	return !r.User.Balance.Equal(before)
}

// Engine decides, record by record, whether a transaction is admitted and
// what it does to the owner's balance. It holds no state besides the clock
// and does not serialise callers.
type Engine struct {
	now func() time.Time
}

// NewEngine returns an engine stamping records with now. A nil clock means
// time.Now.
func NewEngine(now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{now: now}
}

// Normalize validates r and turns it into a transaction owned by ownerID.
// Completion is left false; Apply decides it.
func (e *Engine) Normalize(ownerID string, r Record) (*models.Transaction, error) {
	typ, err := parseType(r.Type)
	if err != nil {
		return nil, err
	}
	amount, err := r.Amount.Decimal()
	if err != nil {
		return nil, err
	}
	day, err := parseDate(r.Date)
	if err != nil {
		return nil, err
	}

	owner := ownerID
	t := &models.Transaction{
		Description:   r.Description,
		Amount:        amount,
		Date:          day.Format(dateLayout),
		TimestampDate: day.Unix(),
		Type:          typ,
		AssignedID:    &owner,
	}
	t.Touch(e.now())
	return t, nil
}

// Apply runs the balance rule for one record against u. The returned user
// is a copy; u itself is not modified. A validation error means nothing
// was applied and there is nothing to store.
func (e *Engine) Apply(u *models.User, r Record) (Result, error) {
	t, err := e.Normalize(u.ID, r)
	if err != nil {
		return Result{}, err
	}

	updated := *u
	res := Result{User: &updated, Transaction: t}

	switch {
	case !t.Type.IsDebit():
		updated.Balance = updated.Balance.Add(t.Amount)
		t.Completed = true
		res.Outcome = Admitted
	case updated.Balance.LessThan(t.Amount):
		t.Completed = false
		res.Outcome = Rejected
	default:
		updated.Balance = updated.Balance.Sub(t.Amount)
		t.Completed = true
		res.Outcome = Admitted
	}
	return res, nil
}

func parseType(s string) (models.TransactionType, error) {
	t := models.TransactionType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownType, s)
	}
	return t, nil
}

// parseDate returns UTC midnight of the declared day.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}
