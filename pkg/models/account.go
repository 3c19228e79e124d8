package models

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

type BalanceEntry struct {
	Free  decimal.NullDecimal `json:"free"`
	Used  decimal.NullDecimal `json:"used"`
	Total decimal.NullDecimal `json:"total"`
}

// Complete derives the missing member of free, used and total from the
// other two so that total == free + used whenever two of them are known.
// Total wins over the pair when all three disagree.
func (e BalanceEntry) Complete() BalanceEntry {
	switch {
	case e.Total.Valid && e.Free.Valid:
		e.Used = decimal.NewNullDecimal(e.Total.Decimal.Sub(e.Free.Decimal))
	case e.Total.Valid && e.Used.Valid:
		e.Free = decimal.NewNullDecimal(e.Total.Decimal.Sub(e.Used.Decimal))
	case e.Free.Valid && e.Used.Valid:
		e.Total = decimal.NewNullDecimal(e.Free.Decimal.Add(e.Used.Decimal))
	}
	return e
}

// Balances is keyed by unified currency code.
type Balances struct {
	Currencies map[string]BalanceEntry `json:"currencies"`
	Timestamp  *time.Time              `json:"timestamp"`
	Info       any                     `json:"info"`
}

func NewBalances(info any) *Balances {
	return &Balances{
		Currencies: make(map[string]BalanceEntry),
		Info:       info,
	}
}

// Add accumulates an entry onto the code. Venues that split one currency
// across several wallets report it more than once.
func (b *Balances) Add(code string, entry BalanceEntry) {
	entry = entry.Complete()
	prev, ok := b.Currencies[code]
	if !ok {
		b.Currencies[code] = entry
		return
	}
	b.Currencies[code] = BalanceEntry{
		Free:  addNull(prev.Free, entry.Free),
		Used:  addNull(prev.Used, entry.Used),
		Total: addNull(prev.Total, entry.Total),
	}.Complete()
}

func (b *Balances) Get(code string) (BalanceEntry, bool) {
	e, ok := b.Currencies[code]
	return e, ok
}

// Codes returns the currency codes in sorted order.
func (b *Balances) Codes() []string {
	codes := make([]string, 0, len(b.Currencies))
	for code := range b.Currencies {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

func addNull(a, b decimal.NullDecimal) decimal.NullDecimal {
	if !a.Valid || !b.Valid {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(a.Decimal.Add(b.Decimal))
}

// Transaction is a deposit or a withdrawal.
type Transaction struct {
	ID          string              `json:"id"`
	TxID        string              `json:"txid"`
	Timestamp   *time.Time          `json:"timestamp"`
	Updated     *time.Time          `json:"updated"`
	Network     string              `json:"network"`
	Address     string              `json:"address"`
	AddressFrom string              `json:"addressFrom"`
	AddressTo   string              `json:"addressTo"`
	Tag         string              `json:"tag"`
	TagFrom     string              `json:"tagFrom"`
	TagTo       string              `json:"tagTo"`
	Type        TransactionType     `json:"type"`
	Amount      decimal.NullDecimal `json:"amount"`
	Currency    string              `json:"currency"`
	Status      TransactionStatus   `json:"status"`
	Comment     string              `json:"comment"`
	Internal    *bool               `json:"internal"`
	Fee         *Fee                `json:"fee"`
	Info        any                 `json:"info"`
}

// LedgerEntry is one balance-affecting event. Amount is never negative;
// the sign lives in Direction.
type LedgerEntry struct {
	ID               string              `json:"id"`
	Timestamp        *time.Time          `json:"timestamp"`
	Direction        LedgerDirection     `json:"direction"`
	Account          string              `json:"account"`
	ReferenceID      string              `json:"referenceId"`
	ReferenceAccount string              `json:"referenceAccount"`
	Type             LedgerEntryType     `json:"type"`
	Currency         string              `json:"currency"`
	Amount           decimal.NullDecimal `json:"amount"`
	Before           decimal.NullDecimal `json:"before"`
	After            decimal.NullDecimal `json:"after"`
	Status           TransactionStatus   `json:"status"`
	Fee              *Fee                `json:"fee"`
	Info             any                 `json:"info"`
}

type Transfer struct {
	ID          string              `json:"id"`
	Timestamp   *time.Time          `json:"timestamp"`
	Currency    string              `json:"currency"`
	Amount      decimal.NullDecimal `json:"amount"`
	FromAccount string              `json:"fromAccount"`
	ToAccount   string              `json:"toAccount"`
	Status      string              `json:"status"`
	Info        any                 `json:"info"`
}

type Account struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Code string `json:"code"`
	Info any    `json:"info"`
}

type DepositAddress struct {
	Currency string `json:"currency"`
	Network  string `json:"network"`
	Address  string `json:"address"`
	Tag      string `json:"tag"`
	Info     any    `json:"info"`
}
