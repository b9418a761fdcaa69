// Package reports provides posting summaries and check lookups.
package reports

import (
	"time"

	"checkbook/internal/core/types"
)

// --- Posting summaries ---

// SummaryFilter narrows the posting summary report.
// From and To are inclusive calendar dates.
type SummaryFilter struct {
	From          *time.Time
	To            *time.Time
	DebitEntryID  *int64
	CreditEntryID *int64
}

// GroupKey identifies one posting group.
type GroupKey struct {
	Year          int   `json:"year"`
	Month         int   `json:"month"`
	DebitEntryID  int64 `json:"debitEntryId"`
	CreditEntryID int64 `json:"creditEntryId"`
}

// Summary aggregates the checks of one posting group.
type Summary struct {
	GroupKey
	Total         types.Money `json:"total"`
	Count         int         `json:"count"`
	ProviderCount int         `json:"providerCount"`
}

// PostedCheck is a generated request carrying both entry references.
type PostedCheck struct {
	RequestID          int64       `db:"id" json:"requestId"`
	CheckNumber        string      `db:"check_number" json:"checkNumber"`
	ProviderID         int64       `db:"provider_id" json:"providerId"`
	ProviderName       string      `db:"provider_name" json:"providerName"`
	ProviderTaxID      string      `db:"provider_tax_id" json:"providerTaxId"`
	Amount             types.Money `db:"amount" json:"amount"`
	RegisteredAt       time.Time   `db:"registered_at" json:"registeredAt"`
	ProviderAccountRef string      `db:"provider_account_ref" json:"providerAccountRef"`
	BankAccountRef     string      `db:"bank_account_ref" json:"bankAccountRef"`
	DebitEntryID       int64       `db:"debit_entry_id" json:"debitEntryId"`
	CreditEntryID      int64       `db:"credit_entry_id" json:"creditEntryId"`
}

// Key returns the group the check belongs to.
func (c PostedCheck) Key() GroupKey {
	at := c.RegisteredAt.UTC()
	return GroupKey{
		Year:          at.Year(),
		Month:         int(at.Month()),
		DebitEntryID:  c.DebitEntryID,
		CreditEntryID: c.CreditEntryID,
	}
}

// Detail is one posting group with its checks.
type Detail struct {
	Summary
	Checks []PostedCheck `json:"checks"`
}

// --- Check lookups ---

// CheckSearchFilter narrows the issued check search. All fields are optional.
type CheckSearchFilter struct {
	ProviderID  *int64
	From        *time.Time
	To          *time.Time
	CheckNumber string
	RequestID   *int64
	Limit       int
	Offset      int
}

// CheckLine is one row of the check search.
type CheckLine struct {
	RequestID    int64       `db:"id" json:"requestId"`
	CheckNumber  string      `db:"check_number" json:"checkNumber"`
	ProviderID   int64       `db:"provider_id" json:"providerId"`
	ProviderName string      `db:"provider_name" json:"providerName"`
	Amount       types.Money `db:"amount" json:"amount"`
	RegisteredAt time.Time   `db:"registered_at" json:"registeredAt"`
}

// CheckDetail describes one issued check.
type CheckDetail struct {
	RequestID          int64       `db:"id" json:"requestId"`
	CheckNumber        string      `db:"check_number" json:"checkNumber"`
	ProviderID         int64       `db:"provider_id" json:"providerId"`
	ProviderName       string      `db:"provider_name" json:"providerName"`
	ProviderTaxID      string      `db:"provider_tax_id" json:"providerTaxId"`
	ProviderAccountRef string      `db:"provider_account_ref" json:"providerAccountRef"`
	BankAccountRef     string      `db:"bank_account_ref" json:"bankAccountRef"`
	Amount             types.Money `db:"amount" json:"amount"`
	RegisteredAt       time.Time   `db:"registered_at" json:"registeredAt"`
	DebitEntryID       *int64      `db:"debit_entry_id" json:"debitEntryId,omitempty"`
	CreditEntryID      *int64      `db:"credit_entry_id" json:"creditEntryId,omitempty"`
}
