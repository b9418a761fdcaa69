// Package provider describes the provider directory as seen by check issuance.
// Providers are maintained elsewhere; this service reads them and owns balance mutation.
package provider

import (
	"time"

	"checkbook/internal/core/types"
)

// Provider is a payee with a committable balance.
type Provider struct {
	ID         int64       `db:"id" json:"id"`
	Name       string      `db:"name" json:"name"`
	PersonType string      `db:"person_type" json:"personType"`
	TaxID      string      `db:"tax_id" json:"taxId"`
	Balance    types.Money `db:"balance" json:"balance"`
	AccountRef string      `db:"account_ref" json:"accountRef"`
	Active     bool        `db:"active" json:"active"`
	UpdatedAt  time.Time   `db:"updated_at" json:"updatedAt"`
}

// CanCover reports whether the balance covers amount.
func (p *Provider) CanCover(amount types.Money) bool {
	return p.Balance.GreaterThanOrEqual(amount)
}
