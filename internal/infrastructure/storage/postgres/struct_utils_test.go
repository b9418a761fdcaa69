package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"checkbook/internal/core/types"
	"checkbook/internal/domain/documents/checkrequest"
	"checkbook/internal/domain/reports"
)

func TestExtractDBColumns_CheckRequest(t *testing.T) {
	cols := ExtractDBColumns[checkrequest.Request]()

	assert.Equal(t, []string{
		"id", "provider_id", "payment_concept_id", "amount", "registered_at", "state",
		"provider_account_ref", "bank_account_ref", "check_number", "debit_entry_id",
		"credit_entry_id", "version", "created_at", "updated_at",
	}, cols)
}

func TestExtractDBColumns_Embedded(t *testing.T) {
	type row struct {
		reports.GroupKey
		Total string `db:"total"`
		Skip  string `db:"-"`
		Plain string
	}

	cols := ExtractDBColumns[row]()

	assert.Equal(t, []string{"total"}, cols)
}

func TestStructToMap_Keep(t *testing.T) {
	number := "000042"
	req := &checkrequest.Request{
		ID:           7,
		ProviderID:   3,
		Amount:       types.MustMoney("12.50"),
		RegisteredAt: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		State:        checkrequest.StateGenerated,
		CheckNumber:  &number,
		Version:      2,
	}

	all := StructToMap(req)
	assert.Equal(t, int64(7), all["id"])
	assert.Equal(t, checkrequest.StateGenerated, all["state"])
	assert.Equal(t, &number, all["check_number"])

	some := StructToMap(req, "provider_id", "amount", "missing")
	assert.Len(t, some, 2)
	assert.Equal(t, int64(3), some["provider_id"])
	assert.True(t, types.MustMoney("12.5").Equal(some["amount"].(types.Money)))
}

func TestStructToMap_NotStruct(t *testing.T) {
	assert.Nil(t, StructToMap(42))
}
