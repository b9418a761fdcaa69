package document_repo

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkbook/internal/domain/documents/checkrequest"
)

func TestCheckRequestRepo_StampEntries_SQL(t *testing.T) {
	repo := NewCheckRequestRepo(nil)

	sql, args, err := repo.stampEntriesQuery([]int64{7, 9}, 101, 102).Suffix("RETURNING id").ToSql()
	require.NoError(t, err)

	wantSQL := "UPDATE check_requests SET debit_entry_id = $1, credit_entry_id = $2, " +
		"version = version + 1, updated_at = NOW() " +
		"WHERE credit_entry_id IS NULL AND debit_entry_id IS NULL AND id IN ($3,$4) AND state = $5 " +
		"RETURNING id"
	assert.Equal(t, wantSQL, sql)
	assert.Equal(t, []any{int64(101), int64(102), int64(7), int64(9), checkrequest.StateGenerated}, args)
}

func TestCheckRequestRepo_MarkGenerated_SQL(t *testing.T) {
	repo := NewCheckRequestRepo(nil)

	sql, args, err := repo.markGeneratedQuery(checkrequest.Issued{RequestID: 7, CheckNumber: "CHK-000042"}).ToSql()
	require.NoError(t, err)

	wantSQL := "UPDATE check_requests SET state = $1, check_number = $2, " +
		"version = version + 1, updated_at = NOW() " +
		"WHERE id = $3 AND state = $4"
	assert.Equal(t, wantSQL, sql)
	assert.Equal(t, []any{checkrequest.StateGenerated, "CHK-000042", int64(7), checkrequest.StatePending}, args)
}

func TestCheckRequestRepo_ListGeneratedUnposted_SQL(t *testing.T) {
	repo := NewCheckRequestRepo(nil)
	from := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	tests := []struct {
		name      string
		from, to  time.Time
		wantWhere string
		wantArgs  []any
	}{
		{
			name:      "month bounds",
			from:      from,
			to:        to,
			wantWhere: " WHERE credit_entry_id IS NULL AND debit_entry_id IS NULL AND state = $1 AND registered_at >= $2 AND registered_at < $3 ORDER BY id",
			wantArgs:  []any{checkrequest.StateGenerated, from, to},
		},
		{
			name:      "unbounded",
			wantWhere: " WHERE credit_entry_id IS NULL AND debit_entry_id IS NULL AND state = $1 ORDER BY id",
			wantArgs:  []any{checkrequest.StateGenerated},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := repo.generatedUnpostedQuery(tt.from, tt.to).ToSql()
			require.NoError(t, err)

			assert.True(t, strings.HasPrefix(sql, "SELECT "), sql)
			assert.True(t, strings.HasSuffix(sql, "FROM check_requests"+tt.wantWhere), sql)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}
