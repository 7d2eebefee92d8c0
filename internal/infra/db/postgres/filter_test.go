package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"

	domain "github.com/bryanwahyu/dataguardian/internal/domain/scans"
)

func TestFilterClause(t *testing.T) {
	where, args := filterClause("acme", domain.Filter{Kind: domain.KindSOC2, Target: "50%"})
	assert.Equal(t, " WHERE tenant_id = $1 AND kind = $2 AND target LIKE $3", where)
	assert.Equal(t, []any{"acme", domain.KindSOC2, `%50\%%`}, args)

	where, args = filterClause("acme", domain.Filter{})
	assert.Equal(t, " WHERE tenant_id = $1", where)
	assert.Len(t, args, 1)
}

func TestSummaryQuery_SumsEverySeverity(t *testing.T) {
	for _, col := range []string{"critical", "high", "medium", "low"} {
		assert.Contains(t, summaryQuery, "SUM("+col+")")
	}
}
