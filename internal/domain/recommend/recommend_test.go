package recommend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_DeduplicatesByKey(t *testing.T) {
	var b Builder
	b.Add(Item{Key: "open-sg", Title: "Restrict ingress", Severity: SeverityMedium, File: "b.tf", Criteria: []string{"CC6.6"}, Source: "soc2"})
	b.Add(Item{Key: "open-sg", Title: "Restrict ingress", Severity: SeverityHigh, File: "a.tf", Criteria: []string{"CC6.7", "CC6.6"}, Source: "soc2"})
	b.Add(Item{Key: "open-sg", Title: "Restrict ingress", Severity: SeverityLow, File: "a.tf", Source: "soc2"})

	recs := b.Build()
	require.Len(t, recs, 1)
	assert.Equal(t, SeverityHigh, recs[0].Severity)
	assert.Equal(t, []string{"a.tf", "b.tf"}, recs[0].AffectedFiles)
	assert.Equal(t, []string{"CC6.6", "CC6.7"}, recs[0].Criteria)
	assert.Equal(t, "open-sg", recs[0].ID)
}

func TestBuilder_OrdersBySeverityThenTitle(t *testing.T) {
	var b Builder
	b.Add(Item{Title: "Zeta", Severity: SeverityLow})
	b.Add(Item{Title: "Beta", Severity: SeverityHigh})
	b.Add(Item{Title: "Alpha", Severity: SeverityHigh})
	b.Add(Item{Title: "Gamma", Severity: SeverityMedium})

	recs := b.Build()
	require.Len(t, recs, 4)
	titles := []string{recs[0].Title, recs[1].Title, recs[2].Title, recs[3].Title}
	assert.Equal(t, []string{"Alpha", "Beta", "Gamma", "Zeta"}, titles)
	assert.Equal(t, 4, b.Len())
}

func TestBuilder_EmptyStepsNeverNil(t *testing.T) {
	var b Builder
	b.Add(Item{Title: "No steps"})
	recs := b.Build()
	require.Len(t, recs, 1)
	assert.NotNil(t, recs[0].Steps)
	assert.Nil(t, recs[0].AffectedFiles)
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "security-group-allows-0-0-0-0-0", slug("Security group allows 0.0.0.0/0"))
	assert.Equal(t, "recommendation", slug("???"))
}
