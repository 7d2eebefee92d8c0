package scans

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeverityCountsAdd(t *testing.T) {
	var c SeverityCounts
	for _, s := range []string{"critical", "high", "high", "medium", "low", "info"} {
		c.Add(s)
	}
	assert.Equal(t, SeverityCounts{Critical: 1, High: 2, Medium: 1, Low: 1, Total: 6}, c)
}

func TestPagination(t *testing.T) {
	p, s := NormalizePage(0, 0)
	assert.Equal(t, 1, p)
	assert.Equal(t, 20, s)
	_, s = NormalizePage(2, 500)
	assert.Equal(t, 100, s)

	res := NewPage(nil, 2, 20, 41)
	assert.Equal(t, 3, res.TotalPages)
	assert.NotNil(t, res.Data)
}

func TestKindValid(t *testing.T) {
	assert.True(t, KindSOC2.Valid())
	assert.True(t, KindBias.Valid())
	assert.False(t, Kind("trivy").Valid())
}
