package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFiles(t *testing.T) {
	for _, driver := range []string{"mysql", "postgres"} {
		fsys, _, err := Files(driver)
		require.NoError(t, err, driver)
		names, err := fs.Glob(fsys, "*.sql")
		require.NoError(t, err)
		require.NotEmpty(t, names)
		b, err := fs.ReadFile(fsys, names[0])
		require.NoError(t, err)
		body := string(b)
		assert.True(t, strings.Contains(body, "-- +goose Up"), driver)
		assert.True(t, strings.Contains(body, "compliance_scans"), driver)
	}

	_, _, err := Files("sqlite")
	assert.Error(t, err)
}
