package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/dataguardian/internal/domain/scans"
)

func TestLocalStore(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	url, err := s.Put(ctx, "acme/soc2/s1.json", "application/json", []byte(`{"ok":true}`))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "file://"))
	assert.True(t, strings.HasSuffix(url, "acme/soc2/s1.json"))

	got, err := s.Get(ctx, "acme/soc2/s1.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(got))

	_, err = s.Get(ctx, "acme/soc2/missing.json")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.NoError(t, s.Check(ctx))
}

func TestValidKey(t *testing.T) {
	for _, bad := range []string{"", "/etc/passwd", "../x", "a/../../x", `a\b`, "a//b"} {
		assert.Error(t, validKey(bad), bad)
	}
	assert.NoError(t, validKey("acme/soc2/x.json"))
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "application/json", ContentTypeFor("a/b.sarif"))
	assert.Equal(t, "text/html", ContentTypeFor("r.html"))
	assert.Equal(t, "application/octet-stream", ContentTypeFor("r.bin"))
}
