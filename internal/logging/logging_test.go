package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveEncoding(t *testing.T) {
	assert.Equal(t, "console", resolveEncoding("", true))
	assert.Equal(t, "json", resolveEncoding("", false))
	assert.Equal(t, "json", resolveEncoding("JSON", true))
	assert.Equal(t, "console", resolveEncoding("console", false))
	assert.Equal(t, "json", resolveEncoding("xml", false))
}

func TestNew(t *testing.T) {
	l, err := New(Config{Level: "debug", Encoding: "json"})
	require.NoError(t, err)
	assert.NotNil(t, l)

	_, err = New(Config{Level: "loud"})
	assert.Error(t, err)
}
