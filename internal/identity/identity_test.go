package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProviders(t *testing.T) {
	id, ok := Static("abc").CurrentSessionID()
	assert.True(t, ok)
	assert.Equal(t, "abc", id)

	_, ok = Static("").CurrentSessionID()
	assert.False(t, ok)

	_, ok = Anonymous{}.CurrentSessionID()
	assert.False(t, ok)
}

func TestNewIssuesDistinctValidIDs(t *testing.T) {
	a, b := New(), New()
	assert.NotEqual(t, a, b)
	assert.True(t, Valid(string(a)))
	assert.False(t, Valid("not-a-session"))
	assert.False(t, Valid(""))
}
