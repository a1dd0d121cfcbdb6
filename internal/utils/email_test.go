package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmailValidator_DomainAllowList(t *testing.T) {
	v, err := NewEmailValidator("", []string{"corp.com"})
	require.NoError(t, err)

	assert.Empty(t, v.Validate("a@corp.com"))
	assert.Empty(t, v.Validate("a@CORP.com"))
	assert.Contains(t, v.Validate("b@gmail.com"), "not allowed")
	assert.Contains(t, v.Validate("not-an-email"), "format")
}

func TestEmailValidator_NoAllowList(t *testing.T) {
	v, err := NewEmailValidator("", nil)
	require.NoError(t, err)

	assert.Empty(t, v.Validate("b@gmail.com"))
}

func TestEmailValidator_BadPattern(t *testing.T) {
	_, err := NewEmailValidator("([", nil)
	require.Error(t, err)
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "a.b@corp.com", NormalizeEmail("  A.B@Corp.COM "))
}

func TestBannedWords_Find(t *testing.T) {
	b := NewBannedWords([]string{" Foo ", "", "bar"})

	w, ok := b.Find("xxFOOxx")
	assert.True(t, ok)
	assert.Equal(t, "foo", w)

	_, ok = b.Find("clean")
	assert.False(t, ok)
}
