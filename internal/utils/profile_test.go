package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeInterests_BannedWordRejected(t *testing.T) {
	banned := NewBannedWords([]string{"rust"})

	got, msg := NormalizeInterests("go, Go, rust,  , music", banned)
	require.Nil(t, got)
	assert.Contains(t, msg, "rust")
}

func TestNormalizeInterests_DedupKeepsFirstSpelling(t *testing.T) {
	banned := NewBannedWords([]string{"rust"})

	got, msg := NormalizeInterests("go, Go, music", banned)
	require.Empty(t, msg)
	assert.Equal(t, []string{"go", "music"}, got)
}

func TestNormalizeInterests_Idempotent(t *testing.T) {
	inputs := []string{
		"Python; music\nDesign, python",
		"  a ,b,, c;;\n\n d ",
		"Chess",
	}
	for _, in := range inputs {
		first, msg := NormalizeInterests(in, nil)
		require.Empty(t, msg, in)
		second, msg := NormalizeInterests(strings.Join(first, ", "), nil)
		require.Empty(t, msg, in)
		assert.Equal(t, first, second, in)
	}
}

func TestNormalizeInterests_EmptyInputIsEmptyList(t *testing.T) {
	got, msg := NormalizeInterests("  \n ", nil)
	assert.Empty(t, msg)
	assert.NotNil(t, got)
	assert.Len(t, got, 0)
}

func TestNormalizeInterests_Limits(t *testing.T) {
	many := make([]string, InterestsMaxItems+1)
	for i := range many {
		many[i] = "x" + strings.Repeat("y", i%5)
	}
	_, msg := NormalizeInterests(strings.Join(many, ","), nil)
	assert.Contains(t, msg, "Too many")

	_, msg = NormalizeInterests(strings.Repeat("a", InterestMaxLen+1), nil)
	assert.Contains(t, msg, "invalid length")

	long := make([]string, 0, 7)
	for i := 0; i < 7; i++ {
		long = append(long, strings.Repeat(string(rune('a'+i)), 45))
	}
	_, msg = NormalizeInterests(strings.Join(long, ","), nil)
	assert.Contains(t, msg, "in total")
}

func TestValidateName(t *testing.T) {
	banned := NewBannedWords([]string{"Spam"})

	assert.Empty(t, ValidateName("Anna", banned))
	assert.NotEmpty(t, ValidateName("A", banned))
	assert.NotEmpty(t, ValidateName(strings.Repeat("a", NameMaxLen+1), banned))
	assert.Contains(t, ValidateName("SPAMmer", banned), "spam")
	// runes, not bytes
	assert.Empty(t, ValidateName("Юля", banned))
}

func TestValidateBio(t *testing.T) {
	assert.Empty(t, ValidateBio("", nil))
	assert.Empty(t, ValidateBio(strings.Repeat("я", BioMaxLen), nil))
	assert.NotEmpty(t, ValidateBio(strings.Repeat("я", BioMaxLen+1), nil))
}

func TestParseAge(t *testing.T) {
	cases := []struct {
		in   string
		want int
		ok   bool
	}{
		{"18", 18, true},
		{"50", 50, true},
		{"17", 0, false},
		{"51", 0, false},
		{"abc", 0, false},
		{"+20", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		age, msg := ParseAge(tc.in)
		assert.Equal(t, tc.ok, msg == "", tc.in)
		assert.Equal(t, tc.want, age, tc.in)
	}
}

func TestLooksLikeCode(t *testing.T) {
	assert.True(t, LooksLikeCode("1234"))
	assert.True(t, LooksLikeCode("12345678"))
	assert.False(t, LooksLikeCode("123"))
	assert.False(t, LooksLikeCode("123456789"))
	assert.False(t, LooksLikeCode("12a4"))
}
