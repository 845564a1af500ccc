package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{
			name:     "nil slice",
			input:    nil,
			expected: nil,
		},
		{
			name:     "empty slice",
			input:    []string{},
			expected: []string{},
		},
		{
			name:     "trims whitespace",
			input:    []string{"  foo  ", "bar  ", "  baz"},
			expected: []string{"foo", "bar", "baz"},
		},
		{
			name:     "removes duplicates preserving order",
			input:    []string{"foo", "bar", "foo", "baz", "bar"},
			expected: []string{"foo", "bar", "baz"},
		},
		{
			name:     "drops blanks",
			input:    []string{"", "  ", "foo"},
			expected: []string{"foo"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeAndTrim(tt.input))
		})
	}
}

func TestUnion(t *testing.T) {
	t.Run("appends new members", func(t *testing.T) {
		assert.Equal(t, []string{"a", "b", "c"}, Union([]string{"a", "b"}, "c"))
	})

	t.Run("is idempotent", func(t *testing.T) {
		once := Union(nil, "abc")
		twice := Union(once, "abc")
		assert.Equal(t, once, twice)
		assert.Len(t, twice, 1)
	})

	t.Run("does not alias the input", func(t *testing.T) {
		existing := make([]string, 1, 4)
		existing[0] = "a"
		out := Union(existing, "b")
		out[0] = "z"
		assert.Equal(t, "a", existing[0])
	})
}

func TestSplitFields(t *testing.T) {
	assert.Nil(t, SplitFields("   "))
	assert.Equal(t, []string{"read:user", "repo"}, SplitFields("read:user  repo read:user"))
}
