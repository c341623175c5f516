package ticketcode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_LengthAndCharset(t *testing.T) {
	g := NewGenerator()

	for i := 0; i < 100; i++ {
		code, err := g.Generate()
		require.NoError(t, err)
		assert.Len(t, code, CodeLength)

		for _, r := range code {
			assert.Contains(t, alphabet, string(r), "code %q contains %q outside the alphabet", code, r)
		}

		// Ambiguous characters are excluded.
		assert.NotContains(t, code, "0")
		assert.NotContains(t, code, "O")
		assert.NotContains(t, code, "1")
		assert.NotContains(t, code, "I")
	}
}

func TestGenerate_NoTrivialRepeats(t *testing.T) {
	g := NewGenerator()

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		code, err := g.Generate()
		require.NoError(t, err)
		assert.False(t, seen[code], "generated duplicate code %q in a small sample", code)
		seen[code] = true
	}
}

func TestGenerate_UppercaseOnly(t *testing.T) {
	g := NewGenerator()

	code, err := g.Generate()
	require.NoError(t, err)
	assert.Equal(t, strings.ToUpper(code), code)
}
