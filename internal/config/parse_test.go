package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const referencesStr string = `
references:
  - me: "https://kodfabrik.se/"
    endpoint: "https://tokens.indieauth.com/token"
  - me: " http://example.com/ "
    endpoint: "https://tokens.indieauth.com/token"
`

func TestParseTokenReferences(t *testing.T) {
	for _, scenario := range []struct {
		name     string
		data     string
		expected []TokenReference
		failure  string
	}{
		{
			name:     "empty document",
			data:     "",
			expected: []TokenReference{},
		},
		{
			name: "user provided values are trimmed",
			data: referencesStr,
			expected: []TokenReference{
				{Me: "https://kodfabrik.se/", Endpoint: "https://tokens.indieauth.com/token"},
				{Me: "http://example.com/", Endpoint: "https://tokens.indieauth.com/token"},
			},
		},
		{
			name: "missing endpoint",
			data: `references:
  - me: "https://kodfabrik.se/"`,
			failure: "token reference 0: both me and endpoint are required",
		},
		{
			name:    "invalid yaml",
			data:    `references: {`,
			failure: "yaml",
		},
	} {
		t.Run(scenario.name, func(t *testing.T) {
			refs, err := ParseTokenReferences([]byte(scenario.data))
			if scenario.failure != "" {
				require.ErrorContains(t, err, scenario.failure)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, scenario.expected, refs)
		})
	}
}
