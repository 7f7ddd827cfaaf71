package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractReferrerDomain(t *testing.T) {
	cases := []struct {
		name     string
		raw      string
		expected string
	}{
		{"plain https", "https://www.google.com/search?q=funnels", "www.google.com"},
		{"with port", "http://localhost:3000/pricing", "localhost"},
		{"uppercase host", "https://News.Ycombinator.com/item", "news.ycombinator.com"},
		{"bare host", "https://t.co", "t.co"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			domain := ExtractReferrerDomain(tc.raw)
			require.NotNil(t, domain)
			assert.Equal(t, tc.expected, *domain)
		})
	}
}

func TestExtractReferrerDomainMalformed(t *testing.T) {
	assert.Nil(t, ExtractReferrerDomain(""))
	assert.Nil(t, ExtractReferrerDomain("not a url at all"))
	assert.Nil(t, ExtractReferrerDomain("/relative/path"))
	assert.Nil(t, ExtractReferrerDomain("://missing-scheme"))
}

func TestNewSessionIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewSessionID()
		require.NotEmpty(t, id)
		require.False(t, seen[id], "duplicate session id %s", id)
		seen[id] = true
	}
}
