package grabber_test

import (
	"testing"

	"github.com/ramkansal/phonegrabber/internal/grabber"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name     string
		in       []string
		accepted []string
		rejected []string
	}{
		{
			name: "empty",
		},
		{
			name:     "one good one malformed",
			in:       []string{"https://example.com/contacts", "example.com/contacts"},
			accepted: []string{"https://example.com/contacts"},
			rejected: []string{"example.com/contacts"},
		},
		{
			name:     "all schemes",
			in:       []string{"http://a.com", "https://b.com", "//c.com/path"},
			accepted: []string{"http://a.com", "https://b.com", "//c.com/path"},
		},
		{
			name:     "accepted deduplicated by exact string",
			in:       []string{"http://a.com", "http://a.com/", "http://a.com"},
			accepted: []string{"http://a.com", "http://a.com/"},
		},
		{
			name:     "rejected keep order and duplicates",
			in:       []string{"b", "ftp://x", "b", "HTTP://upper.com", " http://space.com"},
			rejected: []string{"b", "ftp://x", "b", "HTTP://upper.com", " http://space.com"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := grabber.Classify(tc.in)
			require.Equal(t, tc.accepted, got.Accepted)
			require.Equal(t, tc.rejected, got.Rejected)
		})
	}
}
