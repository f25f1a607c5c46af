package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoomInput(t *testing.T) {
	cases := map[string]string{
		"k3j9x0abcde1m2n3o4p5q6r7":                          "k3j9x0abcde1m2n3o4p5q6r7",
		"  abc123  ":                                        "abc123",
		"https://beacon.example.com/stream/abc123":          "abc123",
		"http://localhost:3000/stream/abc123/":              "abc123",
		"beacon.example.com/stream/abc123":                  "abc123",
		"localhost:3000/stream/abc123?autoplay=1":           "abc123",
		"https://beacon.example.com/app/stream/abc123/chat": "abc123",
	}

	for in, want := range cases {
		got, err := parseRoomInput(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestParseRoomInputRejects(t *testing.T) {
	for _, in := range []string{
		"",
		"   ",
		"https://beacon.example.com/",
		"https://beacon.example.com/stream/",
		"https://beacon.example.com/r/abc123",
	} {
		_, err := parseRoomInput(in)
		assert.Error(t, err, in)
	}
}
