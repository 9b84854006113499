package urlutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonical(t *testing.T) {
	cases := map[string]string{
		"https://www.Example.com/jobs/1":                  "https://example.com/jobs/1",
		"HTTPS://example.com/jobs/1#apply":                "https://example.com/jobs/1",
		"https://example.com/jobs/1?utm_source=x&b=2&a=1": "https://example.com/jobs/1?b=2&a=1",
		"https://example.com:443/jobs/./1?fbclid=abc":     "https://example.com/jobs/1",
		"http://example.com:80/jobs/1?gclid=z":            "http://example.com/jobs/1",
		"https://user:pw@example.com/jobs/1":              "https://example.com/jobs/1",
		"https://example.com/":                            "https://example.com",
		"https://example.com/jobs/1/":                     "https://example.com/jobs/1/",
		"  not a url  ":                                   "not a url",
		"":                                                "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Canonical(in), in)
	}
}

func TestCanonical_SameJobDifferentTracking(t *testing.T) {
	a := Canonical("https://remoteok.com/remote-jobs/1092334?utm_source=aggregator&utm_medium=feed")
	b := Canonical("https://www.remoteok.com/remote-jobs/1092334#apply")
	assert.Equal(t, a, b)
}

func TestCanonical_KeepsIdentifyingParams(t *testing.T) {
	for _, key := range []string{"source", "src", "ref", "id"} {
		a := Canonical("https://careers.example/apply?" + key + "=101")
		b := Canonical("https://careers.example/apply?" + key + "=202")
		assert.NotEqual(t, a, b, key)
	}
	assert.NotEqual(t, Canonical("http://example.com/jobs/1"), Canonical("https://example.com/jobs/1"))
}

func TestHost(t *testing.T) {
	assert.Equal(t, "example.com", Host("https://WWW.example.com/x"))
	assert.Equal(t, "", Host("relative/path"))
}
