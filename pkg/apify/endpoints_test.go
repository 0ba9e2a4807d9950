package apify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEndpointURLs(t *testing.T) {
	base := "https://api.apify.com/v2/"

	assert.Equal(t,
		"https://api.apify.com/v2/acts/apify~instagram-hashtag-scraper/runs?token=tok",
		RunsURL(base, DefaultActorID, "tok"))
	assert.Equal(t,
		"https://api.apify.com/v2/acts/apify%2Finstagram-hashtag-scraper/runs?token=tok",
		RunsURL(base, "apify/instagram-hashtag-scraper", "tok"))
	assert.Equal(t,
		"https://api.apify.com/v2/actor-runs/abc123?token=tok",
		RunURL(base, "abc123", "tok"))
	assert.Equal(t,
		"https://api.apify.com/v2/datasets/ds9/items?format=json&token=tok",
		DatasetItemsURL(base, "ds9", "tok"))
	assert.Equal(t,
		"https://api.apify.com/v2/actor-runs/r?token=tok",
		RunURL("", "r", "tok"))
}

func TestRedactURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://x/v2/actor-runs/1?token=secret", "https://x/v2/actor-runs/1?token=REDACTED"},
		{"https://x/v2/datasets/1/items?format=json&token=secret", "https://x/v2/datasets/1/items?format=json&token=REDACTED"},
		{"https://x/v2/datasets/1/items?token=secret&format=json", "https://x/v2/datasets/1/items?token=REDACTED&format=json"},
		{"https://x/v2/no-token", "https://x/v2/no-token"},
		{`Get "https://x/v2/actor-runs/1?token=secret": EOF`, `Get "https://x/v2/actor-runs/1?token=REDACTED": EOF`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RedactURL(tt.in))
	}
}
