package apify

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunStatus(t *testing.T) {
	for _, s := range []RunStatus{StatusReady, StatusRunning, StatusTimingOut, StatusAborting} {
		assert.False(t, s.IsTerminal(), s)
		assert.False(t, s.IsSuccess(), s)
	}
	for _, s := range []RunStatus{StatusFailed, StatusAborted, StatusTimedOut} {
		assert.True(t, s.IsTerminal(), s)
		assert.False(t, s.IsSuccess(), s)
	}
	assert.True(t, StatusSucceeded.IsTerminal())
	assert.True(t, StatusSucceeded.IsSuccess())
	assert.False(t, RunStatus("SOMETHING-NEW").IsTerminal())
}

func TestRunInputJSON(t *testing.T) {
	data, err := json.Marshal(RunInput{
		Hashtags:     []string{"hyderabadfoodie", "indianfoodie"},
		ResultsLimit: 30,
		SessionID:    "sess",
		Proxy:        ProxyConfig{UseApifyProxy: true},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"hashtags": ["hyderabadfoodie", "indianfoodie"],
		"resultsLimit": 30,
		"instagramScraperSessionId": "sess",
		"proxy": {"useApifyProxy": true}
	}`, string(data))
}

func decodeRecord(t *testing.T, raw string) PostRecord {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var rec PostRecord
	require.NoError(t, dec.Decode(&rec))
	return rec
}

func TestPostRecordAccessors(t *testing.T) {
	rec := decodeRecord(t, `{
		"ownerUsername": "foodie",
		"caption": "yum",
		"likesCount": 12000000,
		"commentsCount": 2.5,
		"hashtags": ["a", "b", null],
		"url": "https://www.instagram.com/p/x/",
		"timestamp": "2024-01-01T00:00:00.000Z"
	}`)

	assert.Equal(t, "foodie", rec.OwnerUsername())
	assert.Equal(t, "yum", rec.Caption())
	assert.Equal(t, "12000000", rec.LikesCount())
	assert.Equal(t, "2.5", rec.CommentsCount())
	assert.Equal(t, []string{"a", "b"}, rec.Hashtags())
	assert.Equal(t, "https://www.instagram.com/p/x/", rec.URL())
	assert.Equal(t, "2024-01-01T00:00:00.000Z", rec.Timestamp())
}

func TestPostRecordMissingAndNull(t *testing.T) {
	rec := decodeRecord(t, `{"caption": null, "hashtags": null}`)

	assert.Equal(t, "", rec.Caption())
	assert.Equal(t, "", rec.OwnerUsername())
	assert.Equal(t, "", rec.LikesCount())
	assert.Nil(t, rec.Hashtags())

	var nilRec PostRecord
	assert.Equal(t, "", nilRec.URL())
}

func TestScalar(t *testing.T) {
	assert.Equal(t, "", Scalar(nil))
	assert.Equal(t, "1000000", Scalar(json.Number("1e6")))
	assert.Equal(t, "1000000", Scalar(float64(1e6)))
	assert.Equal(t, "0.25", Scalar(json.Number("0.25")))
	assert.Equal(t, "true", Scalar(true))
	assert.Equal(t, `{"a":1}`, Scalar(map[string]any{"a": 1}))
}

func TestPostRecordKeys(t *testing.T) {
	rec := PostRecord{"url": "u", "caption": "c", "alt": nil}
	assert.Equal(t, []string{"alt", "caption", "url"}, rec.Keys())
}
