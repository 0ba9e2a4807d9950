package apify

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

const (
	// DefaultBaseURL is the public platform API root
	DefaultBaseURL = "https://api.apify.com/v2"

	// DefaultActorID names the hashtag scraper actor. The platform accepts
	// "~" in place of "/" in actor paths.
	DefaultActorID = "apify~instagram-hashtag-scraper"

	redactedToken = "REDACTED"
)

var tokenParam = regexp.MustCompile(`([?&]token=)[^&#\s"]*`)

// RunsURL builds the URL that starts a run of actorID
func RunsURL(baseURL, actorID, token string) string {
	return withQuery(fmt.Sprintf("%s/acts/%s/runs", trimBase(baseURL), url.PathEscape(actorID)), token, nil)
}

// RunURL builds the URL that reports the status of runID
func RunURL(baseURL, runID, token string) string {
	return withQuery(fmt.Sprintf("%s/actor-runs/%s", trimBase(baseURL), url.PathEscape(runID)), token, nil)
}

// DatasetItemsURL builds the URL that returns every item of datasetID as JSON
func DatasetItemsURL(baseURL, datasetID, token string) string {
	params := url.Values{}
	params.Set("format", "json")
	return withQuery(fmt.Sprintf("%s/datasets/%s/items", trimBase(baseURL), url.PathEscape(datasetID)), token, params)
}

// RedactURL replaces the token query parameter so URLs can be logged
func RedactURL(raw string) string {
	return tokenParam.ReplaceAllString(raw, "${1}"+redactedToken)
}

func withQuery(endpoint, token string, params url.Values) string {
	if params == nil {
		params = url.Values{}
	}
	params.Set("token", token)
	return endpoint + "?" + params.Encode()
}

func trimBase(baseURL string) string {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return strings.TrimRight(baseURL, "/")
}
