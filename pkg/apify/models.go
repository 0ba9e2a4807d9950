package apify

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// RunStatus is the lifecycle state of an actor run
type RunStatus string

const (
	StatusReady     RunStatus = "READY"
	StatusRunning   RunStatus = "RUNNING"
	StatusTimingOut RunStatus = "TIMING-OUT"
	StatusAborting  RunStatus = "ABORTING"
	StatusSucceeded RunStatus = "SUCCEEDED"
	StatusFailed    RunStatus = "FAILED"
	StatusAborted   RunStatus = "ABORTED"
	StatusTimedOut  RunStatus = "TIMED-OUT"
)

// IsTerminal reports whether the run will not change status again
func (s RunStatus) IsTerminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusAborted, StatusTimedOut:
		return true
	default:
		return false
	}
}

// IsSuccess reports whether the run finished with a dataset to read
func (s RunStatus) IsSuccess() bool {
	return s == StatusSucceeded
}

// Run is the platform's view of one actor execution
type Run struct {
	ID               string     `json:"id"`
	ActID            string     `json:"actId,omitempty"`
	Status           RunStatus  `json:"status"`
	DefaultDatasetID string     `json:"defaultDatasetId"`
	StartedAt        *time.Time `json:"startedAt,omitempty"`
	FinishedAt       *time.Time `json:"finishedAt,omitempty"`
}

// runEnvelope wraps every run payload returned by the platform
type runEnvelope struct {
	Data Run `json:"data"`
}

// ProxyConfig selects the platform's proxy pool for the actor
type ProxyConfig struct {
	UseApifyProxy bool `json:"useApifyProxy"`
}

// RunInput is the JSON body submitted to the hashtag actor
type RunInput struct {
	Hashtags     []string    `json:"hashtags"`
	ResultsLimit int         `json:"resultsLimit"`
	SessionID    string      `json:"instagramScraperSessionId"`
	Proxy        ProxyConfig `json:"proxy"`
}

// Keys of the post fields read from dataset items
const (
	FieldOwnerUsername = "ownerUsername"
	FieldCaption       = "caption"
	FieldLikesCount    = "likesCount"
	FieldCommentsCount = "commentsCount"
	FieldHashtags      = "hashtags"
	FieldURL           = "url"
	FieldTimestamp     = "timestamp"
)

// PostRecord is one dataset item as produced by the actor. Numbers are
// kept as json.Number so they render exactly as received.
type PostRecord map[string]any

// Get returns the raw value stored under key, or nil
func (r PostRecord) Get(key string) any {
	if r == nil {
		return nil
	}
	return r[key]
}

// String renders the value under key as a single cell. Missing and null
// values render as "".
func (r PostRecord) String(key string) string {
	return Scalar(r.Get(key))
}

// Strings returns the list under key. A bare string is returned as a
// one-element list; anything else yields nil.
func (r PostRecord) Strings(key string) []string {
	switch v := r.Get(key).(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if item == nil {
				continue
			}
			out = append(out, Scalar(item))
		}
		return out
	case []string:
		return v
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	default:
		return nil
	}
}

func (r PostRecord) OwnerUsername() string { return r.String(FieldOwnerUsername) }
func (r PostRecord) Caption() string       { return r.String(FieldCaption) }
func (r PostRecord) LikesCount() string    { return r.String(FieldLikesCount) }
func (r PostRecord) CommentsCount() string { return r.String(FieldCommentsCount) }
func (r PostRecord) Hashtags() []string    { return r.Strings(FieldHashtags) }
func (r PostRecord) URL() string           { return r.String(FieldURL) }
func (r PostRecord) Timestamp() string     { return r.String(FieldTimestamp) }

// Keys returns the record's field names in sorted order
func (r PostRecord) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Scalar renders a decoded JSON value as text. Integers and decimals are
// written without an exponent; objects and arrays fall back to compact JSON.
func Scalar(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return formatNumber(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}

func formatNumber(n json.Number) string {
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10)
	}
	if f, err := n.Float64(); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return n.String()
}
