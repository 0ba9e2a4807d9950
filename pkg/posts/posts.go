package posts

import (
	"regexp"
	"strings"

	"ighashtag/pkg/apify"
)

// HashtagSeparator joins a post's hashtags into one cell
const HashtagSeparator = ", "

// locationPattern captures the text after a pin glyph up to the end of the
// line or the next hashtag
var locationPattern = regexp.MustCompile(`📍\s*([^\n\r#]+)`)

// Row is one post flattened into CSV columns
type Row struct {
	Username  string
	Caption   string
	Likes     string
	Comments  string
	Hashtags  string
	PostURL   string
	Timestamp string
	Location  string
}

var header = []string{
	"username",
	"caption",
	"likes",
	"comments",
	"hashtags",
	"post_url",
	"timestamp",
	"location",
}

// Header returns the column names in output order
func Header() []string {
	return append([]string(nil), header...)
}

// Record returns the row's cells in header order
func (r Row) Record() []string {
	return []string{
		r.Username,
		r.Caption,
		r.Likes,
		r.Comments,
		r.Hashtags,
		r.PostURL,
		r.Timestamp,
		r.Location,
	}
}

// FromRecord flattens a single dataset item
func FromRecord(rec apify.PostRecord) Row {
	caption := rec.Caption()
	return Row{
		Username:  rec.OwnerUsername(),
		Caption:   caption,
		Likes:     rec.LikesCount(),
		Comments:  rec.CommentsCount(),
		Hashtags:  strings.Join(rec.Hashtags(), HashtagSeparator),
		PostURL:   rec.URL(),
		Timestamp: rec.Timestamp(),
		Location:  ExtractLocation(caption),
	}
}

// Flatten converts dataset items to rows, one per item, in the same order
func Flatten(records []apify.PostRecord) []Row {
	rows := make([]Row, 0, len(records))
	for _, rec := range records {
		rows = append(rows, FromRecord(rec))
	}
	return rows
}

// Records converts rows to CSV records, without the header
func Records(rows []Row) [][]string {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Record())
	}
	return out
}

// ExtractLocation returns the free-text location following the first 📍 in
// caption, trimmed. It returns "" when there is no pin.
func ExtractLocation(caption string) string {
	if caption == "" {
		return ""
	}
	m := locationPattern.FindStringSubmatch(caption)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}
