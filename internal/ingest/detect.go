package ingest

import (
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	versionRe = regexp.MustCompile(`(?i)[\s._-]v(?:er(?:sion)?)?[\s._-]?(\d+(?:\.\d+)*)`)
	dateRe    = regexp.MustCompile(`(20\d{2})[-_.]?(0[1-9]|1[0-2])[-_.]?(0[1-9]|[12]\d|3[01])`)
	nonAlnum  = regexp.MustCompile(`[^a-z0-9]+`)
	rfpHints  = []string{"rfp", "nofo", "solicitation", "funding-opportunity", "announcement"}
)

// DetectVersion extracts a version token from a document name or URL.
// Returns "" when no token is found.
func DetectVersion(name string) string {
	m := versionRe.FindStringSubmatch(name)
	if m == nil {
		return ""
	}
	return m[1]
}

// DetectReleaseDate extracts a release date from a document name or URL.
func DetectReleaseDate(name string) *time.Time {
	m := dateRe.FindStringSubmatch(name)
	if m == nil {
		return nil
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return &t
}

// TopicKey derives the normalized identifier that makes two documents "the
// same thing" at different versions: the document kind plus the name with
// version token, date, and extension stripped.
func TopicKey(name string) string {
	base := path.Base(strings.ToLower(name))
	base = strings.TrimSuffix(base, path.Ext(base))
	base = versionRe.ReplaceAllString(base, "")
	base = dateRe.ReplaceAllString(base, "")

	kind := "doc"
	for _, hint := range rfpHints {
		if strings.Contains(base, hint) {
			kind = "rfp"
			break
		}
	}

	base = nonAlnum.ReplaceAllString(base, "-")
	base = strings.Trim(base, "-")
	return kind + ":" + base
}

// CompareVersions orders version tokens numeric-aware: "10" > "9",
// "1.2" > "1.10" is false. Returns -1, 0, or 1.
func CompareVersions(a, b string) int {
	if a == b {
		return 0
	}
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) || i < len(bs); i++ {
		var an, bn int
		if i < len(as) {
			an, _ = strconv.Atoi(as[i])
		}
		if i < len(bs) {
			bn, _ = strconv.Atoi(bs[i])
		}
		if an != bn {
			if an < bn {
				return -1
			}
			return 1
		}
	}
	return 0
}
