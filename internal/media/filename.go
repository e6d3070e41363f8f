package media

import (
	"fmt"
	"net/url"
	stdpath "path"
	"strconv"
	"strings"
	"time"
)

// DeriveFilename turns a media URL into a download filename. The query string
// is never part of the result and names without a recognized audio extension
// get the default one. Unparseable URLs fall back to a timestamped name.
func (r *Rules) DeriveFilename(rawURL string, now time.Time) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" {
		return fmt.Sprintf("audio_%d.%s", now.UnixMilli(), r.DefaultExtension)
	}

	// The escaped path keeps %3F and friends as literal name characters.
	name := ""
	if p := parsed.EscapedPath(); p != "" && !strings.HasSuffix(p, "/") {
		name = stdpath.Base(stdpath.Clean("/" + p))
	}
	if name == "" || name == "." || name == "/" {
		name = "audio"
	}
	if !r.HasAudioExtension(name) {
		name = name + "." + r.DefaultExtension
	}
	return name
}

// HeaderValue returns the first header value whose name matches key
// case-insensitively.
func HeaderValue(headers map[string]string, key string) (string, bool) {
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}

// ParseContentLength extracts a declared Content-Length. Missing or
// malformed values yield nil.
func ParseContentLength(headers map[string]string) *int64 {
	raw, ok := HeaderValue(headers, "Content-Length")
	if !ok {
		return nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || n < 0 {
		return nil
	}
	return &n
}
