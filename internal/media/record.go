package media

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Source tags how a record was discovered.
type Source string

const (
	SourceNetwork Source = "webRequest"
	SourceDOM     Source = "dom"
)

// UnknownTitle is the tab title placeholder used until a lookup succeeds.
const UnknownTitle = "Unknown"

// Record is one captured audio resource.
type Record struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Timestamp   time.Time `json:"timestamp"`
	TabID       string    `json:"tab_id,omitempty"`
	TabTitle    string    `json:"tab_title,omitempty"`
	FileSize    *int64    `json:"file_size,omitempty"`
	Source      Source    `json:"source"`
}

// NetworkID builds the id for a record observed via network interception.
func NetworkID(requestID string, at time.Time) string {
	return fmt.Sprintf("%s_%d", requestID, at.UnixMilli())
}

// DOMID builds the id for a record found by a page scan. kind is the element
// family the URL came from (audio, source, link).
func DOMID(kind string, at time.Time) string {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("dom_%s_%d_%s", kind, at.UnixMilli(), token)
}
