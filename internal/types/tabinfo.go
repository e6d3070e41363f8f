package types

// TabInfo holds metadata about an attached browser tab.
type TabInfo struct {
	TargetID string
	URL      string
	Title    string
}
