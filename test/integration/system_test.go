//go:build integration

package integration

import (
	"io"
	"net/http"
	"strings"
	"testing"
)

func TestHealth(t *testing.T) {
	resp := env.GET(t, "/healthz")
	requireStatus(t, resp, http.StatusOK)
	result := decodeJSON[struct {
		Status string `json:"status"`
		Tabs   int    `json:"tabs"`
	}](t, resp)
	requireField(t, result.Status, "ok", "status")
	t.Logf("attached tabs: %d", result.Tabs)
}

func TestDocsAndMetrics(t *testing.T) {
	for _, tc := range []struct {
		path string
		want string
	}{
		{"/docs", "elements-api"},
		{"/docs/messages", "DOM_AUDIO_FOUND"},
		{"/openapi.json", "list-media"},
		{"/metrics", "audiosniff_registry_records"},
	} {
		t.Run(tc.path, func(t *testing.T) {
			resp := env.GET(t, tc.path)
			requireStatus(t, resp, http.StatusOK)
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)
			if !strings.Contains(string(body), tc.want) {
				t.Fatalf("%s missing %q", tc.path, tc.want)
			}
		})
	}
}
