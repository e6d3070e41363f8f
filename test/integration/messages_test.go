//go:build integration

package integration

import (
	"encoding/json"
	"testing"
)

func TestMessageContract(t *testing.T) {
	env.clear(t)
	song := env.originURL("/audio/contract.mp3?x=1")

	res := env.send(t, map[string]any{
		"type": "DOM_AUDIO_FOUND",
		"files": []map[string]any{
			{"url": song},
			{"url": song},
		},
	})
	if !res.Success {
		t.Fatalf("DOM_AUDIO_FOUND failed: %s", res.Error)
	}

	res = env.send(t, map[string]any{"type": "GET_CAPTURED_MEDIA"})
	if !res.Success {
		t.Fatalf("GET_CAPTURED_MEDIA failed: %s", res.Error)
	}
	var records []mediaRecord
	if err := json.Unmarshal(res.Data, &records); err != nil {
		t.Fatalf("decode records: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %+v, want one after URL dedup", records)
	}
	requireField(t, records[0].Filename, "contract.mp3", "filename")
	requireField(t, records[0].Source, "dom", "source")

	res = env.send(t, map[string]any{"type": "REMOVE_MEDIA", "id": "not-captured"})
	if !res.Success {
		t.Fatalf("removing a missing id should succeed: %s", res.Error)
	}
	if got := env.listMedia(t, ""); len(got) != 1 {
		t.Fatalf("registry changed by missing remove: %+v", got)
	}

	res = env.send(t, map[string]any{"type": "DOWNLOAD_MEDIA", "url": song})
	if !res.Success {
		t.Fatalf("DOWNLOAD_MEDIA failed: %s", res.Error)
	}

	res = env.send(t, map[string]any{"type": "DOWNLOAD_MEDIA", "url": env.originURL("/missing/x.mp3")})
	if res.Success || res.Error == "" {
		t.Fatalf("download of 404 should fail in the envelope: %+v", res)
	}

	res = env.send(t, map[string]any{"type": "EXPLODE"})
	requireField(t, res.Error, "Unknown message type", "error")

	res = env.send(t, map[string]any{"type": "CLEAR_MEDIA"})
	if !res.Success {
		t.Fatalf("CLEAR_MEDIA failed: %s", res.Error)
	}
	if got := env.listMedia(t, ""); len(got) != 0 {
		t.Fatalf("registry not cleared: %+v", got)
	}
}
