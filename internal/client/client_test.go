package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgnsrekt/audiosniff/internal/media"
	"github.com/dgnsrekt/audiosniff/internal/relay"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestListMediaQuery(t *testing.T) {
	var gotURL string
	c := New("http://svc.test/", &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		gotURL = r.URL.String()
		return jsonResponse(http.StatusOK, `{"count":1,"media":[{"id":"a","url":"https://x.test/a.mp3","filename":"a.mp3"}]}`), nil
	})})

	recs, err := c.ListMedia(t.Context(), ListOptions{Query: "a b", Sort: "size"})
	if err != nil {
		t.Fatalf("ListMedia: %v", err)
	}
	if len(recs) != 1 || recs[0].Filename != "a.mp3" {
		t.Fatalf("records = %+v", recs)
	}
	if gotURL != "http://svc.test/api/v1/media?q=a+b&sort=size" {
		t.Fatalf("url = %s", gotURL)
	}
}

func TestAPIErrorDetail(t *testing.T) {
	c := New("http://svc.test", &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusNotFound, `{"title":"Not Found","status":404,"detail":"media not found: x"}`), nil
	})})

	_, err := c.RemoveMedia(t.Context(), "x")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want APIError", err)
	}
	if apiErr.Status != http.StatusNotFound || apiErr.Detail != "media not found: x" {
		t.Fatalf("api error = %+v", apiErr)
	}
}

func TestBundleRequestBody(t *testing.T) {
	var body map[string]any
	c := New("http://svc.test", &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		return jsonResponse(http.StatusOK, `{"bundle":{"id":"b1","name":"audio_bundle.zip"},"url":"/api/v1/bundles/b1/archive"}`), nil
	})})

	meta, err := c.Bundle(t.Context(), nil, true)
	if err != nil {
		t.Fatalf("Bundle: %v", err)
	}
	if meta.ID != "b1" {
		t.Fatalf("meta = %+v", meta)
	}
	if body["all"] != true {
		t.Fatalf("body = %v", body)
	}
	if _, ok := body["ids"]; ok {
		t.Fatalf("empty ids should be omitted: %v", body)
	}
}

func TestFetchArchive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/bundles/b1/archive" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/zip")
		_, _ = w.Write([]byte("PK-data"))
	}))
	defer srv.Close()

	var buf bytes.Buffer
	n, err := New(srv.URL, srv.Client()).FetchArchive(t.Context(), "b1", &buf)
	if err != nil {
		t.Fatalf("FetchArchive: %v", err)
	}
	if n != 7 || buf.String() != "PK-data" {
		t.Fatalf("got %d bytes %q", n, buf.String())
	}
}

func TestSendReturnsEnvelope(t *testing.T) {
	c := New("http://svc.test", &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		raw, _ := io.ReadAll(r.Body)
		if string(raw) != `{"type":"CLEAR_MEDIA"}` {
			t.Errorf("raw body = %s", raw)
		}
		return jsonResponse(http.StatusOK, `{"success":false,"error":"Unknown message type"}`), nil
	})})

	resp, err := c.Send(t.Context(), []byte(`{"type":"CLEAR_MEDIA"}`))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if resp.Success || resp.Error != "Unknown message type" {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestReadEvents(t *testing.T) {
	stream := ": ping\n\nevent: media_captured\ndata: {\"type\":\"MEDIA_CAPTURED\"}\n\nevent: media_cleared\ndata: {}\n\n"
	var got []relay.Event
	if err := readEvents(strings.NewReader(stream), func(e relay.Event) { got = append(got, e) }); err != nil {
		t.Fatalf("readEvents: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("events = %+v", got)
	}
	if got[0].Feed != relay.FeedCaptured || got[0].Payload != `{"type":"MEDIA_CAPTURED"}` {
		t.Fatalf("first event = %+v", got[0])
	}
	if got[1].Feed != relay.FeedCleared {
		t.Fatalf("second event = %+v", got[1])
	}
}

func TestWatchAgainstBroker(t *testing.T) {
	broker := relay.NewBroker()
	srv := httptest.NewServer(relay.SSEHandler(broker))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	events := make(chan relay.Event, 1)
	done := make(chan error, 1)
	go func() {
		done <- New(srv.URL, srv.Client()).Watch(ctx, []string{relay.FeedCaptured}, func(e relay.Event) {
			events <- e
			cancel()
		})
	}()

	deadline := time.Now().Add(2 * time.Second)
	for broker.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("watcher never subscribed")
		}
		time.Sleep(10 * time.Millisecond)
	}
	broker.NotifyCleared()
	broker.NotifyCaptured(media.Record{ID: "a", URL: "https://x.test/a.mp3", Filename: "a.mp3"})

	select {
	case e := <-events:
		if e.Feed != relay.FeedCaptured || !strings.Contains(e.Payload, "a.mp3") {
			t.Fatalf("event = %+v", e)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no event received")
	}
	<-done
}
