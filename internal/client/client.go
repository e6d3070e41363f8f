// Package client talks to a running audiosniff service over its HTTP API.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/dgnsrekt/audiosniff/internal/archive"
	"github.com/dgnsrekt/audiosniff/internal/media"
	"github.com/dgnsrekt/audiosniff/internal/relay"
)

// Client is a thin typed wrapper over the REST endpoints.
type Client struct {
	base string
	http *http.Client
}

func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{base: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// APIError is a non-2xx answer from the service.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("audiosniff: HTTP %d", e.Status)
	}
	return fmt.Sprintf("audiosniff: HTTP %d: %s", e.Status, e.Detail)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	var problem struct {
		Detail string `json:"detail"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(data, &problem) != nil || problem.Detail == "" {
		problem.Detail = strings.TrimSpace(string(data))
	}
	return &APIError{Status: resp.StatusCode, Detail: problem.Detail}
}

// ListOptions mirrors the enumerate query parameters.
type ListOptions struct {
	Query string
	Sort  string
	Order string
}

func (c *Client) ListMedia(ctx context.Context, opts ListOptions) ([]media.Record, error) {
	q := url.Values{}
	if opts.Query != "" {
		q.Set("q", opts.Query)
	}
	if opts.Sort != "" {
		q.Set("sort", opts.Sort)
	}
	if opts.Order != "" {
		q.Set("order", opts.Order)
	}
	path := "/api/v1/media"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out struct {
		Media []media.Record `json:"media"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Media, nil
}

func (c *Client) RemoveMedia(ctx context.Context, id string) (bool, error) {
	var out struct {
		Removed bool `json:"removed"`
	}
	err := c.do(ctx, http.MethodDelete, "/api/v1/media/"+url.PathEscape(id), nil, &out)
	return out.Removed, err
}

func (c *Client) ClearMedia(ctx context.Context) (int, error) {
	var out struct {
		Removed int `json:"removed"`
	}
	err := c.do(ctx, http.MethodDelete, "/api/v1/media", nil, &out)
	return out.Removed, err
}

// Download asks the service to save one file. id wins over rawURL.
func (c *Client) Download(ctx context.Context, id, rawURL, filename string) (relay.DownloadResult, error) {
	in := map[string]string{"id": id, "url": rawURL, "filename": filename}
	var out relay.DownloadResult
	err := c.do(ctx, http.MethodPost, "/api/v1/media/download", in, &out)
	return out, err
}

// Bundle builds a stored archive and returns its metadata.
func (c *Client) Bundle(ctx context.Context, ids []string, all bool) (archive.Meta, error) {
	in := struct {
		IDs []string `json:"ids,omitempty"`
		All bool     `json:"all,omitempty"`
	}{IDs: ids, All: all}
	var out struct {
		Bundle archive.Meta `json:"bundle"`
	}
	err := c.do(ctx, http.MethodPost, "/api/v1/media/bundle", in, &out)
	return out.Bundle, err
}

// FetchArchive streams a stored bundle zip into w.
func (c *Client) FetchArchive(ctx context.Context, id string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/v1/bundles/"+url.PathEscape(id)+"/archive", nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return 0, err
	}
	return io.Copy(w, resp.Body)
}

// Send posts a raw relay message and returns the envelope.
func (c *Client) Send(ctx context.Context, raw []byte) (relay.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/v1/messages", bytes.NewReader(raw))
	if err != nil {
		return relay.Response{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return relay.Response{}, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return relay.Response{}, err
	}
	var out relay.Response
	err = json.NewDecoder(resp.Body).Decode(&out)
	return out, err
}

// Watch reads the event stream and calls fn for each event until ctx ends
// or the server closes the stream.
func (c *Client) Watch(ctx context.Context, feeds []string, fn func(relay.Event)) error {
	path := "/api/v1/events"
	if len(feeds) > 0 {
		path += "?feeds=" + url.QueryEscape(strings.Join(feeds, ","))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return err
	}
	return readEvents(resp.Body, fn)
}

func readEvents(r io.Reader, fn func(relay.Event)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), 1<<20)
	var evt relay.Event
	var data []string
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if len(data) > 0 {
				evt.Payload = strings.Join(data, "\n")
				fn(evt)
			}
			evt, data = relay.Event{}, nil
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			evt.Feed = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	return sc.Err()
}
