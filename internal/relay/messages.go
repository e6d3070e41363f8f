package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dgnsrekt/audiosniff/internal/media"
)

// RequestType names one variant of the relay message contract.
type RequestType string

const (
	TypeGetCapturedMedia RequestType = "GET_CAPTURED_MEDIA"
	TypeDownloadMedia    RequestType = "DOWNLOAD_MEDIA"
	TypeClearMedia       RequestType = "CLEAR_MEDIA"
	TypeRemoveMedia      RequestType = "REMOVE_MEDIA"
	TypeDOMAudioFound    RequestType = "DOM_AUDIO_FOUND"
)

// ErrUnknownType is returned when a message names no known request variant.
var ErrUnknownType = errors.New("Unknown message type")

// Request is the closed set of relay requests. Only types in this package
// implement it.
type Request interface {
	Type() RequestType
	validate() error
}

// GetCapturedMedia asks for the current record list.
type GetCapturedMedia struct{}

// DownloadMedia submits one URL to the download facility.
type DownloadMedia struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

// ClearMedia empties the registry.
type ClearMedia struct{}

// RemoveMedia deletes one record.
type RemoveMedia struct {
	ID string `json:"id"`
}

// DOMAudioFound carries audio discovered by a page scan.
type DOMAudioFound struct {
	Files []media.Record `json:"files"`
}

func (GetCapturedMedia) Type() RequestType { return TypeGetCapturedMedia }
func (DownloadMedia) Type() RequestType    { return TypeDownloadMedia }
func (ClearMedia) Type() RequestType       { return TypeClearMedia }
func (RemoveMedia) Type() RequestType      { return TypeRemoveMedia }
func (DOMAudioFound) Type() RequestType    { return TypeDOMAudioFound }

func (GetCapturedMedia) validate() error { return nil }
func (ClearMedia) validate() error       { return nil }

func (r DownloadMedia) validate() error {
	if strings.TrimSpace(r.URL) == "" {
		return errors.New("url is required")
	}
	return nil
}

func (r RemoveMedia) validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return errors.New("id is required")
	}
	return nil
}

func (r DOMAudioFound) validate() error {
	for i, f := range r.Files {
		if strings.TrimSpace(f.URL) == "" {
			return fmt.Errorf("files[%d]: url is required", i)
		}
	}
	return nil
}

// Response is the envelope every request is answered with.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// OK builds a success envelope.
func OK(data any) Response {
	return Response{Success: true, Data: data}
}

// Fail builds a failure envelope from err.
func Fail(err error) Response {
	return Response{Success: false, Error: err.Error()}
}

// DecodeRequest parses a JSON message of the form {"type": "...", ...} into
// its concrete variant and validates it.
func DecodeRequest(data []byte) (Request, error) {
	var head struct {
		Type RequestType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("invalid message: %w", err)
	}

	var req Request
	switch head.Type {
	case TypeGetCapturedMedia:
		req = GetCapturedMedia{}
	case TypeClearMedia:
		req = ClearMedia{}
	case TypeDownloadMedia:
		var r DownloadMedia
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", head.Type, err)
		}
		req = r
	case TypeRemoveMedia:
		var r RemoveMedia
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", head.Type, err)
		}
		req = r
	case TypeDOMAudioFound:
		var r DOMAudioFound
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", head.Type, err)
		}
		req = r
	default:
		return nil, ErrUnknownType
	}

	if err := req.validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", head.Type, err)
	}
	return req, nil
}

// EncodeRequest renders req in the wire shape DecodeRequest accepts.
func EncodeRequest(req Request) ([]byte, error) {
	fields := map[string]any{}
	switch r := req.(type) {
	case DownloadMedia:
		fields["url"] = r.URL
		fields["filename"] = r.Filename
	case RemoveMedia:
		fields["id"] = r.ID
	case DOMAudioFound:
		fields["files"] = r.Files
	}
	fields["type"] = req.Type()
	return json.Marshal(fields)
}
