package relay

import (
	"errors"
	"strings"
	"testing"
)

func TestDecodeRequest(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    RequestType
		wantErr string
	}{
		{name: "get", input: `{"type":"GET_CAPTURED_MEDIA"}`, want: TypeGetCapturedMedia},
		{name: "clear", input: `{"type":"CLEAR_MEDIA"}`, want: TypeClearMedia},
		{name: "download", input: `{"type":"DOWNLOAD_MEDIA","url":"https://x.test/a.mp3","filename":"a.mp3"}`, want: TypeDownloadMedia},
		{name: "remove", input: `{"type":"REMOVE_MEDIA","id":"r1_1"}`, want: TypeRemoveMedia},
		{name: "dom", input: `{"type":"DOM_AUDIO_FOUND","files":[{"url":"https://x.test/b.ogg"}]}`, want: TypeDOMAudioFound},
		{name: "dom empty list", input: `{"type":"DOM_AUDIO_FOUND","files":[]}`, want: TypeDOMAudioFound},
		{name: "unknown type", input: `{"type":"PLAY_MEDIA"}`, wantErr: "Unknown message type"},
		{name: "missing type", input: `{}`, wantErr: "Unknown message type"},
		{name: "not json", input: `nope`, wantErr: "invalid message"},
		{name: "download without url", input: `{"type":"DOWNLOAD_MEDIA","filename":"a.mp3"}`, wantErr: "url is required"},
		{name: "remove without id", input: `{"type":"REMOVE_MEDIA"}`, wantErr: "id is required"},
		{name: "dom file without url", input: `{"type":"DOM_AUDIO_FOUND","files":[{"filename":"x.mp3"}]}`, wantErr: "files[0]"},
		{name: "download wrong field type", input: `{"type":"DOWNLOAD_MEDIA","url":5}`, wantErr: "invalid DOWNLOAD_MEDIA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := DecodeRequest([]byte(tt.input))
			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("DecodeRequest() error = nil, want %q", tt.wantErr)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("DecodeRequest() error = %q, want substring %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeRequest() unexpected error: %v", err)
			}
			if req.Type() != tt.want {
				t.Fatalf("Type() = %q, want %q", req.Type(), tt.want)
			}
		})
	}
}

func TestDecodeRequestUnknownIsSentinel(t *testing.T) {
	_, err := DecodeRequest([]byte(`{"type":"NOPE"}`))
	if !errors.Is(err, ErrUnknownType) {
		t.Fatalf("error = %v, want ErrUnknownType", err)
	}
}

func TestEncodeRequestDecodes(t *testing.T) {
	in := DownloadMedia{URL: "https://x.test/a.mp3", Filename: "a.mp3"}
	data, err := EncodeRequest(in)
	if err != nil {
		t.Fatalf("EncodeRequest() error: %v", err)
	}
	out, err := DecodeRequest(data)
	if err != nil {
		t.Fatalf("DecodeRequest() error: %v", err)
	}
	got, ok := out.(DownloadMedia)
	if !ok {
		t.Fatalf("decoded %T, want DownloadMedia", out)
	}
	if got != in {
		t.Fatalf("decoded %+v, want %+v", got, in)
	}
}
