package media

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	defaultMIMETypes = []string{
		"audio/mpeg",
		"audio/mp3",
		"audio/wav",
		"audio/ogg",
		"audio/webm",
		"audio/aac",
		"audio/flac",
		"audio/x-m4a",
	}
	defaultExtensions = []string{"mp3", "wav", "ogg", "webm", "aac", "flac", "m4a"}
)

const defaultExtension = "mp3"

// Rules decide what counts as audio and how files are named.
type Rules struct {
	MIMETypes        []string `yaml:"mime_types"`
	Extensions       []string `yaml:"extensions"`
	DefaultExtension string   `yaml:"default_extension"`

	extRe  *regexp.Regexp
	linkRe *regexp.Regexp
}

// DefaultRules returns the built-in allow-list.
func DefaultRules() *Rules {
	r := &Rules{
		MIMETypes:        append([]string(nil), defaultMIMETypes...),
		Extensions:       append([]string(nil), defaultExtensions...),
		DefaultExtension: defaultExtension,
	}
	if err := r.compile(); err != nil {
		panic(err)
	}
	return r
}

// LoadRules reads a YAML rules file. Omitted lists fall back to the defaults.
func LoadRules(filePath string) (*Rules, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("rules: %w", err)
	}
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("rules: %w", err)
	}
	if len(r.MIMETypes) == 0 {
		r.MIMETypes = append([]string(nil), defaultMIMETypes...)
	}
	if len(r.Extensions) == 0 {
		r.Extensions = append([]string(nil), defaultExtensions...)
	}
	if r.DefaultExtension == "" {
		r.DefaultExtension = defaultExtension
	}
	for i, mt := range r.MIMETypes {
		mt = strings.ToLower(strings.TrimSpace(mt))
		if mt == "" {
			return nil, fmt.Errorf("rules: mime_types[%d] is empty", i)
		}
		r.MIMETypes[i] = mt
	}
	if err := r.compile(); err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *Rules) compile() error {
	exts := make([]string, 0, len(r.Extensions))
	for i, ext := range r.Extensions {
		ext = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
		if ext == "" {
			return fmt.Errorf("rules: extensions[%d] is empty", i)
		}
		exts = append(exts, regexp.QuoteMeta(ext))
	}
	r.Extensions = exts
	r.DefaultExtension = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(r.DefaultExtension)), ".")
	if r.DefaultExtension == "" {
		return errors.New("rules: default_extension is empty")
	}

	alt := strings.Join(exts, "|")
	var err error
	if r.extRe, err = regexp.Compile(`(?i)\.(` + alt + `)$`); err != nil {
		return fmt.Errorf("rules: %w", err)
	}
	if r.linkRe, err = regexp.Compile(`(?i)\.(` + alt + `)(\?.*)?$`); err != nil {
		return fmt.Errorf("rules: %w", err)
	}
	return nil
}

// IsAudioContentType reports whether a Content-Type value contains any
// allow-listed MIME type. Parameters such as charset do not prevent a match.
func (r *Rules) IsAudioContentType(contentType string) bool {
	ct := strings.ToLower(contentType)
	if ct == "" {
		return false
	}
	for _, mt := range r.MIMETypes {
		if strings.Contains(ct, mt) {
			return true
		}
	}
	return false
}

// HasAudioExtension reports whether name ends in a recognized audio extension.
func (r *Rules) HasAudioExtension(name string) bool {
	return r.extRe.MatchString(name)
}

// IsAudioLink reports whether href points at an audio file, ignoring any query.
func (r *Rules) IsAudioLink(href string) bool {
	return r.linkRe.MatchString(href)
}

// LinkPattern returns the link regexp source for use in page scripts.
func (r *Rules) LinkPattern() string {
	return strings.TrimPrefix(r.linkRe.String(), "(?i)")
}
