// Package manifest models the master.json document that describes the
// renditions of a clip, and resolves every segment to an absolute URL.
package manifest

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"vimeodl/internal/models"
)

// Segment is a single fetchable chunk of a rendition.
type Segment struct {
	URL string `json:"url"`
}

// Rendition is one encoded quality level of either video or audio.
// Renditions are built by Parse and must be treated as read-only.
type Rendition struct {
	Kind        models.MediaKind
	ID          string
	BaseURL     string
	Bitrate     int64
	InitSegment string
	Segments    []Segment

	// Informational fields, used for logging only.
	Codecs   string
	MimeType string
	Width    int
	Height   int
	Duration float64

	base *url.URL
}

// Manifest is the parsed master.json document.
type Manifest struct {
	ClipID  string
	BaseURL string
	Video   []Rendition
	Audio   []Rendition

	base *url.URL
}

// rawRendition maps directly to one entry of the "video" or "audio" arrays.
type rawRendition struct {
	ID          string    `json:"id"`
	BaseURL     string    `json:"base_url"`
	Bitrate     int64     `json:"bitrate"`
	InitSegment string    `json:"init_segment"`
	Segments    []Segment `json:"segments"`
	Codecs      string    `json:"codecs"`
	MimeType    string    `json:"mime_type"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	Duration    float64   `json:"duration"`
}

// rawManifest uses pointers so that absent required fields can be told apart
// from empty ones.
type rawManifest struct {
	ClipID  *string         `json:"clip_id"`
	BaseURL string          `json:"base_url"`
	Video   *[]rawRendition `json:"video"`
	Audio   *[]rawRendition `json:"audio"`
}

// Parse decodes a master.json document fetched from documentURL and resolves
// the manifest base URL and every rendition base URL eagerly.
func Parse(document []byte, documentURL string) (*Manifest, error) {
	docURL, err := url.Parse(documentURL)
	if err != nil {
		return nil, &ParseError{Reason: fmt.Sprintf("invalid document URL '%s'", documentURL), Err: err}
	}

	var raw rawManifest
	if err := json.Unmarshal(document, &raw); err != nil {
		return nil, &ParseError{Reason: "invalid JSON", Err: err}
	}

	switch {
	case raw.ClipID == nil:
		return nil, &ParseError{Reason: "missing required field clip_id"}
	case raw.Video == nil:
		return nil, &ParseError{Reason: "missing required array video"}
	case raw.Audio == nil:
		return nil, &ParseError{Reason: "missing required array audio"}
	}

	base, err := resolveURL(docURL, raw.BaseURL)
	if err != nil {
		return nil, &ParseError{Reason: "invalid manifest base_url", Err: err}
	}

	m := &Manifest{
		ClipID:  *raw.ClipID,
		BaseURL: raw.BaseURL,
		base:    base,
	}

	if m.Video, err = buildRenditions(models.Video, *raw.Video, base); err != nil {
		return nil, err
	}
	if m.Audio, err = buildRenditions(models.Audio, *raw.Audio, base); err != nil {
		return nil, err
	}

	return m, nil
}

func buildRenditions(kind models.MediaKind, raws []rawRendition, manifestBase *url.URL) ([]Rendition, error) {
	renditions := make([]Rendition, 0, len(raws))
	for i, rr := range raws {
		base, err := resolveURL(manifestBase, rr.BaseURL)
		if err != nil {
			return nil, &ParseError{Reason: fmt.Sprintf("invalid base_url for %s[%d] (%s)", kind, i, rr.ID), Err: err}
		}

		renditions = append(renditions, Rendition{
			Kind:        kind,
			ID:          rr.ID,
			BaseURL:     rr.BaseURL,
			Bitrate:     rr.Bitrate,
			InitSegment: rr.InitSegment,
			Segments:    rr.Segments,
			Codecs:      rr.Codecs,
			MimeType:    rr.MimeType,
			Width:       rr.Width,
			Height:      rr.Height,
			Duration:    rr.Duration,
			base:        base,
		})
	}
	return renditions, nil
}

// ResolvedBaseURL returns the manifest base URL resolved against the document URL.
func (m *Manifest) ResolvedBaseURL() *url.URL {
	return cloneURL(m.base)
}

// Renditions returns the sequence for kind in source order.
func (m *Manifest) Renditions(kind models.MediaKind) []Rendition {
	switch kind {
	case models.Video:
		return m.Video
	case models.Audio:
		return m.Audio
	default:
		return nil
	}
}

// FindByID returns the first rendition of kind whose id equals id exactly.
// Ids are expected to be unique, but when they are not the earliest entry in
// source order is returned.
func (m *Manifest) FindByID(kind models.MediaKind, id string) (*Rendition, error) {
	renditions := m.Renditions(kind)
	for i := range renditions {
		if renditions[i].ID == id {
			return &renditions[i], nil
		}
	}
	return nil, &RenditionNotFoundError{Kind: kind, ID: id}
}

// FindMaxBitrate returns the rendition of kind with the highest bitrate.
// On ties the earliest rendition wins. ok is false for an empty sequence.
func (m *Manifest) FindMaxBitrate(kind models.MediaKind) (r *Rendition, ok bool) {
	renditions := m.Renditions(kind)
	if len(renditions) == 0 {
		return nil, false
	}

	best := &renditions[0]
	for i := 1; i < len(renditions); i++ {
		if renditions[i].Bitrate > best.Bitrate {
			best = &renditions[i]
		}
	}
	return best, true
}

// ResolvedBaseURL returns the effective base URL of the rendition.
func (r *Rendition) ResolvedBaseURL() *url.URL {
	return cloneURL(r.base)
}

// ResolveSegmentURLs resolves every segment against the rendition base URL.
// The result has the same order as Segments.
func (r *Rendition) ResolveSegmentURLs() ([]*url.URL, error) {
	urls := make([]*url.URL, len(r.Segments))
	for i, seg := range r.Segments {
		u, err := resolveURL(r.base, seg.URL)
		if err != nil {
			return nil, &ParseError{Reason: fmt.Sprintf("invalid url for segment %d of %s rendition %s", i, r.Kind, r.ID), Err: err}
		}
		urls[i] = u
	}
	return urls, nil
}

// DecodeInitSegment base64-decodes the init segment.
func (r *Rendition) DecodeInitSegment() ([]byte, error) {
	data, err := decodeBase64(r.InitSegment)
	if err != nil {
		return nil, &DecodeError{Kind: r.Kind, RenditionID: r.ID, Err: err}
	}
	return data, nil
}

var errBadPadding = errors.New("illegal base64 padding")

// decodeBase64 follows the forgiving-base64 rules browsers apply in atob:
// ASCII whitespace is skipped and trailing padding is optional, but present
// padding must complete a quantum.
func decodeBase64(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\f', '\r':
			return -1
		}
		return r
	}, s)

	trimmed := strings.TrimRight(s, "=")
	if padding := len(s) - len(trimmed); padding > 0 {
		if padding > 2 || len(s)%4 != 0 {
			return nil, errBadPadding
		}
	}

	return base64.RawStdEncoding.DecodeString(trimmed)
}
