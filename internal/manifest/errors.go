package manifest

import (
	"fmt"
	"vimeodl/internal/models"
)

// ParseError reports a structurally invalid manifest document or an
// unparseable URL inside it.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("manifest parse error: %s: %v", e.Reason, e.Err)
	}
	return "manifest parse error: " + e.Reason
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// DecodeError reports a malformed base64 init segment.
type DecodeError struct {
	Kind        models.MediaKind
	RenditionID string
	Err         error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode init segment of %s rendition %q: %v", e.Kind, e.RenditionID, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// RenditionNotFoundError is returned by FindByID when no rendition matches.
type RenditionNotFoundError struct {
	Kind models.MediaKind
	ID   string
}

func (e *RenditionNotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Kind, e.ID)
}
