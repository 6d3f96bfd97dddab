package assemble

import (
	"fmt"
	"vimeodl/internal/models"
)

// SegmentFetchError reports a segment that could not be fetched or read.
type SegmentFetchError struct {
	Kind        models.MediaKind
	RenditionID string
	Index       int
	URL         string
	Err         error
}

func (e *SegmentFetchError) Error() string {
	return fmt.Sprintf("failed to fetch segment %d of %s rendition %s from %s: %v", e.Index, e.Kind, e.RenditionID, e.URL, e.Err)
}

func (e *SegmentFetchError) Unwrap() error {
	return e.Err
}

// WriteError reports a failure of the output sink. Index is -1 for the init
// segment and for the final close.
type WriteError struct {
	Kind        models.MediaKind
	RenditionID string
	Index       int
	Err         error
}

func (e *WriteError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("failed to write %s rendition %s: %v", e.Kind, e.RenditionID, e.Err)
	}
	return fmt.Sprintf("failed to write segment %d of %s rendition %s: %v", e.Index, e.Kind, e.RenditionID, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
