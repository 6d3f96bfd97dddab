package models

// MediaKind identifies which sequence of a manifest a rendition belongs to.
// Video and audio ids live in separate namespaces.
type MediaKind string

const (
	Video MediaKind = "video"
	Audio MediaKind = "audio"
)

// Progress describes one completed segment of an assembly.
// This struct is shared between the assembler, the console renderer and logging.
type Progress struct {
	// Kind is the media kind of the rendition being assembled.
	Kind MediaKind
	// Index is the zero-based position of the segment that was just written.
	Index int
	// Total is the number of media segments in the rendition.
	Total int
	// Label is a human readable segment identifier, usually the byte range.
	Label string
	// Bytes is the size of the segment that was just written.
	Bytes int64
}
