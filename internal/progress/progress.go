// Package progress renders per-rendition progress bars on a terminal.
package progress

import (
	"fmt"
	"io"
	"sync"
	"vimeodl/internal/assemble"
	"vimeodl/internal/models"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
)

type bar struct {
	pb    *progressbar.ProgressBar
	bytes int64
}

// Bars keeps one bar per media kind. Bars are created lazily on the first
// update, when the segment count is known.
type Bars struct {
	w     io.Writer
	mutex sync.Mutex
	bars  map[models.MediaKind]*bar
}

// New creates Bars rendering to w.
func New(w io.Writer) *Bars {
	return &Bars{
		w:    w,
		bars: make(map[models.MediaKind]*bar),
	}
}

// Func returns Update as an assemble.ProgressFunc.
func (b *Bars) Func() assemble.ProgressFunc {
	return b.Update
}

// Update advances the bar for p.Kind by one segment.
func (b *Bars) Update(p models.Progress) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	cur, ok := b.bars[p.Kind]
	if !ok {
		cur = &bar{pb: progressbar.NewOptions(p.Total,
			progressbar.OptionSetWriter(b.w),
			progressbar.OptionSetDescription(string(p.Kind)),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(30),
			progressbar.OptionOnCompletion(func() { fmt.Fprintln(b.w) }),
		)}
		b.bars[p.Kind] = cur
	}

	cur.bytes += p.Bytes
	cur.pb.Describe(fmt.Sprintf("%-5s %-16s %8s", p.Kind, p.Label, humanize.Bytes(uint64(cur.bytes))))
	cur.pb.Add(1)
}

// Bytes returns the media bytes reported so far for kind.
func (b *Bars) Bytes(kind models.MediaKind) int64 {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if cur, ok := b.bars[kind]; ok {
		return cur.bytes
	}
	return 0
}

// Finish completes any bar left unfinished by a failed download.
func (b *Bars) Finish() {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	for _, cur := range b.bars {
		if !cur.pb.IsFinished() {
			cur.pb.Exit()
		}
	}
}
