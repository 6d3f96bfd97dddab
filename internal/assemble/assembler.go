// Package assemble streams one rendition to an output sink: the decoded init
// segment first, then every media segment strictly in order.
package assemble

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"path"
	"regexp"
	"time"
	"vimeodl/internal/logger"
	"vimeodl/internal/manifest"
	"vimeodl/internal/models"
)

// Fetcher opens the body of a single segment.
type Fetcher interface {
	FetchRange(ctx context.Context, u *url.URL) (io.ReadCloser, error)
}

// Recorder receives per-segment measurements.
type Recorder interface {
	AddInitBytes(kind models.MediaKind, bytes int64)
	ObserveSegment(kind models.MediaKind, bytes int64, elapsed time.Duration)
	IncSegmentFailures(kind models.MediaKind)
}

// ProgressFunc is called after each media segment has been written.
type ProgressFunc func(models.Progress)

// Result summarizes an assembly. On failure it describes what was written
// before the error.
type Result struct {
	Kind        models.MediaKind
	RenditionID string
	Segments    int
	Bytes       int64
}

// Assembler writes renditions using a Fetcher.
type Assembler struct {
	fetcher  Fetcher
	logger   logger.Logger
	recorder Recorder
}

// New creates an Assembler. recorder may be nil.
func New(fetcher Fetcher, log logger.Logger, recorder Recorder) *Assembler {
	return &Assembler{
		fetcher:  fetcher,
		logger:   log,
		recorder: recorder,
	}
}

var rangePattern = regexp.MustCompile(`[?&]range=(\d+-\d+)`)

// segmentLabel extracts a display label from the range query parameter,
// falling back to the last path element.
func segmentLabel(u *url.URL) string {
	if m := rangePattern.FindStringSubmatch("?" + u.RawQuery); m != nil {
		return m[1]
	}
	return path.Base(u.Path)
}

// Assemble writes r to sink. The init segment is decoded and every segment URL
// is resolved before any request is issued. Segments are then fetched one at a
// time, fully buffered, and written in order. The first failure aborts the
// assembly. sink is closed on every return path; a close error after a
// complete write is reported as a *WriteError.
func (a *Assembler) Assemble(ctx context.Context, r *manifest.Rendition, sink io.WriteCloser, onProgress ProgressFunc) (*Result, error) {
	res := &Result{Kind: r.Kind, RenditionID: r.ID}

	closed := false
	defer func() {
		if !closed {
			sink.Close()
		}
	}()

	initData, err := r.DecodeInitSegment()
	if err != nil {
		return res, err
	}

	urls, err := r.ResolveSegmentURLs()
	if err != nil {
		return res, err
	}

	if _, err := sink.Write(initData); err != nil {
		return res, &WriteError{Kind: r.Kind, RenditionID: r.ID, Index: -1, Err: err}
	}
	res.Bytes += int64(len(initData))
	if a.recorder != nil {
		a.recorder.AddInitBytes(r.Kind, int64(len(initData)))
	}

	a.logger.Debugf("Assembling %s rendition %s: %d segments from %s", r.Kind, r.ID, len(urls), r.ResolvedBaseURL())

	var buf bytes.Buffer
	for i, u := range urls {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		start := time.Now()
		buf.Reset()
		if err := a.fetchInto(ctx, u, &buf); err != nil {
			a.fail(r.Kind)
			return res, &SegmentFetchError{Kind: r.Kind, RenditionID: r.ID, Index: i, URL: u.String(), Err: err}
		}
		elapsed := time.Since(start)

		n, err := sink.Write(buf.Bytes())
		if err != nil {
			a.fail(r.Kind)
			return res, &WriteError{Kind: r.Kind, RenditionID: r.ID, Index: i, Err: err}
		}

		res.Segments++
		res.Bytes += int64(n)
		if a.recorder != nil {
			a.recorder.ObserveSegment(r.Kind, int64(n), elapsed)
		}

		label := segmentLabel(u)
		a.logger.Debugf("Wrote %s segment %d/%d (%s, %d bytes)", r.Kind, i+1, len(urls), label, n)
		if onProgress != nil {
			onProgress(models.Progress{
				Kind:  r.Kind,
				Index: i,
				Total: len(urls),
				Label: label,
				Bytes: int64(n),
			})
		}
	}

	closed = true
	if err := sink.Close(); err != nil {
		return res, &WriteError{Kind: r.Kind, RenditionID: r.ID, Index: -1, Err: err}
	}
	return res, nil
}

func (a *Assembler) fetchInto(ctx context.Context, u *url.URL, buf *bytes.Buffer) error {
	body, err := a.fetcher.FetchRange(ctx, u)
	if err != nil {
		return err
	}
	defer body.Close()

	_, err = buf.ReadFrom(body)
	return err
}

func (a *Assembler) fail(kind models.MediaKind) {
	if a.recorder != nil {
		a.recorder.IncSegmentFailures(kind)
	}
}
