// Package combine muxes a separate video and audio file into one container
// using an external ffmpeg binary.
package combine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"vimeodl/internal/logger"
)

const (
	FFmpegCommand = "ffmpeg"
	// FailureMarker is searched for, case-insensitively, in the tool's stderr.
	FailureMarker = "error"
)

// ErrOutputNotWritten reports a run that left an existing output file as it was,
// as ffmpeg does when it declines to overwrite.
var ErrOutputNotWritten = errors.New("output file was not written")

// Combiner merges videoPath and audioPath into outputPath.
type Combiner interface {
	Combine(ctx context.Context, videoPath, audioPath, outputPath string) error
}

// CombineError reports that the muxing tool failed.
type CombineError struct {
	Output string
	Stderr string
	Err    error
}

func (e *CombineError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("failed to combine into %s: %v", e.Output, e.Err)
	case e.Stderr != "":
		return fmt.Sprintf("failed to combine into %s:\n%s", e.Output, e.Stderr)
	default:
		return fmt.Sprintf("failed to combine into %s", e.Output)
	}
}

func (e *CombineError) Unwrap() error {
	return e.Err
}

// FFmpeg invokes the ffmpeg executable.
type FFmpeg struct {
	// Path to the executable; empty means "ffmpeg" from PATH.
	Path   string
	Logger logger.Logger
}

// NewFFmpeg creates a combiner for the executable at path.
func NewFFmpeg(path string, log logger.Logger) *FFmpeg {
	return &FFmpeg{Path: path, Logger: log}
}

// BuildArgs builds the ffmpeg command arguments.
func BuildArgs(videoPath, audioPath, outputPath string) []string {
	return []string{
		"-i", videoPath,
		"-i", audioPath,
		"-c", "copy",
		outputPath,
	}
}

// Failed reports whether the tool's stderr signals a failure.
func Failed(stderr string) bool {
	return strings.Contains(strings.ToLower(stderr), FailureMarker)
}

// Combine runs ffmpeg. Success is decided by scanning stderr for "error";
// the exit status is not consulted. A tool that cannot be started, or a
// clean run that leaves no output file or an existing one untouched, is
// also a failure.
func (f *FFmpeg) Combine(ctx context.Context, videoPath, audioPath, outputPath string) error {
	path := f.Path
	if path == "" {
		path = FFmpegCommand
	}

	args := BuildArgs(videoPath, audioPath, outputPath)
	cmd := exec.CommandContext(ctx, path, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if f.Logger != nil {
		f.Logger.Debugf("Running %s %s", path, strings.Join(args, " "))
	}

	before, statErr := os.Stat(outputPath)

	runErr := cmd.Run()
	output := stderr.String()

	if err := ctx.Err(); err != nil {
		return &CombineError{Output: outputPath, Stderr: output, Err: err}
	}

	if Failed(output) {
		return &CombineError{Output: outputPath, Stderr: output}
	}
	if runErr != nil {
		if _, ok := runErr.(*exec.ExitError); !ok {
			return &CombineError{Output: outputPath, Err: runErr}
		}
		if f.Logger != nil {
			f.Logger.Warnf("%s exited with %v without reporting an error", path, runErr)
		}
	}
	after, err := os.Stat(outputPath)
	if err != nil {
		return &CombineError{Output: outputPath, Stderr: output, Err: err}
	}
	if statErr == nil && after.Size() == before.Size() && after.ModTime().Equal(before.ModTime()) {
		return &CombineError{Output: outputPath, Stderr: output, Err: ErrOutputNotWritten}
	}

	return nil
}
