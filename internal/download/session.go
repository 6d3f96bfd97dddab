// Package download drives one clip from manifest URL to output files.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"vimeodl/internal/assemble"
	"vimeodl/internal/combine"
	"vimeodl/internal/logger"
	"vimeodl/internal/manifest"
	"vimeodl/internal/models"

	"github.com/google/uuid"
)

// State is the position of a Session in its lifecycle.
type State int

const (
	Idle State = iota
	ManifestFetched
	VideoAssembled
	AudioAssembled
	AudioSkipped
	Combined
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case ManifestFetched:
		return "manifest-fetched"
	case VideoAssembled:
		return "video-assembled"
	case AudioAssembled:
		return "audio-assembled"
	case AudioSkipped:
		return "audio-skipped"
	case Combined:
		return "combined"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Client fetches the manifest document and segment bodies.
type Client interface {
	FetchManifest(ctx context.Context, rawURL string) ([]byte, error)
	FetchRange(ctx context.Context, u *url.URL) (io.ReadCloser, error)
}

// Options describe what to download and where to put it.
type Options struct {
	URL     string
	VideoID string
	AudioID string
	// Name is the output base name; the clip id is used when empty.
	Name     string
	Dir      string
	Combine  bool
	Parallel bool
}

// Dependencies are the collaborators of a Session. Logger, Recorder,
// Progress and Combiner are optional.
type Dependencies struct {
	Client   Client
	Combiner combine.Combiner
	Recorder assemble.Recorder
	Progress assemble.ProgressFunc
	Logger   logger.Logger
}

// Report describes the outcome of Run. It is returned on failure too.
type Report struct {
	SessionID    string
	ClipID       string
	VideoPath    string
	AudioPath    string
	CombinedPath string
	Video        *assemble.Result
	Audio        *assemble.Result
	State        State
	// Hint is set when retrying with RetryURL may help.
	Hint string
}

// Session is a single download. It is not reusable.
type Session struct {
	ID string

	opts      Options
	client    Client
	combiner  combine.Combiner
	assembler *assemble.Assembler
	progress  assemble.ProgressFunc
	logger    logger.Logger

	mutex sync.Mutex
	state State
}

// NewSession creates a Session in the Idle state.
func NewSession(opts Options, deps Dependencies) *Session {
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}
	combiner := deps.Combiner
	if combiner == nil {
		combiner = combine.NewFFmpeg("", log)
	}

	id := uuid.NewString()
	if v7, err := uuid.NewV7(); err == nil {
		id = v7.String()
	}

	return &Session{
		ID:        id,
		opts:      opts,
		client:    deps.Client,
		combiner:  combiner,
		assembler: assemble.New(deps.Client, log, deps.Recorder),
		progress:  deps.Progress,
		logger:    log,
		state:     Idle,
	}
}

// State returns the current state.
func (s *Session) State() State {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mutex.Lock()
	s.state = st
	s.mutex.Unlock()
	s.logger.Debugf("[%s] state -> %s", s.ID, st)
}

// Run fetches the manifest, assembles video and audio, and optionally
// combines them. Files written before a failure are left on disk.
func (s *Session) Run(ctx context.Context) (*Report, error) {
	rep := &Report{SessionID: s.ID}

	m, err := s.loadManifest(ctx)
	if err != nil {
		rep.Hint = RetryURL(s.opts.URL)
		return s.fail(rep, err)
	}
	s.setState(ManifestFetched)
	rep.ClipID = m.ClipID

	name := s.opts.Name
	if name == "" {
		name = m.ClipID
	}
	videoPath, audioPath, combinedPath := OutputPaths(s.opts.Dir, name)

	video, err := s.selectVideo(m)
	if err != nil {
		return s.fail(rep, err)
	}
	audio, err := s.selectAudio(m)
	if err != nil {
		return s.fail(rep, err)
	}

	if s.opts.Dir != "" {
		if err := os.MkdirAll(s.opts.Dir, 0755); err != nil {
			return s.fail(rep, fmt.Errorf("failed to create output directory: %w", err))
		}
	}

	rep.VideoPath = videoPath
	if audio != nil {
		rep.AudioPath = audioPath
	}

	if s.opts.Parallel && audio != nil {
		if err := s.assembleBoth(ctx, rep, video, audio); err != nil {
			return s.fail(rep, err)
		}
		s.setState(VideoAssembled)
		s.setState(AudioAssembled)
	} else {
		rep.Video, err = s.assembleTo(ctx, video, videoPath)
		if err != nil {
			rep.Hint = RetryURL(s.opts.URL)
			return s.fail(rep, err)
		}
		s.setState(VideoAssembled)

		if audio == nil {
			s.setState(AudioSkipped)
		} else {
			rep.Audio, err = s.assembleTo(ctx, audio, audioPath)
			if err != nil {
				return s.fail(rep, err)
			}
			s.setState(AudioAssembled)
		}
	}

	if !s.opts.Combine || audio == nil {
		if s.opts.Combine {
			s.logger.Warnf("[%s] Clip has no audio, skipping combine", s.ID)
		}
		s.setState(Done)
		rep.State = Done
		return rep, nil
	}

	s.logger.Infof("[%s] Combining %s and %s into %s", s.ID, videoPath, audioPath, combinedPath)
	if err := os.Remove(combinedPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return s.fail(rep, fmt.Errorf("failed to remove existing output: %w", err))
	}
	if err := s.combiner.Combine(ctx, videoPath, audioPath, combinedPath); err != nil {
		s.logger.Warnf("[%s] Keeping %s and %s for manual recovery", s.ID, videoPath, audioPath)
		return s.fail(rep, err)
	}
	rep.CombinedPath = combinedPath

	for _, p := range []string{videoPath, audioPath} {
		if err := os.Remove(p); err != nil {
			return s.fail(rep, fmt.Errorf("failed to remove intermediate file: %w", err))
		}
	}
	rep.VideoPath, rep.AudioPath = "", ""

	s.setState(Combined)
	rep.State = Combined
	return rep, nil
}

func (s *Session) fail(rep *Report, err error) (*Report, error) {
	s.setState(Failed)
	rep.State = Failed
	return rep, err
}

func (s *Session) loadManifest(ctx context.Context) (*manifest.Manifest, error) {
	s.logger.Infof("[%s] Fetching manifest %s", s.ID, s.opts.URL)
	body, err := s.client.FetchManifest(ctx, s.opts.URL)
	if err != nil {
		return nil, &ManifestFetchError{URL: s.opts.URL, Hint: RetryURL(s.opts.URL), Err: err}
	}

	m, err := manifest.Parse(body, s.opts.URL)
	if err != nil {
		return nil, &ManifestFetchError{URL: s.opts.URL, Hint: RetryURL(s.opts.URL), Err: err}
	}
	s.logger.Infof("[%s] Clip %s: %d video and %d audio renditions", s.ID, m.ClipID, len(m.Video), len(m.Audio))
	return m, nil
}

func (s *Session) selectVideo(m *manifest.Manifest) (*manifest.Rendition, error) {
	if len(m.Video) == 0 {
		return nil, ErrNoVideo
	}
	if s.opts.VideoID != "" {
		return m.FindByID(models.Video, s.opts.VideoID)
	}
	r, _ := m.FindMaxBitrate(models.Video)
	return r, nil
}

// selectAudio returns nil when the clip has no audio.
func (s *Session) selectAudio(m *manifest.Manifest) (*manifest.Rendition, error) {
	if len(m.Audio) == 0 {
		if s.opts.AudioID != "" {
			s.logger.Warnf("[%s] Ignoring audio id %s: clip has no audio", s.ID, s.opts.AudioID)
		}
		return nil, nil
	}
	if s.opts.AudioID != "" {
		return m.FindByID(models.Audio, s.opts.AudioID)
	}
	r, _ := m.FindMaxBitrate(models.Audio)
	return r, nil
}

// assembleTo creates path, truncating any existing file, and assembles r into it.
func (s *Session) assembleTo(ctx context.Context, r *manifest.Rendition, path string) (*assemble.Result, error) {
	s.logger.Infof("[%s] Downloading %s %s (%d segments) to %s", s.ID, r.Kind, r.ID, len(r.Segments), path)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s file: %w", r.Kind, err)
	}

	res, err := s.assembler.Assemble(ctx, r, f, s.progress)
	if err != nil {
		s.logger.Errorf("[%s] %s download failed after %d of %d segments: %v", s.ID, r.Kind, res.Segments, len(r.Segments), err)
		return res, err
	}
	s.logger.Infof("[%s] Finished %s: %d segments, %d bytes", s.ID, r.Kind, res.Segments, res.Bytes)
	return res, nil
}

// assembleBoth runs the two pipelines concurrently. The first failure cancels
// the other pipeline. A video failure takes precedence unless it was only
// caused by that cancellation.
func (s *Session) assembleBoth(ctx context.Context, rep *Report, video, audio *manifest.Rendition) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var videoErr, audioErr error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		rep.Video, videoErr = s.assembleTo(ctx, video, rep.VideoPath)
		if videoErr != nil {
			cancel(videoErr)
		}
	}()
	go func() {
		defer wg.Done()
		rep.Audio, audioErr = s.assembleTo(ctx, audio, rep.AudioPath)
		if audioErr != nil {
			cancel(audioErr)
		}
	}()
	wg.Wait()

	switch {
	case videoErr != nil && !(errors.Is(videoErr, context.Canceled) && audioErr != nil):
		rep.Hint = RetryURL(s.opts.URL)
		return videoErr
	case audioErr != nil:
		return audioErr
	default:
		if videoErr != nil {
			rep.Hint = RetryURL(s.opts.URL)
		}
		return videoErr
	}
}

// OutputPaths returns the video, audio and combined file paths for name in dir.
func OutputPaths(dir, name string) (video, audio, combined string) {
	return filepath.Join(dir, name+"-video.m4v"),
		filepath.Join(dir, name+"-audio.m4a"),
		filepath.Join(dir, name+".mp4")
}
