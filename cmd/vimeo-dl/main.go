package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"
	"vimeodl/internal/combine"
	"vimeodl/internal/config"
	"vimeodl/internal/download"
	"vimeodl/internal/fetch"
	"vimeodl/internal/logger"
	"vimeodl/internal/metrics"
	"vimeodl/internal/progress"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// errDownloadFailed marks errors that runE has already printed.
var errDownloadFailed = errors.New("download failed")

type cliOptions struct {
	input       string
	videoID     string
	audioID     string
	output      string
	dir         string
	combine     bool
	parallel    bool
	userAgent   string
	headers     string
	ffmpegPath  string
	retries     int
	timeout     time.Duration
	metricsFile string
	quiet       bool
	logLevel    string
	logFormat   string
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	cmd := &cobra.Command{
		Use:           "vimeo-dl -i <master.json URL>",
		Short:         "Download a Vimeo clip from its master.json manifest",
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.input, "input", "i", "", "URL of the master.json manifest")
	flags.StringVar(&opts.videoID, "video-id", "", "Video rendition id (default: highest bitrate)")
	flags.StringVar(&opts.audioID, "audio-id", "", "Audio rendition id (default: highest bitrate)")
	flags.StringVarP(&opts.output, "output", "o", "", "Output base name (default: clip id)")
	flags.StringVar(&opts.dir, "dir", "", "Directory for output files")
	flags.BoolVar(&opts.combine, "combine", false, "Combine video and audio with ffmpeg")
	flags.BoolVar(&opts.parallel, "parallel", false, "Download video and audio concurrently")
	flags.StringVar(&opts.userAgent, "user-agent", "", "User-Agent header sent with every request")
	flags.StringVar(&opts.headers, "headers", "", "Path to JSON file containing request headers")
	flags.StringVar(&opts.ffmpegPath, "ffmpeg", "", "Path to ffmpeg executable")
	flags.IntVar(&opts.retries, "retries", fetch.DefaultRetries, "Retries per request on transient failures")
	flags.DurationVar(&opts.timeout, "timeout", fetch.DefaultTimeout, "Timeout per request")
	flags.StringVar(&opts.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file when done")
	flags.BoolVar(&opts.quiet, "quiet", false, "Disable progress bars")
	flags.StringVarP(&opts.logLevel, "log-level", "v", config.DefaultLogLevel, "Log level (error, warn, info, debug)")
	flags.StringVar(&opts.logFormat, "log-format", config.DefaultLogFormat, "Log format (text, json)")
	cmd.MarkFlagRequired("input")

	return cmd
}

// loadConfig merges .env, environment and explicitly set flags, in that order.
func loadConfig(cmd *cobra.Command, opts *cliOptions) (*config.Config, error) {
	if err := config.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	cfg := config.FromEnv(version)

	flags := cmd.Flags()
	if flags.Changed("user-agent") {
		cfg.UserAgent = opts.userAgent
	}
	if flags.Changed("headers") {
		cfg.HeadersFile = opts.headers
	}
	if flags.Changed("ffmpeg") {
		cfg.FFmpegPath = opts.ffmpegPath
	}
	if flags.Changed("retries") {
		cfg.Retries = opts.retries
	}
	if flags.Changed("timeout") {
		cfg.Timeout = opts.timeout
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = opts.logFormat
	}
	return cfg, nil
}

func run(cmd *cobra.Command, opts *cliOptions) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	log := logger.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	log.Debugf("vimeo-dl %s, user agent %q", version, cfg.UserAgent)

	headers, err := config.LoadHeaders(cfg.HeadersFile)
	if err != nil {
		return err
	}

	client := fetch.NewClient(log,
		fetch.WithUserAgent(cfg.UserAgent),
		fetch.WithHeaders(headers),
		fetch.WithTimeout(cfg.Timeout),
		fetch.WithRetries(cfg.Retries, cfg.RetryDelay),
	)
	rec := metrics.New()

	deps := download.Dependencies{
		Client:   client,
		Combiner: combine.NewFFmpeg(cfg.FFmpegPath, log),
		Recorder: rec,
		Logger:   log,
	}
	var bars *progress.Bars
	if !opts.quiet {
		bars = progress.New(cmd.ErrOrStderr())
		deps.Progress = bars.Func()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session := download.NewSession(download.Options{
		URL:      opts.input,
		VideoID:  opts.videoID,
		AudioID:  opts.audioID,
		Name:     opts.output,
		Dir:      opts.dir,
		Combine:  opts.combine,
		Parallel: opts.parallel,
	}, deps)

	rep, runErr := session.Run(ctx)
	if bars != nil {
		bars.Finish()
	}

	if opts.metricsFile != "" {
		if err := rec.WriteTextfile(opts.metricsFile); err != nil {
			log.Warnf("Failed to write metrics: %v", err)
		}
	}

	out := cmd.OutOrStdout()
	if runErr != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", runErr)
		if rep.Hint != "" {
			fmt.Fprintf(out, "\nTry this url: %s\n", rep.Hint)
		}
		return fmt.Errorf("%w: %w", errDownloadFailed, runErr)
	}

	printSummary(cmd, rep)
	return nil
}

func printSummary(cmd *cobra.Command, rep *download.Report) {
	out := cmd.OutOrStdout()
	if rep.CombinedPath != "" {
		fmt.Fprintf(out, "\nCombined into %s\n", rep.CombinedPath)
	} else {
		if rep.Video != nil {
			fmt.Fprintf(out, "\nVideo: %s (%s)\n", rep.VideoPath, humanize.Bytes(uint64(rep.Video.Bytes)))
		}
		if rep.Audio != nil {
			fmt.Fprintf(out, "Audio: %s (%s)\n", rep.AudioPath, humanize.Bytes(uint64(rep.Audio.Bytes)))
		}
	}
	fmt.Fprintln(out, "Done!")
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errDownloadFailed) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
