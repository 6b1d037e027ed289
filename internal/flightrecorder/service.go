// Package flightrecorder keeps a rolling execution trace and writes it to disk when an engine command
// such as an impact backfill runs slower than expected.
package flightrecorder

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"runtime/trace"
	"sync/atomic"
	"time"

	"github.com/myrjola/liftscore/internal/errors"
)

const (
	defaultMinAge    = time.Minute
	defaultMaxBytes  = 16 * 1024 * 1024
	defaultThreshold = 10 * time.Second

	// cooldownDuration is the minimum time between trace captures.
	cooldownDuration = 30 * time.Minute
)

// Service manages flight recording of slow commands.
type Service struct {
	logger          *slog.Logger
	flightRecorder  *trace.FlightRecorder
	tracesDirectory string
	threshold       time.Duration
	lastCapture     atomic.Int64 // Unix timestamp of last capture
}

// Config configures the flight recorder service. Zero durations and sizes use defaults.
type Config struct {
	Logger          *slog.Logger
	MinAge          time.Duration // Minimum age of trace events
	MaxBytes        uint64        // Maximum size of trace buffer
	Threshold       time.Duration // Commands running at least this long are captured
	TracesDirectory string        // Directory where trace files are written
}

// New creates a new flight recorder service.
func New(cfg Config) (*Service, error) {
	if cfg.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if cfg.TracesDirectory == "" {
		return nil, errors.New("traces directory is required")
	}

	if stat, err := os.Stat(cfg.TracesDirectory); err != nil {
		if err = os.MkdirAll(cfg.TracesDirectory, 0o700); err != nil {
			return nil, errors.Wrap(err, "create traces directory")
		}
	} else if !stat.IsDir() {
		return nil, errors.Wrap(errors.New("not a directory"), "check traces directory",
			slog.String("path", cfg.TracesDirectory))
	}

	threshold := cmp.Or(cfg.Threshold, defaultThreshold)
	flightRecorder := trace.NewFlightRecorder(trace.FlightRecorderConfig{
		MinAge:   cmp.Or(cfg.MinAge, defaultMinAge),
		MaxBytes: cmp.Or(cfg.MaxBytes, uint64(defaultMaxBytes)),
	})

	return &Service{
		logger:          cfg.Logger,
		flightRecorder:  flightRecorder,
		tracesDirectory: cfg.TracesDirectory,
		threshold:       threshold,
		lastCapture:     atomic.Int64{},
	}, nil
}

// Start begins flight recording.
func (s *Service) Start(ctx context.Context) error {
	if err := s.flightRecorder.Start(); err != nil {
		return errors.Wrap(err, "start flight recorder")
	}
	s.logger.LogAttrs(ctx, slog.LevelDebug, "flight recorder started",
		slog.Duration("threshold", s.threshold),
		slog.String("traces_directory", s.tracesDirectory))
	return nil
}

// Stop ends flight recording.
func (s *Service) Stop(ctx context.Context) {
	s.flightRecorder.Stop()
	s.logger.LogAttrs(ctx, slog.LevelDebug, "flight recorder stopped")
}

// Observe captures a trace when command took at least the configured threshold. It reports whether a
// trace file was written.
func (s *Service) Observe(ctx context.Context, command string, elapsed time.Duration) bool {
	if elapsed < s.threshold {
		return false
	}
	s.logger.LogAttrs(ctx, slog.LevelWarn, "slow command",
		slog.String("command", command),
		slog.Duration("elapsed", elapsed))
	return s.CaptureTrace(ctx, command)
}

//nolint:gochecknoglobals // compiled once
var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// CaptureTrace writes the recorded trace of command to the traces directory. Captures within the
// cooldown period of the previous one are skipped.
func (s *Service) CaptureTrace(ctx context.Context, command string) bool {
	now := time.Now().Unix()
	lastCapture := s.lastCapture.Load()

	if lastCapture > 0 && time.Duration(now-lastCapture)*time.Second < cooldownDuration {
		s.logger.LogAttrs(ctx, slog.LevelDebug, "skipping trace capture due to cooldown",
			slog.Time("last_capture", time.Unix(lastCapture, 0)))
		return false
	}
	if !s.lastCapture.CompareAndSwap(lastCapture, now) {
		return false
	}

	timestamp := time.Unix(now, 0).UTC().Format("20060102-150405")
	filename := fmt.Sprintf("slow-%s-%s.trace", unsafeFileChars.ReplaceAllString(command, "_"), timestamp)
	fPath := filepath.Join(s.tracesDirectory, filename)

	if err := s.writeTrace(fPath); err != nil {
		s.logger.LogAttrs(ctx, slog.LevelError, "failed to capture trace",
			slog.String("file", fPath), errors.SlogError(err))
		return false
	}
	s.logger.LogAttrs(ctx, slog.LevelWarn, "captured slow command trace",
		slog.String("command", command),
		slog.String("file", fPath))
	return true
}

func (s *Service) writeTrace(fPath string) (err error) {
	file, err := os.Create(fPath)
	if err != nil {
		return errors.Wrap(err, "create trace file")
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			err = errors.Join(err, errors.Wrap(closeErr, "close trace file"))
		}
	}()
	if _, err = s.flightRecorder.WriteTo(file); err != nil {
		return errors.Wrap(err, "write trace")
	}
	return nil
}
