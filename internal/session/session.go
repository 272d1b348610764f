// Package session owns the interactive state of a voice-generation session:
// request validation, dispatch to the synthesis engine, the in-memory
// generation history, batch processing, and named presets.
//
// A single mutex serializes generation and guards all session state, so the
// session processes one user-triggered action at a time regardless of how
// many HTTP requests arrive concurrently.
package session

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/book-expert/logger"
	"github.com/google/uuid"
	"github.com/up-zero/gotool/mediautil"

	"github.com/book-expert/kokoro-studio/internal/core"
	"github.com/book-expert/kokoro-studio/internal/voices"
)

// WAV container parameters for exported audio.
const (
	wavChannels      = 1
	wavBitsPerSample = 16
)

// wordsPerMinute is the rough speaking rate used for duration estimates
// before generation.
const wordsPerMinute = 150.0

// Validation and lookup errors. Validation errors are surfaced to the user
// inline; the request never reaches the engine.
var (
	ErrEmptyText       = errors.New("text cannot be empty")
	ErrSpeedOutOfRange = errors.New("speed out of range")
	ErrEntryNotFound   = errors.New("history entry not found")
	ErrArchiveNotFound = errors.New("batch archive not found")
	ErrPresetNotFound  = errors.New("preset not found")
	ErrEmptyPresetName = errors.New("preset name cannot be empty")
	ErrSynthesisFailed = errors.New("synthesis failed")
)

// IsValidationError reports whether err was raised by request validation
// rather than by the engine.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrEmptyText) ||
		errors.Is(err, ErrSpeedOutOfRange) ||
		errors.Is(err, voices.ErrUnknownVoice) ||
		errors.Is(err, voices.ErrLanguageMismatch)
}

// Entry is one completed generation: the audio, its parameters, and how it
// came to be. Entries live in memory for the lifetime of the session only.
type Entry struct {
	ID         string                 `json:"id"`
	Seq        int                    `json:"seq"`
	CreatedAt  time.Time              `json:"created_at"`
	Request    core.GenerationRequest `json:"request"`
	WAV        []byte                 `json:"-"`
	SampleRate int                    `json:"sample_rate"`
	Duration   float64                `json:"duration_seconds"`
}

// Preset is a named snapshot of the voice settings.
type Preset struct {
	Language string  `json:"language"`
	Voice    string  `json:"voice"`
	Speed    float64 `json:"speed"`
}

// LineFailure reports one failed line of a batch run.
type LineFailure struct {
	Line  int    `json:"line"`
	Input string `json:"input"`
	Error string `json:"error"`
}

// BatchResult summarizes a best-effort batch run: how many lines produced
// audio, which failed and why, and the archive holding the successes.
type BatchResult struct {
	Generated int           `json:"generated"`
	Failures  []LineFailure `json:"failures"`
	ArchiveID string        `json:"archive_id,omitempty"`
}

// TextStats are the pre-generation statistics the UI shows under the input.
type TextStats struct {
	Characters       int     `json:"characters"`
	Words            int     `json:"words"`
	EstimatedSeconds float64 `json:"estimated_seconds"`
}

// Options carry the configured request bounds into the session.
type Options struct {
	MinSpeed float64
	MaxSpeed float64
	// SynthesisTimeout caps one engine call. Zero means no cap.
	SynthesisTimeout time.Duration
}

// Session holds all mutable state of one running studio instance.
type Session struct {
	engine core.SynthesisEngine
	log    *logger.Logger
	opts   Options

	mu       sync.Mutex
	seq      int
	history  []Entry
	archives map[string][]byte
	presets  map[string]Preset
}

// New creates a session around the given engine. Speed bounds come from the
// configuration and gate every request.
func New(engine core.SynthesisEngine, log *logger.Logger, opts Options) *Session {
	return &Session{
		engine:   engine,
		log:      log,
		opts:     opts,
		mu:       sync.Mutex{},
		seq:      0,
		history:  nil,
		archives: make(map[string][]byte),
		presets:  make(map[string]Preset),
	}
}

// SpeedBounds returns the accepted speed range.
func (s *Session) SpeedBounds() (float64, float64) {
	return s.opts.MinSpeed, s.opts.MaxSpeed
}

// Generate validates the request, synthesizes it, and appends the result to
// the history. Failures leave the history untouched.
func (s *Session) Generate(ctx context.Context, req core.GenerationRequest) (Entry, error) {
	err := s.validate(req)
	if err != nil {
		return Entry{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.synthesizeLocked(ctx, req)
	if err != nil {
		return Entry{}, err
	}

	s.seq++
	entry.Seq = s.seq
	s.history = append([]Entry{entry}, s.history...)

	s.log.Info("Generated %.2fs of audio with voice %s", entry.Duration, req.Voice)

	return entry, nil
}

// GenerateBatch runs the single-item contract once per input line. A failing
// line is reported and does not abort the remaining lines; all successes are
// zipped into one archive for combined download.
func (s *Session) GenerateBatch(
	ctx context.Context,
	lines []string,
	voice, language string,
	speed float64,
) (BatchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var archiveBuf bytes.Buffer

	archive := zip.NewWriter(&archiveBuf)
	result := BatchResult{Generated: 0, Failures: nil, ArchiveID: ""}

	for lineIndex, line := range lines {
		lineNumber := lineIndex + 1

		req := core.GenerationRequest{
			Text:     line,
			Voice:    voice,
			Language: language,
			Speed:    speed,
		}

		entry, err := s.processBatchLine(ctx, req)
		if err != nil {
			result.Failures = append(result.Failures, LineFailure{
				Line:  lineNumber,
				Input: line,
				Error: err.Error(),
			})

			s.log.Warn("Batch line %d failed: %v", lineNumber, err)

			continue
		}

		writeErr := addArchiveEntry(archive, batchFileName(lineNumber, voice), entry.WAV)
		if writeErr != nil {
			return result, writeErr
		}

		result.Generated++
	}

	closeErr := archive.Close()
	if closeErr != nil {
		return result, fmt.Errorf("failed to finalize batch archive: %w", closeErr)
	}

	if result.Generated > 0 {
		result.ArchiveID = uuid.NewString()
		s.archives[result.ArchiveID] = archiveBuf.Bytes()
	}

	s.log.Info("Batch finished: %d generated, %d failed", result.Generated, len(result.Failures))

	return result, nil
}

// History returns the generation history, newest first.
func (s *Session) History() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	listing := make([]Entry, len(s.history))
	copy(listing, s.history)

	return listing
}

// Entry fetches one history entry by id, audio included.
func (s *Session) Entry(id string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range s.history {
		if entry.ID == id {
			return entry, nil
		}
	}

	return Entry{}, fmt.Errorf("%w: %s", ErrEntryNotFound, id)
}

// ClearHistory discards all past generations and batch archives.
func (s *Session) ClearHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = nil
	s.archives = make(map[string][]byte)
}

// Archive fetches a batch archive by id.
func (s *Session) Archive(id string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, found := s.archives[id]
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrArchiveNotFound, id)
	}

	return data, nil
}

// SavePreset stores a named settings snapshot, replacing any existing preset
// with the same name.
func (s *Session) SavePreset(name string, preset Preset) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyPresetName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.presets[name] = preset

	return nil
}

// Preset fetches a preset by name.
func (s *Session) Preset(name string) (Preset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	preset, found := s.presets[name]
	if !found {
		return Preset{}, fmt.Errorf("%w: %s", ErrPresetNotFound, name)
	}

	return preset, nil
}

// Presets lists all saved presets by name.
func (s *Session) Presets() map[string]Preset {
	s.mu.Lock()
	defer s.mu.Unlock()

	listing := make(map[string]Preset, len(s.presets))
	for name, preset := range s.presets {
		listing[name] = preset
	}

	return listing
}

// DeletePreset removes a preset by name.
func (s *Session) DeletePreset(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, found := s.presets[name]
	if !found {
		return fmt.Errorf("%w: %s", ErrPresetNotFound, name)
	}

	delete(s.presets, name)

	return nil
}

// Stats estimates duration at a rough speaking rate so the UI can show
// feedback before generation.
func (s *Session) Stats(input string, speed float64) TextStats {
	words := len(strings.Fields(input))

	estimated := 0.0
	if words > 0 && speed > 0 {
		estimated = float64(words) / wordsPerMinute * 60.0 / speed
	}

	return TextStats{
		Characters:       len([]rune(input)),
		Words:            words,
		EstimatedSeconds: estimated,
	}
}

// validate enforces the request invariants. The engine is never invoked with
// an unvalidated request.
func (s *Session) validate(req core.GenerationRequest) error {
	if strings.TrimSpace(req.Text) == "" {
		return ErrEmptyText
	}

	if req.Speed < s.opts.MinSpeed || req.Speed > s.opts.MaxSpeed {
		return fmt.Errorf("%w: %.2f not in [%.2f, %.2f]",
			ErrSpeedOutOfRange, req.Speed, s.opts.MinSpeed, s.opts.MaxSpeed)
	}

	return voices.Validate(req.Voice, req.Language)
}

func (s *Session) processBatchLine(ctx context.Context, req core.GenerationRequest) (Entry, error) {
	err := s.validate(req)
	if err != nil {
		return Entry{}, err
	}

	return s.synthesizeLocked(ctx, req)
}

func (s *Session) synthesizeLocked(ctx context.Context, req core.GenerationRequest) (Entry, error) {
	if s.opts.SynthesisTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, s.opts.SynthesisTimeout)
		defer cancel()
	}

	samples, err := s.engine.Synthesize(ctx, req)
	if err != nil {
		return Entry{}, fmt.Errorf("%w for voice %s: %v", ErrSynthesisFailed, req.Voice, err)
	}

	sampleRate := s.engine.SampleRate()

	wav, err := mediautil.Float32ToWavBytes(samples, sampleRate, wavChannels, wavBitsPerSample)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to encode WAV: %w", err)
	}

	return Entry{
		ID:         uuid.NewString(),
		Seq:        0,
		CreatedAt:  time.Now(),
		Request:    req,
		WAV:        wav,
		SampleRate: sampleRate,
		Duration:   float64(len(samples)) / float64(sampleRate),
	}, nil
}

func batchFileName(lineNumber int, voice string) string {
	return fmt.Sprintf("batch_%03d_%s.wav", lineNumber, voice)
}

func addArchiveEntry(archive *zip.Writer, name string, wav []byte) error {
	entry, err := archive.Create(name)
	if err != nil {
		return fmt.Errorf("failed to create archive entry %s: %w", name, err)
	}

	_, err = entry.Write(wav)
	if err != nil {
		return fmt.Errorf("failed to write archive entry %s: %w", name, err)
	}

	return nil
}
