// Package session_test tests the interactive session state.
package session_test

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/book-expert/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/kokoro-studio/internal/core"
	"github.com/book-expert/kokoro-studio/internal/session"
	"github.com/book-expert/kokoro-studio/internal/voices"
)

var errMockSynthesis = errors.New("mock synthesis error")

// mockEngine is a mock implementation of the core.SynthesisEngine interface.
type mockEngine struct {
	failNext  bool
	calls     int
	sampleLen int
}

func (m *mockEngine) Synthesize(_ context.Context, _ core.GenerationRequest) ([]float32, error) {
	m.calls++

	if m.failNext {
		return nil, errMockSynthesis
	}

	samples := make([]float32, m.sampleLen)
	for i := range samples {
		samples[i] = float32(i%100) / 100
	}

	return samples, nil
}

func (m *mockEngine) SampleRate() int { return 24000 }

func (m *mockEngine) Close() error { return nil }

func newTestSession(t *testing.T) (*session.Session, *mockEngine) {
	t.Helper()

	log, err := logger.New(t.TempDir(), "session-test.log")
	require.NoError(t, err)

	engine := &mockEngine{failNext: false, calls: 0, sampleLen: 24000}

	opts := session.Options{MinSpeed: 0.5, MaxSpeed: 2.0, SynthesisTimeout: 0}

	return session.New(engine, log, opts), engine
}

func validRequest(input string) core.GenerationRequest {
	return core.GenerationRequest{
		Text:     input,
		Voice:    "af_heart",
		Language: "en-us",
		Speed:    1.0,
	}
}

func TestGenerate_Success(t *testing.T) {
	t.Parallel()

	sess, _ := newTestSession(t)

	entry, err := sess.Generate(context.Background(), validRequest("Hello world"))
	require.NoError(t, err)

	assert.NotEmpty(t, entry.ID)
	assert.NotEmpty(t, entry.WAV)
	assert.Equal(t, 24000, entry.SampleRate)
	assert.Positive(t, entry.Duration)

	history := sess.History()
	require.Len(t, history, 1)
	assert.Equal(t, entry.ID, history[0].ID)
}

func TestGenerate_EmptyTextNeverDispatched(t *testing.T) {
	t.Parallel()

	sess, engine := newTestSession(t)

	_, err := sess.Generate(context.Background(), validRequest("   "))
	require.ErrorIs(t, err, session.ErrEmptyText)
	assert.True(t, session.IsValidationError(err))
	assert.Zero(t, engine.calls, "invalid requests must never reach the engine")
	assert.Empty(t, sess.History())
}

func TestGenerate_SpeedOutOfRange(t *testing.T) {
	t.Parallel()

	sess, engine := newTestSession(t)

	req := validRequest("Hello")
	req.Speed = 3.5

	_, err := sess.Generate(context.Background(), req)
	require.ErrorIs(t, err, session.ErrSpeedOutOfRange)
	assert.True(t, session.IsValidationError(err))
	assert.Zero(t, engine.calls)
}

func TestGenerate_UnknownVoice(t *testing.T) {
	t.Parallel()

	sess, engine := newTestSession(t)

	req := validRequest("Hello")
	req.Voice = "xx_nobody"

	_, err := sess.Generate(context.Background(), req)
	require.ErrorIs(t, err, voices.ErrUnknownVoice)
	assert.True(t, session.IsValidationError(err))
	assert.Zero(t, engine.calls)
}

func TestGenerate_EngineFailureLeavesHistoryUntouched(t *testing.T) {
	t.Parallel()

	sess, engine := newTestSession(t)

	first, err := sess.Generate(context.Background(), validRequest("Hello"))
	require.NoError(t, err)

	engine.failNext = true

	_, err = sess.Generate(context.Background(), validRequest("World"))
	require.ErrorIs(t, err, session.ErrSynthesisFailed)
	assert.False(t, session.IsValidationError(err))

	history := sess.History()
	require.Len(t, history, 1)
	assert.Equal(t, first.ID, history[0].ID)
}

func TestGenerate_HistoryNewestFirst(t *testing.T) {
	t.Parallel()

	sess, _ := newTestSession(t)

	_, err := sess.Generate(context.Background(), validRequest("First"))
	require.NoError(t, err)

	second, err := sess.Generate(context.Background(), validRequest("Second"))
	require.NoError(t, err)

	history := sess.History()
	require.Len(t, history, 2)
	assert.Equal(t, second.ID, history[0].ID)
	assert.Equal(t, 2, history[0].Seq)
	assert.Equal(t, 1, history[1].Seq)
}

func TestGenerateBatch_PartialFailure(t *testing.T) {
	t.Parallel()

	sess, _ := newTestSession(t)

	result, err := sess.GenerateBatch(
		context.Background(),
		[]string{"Hello", "", "World"},
		"af_heart", "en-us", 1.0,
	)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Generated)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, 2, result.Failures[0].Line)
	require.NotEmpty(t, result.ArchiveID)

	archive, err := sess.Archive(result.ArchiveID)
	require.NoError(t, err)

	reader, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	require.NoError(t, err)
	require.Len(t, reader.File, 2)
	assert.Equal(t, "batch_001_af_heart.wav", reader.File[0].Name)
	assert.Equal(t, "batch_003_af_heart.wav", reader.File[1].Name)

	// The session stays usable after a partial batch failure.
	_, err = sess.Generate(context.Background(), validRequest("Still alive"))
	require.NoError(t, err)
}

func TestGenerateBatch_AllLinesFailProducesNoArchive(t *testing.T) {
	t.Parallel()

	sess, _ := newTestSession(t)

	result, err := sess.GenerateBatch(
		context.Background(),
		[]string{"", "   "},
		"af_heart", "en-us", 1.0,
	)
	require.NoError(t, err)

	assert.Zero(t, result.Generated)
	assert.Len(t, result.Failures, 2)
	assert.Empty(t, result.ArchiveID)
}

func TestGenerateBatch_DoesNotTouchHistory(t *testing.T) {
	t.Parallel()

	sess, _ := newTestSession(t)

	_, err := sess.GenerateBatch(
		context.Background(),
		[]string{"Hello", "World"},
		"af_heart", "en-us", 1.0,
	)
	require.NoError(t, err)

	assert.Empty(t, sess.History())
}

func TestClearHistory(t *testing.T) {
	t.Parallel()

	sess, _ := newTestSession(t)

	_, err := sess.Generate(context.Background(), validRequest("Hello"))
	require.NoError(t, err)

	sess.ClearHistory()

	assert.Empty(t, sess.History())
}

func TestPresets(t *testing.T) {
	t.Parallel()

	sess, _ := newTestSession(t)

	preset := session.Preset{Language: "en-gb", Voice: "bf_emma", Speed: 1.2}

	require.NoError(t, sess.SavePreset("Narrator", preset))

	loaded, err := sess.Preset("Narrator")
	require.NoError(t, err)
	assert.Equal(t, preset, loaded)

	assert.Len(t, sess.Presets(), 1)

	require.NoError(t, sess.DeletePreset("Narrator"))

	_, err = sess.Preset("Narrator")
	require.ErrorIs(t, err, session.ErrPresetNotFound)

	err = sess.SavePreset("  ", preset)
	require.ErrorIs(t, err, session.ErrEmptyPresetName)
}

func TestStats(t *testing.T) {
	t.Parallel()

	sess, _ := newTestSession(t)

	stats := sess.Stats("Hello world", 1.0)
	assert.Equal(t, 11, stats.Characters)
	assert.Equal(t, 2, stats.Words)
	assert.InEpsilon(t, 0.8, stats.EstimatedSeconds, 0.001)

	faster := sess.Stats("Hello world", 2.0)
	assert.InEpsilon(t, 0.4, faster.EstimatedSeconds, 0.001)

	empty := sess.Stats("", 1.0)
	assert.Zero(t, empty.Words)
	assert.Zero(t, empty.EstimatedSeconds)
}
