// Package kokoro implements the synthesis engine over the Kokoro-82M ONNX
// model. The model is opaque: the engine normalizes and tokenizes the text,
// marshals the conditioning tensors, and returns the waveform the model
// produces.
package kokoro

import (
	"context"
	"errors"
	"fmt"

	speech "github.com/getcharzp/go-speech"
	ort "github.com/getcharzp/onnxruntime_purego"
	"github.com/up-zero/gotool/convertutil"

	"github.com/book-expert/kokoro-studio/internal/core"
	"github.com/book-expert/kokoro-studio/internal/text"
)

// ErrNoSpeakableText is returned when normalization and tokenization leave
// nothing the model can voice.
var ErrNoSpeakableText = errors.New("no speakable symbols in text")

// Engine runs Kokoro inference through an ONNX Runtime session.
type Engine struct {
	session    *ort.Session
	styles     *StyleBank
	normalizer *text.Normalizer
}

// New loads the voice style bank and creates the ONNX session.
func New(cfg Config) (*Engine, error) {
	onnxConfig := new(speech.OnnxConfig)
	_ = convertutil.CopyProperties(cfg, onnxConfig)

	err := onnxConfig.New()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
	}

	styles, err := LoadStyleBank(cfg.VoicesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load voice styles: %w", err)
	}

	session, err := onnxConfig.OnnxEngine.NewSession(cfg.ModelPath, onnxConfig.SessionOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to create model session: %w", err)
	}

	return &Engine{
		session:    session,
		styles:     styles,
		normalizer: text.NewNormalizer(),
	}, nil
}

// Synthesize converts a validated request into 24 kHz mono samples.
func (e *Engine) Synthesize(ctx context.Context, req core.GenerationRequest) ([]float32, error) {
	err := ctx.Err()
	if err != nil {
		return nil, fmt.Errorf("synthesis aborted: %w", err)
	}

	normalized := e.normalizer.Normalize(req.Text)

	ids := tokenize(normalized)
	if len(ids) == 0 {
		return nil, ErrNoSpeakableText
	}

	style, err := e.styles.StyleFor(req.Voice, len(ids))
	if err != nil {
		return nil, err
	}

	return e.runInference(padTokens(ids), style, float32(req.Speed))
}

// SampleRate returns the model's fixed output rate.
func (e *Engine) SampleRate() int {
	return SampleRate
}

// Close releases the ONNX session.
func (e *Engine) Close() error {
	if e.session != nil {
		e.session.Destroy()
	}

	return nil
}

func (e *Engine) runInference(ids []int64, style []float32, speed float32) ([]float32, error) {
	tokensTensor, err := ort.NewTensor([]int64{1, int64(len(ids))}, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s tensor: %w", inputTokens, err)
	}
	defer tokensTensor.Destroy()

	styleTensor, err := ort.NewTensor([]int64{1, styleDim}, style)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s tensor: %w", inputStyle, err)
	}
	defer styleTensor.Destroy()

	speedTensor, err := ort.NewTensor([]int64{1}, []float32{speed})
	if err != nil {
		return nil, fmt.Errorf("failed to build %s tensor: %w", inputSpeed, err)
	}
	defer speedTensor.Destroy()

	inputs := map[string]*ort.Value{
		inputTokens: tokensTensor,
		inputStyle:  styleTensor,
		inputSpeed:  speedTensor,
	}

	outputs, err := e.session.Run(inputs)
	if err != nil {
		return nil, fmt.Errorf("model inference failed: %w", err)
	}

	defer func() {
		for _, value := range outputs {
			if value != nil {
				value.Destroy()
			}
		}
	}()

	raw, err := ort.GetTensorData[float32](outputs[outputWavform])
	if err != nil {
		return nil, fmt.Errorf("failed to read %s output: %w", outputWavform, err)
	}

	samples := make([]float32, len(raw))
	copy(samples, raw)

	return samples, nil
}
