// Package core defines the shared types and interfaces for Kokoro Studio.
package core

import "context"

// GenerationRequest describes a single synthesis request as the user shaped
// it in the session: the text to speak, the Kokoro voice identifier, the
// language code the voice belongs to, and the speed multiplier.
type GenerationRequest struct {
	Text     string  `json:"text"`
	Voice    string  `json:"voice"`
	Language string  `json:"language"`
	Speed    float64 `json:"speed"`
}

// SynthesisEngine converts a validated request into raw audio samples.
// Implementations own the model and treat it as opaque: text and conditioning
// go in, a mono waveform comes out.
type SynthesisEngine interface {
	Synthesize(ctx context.Context, req GenerationRequest) ([]float32, error)
	SampleRate() int
	Close() error
}
