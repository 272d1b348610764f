package kokoro

// Config locates the model assets and the ONNX Runtime shared library.
type Config struct {
	OnnxRuntimeLibPath string
	ModelPath          string
	VoicesPath         string
}

// Model facts for Kokoro-82M v1.0.
const (
	// SampleRate is the fixed output rate of the model.
	SampleRate = 24000

	// styleDim is the width of one voice style vector.
	styleDim = 256

	// maxTokens is the usable context length; the model accepts 512 ids
	// including the zero pads at both ends.
	maxTokens = 510
)

// ONNX graph input and output names.
const (
	inputTokens   = "input_ids"
	inputStyle    = "style"
	inputSpeed    = "speed"
	outputWavform = "waveform"
)
