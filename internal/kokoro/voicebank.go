package kokoro

import (
	"archive/zip"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Static errors.
var (
	ErrVoiceNotInBank   = errors.New("voice not present in style bank")
	ErrBadStyleShape    = errors.New("unexpected style tensor shape")
	ErrBadArrayHeader   = errors.New("malformed array header")
	ErrUnsupportedDtype = errors.New("unsupported array dtype")
)

// StyleBank holds the per-voice conditioning tensors from the voices file.
// Each voice maps to a flattened [maxTokens][styleDim]float32 matrix; the row
// matching the request's token count is fed to the model as its style input.
type StyleBank struct {
	styles map[string][]float32
}

// LoadStyleBank parses the voices file, a zip archive of one little-endian
// float32 array per voice with shape [510, 1, 256].
func LoadStyleBank(path string) (*StyleBank, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open voices file %s: %w", path, err)
	}
	defer archive.Close()

	styles := make(map[string][]float32, len(archive.File))

	for _, entry := range archive.File {
		voice := strings.TrimSuffix(entry.Name, ".npy")

		reader, openErr := entry.Open()
		if openErr != nil {
			return nil, fmt.Errorf("failed to open style entry %s: %w", entry.Name, openErr)
		}

		matrix, parseErr := parseArray(reader)

		closeErr := reader.Close()

		if parseErr != nil {
			return nil, fmt.Errorf("failed to parse style entry %s: %w", entry.Name, parseErr)
		}

		if closeErr != nil {
			return nil, fmt.Errorf("failed to close style entry %s: %w", entry.Name, closeErr)
		}

		if len(matrix) != maxTokens*styleDim {
			return nil, fmt.Errorf("%w: voice %s has %d values", ErrBadStyleShape, voice, len(matrix))
		}

		styles[voice] = matrix
	}

	return &StyleBank{styles: styles}, nil
}

// Voices lists every voice the bank carries.
func (b *StyleBank) Voices() []string {
	names := make([]string, 0, len(b.styles))
	for voice := range b.styles {
		names = append(names, voice)
	}

	return names
}

// StyleFor returns the 256-wide style vector for a voice, selected by the
// token count of the request as the model was trained.
func (b *StyleBank) StyleFor(voice string, tokenCount int) ([]float32, error) {
	matrix, found := b.styles[voice]
	if !found {
		return nil, fmt.Errorf("%w: %q", ErrVoiceNotInBank, voice)
	}

	row := tokenCount
	if row >= maxTokens {
		row = maxTokens - 1
	}

	vector := make([]float32, styleDim)
	copy(vector, matrix[row*styleDim:(row+1)*styleDim])

	return vector, nil
}

// Array header constants for the NumPy container the voices file uses.
const (
	arrayMagic        = "\x93NUMPY"
	arrayVersionBytes = 2
	arrayHeaderLen    = 2
)

var arrayShapePattern = regexp.MustCompile(`'shape':\s*\(([^)]*)\)`)

// parseArray reads one .npy payload: magic, version, header dict, then raw
// little-endian float32 data.
func parseArray(reader io.Reader) ([]float32, error) {
	header, err := readArrayHeader(reader)
	if err != nil {
		return nil, err
	}

	if !strings.Contains(header, "'<f4'") {
		return nil, fmt.Errorf("%w: want little-endian float32, header %s", ErrUnsupportedDtype, header)
	}

	count, err := elementCount(header)
	if err != nil {
		return nil, err
	}

	raw := make([]byte, count*4)

	_, err = io.ReadFull(reader, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to read array data: %w", err)
	}

	values := make([]float32, count)
	for i := range values {
		values[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}

	return values, nil
}

func readArrayHeader(reader io.Reader) (string, error) {
	prelude := make([]byte, len(arrayMagic)+arrayVersionBytes+arrayHeaderLen)

	_, err := io.ReadFull(reader, prelude)
	if err != nil {
		return "", fmt.Errorf("failed to read array prelude: %w", err)
	}

	if string(prelude[:len(arrayMagic)]) != arrayMagic {
		return "", fmt.Errorf("%w: bad magic", ErrBadArrayHeader)
	}

	headerLen := int(binary.LittleEndian.Uint16(prelude[len(arrayMagic)+arrayVersionBytes:]))

	header := make([]byte, headerLen)

	_, err = io.ReadFull(reader, header)
	if err != nil {
		return "", fmt.Errorf("failed to read array header: %w", err)
	}

	return string(header), nil
}

func elementCount(header string) (int, error) {
	match := arrayShapePattern.FindStringSubmatch(header)
	if match == nil {
		return 0, fmt.Errorf("%w: no shape in %s", ErrBadArrayHeader, header)
	}

	count := 1

	for _, field := range strings.Split(match[1], ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}

		dim, err := strconv.Atoi(field)
		if err != nil {
			return 0, fmt.Errorf("%w: bad dimension %q", ErrBadArrayHeader, field)
		}

		count *= dim
	}

	return count, nil
}
