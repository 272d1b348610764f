// Package provision ensures the model asset files required by the synthesis
// engine exist locally before the interactive session starts.
//
// Each asset is checked at its destination path first; only missing or
// corrupt files trigger a network transfer. Downloads go through a temporary
// file and are moved into place atomically, so a crash mid-download can never
// leave a half-written model file at the final path.
package provision

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/book-expert/logger"

	"github.com/book-expert/kokoro-studio/internal/config"
)

// Upstream release locations for the two Kokoro model files.
const (
	ModelAssetName  = "kokoro-model"
	VoicesAssetName = "kokoro-voices"

	ModelFileName  = "kokoro-v1.0.onnx"
	VoicesFileName = "voices-v1.0.bin"

	defaultModelURL  = "https://github.com/thewh1teagle/kokoro-onnx/releases/download/model-files-v1.0/kokoro-v1.0.onnx"
	defaultVoicesURL = "https://github.com/thewh1teagle/kokoro-onnx/releases/download/model-files-v1.0/voices-v1.0.bin"
)

const (
	partSuffix      = ".part"
	dirPermissions  = 0o750
	downloadTimeout = 30 * time.Minute

	bytesPerMegabyte  = 1024 * 1024
	progressLogStepMB = 64
)

// Static errors.
var (
	ErrAssetUnavailable = errors.New("asset unavailable")
	ErrChecksumMismatch = errors.New("checksum mismatch")
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")
	ErrNoAssets         = errors.New("no assets to provision")
)

// Outcome classifies how an asset was resolved during a provisioning run.
type Outcome string

const (
	OutcomeAlreadyPresent Outcome = "already-present"
	OutcomeDownloaded     Outcome = "downloaded"
	OutcomeFailed         Outcome = "failed"
)

// AssetSpec names a required static file, where it must live, and where it
// can be fetched from when absent. SHA256 is optional; when empty only a
// non-zero size guards the existing file.
type AssetSpec struct {
	Name     string
	Path     string
	URL      string
	SHA256   string
	MinBytes int64
}

// ProvisionResult records how one asset was resolved.
type ProvisionResult struct {
	Name    string
	Path    string
	Outcome Outcome
}

// Provisioner ensures assets exist locally, downloading with bounded retries
// when they do not.
type Provisioner struct {
	client     *http.Client
	log        *logger.Logger
	maxRetries int
	backoff    time.Duration
}

// New creates a provisioner with the retry budget from the configuration and
// a client sized for large model transfers.
func New(cfg *config.Config, log *logger.Logger) *Provisioner {
	client := &http.Client{Timeout: downloadTimeout}
	backoff := time.Duration(cfg.Provision.RetryBackoffSeconds) * time.Second

	return NewWithClient(client, log, cfg.Provision.MaxRetries, backoff)
}

// NewWithClient creates a provisioner with a custom HTTP client. This
// constructor is primarily for testing, allowing short timeouts and local
// test servers.
func NewWithClient(
	client *http.Client,
	log *logger.Logger,
	maxRetries int,
	backoff time.Duration,
) *Provisioner {
	return &Provisioner{
		client:     client,
		log:        log,
		maxRetries: maxRetries,
		backoff:    backoff,
	}
}

// Manifest builds the asset list for the two Kokoro model files under the
// configured model directory, honoring URL and checksum overrides.
func Manifest(cfg *config.Config) []AssetSpec {
	modelURL := cfg.Provision.ModelURL
	if modelURL == "" {
		modelURL = defaultModelURL
	}

	voicesURL := cfg.Provision.VoicesURL
	if voicesURL == "" {
		voicesURL = defaultVoicesURL
	}

	return []AssetSpec{
		{
			Name:     ModelAssetName,
			Path:     filepath.Join(cfg.Paths.ModelDir, ModelFileName),
			URL:      modelURL,
			SHA256:   cfg.Provision.ModelSHA256,
			MinBytes: 0,
		},
		{
			Name:     VoicesAssetName,
			Path:     filepath.Join(cfg.Paths.ModelDir, VoicesFileName),
			URL:      voicesURL,
			SHA256:   cfg.Provision.VoicesSHA256,
			MinBytes: 0,
		},
	}
}

// Ensure checks every asset in order and downloads the ones that are missing
// or corrupt. It returns one result per asset processed. The first asset that
// cannot be provisioned aborts the run with an error; the caller must not
// start the interactive session in that case.
func (p *Provisioner) Ensure(ctx context.Context, assets []AssetSpec) ([]ProvisionResult, error) {
	if len(assets) == 0 {
		return nil, ErrNoAssets
	}

	results := make([]ProvisionResult, 0, len(assets))

	for _, asset := range assets {
		result, err := p.ensureOne(ctx, asset)

		results = append(results, result)

		if err != nil {
			return results, err
		}
	}

	return results, nil
}

func (p *Provisioner) ensureOne(ctx context.Context, asset AssetSpec) (ProvisionResult, error) {
	present, err := p.verifyExisting(asset)
	if err != nil {
		return ProvisionResult{Name: asset.Name, Path: asset.Path, Outcome: OutcomeFailed},
			fmt.Errorf("failed to inspect existing file for asset %s: %w", asset.Name, err)
	}

	if present {
		p.log.Info("Found %s at %s", asset.Name, asset.Path)

		return ProvisionResult{Name: asset.Name, Path: asset.Path, Outcome: OutcomeAlreadyPresent}, nil
	}

	downloadErr := p.downloadWithRetries(ctx, asset)
	if downloadErr != nil {
		return ProvisionResult{Name: asset.Name, Path: asset.Path, Outcome: OutcomeFailed}, downloadErr
	}

	return ProvisionResult{Name: asset.Name, Path: asset.Path, Outcome: OutcomeDownloaded}, nil
}

// verifyExisting reports whether a valid copy of the asset already exists at
// its destination. A missing file is not an error; any other filesystem
// failure is.
func (p *Provisioner) verifyExisting(asset AssetSpec) (bool, error) {
	info, statErr := os.Stat(asset.Path)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return false, nil
		}

		return false, fmt.Errorf("failed to stat %s: %w", asset.Path, statErr)
	}

	if info.Size() == 0 || info.Size() < asset.MinBytes {
		p.log.Warn("Existing %s at %s is truncated (%d bytes), re-downloading", asset.Name, asset.Path, info.Size())

		return false, nil
	}

	if asset.SHA256 == "" {
		return true, nil
	}

	digest, err := fileSHA256(asset.Path)
	if err != nil {
		return false, err
	}

	if digest != asset.SHA256 {
		p.log.Warn("Existing %s at %s fails checksum verification, re-downloading", asset.Name, asset.Path)

		return false, nil
	}

	return true, nil
}

// downloadWithRetries performs the transfer with linear backoff between
// attempts. When the retry budget is exhausted it returns the fatal
// provisioning error naming the asset, its source, and the manual fallback.
func (p *Provisioner) downloadWithRetries(ctx context.Context, asset AssetSpec) error {
	mkdirErr := os.MkdirAll(filepath.Dir(asset.Path), dirPermissions)
	if mkdirErr != nil {
		return fmt.Errorf("failed to create model directory for %s: %w", asset.Name, mkdirErr)
	}

	var lastErr error

	for attempt := 1; attempt <= p.maxRetries; attempt++ {
		lastErr = p.downloadOnce(ctx, asset)
		if lastErr == nil {
			return nil
		}

		p.log.Warn("Download attempt %d/%d for %s failed: %v", attempt, p.maxRetries, asset.Name, lastErr)

		if attempt == p.maxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("provisioning of %s canceled: %w", asset.Name, ctx.Err())
		case <-time.After(p.backoff * time.Duration(attempt)):
		}
	}

	return fmt.Errorf(
		"%w: could not fetch %s from %s after %d attempts (%v); "+
			"download the file manually and place it at %s",
		ErrAssetUnavailable, asset.Name, asset.URL, p.maxRetries, lastErr, asset.Path,
	)
}

// downloadOnce transfers the asset into a temporary .part file, verifies it,
// and atomically renames it into place. Any failure removes the temporary
// file so no partial download survives.
func (p *Provisioner) downloadOnce(ctx context.Context, asset AssetSpec) error {
	tmpPath := asset.Path + partSuffix

	err := p.fetchToFile(ctx, asset, tmpPath)
	if err != nil {
		removeErr := os.Remove(tmpPath)
		if removeErr != nil && !os.IsNotExist(removeErr) {
			p.log.Warn("Failed to remove partial download %s: %v", tmpPath, removeErr)
		}

		return err
	}

	renameErr := os.Rename(tmpPath, asset.Path)
	if renameErr != nil {
		return fmt.Errorf("failed to move %s into place: %w", asset.Name, renameErr)
	}

	p.log.Info("Saved %s to %s", asset.Name, asset.Path)

	return nil
}

func (p *Provisioner) fetchToFile(ctx context.Context, asset AssetSpec, tmpPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, asset.URL, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request for %s: %w", asset.URL, err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", asset.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s for %s", ErrUnexpectedStatus, resp.Status, asset.URL)
	}

	out, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary file %s: %w", tmpPath, err)
	}

	written, copyErr := io.Copy(out, p.progressReader(resp.Body, asset.Name, resp.ContentLength))

	syncErr := out.Sync()
	closeErr := out.Close()

	if copyErr != nil {
		return fmt.Errorf("failed to write %s: %w", tmpPath, copyErr)
	}

	if syncErr != nil {
		return fmt.Errorf("failed to sync %s: %w", tmpPath, syncErr)
	}

	if closeErr != nil {
		return fmt.Errorf("failed to close %s: %w", tmpPath, closeErr)
	}

	verifyErr := p.verifyDownloaded(asset, tmpPath, written)
	if verifyErr != nil {
		return verifyErr
	}

	return nil
}

func (p *Provisioner) verifyDownloaded(asset AssetSpec, tmpPath string, written int64) error {
	if written == 0 || written < asset.MinBytes {
		return fmt.Errorf("%w: %s transfer produced %d bytes", ErrAssetUnavailable, asset.Name, written)
	}

	if asset.SHA256 == "" {
		return nil
	}

	digest, err := fileSHA256(tmpPath)
	if err != nil {
		return err
	}

	if digest != asset.SHA256 {
		return fmt.Errorf("%w: %s expected %s got %s", ErrChecksumMismatch, asset.Name, asset.SHA256, digest)
	}

	return nil
}

// progressReader wraps the response body and logs coarse progress so a
// multi-gigabyte model download is visibly alive in the log.
func (p *Provisioner) progressReader(body io.Reader, name string, total int64) io.Reader {
	return &countingReader{
		inner: body,
		log:   p.log,
		name:  name,
		total: total,
		step:  progressLogStepMB * bytesPerMegabyte,
	}
}

type countingReader struct {
	inner    io.Reader
	log      *logger.Logger
	name     string
	total    int64
	step     int64
	read     int64
	nextMark int64
}

func (c *countingReader) Read(buf []byte) (int, error) {
	n, err := c.inner.Read(buf)
	c.read += int64(n)

	if c.read >= c.nextMark {
		if c.total > 0 {
			c.log.Info("Downloading %s: %d/%d MB", c.name, c.read/bytesPerMegabyte, c.total/bytesPerMegabyte)
		} else {
			c.log.Info("Downloading %s: %d MB", c.name, c.read/bytesPerMegabyte)
		}

		c.nextMark = c.read + c.step
	}

	return n, err
}

func fileSHA256(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s for hashing: %w", path, err)
	}
	defer file.Close()

	hasher := sha256.New()

	_, err = io.Copy(hasher, file)
	if err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}
