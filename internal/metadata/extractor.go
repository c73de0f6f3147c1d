// Package metadata extracts the metadata of the resources that uploads point
// to and verifies query results against them.
//
// On upload the locator in the last argument is fetched and described; the
// description is encrypted under the caller key and appended to the
// arguments together with a keyed fingerprint of the content. On query the
// fingerprint stored on the ledger is checked against the resource as it is
// now.
package metadata

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/evidenceledger/ledgergateway/internal/cache"
	"github.com/evidenceledger/ledgergateway/internal/disclosure"
	"github.com/evidenceledger/ledgergateway/internal/errl"
	"github.com/evidenceledger/ledgergateway/internal/metrics"
)

// ErrExtraction is returned by AugmentArgs when metadata could not be
// produced. The invoke must not be sent.
var ErrExtraction = errors.New("metadata extraction failed")

// Metadata describes a resource
type Metadata struct {
	ID          string     `json:"id"`
	Locator     string     `json:"locator"`
	ContentType string     `json:"contentType"`
	Size        int        `json:"size"`
	SHA256      string     `json:"sha256"`
	Image       *ImageInfo `json:"image,omitempty"`
	// Provenance is the SHA-256 of the bearer token of the uploader
	Provenance  string    `json:"provenance,omitempty"`
	ExtractedAt time.Time `json:"extractedAt"`
}

type ImageInfo struct {
	Format string `json:"format"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	// AverageHash is a perceptual hash, equal for visually equal images
	AverageHash string `json:"averageHash,omitempty"`
}

type Config struct {
	FetchTimeout time.Duration
	MaxBytes     int64
	CacheTTL     time.Duration
	FileRoot     string
	// MaxPixels bounds the images that are decoded for the perceptual hash.
	// Larger images keep format and dimensions only. Zero means DefaultMaxPixels.
	MaxPixels int64
	// Client overrides the HTTP client built from FetchTimeout
	Client *http.Client
}

// DefaultMaxPixels is the decode ceiling used when Config.MaxPixels is zero
const DefaultMaxPixels = 40_000_000

type Extractor struct {
	fetcher   *Fetcher
	maxPixels int64
	cipher    *disclosure.Cipher
	cache     *cache.Cache[*Metadata]
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewExtractor(cfg Config, cipher *disclosure.Cipher, m *metrics.Metrics) *Extractor {
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.FetchTimeout}
	}
	if cipher == nil {
		cipher = disclosure.NewCipher()
	}
	maxPixels := cfg.MaxPixels
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	return &Extractor{
		fetcher:   NewFetcher(client, cfg.MaxBytes, cfg.FileRoot),
		maxPixels: maxPixels,
		cipher:    cipher,
		cache:     cache.New[*Metadata](cfg.CacheTTL),
		metrics:   m,
		now:       time.Now,
	}
}

// Extract describes the resource at locator. Results are cached per locator.
func (e *Extractor) Extract(ctx context.Context, locator string) (*Metadata, error) {
	if md, ok := e.cache.Get(locator); ok {
		e.metrics.Extraction("cached")
		return md, nil
	}

	md, _, err := e.describe(ctx, locator)
	if err != nil {
		e.metrics.Extraction("failed")
		return nil, err
	}

	e.cache.Set(locator, md, 0)
	e.metrics.Extraction("extracted")
	return md, nil
}

// describe fetches the resource and builds its metadata
func (e *Extractor) describe(ctx context.Context, locator string) (*Metadata, *Resource, error) {
	res, err := e.fetcher.Fetch(ctx, locator)
	if err != nil {
		return nil, nil, err
	}

	sum := sha256.Sum256(res.Content)
	md := &Metadata{
		ID:          uuid.NewString(),
		Locator:     locator,
		ContentType: res.ContentType,
		Size:        len(res.Content),
		SHA256:      hex.EncodeToString(sum[:]),
		ExtractedAt: e.now().UTC(),
	}

	if cfg, format, err := image.DecodeConfig(bytes.NewReader(res.Content)); err == nil {
		md.Image = &ImageInfo{Format: format, Width: cfg.Width, Height: cfg.Height}
		// the header alone decides the decoded size, not the download size
		if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > e.maxPixels {
			slog.Warn("image too large to hash", "locator", locator, "width", cfg.Width, "height", cfg.Height)
		} else if img, _, err := image.Decode(bytes.NewReader(res.Content)); err == nil {
			md.Image.AverageHash = averageHash(img)
		}
	}

	return md, res, nil
}

// Fingerprint is the keyed digest of a resource stored next to its metadata.
// It is computed over the SHA-256 of the content, given in hex.
func Fingerprint(key, contentSHA256 string) (string, error) {
	sum, err := hex.DecodeString(contentSHA256)
	if err != nil {
		return "", errl.Errorf("invalid content digest: %w", err)
	}
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write(sum)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Provenance identifies the uploader without keeping the token itself
func Provenance(bearerToken string) string {
	if bearerToken == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(bearerToken))
	return hex.EncodeToString(sum[:])
}

// AugmentArgs treats the last argument as a resource locator and returns the
// arguments followed by the encrypted metadata of the resource and its
// fingerprint. Any failure is ErrExtraction.
func (e *Extractor) AugmentArgs(ctx context.Context, args []string, key, bearerToken string) ([]string, error) {
	if len(args) == 0 {
		return nil, errors.Join(ErrExtraction, errl.Errorf("no resource locator in args"))
	}
	if key == "" {
		return nil, errors.Join(ErrExtraction, errl.Errorf("encryption key is required"))
	}
	locator := args[len(args)-1]

	md, err := e.Extract(ctx, locator)
	if err != nil {
		return nil, errors.Join(ErrExtraction, err)
	}

	stamped := *md
	stamped.Provenance = Provenance(bearerToken)

	plaintext, err := json.Marshal(&stamped)
	if err != nil {
		return nil, errors.Join(ErrExtraction, errl.Error(err))
	}
	encrypted, err := e.cipher.Encrypt(plaintext, key)
	if err != nil {
		return nil, errors.Join(ErrExtraction, errl.Error(err))
	}
	fingerprint, err := Fingerprint(key, md.SHA256)
	if err != nil {
		return nil, errors.Join(ErrExtraction, err)
	}

	slog.Debug("metadata folded into args", "locator", locator, "metadata", md.ID, "size", md.Size)

	out := make([]string, 0, len(args)+2)
	out = append(out, args...)
	return append(out, encrypted, fingerprint), nil
}
