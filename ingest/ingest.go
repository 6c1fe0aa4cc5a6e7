// Package ingest validates, resizes and stores uploaded session images.
package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"

	"github.com/evanoberholster/imagemeta"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"

	"github.com/eringen/autoblog/blog"
	"github.com/eringen/autoblog/storage"
)

// Options bounds an ingestion batch.
type Options struct {
	MaxImages      int
	MaxDimension   int
	JPEGQuality    int
	MaxUploadBytes int64
	Bucket         string
}

func (o *Options) setDefaults() {
	if o.MaxImages <= 0 {
		o.MaxImages = 3
	}
	if o.MaxDimension <= 0 {
		o.MaxDimension = 1600
	}
	if o.JPEGQuality <= 0 || o.JPEGQuality > 100 {
		o.JPEGQuality = 82
	}
	if o.MaxUploadBytes <= 0 {
		o.MaxUploadBytes = 10 << 20
	}
	if o.Bucket == "" {
		o.Bucket = "autoblog"
	}
}

// Upload is a raw image as received from the caller.
type Upload struct {
	Filename string
	Data     []byte
}

// ImageError names the image whose processing aborted the batch.
type ImageError struct {
	Index    int
	Filename string
	Err      error
}

func (e *ImageError) Error() string {
	return fmt.Sprintf("image %d (%s): %v", e.Index+1, e.Filename, e.Err)
}

func (e *ImageError) Unwrap() error { return e.Err }

// Ingestor turns uploads into stored images.
type Ingestor struct {
	store storage.ObjectStore
	opts  Options
}

// New returns an Ingestor writing to store.
func New(store storage.ObjectStore, opts Options) *Ingestor {
	opts.setDefaults()
	return &Ingestor{store: store, opts: opts}
}

// MaxImages returns the configured per-run image limit.
func (i *Ingestor) MaxImages() int { return i.opts.MaxImages }

// Validate checks count and size limits without decoding anything.
func (i *Ingestor) Validate(uploads []Upload) error {
	if len(uploads) > i.opts.MaxImages {
		return blog.Invalid("images", "%d images submitted, at most %d allowed", len(uploads), i.opts.MaxImages)
	}
	for idx, up := range uploads {
		if len(up.Data) == 0 {
			return blog.Invalid("images", "image %d (%s) is empty", idx+1, up.Filename)
		}
		if int64(len(up.Data)) > i.opts.MaxUploadBytes {
			return blog.Invalid("images", "image %d (%s) exceeds %d bytes", idx+1, up.Filename, i.opts.MaxUploadBytes)
		}
	}
	return nil
}

// Ingest validates the batch, then processes and stores every image in
// order. The first failing image aborts the batch.
func (i *Ingestor) Ingest(ctx context.Context, uploads []Upload) ([]blog.UploadedImage, error) {
	if err := i.Validate(uploads); err != nil {
		return nil, err
	}
	images := make([]blog.UploadedImage, 0, len(uploads))
	for idx, up := range uploads {
		img, err := Process(up.Data, i.opts.MaxDimension, i.opts.JPEGQuality)
		if err != nil {
			return nil, &blog.ValidationError{
				Field:  "images",
				Reason: "unreadable image",
				Err:    &ImageError{Index: idx, Filename: up.Filename, Err: err},
			}
		}
		img.OriginalName = up.Filename
		img.Filename = UniqueFilename(up.Filename)
		readCaptureFacts(up.Data, &img)

		url, err := i.store.Store(ctx, i.opts.Bucket, img.Filename, img.Data)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			return nil, &blog.PersistenceError{
				Op:  "store image",
				Err: &ImageError{Index: idx, Filename: up.Filename, Err: err},
			}
		}
		img.URL = url

		log.Debug().
			Str("filename", img.Filename).
			Int("width", img.Width).
			Int("height", img.Height).
			Int("bytes", img.Size).
			Msg("Image ingested")
		images = append(images, img)
	}
	return images, nil
}

// Process decodes data, fits it into a maxDim bounding box without
// upscaling and re-encodes it as JPEG.
func Process(data []byte, maxDim, quality int) (blog.UploadedImage, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return blog.UploadedImage{}, fmt.Errorf("decode image: %w", err)
	}

	bounds := src.Bounds()
	w, h := FitWithin(bounds.Dx(), bounds.Dy(), maxDim)
	var out image.Image = src
	if w != bounds.Dx() || h != bounds.Dy() {
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
		out = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: quality}); err != nil {
		return blog.UploadedImage{}, fmt.Errorf("encode jpeg: %w", err)
	}
	return blog.UploadedImage{
		Data:        buf.Bytes(),
		ContentType: "image/jpeg",
		Size:        buf.Len(),
		Width:       w,
		Height:      h,
	}, nil
}

// FitWithin scales w x h down to fit a maxDim square, keeping the aspect
// ratio. Images already inside the box are returned unchanged.
func FitWithin(w, h, maxDim int) (int, int) {
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return w, h
	}
	if w >= h {
		return maxDim, max(1, h*maxDim/w)
	}
	return max(1, w*maxDim/h), maxDim
}

// UniqueFilename derives a collision-resistant JPEG name from the original.
func UniqueFilename(original string) string {
	base := blog.Slugify(strings.TrimSuffix(original, filepath.Ext(original)))
	if base == "" {
		base = "bild"
	}
	if len(base) > 48 {
		base = strings.TrimRight(base[:48], "-")
	}
	return base + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8] + ".jpg"
}

func readCaptureFacts(data []byte, img *blog.UploadedImage) {
	exif, err := imagemeta.Decode(bytes.NewReader(data))
	if err != nil {
		log.Debug().Err(err).Str("filename", img.OriginalName).Msg("No EXIF metadata")
		return
	}
	if t := exif.DateTimeOriginal(); !t.IsZero() {
		img.TakenAt = t
	}
	img.Camera = strings.TrimSpace(strings.TrimSpace(exif.Make) + " " + strings.TrimSpace(exif.Model))
}
