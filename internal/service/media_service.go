package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

var inlineImagePattern = regexp.MustCompile(`^data:image/([a-zA-Z0-9.+-]+);base64,`)

// MediaObject is a decoded image ready to be written to a MediaStore.
type MediaObject struct {
	Folder    string
	PublicID  string
	MIME      string
	Extension string
	Data      []byte
}

// MediaStore writes an object to remote storage and returns its public URL.
type MediaStore interface {
	Upload(ctx context.Context, obj MediaObject) (string, error)
}

type MediaIngestor interface {
	Ingest(ctx context.Context, raw string) (string, error)
}

type mediaIngestor struct {
	store   MediaStore
	folder  string
	timeout time.Duration
	sem     chan struct{}
	now     func() time.Time
}

func NewMediaIngestor(store MediaStore, folder string, timeout time.Duration, maxConcurrent int) MediaIngestor {
	if folder == "" {
		folder = "posts"
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &mediaIngestor{
		store:   store,
		folder:  folder,
		timeout: timeout,
		sem:     make(chan struct{}, maxConcurrent),
		now:     time.Now,
	}
}

// IsRemoteURL reports whether raw is an absolute http(s) URL.
func IsRemoteURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.IsAbs() && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// IsInlineImage reports whether raw is a data:image/...;base64 payload.
func IsInlineImage(raw string) bool {
	return inlineImagePattern.MatchString(raw)
}

func (m *mediaIngestor) Ingest(ctx context.Context, raw string) (string, error) {
	if IsRemoteURL(raw) {
		return raw, nil
	}

	if !IsInlineImage(raw) {
		slog.Error("invalid image format provided")
		return "", ErrInvalidImageFormat
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(inlineImagePattern.ReplaceAllString(raw, "")))
	if err != nil {
		slog.Error("failed to decode base64 image", "error", err)
		return "", fmt.Errorf("%w: %w", ErrImageDecodeFailed, err)
	}
	if len(data) == 0 || !filetype.IsImage(data) {
		slog.Error("decoded payload is not an image")
		return "", fmt.Errorf("%w: payload is not a recognized image", ErrImageDecodeFailed)
	}

	kind, err := filetype.Match(data)
	if err != nil || kind == types.Unknown {
		return "", fmt.Errorf("%w: unknown image type", ErrImageDecodeFailed)
	}

	id, err := gonanoid.New(8)
	if err != nil {
		slog.Error(err.Error())
		return "", fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}

	obj := MediaObject{
		Folder:    m.folder,
		PublicID:  fmt.Sprintf("post_%d_%s", m.now().Unix(), id),
		MIME:      kind.MIME.Value,
		Extension: kind.Extension,
		Data:      data,
	}

	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	select {
	case m.sem <- struct{}{}:
		defer func() { <-m.sem }()
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %w", ErrUploadFailed, ctx.Err())
	}

	slog.Info("uploading image", "folder", obj.Folder, "public_id", obj.PublicID, "mime", obj.MIME)

	imageURL, err := m.store.Upload(ctx, obj)
	if err != nil {
		slog.Error("image upload failed", "public_id", obj.PublicID, "error", err)
		if errors.Is(err, ErrUploadFailed) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}

	slog.Info("image uploaded", "url", imageURL)
	return imageURL, nil
}
