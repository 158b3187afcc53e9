package service

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	config "github.com/maheshrc27/scheduled-publisher/configs"
)

type cloudinaryStore struct {
	apiKey    string
	apiSecret string
	uploadURL string
	client    *http.Client
	now       func() time.Time
}

func NewCloudinaryStore(cfg config.Cloudinary) MediaStore {
	uploadURL := cfg.UploadURL
	if uploadURL == "" {
		uploadURL = fmt.Sprintf("https://api.cloudinary.com/v1_1/%s/image/upload", cfg.CloudName)
	}
	return &cloudinaryStore{
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
		uploadURL: uploadURL,
		client:    &http.Client{},
		now:       time.Now,
	}
}

func signUpload(folder, publicID, timestamp, secret string) string {
	sum := sha1.Sum([]byte(fmt.Sprintf("folder=%s&public_id=%s&timestamp=%s%s", folder, publicID, timestamp, secret)))
	return hex.EncodeToString(sum[:])
}

func (s *cloudinaryStore) Upload(ctx context.Context, obj MediaObject) (string, error) {
	timestamp := strconv.FormatInt(s.now().Unix(), 10)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", obj.PublicID+"."+obj.Extension)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}
	if _, err := part.Write(obj.Data); err != nil {
		return "", fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}

	fields := [][2]string{
		{"api_key", s.apiKey},
		{"timestamp", timestamp},
		{"folder", obj.Folder},
		{"public_id", obj.PublicID},
		{"signature", signUpload(obj.Folder, obj.PublicID, timestamp, s.apiSecret)},
	}
	for _, f := range fields {
		if err := writer.WriteField(f[0], f[1]); err != nil {
			return "", fmt.Errorf("%w: %w", ErrUploadFailed, err)
		}
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.uploadURL, body)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: status %d: %s", ErrUploadFailed, resp.StatusCode, respBody)
	}

	var result struct {
		SecureURL string `json:"secure_url"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil || result.SecureURL == "" {
		return "", fmt.Errorf("%w: response did not contain secure_url: %s", ErrUploadFailed, respBody)
	}

	return result.SecureURL, nil
}
