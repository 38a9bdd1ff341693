// Package processorclient is a thin client for the video-processor service.
// The portal only asks it for thumbnails; everything else the processor does
// is invisible here.
package processorclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Client wraps HTTP calls to the processor service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Logger
}

// New creates a processor client. An empty baseURL disables the client:
// RequestThumbnail becomes a logged no-op so the portal runs without a
// processor in development.
func New(baseURL string, logger *logrus.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

type thumbnailRequest struct {
	StoragePath string `json:"storage_path"`
}

// RequestThumbnail asks the processor to generate a thumbnail for the object
// at storagePath. The processor may not support the file type, in which case
// it simply produces nothing; failures here never fail the calling request.
func (c *Client) RequestThumbnail(ctx context.Context, storagePath string) error {
	if c.baseURL == "" {
		c.logger.WithField("storage_path", storagePath).Debug("Processor disabled, skipping thumbnail request")
		return nil
	}

	payload, err := json.Marshal(thumbnailRequest{StoragePath: storagePath})
	if err != nil {
		return fmt.Errorf("failed to encode thumbnail request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/thumbnails", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build thumbnail request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("thumbnail request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("processor returned status %d for %s", resp.StatusCode, storagePath)
	}

	c.logger.WithField("storage_path", storagePath).Info("Thumbnail generation requested")
	return nil
}
