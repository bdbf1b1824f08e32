package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrRecognizerDisabled is returned when no recognizer URL is configured.
var ErrRecognizerDisabled = errors.New("ocr: recognizer not configured")

// RecognizeResponse is the ALPR daemon reply.
type RecognizeResponse struct {
	DataType       string            `json:"data_type"`
	EpochTime      float64           `json:"epoch_time"`
	ImgWidth       int               `json:"img_width"`
	ImgHeight      int               `json:"img_height"`
	ProcessingTime float64           `json:"processing_time_ms"`
	Results        []RecognizeResult `json:"results"`
}

// RecognizeResult is one text region read from the photo.
type RecognizeResult struct {
	Plate      string  `json:"plate"`
	Confidence float64 `json:"confidence"`
	Region     string  `json:"region"`
}

// OCRClient posts gate photos to an ALPR service and joins the text it finds.
type OCRClient struct {
	url           string
	minConfidence float64
	client        *http.Client
	logger        *zap.Logger
}

// NewOCRClient builds HTTP client wrapper. Results below minConfidence are dropped.
func NewOCRClient(url string, minConfidence float64, timeout time.Duration, logger *zap.Logger) *OCRClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &OCRClient{
		url:           url,
		minConfidence: minConfidence,
		client:        &http.Client{Timeout: timeout},
		logger:        logger,
	}
}

// Recognize returns the plate text in reading order, space separated. An empty
// string means nothing readable was found.
func (c *OCRClient) Recognize(ctx context.Context, image []byte) (string, error) {
	if c.url == "" {
		return "", ErrRecognizerDisabled
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(image))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("ocr request failed", zap.Error(err))
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn("ocr returned non-success", zap.Int("status", resp.StatusCode))
		return "", fmt.Errorf("ocr non-success status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload RecognizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode ocr response: %w", err)
	}
	return c.join(payload.Results), nil
}

func (c *OCRClient) join(results []RecognizeResult) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		text := strings.TrimSpace(r.Plate)
		if text == "" || r.Confidence < c.minConfidence {
			continue
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, " ")
}
