package gradebook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// GradeRecord is one student's grade as sent to the gradebook.
type GradeRecord struct {
	UserID  uint    `json:"user_id"`
	Grade   float64 `json:"grade"`
	Comment string  `json:"comment,omitempty"`
}

// Config contains connection settings for the gradebook endpoint.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client talks to the institutional gradebook over HTTP. It is the single
// write path for released grades.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  zerolog.Logger
}

// New constructs a gradebook client.
func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("gradebook base URL must be provided")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With().Str("component", "gradebook").Logger(),
	}, nil
}

type writeGradesPayload struct {
	CourseworkRef string               `json:"coursework_ref"`
	Grades        map[uint]GradeRecord `json:"grades"`
}

type writeGradesResult struct {
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// WriteGrades pushes a batch of grades for one coursework. The returned
// bool reflects the gradebook's own accept/reject verdict; transport
// failures surface as errors.
func (c *Client) WriteGrades(ctx context.Context, courseworkRef string, grades map[uint]GradeRecord) (bool, error) {
	body, err := json.Marshal(writeGradesPayload{CourseworkRef: courseworkRef, Grades: grades})
	if err != nil {
		return false, fmt.Errorf("failed to encode grade batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/grades", bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("failed to build gradebook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("gradebook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, fmt.Errorf("gradebook returned status %d", resp.StatusCode)
	}

	var result writeGradesResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, fmt.Errorf("failed to decode gradebook response: %w", err)
	}

	if !result.OK {
		c.logger.Warn().Str("coursework_ref", courseworkRef).Str("detail", result.Detail).Msg("gradebook rejected grade batch")
		return false, nil
	}

	c.logger.Info().Str("coursework_ref", courseworkRef).Int("grades", len(grades)).Msg("grades written to gradebook")

	return true, nil
}
