// Package transcribe drives an asynchronous speech-to-text job through the
// provider's API: upload the audio, create a transcription job, poll until a
// terminal state. The clock is injectable so tests can simulate elapsed time.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"meeting-insights-go/internal/logger"
	"meeting-insights-go/internal/types"
)

// JobState tracks one transcription job through its lifecycle.
type JobState string

const (
	StateSubmitted JobState = "SUBMITTED"
	StatePolling   JobState = "POLLING"
	StateCompleted JobState = "COMPLETED"
	StateFailed    JobState = "FAILED"
	StateTimedOut  JobState = "TIMED_OUT"
)

// ErrTimedOut means the job did not reach a terminal provider state within
// the wall-clock budget. Distinct from a provider-reported failure; neither
// is retried within the run.
var ErrTimedOut = errors.New("transcription timed out")

// JobFailedError carries the provider's own failure reason.
type JobFailedError struct {
	Reason string
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("transcription failed: %s", e.Reason)
}

type uploadResponse struct {
	UploadURL string `json:"upload_url"`
}

type submitRequest struct {
	AudioURL      string `json:"audio_url"`
	LanguageCode  string `json:"language_code"`
	SpeakerLabels bool   `json:"speaker_labels"`
}

type jobUtterance struct {
	Speaker    string  `json:"speaker"`
	Text       string  `json:"text"`
	Start      int64   `json:"start"`
	End        int64   `json:"end"`
	Confidence float64 `json:"confidence"`
}

type jobResponse struct {
	ID         string         `json:"id"`
	Status     string         `json:"status"` // queued, processing, completed, error
	Text       string         `json:"text"`
	Error      string         `json:"error"`
	Utterances []jobUtterance `json:"utterances"`
}

// Client talks to the transcription provider. Sleep and Now default to the
// real clock; tests replace them.
type Client struct {
	BaseURL      string
	APIKey       string
	Language     string
	PollInterval time.Duration
	MaxWait      time.Duration
	HTTP         *http.Client
	Log          *logger.Logger

	Sleep func(time.Duration)
	Now   func() time.Time
}

func NewClient(baseURL, apiKey, language string, pollInterval, maxWait time.Duration, log *logger.Logger) *Client {
	return &Client{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		APIKey:       apiKey,
		Language:     language,
		PollInterval: pollInterval,
		MaxWait:      maxWait,
		HTTP:         &http.Client{Timeout: 60 * time.Second},
		Log:          log,
		Sleep:        time.Sleep,
		Now:          time.Now,
	}
}

// Transcribe runs one audio file through the provider. On success it returns
// the utterances plus the raw final payload for audit.
func (c *Client) Transcribe(ctx context.Context, audioPath string) (*types.TranscriptionResult, error) {
	audioURL, err := c.upload(ctx, audioPath)
	if err != nil {
		return nil, fmt.Errorf("upload audio: %w", err)
	}

	jobID, err := c.submit(ctx, audioURL)
	if err != nil {
		return nil, fmt.Errorf("submit transcription: %w", err)
	}
	if c.Log != nil {
		c.Log.WithFields(logrus.Fields{"job_id": jobID, "state": StateSubmitted}).Info("transcription submitted")
	}

	return c.poll(ctx, jobID)
}

func (c *Client) upload(ctx context.Context, audioPath string) (string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/upload", f)
	if err != nil {
		return "", err
	}
	req.Header.Set("authorization", c.APIKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("upload rejected: HTTP %d: %s", resp.StatusCode, string(body))
	}
	var up uploadResponse
	if err := json.Unmarshal(body, &up); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	if up.UploadURL == "" {
		return "", fmt.Errorf("upload response missing upload_url")
	}
	return up.UploadURL, nil
}

func (c *Client) submit(ctx context.Context, audioURL string) (string, error) {
	payload, err := json.Marshal(submitRequest{
		AudioURL:      audioURL,
		LanguageCode:  c.Language,
		SpeakerLabels: true,
	})
	if err != nil {
		return "", err
	}

	var job jobResponse
	if _, err := c.doJSON(ctx, http.MethodPost, c.BaseURL+"/transcript", payload, &job); err != nil {
		return "", err
	}
	if job.ID == "" {
		return "", fmt.Errorf("submit response missing job id")
	}
	return job.ID, nil
}

// poll repeats the status call at a fixed interval until the provider reports
// a terminal state or MaxWait elapses.
func (c *Client) poll(ctx context.Context, jobID string) (*types.TranscriptionResult, error) {
	deadline := c.Now().Add(c.MaxWait)
	statusURL := c.BaseURL + "/transcript/" + jobID

	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if c.Now().After(deadline) {
			return nil, fmt.Errorf("job %s: %w", jobID, ErrTimedOut)
		}
		c.Sleep(c.PollInterval)

		var job jobResponse
		raw, err := c.doJSON(ctx, http.MethodGet, statusURL, nil, &job)
		if err != nil {
			// transient polling failure after retries; keep the state machine alive
			if c.Log != nil {
				c.Log.WithError(err).Warn("poll request failed")
			}
			continue
		}
		if c.Log != nil {
			c.Log.WithFields(logrus.Fields{"job_id": jobID, "status": job.Status, "state": StatePolling}).Debug("polling transcription")
		}

		switch job.Status {
		case "completed":
			return buildResult(&job, raw), nil
		case "error":
			return nil, &JobFailedError{Reason: job.Error}
		default:
			// queued / processing
		}
	}
}

func buildResult(job *jobResponse, raw []byte) *types.TranscriptionResult {
	res := &types.TranscriptionResult{
		Text:       job.Text,
		Diagnostic: json.RawMessage(raw),
	}
	for _, u := range job.Utterances {
		res.Utterances = append(res.Utterances, types.Utterance{
			SpeakerLabel: u.Speaker,
			Text:         u.Text,
			StartMs:      u.Start,
			EndMs:        u.End,
			Confidence:   u.Confidence,
		})
	}
	return res
}

// doJSON performs one HTTP exchange with bounded retry on transport and 5xx
// failures. The request is rebuilt per attempt so the body can be resent.
func (c *Client) doJSON(ctx context.Context, method, url string, payload []byte, target any) ([]byte, error) {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 12 * time.Second

	var raw []byte
	op := func() error {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, body)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("authorization", c.APIKey)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.HTTP.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		data, _ := io.ReadAll(resp.Body)
		if resp.StatusCode >= 500 {
			return fmt.Errorf("server error: HTTP %d: %s", resp.StatusCode, string(data))
		}
		if resp.StatusCode >= 300 {
			return backoff.Permanent(fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(data)))
		}
		if err := json.Unmarshal(data, target); err != nil {
			return fmt.Errorf("json decode error: %v body=%s", err, string(data))
		}
		raw = data
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return raw, nil
}
