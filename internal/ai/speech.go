package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultSpeechBaseURL = "https://speech.googleapis.com"

	// SampleRate is the fixed rate of the raw 16-bit mono PCM audio the
	// speech endpoint is fed with.
	SampleRate = 16000

	speechTimeout = 1 * time.Minute
)

// SpeechClient calls the hosted speech:recognize endpoint with base64 LINEAR16
// audio. An answer without a transcript is a no-result, not an error.
type SpeechClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

func NewSpeechClient(apiKey string, log zerolog.Logger) *SpeechClient {
	return &SpeechClient{
		apiKey:     apiKey,
		baseURL:    DefaultSpeechBaseURL,
		httpClient: &http.Client{},
		log:        log,
	}
}

// WithBaseURL points the client at a different endpoint. Used by tests.
func (c *SpeechClient) WithBaseURL(u string) *SpeechClient {
	c.baseURL = strings.TrimRight(u, "/")
	return c
}

type speechRequest struct {
	Config speechConfig `json:"config"`
	Audio  speechAudio  `json:"audio"`
}

type speechConfig struct {
	Encoding        string `json:"encoding"`
	SampleRateHertz int    `json:"sampleRateHertz"`
	LanguageCode    string `json:"languageCode"`
}

type speechAudio struct {
	Content string `json:"content"`
}

type speechResponse struct {
	Results []struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"results"`
}

// Transcribe sends raw 16-bit mono PCM samples and returns the transcript, or
// "" when the service recognized nothing.
func (c *SpeechClient) Transcribe(ctx context.Context, pcm []byte, locale string) (string, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return "", ErrNoAPIKey
	}

	payload, err := json.Marshal(speechRequest{
		Config: speechConfig{
			Encoding:        "LINEAR16",
			SampleRateHertz: SampleRate,
			LanguageCode:    locale,
		},
		Audio: speechAudio{Content: base64.StdEncoding.EncodeToString(pcm)},
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, speechTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/v1/speech:recognize?key=%s", c.baseURL, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error().Err(err).Msg("speech request failed")
		return "", fmt.Errorf("speech service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		c.log.Error().Int("status", resp.StatusCode).Str("body", string(body)).Msg("speech error response")
		return "", fmt.Errorf("speech service error: %d", resp.StatusCode)
	}

	var decoded speechResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode speech response: %w", err)
	}
	for _, res := range decoded.Results {
		for _, alt := range res.Alternatives {
			if alt.Transcript != "" {
				return alt.Transcript, nil
			}
		}
	}
	return "", nil
}
