// Package deepgram implements provider.Adapter against the Deepgram
// streaming WebSocket API (/v1/listen). Audio is forwarded as binary
// frames; Results messages carry interim and final transcripts.
package deepgram

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/eleven-am/transcribe-relay/internal/provider"
	"github.com/gorilla/websocket"
)

const (
	streamEndpoint  = "wss://api.deepgram.com/v1/listen"
	defaultModel    = "nova-2"
	defaultLanguage = "en"
)

type Adapter struct {
	endpoint string
	log      *slog.Logger
}

type Option func(*Adapter)

// WithEndpoint overrides the streaming endpoint. Used by tests.
func WithEndpoint(url string) Option {
	return func(a *Adapter) {
		a.endpoint = url
	}
}

func New(log *slog.Logger, opts ...Option) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	a := &Adapter{
		endpoint: streamEndpoint,
		log:      log.With("component", "deepgram_adapter"),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

func (a *Adapter) Open(ctx context.Context, cfg provider.SessionConfig, cb provider.Callbacks) (provider.Handle, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("deepgram: missing api key")
	}

	wsURL, err := a.buildURL(cfg)
	if err != nil {
		return nil, fmt.Errorf("deepgram: build url: %w", err)
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+cfg.APIKey)

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		return nil, fmt.Errorf("deepgram: dial: %w", err)
	}

	s := &session{
		ws:  ws,
		cb:  cb,
		log: a.log,
	}

	go s.readLoop()
	return s, nil
}

func (a *Adapter) buildURL(cfg provider.SessionConfig) (string, error) {
	u, err := url.Parse(a.endpoint)
	if err != nil {
		return "", err
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	language := cfg.Language
	if language == "" {
		language = defaultLanguage
	}
	sampleRate := cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = 16000
	}

	q := u.Query()
	q.Set("model", model)
	q.Set("language", language)
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(sampleRate))
	q.Set("channels", "1")
	q.Set("interim_results", strconv.FormatBool(cfg.InterimResults))
	u.RawQuery = q.Encode()

	return u.String(), nil
}

type resultMessage struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
	Description string `json:"description"`
}

type controlMessage struct {
	Type string `json:"type"`
}

type session struct {
	ws  *websocket.Conn
	cb  provider.Callbacks
	log *slog.Logger

	writeMu   sync.Mutex
	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
}

func (s *session) readLoop() {
	// Deepgram accepts audio as soon as the upgrade completes; the open
	// confirmation is still delivered asynchronously so callers see the
	// same connecting window every adapter has.
	if s.cb.OnOpen != nil {
		s.cb.OnOpen()
	}

	for {
		_, data, err := s.ws.ReadMessage()
		if err != nil {
			s.mu.Lock()
			wasClosed := s.closed
			s.mu.Unlock()
			if !wasClosed && s.cb.OnError != nil {
				s.cb.OnError(fmt.Errorf("deepgram: read: %w", err))
			}
			s.notifyClosed()
			return
		}

		var msg resultMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.log.Debug("dropping unparseable message", "error", err)
			continue
		}

		switch msg.Type {
		case "Results":
			if len(msg.Channel.Alternatives) == 0 {
				continue
			}
			alt := msg.Channel.Alternatives[0]
			if alt.Transcript == "" {
				continue
			}
			if s.cb.OnTranscript != nil {
				s.cb.OnTranscript(provider.TranscriptEvent{
					Text:       alt.Transcript,
					IsFinal:    msg.IsFinal,
					Confidence: alt.Confidence,
				})
			}

		case "Error":
			if s.cb.OnError != nil {
				s.cb.OnError(fmt.Errorf("deepgram: %s", msg.Description))
			}

		case "Metadata", "UtteranceEnd", "SpeechStarted":
			// informational only
		}
	}
}

func (s *session) PushAudio(audio []byte) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.ws.WriteMessage(websocket.BinaryMessage, audio); err != nil {
		return fmt.Errorf("deepgram: push audio: %w", err)
	}
	return nil
}

func (s *session) Finish() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.ws.WriteJSON(controlMessage{Type: "CloseStream"}); err != nil {
		return fmt.Errorf("deepgram: close stream: %w", err)
	}
	return nil
}

func (s *session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		s.ws.Close()
	})
	return nil
}

func (s *session) notifyClosed() {
	s.mu.Lock()
	alreadyClosed := s.closed
	s.closed = true
	s.mu.Unlock()

	if !alreadyClosed && s.cb.OnClose != nil {
		s.cb.OnClose()
	}
}
