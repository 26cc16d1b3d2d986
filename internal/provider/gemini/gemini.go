// Package gemini implements provider.Adapter against the Gemini Live
// WebSocket API. Audio is forwarded as base64 PCM inside realtime_input
// frames; input transcription events come back on server_content.
package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/eleven-am/transcribe-relay/internal/provider"
	"github.com/gorilla/websocket"
)

const (
	liveEndpoint = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"
	defaultModel = "gemini-live-2.5-flash-preview"
)

type Adapter struct {
	endpoint string
	log      *slog.Logger
}

type Option func(*Adapter)

// WithEndpoint overrides the live API endpoint. Used by tests.
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
		endpoint: liveEndpoint,
		log:      log.With("component", "gemini_adapter"),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

type setupMessage struct {
	Setup struct {
		Model            string `json:"model"`
		GenerationConfig struct {
			ResponseModalities []string `json:"response_modalities"`
		} `json:"generation_config"`
		InputAudioTranscription struct{} `json:"input_audio_transcription"`
	} `json:"setup"`
}

type realtimeInput struct {
	RealtimeInput struct {
		Audio *audioBlob `json:"audio,omitempty"`
		// true marks graceful end-of-audio; trailing transcripts may still arrive.
		AudioStreamEnd bool `json:"audio_stream_end,omitempty"`
	} `json:"realtime_input"`
}

type audioBlob struct {
	Data     string `json:"data"`
	MimeType string `json:"mime_type"`
}

type serverMessage struct {
	SetupComplete *struct{} `json:"setupComplete"`
	ServerContent *struct {
		InputTranscription *struct {
			Text string `json:"text"`
		} `json:"inputTranscription"`
		GenerationComplete bool `json:"generationComplete"`
		TurnComplete       bool `json:"turnComplete"`
	} `json:"serverContent"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (a *Adapter) Open(ctx context.Context, cfg provider.SessionConfig, cb provider.Callbacks) (provider.Handle, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: missing api key")
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}

	sampleRate := cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = 16000
	}

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, a.endpoint+"?key="+cfg.APIKey, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini: dial: %w", err)
	}

	var setup setupMessage
	setup.Setup.Model = "models/" + model
	setup.Setup.GenerationConfig.ResponseModalities = []string{"TEXT"}

	if err := ws.WriteJSON(setup); err != nil {
		ws.Close()
		return nil, fmt.Errorf("gemini: send setup: %w", err)
	}

	s := &session{
		ws:       ws,
		cb:       cb,
		log:      a.log,
		mimeType: fmt.Sprintf("audio/pcm;rate=%d", sampleRate),
		done:     make(chan struct{}),
	}

	go s.readLoop()
	return s, nil
}

type session struct {
	ws       *websocket.Conn
	cb       provider.Callbacks
	log      *slog.Logger
	mimeType string

	writeMu   sync.Mutex
	mu        sync.Mutex
	open      bool
	closed    bool
	done      chan struct{}
	closeOnce sync.Once
}

func (s *session) readLoop() {
	for {
		_, data, err := s.ws.ReadMessage()
		if err != nil {
			s.mu.Lock()
			wasClosed := s.closed
			s.mu.Unlock()
			if !wasClosed && s.cb.OnError != nil {
				s.cb.OnError(fmt.Errorf("gemini: read: %w", err))
			}
			s.notifyClosed()
			return
		}

		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.log.Debug("dropping unparseable server message", "error", err)
			continue
		}

		switch {
		case msg.SetupComplete != nil:
			s.mu.Lock()
			s.open = true
			s.mu.Unlock()
			if s.cb.OnOpen != nil {
				s.cb.OnOpen()
			}

		case msg.Error != nil:
			if s.cb.OnError != nil {
				s.cb.OnError(fmt.Errorf("gemini: %s", msg.Error.Message))
			}

		case msg.ServerContent != nil:
			sc := msg.ServerContent
			if sc.InputTranscription == nil || sc.InputTranscription.Text == "" {
				continue
			}
			if s.cb.OnTranscript != nil {
				s.cb.OnTranscript(provider.TranscriptEvent{
					Text:    sc.InputTranscription.Text,
					IsFinal: sc.GenerationComplete || sc.TurnComplete,
				})
			}
		}
	}
}

func (s *session) PushAudio(audio []byte) error {
	s.mu.Lock()
	if s.closed || !s.open {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	var in realtimeInput
	in.RealtimeInput.Audio = &audioBlob{
		Data:     base64.StdEncoding.EncodeToString(audio),
		MimeType: s.mimeType,
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.ws.WriteJSON(in); err != nil {
		return fmt.Errorf("gemini: push audio: %w", err)
	}
	return nil
}

func (s *session) Finish() error {
	s.mu.Lock()
	if s.closed || !s.open {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	var in realtimeInput
	in.RealtimeInput.AudioStreamEnd = true

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.ws.WriteJSON(in); err != nil {
		return fmt.Errorf("gemini: audio stream end: %w", err)
	}
	return nil
}

func (s *session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.open = false
		s.mu.Unlock()
		s.ws.Close()
	})
	return nil
}

func (s *session) notifyClosed() {
	s.mu.Lock()
	alreadyClosed := s.closed
	s.closed = true
	s.open = false
	s.mu.Unlock()

	if !alreadyClosed && s.cb.OnClose != nil {
		s.cb.OnClose()
	}
}
