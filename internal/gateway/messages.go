package gateway

// inboundEnvelope is decoded first to read the type tag before dispatch.
type inboundEnvelope struct {
	Type string `json:"type"`
}

type inboundScreenShare struct {
	Type      string  `json:"type"`
	Timestamp float64 `json:"timestamp"`
}

type inboundVoiceAssistant struct {
	Type      string  `json:"type"`
	Timestamp float64 `json:"timestamp"`
}

type inboundAudioData struct {
	Type        string     `json:"type"`
	Data        []float32  `json:"data"`
	SampleRate  int        `json:"sample_rate"`
	VAD         vadPayload `json:"vad"`
	Timestamp   float64    `json:"timestamp"`
	ScreenImage string     `json:"screen_image,omitempty"`
}

type inboundVADState struct {
	Type      string     `json:"type"`
	VAD       vadPayload `json:"vad"`
	Timestamp float64    `json:"timestamp"`
}

type vadPayload struct {
	IsSpeaking bool    `json:"isSpeaking"`
	Energy     float64 `json:"energy,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

type inboundScreenCaptureResponse struct {
	Type              string  `json:"type"`
	ScreenImage       string  `json:"screen_image"`
	OriginalText      string  `json:"original_text"`
	OriginalTimestamp float64 `json:"original_timestamp"`
	RequestData       struct {
		OriginalTimestamp float64 `json:"original_timestamp"`
	} `json:"request_data"`
}

type inboundHeartbeat struct {
	Type      string  `json:"type"`
	Timestamp float64 `json:"timestamp"`
}

// Outbound message shapes, one struct per SPEC_FULL.md §6 wire type.

type outSimpleState struct {
	Type          string  `json:"type"`
	Message       string  `json:"message"`
	Timestamp     float64 `json:"timestamp"`
	ScreenShareOn *bool   `json:"screen_share_on,omitempty"`
}

type outTranscriptionResult struct {
	Type           string  `json:"type"`
	Text           string  `json:"text"`
	Timestamp      float64 `json:"timestamp"`
	ProcessingTime float64 `json:"processing_time"`
	Confidence     float64 `json:"confidence"`
}

type outSpeechActive struct {
	Type      string     `json:"type"`
	Message   string     `json:"message"`
	Timestamp float64    `json:"timestamp"`
	VAD       vadPayload `json:"vad"`
}

type outScreenCaptureRequest struct {
	Type              string   `json:"type"`
	Confidence        float64  `json:"confidence"`
	Reason            string   `json:"reason"`
	TriggerMatches    []string `json:"trigger_matches"`
	ContextMatches    []string `json:"context_matches"`
	Timestamp         float64  `json:"timestamp"`
	OriginalText      string   `json:"original_text"`
	OriginalTimestamp float64  `json:"original_timestamp"`
}

type outAIResponse struct {
	Type           string  `json:"type"`
	Text           string  `json:"text"`
	Timestamp      float64 `json:"timestamp"`
	ProcessingTime float64 `json:"processing_time"`
	SessionID      string  `json:"session_id"`
	ScreenContext  string  `json:"screen_context,omitempty"`
}

type outAudioResponse struct {
	Type           string    `json:"type"`
	AudioData      []float32 `json:"audio_data"`
	SampleRate     int       `json:"sample_rate"`
	Duration       float64   `json:"duration"`
	ProcessingTime float64   `json:"processing_time"`
	Text           string    `json:"text"`
	Timestamp      float64   `json:"timestamp"`
	SessionID      string    `json:"session_id"`
}

type outHeartbeatPong struct {
	Type      string  `json:"type"`
	Timestamp float64 `json:"timestamp"`
}

type outError struct {
	Type      string  `json:"type"`
	Message   string  `json:"message"`
	Timestamp float64 `json:"timestamp"`
}
