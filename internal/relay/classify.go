package relay

import "strings"

// User-facing error messages. Raw provider errors are never forwarded
// verbatim; they are matched against known markers and collapsed into one
// of three categories.
const (
	msgInvalidCredentials = "invalid credentials: check the transcription provider API key"
	msgNetworkFailure     = "network connection error: unable to reach the transcription provider"
	msgGenericFailure     = "transcription service error"
)

var credentialMarkers = []string{
	"unauthorized",
	"forbidden",
	"invalid credentials",
	"api key",
	"401",
	"403",
}

var networkMarkers = []string{
	"network",
	"connection refused",
	"connection reset",
	"dial",
	"no such host",
	"timeout",
	"unreachable",
}

// ClassifyError translates a raw provider error into a user-facing message.
func ClassifyError(err error) string {
	if err == nil {
		return msgGenericFailure
	}

	raw := strings.ToLower(err.Error())
	for _, marker := range credentialMarkers {
		if strings.Contains(raw, marker) {
			return msgInvalidCredentials
		}
	}
	for _, marker := range networkMarkers {
		if strings.Contains(raw, marker) {
			return msgNetworkFailure
		}
	}
	return msgGenericFailure
}
