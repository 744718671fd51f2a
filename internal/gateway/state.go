package gateway

import (
	"encoding/json"
	"strings"

	"github.com/openkcm/app-gateway/internal/serviceerr"
)

// maxStateLength bounds the state parameter echoed back by the
// authorization server.
const maxStateLength = 4096

type loginState struct {
	Next string `json:"next"`
}

func encodeState(next string) string {
	b, err := json.Marshal(loginState{Next: next})
	if err != nil {
		return "{}"
	}

	return string(b)
}

// decodeState extracts the redirect target from the state parameter. An
// empty state yields an empty target. The target must be a local path.
func decodeState(raw string) (string, error) {
	if raw == "" {
		return "", nil
	}
	if len(raw) > maxStateLength {
		return "", serviceerr.ErrMalformedState
	}

	var state loginState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return "", serviceerr.Wrap(serviceerr.ErrMalformedState, err)
	}

	if state.Next != "" && !isLocalPath(state.Next) {
		return "", serviceerr.ErrMalformedState
	}

	return state.Next, nil
}

// isLocalPath reports whether p stays on this host when used as Location.
func isLocalPath(p string) bool {
	if !strings.HasPrefix(p, "/") {
		return false
	}
	if len(p) > 1 && (p[1] == '/' || p[1] == '\\') {
		return false
	}

	return !strings.ContainsAny(p, "\r\n")
}
