package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/app-gateway/internal/serviceerr"
)

const maxUserInfoSize = 1 << 20

// Profile is the placeholder user answered in static mode.
type Profile struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// user answers /api/user from the userinfo endpoint of the realm, or with
// the static profile if one is configured.
func (g *gateway) user(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if g.staticProfile != nil {
		writeJSON(ctx, w, http.StatusOK, g.staticProfile)
		return
	}

	rec, ok := bearerFrom(ctx)
	if !ok {
		writeJSONError(ctx, w, serviceerr.ErrUnauthorized)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.lifecycle.Endpoints().UserInfo, nil)
	if err != nil {
		writeJSONError(ctx, w, serviceerr.Wrap(serviceerr.ErrUpstream, err))
		return
	}
	req.Header.Set("Authorization", "Bearer "+rec.AccessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		slogctx.Warn(ctx, "Userinfo request failed", "error", err)
		writeJSONError(ctx, w, serviceerr.Wrap(serviceerr.ErrUpstream, err))
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUserInfoSize))
	if err != nil {
		slogctx.Warn(ctx, "Could not read the userinfo response", "error", err)
		writeJSONError(ctx, w, serviceerr.Wrap(serviceerr.ErrUpstream, err))
		return
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := userInfoError(resp, body)
		slogctx.Info(ctx, "Userinfo request rejected", "status", resp.StatusCode, "error", msg)
		writeJSON(ctx, w, resp.StatusCode, map[string]string{"error": msg})
		return
	}

	if !json.Valid(body) {
		writeJSONError(ctx, w, serviceerr.Wrap(serviceerr.ErrUpstream, errors.New("userinfo response is not JSON")))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)

	if _, err := w.Write(body); err != nil {
		slogctx.Warn(ctx, "Could not relay the userinfo response", "error", err)
	}
}

// userInfoError picks the message of a rejected userinfo call: the error of
// a JSON body, then the error of the WWW-Authenticate challenge, then the
// status text.
func userInfoError(resp *http.Response, body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		return payload.Error
	}

	if msg := challengeParam(resp.Header.Get("WWW-Authenticate"), "error"); msg != "" {
		return msg
	}

	if text := http.StatusText(resp.StatusCode); text != "" {
		return text
	}

	return "userinfo request failed"
}

// challengeParam returns the value of param in a Bearer challenge such as
// `Bearer realm="x", error="invalid_token"`.
func challengeParam(challenge, param string) string {
	_, params, _ := strings.Cut(challenge, " ")

	for _, part := range strings.Split(params, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if ok && strings.EqualFold(key, param) {
			return strings.Trim(value, `"`)
		}
	}

	return ""
}
