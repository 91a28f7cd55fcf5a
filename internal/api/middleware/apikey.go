package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/fernet/fernet-go"

	"github.com/ndewijer/Disclosure-Ledger/internal/api/response"
)

// TimeTokenTTL is how long a token from GenerateTimeToken is accepted.
const TimeTokenTTL = 5 * time.Minute

const timeTokenMessage = "disclosure-ledger"

// APIKeyMiddleware guards mutating endpoints. A request must carry the
// INTERNAL_API_KEY in X-API-Key and a fresh token from GenerateTimeToken in
// X-Time-Token, so a captured request cannot be replayed later.
func APIKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		expected := os.Getenv("INTERNAL_API_KEY")
		if expected == "" {
			slog.Error("INTERNAL_API_KEY is not set, refusing protected request", "path", r.URL.Path)
			response.RespondError(w, http.StatusInternalServerError, "server misconfigured", "Authentication not loaded")
			return
		}

		provided := r.Header.Get("X-API-Key")
		if provided == "" {
			response.RespondError(w, http.StatusUnauthorized, "unauthorized", "Missing API key")
			return
		}
		if subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) != 1 {
			response.RespondError(w, http.StatusUnauthorized, "unauthorized", "Invalid API key")
			return
		}

		token := r.Header.Get("X-Time-Token")
		if token == "" {
			response.RespondError(w, http.StatusUnauthorized, "unauthorized", "Missing Time token")
			return
		}
		if fernet.VerifyAndDecrypt([]byte(token), TimeTokenTTL, []*fernet.Key{timeTokenKey(expected)}) == nil {
			response.RespondError(w, http.StatusUnauthorized, "unauthorized", "Time token is invalid or expired")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// GenerateTimeToken returns a token valid for TimeTokenTTL, signed with a key
// derived from apiKey.
func GenerateTimeToken(apiKey string) string {
	tok, err := fernet.EncryptAndSign([]byte(timeTokenMessage), timeTokenKey(apiKey))
	if err != nil {
		return ""
	}
	return string(tok)
}

func timeTokenKey(apiKey string) *fernet.Key {
	k := fernet.Key(sha256.Sum256([]byte(apiKey)))
	return &k
}
