package adapthttp

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path"
	"strings"

	"quizfest/internal/app"
	"quizfest/internal/logger"

	"go.uber.org/zap"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

// writeAppError maps application errors to status codes. Anything unknown is
// logged and reported as a generic 500.
func (s *Server) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *app.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "validation failed", "details": ve.Fields})
	case errors.Is(err, app.ErrInvalidCredentials),
		errors.Is(err, app.ErrInvalidSession),
		errors.Is(err, app.ErrTwoFactorRequired),
		errors.Is(err, app.ErrInvalidTwoFactor),
		errors.Is(err, app.ErrInvalidPassword):
		writeError(w, http.StatusUnauthorized, unwrapSentinel(err))
	case errors.Is(err, app.ErrTwoFactorNotEnabled):
		writeError(w, http.StatusBadRequest, app.ErrTwoFactorNotEnabled)
	case errors.Is(err, app.ErrBulkListingDisabled):
		writeError(w, http.StatusForbidden, app.ErrBulkListingDisabled)
	case errors.Is(err, app.ErrNotFound):
		writeError(w, http.StatusNotFound, app.ErrNotFound)
	case errors.Is(err, app.ErrDuplicate):
		writeJSON(w, http.StatusConflict, map[string]any{"error": "already registered"})
	case errors.Is(err, app.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, app.ErrRateLimited)
	default:
		logger.From(r.Context()).Error("request failed", logger.Path(r.URL.Path), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
	}
}

// unwrapSentinel returns the auth sentinel inside err so that wrapped
// details never reach the client.
func unwrapSentinel(err error) error {
	for _, s := range []error{
		app.ErrInvalidCredentials, app.ErrInvalidSession, app.ErrTwoFactorRequired,
		app.ErrInvalidTwoFactor, app.ErrInvalidPassword,
	} {
		if errors.Is(err, s) {
			return s
		}
	}
	return err
}

// parseJSON decodes the body into dst. Decode failures come back as an
// *app.ValidationError naming the offending field, or "body" when the
// payload as a whole is unusable.
func (s *Server) parseJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return decodeError(err)
	}
	return nil
}

const unknownFieldPrefix = "json: unknown field "

func decodeError(err error) error {
	field, msg := "body", "malformed JSON"

	var typeErr *json.UnmarshalTypeError
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &typeErr):
		msg = "must be " + jsonKind(typeErr.Type.Kind().String())
		if typeErr.Field != "" {
			field = typeErr.Field
		}
	case errors.As(err, &maxErr):
		msg = fmt.Sprintf("must not exceed %d bytes", maxErr.Limit)
	case errors.Is(err, io.EOF):
		msg = "is required"
	case strings.HasPrefix(err.Error(), unknownFieldPrefix):
		field = strings.Trim(strings.TrimPrefix(err.Error(), unknownFieldPrefix), `"`)
		msg = "is not allowed"
	}
	return &app.ValidationError{Fields: map[string]string{field: msg}}
}

func jsonKind(kind string) string {
	switch kind {
	case "string":
		return "a string"
	case "bool":
		return "a boolean"
	case "struct", "map":
		return "an object"
	case "slice", "array":
		return "an array"
	default:
		return "a number"
	}
}

// clientIP returns the address used for rate limiting and audit. With a
// trusted proxy, RealIP has already rewritten RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func withNoCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

func spaFromDisk(dir string) http.Handler {
	fileServer := http.FileServer(http.Dir(dir))
	indexPath := path.Join(dir, "index.html")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqPath := path.Clean(r.URL.Path)
		if reqPath == "/" {
			http.ServeFile(w, r, indexPath)
			return
		}

		staticPath := path.Join(dir, reqPath)
		if _, err := os.Stat(staticPath); err == nil {
			fileServer.ServeHTTP(w, r)
			return
		}

		http.ServeFile(w, r, indexPath)
	})
}
