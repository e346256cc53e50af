package cli

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/mchmarny/sohma/pkg/score"
	"github.com/mchmarny/sohma/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	headerRequestID = "X-Request-ID"
	headerServer    = "Server"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeDetail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

func healthzHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func echoHandler(maxBodyBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := readPayload(w, r, maxBodyBytes)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":         true,
			"session_id": payload[score.FieldSessionID],
		})
	}
}

func predictHandler(scorer *score.Scorer, maxBodyBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := readPayload(w, r, maxBodyBytes)
		if !ok {
			return
		}

		_, span := telemetry.Tracer().Start(r.Context(), "score")
		defer span.End()

		res, err := scorer.Score(payload)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Warn("scoring failed",
				"request_id", r.Header.Get(headerRequestID),
				"error", err,
			)
			writeDetail(w, http.StatusBadRequest, err.Error())
			return
		}

		span.SetAttributes(
			attribute.String("sohma.model_version", score.ModelVersion),
			attribute.String("sohma.session_id", res.SessionID),
			attribute.Float64("sohma.stress", res.Prediction.Stress),
			attribute.Float64("sohma.confidence", res.Prediction.Confidence),
		)
		slog.Debug("scored",
			"request_id", r.Header.Get(headerRequestID),
			"session_id", res.SessionID,
			"stress", res.Prediction.Stress,
			"confidence", res.Prediction.Confidence,
		)

		writeJSON(w, http.StatusOK, res)
	}
}

// readPayload decodes the request body into a JSON object. On failure it
// writes the error response and returns false.
func readPayload(w http.ResponseWriter, r *http.Request, maxBodyBytes int64) (map[string]any, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	payload, err := score.DecodePayload(r.Body)
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeDetail(w, http.StatusRequestEntityTooLarge, err.Error())
			return nil, false
		}
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return nil, false
	}
	return payload, true
}

// withRequestID reuses the caller's X-Request-ID or assigns a new one, and
// echoes it on the response.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(headerRequestID, id)
		}
		w.Header().Set(headerRequestID, id)
		w.Header().Set(headerServer, appName+"/"+version)
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		slog.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start).String(),
			"request_id", r.Header.Get(headerRequestID),
		)
	})
}
