package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

const MAX_BODY_BYTES = 1 << 20

const (
	msgInvalidRequest = "Invalid request. Provide percentage and type."
	msgCouldNotGen    = "Could not generate image"
	msgOriginDenied   = "Origin not allowed"
)

type generateRequest struct {
	Percentage *float64 `json:"percentage"`
	Type       Category `json:"type"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func newRouter(cfg Config, morpher *Morpher) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/generate_image", generateHandler(cfg, morpher)).
		Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/healthz", healthHandler).Methods(http.MethodGet)

	r.Use(requestLogger, corsOrigin(cfg.AllowedOrigin), mux.CORSMethodMiddleware(r), preflight)
	return r
}

func generateHandler(cfg Config, morpher *Morpher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		body := http.MaxBytesReader(w, r.Body, MAX_BODY_BYTES)
		if err := decodeStrict(body, &req); err != nil || req.Percentage == nil || !morpher.knows(req.Type) {
			writeError(w, http.StatusBadRequest, msgInvalidRequest)
			return
		}

		percentage := *req.Percentage
		if percentage < cfg.minPercentage() {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Enter minimum %s%%", formatPercentage(cfg.minPercentage())))
			return
		}
		if percentage > cfg.maxPercentage() {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Enter maximum %s%%", formatPercentage(cfg.maxPercentage())))
			return
		}

		path, err := morpher.Generate(percentage, req.Type)
		if errors.Is(err, ErrAssetMissing) {
			log.Error().Err(err).Str("type", string(req.Type)).Float64("percentage", percentage).Msg("reference image missing")
			writeError(w, http.StatusInternalServerError, msgCouldNotGen)
			return
		}
		if err != nil {
			log.Error().Err(err).Str("type", string(req.Type)).Float64("percentage", percentage).Msg("error generating image")
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		img, err := os.ReadFile(path)
		if err != nil {
			log.Error().Err(err).Str("path", path).Msg("error reading generated image")
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Disposition",
			fmt.Sprintf(`attachment; filename="elongation_%s.png"`, formatPercentage(percentage)))
		w.Write(img)
	}
}

// decodeStrict decodes exactly one JSON value; trailing data is an error.
func decodeStrict(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("unexpected data after JSON body")
	}
	return nil
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: msg})
}

// corsOrigin admits requests without an Origin header and requests from
// allowed. Everything else is refused before reaching a handler.
func corsOrigin(allowed string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				if origin != allowed {
					log.Warn().Str("origin", origin).Str("path", r.URL.Path).Msg("rejected cross-origin request")
					writeError(w, http.StatusForbidden, msgOriginDenied)
					return
				}
				w.Header().Set("Access-Control-Allow-Origin", allowed)
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
				w.Header().Set("Access-Control-Expose-Headers", "Content-Disposition")
				w.Header().Add("Vary", "Origin")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// preflight answers OPTIONS once the CORS headers are in place.
func preflight(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
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

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}
