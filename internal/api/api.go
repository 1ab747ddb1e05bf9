package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"pawtrack/internal/auth"
	"pawtrack/internal/domain"
	"pawtrack/internal/tracking"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const maxIngestBody = 64 << 10

type ctxKey int

const ownerKey ctxKey = iota

// Services are the telemetry core components the handlers call into.
type Services struct {
	Registry *tracking.Registry
	Ingestor *tracking.Ingestor
	History  *tracking.History
	Live     *tracking.Live
}

type API struct {
	log      *zap.SugaredLogger
	services Services
	verifier *auth.TokenVerifier
	location *time.Location
	validate *validator.Validate
}

// NewAPI builds the HTTP layer. location is used to read date-only query parameters.
func NewAPI(log *zap.SugaredLogger, services Services, verifier *auth.TokenVerifier, location *time.Location) *API {
	if location == nil {
		location = time.UTC
	}
	return &API{
		log:      log,
		services: services,
		verifier: verifier,
		location: location,
		validate: validator.New(),
	}
}

func (api *API) Routes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(api.LoggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		// Collars authenticate with the shared ingestion key, not an owner token.
		r.Post("/gps/track", api.TrackLocation)

		r.Group(func(r chi.Router) {
			r.Use(api.RequireOwner)

			r.Get("/gps/history", api.GetHistory)
			r.Get("/gps/live", api.GetLive)

			r.Get("/devices", api.ListDevices)
			r.Post("/devices", api.RegisterDevice)
			r.Patch("/devices/{deviceId}", api.UpdateDevice)
		})
	})

	return r
}

// RequireOwner resolves the bearer token to an owner id and fails closed.
func (api *API) RequireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := auth.BearerToken(r.Header.Get("Authorization"))
		if !ok {
			respondWithError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		ownerID, err := api.verifier.OwnerID(token)
		if err != nil {
			api.log.Debugw("rejected owner token", "error", err)
			respondWithError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ownerKey, ownerID)))
	})
}

func ownerFrom(ctx context.Context) string {
	ownerID, _ := ctx.Value(ownerKey).(string)
	return ownerID
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Field   string `json:"field,omitempty"`
}

func respondWithJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondWithError(w http.ResponseWriter, status int, message string) {
	respondWithJSON(w, status, errorResponse{Error: message})
}

// respondWithDomainError maps the core's error taxonomy onto status codes. Storage
// details stay in the log.
func (api *API) respondWithDomainError(w http.ResponseWriter, log *zap.SugaredLogger, err error) {
	var (
		missing    *domain.MissingFieldError
		storageErr *domain.StorageError
	)

	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		respondWithError(w, http.StatusUnauthorized, "invalid API key")
	case errors.As(err, &missing):
		respondWithJSON(w, http.StatusBadRequest, errorResponse{Error: missing.Error(), Field: missing.Field})
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrInvalidRange):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrDeviceNotFound):
		respondWithError(w, http.StatusNotFound, domain.ErrDeviceNotFound.Error())
	case errors.Is(err, domain.ErrAccessDenied):
		respondWithError(w, http.StatusNotFound, domain.ErrAccessDenied.Error())
	case errors.Is(err, domain.ErrNoTelemetry):
		respondWithError(w, http.StatusNotFound, domain.ErrNoTelemetry.Error())
	case errors.Is(err, domain.ErrDuplicateDevice):
		respondWithError(w, http.StatusConflict, domain.ErrDuplicateDevice.Error())
	case errors.As(err, &storageErr), errors.Is(err, domain.ErrInvalidPayload):
		log.Errorf("request failed: %v", err)
		respondWithError(w, http.StatusInternalServerError, "internal error")
	default:
		log.Errorf("unexpected error: %v", err)
		respondWithError(w, http.StatusInternalServerError, "internal error")
	}
}

func (api *API) LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		defer func() {
			api.log.Infow("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytesWritten", ww.BytesWritten(),
				"duration", time.Since(start),
				"requestId", middleware.GetReqID(r.Context()),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

type wrapResponseWriter struct {
	http.ResponseWriter
	status       int
	bytesWritten int
}

func NewWrapResponseWriter(w http.ResponseWriter, protoMajor int) *wrapResponseWriter {
	// Default the status code to 200
	return &wrapResponseWriter{ResponseWriter: w, status: http.StatusOK}
}

func (wr *wrapResponseWriter) WriteHeader(code int) {
	wr.status = code
	wr.ResponseWriter.WriteHeader(code)
}

func (wr *wrapResponseWriter) Write(b []byte) (int, error) {
	size, err := wr.ResponseWriter.Write(b)
	wr.bytesWritten += size
	return size, err
}

func (wr *wrapResponseWriter) Status() int {
	return wr.status
}

func (wr *wrapResponseWriter) BytesWritten() int {
	return wr.bytesWritten
}
