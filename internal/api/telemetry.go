package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pawtrack/internal/domain"
	"pawtrack/internal/tracking"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
)

// localLayouts are zone-less datetimes, read in the request's time zone.
var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

type HistoryParams struct {
	DeviceID  string `validate:"required"`
	StartDate string
	EndDate   string
	Limit     string `validate:"omitempty,number"`
	TZ        string `validate:"omitempty,timezone"`
}

type LiveParams struct {
	DeviceID string
	Latest   string `validate:"omitempty,oneof=true false"`
	Limit    string `validate:"omitempty,number"`
}

type trackResponse struct {
	Success bool `json:"success"`
	tracking.IngestResult
}

type historyResponse struct {
	Success     bool `json:"success"`
	TotalPoints int  `json:"totalPoints"`
	domain.HistoryResult
}

type listResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Count   int         `json:"count"`
}

// TrackLocation accepts one telemetry sample from a collar. The key is checked
// before the body is read.
func (api *API) TrackLocation(w http.ResponseWriter, r *http.Request) {
	log := api.log.With("requestId", middleware.GetReqID(r.Context()))

	apiKey := r.Header.Get("X-API-Key")
	if !api.services.Ingestor.Authorize(apiKey) {
		respondWithError(w, http.StatusUnauthorized, "invalid API key")
		return
	}

	raw, err := decodePayload(http.MaxBytesReader(w, r.Body, maxIngestBody))
	if err != nil {
		log.Debugw("undecodable telemetry body", "error", err)
		respondWithError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, err := api.services.Ingestor.Ingest(r.Context(), apiKey, raw)
	if err != nil {
		log.Warnw("telemetry rejected", "deviceId", tracking.DeviceIDOf(raw), "error", err)
		api.respondWithDomainError(w, log, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, trackResponse{Success: true, IngestResult: result})
}

func (api *API) GetHistory(w http.ResponseWriter, r *http.Request) {
	log := api.log.With("requestId", middleware.GetReqID(r.Context()))

	params := HistoryParams{
		DeviceID:  r.URL.Query().Get("deviceId"),
		StartDate: r.URL.Query().Get("startDate"),
		EndDate:   r.URL.Query().Get("endDate"),
		Limit:     r.URL.Query().Get("limit"),
		TZ:        r.URL.Query().Get("tz"),
	}
	if err := api.validate.Struct(params); err != nil {
		respondWithError(w, http.StatusBadRequest, invalidParams(err))
		return
	}

	loc := api.location
	if params.TZ != "" {
		// validated above
		loc, _ = time.LoadLocation(params.TZ)
	}

	start, end, err := parseDates(params.StartDate, params.EndDate, loc)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	limit, err := parseLimit(params.Limit)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := api.services.History.GetHistory(r.Context(), tracking.HistoryQuery{
		DeviceID: params.DeviceID,
		OwnerID:  ownerFrom(r.Context()),
		Start:    start,
		End:      end,
		Limit:    limit,
		Location: loc,
	})
	if err != nil {
		api.respondWithDomainError(w, log, err)
		return
	}

	respondWithJSON(w, http.StatusOK, historyResponse{
		Success:       true,
		TotalPoints:   len(result.Points),
		HistoryResult: result,
	})
}

// GetLive returns the newest point (latest=true, the default), the most recent
// points, or with no deviceId the newest point of every device the owner has.
func (api *API) GetLive(w http.ResponseWriter, r *http.Request) {
	log := api.log.With("requestId", middleware.GetReqID(r.Context()))
	ownerID := ownerFrom(r.Context())

	params := LiveParams{
		DeviceID: r.URL.Query().Get("deviceId"),
		Latest:   r.URL.Query().Get("latest"),
		Limit:    r.URL.Query().Get("limit"),
	}
	if err := api.validate.Struct(params); err != nil {
		respondWithError(w, http.StatusBadRequest, invalidParams(err))
		return
	}

	if params.DeviceID == "" {
		fleet, err := api.services.Live.GetFleetLatest(r.Context(), ownerID)
		if err != nil {
			api.respondWithDomainError(w, log, err)
			return
		}
		respondWithJSON(w, http.StatusOK, listResponse{Success: true, Data: fleet, Count: len(fleet)})
		return
	}

	if params.Latest != "false" {
		point, err := api.services.Live.GetLatest(r.Context(), ownerID, params.DeviceID)
		switch {
		case errors.Is(err, domain.ErrNoTelemetry):
			respondWithJSON(w, http.StatusOK, listResponse{Success: true, Data: nil, Count: 0})
		case err != nil:
			api.respondWithDomainError(w, log, err)
		default:
			respondWithJSON(w, http.StatusOK, listResponse{Success: true, Data: point, Count: 1})
		}
		return
	}

	limit, err := parseLimit(params.Limit)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	points, err := api.services.Live.GetRecent(r.Context(), ownerID, params.DeviceID, limit)
	if err != nil {
		api.respondWithDomainError(w, log, err)
		return
	}
	respondWithJSON(w, http.StatusOK, listResponse{Success: true, Data: points, Count: len(points)})
}

// decodePayload keeps numbers as json.Number so coercion sees what the collar sent.
func decodePayload(body io.Reader) (map[string]any, error) {
	dec := json.NewDecoder(body)
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, errors.Wrap(err, "decode payload")
	}
	if raw == nil {
		return nil, errors.New("payload must be a JSON object")
	}
	return raw, nil
}

// parseDates reads optional window bounds. A bare date means the whole day in loc,
// so an end date includes everything up to its last instant.
func parseDates(startStr, endStr string, loc *time.Location) (*time.Time, *time.Time, error) {
	start, err := parseBound(startStr, loc, false)
	if err != nil {
		return nil, nil, errors.Wrap(err, "invalid startDate")
	}
	end, err := parseBound(endStr, loc, true)
	if err != nil {
		return nil, nil, errors.Wrap(err, "invalid endDate")
	}
	return start, end, nil
}

func parseBound(s string, loc *time.Location, endOfDay bool) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		t = t.UTC()
		return &t, nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}

	day, err := time.ParseInLocation(tracking.DateKeyLayout, s, loc)
	if err != nil {
		return nil, errors.Errorf("expected YYYY-MM-DD or an ISO 8601 datetime, got %q", s)
	}
	if endOfDay {
		day = day.AddDate(0, 0, 1).Add(-time.Millisecond)
	}
	t := day.UTC()
	return &t, nil
}

func parseLimit(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.Errorf("invalid limit %q", s)
	}
	return limit, nil
}

func invalidParams(err error) string {
	return "invalid query parameters: " + err.Error()
}
