package tracking

import (
	"context"
	"math"
	"sort"
	"time"

	"pawtrack/internal/domain"
	"pawtrack/internal/ports"

	"go.uber.org/zap"
)

const (
	DefaultHistoryLimit = 1000
	DateKeyLayout       = "2006-01-02"
	earthRadiusKm       = 6371.0
)

// trackColors cycle per day so the map can tell consecutive days apart.
var trackColors = []string{"#e6194b", "#3cb44b", "#4363d8", "#f58231", "#911eb4", "#42d4f4", "#f032e6"}

// HistoryQuery selects a device's track over an optional inclusive window.
type HistoryQuery struct {
	DeviceID string
	OwnerID  string
	Start    *time.Time
	End      *time.Time
	Limit    int
	// Location decides which calendar day a point belongs to; nil means the server zone.
	Location *time.Location
}

// History reads telemetry back for map display. Unlike ingestion it is strict:
// points that cannot be drawn are dropped.
type History struct {
	log       *zap.SugaredLogger
	registry  *Registry
	telemetry ports.TelemetryRepository
	maxLimit  int
	timeout   time.Duration
	location  *time.Location
}

func NewHistory(log *zap.SugaredLogger, registry *Registry, telemetry ports.TelemetryRepository, maxLimit int, timeout time.Duration, location *time.Location) *History {
	if location == nil {
		location = time.UTC
	}
	return &History{
		log:       log,
		registry:  registry,
		telemetry: telemetry,
		maxLimit:  maxLimit,
		timeout:   timeout,
		location:  location,
	}
}

func (h *History) GetHistory(ctx context.Context, q HistoryQuery) (domain.HistoryResult, error) {
	if q.Start != nil && q.End != nil && q.Start.After(*q.End) {
		return domain.HistoryResult{}, domain.ErrInvalidRange
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	if _, err := h.registry.ownedDevice(ctx, q.OwnerID, q.DeviceID); err != nil {
		return domain.HistoryResult{}, err
	}

	filter := domain.TelemetryFilter{
		DeviceID:          q.DeviceID,
		OnlyValidGPS:      true,
		ExcludeZeroCoords: true,
		CreatedFrom:       q.Start,
		CreatedTo:         q.End,
	}

	fetched, err := h.telemetry.Find(ctx, filter, domain.OldestFirst, ClampLimit(q.Limit, h.maxLimit))
	if err != nil {
		return domain.HistoryResult{}, &domain.StorageError{Op: "find telemetry", Err: err}
	}

	points := make([]domain.TelemetryPoint, 0, len(fetched))
	for _, p := range fetched {
		if IsDisplayable(p) {
			points = append(points, p)
		}
	}
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].CreatedAt.Before(points[j].CreatedAt)
	})

	if dropped := len(fetched) - len(points); dropped > 0 {
		h.log.Debugw("dropped undisplayable points", "deviceId", q.DeviceID, "dropped", dropped)
	}

	loc := q.Location
	if loc == nil {
		loc = h.location
	}
	grouped, dates := GroupByDate(points, loc)

	return domain.HistoryResult{
		DeviceID:      q.DeviceID,
		DateRange:     domain.DateRange{Start: q.Start, End: q.End},
		Points:        points,
		GroupedByDate: grouped,
		Tracks:        BuildTracks(grouped, dates),
		Summary:       Summarize(points, dates),
	}, nil
}

// ClampLimit applies the default for non-positive limits and caps the rest at ceiling.
func ClampLimit(limit, ceiling int) int {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if ceiling > 0 && limit > ceiling {
		limit = ceiling
	}
	return limit
}

// IsDisplayable is the read-side validity check. Points stored under the lenient write
// path may fail it.
func IsDisplayable(p domain.TelemetryPoint) bool {
	switch {
	case !p.GPSValid:
		return false
	case p.Latitude == 0 || p.Longitude == 0:
		return false
	case math.IsNaN(p.Latitude) || math.IsNaN(p.Longitude):
		return false
	case math.Abs(p.Latitude) > 90 || math.Abs(p.Longitude) > 180:
		return false
	}
	return true
}

// GroupByDate buckets points by the calendar day of CreatedAt in loc. Order within a day
// follows the input, and dates are listed in the order first seen.
func GroupByDate(points []domain.TelemetryPoint, loc *time.Location) (map[string][]domain.TelemetryPoint, []string) {
	grouped := make(map[string][]domain.TelemetryPoint)
	dates := []string{}

	for _, p := range points {
		key := p.CreatedAt.In(loc).Format(DateKeyLayout)
		if _, seen := grouped[key]; !seen {
			dates = append(dates, key)
		}
		grouped[key] = append(grouped[key], p)
	}

	return grouped, dates
}

// Summarize reports the ends of the sorted point list; both are nil when it is empty.
func Summarize(points []domain.TelemetryPoint, dates []string) domain.HistorySummary {
	summary := domain.HistorySummary{
		DatesWithData: dates,
		TotalPoints:   len(points),
	}
	if len(points) > 0 {
		first, last := points[0], points[len(points)-1]
		summary.FirstPoint = &first
		summary.LastPoint = &last
	}
	return summary
}

// BuildTracks derives per-day statistics in date order.
func BuildTracks(grouped map[string][]domain.TelemetryPoint, dates []string) []domain.DayTrack {
	tracks := make([]domain.DayTrack, 0, len(dates))

	for i, date := range dates {
		points := grouped[date]
		if len(points) == 0 {
			continue
		}

		track := domain.DayTrack{
			Date:       date,
			Color:      trackColors[i%len(trackColors)],
			Points:     points,
			PointCount: len(points),
			StartedAt:  points[0].CreatedAt,
			EndedAt:    points[len(points)-1].CreatedAt,
			MinBattery: points[0].Battery,
			MaxBattery: points[0].Battery,
		}

		for j, p := range points {
			track.MinBattery = min(track.MinBattery, p.Battery)
			track.MaxBattery = max(track.MaxBattery, p.Battery)
			if j > 0 {
				track.DistanceKm += haversineKm(points[j-1], p)
			}
		}
		track.DistanceKm = math.Round(track.DistanceKm*1000) / 1000

		tracks = append(tracks, track)
	}

	return tracks
}

func haversineKm(a, b domain.TelemetryPoint) float64 {
	lat1, lat2 := radians(a.Latitude), radians(b.Latitude)
	dLat := lat2 - lat1
	dLon := radians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
