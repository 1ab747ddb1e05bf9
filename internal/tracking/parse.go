package tracking

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"pawtrack/internal/domain"

	"github.com/pkg/errors"
)

// RequiredFields are checked in this order; the first one absent is reported.
var RequiredFields = []string{"deviceId", "latitude", "longitude", "gpsValid", "battery", "timestamp"}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// CheckRequired reports the first required field that is absent or null.
func CheckRequired(raw map[string]any) error {
	for _, field := range RequiredFields {
		v, ok := raw[field]
		if !ok || v == nil {
			return &domain.MissingFieldError{Field: field}
		}
		if s, isString := v.(string); isString && strings.TrimSpace(s) == "" && field == "deviceId" {
			return &domain.MissingFieldError{Field: field}
		}
	}
	return nil
}

// DeviceIDOf returns the payload's device id as a string.
func DeviceIDOf(raw map[string]any) string {
	switch v := raw["deviceId"].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	default:
		return fmt.Sprint(v)
	}
}

// ParsePayload coerces a raw report into a point. It is deliberately lenient: values are
// converted but never range checked, so out-of-range samples are stored as sent.
// ID, OwnerID and CreatedAt are left for the caller.
func ParsePayload(raw map[string]any) (domain.TelemetryPoint, error) {
	if err := CheckRequired(raw); err != nil {
		return domain.TelemetryPoint{}, err
	}

	var (
		point domain.TelemetryPoint
		err   error
	)
	point.DeviceID = DeviceIDOf(raw)

	if point.Latitude, err = toFloat(raw["latitude"]); err != nil {
		return domain.TelemetryPoint{}, fieldErr("latitude", err)
	}
	if point.Longitude, err = toFloat(raw["longitude"]); err != nil {
		return domain.TelemetryPoint{}, fieldErr("longitude", err)
	}
	if point.GPSValid, err = toBool(raw["gpsValid"]); err != nil {
		return domain.TelemetryPoint{}, fieldErr("gpsValid", err)
	}

	battery, err := toInt(raw["battery"])
	if err != nil {
		return domain.TelemetryPoint{}, fieldErr("battery", err)
	}
	point.Battery = int(battery)

	if point.Timestamp, err = toTime(raw["timestamp"]); err != nil {
		return domain.TelemetryPoint{}, fieldErr("timestamp", err)
	}

	if v, ok := raw["uptime"]; ok && v != nil {
		if point.Uptime, err = toInt(v); err != nil {
			return domain.TelemetryPoint{}, fieldErr("uptime", err)
		}
	}
	if v, ok := raw["wifiRSSI"]; ok && v != nil {
		rssi, err := toInt(v)
		if err != nil {
			return domain.TelemetryPoint{}, fieldErr("wifiRSSI", err)
		}
		point.WifiRSSI = int(rssi)
	}

	return point, nil
}

func fieldErr(field string, err error) error {
	return errors.Wrapf(domain.ErrInvalidPayload, "%s: %v", field, err)
}

func toFloat(v any) (float64, error) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, err
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, err
		}
		f = parsed
	default:
		return 0, errors.Errorf("unsupported type %T", v)
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errors.New("not a finite number")
	}
	return f, nil
}

// toInt truncates fractional input, so "85.7" becomes 85.
func toInt(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
	case string:
		if i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64); err == nil {
			return i, nil
		}
	}

	f, err := toFloat(v)
	if err != nil {
		return 0, err
	}
	// float64(math.MaxInt64) rounds up to 2^63, which no int64 holds.
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, errors.New("integer out of range")
	}
	return int64(f), nil
}

func toBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		if err != nil {
			return false, err
		}
		return parsed, nil
	default:
		f, err := toFloat(v)
		if err != nil {
			return false, err
		}
		return f != 0, nil
	}
}

// toTime accepts ISO-8601 strings, with or without zone (UTC assumed), and unix epochs
// in seconds or milliseconds.
func toTime(v any) (time.Time, error) {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), nil
			}
		}
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			return time.Time{}, errors.Errorf("unrecognised timestamp %q", s)
		}
	}

	epoch, err := toFloat(v)
	if err != nil {
		return time.Time{}, err
	}
	if epoch < 0 {
		return time.Time{}, errors.New("negative epoch")
	}
	if epoch >= 1e12 {
		return time.UnixMilli(int64(epoch)).UTC(), nil
	}
	sec, frac := math.Modf(epoch)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC(), nil
}
