package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"pawtrack/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func validPayload() map[string]any {
	return map[string]any{
		"deviceId":  testDevice,
		"latitude":  "14.5995",
		"longitude": json.Number("120.9842"),
		"gpsValid":  true,
		"battery":   "85",
		"timestamp": "2026-10-16T08:59:58Z",
		"uptime":    json.Number("3600"),
		"wifiRSSI":  -67.0,
	}
}

func TestIngest_StoresPointAndTouchesDevice(t *testing.T) {
	f := newFixture()

	f.devices.On("FindByDeviceID", mock.Anything, testDevice).Return(activeDevice(), nil)
	f.telemetry.On("Insert", mock.Anything, mock.MatchedBy(func(p domain.TelemetryPoint) bool {
		return p.ID == "point-1" &&
			p.DeviceID == testDevice &&
			p.OwnerID == testOwner &&
			p.Latitude == 14.5995 &&
			p.Longitude == 120.9842 &&
			p.GPSValid &&
			p.Battery == 85 &&
			p.Uptime == 3600 &&
			p.WifiRSSI == -67 &&
			p.Timestamp.Equal(time.Date(2026, 10, 16, 8, 59, 58, 0, time.UTC)) &&
			p.CreatedAt.Equal(fixedNow)
	})).Return("point-1", nil).Once()
	f.devices.On("UpdateLiveness", mock.Anything, testDevice, 85, fixedNow).Return(nil).Once()
	f.cache.On("Set", mock.Anything, mock.Anything).Return(nil).Once()

	result, err := f.ingestor.Ingest(context.Background(), testAPIKey, validPayload())

	require.NoError(t, err)
	assert.Equal(t, IngestResult{ID: "point-1", DeviceOwner: testOwner}, result)
	f.telemetry.AssertExpectations(t)
	f.devices.AssertExpectations(t)
	f.cache.AssertExpectations(t)
}

func TestIngest_BadKeyRejectedBeforeAnything(t *testing.T) {
	f := newFixture()

	_, err := f.ingestor.Ingest(context.Background(), "wrong", validPayload())
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = f.ingestor.Ingest(context.Background(), "", nil)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	f.devices.AssertNotCalled(t, "FindByDeviceID", mock.Anything, mock.Anything)
	f.telemetry.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestIngest_UnconfiguredKeyFailsClosed(t *testing.T) {
	f := newFixture()
	f.ingestor.apiKey = nil

	assert.False(t, f.ingestor.Authorize(""))
	_, err := f.ingestor.Ingest(context.Background(), "", validPayload())
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestIngest_MissingFieldsWriteNothing(t *testing.T) {
	for _, field := range RequiredFields {
		t.Run(field, func(t *testing.T) {
			f := newFixture()
			payload := validPayload()
			delete(payload, field)

			_, err := f.ingestor.Ingest(context.Background(), testAPIKey, payload)

			var missing *domain.MissingFieldError
			require.ErrorAs(t, err, &missing)
			assert.Equal(t, field, missing.Field)
			f.devices.AssertNotCalled(t, "FindByDeviceID", mock.Anything, mock.Anything)
			f.telemetry.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
			f.devices.AssertNotCalled(t, "UpdateLiveness", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestIngest_NullAndEmptyCountAsMissing(t *testing.T) {
	f := newFixture()

	payload := validPayload()
	payload["battery"] = nil
	_, err := f.ingestor.Ingest(context.Background(), testAPIKey, payload)
	var missing *domain.MissingFieldError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "battery", missing.Field)

	payload = validPayload()
	payload["deviceId"] = "  "
	_, err = f.ingestor.Ingest(context.Background(), testAPIKey, payload)
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "deviceId", missing.Field)
}

func TestIngest_UnknownOrInactiveDevice(t *testing.T) {
	f := newFixture()
	inactive := activeDevice()
	inactive.IsActive = false

	f.devices.On("FindByDeviceID", mock.Anything, "ghost").Return(domain.Device{}, domain.ErrDeviceNotFound)
	f.devices.On("FindByDeviceID", mock.Anything, testDevice).Return(inactive, nil)

	payload := validPayload()
	payload["deviceId"] = "ghost"
	_, err := f.ingestor.Ingest(context.Background(), testAPIKey, payload)
	assert.ErrorIs(t, err, domain.ErrDeviceNotFound)

	_, err = f.ingestor.Ingest(context.Background(), testAPIKey, validPayload())
	assert.ErrorIs(t, err, domain.ErrDeviceNotFound)

	f.telemetry.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestIngest_OutOfRangeValuesAreStored(t *testing.T) {
	f := newFixture()
	payload := validPayload()
	payload["latitude"] = 123.4
	payload["longitude"] = 0
	payload["battery"] = 250
	payload["gpsValid"] = "false"

	f.devices.On("FindByDeviceID", mock.Anything, testDevice).Return(activeDevice(), nil)
	f.telemetry.On("Insert", mock.Anything, mock.MatchedBy(func(p domain.TelemetryPoint) bool {
		return p.Latitude == 123.4 && p.Longitude == 0 && p.Battery == 250 && !p.GPSValid
	})).Return("point-1", nil)
	f.devices.On("UpdateLiveness", mock.Anything, testDevice, 100, fixedNow).Return(nil)
	f.cache.On("Set", mock.Anything, mock.Anything).Return(nil)

	_, err := f.ingestor.Ingest(context.Background(), testAPIKey, payload)

	require.NoError(t, err)
	f.telemetry.AssertExpectations(t)
}

func TestIngest_CoercionFailure(t *testing.T) {
	f := newFixture()
	payload := validPayload()
	payload["latitude"] = "north-ish"

	f.devices.On("FindByDeviceID", mock.Anything, testDevice).Return(activeDevice(), nil)

	_, err := f.ingestor.Ingest(context.Background(), testAPIKey, payload)

	assert.ErrorIs(t, err, domain.ErrInvalidPayload)
	f.telemetry.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestIngest_StorageFailureSkipsLiveness(t *testing.T) {
	f := newFixture()

	f.devices.On("FindByDeviceID", mock.Anything, testDevice).Return(activeDevice(), nil)
	f.telemetry.On("Insert", mock.Anything, mock.Anything).Return("", errors.New("write concern timeout"))

	_, err := f.ingestor.Ingest(context.Background(), testAPIKey, validPayload())

	var storageErr *domain.StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "insert telemetry", storageErr.Op)
	f.devices.AssertNotCalled(t, "UpdateLiveness", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.cache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything)
}

func TestIngest_LivenessFailureKeepsPoint(t *testing.T) {
	f := newFixture()

	f.devices.On("FindByDeviceID", mock.Anything, testDevice).Return(activeDevice(), nil)
	f.telemetry.On("Insert", mock.Anything, mock.Anything).Return("point-1", nil)
	f.devices.On("UpdateLiveness", mock.Anything, testDevice, 85, fixedNow).Return(errors.New("primary stepped down"))
	f.cache.On("Set", mock.Anything, mock.Anything).Return(errors.New("redis down"))

	result, err := f.ingestor.Ingest(context.Background(), testAPIKey, validPayload())

	require.NoError(t, err)
	assert.Equal(t, "point-1", result.ID)
}

func TestParsePayload_Coercions(t *testing.T) {
	testCases := []struct {
		name   string
		modify func(map[string]any)
		check  func(t *testing.T, p domain.TelemetryPoint)
	}{
		{
			name:   "fractional battery truncates",
			modify: func(m map[string]any) { m["battery"] = "85.7" },
			check:  func(t *testing.T, p domain.TelemetryPoint) { assert.Equal(t, 85, p.Battery) },
		},
		{
			name: "optional fields default to zero",
			modify: func(m map[string]any) {
				delete(m, "uptime")
				delete(m, "wifiRSSI")
			},
			check: func(t *testing.T, p domain.TelemetryPoint) {
				assert.Zero(t, p.Uptime)
				assert.Zero(t, p.WifiRSSI)
			},
		},
		{
			name:   "numeric gps flag",
			modify: func(m map[string]any) { m["gpsValid"] = json.Number("0") },
			check:  func(t *testing.T, p domain.TelemetryPoint) { assert.False(t, p.GPSValid) },
		},
		{
			name:   "string gps flag",
			modify: func(m map[string]any) { m["gpsValid"] = "1" },
			check:  func(t *testing.T, p domain.TelemetryPoint) { assert.True(t, p.GPSValid) },
		},
		{
			name:   "zoneless timestamp is utc",
			modify: func(m map[string]any) { m["timestamp"] = "2026-10-16T08:00:00.250" },
			check: func(t *testing.T, p domain.TelemetryPoint) {
				assert.True(t, p.Timestamp.Equal(time.Date(2026, 10, 16, 8, 0, 0, 250e6, time.UTC)))
			},
		},
		{
			name:   "offset timestamp",
			modify: func(m map[string]any) { m["timestamp"] = "2026-10-16T16:00:00+08:00" },
			check: func(t *testing.T, p domain.TelemetryPoint) {
				assert.True(t, p.Timestamp.Equal(time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)))
			},
		},
		{
			name:   "epoch milliseconds",
			modify: func(m map[string]any) { m["timestamp"] = json.Number("1792137600000") },
			check: func(t *testing.T, p domain.TelemetryPoint) {
				assert.Equal(t, int64(1792137600), p.Timestamp.Unix())
			},
		},
		{
			name:   "epoch seconds as string",
			modify: func(m map[string]any) { m["timestamp"] = "1792137600" },
			check: func(t *testing.T, p domain.TelemetryPoint) {
				assert.Equal(t, int64(1792137600), p.Timestamp.Unix())
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			payload := validPayload()
			tc.modify(payload)

			point, err := ParsePayload(payload)
			require.NoError(t, err)
			tc.check(t, point)
		})
	}
}

func TestParsePayload_Rejects(t *testing.T) {
	testCases := map[string]map[string]any{
		"non numeric longitude": {"longitude": "west"},
		"nan latitude":          {"latitude": "NaN"},
		"infinite latitude":     {"latitude": "+Inf"},
		"bad gps flag":          {"gpsValid": "maybe"},
		"bad timestamp":         {"timestamp": "yesterday"},
		"bad uptime":            {"uptime": "long"},
		"object battery":        {"battery": map[string]any{"level": 3}},
		"battery past int64":    {"battery": json.Number("9223372036854775808")},
		"uptime past int64":     {"uptime": "9.3e18"},
	}

	for name, overrides := range testCases {
		t.Run(name, func(t *testing.T) {
			payload := validPayload()
			for k, v := range overrides {
				payload[k] = v
			}

			_, err := ParsePayload(payload)
			assert.ErrorIs(t, err, domain.ErrInvalidPayload)
		})
	}
}

func TestToInt_Bounds(t *testing.T) {
	n, err := toInt(json.Number("9223372036854775807"))
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), n)

	n, err = toInt("-9223372036854775808")
	require.NoError(t, err)
	assert.Equal(t, int64(math.MinInt64), n)

	for _, v := range []any{json.Number("9223372036854775808"), "9223372036854775808", 9.3e18, -9.3e18} {
		_, err := toInt(v)
		assert.Error(t, err, "%v", v)
	}
}
