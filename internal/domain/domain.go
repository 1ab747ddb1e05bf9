package domain

import "time"

// DefaultFirmwareVersion is recorded for devices registered without one.
const DefaultFirmwareVersion = "1.0.0"

// Device represents a GPS collar registered to an owner.
type Device struct {
	ID               string     `bson:"_id" json:"id"`
	DeviceID         string     `bson:"deviceId" json:"deviceId"`
	Name             string     `bson:"name" json:"name"`
	IsActive         bool       `bson:"isActive" json:"isActive"`
	OwnerID          string     `bson:"ownerId" json:"ownerId"`
	AssignedDogID    *string    `bson:"assignedDogId,omitempty" json:"assignedDogId,omitempty"`
	RegistrationDate time.Time  `bson:"registrationDate" json:"registrationDate"`
	LastSeen         *time.Time `bson:"lastSeen,omitempty" json:"lastSeen,omitempty"`
	BatteryLevel     *int       `bson:"batteryLevel,omitempty" json:"batteryLevel,omitempty"`
	FirmwareVersion  string     `bson:"firmwareVersion" json:"firmwareVersion"`
}

// OwnedBy reports whether the device belongs to the given owner.
func (d Device) OwnedBy(ownerID string) bool {
	return ownerID != "" && d.OwnerID == ownerID
}

// DeviceView is a device with its assigned dog's display name resolved.
type DeviceView struct {
	Device
	AssignedDogName string `json:"assignedDogName,omitempty"`
}

// DeviceUpdate holds the owner-editable fields of a device. Nil fields are left untouched.
type DeviceUpdate struct {
	Name          *string `json:"name,omitempty"`
	AssignedDogID *string `json:"assignedDogId,omitempty"`
	IsActive      *bool   `json:"isActive,omitempty"`
}

// Dog is the slice of the dog registry needed to label devices.
type Dog struct {
	ID      string `bson:"_id" json:"id"`
	Name    string `bson:"name" json:"name"`
	OwnerID string `bson:"ownerId" json:"ownerId"`
}

// TelemetryPoint is one sample reported by a collar. It is never modified after insert.
type TelemetryPoint struct {
	ID        string    `bson:"_id" json:"id"`
	DeviceID  string    `bson:"deviceId" json:"deviceId"`
	OwnerID   string    `bson:"ownerId,omitempty" json:"ownerId,omitempty"`
	Latitude  float64   `bson:"latitude" json:"latitude"`
	Longitude float64   `bson:"longitude" json:"longitude"`
	GPSValid  bool      `bson:"gpsValid" json:"gpsValid"`
	Battery   int       `bson:"battery" json:"battery"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
	Uptime    int64     `bson:"uptime" json:"uptime"`
	WifiRSSI  int       `bson:"wifiRSSI" json:"wifiRSSI"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

// TelemetryFilter selects points from the telemetry store. Zero values disable a clause.
type TelemetryFilter struct {
	DeviceID          string
	OnlyValidGPS      bool
	ExcludeZeroCoords bool
	CreatedFrom       *time.Time
	CreatedTo         *time.Time
}

// SortOrder orders telemetry by creation time.
type SortOrder int

const (
	OldestFirst SortOrder = iota
	NewestFirst
)

// DateRange is the inclusive history window as requested by the caller.
type DateRange struct {
	Start *time.Time `json:"start"`
	End   *time.Time `json:"end"`
}

// DayTrack is the part of a device's path sampled on one calendar day.
type DayTrack struct {
	Date       string           `json:"date"`
	Color      string           `json:"color"`
	Points     []TelemetryPoint `json:"points"`
	PointCount int              `json:"pointCount"`
	StartedAt  time.Time        `json:"startedAt"`
	EndedAt    time.Time        `json:"endedAt"`
	DistanceKm float64          `json:"distanceKm"`
	MinBattery int              `json:"minBattery"`
	MaxBattery int              `json:"maxBattery"`
}

// HistorySummary describes the whole filtered point set.
type HistorySummary struct {
	FirstPoint    *TelemetryPoint `json:"firstPoint"`
	LastPoint     *TelemetryPoint `json:"lastPoint"`
	DatesWithData []string        `json:"datesWithData"`
	TotalPoints   int             `json:"totalPoints"`
}

// HistoryResult holds three views over the same filtered, chronologically sorted points.
type HistoryResult struct {
	DeviceID      string                      `json:"deviceId"`
	DateRange     DateRange                   `json:"dateRange"`
	Points        []TelemetryPoint            `json:"data"`
	GroupedByDate map[string][]TelemetryPoint `json:"groupedByDate"`
	Tracks        []DayTrack                  `json:"tracks"`
	Summary       HistorySummary              `json:"summary"`
}

// DeviceLatest pairs a device with its newest telemetry point, if any.
type DeviceLatest struct {
	Device DeviceView      `json:"device"`
	Point  *TelemetryPoint `json:"point"`
}
