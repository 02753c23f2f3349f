package api

import (
	"time"

	service "github.com/okian/buscaparca/internal/app"
	"github.com/okian/buscaparca/internal/domain/model"
)

// trajectoryRequest mirrors the OpenAPI schema for POST /trajectory.
type trajectoryRequest struct {
	UserID    string   `json:"userId" validate:"required,max=128"`
	Latitude  *float64 `json:"latitude" validate:"required"`
	Longitude *float64 `json:"longitude" validate:"required"`
	Speed     *float64 `json:"speed,omitempty"`
	Heading   *float64 `json:"heading,omitempty"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
	Timestamp *int64   `json:"timestamp,omitempty" validate:"omitnil,gt=0"`
}

func (r trajectoryRequest) point() model.TrajectoryPoint {
	return model.TrajectoryPoint{
		UserID:    r.UserID,
		Latitude:  *r.Latitude,
		Longitude: *r.Longitude,
		Timestamp: fromMillis(r.Timestamp),
		Speed:     r.Speed,
		Heading:   r.Heading,
		Accuracy:  r.Accuracy,
	}
}

// parkingEventRequest mirrors the OpenAPI schema for POST /parking-event.
// foundParking defaults to true and searchDuration to 0.
type parkingEventRequest struct {
	ReportID       string   `json:"reportId,omitempty" validate:"omitempty,max=128"`
	UserID         string   `json:"userId" validate:"required,max=128"`
	Latitude       *float64 `json:"latitude" validate:"required"`
	Longitude      *float64 `json:"longitude" validate:"required"`
	FoundParking   *bool    `json:"foundParking,omitempty"`
	SearchDuration *int     `json:"searchDuration,omitempty" validate:"omitnil,gte=0"`
	StreetName     *string  `json:"streetName,omitempty" validate:"omitnil,max=256"`
	Timestamp      *int64   `json:"timestamp,omitempty" validate:"omitnil,gt=0"`
}

func (r parkingEventRequest) event() model.ParkingEvent {
	e := model.ParkingEvent{
		UserID:       r.UserID,
		Latitude:     *r.Latitude,
		Longitude:    *r.Longitude,
		Timestamp:    fromMillis(r.Timestamp),
		FoundParking: true,
		StreetName:   r.StreetName,
	}
	if r.FoundParking != nil {
		e.FoundParking = *r.FoundParking
	}
	if r.SearchDuration != nil {
		e.SearchDuration = *r.SearchDuration
	}
	return e
}

type ackResponse struct {
	Status    string        `json:"status"`
	Duplicate bool          `json:"duplicate"`
	Zone      *zoneResponse `json:"zone,omitempty"`
}

type zoneResponse struct {
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	Radius       float64 `json:"radius"`
	SuccessRate  float64 `json:"successRate"`
	SuccessCount int     `json:"successCount"`
	TotalCount   int     `json:"totalCount"`
	LastUpdated  int64   `json:"lastUpdated"`
}

func toZone(z model.ParkingZone) zoneResponse {
	return zoneResponse{
		Latitude:     z.Latitude,
		Longitude:    z.Longitude,
		Radius:       z.Radius,
		SuccessRate:  z.SuccessRate(),
		SuccessCount: z.SuccessCount,
		TotalCount:   z.TotalCount,
		LastUpdated:  toMillis(z.LastUpdated),
	}
}

type predictionResponse struct {
	Latitude       float64        `json:"latitude"`
	Longitude      float64        `json:"longitude"`
	Timestamp      int64          `json:"timestamp"`
	Probability    int            `json:"probability"`
	TimeFactor     float64        `json:"timeFactor"`
	SpatialFactor  float64        `json:"spatialFactor"`
	LocationFactor float64        `json:"locationFactor"`
	NearbyZones    []zoneResponse `json:"nearbyZones"`
}

func toPrediction(p model.Prediction) predictionResponse {
	zones := make([]zoneResponse, 0, len(p.NearbyZones))
	for _, z := range p.NearbyZones {
		zones = append(zones, toZone(z))
	}
	return predictionResponse{
		Latitude:       p.Latitude,
		Longitude:      p.Longitude,
		Timestamp:      toMillis(p.Timestamp),
		Probability:    p.Probability,
		TimeFactor:     p.TimeFactor,
		SpatialFactor:  p.SpatialFactor,
		LocationFactor: p.LocationFactor,
		NearbyZones:    zones,
	}
}

type rankedZoneResponse struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Probability int     `json:"probability"`
	Distance    float64 `json:"distance"`
	SuccessRate float64 `json:"successRate"`
	TotalCount  int     `json:"totalCount"`
}

type rankedZonesResponse struct {
	Zones []rankedZoneResponse `json:"zones"`
	Count int                  `json:"count"`
}

func toRanked(in []model.RankedZone) rankedZonesResponse {
	out := make([]rankedZoneResponse, 0, len(in))
	for _, z := range in {
		out = append(out, rankedZoneResponse{
			Latitude:    z.Latitude,
			Longitude:   z.Longitude,
			Probability: z.Probability,
			Distance:    z.Distance,
			SuccessRate: z.SuccessRate,
			TotalCount:  z.TotalCount,
		})
	}
	return rankedZonesResponse{Zones: out, Count: len(out)}
}

type hotZoneResponse struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Weight      float64 `json:"weight"`
	Radius      float64 `json:"radius"`
	SuccessRate float64 `json:"successRate"`
	Source      string  `json:"source"`
}

type hotZonesResponse struct {
	Zones []hotZoneResponse `json:"zones"`
	Count int               `json:"count"`
}

func toHotZones(in []model.HotZone) hotZonesResponse {
	out := make([]hotZoneResponse, 0, len(in))
	for _, z := range in {
		out = append(out, hotZoneResponse(z))
	}
	return hotZonesResponse{Zones: out, Count: len(out)}
}

type facilityResponse struct {
	Name        string  `json:"name"`
	Address     string  `json:"address,omitempty"`
	District    string  `json:"district,omitempty"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Capacity    int     `json:"capacity"`
	FreePlaces  int     `json:"freePlaces"`
	Occupied    int     `json:"occupied"`
	Distance    float64 `json:"distance"`
	SuccessRate float64 `json:"successRate"`
}

type facilitiesResponse struct {
	Facilities []facilityResponse `json:"facilities"`
	Count      int                `json:"count"`
}

func toFacilities(in []model.PublicParking) facilitiesResponse {
	out := make([]facilityResponse, 0, len(in))
	for _, p := range in {
		out = append(out, facilityResponse(p))
	}
	return facilitiesResponse{Facilities: out, Count: len(out)}
}

type modelResponse struct {
	BuiltAt  *time.Time `json:"builtAt,omitempty"`
	Patterns int        `json:"patterns"`
	Zones    int        `json:"zones"`
	Events   int        `json:"events"`
}

func toModel(info model.ModelInfo) modelResponse {
	m := modelResponse{Patterns: info.Patterns, Zones: info.Zones, Events: info.Events}
	if !info.BuiltAt.IsZero() {
		at := info.BuiltAt.UTC()
		m.BuiltAt = &at
	}
	return m
}

type statsResponse struct {
	Trajectories int64                  `json:"trajectories"`
	Events       int64                  `json:"events"`
	Zones        int64                  `json:"zones"`
	Model        modelResponse          `json:"model"`
	Service      map[string]interface{} `json:"service,omitempty"`
}

func toStats(o service.Overview, svc map[string]interface{}) statsResponse {
	return statsResponse{
		Trajectories: o.Store.Trajectories,
		Events:       o.Store.Events,
		Zones:        o.Store.Zones,
		Model:        toModel(o.Model),
		Service:      svc,
	}
}

// fromMillis converts an optional epoch-milliseconds value; nil yields the
// zero time, which the service replaces with its clock.
func fromMillis(ms *int64) time.Time {
	if ms == nil {
		return time.Time{}
	}
	return time.UnixMilli(*ms).UTC()
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
