// Package export writes stored parking data to Parquet files for offline
// analysis.
package export

import (
	"context"
	"fmt"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/okian/buscaparca/internal/domain/model"
)

const parallelism = 4

// EventRecord is the on-disk layout of a parking event.
type EventRecord struct {
	ID             string  `parquet:"name=id, type=BYTE_ARRAY, convertedtype=UTF8"`
	UserID         string  `parquet:"name=userId, type=BYTE_ARRAY, convertedtype=UTF8"`
	Latitude       float64 `parquet:"name=latitude, type=DOUBLE"`
	Longitude      float64 `parquet:"name=longitude, type=DOUBLE"`
	Timestamp      int64   `parquet:"name=timestamp, type=INT64"`
	DayOfWeek      int32   `parquet:"name=dayOfWeek, type=INT32"`
	Hour           int32   `parquet:"name=hour, type=INT32"`
	FoundParking   bool    `parquet:"name=foundParking, type=BOOLEAN"`
	SearchDuration int32   `parquet:"name=searchDuration, type=INT32"`
	StreetName     *string `parquet:"name=streetName, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
}

// ZoneRecord is the on-disk layout of a zone aggregate.
type ZoneRecord struct {
	Key          string  `parquet:"name=zoneKey, type=BYTE_ARRAY, convertedtype=UTF8"`
	Latitude     float64 `parquet:"name=latitude, type=DOUBLE"`
	Longitude    float64 `parquet:"name=longitude, type=DOUBLE"`
	Radius       float64 `parquet:"name=radius, type=DOUBLE"`
	SuccessCount int32   `parquet:"name=successCount, type=INT32"`
	TotalCount   int32   `parquet:"name=totalCount, type=INT32"`
	SuccessRate  float64 `parquet:"name=successRate, type=DOUBLE"`
	LastUpdated  int64   `parquet:"name=lastUpdated, type=INT64"`
}

// FromEvent converts an event to its record. Timestamps are unix millis.
func FromEvent(e model.ParkingEvent) EventRecord {
	return EventRecord{
		ID:             e.ID,
		UserID:         e.UserID,
		Latitude:       e.Latitude,
		Longitude:      e.Longitude,
		Timestamp:      e.Timestamp.UnixMilli(),
		DayOfWeek:      int32(e.DayOfWeek),
		Hour:           int32(e.Hour),
		FoundParking:   e.FoundParking,
		SearchDuration: int32(e.SearchDuration),
		StreetName:     e.StreetName,
	}
}

// FromZone converts a zone to its record.
func FromZone(z model.ParkingZone) ZoneRecord {
	return ZoneRecord{
		Key:          z.Key,
		Latitude:     z.Latitude,
		Longitude:    z.Longitude,
		Radius:       z.Radius,
		SuccessCount: int32(z.SuccessCount),
		TotalCount:   int32(z.TotalCount),
		SuccessRate:  z.SuccessRate(),
		LastUpdated:  z.LastUpdated.UnixMilli(),
	}
}

// WriteEvents writes events to a snappy-compressed Parquet file at path.
// progress, when set, is called after every row.
func WriteEvents(ctx context.Context, path string, events []model.ParkingEvent, progress func()) error {
	rows := make([]interface{}, 0, len(events))
	for _, e := range events {
		rows = append(rows, FromEvent(e))
	}
	return write(ctx, path, new(EventRecord), rows, progress)
}

// WriteZones writes zone aggregates to a Parquet file at path.
func WriteZones(ctx context.Context, path string, zones []model.ParkingZone, progress func()) error {
	rows := make([]interface{}, 0, len(zones))
	for _, z := range zones {
		rows = append(rows, FromZone(z))
	}
	return write(ctx, path, new(ZoneRecord), rows, progress)
}

func write(ctx context.Context, path string, schema interface{}, rows []interface{}, progress func()) (err error) {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := fw.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()

	pw, err := writer.NewParquetWriter(fw, schema, parallelism)
	if err != nil {
		return fmt.Errorf("parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			_ = pw.WriteStop()
			return err
		}
		if err := pw.Write(row); err != nil {
			_ = pw.WriteStop()
			return fmt.Errorf("write row: %w", err)
		}
		if progress != nil {
			progress()
		}
	}
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("finish %s: %w", path, err)
	}
	return nil
}
