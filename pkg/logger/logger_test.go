package logger

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	. "github.com/smartystreets/goconvey/convey"
)

func TestLoggerInit(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	if Get() == nil {
		t.Fatal("logger is nil after initialization")
	}
	if err := Sync(); err != nil {
		t.Errorf("failed to sync logger: %v", err)
	}
}

func TestInitWithFormats(t *testing.T) {
	Convey("Given a buffer as log sink", t, func() {
		var buf bytes.Buffer
		ctx := context.Background()

		Convey("JSON output carries fields, component and source", func() {
			So(InitWith(&buf, FormatJSON), ShouldBeNil)
			Named("ingest").Info(ctx, "recorded",
				String("user", "u1"),
				Int("zones", 3),
				Int64("events", 10),
				Float64("rate", 0.8),
				Bool("found", true),
				Duration("took", time.Second),
				Error(errors.New("boom")),
			)

			var entry map[string]interface{}
			So(json.Unmarshal(buf.Bytes(), &entry), ShouldBeNil)
			So(entry["msg"], ShouldEqual, "recorded")
			So(entry["component"], ShouldEqual, "ingest")
			So(entry["user"], ShouldEqual, "u1")
			So(entry["found"], ShouldEqual, true)
			So(entry["source"], ShouldContainSubstring, "logger_test.go")
		})

		Convey("Text output is the default", func() {
			So(InitWith(&buf, ""), ShouldBeNil)
			Get().Warn(ctx, "stale snapshot")
			So(buf.String(), ShouldContainSubstring, "level=WARN")
			So(buf.String(), ShouldContainSubstring, "stale snapshot")
		})

		Convey("Unknown formats are rejected", func() {
			So(InitWith(&buf, "xml"), ShouldNotBeNil)
		})
	})
}

func TestSetLevelString(t *testing.T) {
	Convey("Given a text logger", t, func() {
		var buf bytes.Buffer
		So(InitWith(&buf, FormatText), ShouldBeNil)
		ctx := context.Background()

		Convey("Debug is hidden at info level", func() {
			Get().Debug(ctx, "hidden")
			So(buf.Len(), ShouldEqual, 0)
		})

		Convey("Debug shows after lowering the level", func() {
			So(SetLevelString("DEBUG"), ShouldBeNil)
			Get().Debug(ctx, "visible")
			So(strings.Contains(buf.String(), "visible"), ShouldBeTrue)
		})

		Convey("Error level suppresses warnings", func() {
			So(SetLevelString("error"), ShouldBeNil)
			Get().Warn(ctx, "quiet")
			So(buf.Len(), ShouldEqual, 0)
		})

		Convey("Unknown levels are rejected", func() {
			So(SetLevelString("verbose"), ShouldNotBeNil)
		})

		Reset(func() { _ = SetLevelString("info") })
	})
}
