package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestNewManager(t *testing.T) {
	Convey("Given a fresh registry", t, func() {
		registry := prometheus.NewRegistry()

		Convey("When creating a manager with options", func() {
			m := NewManager(
				WithNamespace("test"),
				WithSubsystem("batch"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then every metric registers under the configured names", func() {
				So(m, ShouldNotBeNil)
				m.rowsParsed.Inc()
				So(testutil.ToFloat64(m.rowsParsed), ShouldEqual, 1)
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 0)
				So(families[0].GetName(), ShouldStartWith, "test_batch_")
			})
		})
	})
}

func TestPackageHelpers(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording pipeline activity", func() {
			before := testutil.ToFloat64(globalManager.rowsParsed)
			RecordRowsParsed(10)
			RecordParseError()
			RecordRowsDropped(2)
			ObserveStage("aggregate", 50*time.Millisecond)
			UpdateSubjects(100)
			UpdateFeatureColumns(42)
			RecordRun()
			UpdateJobQueueSize(3)
			UpdateJobQueueCapacity(64)
			UpdateWorkerCount(4)
			RecordJobSuccess()
			RecordJobFailure()

			Convey("Then the counters and gauges advance", func() {
				So(testutil.ToFloat64(globalManager.rowsParsed), ShouldEqual, before+10)
				So(testutil.ToFloat64(globalManager.subjects), ShouldEqual, 100)
				So(testutil.ToFloat64(globalManager.featureColumns), ShouldEqual, 42)
				So(testutil.ToFloat64(globalManager.jobQueueCapacity), ShouldEqual, 64)
			})
		})
	})
}

func TestHandler(t *testing.T) {
	Convey("Given the metrics endpoint plumbing", t, func() {
		So(Handler(), ShouldNotBeNil)
		So(GetRegistry(), ShouldNotBeNil)
	})
}
