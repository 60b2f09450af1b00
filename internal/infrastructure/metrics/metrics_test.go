package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetrics(t *testing.T) {
	Convey("Given the package counters", t, func() {
		Convey("When a dry run is recorded", func() {
			before := testutil.ToFloat64(DryRuns.WithLabelValues("success"))
			DryRuns.WithLabelValues("success").Inc()

			Convey("It should increment the labelled series", func() {
				So(testutil.ToFloat64(DryRuns.WithLabelValues("success")), ShouldEqual, before+1)
			})
		})

		Convey("When writing a textfile", func() {
			dir, err := os.MkdirTemp("", "metrics_test")
			So(err, ShouldBeNil)
			defer os.RemoveAll(dir)

			SettingsPatches.WithLabelValues("storage", "success").Inc()
			path := filepath.Join(dir, "phylax.prom")

			Convey("It should contain the counters", func() {
				So(WriteTextfile(path), ShouldBeNil)
				content, err := os.ReadFile(path)
				So(err, ShouldBeNil)
				So(strings.Contains(string(content), "phylax_settings_patch_total"), ShouldBeTrue)
			})
		})

		Convey("When no path is configured", func() {
			So(WriteTextfile(""), ShouldBeNil)
		})
	})
}
