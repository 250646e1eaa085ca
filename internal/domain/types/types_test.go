package types_test

import (
	"encoding/json"
	"testing"

	types "github.com/okian/epsshift/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestEntry(t *testing.T) {
	Convey("Given an Entry struct", t, func() {
		Convey("When creating a new entry", func() {
			entry := types.Entry{
				Rank:  1,
				CVE:   "CVE-2024-0001",
				Start: 0.1,
				End:   0.4,
				Delta: 0.3,
			}

			Convey("Then it should have the correct values", func() {
				So(entry.Rank, ShouldEqual, 1)
				So(entry.CVE, ShouldEqual, "CVE-2024-0001")
				So(entry.Delta, ShouldEqual, 0.3)
			})

			Convey("And it should encode with snake_case keys", func() {
				b, err := json.Marshal(entry)
				So(err, ShouldBeNil)
				So(string(b), ShouldContainSubstring, `"epss_start":0.1`)
				So(string(b), ShouldContainSubstring, `"increase":0.3`)
			})
		})

		Convey("When creating an entry with zero values", func() {
			entry := types.Entry{}

			Convey("Then it should have default values", func() {
				So(entry.Rank, ShouldEqual, 0)
				So(entry.CVE, ShouldEqual, "")
				So(entry.Delta, ShouldEqual, 0.0)
			})
		})
	})
}

func TestReport(t *testing.T) {
	Convey("Given a Report with no entries", t, func() {
		r := types.Report{Start: "2024-01-01", End: "2024-02-01", Requested: 5}

		Convey("Then it encodes entries as null and keeps the request", func() {
			b, err := json.Marshal(r)
			So(err, ShouldBeNil)
			So(string(b), ShouldContainSubstring, `"requested":5`)
			So(string(b), ShouldContainSubstring, `"clamped":false`)
		})
	})
}
