package era_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/epsshift/internal/domain/era"
	. "github.com/smartystreets/goconvey/convey"
)

func mustDate(s string) time.Time {
	t, err := era.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestClassify(t *testing.T) {
	Convey("Given dates around the model boundaries", t, func() {
		Convey("Then dates before 2022-02-04 are v1", func() {
			So(era.Classify(mustDate("2021-04-14")), ShouldEqual, era.V1)
			So(era.Classify(mustDate("2022-02-03")), ShouldEqual, era.V1)
		})

		Convey("Then boundary dates belong to the newer generation", func() {
			So(era.Classify(mustDate("2022-02-04")), ShouldEqual, era.V2)
			So(era.Classify(mustDate("2023-03-07")), ShouldEqual, era.V3)
			So(era.Classify(mustDate("2025-03-17")), ShouldEqual, era.V4)
		})

		Convey("Then the day before a boundary stays in the older generation", func() {
			So(era.Classify(mustDate("2023-03-06")), ShouldEqual, era.V2)
			So(era.Classify(mustDate("2025-03-16")), ShouldEqual, era.V3)
		})

		Convey("Then the time of day is ignored", func() {
			late := time.Date(2023, time.March, 6, 23, 59, 59, 0, time.UTC)
			So(era.Classify(late), ShouldEqual, era.V2)
		})
	})

	Convey("Given every day of 2021", t, func() {
		start := mustDate("2021-01-01")

		Convey("Then all of them classify as v1", func() {
			for d := start; d.Year() == 2021; d = d.AddDate(0, 0, 1) {
				So(era.Classify(d), ShouldEqual, era.V1)
			}
		})
	})
}

func TestValidateOrder(t *testing.T) {
	Convey("Given two dates", t, func() {
		a := mustDate("2024-01-01")
		b := mustDate("2024-01-02")

		Convey("Then an earlier start is valid", func() {
			So(era.ValidateOrder(a, b), ShouldBeTrue)
		})

		Convey("Then identical dates are rejected", func() {
			So(era.ValidateOrder(a, a), ShouldBeFalse)
		})

		Convey("Then a later start is rejected", func() {
			So(era.ValidateOrder(b, a), ShouldBeFalse)
		})
	})
}

func TestParseDate(t *testing.T) {
	Convey("Given date strings", t, func() {
		Convey("When the string is well formed", func() {
			d, err := era.ParseDate(" 2023-04-01\n")

			Convey("Then it parses with surrounding whitespace trimmed", func() {
				So(err, ShouldBeNil)
				So(era.Format(d), ShouldEqual, "2023-04-01")
			})
		})

		Convey("When the string is malformed", func() {
			for _, s := range []string{"", "2023/04/01", "01-04-2023", "2023-13-01", "yesterday"} {
				_, err := era.ParseDate(s)
				So(errors.Is(err, era.ErrDateFormat), ShouldBeTrue)
			}
		})
	})
}

func TestMismatch(t *testing.T) {
	Convey("Given a v1 and a v3 date", t, func() {
		a := era.Classify(mustDate("2022-01-01"))
		b := era.Classify(mustDate("2023-04-01"))

		Convey("Then a mismatch is reported", func() {
			So(a, ShouldEqual, era.V1)
			So(b, ShouldEqual, era.V3)
			So(era.Mismatch(a, b), ShouldBeTrue)
			So(era.Mismatch(b, b), ShouldBeFalse)
		})
	})
}

func TestFromModelVersion(t *testing.T) {
	Convey("Given published model_version tags", t, func() {
		cases := map[string]era.Label{
			"v2021.04.14": era.V1,
			"v2022.01.01": era.V2,
			"v2023.03.01": era.V3,
			"v2025.03.14": era.V4,
		}
		for tag, want := range cases {
			got, ok := era.FromModelVersion(tag)
			So(ok, ShouldBeTrue)
			So(got, ShouldEqual, want)
		}

		Convey("Then an unknown tag is not recognised", func() {
			_, ok := era.FromModelVersion("latest")
			So(ok, ShouldBeFalse)
		})
	})
}
