package csvio_test

import (
	"bytes"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/okian/featable/internal/adapters/csvio"
	"github.com/okian/featable/internal/domain/frame"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRead(t *testing.T) {
	Convey("Given a delimited log with reordered and extra columns", t, func() {
		input := strings.Join([]string{
			"extra,subject_id,event_time,score",
			"x,1,20201101093000,0.5",
			"y,2,20201101100000,",
			"z,2,20201101110000,NaN",
		}, "\n")
		schema := csvio.Schema{
			{Name: "subject_id", Kind: frame.KindInt},
			{Name: "event_time", Kind: frame.KindTime},
			{Name: "score", Kind: frame.KindFloat},
		}

		Convey("When reading with a row-order column", func() {
			tbl, err := csvio.Read(strings.NewReader(input), schema, csvio.WithRowOrder("row_order"))
			So(err, ShouldBeNil)

			Convey("Then columns parse by name, not position", func() {
				So(tbl.Columns(), ShouldResemble, []string{"subject_id", "event_time", "score", "row_order"})
				So(tbl.NumRows(), ShouldEqual, 3)
				So(tbl.At(0, "subject_id").Int64(), ShouldEqual, 1)
				So(tbl.At(0, "event_time").Time().Equal(time.Date(2020, 11, 1, 9, 30, 0, 0, time.UTC)), ShouldBeTrue)
				So(tbl.At(0, "score").Float64(), ShouldEqual, 0.5)
			})

			Convey("And empty cells are null while NaN round-trips", func() {
				So(tbl.At(1, "score").IsNull(), ShouldBeTrue)
				So(math.IsNaN(tbl.At(2, "score").Float64()), ShouldBeTrue)
			})

			Convey("And ingestion order is recorded", func() {
				So(tbl.At(2, "row_order").Int64(), ShouldEqual, 2)
			})
		})

		Convey("When a schema column is absent from the header", func() {
			_, err := csvio.Read(strings.NewReader(input), csvio.Schema{{Name: "missing", Kind: frame.KindInt}})
			So(err, ShouldWrap, csvio.ErrMissingColumn)
		})

		Convey("When a cell does not parse", func() {
			bad := "subject_id\nnot-a-number"
			_, err := csvio.Read(strings.NewReader(bad), csvio.Schema{{Name: "subject_id", Kind: frame.KindInt}})
			So(err, ShouldWrap, csvio.ErrBadCell)
		})

		Convey("When the input is empty", func() {
			_, err := csvio.Read(strings.NewReader(""), schema)
			So(err, ShouldWrap, csvio.ErrMissingHeader)
		})

		Convey("When the schema is empty", func() {
			_, err := csvio.Read(strings.NewReader(input), nil)
			So(err, ShouldWrap, csvio.ErrEmptySchema)
		})
	})
}

func TestWrite(t *testing.T) {
	Convey("Given a feature table with nulls and NaN", t, func() {
		tbl := frame.New("subject_id", "rate", "note")
		tbl.MustAppend(frame.Int(1), frame.Float(66.5), frame.Str("ok"))
		tbl.MustAppend(frame.Int(2), frame.Float(math.NaN()), frame.Null())

		Convey("When writing and reading back", func() {
			var buf bytes.Buffer
			So(csvio.Write(&buf, tbl), ShouldBeNil)

			back, err := csvio.Read(&buf, csvio.Schema{
				{Name: "subject_id", Kind: frame.KindInt},
				{Name: "rate", Kind: frame.KindFloat},
				{Name: "note", Kind: frame.KindString},
			})
			So(err, ShouldBeNil)

			Convey("Then every marker survives the round trip", func() {
				So(back.At(0, "rate").Float64(), ShouldEqual, 66.5)
				So(math.IsNaN(back.At(1, "rate").Float64()), ShouldBeTrue)
				So(back.At(1, "note").IsNull(), ShouldBeTrue)
			})
		})
	})
}
