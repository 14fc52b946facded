package frame_test

import (
	"math"
	"testing"
	"time"

	"github.com/okian/featable/internal/domain/frame"
	. "github.com/smartystreets/goconvey/convey"
)

func TestValue(t *testing.T) {
	Convey("Given dynamically typed values", t, func() {
		Convey("Then null converts to NaN, not an error", func() {
			So(math.IsNaN(frame.Null().Float64()), ShouldBeTrue)
			So(frame.Null().IsNull(), ShouldBeTrue)
		})

		Convey("Then numeric kinds cross-convert", func() {
			So(frame.Int(7).Float64(), ShouldEqual, 7.0)
			So(frame.Float(7.0).Int64(), ShouldEqual, 7)
			So(frame.Int(3).Equal(frame.Float(3)), ShouldBeTrue)
		})

		Convey("Then labels are stable", func() {
			So(frame.Int(12).Label(), ShouldEqual, "12")
			So(frame.Str("partA").Label(), ShouldEqual, "partA")
			So(frame.Float(1.5).Label(), ShouldEqual, "1.5")
			So(frame.Null().Label(), ShouldEqual, "")
		})

		Convey("Then ordering is total across kinds", func() {
			So(frame.Int(1).Less(frame.Int(2)), ShouldBeTrue)
			So(frame.Str("a").Less(frame.Str("b")), ShouldBeTrue)
			So(frame.Null().Less(frame.Int(0)), ShouldBeTrue)
			early := frame.Time(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
			late := frame.Time(time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC))
			So(early.Less(late), ShouldBeTrue)
		})
	})
}

func TestTable(t *testing.T) {
	Convey("Given a small table", t, func() {
		tbl := frame.New("subject_id", "score")
		So(tbl.Append(frame.Int(1), frame.Float(0.5)), ShouldBeNil)
		So(tbl.Append(frame.Int(2), frame.Float(0.9)), ShouldBeNil)

		Convey("When appending a row with the wrong arity", func() {
			err := tbl.Append(frame.Int(3))

			Convey("Then it fails with an arity error", func() {
				So(err, ShouldWrap, frame.ErrArityMismatch)
			})
		})

		Convey("When selecting an unknown column", func() {
			_, err := tbl.Select("missing")

			Convey("Then it fails with an unknown-column error", func() {
				So(err, ShouldWrap, frame.ErrUnknownColumn)
			})
		})

		Convey("When filtering", func() {
			out := tbl.Filter(func(r frame.Row) bool {
				return r.Get("score").Float64() > 0.6
			})

			Convey("Then only matching rows survive and the source is untouched", func() {
				So(out.NumRows(), ShouldEqual, 1)
				So(out.At(0, "subject_id").Int64(), ShouldEqual, 2)
				So(tbl.NumRows(), ShouldEqual, 2)
			})
		})

		Convey("When sorting descending input by score", func() {
			unsorted := frame.New("k", "v")
			unsorted.MustAppend(frame.Int(3), frame.Str("c"))
			unsorted.MustAppend(frame.Int(1), frame.Str("a"))
			unsorted.MustAppend(frame.Int(2), frame.Str("b"))
			out, err := unsorted.SortBy("k")

			Convey("Then rows come back ascending", func() {
				So(err, ShouldBeNil)
				So(out.At(0, "v").Str(), ShouldEqual, "a")
				So(out.At(1, "v").Str(), ShouldEqual, "b")
				So(out.At(2, "v").Str(), ShouldEqual, "c")
			})
		})

		Convey("When taking distinct combinations", func() {
			dup := frame.New("a", "b")
			dup.MustAppend(frame.Int(1), frame.Str("x"))
			dup.MustAppend(frame.Int(1), frame.Str("x"))
			dup.MustAppend(frame.Int(1), frame.Str("y"))
			out, err := dup.Distinct("a", "b")

			Convey("Then first occurrences survive in input order", func() {
				So(err, ShouldBeNil)
				So(out.NumRows(), ShouldEqual, 2)
				So(out.At(0, "b").Str(), ShouldEqual, "x")
				So(out.At(1, "b").Str(), ShouldEqual, "y")
			})
		})

		Convey("When adding and renaming columns", func() {
			out, err := tbl.WithColumn("flag", []frame.Value{frame.Int(1), frame.Int(0)})
			So(err, ShouldBeNil)
			out, err = out.Rename("flag", "is_active")
			So(err, ShouldBeNil)

			Convey("Then the new column is addressable under its new name", func() {
				So(out.HasColumn("is_active"), ShouldBeTrue)
				So(out.HasColumn("flag"), ShouldBeFalse)
				So(out.At(0, "is_active").Int64(), ShouldEqual, 1)
			})

			Convey("And a duplicate column name is rejected", func() {
				_, err := out.WithColumn("score", []frame.Value{frame.Int(0), frame.Int(0)})
				So(err, ShouldWrap, frame.ErrColumnExists)
			})
		})
	})
}

func TestJoin(t *testing.T) {
	Convey("Given two tables keyed by subject_id", t, func() {
		left := frame.New("subject_id", "answered")
		left.MustAppend(frame.Int(1), frame.Float(10))
		left.MustAppend(frame.Int(2), frame.Float(4))

		right := frame.New("subject_id", "lectures")
		right.MustAppend(frame.Int(2), frame.Float(3))
		right.MustAppend(frame.Int(3), frame.Float(7))

		Convey("When outer joining with a zero fill", func() {
			out, err := frame.Join(left, right, []string{"subject_id"}, frame.OuterJoin, frame.Float(0))

			Convey("Then every subject from either side appears, zero-filled", func() {
				So(err, ShouldBeNil)
				So(out.NumRows(), ShouldEqual, 3)
				So(out.At(0, "lectures").Float64(), ShouldEqual, 0) // subject 1: no lectures
				So(out.At(1, "lectures").Float64(), ShouldEqual, 3)
				So(out.At(2, "subject_id").Int64(), ShouldEqual, 3)
				So(out.At(2, "answered").Float64(), ShouldEqual, 0)
			})
		})

		Convey("When left joining", func() {
			out, err := frame.Join(left, right, []string{"subject_id"}, frame.LeftJoin, frame.Null())

			Convey("Then right-only subjects are absent and misses are null", func() {
				So(err, ShouldBeNil)
				So(out.NumRows(), ShouldEqual, 2)
				So(out.At(0, "lectures").IsNull(), ShouldBeTrue)
			})
		})

		Convey("When inner joining", func() {
			out, err := frame.Join(left, right, []string{"subject_id"}, frame.InnerJoin, frame.Null())

			Convey("Then only the shared subject survives", func() {
				So(err, ShouldBeNil)
				So(out.NumRows(), ShouldEqual, 1)
				So(out.At(0, "subject_id").Int64(), ShouldEqual, 2)
			})
		})

		Convey("When the right side repeats a non-key column name", func() {
			clash := frame.New("subject_id", "answered")
			_, err := frame.Join(left, clash, []string{"subject_id"}, frame.LeftJoin, frame.Null())

			Convey("Then the join is rejected", func() {
				So(err, ShouldWrap, frame.ErrColumnConflict)
			})
		})
	})
}
