package assemble_test

import (
	"testing"

	"github.com/okian/featable/internal/domain/assemble"
	"github.com/okian/featable/internal/domain/frame"
	. "github.com/smartystreets/goconvey/convey"
)

func TestFold(t *testing.T) {
	Convey("Given question features, lecture features and totals", t, func() {
		questions := frame.New("subject_id", "answered")
		questions.MustAppend(frame.Int(1), frame.Float(12))

		lectures := frame.New("subject_id", "views")
		lectures.MustAppend(frame.Int(1), frame.Float(3))
		lectures.MustAppend(frame.Int(2), frame.Float(5))

		totals := frame.New("subject_id", "sessions")
		totals.MustAppend(frame.Int(2), frame.Float(1))

		Convey("When folding with outer joins and zero fill", func() {
			out, err := assemble.Fold(questions, []string{"subject_id"},
				assemble.JoinSpec{Table: lectures, Kind: frame.OuterJoin, Fill: frame.Float(0)},
				assemble.JoinSpec{Table: totals, Kind: frame.OuterJoin, Fill: frame.Float(0)},
			)

			Convey("Then a subject with lectures but no questions still appears, zero-filled", func() {
				So(err, ShouldBeNil)
				So(out.NumRows(), ShouldEqual, 2)
				So(out.At(1, "subject_id").Int64(), ShouldEqual, 2)
				So(out.At(1, "answered").Float64(), ShouldEqual, 0)
				So(out.At(1, "views").Float64(), ShouldEqual, 5)
				So(out.At(1, "sessions").Float64(), ShouldEqual, 1)
			})
		})

		Convey("When a spec carries a nil table", func() {
			_, err := assemble.Fold(questions, []string{"subject_id"}, assemble.JoinSpec{})

			Convey("Then the fold is rejected", func() {
				So(err, ShouldWrap, assemble.ErrNilTable)
			})
		})
	})
}

func TestDrop(t *testing.T) {
	Convey("Given an assembled table with leakage columns", t, func() {
		tbl := frame.New("subject_id", "answered", "outcome", "content_id")
		tbl.MustAppend(frame.Int(1), frame.Float(3), frame.Float(1), frame.Int(77))

		Convey("When dropping the configured list", func() {
			out, err := assemble.Drop(tbl, []string{"outcome", "content_id", "not_present"})

			Convey("Then listed columns go, absent names are skipped", func() {
				So(err, ShouldBeNil)
				So(out.Columns(), ShouldResemble, []string{"subject_id", "answered"})
			})
		})

		Convey("When the list would drop everything", func() {
			_, err := assemble.Drop(tbl, tbl.Columns())
			So(err, ShouldWrap, assemble.ErrAllColumnsDropped)
		})
	})
}

func TestTags(t *testing.T) {
	Convey("Given space-delimited tag fields", t, func() {
		Convey("When parsing", func() {
			tags := assemble.ParseTags("51 131  162")

			Convey("Then every tag lands in the set", func() {
				So(len(tags), ShouldEqual, 3)
				So(tags.Intersects(assemble.ParseTags("162")), ShouldBeTrue)
				So(tags.Intersects(assemble.ParseTags("999")), ShouldBeFalse)
			})
		})

		Convey("When checking overlap against subject history", func() {
			history := map[string]assemble.TagSet{
				"1": assemble.ParseTags("51 131"),
			}

			Convey("Then a shared tag answers true", func() {
				So(assemble.Overlaps(history, "1", assemble.ParseTags("131 7")), ShouldBeTrue)
			})

			Convey("And a lookup miss answers false instead of raising", func() {
				So(assemble.Overlaps(history, "404", assemble.ParseTags("131")), ShouldBeFalse)
			})

			Convey("And an empty item tag set answers false", func() {
				So(assemble.Overlaps(history, "1", assemble.ParseTags("")), ShouldBeFalse)
			})
		})
	})
}
