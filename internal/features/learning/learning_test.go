package learning_test

import (
	"context"
	"math"
	"testing"

	"github.com/okian/featable/internal/domain/assemble"
	"github.com/okian/featable/internal/domain/frame"
	"github.com/okian/featable/internal/features/learning"
	. "github.com/smartystreets/goconvey/convey"
)

type mapCatalog map[int64]learning.ContentInfo

func (m mapCatalog) Lookup(id int64) (learning.ContentInfo, bool) {
	info, ok := m[id]
	return info, ok
}

func newLog() *frame.Table {
	return frame.New(
		learning.ColSubject, learning.ColContainer, learning.ColOrder,
		learning.ColEventType, learning.ColContent, learning.ColOutcome,
		learning.ColPriorElapsed, learning.ColPriorExplained,
	)
}

func question(tbl *frame.Table, subj, container, order, content, outcome int64, priorElapsed frame.Value) {
	tbl.MustAppend(
		frame.Int(subj), frame.Int(container), frame.Int(order),
		frame.Str(learning.EventQuestion), frame.Int(content), frame.Int(outcome),
		priorElapsed, frame.Int(1),
	)
}

func lecture(tbl *frame.Table, subj, container, order, content int64) {
	tbl.MustAppend(
		frame.Int(subj), frame.Int(container), frame.Int(order),
		frame.Str(learning.EventLecture), frame.Int(content), frame.Null(),
		frame.Null(), frame.Null(),
	)
}

func rowOf(t *frame.Table, subj int64) int {
	for i := 0; i < t.NumRows(); i++ {
		if t.At(i, learning.ColSubject).Int64() == subj {
			return i
		}
	}
	return -1
}

func TestAlignPriorOutcomes(t *testing.T) {
	Convey("Given a subject whose prior columns trail by one container", t, func() {
		tbl := newLog()
		question(tbl, 1, 0, 0, 10, 1, frame.Null())
		question(tbl, 1, 1, 1, 11, 0, frame.Float(100000))
		question(tbl, 1, 2, 2, 12, 1, frame.Float(50000))

		Convey("When realigning", func() {
			out, err := learning.AlignPriorOutcomes(tbl)
			So(err, ShouldBeNil)

			Convey("Then each container carries its own elapsed time", func() {
				So(out.At(0, learning.ColElapsed).Float64(), ShouldEqual, 100000)
				So(out.At(1, learning.ColElapsed).Float64(), ShouldEqual, 50000)
			})

			Convey("And the final container has no observation yet", func() {
				So(out.At(2, learning.ColElapsed).IsNull(), ShouldBeTrue)
			})
		})
	})

	Convey("Given a multi-question container repeating the prior values", t, func() {
		tbl := newLog()
		question(tbl, 1, 0, 0, 10, 1, frame.Null())
		question(tbl, 1, 1, 1, 11, 0, frame.Float(7000))
		question(tbl, 1, 1, 2, 12, 1, frame.Float(7000))

		Convey("When realigning", func() {
			out, err := learning.AlignPriorOutcomes(tbl)
			So(err, ShouldBeNil)

			Convey("Then the collapsed value lands on every row of the earlier container", func() {
				So(out.At(0, learning.ColElapsed).Float64(), ShouldEqual, 7000)
				So(out.NumRows(), ShouldEqual, 3)
			})
		})
	})
}

func TestFeatures(t *testing.T) {
	Convey("Given two subjects with uneven part coverage", t, func() {
		ctx := context.Background()
		questions := mapCatalog{
			10: {Part: 1, Tags: assemble.ParseTags("51 131")},
			20: {Part: 2, Tags: assemble.ParseTags("162")},
		}
		lectures := mapCatalog{
			200: {Part: 5, Kind: "concept"},
		}
		b, err := learning.New(questions, lectures)
		So(err, ShouldBeNil)

		tbl := newLog()
		order := int64(0)
		for c := int64(0); c < 8; c++ { // subject 1: eight part-1 questions, half correct
			question(tbl, 1, c, order, 10, c%2, frame.Float(1000))
			order++
		}
		for c := int64(8); c < 12; c++ { // then four part-2 questions, all correct
			question(tbl, 1, c, order, 20, 1, frame.Float(2000))
			order++
		}
		question(tbl, 2, 0, order, 10, 1, frame.Null())
		order++
		question(tbl, 2, 1, order, 10, 0, frame.Float(500))
		order++
		lecture(tbl, 2, 2, order, 200)
		order++
		lecture(tbl, 3, 0, order, 200) // subject 3 has watched but never answered

		Convey("When deriving features", func() {
			out, err := b.Features(ctx, tbl)
			So(err, ShouldBeNil)

			r1 := rowOf(out, 1)
			r2 := rowOf(out, 2)
			r3 := rowOf(out, 3)
			So(r1, ShouldNotEqual, -1)
			So(r2, ShouldNotEqual, -1)
			So(r3, ShouldNotEqual, -1)

			Convey("Then totals and rates come out per subject", func() {
				So(out.At(r1, "answered_count").Int64(), ShouldEqual, 12)
				So(out.At(r1, "correct_count").Float64(), ShouldEqual, 8)
				So(out.At(r1, "correct_rate").Float64(), ShouldAlmostEqual, 100.0*8/12, 1e-9)
				So(out.At(r2, "answered_count").Int64(), ShouldEqual, 2)
				So(out.At(r2, "correct_rate").Float64(), ShouldEqual, 50)
			})

			Convey("And every part column exists for every subject, zero-filled", func() {
				So(out.At(r1, "answered_count_part_1").Float64(), ShouldEqual, 8)
				So(out.At(r1, "answered_count_part_2").Float64(), ShouldEqual, 4)
				So(out.At(r1, "correct_sum_part_2").Float64(), ShouldEqual, 4)
				So(out.At(r2, "answered_count_part_1").Float64(), ShouldEqual, 2)
				So(out.At(r2, "answered_count_part_2").Float64(), ShouldEqual, 0)
			})

			Convey("And lecture pivots fold in with zero fill for non-viewers", func() {
				So(out.At(r2, "viewed_count_part_5").Float64(), ShouldEqual, 1)
				So(out.At(r2, "viewed_count_kind_concept").Float64(), ShouldEqual, 1)
				So(out.At(r1, "viewed_count_part_5").Float64(), ShouldEqual, 0)
			})

			Convey("And a lecture-only subject has an undefined rate, not zero", func() {
				So(out.At(r3, "viewed_count_part_5").Float64(), ShouldEqual, 1)
				So(out.At(r3, "answered_count").Float64(), ShouldEqual, 0)
				So(math.IsNaN(out.At(r3, "correct_rate").Float64()), ShouldBeTrue)
			})

			Convey("And elapsed means skip the unobserved final container", func() {
				So(out.At(r1, "elapsed_time_mean").Float64(), ShouldAlmostEqual, (7*1000.0+4*2000.0)/11, 1e-9)
				So(out.At(r2, "elapsed_time_mean").Float64(), ShouldEqual, 500)
			})
		})
	})

	Convey("Given a missing catalog", t, func() {
		_, err := learning.New(nil, mapCatalog{})
		So(err, ShouldWrap, learning.ErrNilCatalog)
	})
}

func TestLabels(t *testing.T) {
	Convey("Given history and a held-out container", t, func() {
		ctx := context.Background()
		questions := mapCatalog{
			10: {Part: 1, Tags: assemble.ParseTags("51 131")},
			30: {Part: 3, Tags: assemble.ParseTags("131 7")},
			40: {Part: 4, Tags: assemble.ParseTags("999")},
		}
		b, err := learning.New(questions, mapCatalog{})
		So(err, ShouldBeNil)

		history := newLog()
		question(history, 1, 0, 0, 10, 1, frame.Null())
		question(history, 2, 0, 1, 10, 0, frame.Null())

		heldOut := newLog()
		question(heldOut, 1, 1, 2, 30, 1, frame.Float(100)) // shares tag 131
		question(heldOut, 2, 1, 3, 40, 0, frame.Float(100)) // unseen tags

		Convey("When deriving labels", func() {
			out, err := b.Labels(ctx, history, heldOut)
			So(err, ShouldBeNil)
			So(out.Columns(), ShouldResemble, []string{learning.ColSubject, learning.ColLabel, learning.ColSeenTags})

			r1 := rowOf(out, 1)
			r2 := rowOf(out, 2)

			Convey("Then the label is the held-out outcome", func() {
				So(out.At(r1, learning.ColLabel).Int64(), ShouldEqual, 1)
				So(out.At(r2, learning.ColLabel).Int64(), ShouldEqual, 0)
			})

			Convey("And tag overlap reflects the subject's history", func() {
				So(out.At(r1, learning.ColSeenTags).Int64(), ShouldEqual, 1)
				So(out.At(r2, learning.ColSeenTags).Int64(), ShouldEqual, 0)
			})
		})
	})
}
