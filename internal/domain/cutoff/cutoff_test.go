package cutoff_test

import (
	"context"
	"testing"

	"github.com/okian/featable/internal/domain/cutoff"
	"github.com/okian/featable/internal/domain/frame"
	. "github.com/smartystreets/goconvey/convey"
)

// subjectLog builds a log where each subject owns count single-action
// containers numbered from 0, with globally increasing row_order.
func subjectLog(counts map[int64]int) *frame.Table {
	tbl := frame.New("subject_id", "container_id", "row_order")
	order := int64(0)
	for subj := int64(1); subj <= int64(len(counts)); subj++ {
		for c := 0; c < counts[subj]; c++ {
			tbl.MustAppend(frame.Int(subj), frame.Int(int64(c)), frame.Int(order))
			order++
		}
	}
	return tbl
}

func TestCutoffDraw(t *testing.T) {
	Convey("Given subjects on both sides of the minimum-history bound", t, func() {
		ctx := context.Background()
		tbl := subjectLog(map[int64]int{1: 12, 2: 2, 3: 10})
		s := cutoff.New(cutoff.WithMinHistory(10), cutoff.WithSeed(42))

		Convey("When drawing cutoffs", func() {
			cuts, err := s.Cutoffs(ctx, tbl)
			So(err, ShouldBeNil)

			byID := map[int64]frame.Value{}
			counts := map[int64]int64{}
			for i := 0; i < cuts.NumRows(); i++ {
				id := cuts.At(i, "subject_id").Int64()
				byID[id] = cuts.At(i, "cutoff_position")
				counts[id] = cuts.At(i, "eligible_count").Int64()
			}

			Convey("Then a subject above the bound draws from [m, count]", func() {
				// positions are containers 0..11; the draw covers the
				// 10th..12th positions, i.e. container ids 9..11.
				So(byID[1].Int64(), ShouldBeBetweenOrEqual, 9, 11)
				So(counts[1], ShouldEqual, 12)
			})

			Convey("And a subject below the bound degenerates to its last position", func() {
				So(byID[2].Int64(), ShouldEqual, 1)
			})

			Convey("And a subject with exactly m positions has no freedom", func() {
				So(byID[3].Int64(), ShouldEqual, 9)
			})
		})

		Convey("When running twice with the same seed", func() {
			first, err := s.Cutoffs(ctx, tbl)
			So(err, ShouldBeNil)
			second, err := s.Cutoffs(ctx, tbl)
			So(err, ShouldBeNil)

			Convey("Then every cutoff is identical", func() {
				So(second.NumRows(), ShouldEqual, first.NumRows())
				for i := 0; i < first.NumRows(); i++ {
					So(second.At(i, "cutoff_position").Int64(), ShouldEqual, first.At(i, "cutoff_position").Int64())
				}
			})
		})

		Convey("When the input rows arrive permuted with row_order intact", func() {
			sorted, err := tbl.SortBy("container_id") // interleaves subjects
			So(err, ShouldBeNil)
			orig, err := s.Cutoffs(ctx, tbl)
			So(err, ShouldBeNil)
			perm, err := s.Cutoffs(ctx, sorted)
			So(err, ShouldBeNil)

			toMap := func(t *frame.Table) map[int64]int64 {
				m := map[int64]int64{}
				for i := 0; i < t.NumRows(); i++ {
					m[t.At(i, "subject_id").Int64()] = t.At(i, "cutoff_position").Int64()
				}
				return m
			}

			Convey("Then the draw is unchanged", func() {
				So(toMap(perm), ShouldResemble, toMap(orig))
			})
		})

		Convey("When the policy is not supported", func() {
			bad := cutoff.New(cutoff.WithPolicy(cutoff.Policy("newest")))
			_, err := bad.Cutoffs(ctx, tbl)
			So(err, ShouldWrap, cutoff.ErrUnknownPolicy)
		})
	})
}

func TestSplitPartitions(t *testing.T) {
	Convey("Given a subject with five containers and m=3", t, func() {
		ctx := context.Background()
		tbl := subjectLog(map[int64]int{1: 5})
		s := cutoff.New(cutoff.WithMinHistory(3), cutoff.WithSeed(7))

		Convey("When splitting", func() {
			cuts, err := s.Cutoffs(ctx, tbl)
			So(err, ShouldBeNil)
			cut := cuts.At(0, "cutoff_position").Int64()

			history, heldOut, err := s.Split(ctx, tbl)
			So(err, ShouldBeNil)

			Convey("Then history holds strictly-before positions, held-out the cutoff, and the tail is discarded", func() {
				So(history.NumRows(), ShouldEqual, int(cut))
				So(heldOut.NumRows(), ShouldEqual, 1)
				So(heldOut.At(0, "container_id").Int64(), ShouldEqual, cut)
				total := history.NumRows() + heldOut.NumRows()
				So(total, ShouldBeLessThanOrEqualTo, 5)
			})
		})
	})

	Convey("Given a subject with fewer events than the minimum history", t, func() {
		ctx := context.Background()
		tbl := subjectLog(map[int64]int{1: 2})
		s := cutoff.New(cutoff.WithMinHistory(10), cutoff.WithSeed(7))

		Convey("When splitting", func() {
			history, heldOut, err := s.Split(ctx, tbl)
			So(err, ShouldBeNil)

			Convey("Then history keeps the whole event set", func() {
				So(history.NumRows(), ShouldEqual, 2)
			})

			Convey("And the final event doubles as the held-out one", func() {
				So(heldOut.NumRows(), ShouldEqual, 1)
				So(heldOut.At(0, "container_id").Int64(), ShouldEqual, 1)
			})
		})
	})

	Convey("Given a subject with zero eligible events", t, func() {
		ctx := context.Background()
		tbl := frame.New("subject_id", "container_id", "row_order", "event_type")
		tbl.MustAppend(frame.Int(9), frame.Int(0), frame.Int(0), frame.Str("lecture"))

		s := cutoff.New(cutoff.WithEligibleRows("event_type", "question"))

		Convey("When splitting", func() {
			history, heldOut, err := s.Split(ctx, tbl)

			Convey("Then the subject is excluded from both partitions, not an error", func() {
				So(err, ShouldBeNil)
				So(history.NumRows(), ShouldEqual, 0)
				So(heldOut.NumRows(), ShouldEqual, 0)
			})
		})
	})
}

func TestSingleActionPolicy(t *testing.T) {
	Convey("Given a subject whose latest container is a multi-question batch", t, func() {
		ctx := context.Background()
		tbl := frame.New("subject_id", "container_id", "row_order")
		tbl.MustAppend(frame.Int(1), frame.Int(0), frame.Int(0))
		tbl.MustAppend(frame.Int(1), frame.Int(1), frame.Int(1))
		tbl.MustAppend(frame.Int(1), frame.Int(2), frame.Int(2))
		tbl.MustAppend(frame.Int(1), frame.Int(2), frame.Int(3)) // batch of two

		s := cutoff.New(
			cutoff.WithMinHistory(5),
			cutoff.WithPolicy(cutoff.PolicySingleActionContainers),
		)

		Convey("When drawing cutoffs", func() {
			cuts, err := s.Cutoffs(ctx, tbl)

			Convey("Then the batch container is never drawn", func() {
				So(err, ShouldBeNil)
				So(cuts.NumRows(), ShouldEqual, 1)
				So(cuts.At(0, "cutoff_position").Int64(), ShouldEqual, 1)
				So(cuts.At(0, "eligible_count").Int64(), ShouldEqual, 2)
			})
		})
	})
}
