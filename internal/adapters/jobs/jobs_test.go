package jobs_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/okian/featable/internal/adapters/jobs"
	"github.com/okian/featable/internal/domain/frame"
	"github.com/okian/featable/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	m.Run()
}

func tableJob(name string, rows int) jobs.Job {
	return jobs.Job{
		Name: name,
		Run: func(context.Context) (*frame.Table, error) {
			tbl := frame.New("subject_id")
			for i := 0; i < rows; i++ {
				tbl.MustAppend(frame.Int(int64(i)))
			}
			return tbl, nil
		},
	}
}

func TestRunAll(t *testing.T) {
	Convey("Given a batch of independent feature jobs", t, func() {
		ctx := context.Background()
		batch := []jobs.Job{
			tableJob("questions", 3),
			tableJob("lectures", 1),
			tableJob("totals", 2),
		}

		Convey("When running with several workers", func() {
			out, err := jobs.RunAll(ctx, 4, batch)
			So(err, ShouldBeNil)

			Convey("Then every job's table is keyed by name", func() {
				So(out, ShouldHaveLength, 3)
				So(out["questions"].NumRows(), ShouldEqual, 3)
				So(out["lectures"].NumRows(), ShouldEqual, 1)
				So(out["totals"].NumRows(), ShouldEqual, 2)
			})
		})

		Convey("When running the same batch serially", func() {
			parallel, err := jobs.RunAll(ctx, 4, batch)
			So(err, ShouldBeNil)
			serial, err := jobs.RunAll(ctx, 1, batch)
			So(err, ShouldBeNil)

			Convey("Then worker count does not change the output", func() {
				So(len(serial), ShouldEqual, len(parallel))
				for name, tbl := range parallel {
					So(serial[name].NumRows(), ShouldEqual, tbl.NumRows())
				}
			})
		})

		Convey("When the context is already cancelled", func() {
			cancelled, cancel := context.WithCancel(ctx)
			cancel()

			Convey("Then the batch fails rather than returning a partial map", func() {
				// Workers racing ctx.Done against the queue can skip a
				// job; that must surface as an error every time.
				for i := 0; i < 200; i++ {
					out, err := jobs.RunAll(cancelled, 2, batch)
					if err == nil && len(out) == len(batch) {
						continue // all jobs beat the cancellation
					}
					So(err, ShouldNotBeNil)
					So(out, ShouldBeNil)
				}
			})
		})

		Convey("When one job fails", func() {
			boom := errors.New("boom")
			failing := append(batch, jobs.Job{
				Name: "broken",
				Run:  func(context.Context) (*frame.Table, error) { return nil, boom },
			})

			_, err := jobs.RunAll(ctx, 2, failing)

			Convey("Then the batch fails and names the job", func() {
				So(err, ShouldNotBeNil)
				So(errors.Is(err, boom), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "broken")
			})
		})
	})
}

func TestQueue(t *testing.T) {
	Convey("Given a bounded queue", t, func() {
		ctx := context.Background()
		q := jobs.NewQueue(jobs.WithCapacity(1))

		Convey("When the queue is full", func() {
			So(q.Enqueue(ctx, tableJob("a", 1)), ShouldBeTrue)

			Convey("Then further enqueues are rejected, not blocked", func() {
				So(q.Enqueue(ctx, tableJob("b", 1)), ShouldBeFalse)
				So(q.Len(), ShouldEqual, 1)
			})
		})

		Convey("When the queue is closed", func() {
			So(q.Close(), ShouldBeNil)
			So(q.IsClosed(), ShouldBeTrue)

			Convey("Then enqueue refuses and close is idempotent", func() {
				So(q.Enqueue(ctx, tableJob("c", 1)), ShouldBeFalse)
				So(q.Close(), ShouldBeNil)
			})
		})
	})
}

func TestPool(t *testing.T) {
	Convey("Given a pool over a closed queue with queued jobs", t, func() {
		ctx := context.Background()
		q := jobs.NewQueue(jobs.WithCapacity(8))
		for i := 0; i < 5; i++ {
			So(q.Enqueue(ctx, tableJob(fmt.Sprintf("job-%d", i), i)), ShouldBeTrue)
		}
		So(q.Close(), ShouldBeNil)

		Convey("When starting and waiting", func() {
			p := jobs.NewPool(q, jobs.WithWorkers(3))
			p.Start(ctx)
			results := p.Wait()

			Convey("Then results drain completely, sorted by name", func() {
				So(results, ShouldHaveLength, 5)
				for i, r := range results {
					So(r.Name, ShouldEqual, fmt.Sprintf("job-%d", i))
					So(r.Err, ShouldBeNil)
				}
			})
		})
	})
}
