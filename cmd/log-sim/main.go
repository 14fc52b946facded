// log-sim generates synthetic raw logs for exercising the feature
// pipeline end to end: a learning event log with its content catalogs, or
// a telemetry error and quality log pair.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/featable/internal/adapters/csvio"
	"github.com/okian/featable/internal/domain/frame"
	"github.com/okian/featable/internal/features/learning"
	"github.com/okian/featable/internal/features/telemetry"
)

const (
	defaultSubjects  = 100
	defaultEvents    = 50
	defaultSeed      = 1
	numQuestions     = 200
	numLectures      = 40
	numParts         = 7
	numErrTypes      = 8
	simDays          = 30
	explanationOdds  = 0.8
	lectureOdds      = 0.1
	missingPriorOdds = 0.05
)

var lectureKinds = []string{"concept", "solving_question", "intention", "starter"}

func main() {
	var (
		mode     = flag.String("mode", "learning", "log family to generate: learning or telemetry")
		subjects = flag.Int("subjects", defaultSubjects, "number of subjects")
		events   = flag.Int("events", defaultEvents, "events per subject")
		seed     = flag.Int64("seed", defaultSeed, "generator seed")
		outDir   = flag.String("out", ".", "output directory")
	)
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed)) //nolint:gosec // synthetic data
	var err error
	switch *mode {
	case "learning":
		err = writeLearning(rng, *outDir, *subjects, *events)
	case "telemetry":
		err = writeTelemetry(rng, *outDir, *subjects, *events)
	default:
		err = fmt.Errorf("unknown mode %q", *mode)
	}
	if err != nil {
		os.Stderr.WriteString("log-sim: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func writeLearning(rng *rand.Rand, dir string, subjects, events int) error {
	questions := frame.New("content_id", "part", "tags")
	for id := int64(0); id < numQuestions; id++ {
		questions.MustAppend(
			frame.Int(id),
			frame.Int(rng.Int63n(numParts)+1),
			frame.Str(fmt.Sprintf("%d %d", rng.Intn(200), rng.Intn(200))),
		)
	}

	lectures := frame.New("content_id", "part", "kind")
	for id := int64(0); id < numLectures; id++ {
		lectures.MustAppend(
			frame.Int(id),
			frame.Int(rng.Int63n(numParts)+1),
			frame.Str(lectureKinds[rng.Intn(len(lectureKinds))]),
		)
	}

	log := frame.New(
		learning.ColSubject, learning.ColContainer, learning.ColEventType,
		learning.ColContent, learning.ColOutcome,
		learning.ColPriorElapsed, learning.ColPriorExplained,
	)
	for subj := int64(1); subj <= int64(subjects); subj++ {
		skill := 0.3 + 0.5*rng.Float64()
		for c := int64(0); c < int64(events); c++ {
			if rng.Float64() < lectureOdds {
				log.MustAppend(
					frame.Int(subj), frame.Int(c), frame.Str("1"),
					frame.Int(rng.Int63n(numLectures)), frame.Null(),
					frame.Null(), frame.Null(),
				)
				continue
			}
			prior := frame.Float(float64(rng.Intn(60000) + 5000))
			if c == 0 || rng.Float64() < missingPriorOdds {
				prior = frame.Null()
			}
			outcome := int64(0)
			if rng.Float64() < skill {
				outcome = 1
			}
			explained := int64(0)
			if rng.Float64() < explanationOdds {
				explained = 1
			}
			log.MustAppend(
				frame.Int(subj), frame.Int(c), frame.Str("0"),
				frame.Int(rng.Int63n(numQuestions)), frame.Int(outcome),
				prior, frame.Int(explained),
			)
		}
	}

	for path, tbl := range map[string]*frame.Table{
		"event_log.csv":        log,
		"question_catalog.csv": questions,
		"lecture_catalog.csv":  lectures,
	} {
		if err := csvio.WriteFile(filepath.Join(dir, path), tbl); err != nil {
			return err
		}
	}
	return nil
}

func writeTelemetry(rng *rand.Rand, dir string, subjects, events int) error {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	stamp := func() string {
		offset := time.Duration(rng.Int63n(int64(simDays) * 24 * int64(time.Hour)))
		return start.Add(offset).Format(csvio.DefaultTimeLayout)
	}

	errors := frame.New(telemetry.ColSubject, "event_time", telemetry.ColErrType)
	for subj := int64(1); subj <= int64(subjects); subj++ {
		for i := 0; i < events; i++ {
			errors.MustAppend(
				frame.Int(subj), frame.Str(stamp()),
				frame.Int(rng.Int63n(numErrTypes)+1),
			)
		}
	}

	qualityCols := telemetry.DefaultQualityColumns()
	cols := append([]string{telemetry.ColSubject, "event_time", telemetry.ColFirmware}, qualityCols...)
	quality := frame.New(cols...)
	for subj := int64(1); subj <= int64(subjects); subj++ {
		fw := fmt.Sprintf("%d.%d", rng.Intn(3)+1, rng.Intn(10))
		probes := events / 4
		if probes < 1 {
			probes = 1
		}
		for i := 0; i < probes; i++ {
			row := []frame.Value{frame.Int(subj), frame.Str(stamp()), frame.Str(fw)}
			for range qualityCols {
				row = append(row, frame.Float(float64(rng.Intn(13)-6)))
			}
			quality.MustAppend(row...)
		}
	}

	for path, tbl := range map[string]*frame.Table{
		"error_log.csv":   errors,
		"quality_log.csv": quality,
	} {
		if err := csvio.WriteFile(filepath.Join(dir, path), tbl); err != nil {
			return err
		}
	}
	return nil
}
