// Package progress fans crawl milestone events out to registered sinks
// without blocking the crawl loop.
package progress

import (
	"errors"
	"fmt"
	"time"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageJobStart Stage = "JOB_START"
	StageJobDone  Stage = "JOB_DONE"
	StageCategory Stage = "CATEGORY"
	StageProduct  Stage = "PRODUCT"
	StageError    Stage = "ERROR"
)

// Event captures a single crawl milestone.
type Event struct {
	// JobID identifies the job run.
	JobID string
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which milestone occurred.
	Stage Stage
	// URL is the category or product URL, when the stage has one.
	URL string
	// Note carries low-volume context such as error text.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.JobID == "" {
		return errors.New("job id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageJobStart, StageJobDone, StageError:
	case StageCategory, StageProduct:
		if e.URL == "" {
			return fmt.Errorf("%s event requires url", e.Stage)
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	return nil
}
