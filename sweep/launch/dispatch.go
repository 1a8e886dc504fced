package launch

import (
	"context"
	"fmt"
	"strings"

	"github.com/gammazero/deque"
	"github.com/sirupsen/logrus"

	"github.com/hpcsweep/hpcsweep/sweep"
	"github.com/hpcsweep/hpcsweep/sweep/queue"
)

// SweepError reports the scheme a sweep stopped at and the folders that were
// never attempted, so the sweep can be resumed with SkipExisting.
type SweepError struct {
	Folder    string
	Remaining []string
	Err       error
}

func (e *SweepError) Error() string {
	return fmt.Sprintf("sweep stopped at %s (%d not attempted): %v", e.Folder, len(e.Remaining), e.Err)
}

func (e *SweepError) Unwrap() error { return e.Err }

// Report summarizes a sweep.
type Report struct {
	Submitted []queue.Job
	Skipped   []string
	DryRun    []queue.Invocation
}

// Dispatcher submits a sweep one scheme at a time in enumeration order.
type Dispatcher struct {
	Launcher     *Launcher
	SkipExisting bool
	DryRun       bool
}

// Run checks that folder names are unique and submits every scheme. It stops
// at the first failure; a failed submission is not retried.
func (d *Dispatcher) Run(ctx context.Context, schemes []sweep.Scheme) (Report, error) {
	if err := sweep.CheckUniqueFolders(schemes); err != nil {
		return Report{}, err
	}
	var pending deque.Deque[sweep.Scheme]
	for _, s := range schemes {
		pending.PushBack(s)
	}

	var report Report
	for pending.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		s := pending.PopFront()
		folder, err := s.FolderName()
		if err != nil {
			return report, err
		}
		logger := logrus.WithField("folder", folder)

		if d.DryRun {
			inv, err := d.Launcher.DryRun(s)
			if err != nil {
				return report, d.stop(folder, &pending, err)
			}
			report.DryRun = append(report.DryRun, inv)
			continue
		}
		if d.SkipExisting {
			dir, err := d.Launcher.Dir(s)
			if err != nil {
				return report, err
			}
			if exists(dir) {
				logger.Info("skipping existing run")
				report.Skipped = append(report.Skipped, folder)
				continue
			}
		}
		job, err := d.Launcher.Launch(ctx, s)
		if err != nil {
			return report, d.stop(folder, &pending, err)
		}
		report.Submitted = append(report.Submitted, job)
	}
	return report, nil
}

// Restart resumes every scheme of a sweep from the snapshot at index.
func (d *Dispatcher) Restart(ctx context.Context, schemes []sweep.Scheme, index int) (Report, error) {
	if err := sweep.CheckUniqueFolders(schemes); err != nil {
		return Report{}, err
	}
	var pending deque.Deque[sweep.Scheme]
	for _, s := range schemes {
		pending.PushBack(s)
	}
	var report Report
	for pending.Len() > 0 {
		s := pending.PopFront()
		folder, err := s.FolderName()
		if err != nil {
			return report, err
		}
		job, err := d.Launcher.Restart(ctx, s, index)
		if err != nil {
			return report, d.stop(folder, &pending, err)
		}
		report.Submitted = append(report.Submitted, job)
	}
	return report, nil
}

func (d *Dispatcher) stop(folder string, pending *deque.Deque[sweep.Scheme], err error) error {
	remaining := make([]string, 0, pending.Len())
	for i := 0; i < pending.Len(); i++ {
		name, nameErr := pending.At(i).FolderName()
		if nameErr != nil {
			continue
		}
		remaining = append(remaining, name)
	}
	if len(remaining) > 0 {
		logrus.WithField("folder", folder).Warnf("not attempted: %s", strings.Join(remaining, ", "))
	}
	return &SweepError{Folder: folder, Remaining: remaining, Err: err}
}
