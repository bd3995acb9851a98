// services/scheduler.go
package services

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"

	"game-tournament-system/models"
)

// StartStatusScheduler flips tournaments through their lifecycle on a timer:
// draft opens for registration when the registration window starts, a
// registering tournament goes live at its start time, and a live one finishes
// at its end time (unless the bracket already finished it). Returns the
// scheduler so the caller can shut it down.
func (s *TournamentService) StartStatusScheduler(ctx context.Context) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			s.runStatusSweep(ctx)
		}),
	)
	if err != nil {
		return nil, err
	}

	sched.Start()
	return sched, nil
}

func (s *TournamentService) runStatusSweep(ctx context.Context) {
	now := time.Now()

	drafts, err := s.Store.Tournaments(ctx, models.TournamentDraft)
	if err != nil {
		log.Printf("[Scheduler] listing drafts: %v", err)
		return
	}
	for _, t := range drafts {
		if t.RegistrationStart != nil && !now.Before(*t.RegistrationStart) {
			if _, err := s.SetStatus(ctx, t.ID, models.TournamentRegistering); err != nil {
				log.Printf("[Scheduler] failed to open registration for %s: %v", t.ID, err)
			} else {
				log.Printf("[Scheduler] registration opened: %s", t.Name)
			}
		}
	}

	registering, err := s.Store.Tournaments(ctx, models.TournamentRegistering)
	if err != nil {
		log.Printf("[Scheduler] listing registering: %v", err)
		return
	}
	for _, t := range registering {
		if !now.Before(t.StartTime) {
			if _, err := s.SetStatus(ctx, t.ID, models.TournamentLive); err != nil {
				log.Printf("[Scheduler] failed to start %s: %v", t.ID, err)
			} else {
				log.Printf("[Scheduler] tournament live: %s", t.Name)
			}
		}
	}

	live, err := s.Store.Tournaments(ctx, models.TournamentLive)
	if err != nil {
		log.Printf("[Scheduler] listing live: %v", err)
		return
	}
	for _, t := range live {
		if !now.Before(t.EndTime) {
			if _, err := s.SetStatus(ctx, t.ID, models.TournamentFinished); err != nil {
				log.Printf("[Scheduler] failed to finish %s: %v", t.ID, err)
			} else {
				log.Printf("[Scheduler] tournament finished: %s", t.Name)
			}
		}
	}
}
