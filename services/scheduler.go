// services/scheduler.go
package services

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartScheduler registers the periodic jobs: unlock toasts are dismissed
// after UnlockAutoDismiss, and monthly referral counters reset on the 1st.
// The caller shuts the returned scheduler down.
func StartScheduler(notifier *UnlockNotifier, referrals *ReferralService) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, err
	}

	if _, err := sched.NewJob(
		gocron.DurationJob(1*time.Second),
		gocron.NewTask(func() {
			if n := notifier.DismissOlderThan(UnlockAutoDismiss); n > 0 {
				log.Printf("[Scheduler] Dismissed %d unlock notification(s)", n)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		return nil, err
	}

	if _, err := sched.NewJob(
		gocron.CronJob("0 0 1 * *", false),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			n, err := referrals.ResetMonthlyReferrals(ctx)
			if err != nil {
				log.Printf("[Scheduler] Monthly referral reset failed: %v", err)
				return
			}
			log.Printf("✅ Reset monthly referrals for %d referrer(s)", n)
		}),
	); err != nil {
		return nil, err
	}

	sched.Start()
	return sched, nil
}
