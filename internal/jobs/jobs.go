package jobs

import (
	"ineed/config"
	"ineed/internal/services"

	logger "github.com/Bparsons0904/goLogger"
)

// SessionJobs returns the factory the session manager uses to start the polling
// jobs of every new session.
func SessionJobs(config config.Config, lister RequestLister) services.JobFactory {
	log := logger.New("jobs").Function("SessionJobs")
	log.Info(
		"Registering session jobs",
		"notificationInterval", config.NotificationPollInterval(),
		"unreadInterval", config.UnreadPollInterval(),
	)

	return func(session *services.Session) []services.Job {
		return []services.Job{
			NewNotificationPollJob(session, config.NotificationPollInterval()),
			NewUnreadPollJob(session, lister, config.UnreadPollInterval()),
		}
	}
}
