package provider

import (
	"log"

	"github.com/robfig/cron/v3"
)

// ScheduleBackups runs Backup on the standard cron spec until the returned
// stop function is called. Stop waits for a running backup.
func (r *Registry) ScheduleBackups(spec string) (stop func(), err error) {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		path, err := r.Backup()
		if err != nil {
			log.Printf("[registry] scheduled backup failed: %v", err)
			return
		}
		log.Printf("[registry] scheduled backup written to %s", path)
	}); err != nil {
		return nil, err
	}
	c.Start()
	return func() {
		ctx := c.Stop()
		<-ctx.Done()
	}, nil
}
