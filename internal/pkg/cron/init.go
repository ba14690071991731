package cron

import log "log/slog"

func InitCron(mgr *Manager) error {
	log.Info("Cron Jobs starting...", "reap_spec", mgr.reapSpec)
	if err := mgr.RegisterJobs(); err != nil {
		return err
	}
	mgr.Start()
	return nil
}
