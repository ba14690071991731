package cron

import (
	log "log/slog"

	"github.com/robfig/cron/v3"

	"Parley/internal/job"
)

type Manager struct {
	engine   *cron.Cron
	reapSpec string
	reapJob  *job.SessionReapJob
}

func NewCronManager(reapSpec string, reapJob *job.SessionReapJob) *Manager {
	return &Manager{
		engine:   cron.New(cron.WithSeconds()),
		reapSpec: reapSpec,
		reapJob:  reapJob,
	}
}

// RegisterJobs 注册定时任务
func (s *Manager) RegisterJobs() error {
	if _, err := s.engine.AddJob(s.reapSpec, cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(s.reapJob)); err != nil {
		return err
	}
	return nil
}

func (s *Manager) Start() {
	log.Info("Cron 定时任务引擎启动", "jobs", len(s.engine.Entries()))
	s.engine.Start()
}

// Stop 等待正在执行的任务结束
func (s *Manager) Stop() {
	log.Info("Cron 定时任务引擎停止")
	<-s.engine.Stop().Done()
}
