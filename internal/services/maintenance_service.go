package services

import (
	"context"
	"log"

	"github.com/robfig/cron/v3"

	"github.com/saheelsapovadia/dopamine-detox-backend/internal/queue"
)

// MaintenanceService periodically logs sync pipeline depth so a growing
// backlog or dead-letter stream is visible in the logs.
type MaintenanceService struct {
	queue queue.SyncQueue
	spec  string
	cron  *cron.Cron
}

func NewMaintenanceService(syncQueue queue.SyncQueue, spec string) *MaintenanceService {
	return &MaintenanceService{queue: syncQueue, spec: spec, cron: cron.New()}
}

func (m *MaintenanceService) Start() error {
	_, err := m.cron.AddFunc(m.spec, m.report)
	if err != nil {
		return err
	}
	m.cron.Start()
	return nil
}

func (m *MaintenanceService) Stop() {
	<-m.cron.Stop().Done()
}

func (m *MaintenanceService) report() {
	stats, err := m.queue.Stats(context.Background())
	if err != nil {
		log.Printf("maintenance: queue stats: %v", err)
		return
	}
	log.Printf("maintenance: sync stream depth=%d pending=%d dlq=%d",
		stats.StreamDepth, stats.PendingCount, stats.DLQDepth)
}
