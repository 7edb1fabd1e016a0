package services

import (
	"context"

	"github.com/pec-cloud/server/internal/models"
	"github.com/pec-cloud/server/pkg/logger"
	"gorm.io/gorm"
)

// AuditService is the append-only log sink. Writes go through a
// buffered queue served by a single worker goroutine so request
// handling never blocks on log inserts; when the queue is full the
// entry is dropped and the drop itself is logged.
type AuditService struct {
	DB    *gorm.DB
	queue chan func(db *gorm.DB)
}

func NewAuditService(db *gorm.DB) *AuditService {
	s := &AuditService{
		DB:    db,
		queue: make(chan func(db *gorm.DB), 1000),
	}
	go s.processQueue()
	return s
}

func (s *AuditService) processQueue() {
	for job := range s.queue {
		job(s.DB)
	}
}

func (s *AuditService) enqueue(action string, job func(db *gorm.DB)) {
	select {
	case s.queue <- job:
	default:
		logger.Warn("audit_queue_full", map[string]interface{}{
			"action":  action,
			"dropped": true,
		})
	}
}

// Flush blocks until every entry queued before the call is written.
func (s *AuditService) Flush() {
	done := make(chan struct{})
	s.queue <- func(*gorm.DB) { close(done) }
	<-done
}

// RecordNode appends a node lifecycle entry.
func (s *AuditService) RecordNode(entry models.NodeLog) {
	s.enqueue(string(entry.ActivityType), func(db *gorm.DB) {
		if err := db.Create(&entry).Error; err != nil {
			logger.Error("node_log_insert_failed", err, map[string]interface{}{
				"activity_type": entry.ActivityType,
			})
		}
	})
}

// RecordUser appends an account lifecycle entry.
func (s *AuditService) RecordUser(entry models.UserLog) {
	s.enqueue(string(entry.ActivityType), func(db *gorm.DB) {
		if err := db.Create(&entry).Error; err != nil {
			logger.Error("user_log_insert_failed", err, map[string]interface{}{
				"activity_type": entry.ActivityType,
			})
		}
	})
}

func (s *AuditService) FindNodeLogsByNode(ctx context.Context, nodeID uint) ([]models.NodeLog, error) {
	var logs []models.NodeLog
	err := s.DB.WithContext(ctx).Where("node_id = ?", nodeID).Order("timestamp DESC").Find(&logs).Error
	return logs, err
}

func (s *AuditService) FindUserLogsBySubject(ctx context.Context, username string) ([]models.UserLog, error) {
	var logs []models.UserLog
	err := s.DB.WithContext(ctx).Where("subject_username = ?", username).Order("timestamp DESC").Find(&logs).Error
	return logs, err
}

func (s *AuditService) FindNodeLogsByActivityType(ctx context.Context, activity models.ActivityType) ([]models.NodeLog, error) {
	var logs []models.NodeLog
	err := s.DB.WithContext(ctx).Where("activity_type = ?", activity).Order("timestamp DESC").Find(&logs).Error
	return logs, err
}

func (s *AuditService) FindUserLogsByActivityType(ctx context.Context, activity models.ActivityType) ([]models.UserLog, error) {
	var logs []models.UserLog
	err := s.DB.WithContext(ctx).Where("activity_type = ?", activity).Order("timestamp DESC").Find(&logs).Error
	return logs, err
}

func (s *AuditService) FindNodeLogsByPerformer(ctx context.Context, username string) ([]models.NodeLog, error) {
	var logs []models.NodeLog
	err := s.DB.WithContext(ctx).Where("performer_username = ?", username).Order("timestamp DESC").Find(&logs).Error
	return logs, err
}

func (s *AuditService) FindUserLogsByPerformer(ctx context.Context, username string) ([]models.UserLog, error) {
	var logs []models.UserLog
	err := s.DB.WithContext(ctx).Where("performer_username = ?", username).Order("timestamp DESC").Find(&logs).Error
	return logs, err
}
