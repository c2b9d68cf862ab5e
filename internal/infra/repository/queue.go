package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/totegamma/ticketgate"
	"github.com/totegamma/ticketgate/internal/domain"
	"github.com/totegamma/ticketgate/internal/infra/database/models"
	"github.com/totegamma/ticketgate/internal/usecase"
)

// QueueRepository is a durable offline queue. Seq keeps capture order.
type QueueRepository struct {
	db *gorm.DB
}

func NewQueueRepository(db *gorm.DB) *QueueRepository {
	return &QueueRepository{db: db}
}

func (r *QueueRepository) Enqueue(ctx context.Context, record domain.ScanRecord) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(&models.QueuedScan{
		ID:        record.ID,
		EventID:   record.EventID,
		DeviceID:  record.DeviceID,
		Raw:       record.Raw,
		TicketID:  record.TicketID,
		Status:    string(record.Status),
		Message:   record.Message,
		ScannedAt: record.ScannedAt,
	}).Error
}

func (r *QueueRepository) Pending(ctx context.Context, limit int) ([]domain.ScanRecord, error) {
	var rows []models.QueuedScan
	err := r.db.WithContext(ctx).
		Where("synced = ?", false).
		Order("seq ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	records := make([]domain.ScanRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, domain.ScanRecord{
			ID:        row.ID,
			EventID:   row.EventID,
			DeviceID:  row.DeviceID,
			Raw:       row.Raw,
			TicketID:  row.TicketID,
			Status:    ticketgate.Status(row.Status),
			Message:   row.Message,
			ScannedAt: row.ScannedAt,
			State:     domain.ScanStateQueued,
			Sync:      domain.SyncPending,
		})
	}
	return records, nil
}

func (r *QueueRepository) MarkSynced(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.QueuedScan{}).
		Where("id IN ?", ids).
		Update("synced", true).Error
}

var _ usecase.ScanQueue = (*QueueRepository)(nil)
