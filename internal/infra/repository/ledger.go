package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/totegamma/ticketgate"
	"github.com/totegamma/ticketgate/internal/domain"
	"github.com/totegamma/ticketgate/internal/infra/database/models"
	"github.com/totegamma/ticketgate/internal/usecase"
)

const defaultListLimit = 100

type LedgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func validateRecord(rec domain.ScanRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("record id is required")
	}
	if rec.EventID == "" {
		return fmt.Errorf("event id is required")
	}
	if !rec.Status.Valid() {
		return fmt.Errorf("unknown status %q", rec.Status)
	}
	if rec.Status == ticketgate.StatusValid && rec.TicketID == "" {
		return fmt.Errorf("admitted record without ticket id")
	}
	return nil
}

// Append stores records in order. Each record is written in its own transaction
// so one bad record does not reject the batch. A record id that is already
// stored reports the stored outcome again.
func (r *LedgerRepository) Append(ctx context.Context, records []domain.ScanRecord) ([]domain.SyncResult, error) {
	results := make([]domain.SyncResult, 0, len(records))

	for _, rec := range records {
		if err := validateRecord(rec); err != nil {
			results = append(results, domain.SyncResult{RecordID: rec.ID, Error: err.Error()})
			continue
		}

		result := domain.SyncResult{RecordID: rec.ID, OK: true}
		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			entry := models.LedgerEntry{
				ID:        rec.ID,
				EventID:   rec.EventID,
				TicketID:  rec.TicketID,
				DeviceID:  rec.DeviceID,
				Raw:       rec.Raw,
				Status:    string(rec.Status),
				Message:   rec.Message,
				ScannedAt: rec.ScannedAt,
			}

			created := tx.Clauses(clause.OnConflict{
				DoNothing: true,
			}).Create(&entry)
			if created.Error != nil {
				return created.Error
			}

			if created.RowsAffected == 0 {
				var existing models.LedgerEntry
				if err := tx.Where("id = ?", rec.ID).Take(&existing).Error; err != nil {
					return err
				}
				result.Duplicate = true
				result.Conflict = existing.Conflict
				return nil
			}

			if rec.Status != ticketgate.StatusValid {
				return nil
			}

			admitted := tx.Clauses(clause.OnConflict{
				DoNothing: true,
			}).Create(&models.Admission{
				EventID:  rec.EventID,
				TicketID: rec.TicketID,
				RecordID: rec.ID,
			})
			if admitted.Error != nil {
				return admitted.Error
			}
			if admitted.RowsAffected == 1 {
				return nil
			}

			result.Conflict = true
			return tx.Model(&models.LedgerEntry{}).
				Where("id = ?", rec.ID).
				Update("conflict", true).Error
		})
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}

	return results, nil
}

func (r *LedgerRepository) List(ctx context.Context, eventID string, limit int) ([]domain.LedgerEntry, error) {
	if limit <= 0 || limit > 1000 {
		limit = defaultListLimit
	}

	var rows []models.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("scanned_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	entries := make([]domain.LedgerEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, ledgerEntryFromModel(row))
	}
	return entries, nil
}

func (r *LedgerRepository) CountByStatus(ctx context.Context, eventID string) (map[ticketgate.Status]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Select("status, count(*) as count").
		Where("event_id = ?", eventID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[ticketgate.Status]int64, len(ticketgate.Statuses))
	for _, s := range ticketgate.Statuses {
		counts[s] = 0
	}
	for _, row := range rows {
		counts[ticketgate.Status(row.Status)] = row.Count
	}
	return counts, nil
}

// Get returns a single ledger entry by record id.
func (r *LedgerRepository) Get(ctx context.Context, id string) (domain.LedgerEntry, error) {
	var row models.LedgerEntry
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.LedgerEntry{}, domain.NotFoundError{Resource: "ledger entry"}
	}
	if err != nil {
		return domain.LedgerEntry{}, err
	}
	return ledgerEntryFromModel(row), nil
}

func ledgerEntryFromModel(row models.LedgerEntry) domain.LedgerEntry {
	return domain.LedgerEntry{
		ScanRecord: domain.ScanRecord{
			ID:        row.ID,
			EventID:   row.EventID,
			DeviceID:  row.DeviceID,
			Raw:       row.Raw,
			TicketID:  row.TicketID,
			Status:    ticketgate.Status(row.Status),
			Message:   row.Message,
			ScannedAt: row.ScannedAt,
			State:     domain.ScanStateSynced,
			Sync:      domain.SyncSynced,
		},
		ReceivedAt: row.ReceivedAt,
		Conflict:   row.Conflict,
	}
}

var (
	_ usecase.ScanLedger   = (*LedgerRepository)(nil)
	_ usecase.LedgerReader = (*LedgerRepository)(nil)
)
