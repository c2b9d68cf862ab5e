package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/totegamma/ticketgate/internal/domain"
	"github.com/totegamma/ticketgate/internal/infra/database/models"
	"github.com/totegamma/ticketgate/internal/usecase"
)

// EventRepository stores the admission windows the server enforces.
type EventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) Save(ctx context.Context, event domain.Event) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "starts_at", "ends_at"}),
	}).Create(&models.Event{
		ID:       event.ID,
		Name:     event.Name,
		StartsAt: event.Start,
		EndsAt:   event.End,
	}).Error
}

func (r *EventRepository) Get(ctx context.Context, eventID string) (domain.Event, error) {
	var row models.Event
	err := r.db.WithContext(ctx).Where("id = ?", eventID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Event{}, domain.NotFoundError{Resource: "event"}
	}
	if err != nil {
		return domain.Event{}, err
	}
	return domain.Event{
		ID:    row.ID,
		Name:  row.Name,
		Start: row.StartsAt,
		End:   row.EndsAt,
	}, nil
}

var _ usecase.EventStore = (*EventRepository)(nil)
