package registry

import (
	"context"
	"errors"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/totegamma/ticketgate/internal/infra/database/models"
	"github.com/totegamma/ticketgate/internal/usecase"
)

// Postgres keeps the registry next to the ledger.
type Postgres struct {
	db      *gorm.DB
	eventID string
}

func NewPostgres(db *gorm.DB, eventID string) *Postgres {
	return &Postgres{db: db, eventID: eventID}
}

func (p *Postgres) Has(ctx context.Context, ticketID string) (bool, error) {
	ctx, span := tracer.Start(ctx, "Registry.Postgres.Has")
	defer span.End()

	var used models.UsedTicket
	err := p.db.WithContext(ctx).
		Where("event_id = ? AND ticket_id = ?", p.eventID, ticketID).
		Take(&used).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		span.RecordError(pkgerrors.Wrap(err, "Registry.Postgres.Has: query failed"))
		return false, err
	}
	return true, nil
}

func (p *Postgres) MarkUsed(ctx context.Context, ticketID string) (bool, error) {
	ctx, span := tracer.Start(ctx, "Registry.Postgres.MarkUsed")
	defer span.End()

	result := p.db.WithContext(ctx).Clauses(clause.OnConflict{
		DoNothing: true,
	}).Create(&models.UsedTicket{
		EventID:  p.eventID,
		TicketID: ticketID,
	})
	if result.Error != nil {
		span.RecordError(pkgerrors.Wrap(result.Error, "Registry.Postgres.MarkUsed: insert failed"))
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func PostgresFactory(db *gorm.DB) usecase.UsedTicketStoreFactory {
	return func(eventID string) usecase.UsedTicketStore {
		return NewPostgres(db, eventID)
	}
}

var _ usecase.UsedTicketStore = (*Postgres)(nil)
