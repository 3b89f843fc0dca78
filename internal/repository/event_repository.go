package repository

import (
	"context"
	"signing-web-server/config"
	"signing-web-server/internal/model"
	"signing-web-server/internal/util"

	"github.com/jmoiron/sqlx"
)

type EventRepository struct {
	*config.Database
}

func NewEventRepository(database *config.Database) *EventRepository {
	return &EventRepository{database}
}

// Append : добавляет событие в журнал. UPDATE и DELETE по этой таблице
// не выполняются никогда.
func (r *EventRepository) Append(ctx context.Context, exec sqlx.ExtContext, event *model.DocumentEvent) error {
	query := `
		INSERT INTO document_events (uuid, document_uuid, recipient_uuid, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`
	_, err := exec.ExecContext(ctx, query,
		event.UUID,
		event.DocumentUUID,
		event.RecipientUUID,
		event.EventType,
		event.Payload,
	)
	if err != nil {
		return util.LogError("не удалось записать событие аудита", err)
	}
	return nil
}

// ListByDocument : история документа в порядке записи
func (r *EventRepository) ListByDocument(ctx context.Context, exec sqlx.ExtContext, documentUUID string) ([]model.DocumentEvent, error) {
	query := `
		SELECT uuid, document_uuid, recipient_uuid, event_type, payload, created_at
		FROM document_events
		WHERE document_uuid = $1
		ORDER BY created_at ASC
	`

	events := []model.DocumentEvent{}
	rows, err := exec.QueryxContext(ctx, query, documentUUID)
	if err != nil {
		return nil, util.LogError("не удалось получить журнал событий", err)
	}
	defer rows.Close()

	for rows.Next() {
		var event model.DocumentEvent
		if err := rows.StructScan(&event); err != nil {
			return nil, err
		}
		events = append(events, event)
	}

	return events, rows.Err()
}
