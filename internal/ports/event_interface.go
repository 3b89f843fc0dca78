package ports

import (
	"context"
	"signing-web-server/internal/model"

	"github.com/jmoiron/sqlx"
)

// EventRepository : append-only журнал аудита
type EventRepository interface {
	Append(ctx context.Context, exec sqlx.ExtContext, event *model.DocumentEvent) error
	ListByDocument(ctx context.Context, exec sqlx.ExtContext, documentUUID string) ([]model.DocumentEvent, error)
}
