package ports

import (
	"context"
	"signing-web-server/internal/model"

	"github.com/jmoiron/sqlx"
)

// RecipientRepository : SQL слой получателей.
// Условные UPDATE (MarkViewed/MarkSigned/MarkDeclined) возвращают признак того,
// что строка действительно изменилась — это и есть гарантия exactly-once.
type RecipientRepository interface {
	GetByToken(ctx context.Context, exec sqlx.ExtContext, accessToken string) (*model.Recipient, error)
	ListByDocument(ctx context.Context, exec sqlx.ExtContext, documentUUID string) ([]model.Recipient, error)
	MarkViewed(ctx context.Context, exec sqlx.ExtContext, recipientUUID string, userAgent string) (bool, error)
	MarkSigned(ctx context.Context, exec sqlx.ExtContext, recipientUUID string, signature *model.SignatureData, ipAddress string) (bool, error)
	MarkDeclined(ctx context.Context, exec sqlx.ExtContext, recipientUUID string) (bool, error)
	ReplaceForDocument(ctx context.Context, exec sqlx.ExtContext, documentUUID string, recipients []model.Recipient) error
}
