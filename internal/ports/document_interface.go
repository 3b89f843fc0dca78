package ports

import (
	"context"
	"signing-web-server/internal/model"
	"time"

	"github.com/jmoiron/sqlx"
)

// DocumentRepository : SQL слой документов
type DocumentRepository interface {
	Create(ctx context.Context, exec sqlx.ExtContext, document *model.Document) error
	GetByUUID(ctx context.Context, exec sqlx.ExtContext, documentUUID string) (*model.Document, error)
	GetByOwner(ctx context.Context, exec sqlx.ExtContext, documentUUID string, ownerUUID string) (*model.Document, error)
	MarkSent(ctx context.Context, exec sqlx.ExtContext, documentUUID string, settings model.DocumentSettings, expiresAt *time.Time) error
	TransitionStatus(ctx context.Context, exec sqlx.ExtContext, documentUUID string, from, to model.DocumentStatus) (bool, error)
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, documentUUID string, status model.DocumentStatus) error
	UpdateContent(ctx context.Context, exec sqlx.ExtContext, documentUUID string, content model.DocumentContent) error
	LockForSigning(ctx context.Context, exec sqlx.ExtContext, documentUUID string, recipientUUID string) (bool, error)
	SetBlockchainProof(ctx context.Context, exec sqlx.ExtContext, documentUUID string, txHash string, documentHash string, verifiedAt time.Time) error
	ListUnanchored(ctx context.Context, exec sqlx.ExtContext, grace time.Duration) ([]string, error)
	HasSucceededPayment(ctx context.Context, exec sqlx.ExtContext, documentUUID string) (bool, error)
	BeginTX(ctx context.Context) (sqlx.ExtContext, func() error, func() error, error)
}

// DispatchService : канал владельца — создание и отправка документов
type DispatchService interface {
	CreateDocument(ctx context.Context, ownerUUID string, title string, content model.DocumentContent) (*model.Document, error)
	SendDocument(ctx context.Context, ownerUUID string, documentUUID string, recipients []model.Recipient, sequential bool, expiresAt *time.Time, payment *model.PaymentSettings) ([]model.Recipient, error)
	GetDocument(ctx context.Context, ownerUUID string, documentUUID string) (*model.Document, []model.Recipient, error)
	ListEvents(ctx context.Context, ownerUUID string, documentUUID string) ([]model.DocumentEvent, error)
	GetAnchorProof(ctx context.Context, ownerUUID string, documentUUID string) (*model.Document, string, error)
}
