package ports

import (
	"context"
	"signing-web-server/internal/model"
)

// Notifier : внешний шлюз уведомлений, best-effort.
// Ошибки отправки логируются и никогда не влияют на исход запроса.
type Notifier interface {
	NotifyRecipientInvite(ctx context.Context, document *model.Document, recipient *model.Recipient) error
	NotifyOwnerViewed(ctx context.Context, document *model.Document, recipient *model.Recipient) error
	NotifySignerConfirmation(ctx context.Context, document *model.Document, recipient *model.Recipient) error
	NotifyEthscriptionReceipt(ctx context.Context, document *model.Document, recipient *model.Recipient, txHash string, explorerURL string) error
}
