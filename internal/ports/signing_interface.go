package ports

import (
	"context"
	"signing-web-server/internal/model"
)

// SigningService : публичный канал подписания, адресуется токеном получателя
type SigningService interface {
	View(ctx context.Context, accessToken string, userAgent string) (*model.SigningSession, model.PaymentRequirement, error)
	SubmitSignature(ctx context.Context, accessToken string, signature model.SignatureData, updatedContent model.DocumentContent, ipAddress string) (*model.SignResult, error)
	Decline(ctx context.Context, accessToken string, reason string) (string, error)
	UpdatePricingSelection(ctx context.Context, accessToken string, blockID string, selectedItemIDs []string) (string, error)
}
