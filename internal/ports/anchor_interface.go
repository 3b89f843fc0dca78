package ports

import (
	"context"
	"signing-web-server/internal/model"
)

// AnchorService : асинхронный воркер якорения и проверка якоря
type AnchorService interface {
	AnchorDocument(ctx context.Context, documentUUID string) error
	DispatchEthscriptions(ctx context.Context, documentUUID string) error
	VerifyDocumentHash(ctx context.Context, network string, txHash string, expectedHash string) (*model.VerificationResult, error)
}
