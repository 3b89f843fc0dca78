package ports

import (
	"context"
	"time"
)

// ChainClient : клиент одной блокчейн-сети.
// Методы отправки дожидаются одного подтверждения и возвращают хэш транзакции.
type ChainClient interface {
	// SendSelfTransaction : zero-value транзакция с сервисного аккаунта самому себе
	SendSelfTransaction(ctx context.Context, data []byte) (string, error)
	// SendTransactionTo : zero-value транзакция на адрес получателя
	SendTransactionTo(ctx context.Context, toAddress string, data []byte) (string, error)
	// GetTransactionData : данные транзакции, номер блока и время блока
	GetTransactionData(ctx context.Context, txHash string) ([]byte, uint64, time.Time, error)
}
