package repository

import (
	"context"
	"signing-web-server/config"
	"signing-web-server/internal/model"
	"signing-web-server/internal/util"
	"time"

	"github.com/jmoiron/sqlx"
)

type DocumentRepository struct {
	*config.Database
}

func NewDocumentRepository(database *config.Database) *DocumentRepository {
	return &DocumentRepository{database}
}

const documentColumns = `
	uuid, owner_uuid, title, content, status, settings, expires_at,
	locked_at, locked_by, blockchain_tx_hash, blockchain_doc_hash, blockchain_verified_at,
	created_at, updated_at
`

// Create : сохраняем новый документ-черновик
func (r *DocumentRepository) Create(ctx context.Context, exec sqlx.ExtContext, document *model.Document) error {
	query := `
		INSERT INTO documents (uuid, owner_uuid, title, content, status, settings, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
	`
	_, err := exec.ExecContext(
		ctx,
		query,
		document.UUID,
		document.OwnerUUID,
		document.Title,
		document.Content,
		document.Status,
		document.Settings,
	)

	return err
}

// GetByUUID : документ по uuid, без проверки прав (канал подписания
// авторизуется токеном получателя, а не владельцем)
func (r *DocumentRepository) GetByUUID(ctx context.Context, exec sqlx.ExtContext, documentUUID string) (*model.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE uuid = $1`

	var document model.Document
	if err := sqlx.GetContext(ctx, exec, &document, query, documentUUID); err != nil {
		return nil, err
	}

	return &document, nil
}

// GetByOwner : документ по uuid, только для владельца
func (r *DocumentRepository) GetByOwner(ctx context.Context, exec sqlx.ExtContext, documentUUID string, ownerUUID string) (*model.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE uuid = $1 AND owner_uuid = $2`

	var document model.Document
	if err := sqlx.GetContext(ctx, exec, &document, query, documentUUID, ownerUUID); err != nil {
		return nil, err
	}

	return &document, nil
}

// MarkSent : переводит документ в sent и фиксирует настройки отправки
func (r *DocumentRepository) MarkSent(ctx context.Context, exec sqlx.ExtContext, documentUUID string, settings model.DocumentSettings, expiresAt *time.Time) error {
	query := `
		UPDATE documents
		SET status = $2, settings = $3, expires_at = $4, updated_at = NOW()
		WHERE uuid = $1
	`
	_, err := exec.ExecContext(ctx, query, documentUUID, model.StatusSent, settings, expiresAt)
	if err != nil {
		return util.LogError("не удалось отметить документ отправленным", err)
	}
	return nil
}

// TransitionStatus : переход статуса только из ожидаемого состояния.
// Возвращает true, если переход действительно произошёл — повторный вызов
// из другого состояния молча даёт false (идемпотентность sent→viewed).
func (r *DocumentRepository) TransitionStatus(ctx context.Context, exec sqlx.ExtContext, documentUUID string, from, to model.DocumentStatus) (bool, error) {
	query := `
		UPDATE documents
		SET status = $3, updated_at = NOW()
		WHERE uuid = $1 AND status = $2
	`
	result, err := exec.ExecContext(ctx, query, documentUUID, from, to)
	if err != nil {
		return false, util.LogError("не удалось выполнить переход статуса", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected > 0, nil
}

// UpdateStatus : безусловная установка статуса
func (r *DocumentRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, documentUUID string, status model.DocumentStatus) error {
	query := `UPDATE documents SET status = $2, updated_at = NOW() WHERE uuid = $1`

	_, err := exec.ExecContext(ctx, query, documentUUID, status)
	if err != nil {
		return util.LogError("не удалось обновить статус документа", err)
	}
	return nil
}

// UpdateContent : замена контента целиком (заполненные поля подписи,
// выбор позиций, статусы инскрипций)
func (r *DocumentRepository) UpdateContent(ctx context.Context, exec sqlx.ExtContext, documentUUID string, content model.DocumentContent) error {
	query := `UPDATE documents SET content = $2, updated_at = NOW() WHERE uuid = $1`

	_, err := exec.ExecContext(ctx, query, documentUUID, content)
	if err != nil {
		return util.LogError("не удалось обновить контент документа", err)
	}
	return nil
}

// LockForSigning : условная установка блокировки первой подписью.
// Число затронутых строк — единственный источник правды о том, была ли
// подпись первой: никакое предварительное чтение здесь не участвует,
// поэтому конкурирующие первые подписи не могут обе получить true.
func (r *DocumentRepository) LockForSigning(ctx context.Context, exec sqlx.ExtContext, documentUUID string, recipientUUID string) (bool, error) {
	query := `
		UPDATE documents
		SET locked_at = NOW(), locked_by = $2, updated_at = NOW()
		WHERE uuid = $1 AND locked_at IS NULL
	`
	result, err := exec.ExecContext(ctx, query, documentUUID, recipientUUID)
	if err != nil {
		return false, util.LogError("не удалось заблокировать документ", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected > 0, nil
}

// SetBlockchainProof : записывает доказательство якорения ровно один раз.
// Заякоренный хэш сохраняется вместе с хэшем транзакции: сам этот UPDATE
// сдвигает updated_at, поэтому пересчитать хэш по текущему состоянию
// документа после якорения уже нельзя.
func (r *DocumentRepository) SetBlockchainProof(ctx context.Context, exec sqlx.ExtContext, documentUUID string, txHash string, documentHash string, verifiedAt time.Time) error {
	query := `
		UPDATE documents
		SET blockchain_tx_hash = $2, blockchain_doc_hash = $3, blockchain_verified_at = $4, updated_at = NOW()
		WHERE uuid = $1 AND blockchain_tx_hash IS NULL
	`
	_, err := exec.ExecContext(ctx, query, documentUUID, txHash, documentHash, verifiedAt)
	if err != nil {
		return util.LogError("не удалось сохранить доказательство якорения", err)
	}
	return nil
}

// ListUnanchored : завершённые документы без якоря старше порога —
// кандидаты на повторную попытку якорения
func (r *DocumentRepository) ListUnanchored(ctx context.Context, exec sqlx.ExtContext, grace time.Duration) ([]string, error) {
	query := `
		SELECT uuid FROM documents
		WHERE status = $1 AND blockchain_tx_hash IS NULL AND updated_at < $2
		ORDER BY updated_at ASC
	`

	uuids := []string{}
	rows, err := exec.QueryxContext(ctx, query, model.StatusCompleted, time.Now().UTC().Add(-grace))
	if err != nil {
		return nil, util.LogError("не удалось получить список незаякоренных документов", err)
	}
	defer rows.Close()

	for rows.Next() {
		var uuid string
		if err := rows.Scan(&uuid); err != nil {
			return nil, err
		}
		uuids = append(uuids, uuid)
	}

	return uuids, rows.Err()
}

// HasSucceededPayment : true, если по документу есть успешный платёж
func (r *DocumentRepository) HasSucceededPayment(ctx context.Context, exec sqlx.ExtContext, documentUUID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM payments WHERE document_uuid = $1 AND status = $2
		)
	`
	var exists bool
	err := sqlx.GetContext(ctx, exec, &exists, query, documentUUID, model.PaymentStatusSucceeded)
	if err != nil {
		return false, util.LogError("ошибка проверки платежа", err)
	}
	return exists, nil
}

func (r *DocumentRepository) BeginTX(ctx context.Context) (sqlx.ExtContext, func() error, func() error, error) {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, nil, err
	}
	return tx, func() error { return tx.Rollback() }, func() error { return tx.Commit() }, nil
}
