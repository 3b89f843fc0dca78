package repository

import (
	"context"
	"signing-web-server/config"
	"signing-web-server/internal/model"
	"signing-web-server/internal/util"

	"github.com/jmoiron/sqlx"
)

type RecipientRepository struct {
	*config.Database
}

func NewRecipientRepository(database *config.Database) *RecipientRepository {
	return &RecipientRepository{database}
}

const recipientColumns = `
	uuid, document_uuid, email, name, role, access_token, signing_order,
	status, signature_data, viewed_at, signed_at, ip_address, user_agent, created_at
`

// GetByToken : получатель по токену доступа — единственная точка входа
// публичного канала подписания
func (r *RecipientRepository) GetByToken(ctx context.Context, exec sqlx.ExtContext, accessToken string) (*model.Recipient, error) {
	query := `SELECT ` + recipientColumns + ` FROM recipients WHERE access_token = $1`

	var recipient model.Recipient
	if err := sqlx.GetContext(ctx, exec, &recipient, query, accessToken); err != nil {
		return nil, err
	}

	return &recipient, nil
}

// ListByDocument : все получатели документа в порядке подписания.
// Вызывается заново при каждой проверке очереди и полноты подписей —
// по кэшированному снимку эти решения принимать нельзя.
func (r *RecipientRepository) ListByDocument(ctx context.Context, exec sqlx.ExtContext, documentUUID string) ([]model.Recipient, error) {
	query := `
		SELECT ` + recipientColumns + `
		FROM recipients
		WHERE document_uuid = $1
		ORDER BY signing_order ASC, created_at ASC
	`

	recipients := []model.Recipient{}
	rows, err := exec.QueryxContext(ctx, query, documentUUID)
	if err != nil {
		return nil, util.LogError("не удалось получить список получателей", err)
	}
	defer rows.Close()

	for rows.Next() {
		var recipient model.Recipient
		if err := rows.StructScan(&recipient); err != nil {
			return nil, err
		}
		recipients = append(recipients, recipient)
	}

	return recipients, rows.Err()
}

// MarkViewed : pending → viewed. Повторный просмотр не меняет строку,
// и по нулю затронутых строк вызывающий код понимает, что уведомлять
// владельца второй раз не нужно.
func (r *RecipientRepository) MarkViewed(ctx context.Context, exec sqlx.ExtContext, recipientUUID string, userAgent string) (bool, error) {
	query := `
		UPDATE recipients
		SET status = $2, viewed_at = NOW(), user_agent = $3
		WHERE uuid = $1 AND status = $4
	`
	result, err := exec.ExecContext(ctx, query, recipientUUID, model.RecipientViewed, userAgent, model.RecipientPending)
	if err != nil {
		return false, util.LogError("не удалось отметить просмотр", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected > 0, nil
}

// MarkSigned : установка подписи ровно один раз. Условие status <> 'signed'
// гарантирует, что повторная отправка не перезапишет signed_at и данные подписи.
func (r *RecipientRepository) MarkSigned(ctx context.Context, exec sqlx.ExtContext, recipientUUID string, signature *model.SignatureData, ipAddress string) (bool, error) {
	query := `
		UPDATE recipients
		SET status = $2, signature_data = $3, signed_at = $4, ip_address = $5
		WHERE uuid = $1 AND status <> $2
	`
	result, err := exec.ExecContext(ctx, query, recipientUUID, model.RecipientSigned, signature, signature.SignedAt, ipAddress)
	if err != nil {
		return false, util.LogError("не удалось сохранить подпись", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected > 0, nil
}

// MarkDeclined : отклонение; из терминальных статусов не выполняется
func (r *RecipientRepository) MarkDeclined(ctx context.Context, exec sqlx.ExtContext, recipientUUID string) (bool, error) {
	query := `
		UPDATE recipients
		SET status = $2
		WHERE uuid = $1 AND status NOT IN ($2, $3)
	`
	result, err := exec.ExecContext(ctx, query, recipientUUID, model.RecipientDeclined, model.RecipientSigned)
	if err != nil {
		return false, util.LogError("не удалось отметить отклонение", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected > 0, nil
}

// ReplaceForDocument : при отправке документа прежние получатели
// отбрасываются и создаются заново
func (r *RecipientRepository) ReplaceForDocument(ctx context.Context, exec sqlx.ExtContext, documentUUID string, recipients []model.Recipient) error {
	if _, err := exec.ExecContext(ctx, `DELETE FROM recipients WHERE document_uuid = $1`, documentUUID); err != nil {
		return util.LogError("не удалось удалить прежних получателей", err)
	}

	query := `
		INSERT INTO recipients (uuid, document_uuid, email, name, role, access_token, signing_order, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
	`
	for i := range recipients {
		recipient := &recipients[i]
		_, err := exec.ExecContext(ctx, query,
			recipient.UUID,
			recipient.DocumentUUID,
			recipient.Email,
			recipient.Name,
			recipient.Role,
			recipient.AccessToken,
			recipient.SigningOrder,
			recipient.Status,
		)
		if err != nil {
			return util.LogError("не удалось сохранить получателя", err)
		}
	}

	return nil
}
