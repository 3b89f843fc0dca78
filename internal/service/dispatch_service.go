package service

import (
	"context"
	"fmt"
	"log"
	"signing-web-server/config"
	"signing-web-server/internal/model"
	"signing-web-server/internal/ports"
	"signing-web-server/internal/util"
	"time"

	"github.com/google/uuid"
)

// accessTokenLength : длина токена доступа получателя
const accessTokenLength = 64

// presignedSnapshotTTL : время жизни ссылки на архивный снимок
const presignedSnapshotTTL = 15 * time.Minute

// DispatchService : канал владельца. Создание черновиков, отправка
// получателям, чтение состояния и доказательства якорения.
type DispatchService struct {
	database            *config.Database
	documentRepository  ports.DocumentRepository
	recipientRepository ports.RecipientRepository
	eventRepository     ports.EventRepository
	storage             ports.S3Storage
	notifier            ports.Notifier
	asyncTimeout        time.Duration
}

func NewDispatchService(
	database *config.Database,
	documentRepository ports.DocumentRepository,
	recipientRepository ports.RecipientRepository,
	eventRepository ports.EventRepository,
	storage ports.S3Storage,
	notifier ports.Notifier,
	asyncTimeout time.Duration,
) *DispatchService {
	return &DispatchService{
		database:            database,
		documentRepository:  documentRepository,
		recipientRepository: recipientRepository,
		eventRepository:     eventRepository,
		storage:             storage,
		notifier:            notifier,
		asyncTimeout:        asyncTimeout,
	}
}

func (s *DispatchService) CreateDocument(ctx context.Context, ownerUUID string, title string, content model.DocumentContent) (*model.Document, error) {
	if title == "" {
		return nil, model.ErrValidation
	}
	if content == nil {
		content = model.DocumentContent{}
	}

	document := &model.Document{
		UUID:      uuid.New().String(),
		OwnerUUID: ownerUUID,
		Title:     title,
		Content:   content,
		Status:    model.StatusDraft,
	}

	exec, rollback, commit, err := s.documentRepository.BeginTX(ctx)
	if err != nil {
		return nil, util.LogError("[DispatchService] не удалось начать транзакцию", err)
	}
	defer rollback()

	if err := s.documentRepository.Create(ctx, exec, document); err != nil {
		return nil, err
	}

	if err := commit(); err != nil {
		return nil, util.LogError("[DispatchService] не удалось закоммитить транзакцию", err)
	}

	log.Printf("[DispatchService] создан документ %s владельца %s", document.UUID, ownerUUID)
	return document, nil
}

// SendDocument : переводит черновик в sent. Получатели заменяются целиком,
// каждому выдаётся свежий уникальный токен доступа; прежние токены
// перестают действовать вместе с удалёнными строками.
func (s *DispatchService) SendDocument(ctx context.Context, ownerUUID string, documentUUID string, recipients []model.Recipient, sequential bool, expiresAt *time.Time, payment *model.PaymentSettings) ([]model.Recipient, error) {
	if len(recipients) == 0 {
		return nil, model.ErrValidation
	}
	if expiresAt != nil && expiresAt.Before(time.Now().UTC()) {
		return nil, model.ErrValidation
	}

	hasSigner := false
	for i := range recipients {
		if recipients[i].Email == "" {
			return nil, model.ErrValidation
		}
		if recipients[i].Role == "" {
			recipients[i].Role = model.RoleSigner
		}
		switch recipients[i].Role {
		case model.RoleSigner, model.RoleViewer, model.RoleApprover:
		default:
			return nil, model.ErrValidation
		}
		if recipients[i].Role == model.RoleSigner {
			hasSigner = true
		}
		if recipients[i].SigningOrder == 0 {
			recipients[i].SigningOrder = i + 1
		}
	}
	if hasSigner == false {
		return nil, model.ErrValidation
	}

	for i := range recipients {
		token, err := util.GenerateUniqueAccessToken(ctx, s.database.DB, accessTokenLength)
		if err != nil {
			return nil, err
		}
		recipients[i].UUID = uuid.New().String()
		recipients[i].DocumentUUID = documentUUID
		recipients[i].AccessToken = token
		recipients[i].Status = model.RecipientPending
	}

	settings := model.DocumentSettings{
		RequireSigningOrder: sequential,
		Payment:             payment,
	}

	exec, rollback, commit, err := s.documentRepository.BeginTX(ctx)
	if err != nil {
		return nil, util.LogError("[DispatchService] не удалось начать транзакцию", err)
	}
	defer rollback()

	document, err := s.documentRepository.GetByOwner(ctx, exec, documentUUID, ownerUUID)
	if err != nil {
		return nil, err
	}
	if document.Status != model.StatusDraft {
		return nil, fmt.Errorf("[DispatchService] документ %s уже отправлен: %w", documentUUID, model.ErrValidation)
	}

	if err := s.recipientRepository.ReplaceForDocument(ctx, exec, documentUUID, recipients); err != nil {
		return nil, err
	}

	if err := s.documentRepository.MarkSent(ctx, exec, documentUUID, settings, expiresAt); err != nil {
		return nil, err
	}

	event := &model.DocumentEvent{
		UUID:         uuid.New().String(),
		DocumentUUID: documentUUID,
		EventType:    model.EventDocumentSent,
		Payload: model.EventPayload{
			"recipients_count": len(recipients),
			"sequential":       sequential,
		},
	}
	if err := s.eventRepository.Append(ctx, exec, event); err != nil {
		return nil, err
	}

	if err := commit(); err != nil {
		return nil, util.LogError("[DispatchService] не удалось закоммитить транзакцию", err)
	}

	document.Status = model.StatusSent
	document.Settings = settings
	document.ExpiresAt = expiresAt

	// приглашения уходят в фоне и не влияют на исход отправки
	go func(document model.Document, recipients []model.Recipient) {
		notifyCtx, cancel := context.WithTimeout(context.Background(), s.asyncTimeout)
		defer cancel()
		for i := range recipients {
			if err := s.notifier.NotifyRecipientInvite(notifyCtx, &document, &recipients[i]); err != nil {
				log.Printf("[DispatchService] ошибка отправки приглашения %s: %v", recipients[i].Email, err)
			}
		}
	}(*document, recipients)

	log.Printf("[DispatchService] документ %s отправлен %d получателям", documentUUID, len(recipients))
	return recipients, nil
}

func (s *DispatchService) GetDocument(ctx context.Context, ownerUUID string, documentUUID string) (*model.Document, []model.Recipient, error) {
	exec, rollback, commit, err := s.documentRepository.BeginTX(ctx)
	if err != nil {
		return nil, nil, util.LogError("[DispatchService] не удалось начать транзакцию", err)
	}
	defer rollback()

	document, err := s.documentRepository.GetByOwner(ctx, exec, documentUUID, ownerUUID)
	if err != nil {
		return nil, nil, err
	}

	recipients, err := s.recipientRepository.ListByDocument(ctx, exec, documentUUID)
	if err != nil {
		return nil, nil, err
	}

	if err := commit(); err != nil {
		return nil, nil, util.LogError("[DispatchService] не удалось закоммитить транзакцию", err)
	}

	return document, recipients, nil
}

func (s *DispatchService) ListEvents(ctx context.Context, ownerUUID string, documentUUID string) ([]model.DocumentEvent, error) {
	exec, rollback, commit, err := s.documentRepository.BeginTX(ctx)
	if err != nil {
		return nil, util.LogError("[DispatchService] не удалось начать транзакцию", err)
	}
	defer rollback()

	if _, err := s.documentRepository.GetByOwner(ctx, exec, documentUUID, ownerUUID); err != nil {
		return nil, err
	}

	events, err := s.eventRepository.ListByDocument(ctx, exec, documentUUID)
	if err != nil {
		return nil, err
	}

	if err := commit(); err != nil {
		return nil, util.LogError("[DispatchService] не удалось закоммитить транзакцию", err)
	}

	return events, nil
}

// GetAnchorProof : документ и, если снимок архивировался, presigned-ссылка
// на ту самую каноническую запись, чей хэш лежит в блокчейне.
// Хэш берётся из колонки, записанной воркером якорения: пересчитать его
// по текущему состоянию нельзя — запись доказательства сдвигает updated_at,
// а инскрипции переписывают контент уже после якорения.
// Недоступность архива доказательство не отменяет, ссылка просто пустая.
func (s *DispatchService) GetAnchorProof(ctx context.Context, ownerUUID string, documentUUID string) (*model.Document, string, error) {
	exec, rollback, commit, err := s.documentRepository.BeginTX(ctx)
	if err != nil {
		return nil, "", util.LogError("[DispatchService] не удалось начать транзакцию", err)
	}
	defer rollback()

	document, err := s.documentRepository.GetByOwner(ctx, exec, documentUUID, ownerUUID)
	if err != nil {
		return nil, "", err
	}

	if err := commit(); err != nil {
		return nil, "", util.LogError("[DispatchService] не удалось закоммитить транзакцию", err)
	}

	if document.BlockchainTxHash == nil || document.BlockchainDocHash == nil {
		return document, "", nil
	}

	snapshotURL := ""
	if s.storage != nil {
		key := fmt.Sprintf("anchors/%s/%s.json", documentUUID, *document.BlockchainDocHash)
		snapshotURL, err = s.storage.GeneratePresignedGetURL(ctx, key, presignedSnapshotTTL)
		if err != nil {
			log.Printf("[DispatchService] не удалось выдать ссылку на снимок %s: %v", key, err)
			snapshotURL = ""
		}
	}

	return document, snapshotURL, nil
}
