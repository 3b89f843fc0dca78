package service

import (
	"context"
	"log"
	"signing-web-server/internal/model"
	"signing-web-server/internal/ports"
	"signing-web-server/internal/util"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type SigningService struct {
	documentRepository  ports.DocumentRepository
	recipientRepository ports.RecipientRepository
	eventRepository     ports.EventRepository
	cacheRepository     ports.CacheRepository
	anchorService       ports.AnchorService
	notifier            ports.Notifier
	asyncTimeout        time.Duration
}

func NewSigningService(
	documentRepository ports.DocumentRepository,
	recipientRepository ports.RecipientRepository,
	eventRepository ports.EventRepository,
	cacheRepository ports.CacheRepository,
	anchorService ports.AnchorService,
	notifier ports.Notifier,
	asyncTimeout time.Duration,
) *SigningService {
	return &SigningService{
		documentRepository:  documentRepository,
		recipientRepository: recipientRepository,
		eventRepository:     eventRepository,
		cacheRepository:     cacheRepository,
		anchorService:       anchorService,
		notifier:            notifier,
		asyncTimeout:        asyncTimeout,
	}
}

// resolveByToken : единая точка входа канала подписания. Любая причина
// неудачи — неизвестный токен, искажённый токен, отсутствующий документ —
// выглядит для вызывающего одинаково, чтобы не давать стороннего канала информации.
func (s *SigningService) resolveByToken(ctx context.Context, exec sqlx.ExtContext, accessToken string) (*model.Recipient, *model.Document, error) {
	recipient, err := s.recipientRepository.GetByToken(ctx, exec, accessToken)
	if err != nil {
		return nil, nil, model.ErrInvalidLink
	}

	document, err := s.documentRepository.GetByUUID(ctx, exec, recipient.DocumentUUID)
	if err != nil {
		return nil, nil, model.ErrInvalidLink
	}

	return recipient, document, nil
}

// checkActionable : общие предусловия для мутирующих действий
func checkActionable(document *model.Document) error {
	if document.Status == model.StatusDraft {
		return model.ErrNotYetSent
	}
	if document.IsExpired(time.Now().UTC()) {
		return model.ErrDocumentExpired
	}
	if document.Status == model.StatusCompleted {
		return model.ErrAlreadySigned
	}
	if document.Status == model.StatusDeclined {
		return model.ErrAlreadyDeclined
	}
	return nil
}

// View : идемпотентный просмотр. Первый просмотр переводит получателя в viewed,
// документ из sent в viewed и один раз уведомляет владельца; повторные просмотры
// ничего не меняют, но данные возвращаются всегда.
func (s *SigningService) View(ctx context.Context, accessToken string, userAgent string) (*model.SigningSession, model.PaymentRequirement, error) {
	session, err := s.cacheRepository.GetSession(ctx, accessToken)
	if err != nil {
		log.Printf("[SigningService] ошибка кэширования: %v", err)
	}

	if session != nil {
		// в кэш сессия попадает только после первого просмотра,
		// но истечение срока проверяется при каждом чтении
		if session.Document.IsExpired(time.Now().UTC()) {
			return nil, model.PaymentRequirement{}, model.ErrDocumentExpired
		}
		log.Printf("[SigningService] сессия %s взята из кэша Redis", session.Recipient.UUID)
		return session, ResolvePayment(session.Document.Content, session.Document.Settings), nil
	}

	exec, rollback, commit, err := s.documentRepository.BeginTX(ctx)
	if err != nil {
		return nil, model.PaymentRequirement{}, util.LogError("[SigningService] не удалось начать транзакцию", err)
	}
	defer rollback()

	recipient, document, err := s.resolveByToken(ctx, exec, accessToken)
	if err != nil {
		return nil, model.PaymentRequirement{}, err
	}

	if document.Status == model.StatusDraft {
		return nil, model.PaymentRequirement{}, model.ErrNotYetSent
	}
	if document.IsExpired(time.Now().UTC()) {
		return nil, model.PaymentRequirement{}, model.ErrDocumentExpired
	}

	firstView := false
	if recipient.Status == model.RecipientPending {
		changed, err := s.recipientRepository.MarkViewed(ctx, exec, recipient.UUID, userAgent)
		if err != nil {
			return nil, model.PaymentRequirement{}, util.LogError("[SigningService] не удалось отметить просмотр", err)
		}

		if changed {
			firstView = true
			now := time.Now().UTC()
			recipient.Status = model.RecipientViewed
			recipient.ViewedAt = &now
			recipient.UserAgent = &userAgent

			transitioned, err := s.documentRepository.TransitionStatus(ctx, exec, document.UUID, model.StatusSent, model.StatusViewed)
			if err != nil {
				return nil, model.PaymentRequirement{}, util.LogError("[SigningService] не удалось обновить статус документа", err)
			}
			if transitioned {
				document.Status = model.StatusViewed
			}

			event := &model.DocumentEvent{
				UUID:          uuid.New().String(),
				DocumentUUID:  document.UUID,
				RecipientUUID: &recipient.UUID,
				EventType:     model.EventDocumentViewed,
				Payload: model.EventPayload{
					"email": recipient.Email,
					"role":  string(recipient.Role),
				},
			}
			if err := s.eventRepository.Append(ctx, exec, event); err != nil {
				return nil, model.PaymentRequirement{}, err
			}
		}
	}

	if err := commit(); err != nil {
		return nil, model.PaymentRequirement{}, util.LogError("[SigningService] не удалось закоммитить транзакцию", err)
	}

	// уведомление владельца привязано к ребру pending→viewed,
	// поэтому повторные просмотры его не дублируют
	if firstView {
		go func(document model.Document, recipient model.Recipient) {
			notifyCtx, cancel := context.WithTimeout(context.Background(), s.asyncTimeout)
			defer cancel()
			if err := s.notifier.NotifyOwnerViewed(notifyCtx, &document, &recipient); err != nil {
				log.Printf("[SigningService] ошибка уведомления владельца: %v", err)
			}
		}(*document, *recipient)
	}

	session = &model.SigningSession{Document: document, Recipient: recipient}
	if err := s.cacheRepository.SetSession(ctx, accessToken, session); err != nil {
		log.Printf("[SigningService] ошибка кэширования сессии: %v", err)
	}

	return session, ResolvePayment(document.Content, document.Settings), nil
}

// SubmitSignature : принимает подпись. Блокировка документа первой подписью
// берётся условным UPDATE в хранилище — его результат и есть признак первой
// подписи. Полнота подписей пересчитывается свежим чтением после записи,
// иначе подпись последнего участника не была бы учтена.
func (s *SigningService) SubmitSignature(ctx context.Context, accessToken string, signature model.SignatureData, updatedContent model.DocumentContent, ipAddress string) (*model.SignResult, error) {
	if signature.Type == "" || signature.Data == "" {
		return nil, model.ErrValidation
	}

	exec, rollback, commit, err := s.documentRepository.BeginTX(ctx)
	if err != nil {
		return nil, util.LogError("[SigningService] не удалось начать транзакцию", err)
	}
	defer rollback()

	recipient, document, err := s.resolveByToken(ctx, exec, accessToken)
	if err != nil {
		return nil, err
	}

	if err := checkActionable(document); err != nil {
		return nil, err
	}
	if recipient.Role != model.RoleSigner {
		return nil, model.ErrUnauthorized
	}
	if recipient.Status == model.RecipientSigned {
		return nil, model.ErrAlreadySigned
	}
	if recipient.Status == model.RecipientDeclined {
		return nil, model.ErrAlreadyDeclined
	}

	if document.Settings.RequireSigningOrder {
		if err := s.checkSigningOrder(ctx, exec, document.UUID, recipient); err != nil {
			return nil, err
		}
	}

	signedAt := time.Now().UTC()
	signature.SignedAt = signedAt

	signed, err := s.recipientRepository.MarkSigned(ctx, exec, recipient.UUID, &signature, ipAddress)
	if err != nil {
		return nil, util.LogError("[SigningService] не удалось сохранить подпись", err)
	}
	if signed == false {
		return nil, model.ErrAlreadySigned
	}

	if updatedContent != nil {
		if err := s.documentRepository.UpdateContent(ctx, exec, document.UUID, updatedContent); err != nil {
			return nil, util.LogError("[SigningService] не удалось сохранить заполненный контент", err)
		}
		document.Content = updatedContent
	}

	isFirstSignature, err := s.documentRepository.LockForSigning(ctx, exec, document.UUID, recipient.UUID)
	if err != nil {
		return nil, util.LogError("[SigningService] не удалось заблокировать документ", err)
	}

	if isFirstSignature {
		event := &model.DocumentEvent{
			UUID:          uuid.New().String(),
			DocumentUUID:  document.UUID,
			RecipientUUID: &recipient.UUID,
			EventType:     model.EventDocumentLocked,
			Payload: model.EventPayload{
				"reason": "first_signature",
			},
		}
		if err := s.eventRepository.Append(ctx, exec, event); err != nil {
			return nil, err
		}
	}

	recipients, err := s.recipientRepository.ListByDocument(ctx, exec, document.UUID)
	if err != nil {
		return nil, util.LogError("[SigningService] не удалось перечитать получателей", err)
	}

	allSigned := true
	for _, r := range recipients {
		if r.Role == model.RoleSigner && r.Status != model.RecipientSigned {
			allSigned = false
			break
		}
	}

	if allSigned {
		if err := s.documentRepository.UpdateStatus(ctx, exec, document.UUID, model.StatusCompleted); err != nil {
			return nil, util.LogError("[SigningService] не удалось завершить документ", err)
		}
	}

	event := &model.DocumentEvent{
		UUID:          uuid.New().String(),
		DocumentUUID:  document.UUID,
		RecipientUUID: &recipient.UUID,
		EventType:     model.EventDocumentSigned,
		Payload: model.EventPayload{
			"signature_type": signature.Type,
			"signed_at":      signedAt.Format(time.RFC3339),
			"ip_address":     ipAddress,
			"all_signed":     allSigned,
		},
	}
	if err := s.eventRepository.Append(ctx, exec, event); err != nil {
		return nil, err
	}

	if err := commit(); err != nil {
		return nil, util.LogError("[SigningService] не удалось закоммитить транзакцию", err)
	}

	s.invalidateSessions(ctx, recipients)

	// якорение и инскрипции не задерживают ответ подписанту;
	// их ошибки видны только в логах и журнале аудита
	if allSigned {
		go s.runAnchoring(document.UUID)
	}

	go func(document model.Document, recipient model.Recipient) {
		notifyCtx, cancel := context.WithTimeout(context.Background(), s.asyncTimeout)
		defer cancel()
		if err := s.notifier.NotifySignerConfirmation(notifyCtx, &document, &recipient); err != nil {
			log.Printf("[SigningService] ошибка отправки подтверждения: %v", err)
		}
	}(*document, *recipient)

	log.Printf("[SigningService] подпись по документу %s принята, all_signed=%v", document.UUID, allSigned)

	return &model.SignResult{
		DocumentUUID: document.UUID,
		AllSigned:    allSigned,
		SignedAt:     signedAt,
	}, nil
}

// checkSigningOrder : при последовательном подписании все подписанты
// с меньшим порядком должны быть в статусе signed. Зрители и согласующие
// в очереди не участвуют. Состояние читается заново при каждой проверке.
func (s *SigningService) checkSigningOrder(ctx context.Context, exec sqlx.ExtContext, documentUUID string, current *model.Recipient) error {
	recipients, err := s.recipientRepository.ListByDocument(ctx, exec, documentUUID)
	if err != nil {
		return util.LogError("[SigningService] не удалось проверить очередь подписания", err)
	}

	for _, r := range recipients {
		if r.Role != model.RoleSigner {
			continue
		}
		if r.SigningOrder < current.SigningOrder && r.Status != model.RecipientSigned {
			return model.ErrWaitingOnPriorSigner
		}
	}

	return nil
}

// Decline : отклонение любым участником переводит документ в declined
// безусловно, состояния остальных получателей не проверяются.
// Асинхронных побочных эффектов у отклонения нет.
func (s *SigningService) Decline(ctx context.Context, accessToken string, reason string) (string, error) {
	exec, rollback, commit, err := s.documentRepository.BeginTX(ctx)
	if err != nil {
		return "", util.LogError("[SigningService] не удалось начать транзакцию", err)
	}
	defer rollback()

	recipient, document, err := s.resolveByToken(ctx, exec, accessToken)
	if err != nil {
		return "", err
	}

	if err := checkActionable(document); err != nil {
		return "", err
	}

	declined, err := s.recipientRepository.MarkDeclined(ctx, exec, recipient.UUID)
	if err != nil {
		return "", util.LogError("[SigningService] не удалось отметить отклонение", err)
	}
	if declined == false {
		if recipient.Status == model.RecipientSigned {
			return "", model.ErrAlreadySigned
		}
		return "", model.ErrAlreadyDeclined
	}

	if err := s.documentRepository.UpdateStatus(ctx, exec, document.UUID, model.StatusDeclined); err != nil {
		return "", util.LogError("[SigningService] не удалось обновить статус документа", err)
	}

	payload := model.EventPayload{
		"email": recipient.Email,
	}
	if reason != "" {
		payload["reason"] = reason
	}
	event := &model.DocumentEvent{
		UUID:          uuid.New().String(),
		DocumentUUID:  document.UUID,
		RecipientUUID: &recipient.UUID,
		EventType:     model.EventDocumentDeclined,
		Payload:       payload,
	}
	if err := s.eventRepository.Append(ctx, exec, event); err != nil {
		return "", err
	}

	recipients, err := s.recipientRepository.ListByDocument(ctx, exec, document.UUID)
	if err != nil {
		log.Printf("[SigningService] не удалось получить получателей для инвалидации кэша: %v", err)
		// как минимум сессия инициатора не должна пережить мутацию
		recipients = []model.Recipient{*recipient}
	}

	if err := commit(); err != nil {
		return "", util.LogError("[SigningService] не удалось закоммитить транзакцию", err)
	}

	s.invalidateSessions(ctx, recipients)

	log.Printf("[SigningService] документ %s отклонён получателем %s", document.UUID, recipient.UUID)

	return document.UUID, nil
}

// UpdatePricingSelection : перезаписывает флажки isSelected в pricing-table
// блоке по присланному набору выбранных позиций. Повторная отправка того же
// набора ничего не меняет по сути, но событие в журнал добавляется всегда.
func (s *SigningService) UpdatePricingSelection(ctx context.Context, accessToken string, blockID string, selectedItemIDs []string) (string, error) {
	exec, rollback, commit, err := s.documentRepository.BeginTX(ctx)
	if err != nil {
		return "", util.LogError("[SigningService] не удалось начать транзакцию", err)
	}
	defer rollback()

	recipient, document, err := s.resolveByToken(ctx, exec, accessToken)
	if err != nil {
		return "", err
	}

	if err := checkActionable(document); err != nil {
		return "", err
	}

	idx := document.Content.FindBlock(blockID)
	if idx < 0 || document.Content[idx].Type != model.BlockTypePricingTable {
		return "", model.ErrValidation
	}

	selected := make(map[string]bool, len(selectedItemIDs))
	for _, id := range selectedItemIDs {
		selected[id] = true
	}

	items, ok := document.Content[idx].Content["items"].([]any)
	if ok == false {
		return "", model.ErrValidation
	}
	for _, rawItem := range items {
		item, ok := rawItem.(map[string]any)
		if ok == false {
			continue
		}
		itemID, _ := item["id"].(string)
		item["isSelected"] = selected[itemID]
	}

	if err := s.documentRepository.UpdateContent(ctx, exec, document.UUID, document.Content); err != nil {
		return "", util.LogError("[SigningService] не удалось сохранить выбор позиций", err)
	}

	event := &model.DocumentEvent{
		UUID:          uuid.New().String(),
		DocumentUUID:  document.UUID,
		RecipientUUID: &recipient.UUID,
		EventType:     model.EventPricingUpdated,
		Payload: model.EventPayload{
			"block_id":          blockID,
			"selected_item_ids": selectedItemIDs,
		},
	}
	if err := s.eventRepository.Append(ctx, exec, event); err != nil {
		return "", err
	}

	recipients, err := s.recipientRepository.ListByDocument(ctx, exec, document.UUID)
	if err != nil {
		log.Printf("[SigningService] не удалось получить получателей для инвалидации кэша: %v", err)
		recipients = []model.Recipient{*recipient}
	}

	if err := commit(); err != nil {
		return "", util.LogError("[SigningService] не удалось закоммитить транзакцию", err)
	}

	s.invalidateSessions(ctx, recipients)

	return document.UUID, nil
}

// runAnchoring : отсоединённая фоновая задача после полного подписания.
// Сначала якорение, затем инскрипции: инскрипции переписывают контент,
// а канонический хэш должен считаться по контенту на момент завершения.
func (s *SigningService) runAnchoring(documentUUID string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.asyncTimeout)
	defer cancel()

	if err := s.anchorService.AnchorDocument(ctx, documentUUID); err != nil {
		log.Printf("[SigningService] ошибка якорения документа %s: %v", documentUUID, err)
	}

	if err := s.anchorService.DispatchEthscriptions(ctx, documentUUID); err != nil {
		log.Printf("[SigningService] ошибка отправки инскрипций документа %s: %v", documentUUID, err)
	}
}

// invalidateSessions : контент или статус документа изменились —
// кэшированные сессии всех получателей устарели
func (s *SigningService) invalidateSessions(ctx context.Context, recipients []model.Recipient) {
	for _, r := range recipients {
		if err := s.cacheRepository.DeleteSession(ctx, r.AccessToken); err != nil {
			log.Printf("[SigningService] ошибка удаления сессии из кэша: %v", err)
		}
	}
}
