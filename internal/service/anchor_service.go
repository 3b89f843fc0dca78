package service

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"signing-web-server/config"
	"signing-web-server/internal/model"
	"signing-web-server/internal/ports"
	"signing-web-server/internal/util"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// addressPattern : строгий формат hex-адреса получателя инскрипции
var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

type signerDigest struct {
	EmailHash string `json:"emailHash"`
	SignedAt  string `json:"signedAt"`
}

// canonicalRecord : запись, хэш которой якорится в блокчейне.
// Email-хэши вместо самих email сохраняют приватность подписантов.
type canonicalRecord struct {
	DocumentID       string         `json:"documentId"`
	ContentHash      string         `json:"contentHash"`
	Signers          []signerDigest `json:"signers"`
	PaymentCollected bool           `json:"paymentCollected"`
	CompletedAt      string         `json:"completedAt"`
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// CanonicalContentHash : хэш канонической сериализации блоков контента
func CanonicalContentHash(content model.DocumentContent) (string, error) {
	data, err := json.Marshal(content)
	if err != nil {
		return "", err
	}
	return sha256Hex(data), nil
}

// CanonicalDocumentHash : детерминированный хэш завершённого документа.
// Список подписантов сортируется по emailHash — именно этот шаг убирает
// зависимость от порядка, в котором подписанты реально завершили подписание.
// Возвращает хэш и байты канонической записи (они же уходят в архив).
func CanonicalDocumentHash(documentUUID string, content model.DocumentContent, recipients []model.Recipient, paymentCollected bool, completedAt time.Time) (string, []byte, error) {
	contentHash, err := CanonicalContentHash(content)
	if err != nil {
		return "", nil, util.LogError("[AnchorService] ошибка сериализации контента", err)
	}

	signers := []signerDigest{}
	for _, r := range recipients {
		if r.Role != model.RoleSigner || r.SignedAt == nil {
			continue
		}
		email := strings.ToLower(strings.TrimSpace(r.Email))
		signers = append(signers, signerDigest{
			EmailHash: sha256Hex([]byte(email)),
			SignedAt:  r.SignedAt.UTC().Format(time.RFC3339),
		})
	}
	sort.Slice(signers, func(i, j int) bool {
		return signers[i].EmailHash < signers[j].EmailHash
	})

	record := canonicalRecord{
		DocumentID:       documentUUID,
		ContentHash:      contentHash,
		Signers:          signers,
		PaymentCollected: paymentCollected,
		CompletedAt:      completedAt.UTC().Format(time.RFC3339),
	}

	data, err := json.Marshal(record)
	if err != nil {
		return "", nil, util.LogError("[AnchorService] ошибка сериализации канонической записи", err)
	}

	return sha256Hex(data), data, nil
}

type AnchorService struct {
	documentRepository  ports.DocumentRepository
	recipientRepository ports.RecipientRepository
	eventRepository     ports.EventRepository
	cacheRepository     ports.CacheRepository
	chainClients        map[string]ports.ChainClient
	networks            map[string]config.NetworkConfig
	defaultNetwork      string
	storage             ports.S3Storage
	notifier            ports.Notifier
}

func NewAnchorService(
	documentRepository ports.DocumentRepository,
	recipientRepository ports.RecipientRepository,
	eventRepository ports.EventRepository,
	cacheRepository ports.CacheRepository,
	chainClients map[string]ports.ChainClient,
	networks map[string]config.NetworkConfig,
	defaultNetwork string,
	storage ports.S3Storage,
	notifier ports.Notifier,
) *AnchorService {
	return &AnchorService{
		documentRepository:  documentRepository,
		recipientRepository: recipientRepository,
		eventRepository:     eventRepository,
		cacheRepository:     cacheRepository,
		chainClients:        chainClients,
		networks:            networks,
		defaultNetwork:      defaultNetwork,
		storage:             storage,
		notifier:            notifier,
	}
}

// AnchorDocument : строит канонический хэш завершённого документа и якорит
// его zero-value транзакцией самому себе. Повторный вызов для уже
// заякоренного документа выходит сразу — blockchain_tx_hash пишется один раз.
func (s *AnchorService) AnchorDocument(ctx context.Context, documentUUID string) error {
	exec, rollback, commit, err := s.documentRepository.BeginTX(ctx)
	if err != nil {
		return util.LogError("[AnchorService] не удалось начать транзакцию", err)
	}
	defer rollback()

	document, err := s.documentRepository.GetByUUID(ctx, exec, documentUUID)
	if err != nil {
		return util.LogError("[AnchorService] документ не найден", err)
	}

	if document.BlockchainTxHash != nil {
		log.Printf("[AnchorService] документ %s уже заякорен (%s)", documentUUID, *document.BlockchainTxHash)
		return nil
	}
	if document.Status != model.StatusCompleted {
		log.Printf("[AnchorService] документ %s не завершён, якорение пропущено", documentUUID)
		return nil
	}

	recipients, err := s.recipientRepository.ListByDocument(ctx, exec, documentUUID)
	if err != nil {
		return util.LogError("[AnchorService] не удалось получить получателей", err)
	}

	paymentCollected, err := s.documentRepository.HasSucceededPayment(ctx, exec, documentUUID)
	if err != nil {
		return util.LogError("[AnchorService] ошибка проверки платежа", err)
	}

	if err := commit(); err != nil {
		return util.LogError("[AnchorService] не удалось закоммитить транзакцию", err)
	}

	documentHash, recordBytes, err := CanonicalDocumentHash(documentUUID, document.Content, recipients, paymentCollected, document.UpdatedAt)
	if err != nil {
		return err
	}

	// архивный снимок — ровно те байты, которые хэшировались;
	// его недоступность якорение не останавливает
	if s.storage != nil {
		key := fmt.Sprintf("anchors/%s/%s.json", documentUUID, documentHash)
		if err := s.storage.PutObject(ctx, key, recordBytes, "application/json"); err != nil {
			log.Printf("[AnchorService] ошибка архивирования снимка %s: %v", key, err)
		}
	}

	network, ok := s.networks[s.defaultNetwork]
	if ok == false {
		return fmt.Errorf("[AnchorService] сеть %s не сконфигурирована", s.defaultNetwork)
	}
	client, ok := s.chainClients[s.defaultNetwork]
	if ok == false {
		return fmt.Errorf("[AnchorService] клиент сети %s не сконфигурирован", s.defaultNetwork)
	}

	envelope := model.AnchorEnvelope{
		Type:      model.AnchorEnvelopeType,
		Note:      "Подтверждение подписания документа",
		Hash:      documentHash,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	envelopeJSON, err := json.Marshal(envelope)
	if err != nil {
		return util.LogError("[AnchorService] ошибка сериализации envelope", err)
	}
	payload := base64.StdEncoding.EncodeToString(envelopeJSON)

	txHash, err := client.SendSelfTransaction(ctx, []byte(payload))
	if err != nil {
		return util.LogError("[AnchorService] ошибка отправки якорной транзакции", err)
	}

	verifiedAt := time.Now().UTC()

	exec, rollback, commit, err = s.documentRepository.BeginTX(ctx)
	if err != nil {
		return util.LogError("[AnchorService] не удалось начать транзакцию", err)
	}
	defer rollback()

	if err := s.documentRepository.SetBlockchainProof(ctx, exec, documentUUID, txHash, documentHash, verifiedAt); err != nil {
		return err
	}

	event := &model.DocumentEvent{
		UUID:         uuid.New().String(),
		DocumentUUID: documentUUID,
		EventType:    model.EventBlockchainVerified,
		Payload: model.EventPayload{
			"tx_hash":        txHash,
			"document_hash":  documentHash,
			"chain_id":       network.ChainID,
			"auto_triggered": true,
		},
	}
	if err := s.eventRepository.Append(ctx, exec, event); err != nil {
		return err
	}

	if err := commit(); err != nil {
		return util.LogError("[AnchorService] не удалось закоммитить транзакцию", err)
	}

	log.Printf("[AnchorService] документ %s заякорен, tx=%s", documentUUID, txHash)
	return nil
}

// DispatchEthscriptions : best-effort рассылка инскрипций по data-uri блокам
// завершённого документа. Каждый блок обрабатывается независимо: плохой адрес
// или ошибка сети по одному блоку не прерывают остальные.
func (s *AnchorService) DispatchEthscriptions(ctx context.Context, documentUUID string) error {
	exec, rollback, commit, err := s.documentRepository.BeginTX(ctx)
	if err != nil {
		return util.LogError("[AnchorService] не удалось начать транзакцию", err)
	}
	defer rollback()

	document, err := s.documentRepository.GetByUUID(ctx, exec, documentUUID)
	if err != nil {
		return util.LogError("[AnchorService] документ не найден", err)
	}
	recipients, err := s.recipientRepository.ListByDocument(ctx, exec, documentUUID)
	if err != nil {
		return util.LogError("[AnchorService] не удалось получить получателей", err)
	}
	if err := commit(); err != nil {
		return util.LogError("[AnchorService] не удалось закоммитить транзакцию", err)
	}

	if document.Status != model.StatusCompleted {
		return nil
	}

	for _, block := range document.Content {
		if block.Type != model.BlockTypeDataURI {
			continue
		}

		payloadB64, _ := block.Content["payload"].(string)
		address, _ := block.Content["recipientAddress"].(string)
		networkName, _ := block.Content["network"].(string)
		if payloadB64 == "" || address == "" {
			continue
		}
		if networkName == "" {
			networkName = s.defaultNetwork
		}

		if !addressPattern.MatchString(address) {
			s.recordEthscriptionFailure(ctx, documentUUID, block.ID, "некорректный адрес получателя")
			continue
		}

		raw, err := base64.StdEncoding.DecodeString(payloadB64)
		if err != nil {
			s.recordEthscriptionFailure(ctx, documentUUID, block.ID, "полезная нагрузка не является base64")
			continue
		}

		client, ok := s.chainClients[networkName]
		if ok == false {
			s.recordEthscriptionFailure(ctx, documentUUID, block.ID, fmt.Sprintf("сеть %s не сконфигурирована", networkName))
			continue
		}

		txHash, err := client.SendTransactionTo(ctx, address, raw)
		if err != nil {
			s.recordEthscriptionFailure(ctx, documentUUID, block.ID, err.Error())
			continue
		}

		if err := s.markInscriptionCompleted(ctx, documentUUID, block.ID, txHash, networkName, recipients); err != nil {
			log.Printf("[AnchorService] ошибка записи статуса инскрипции %s: %v", block.ID, err)
			continue
		}

		s.notifyInscriptionReceipt(ctx, document, recipients, block, txHash, networkName)
	}

	return nil
}

// markInscriptionCompleted : переписывает ровно один блок, перечитав контент
// непосредственно перед записью — параллельные правки других блоков не теряются
func (s *AnchorService) markInscriptionCompleted(ctx context.Context, documentUUID string, blockID string, txHash string, networkName string, recipients []model.Recipient) error {
	exec, rollback, commit, err := s.documentRepository.BeginTX(ctx)
	if err != nil {
		return util.LogError("[AnchorService] не удалось начать транзакцию", err)
	}
	defer rollback()

	document, err := s.documentRepository.GetByUUID(ctx, exec, documentUUID)
	if err != nil {
		return util.LogError("[AnchorService] документ не найден", err)
	}

	idx := document.Content.FindBlock(blockID)
	if idx < 0 {
		return fmt.Errorf("[AnchorService] блок %s не найден в документе %s", blockID, documentUUID)
	}
	if document.Content[idx].Content == nil {
		document.Content[idx].Content = map[string]any{}
	}
	document.Content[idx].Content["inscriptionStatus"] = "completed"
	document.Content[idx].Content["inscriptionTxHash"] = txHash

	if err := s.documentRepository.UpdateContent(ctx, exec, documentUUID, document.Content); err != nil {
		return err
	}

	event := &model.DocumentEvent{
		UUID:         uuid.New().String(),
		DocumentUUID: documentUUID,
		EventType:    model.EventEthscriptionComplete,
		Payload: model.EventPayload{
			"block_id": blockID,
			"tx_hash":  txHash,
			"network":  networkName,
		},
	}
	if err := s.eventRepository.Append(ctx, exec, event); err != nil {
		return err
	}

	if err := commit(); err != nil {
		return err
	}

	// контент изменился — кэшированные сессии всех получателей устарели
	for i := range recipients {
		if err := s.cacheRepository.DeleteSession(ctx, recipients[i].AccessToken); err != nil {
			log.Printf("[AnchorService] ошибка удаления сессии из кэша: %v", err)
		}
	}

	return nil
}

func (s *AnchorService) recordEthscriptionFailure(ctx context.Context, documentUUID string, blockID string, reason string) {
	log.Printf("[AnchorService] инскрипция блока %s документа %s не отправлена: %s", blockID, documentUUID, reason)

	exec, rollback, commit, err := s.documentRepository.BeginTX(ctx)
	if err != nil {
		log.Printf("[AnchorService] не удалось начать транзакцию: %v", err)
		return
	}
	defer rollback()

	event := &model.DocumentEvent{
		UUID:         uuid.New().String(),
		DocumentUUID: documentUUID,
		EventType:    model.EventEthscriptionFailed,
		Payload: model.EventPayload{
			"block_id": blockID,
			"error":    reason,
		},
	}
	if err := s.eventRepository.Append(ctx, exec, event); err != nil {
		return
	}

	if err := commit(); err != nil {
		log.Printf("[AnchorService] не удалось записать событие ошибки: %v", err)
	}
}

func (s *AnchorService) notifyInscriptionReceipt(ctx context.Context, document *model.Document, recipients []model.Recipient, block model.Block, txHash string, networkName string) {
	recipientEmail, _ := block.Content["recipientEmail"].(string)
	if recipientEmail == "" {
		return
	}

	explorerURL := ""
	if network, ok := s.networks[networkName]; ok && network.ExplorerTxURL != "" {
		explorerURL = fmt.Sprintf(network.ExplorerTxURL, txHash)
	}

	for i := range recipients {
		if strings.EqualFold(recipients[i].Email, recipientEmail) {
			if err := s.notifier.NotifyEthscriptionReceipt(ctx, document, &recipients[i], txHash, explorerURL); err != nil {
				log.Printf("[AnchorService] ошибка отправки квитанции: %v", err)
			}
			return
		}
	}
}

// VerifyDocumentHash : независимый путь чтения — по хэшу транзакции достаёт
// envelope из data-поля и сравнивает встроенный хэш с ожидаемым
func (s *AnchorService) VerifyDocumentHash(ctx context.Context, network string, txHash string, expectedHash string) (*model.VerificationResult, error) {
	if network == "" {
		network = s.defaultNetwork
	}
	client, ok := s.chainClients[network]
	if ok == false {
		return nil, fmt.Errorf("[AnchorService] сеть %s не сконфигурирована", network)
	}

	data, blockNumber, blockTime, err := client.GetTransactionData(ctx, txHash)
	if err != nil {
		return nil, util.LogError("[AnchorService] транзакция не найдена", err)
	}

	decoded, err := base64.StdEncoding.DecodeString(string(data))
	if err != nil {
		return nil, util.LogError("[AnchorService] data-поле транзакции не является base64", err)
	}

	var envelope model.AnchorEnvelope
	if err := json.Unmarshal(decoded, &envelope); err != nil {
		return nil, util.LogError("[AnchorService] не удалось разобрать envelope", err)
	}

	return &model.VerificationResult{
		Verified:       strings.EqualFold(envelope.Hash, expectedHash),
		Envelope:       &envelope,
		BlockNumber:    blockNumber,
		BlockTimestamp: blockTime,
	}, nil
}

// RunReconciler : фоновый досмотр. Документ мог завершиться, а процесс —
// упасть до якорения; такие документы находятся по отсутствию
// blockchain_tx_hash и якорятся повторно. Защита от двойного якоря —
// идемпотентность самого AnchorDocument.
func (s *AnchorService) RunReconciler(ctx context.Context, interval time.Duration, grace time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("[AnchorService] реконсилер запущен, интервал %s", interval)

	for {
		select {
		case <-ctx.Done():
			log.Println("[AnchorService] реконсилер остановлен")
			return
		case <-ticker.C:
			s.reconcile(ctx, grace)
		}
	}
}

func (s *AnchorService) reconcile(ctx context.Context, grace time.Duration) {
	exec, rollback, commit, err := s.documentRepository.BeginTX(ctx)
	if err != nil {
		log.Printf("[AnchorService] не удалось начать транзакцию: %v", err)
		return
	}
	defer rollback()

	uuids, err := s.documentRepository.ListUnanchored(ctx, exec, grace)
	if err != nil {
		log.Printf("[AnchorService] ошибка поиска незаякоренных документов: %v", err)
		return
	}

	if err := commit(); err != nil {
		log.Printf("[AnchorService] не удалось закоммитить транзакцию: %v", err)
		return
	}

	for _, documentUUID := range uuids {
		log.Printf("[AnchorService] повторное якорение документа %s", documentUUID)
		if err := s.AnchorDocument(ctx, documentUUID); err != nil {
			log.Printf("[AnchorService] повторное якорение %s не удалось: %v", documentUUID, err)
		}
	}
}
