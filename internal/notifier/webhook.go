package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"signing-web-server/config"
	"signing-web-server/internal/model"
	"signing-web-server/internal/util"
	"time"
)

// WebhookNotifier : шлюз уведомлений. Доставка best-effort: любая ошибка
// логируется вызывающим кодом и не влияет на основной запрос.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

func NewWebhookNotifier(cfg *config.WebhookConfig) (*WebhookNotifier, error) {
	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil {
		return nil, util.LogError("[Notifier] ошибка парсинга таймаута", err)
	}

	return &WebhookNotifier{
		url: cfg.URL,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

func (n *WebhookNotifier) send(ctx context.Context, event string, payload map[string]any) error {
	body := map[string]any{
		"event":   event,
		"payload": payload,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return util.LogError("[Notifier] ошибка сериализации уведомления", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(data))
	if err != nil {
		return util.LogError("[Notifier] ошибка создания запроса", err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := n.client.Do(request)
	if err != nil {
		return util.LogError("[Notifier] ошибка отправки уведомления", err)
	}
	defer response.Body.Close()

	if response.StatusCode >= 300 {
		return fmt.Errorf("[Notifier] неожиданный статус ответа: %d", response.StatusCode)
	}

	return nil
}

// NotifyWebhook : разовое уведомление о попытке обновления токенов с нового IP
func NotifyWebhook(webhookURL string, userUUID string, newIP string, knownIP string) error {
	body := map[string]any{
		"event": "refresh_from_new_ip",
		"payload": map[string]any{
			"user_uuid": userUUID,
			"new_ip":    newIP,
			"known_ip":  knownIP,
		},
	}

	data, err := json.Marshal(body)
	if err != nil {
		return util.LogError("[Notifier] ошибка сериализации уведомления", err)
	}

	response, err := http.Post(webhookURL, "application/json", bytes.NewReader(data))
	if err != nil {
		return util.LogError("[Notifier] ошибка отправки уведомления", err)
	}
	defer response.Body.Close()

	if response.StatusCode >= 300 {
		return fmt.Errorf("[Notifier] неожиданный статус ответа: %d", response.StatusCode)
	}

	return nil
}

// NotifyRecipientInvite : письмо получателю со ссылкой для подписания
func (n *WebhookNotifier) NotifyRecipientInvite(ctx context.Context, document *model.Document, recipient *model.Recipient) error {
	return n.send(ctx, "recipient_invited", map[string]any{
		"document_uuid":  document.UUID,
		"document_title": document.Title,
		"email":          recipient.Email,
		"name":           recipient.Name,
		"access_token":   recipient.AccessToken,
	})
}

// NotifyOwnerViewed : владельцу о первом просмотре получателем
func (n *WebhookNotifier) NotifyOwnerViewed(ctx context.Context, document *model.Document, recipient *model.Recipient) error {
	return n.send(ctx, "document_viewed", map[string]any{
		"document_uuid": document.UUID,
		"owner_uuid":    document.OwnerUUID,
		"email":         recipient.Email,
	})
}

// NotifySignerConfirmation : подтверждение подписавшему
func (n *WebhookNotifier) NotifySignerConfirmation(ctx context.Context, document *model.Document, recipient *model.Recipient) error {
	return n.send(ctx, "signature_confirmed", map[string]any{
		"document_uuid":  document.UUID,
		"document_title": document.Title,
		"email":          recipient.Email,
	})
}

// NotifyEthscriptionReceipt : квитанция получателю инскрипции
func (n *WebhookNotifier) NotifyEthscriptionReceipt(ctx context.Context, document *model.Document, recipient *model.Recipient, txHash string, explorerURL string) error {
	return n.send(ctx, "ethscription_receipt", map[string]any{
		"document_uuid": document.UUID,
		"email":         recipient.Email,
		"tx_hash":       txHash,
		"explorer_url":  explorerURL,
	})
}
