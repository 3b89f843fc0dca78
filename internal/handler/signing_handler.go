package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"signing-web-server/internal/model"
	"signing-web-server/internal/model/requestresponse"
	"signing-web-server/internal/ports"
	"signing-web-server/internal/util"
	"time"

	"github.com/go-chi/chi/v5"
)

type SigningHandler struct {
	ports.SigningService
	ports.AnchorService
}

func NewSigningHandler(signingService ports.SigningService, anchorService ports.AnchorService) *SigningHandler {
	return &SigningHandler{signingService, anchorService}
}

// handleSigningError : единое сопоставление ошибок канала подписания
// со статусами и стабильными кодами ответа
func handleSigningError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrInvalidLink):
		util.HandleTypedError(w, model.CodeInvalidLink, err.Error(), http.StatusNotFound)
	case errors.Is(err, model.ErrDocumentExpired):
		util.HandleTypedError(w, model.CodeDocumentExpired, err.Error(), http.StatusGone)
	case errors.Is(err, model.ErrNotYetSent):
		util.HandleTypedError(w, model.CodeNotYetSent, err.Error(), http.StatusForbidden)
	case errors.Is(err, model.ErrUnauthorized):
		util.HandleTypedError(w, model.CodeUnauthorized, err.Error(), http.StatusForbidden)
	case errors.Is(err, model.ErrWaitingOnPriorSigner):
		util.HandleTypedError(w, model.CodeWaitingOnPriorSigner, err.Error(), http.StatusForbidden)
	case errors.Is(err, model.ErrAlreadySigned):
		util.HandleTypedError(w, model.CodeAlreadySigned, err.Error(), http.StatusConflict)
	case errors.Is(err, model.ErrAlreadyDeclined):
		util.HandleTypedError(w, model.CodeAlreadyDeclined, err.Error(), http.StatusConflict)
	case errors.Is(err, model.ErrValidation):
		util.HandleTypedError(w, model.CodeValidationError, err.Error(), http.StatusBadRequest)
	default:
		util.HandleTypedError(w, model.CodeInternalError, "внутренняя ошибка сервера", http.StatusInternalServerError)
	}
}

// GetSigningSession godoc
// @Summary Сессия подписания по токену
// @Description Возвращает документ и получателя по токену доступа. Первый запрос фиксирует просмотр.
// @Tags Signing
// @Produce json
// @Param token path string true "Токен доступа получателя"
// @Success 200 {object} requestresponse.SigningSessionResponse
// @Failure 404 {object} requestresponse.ErrorResponse "Ссылка недействительна"
// @Failure 410 {object} requestresponse.ErrorResponse "Срок действия документа истёк"
// @Failure 500 {object} requestresponse.ErrorResponse "Внутренняя ошибка сервера"
// @Router /sign/{token} [get]
func (h *SigningHandler) GetSigningSession(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	accessToken := chi.URLParam(r, "token")
	if accessToken == "" {
		handleSigningError(w, model.ErrInvalidLink)
		return
	}

	session, payment, err := h.SigningService.View(ctx, accessToken, r.UserAgent())
	if err != nil {
		handleSigningError(w, err)
		return
	}

	resp := requestresponse.SigningSessionResponse{
		Document: requestresponse.SigningDocument{
			UUID:     session.Document.UUID,
			Title:    session.Document.Title,
			Content:  session.Document.Content,
			Status:   session.Document.Status,
			Settings: session.Document.Settings,
		},
		Recipient: requestresponse.SigningRecipient{
			UUID:         session.Recipient.UUID,
			Email:        session.Recipient.Email,
			Name:         session.Recipient.Name,
			Role:         session.Recipient.Role,
			Status:       session.Recipient.Status,
			SigningOrder: session.Recipient.SigningOrder,
		},
		RequiresPayment: payment.Required,
		PaymentAmount:   payment.Amount,
		PaymentCurrency: payment.Currency,
		PaymentTiming:   payment.Timing,
	}

	w.WriteHeader(200)
	json.NewEncoder(w).Encode(resp)
}

// SignAction godoc
// @Summary Подписание или отклонение документа
// @Description Принимает подпись получателя либо, при action=decline, отклоняет документ.
// @Tags Signing
// @Accept json
// @Produce json
// @Param token path string true "Токен доступа получателя"
// @Param body body requestresponse.SignActionRequest true "Тело запроса"
// @Success 200 {object} requestresponse.SignResponse
// @Failure 400 {object} requestresponse.ErrorResponse "Некорректный запрос"
// @Failure 403 {object} requestresponse.ErrorResponse "Действие недоступно"
// @Failure 404 {object} requestresponse.ErrorResponse "Ссылка недействительна"
// @Failure 409 {object} requestresponse.ErrorResponse "Подпись уже поставлена или документ отклонён"
// @Failure 410 {object} requestresponse.ErrorResponse "Срок действия документа истёк"
// @Failure 500 {object} requestresponse.ErrorResponse "Внутренняя ошибка сервера"
// @Router /sign/{token} [post]
func (h *SigningHandler) SignAction(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	accessToken := chi.URLParam(r, "token")
	if accessToken == "" {
		handleSigningError(w, model.ErrInvalidLink)
		return
	}

	var req requestresponse.SignActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		util.HandleTypedError(w, model.CodeValidationError, "некорректный JSON", http.StatusBadRequest)
		return
	}

	if req.Action == "decline" {
		documentUUID, err := h.SigningService.Decline(ctx, accessToken, req.Reason)
		if err != nil {
			handleSigningError(w, err)
			return
		}

		w.WriteHeader(200)
		json.NewEncoder(w).Encode(requestresponse.DeclineResponse{
			Success:      true,
			DocumentUUID: documentUUID,
		})
		return
	}

	if req.SignatureData == nil {
		util.HandleTypedError(w, model.CodeValidationError, "данные подписи обязательны", http.StatusBadRequest)
		return
	}

	result, err := h.SigningService.SubmitSignature(ctx, accessToken, *req.SignatureData, req.UpdatedContent, r.RemoteAddr)
	if err != nil {
		handleSigningError(w, err)
		return
	}

	w.WriteHeader(200)
	json.NewEncoder(w).Encode(requestresponse.SignResponse{
		Success:      true,
		DocumentUUID: result.DocumentUUID,
		AllSigned:    result.AllSigned,
		SignedAt:     result.SignedAt,
	})
}

// UpdatePricingSelection godoc
// @Summary Выбор позиций в pricing-table блоке
// @Description Обновляет выбранные получателем позиции до подписания документа.
// @Tags Signing
// @Accept json
// @Produce json
// @Param token path string true "Токен доступа получателя"
// @Param body body requestresponse.PricingSelectionRequest true "Тело запроса"
// @Success 200 {object} requestresponse.PricingSelectionResponse
// @Failure 400 {object} requestresponse.ErrorResponse "Некорректный запрос или блок не найден"
// @Failure 404 {object} requestresponse.ErrorResponse "Ссылка недействительна"
// @Failure 409 {object} requestresponse.ErrorResponse "Документ уже завершён"
// @Failure 500 {object} requestresponse.ErrorResponse "Внутренняя ошибка сервера"
// @Router /sign/{token}/pricing [post]
func (h *SigningHandler) UpdatePricingSelection(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	accessToken := chi.URLParam(r, "token")
	if accessToken == "" {
		handleSigningError(w, model.ErrInvalidLink)
		return
	}

	var req requestresponse.PricingSelectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		util.HandleTypedError(w, model.CodeValidationError, "некорректный JSON", http.StatusBadRequest)
		return
	}
	if req.PricingBlockID == "" {
		util.HandleTypedError(w, model.CodeValidationError, "pricingBlockId обязателен", http.StatusBadRequest)
		return
	}

	documentUUID, err := h.SigningService.UpdatePricingSelection(ctx, accessToken, req.PricingBlockID, req.SelectedItemIDs)
	if err != nil {
		handleSigningError(w, err)
		return
	}

	w.WriteHeader(200)
	json.NewEncoder(w).Encode(requestresponse.PricingSelectionResponse{
		Success:      true,
		DocumentUUID: documentUUID,
	})
}

// VerifyHash godoc
// @Summary Проверка якоря документа
// @Description Читает транзакцию из блокчейна и сравнивает встроенный в неё хэш с ожидаемым.
// @Tags Blockchain
// @Accept json
// @Produce json
// @Param body body requestresponse.VerifyHashRequest true "Тело запроса"
// @Success 200 {object} requestresponse.VerifyHashResponse
// @Failure 400 {object} requestresponse.ErrorResponse "Некорректный запрос"
// @Failure 500 {object} requestresponse.ErrorResponse "Транзакция не найдена или сеть недоступна"
// @Router /api/blockchain/verify [post]
func (h *SigningHandler) VerifyHash(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	var req requestresponse.VerifyHashRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		util.HandleTypedError(w, model.CodeValidationError, "некорректный JSON", http.StatusBadRequest)
		return
	}
	if req.TxHash == "" || req.DocumentHash == "" {
		util.HandleTypedError(w, model.CodeValidationError, "txHash и documentHash обязательны", http.StatusBadRequest)
		return
	}

	result, err := h.AnchorService.VerifyDocumentHash(ctx, req.Network, req.TxHash, req.DocumentHash)
	if err != nil {
		util.HandleTypedError(w, model.CodeInternalError, "не удалось проверить транзакцию", http.StatusInternalServerError)
		return
	}

	resp := requestresponse.VerifyHashResponse{
		Verified:    result.Verified,
		BlockNumber: result.BlockNumber,
	}
	if !result.BlockTimestamp.IsZero() {
		timestamp := result.BlockTimestamp
		resp.BlockTimestamp = &timestamp
	}
	if result.Envelope != nil {
		resp.Envelope = map[string]any{
			"type":      result.Envelope.Type,
			"note":      result.Envelope.Note,
			"hash":      result.Envelope.Hash,
			"timestamp": result.Envelope.Timestamp,
		}
	}

	w.WriteHeader(200)
	json.NewEncoder(w).Encode(resp)
}
