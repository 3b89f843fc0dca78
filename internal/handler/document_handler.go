package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"signing-web-server/internal/model"
	requestresponse "signing-web-server/internal/model/requestresponse"
	"signing-web-server/internal/ports"
	"signing-web-server/internal/security"
	"signing-web-server/internal/service"
	"signing-web-server/internal/util"
	"time"

	"github.com/go-chi/chi/v5"
)

type DocumentHandler struct {
	ports.DispatchService
}

func NewDocumentHandler(dispatchService ports.DispatchService) *DocumentHandler {
	return &DocumentHandler{dispatchService}
}

// handleDispatchError : ошибки канала владельца
func handleDispatchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		util.HandleError(w, "документ не найден", http.StatusNotFound)
	case errors.Is(err, model.ErrValidation):
		util.HandleError(w, err.Error(), http.StatusBadRequest)
	default:
		util.HandleError(w, "внутренняя ошибка сервера", http.StatusInternalServerError)
	}
}

// CreateDocument godoc
// @Summary Создание черновика документа
// @Description Создаёт документ в статусе draft с переданными блоками контента.
// @Tags Documents
// @Accept json
// @Produce json
// @Param body body requestresponse.CreateDocumentRequest true "Тело запроса"
// @Param Authorization header string true "Bearer токен" default(Bearer <access_token>)
// @Success 201 {object} requestresponse.CreateDocumentResponse
// @Failure 400 {object} requestresponse.ErrorResponse "Некорректный запрос"
// @Failure 401 {object} requestresponse.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} requestresponse.ErrorResponse "Внутренняя ошибка сервера"
// @Router /api/docs [post]
func (h *DocumentHandler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	claims, err := security.GetClaimsFromContext(ctx)
	if err != nil {
		util.HandleError(w, "пользователь не авторизован", http.StatusUnauthorized)
		return
	}

	var req requestresponse.CreateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		util.HandleError(w, "некорректный JSON", http.StatusBadRequest)
		return
	}

	document, err := h.DispatchService.CreateDocument(ctx, claims.UserUUID, req.Title, req.Content)
	if err != nil {
		handleDispatchError(w, err)
		return
	}

	resp := requestresponse.CreateDocumentResponse{}
	resp.Data.UUID = document.UUID
	resp.Data.Status = document.Status

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(resp)
}

// SendDocument godoc
// @Summary Отправка документа получателям
// @Description Переводит черновик в статус sent, выдаёт каждому получателю уникальный токен доступа.
// @Tags Documents
// @Accept json
// @Produce json
// @Param doc_id path string true "UUID документа"
// @Param body body requestresponse.SendDocumentRequest true "Тело запроса"
// @Param Authorization header string true "Bearer токен" default(Bearer <access_token>)
// @Success 200 {object} requestresponse.SendDocumentResponse
// @Failure 400 {object} requestresponse.ErrorResponse "Некорректный запрос или документ уже отправлен"
// @Failure 401 {object} requestresponse.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} requestresponse.ErrorResponse "Документ не найден"
// @Failure 500 {object} requestresponse.ErrorResponse "Внутренняя ошибка сервера"
// @Router /api/docs/{doc_id}/send [post]
func (h *DocumentHandler) SendDocument(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	claims, err := security.GetClaimsFromContext(ctx)
	if err != nil {
		util.HandleError(w, "пользователь не авторизован", http.StatusUnauthorized)
		return
	}

	documentUUID := chi.URLParam(r, "doc_id")
	if documentUUID == "" {
		util.HandleError(w, "uuid документа не указан", http.StatusBadRequest)
		return
	}

	var req requestresponse.SendDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		util.HandleError(w, "некорректный JSON", http.StatusBadRequest)
		return
	}

	recipients := make([]model.Recipient, 0, len(req.Recipients))
	for _, r := range req.Recipients {
		recipients = append(recipients, model.Recipient{
			Email:        r.Email,
			Name:         r.Name,
			Role:         model.RecipientRole(r.Role),
			SigningOrder: r.SigningOrder,
		})
	}

	sequential := req.SigningOrder == "sequential"

	issued, err := h.DispatchService.SendDocument(ctx, claims.UserUUID, documentUUID, recipients, sequential, req.ExpiresAt, req.Payment)
	if err != nil {
		handleDispatchError(w, err)
		return
	}

	resp := requestresponse.SendDocumentResponse{}
	resp.Data.DocumentUUID = documentUUID
	for _, recipient := range issued {
		resp.Data.Recipients = append(resp.Data.Recipients, requestresponse.RecipientToken{
			Email:       recipient.Email,
			AccessToken: recipient.AccessToken,
		})
	}

	w.WriteHeader(200)
	json.NewEncoder(w).Encode(resp)
}

// GetDocument godoc
// @Summary Документ владельца
// @Description Возвращает документ вместе с получателями и разрешённым платёжным требованием.
// @Tags Documents
// @Produce json
// @Param doc_id path string true "UUID документа"
// @Param Authorization header string true "Bearer токен" default(Bearer <access_token>)
// @Success 200 {object} requestresponse.DocumentDetailsResponse
// @Failure 401 {object} requestresponse.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} requestresponse.ErrorResponse "Документ не найден"
// @Failure 500 {object} requestresponse.ErrorResponse "Внутренняя ошибка сервера"
// @Router /api/docs/{doc_id} [get]
func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	claims, err := security.GetClaimsFromContext(ctx)
	if err != nil {
		util.HandleError(w, "пользователь не авторизован", http.StatusUnauthorized)
		return
	}

	documentUUID := chi.URLParam(r, "doc_id")

	document, recipients, err := h.DispatchService.GetDocument(ctx, claims.UserUUID, documentUUID)
	if err != nil {
		handleDispatchError(w, err)
		return
	}

	payment := service.ResolvePayment(document.Content, document.Settings)

	resp := requestresponse.DocumentDetailsResponse{}
	resp.Data.Document = document
	resp.Data.Recipients = recipients
	resp.Data.Payment = &payment

	w.WriteHeader(200)
	json.NewEncoder(w).Encode(resp)
}

// ListEvents godoc
// @Summary Журнал аудита документа
// @Description Возвращает события документа в хронологическом порядке.
// @Tags Documents
// @Produce json
// @Param doc_id path string true "UUID документа"
// @Param Authorization header string true "Bearer токен" default(Bearer <access_token>)
// @Success 200 {object} requestresponse.EventsResponse
// @Failure 401 {object} requestresponse.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} requestresponse.ErrorResponse "Документ не найден"
// @Failure 500 {object} requestresponse.ErrorResponse "Внутренняя ошибка сервера"
// @Router /api/docs/{doc_id}/events [get]
func (h *DocumentHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	claims, err := security.GetClaimsFromContext(ctx)
	if err != nil {
		util.HandleError(w, "пользователь не авторизован", http.StatusUnauthorized)
		return
	}

	documentUUID := chi.URLParam(r, "doc_id")

	events, err := h.DispatchService.ListEvents(ctx, claims.UserUUID, documentUUID)
	if err != nil {
		handleDispatchError(w, err)
		return
	}

	resp := requestresponse.EventsResponse{}
	resp.Data.Events = events

	w.WriteHeader(200)
	json.NewEncoder(w).Encode(resp)
}

// GetAnchorProof godoc
// @Summary Доказательство якорения документа
// @Description Возвращает хэш якорной транзакции и presigned-ссылку на архивный снимок канонической записи.
// @Tags Documents
// @Produce json
// @Param doc_id path string true "UUID документа"
// @Param Authorization header string true "Bearer токен" default(Bearer <access_token>)
// @Success 200 {object} requestresponse.AnchorProofResponse
// @Failure 401 {object} requestresponse.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} requestresponse.ErrorResponse "Документ не найден"
// @Failure 500 {object} requestresponse.ErrorResponse "Внутренняя ошибка сервера"
// @Router /api/docs/{doc_id}/anchor [get]
func (h *DocumentHandler) GetAnchorProof(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	claims, err := security.GetClaimsFromContext(ctx)
	if err != nil {
		util.HandleError(w, "пользователь не авторизован", http.StatusUnauthorized)
		return
	}

	documentUUID := chi.URLParam(r, "doc_id")

	document, snapshotURL, err := h.DispatchService.GetAnchorProof(ctx, claims.UserUUID, documentUUID)
	if err != nil {
		handleDispatchError(w, err)
		return
	}

	resp := requestresponse.AnchorProofResponse{}
	if document.BlockchainTxHash != nil {
		resp.Data.TxHash = *document.BlockchainTxHash
	}
	resp.Data.VerifiedAt = document.BlockchainVerifiedAt
	resp.Data.SnapshotURL = snapshotURL

	w.WriteHeader(200)
	json.NewEncoder(w).Encode(resp)
}
