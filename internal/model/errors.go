package model

import "errors"

// Ошибки публичного канала подписания. Хэндлеры сопоставляют их
// со стабильными кодами ответа через errors.Is, UI различает
// "ссылка недействительна", "уже подписано" и "ожидание очереди".
var (
	// ErrInvalidLink — неизвестный или искажённый токен; причины не различаются,
	// чтобы не давать стороннего канала информации
	ErrInvalidLink = errors.New("ссылка недействительна")

	ErrDocumentExpired = errors.New("срок действия документа истёк")

	ErrNotYetSent = errors.New("документ ещё не отправлен")

	// ErrUnauthorized — роль получателя не допускает это действие
	ErrUnauthorized = errors.New("действие недоступно для этой роли")

	ErrWaitingOnPriorSigner = errors.New("ожидается подпись предыдущего участника")

	ErrAlreadySigned   = errors.New("подпись уже поставлена")
	ErrAlreadyDeclined = errors.New("документ уже отклонён")

	ErrValidation = errors.New("некорректный запрос")
)

// Стабильные строковые коды ошибок для ответов API
const (
	CodeInvalidLink          = "invalid_link"
	CodeDocumentExpired      = "document_expired"
	CodeNotYetSent           = "not_yet_sent"
	CodeUnauthorized         = "unauthorized"
	CodeWaitingOnPriorSigner = "waiting_on_prior_signer"
	CodeAlreadySigned        = "already_signed"
	CodeAlreadyDeclined      = "already_declined"
	CodeValidationError      = "validation_error"
	CodeInternalError        = "internal_error"
)
