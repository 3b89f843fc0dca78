package requestresponse

import (
	"signing-web-server/internal/model"
	"time"
)

// CreateDocumentRequest : создание черновика документа
type CreateDocumentRequest struct {
	Title   string                `json:"title" example:"Коммерческое предложение"`
	Content model.DocumentContent `json:"content"`
}

// CreateDocumentResponse : ответ при создании черновика
type CreateDocumentResponse struct {
	Data struct {
		UUID   string               `json:"uuid"`
		Status model.DocumentStatus `json:"status" example:"draft"`
	} `json:"data"`
}

// DispatchRecipient : получатель в запросе на отправку
type DispatchRecipient struct {
	Email        string `json:"email" example:"signer@example.com"`
	Name         string `json:"name" example:"Иван Иванов"`
	Role         string `json:"role" example:"signer"`
	SigningOrder int    `json:"signingOrder,omitempty" example:"1"`
}

// SendDocumentRequest : тело запроса на отправку документа получателям
type SendDocumentRequest struct {
	Recipients []DispatchRecipient `json:"recipients"`
	// SigningOrder — sequential или parallel
	SigningOrder string                 `json:"signingOrder" example:"parallel"`
	ExpiresAt    *time.Time             `json:"expiresAt,omitempty"`
	Payment      *model.PaymentSettings `json:"payment,omitempty"`
}

// RecipientToken : выданный токен доступа для одного получателя
type RecipientToken struct {
	Email       string `json:"email"`
	AccessToken string `json:"access_token"`
}

// SendDocumentResponse : ответ на отправку документа
type SendDocumentResponse struct {
	Data struct {
		DocumentUUID string           `json:"document_uuid"`
		Recipients   []RecipientToken `json:"recipients"`
	} `json:"data"`
}

// DocumentDetailsResponse : документ для владельца вместе с получателями
type DocumentDetailsResponse struct {
	Data struct {
		Document   *model.Document           `json:"document"`
		Recipients []model.Recipient         `json:"recipients"`
		Payment    *model.PaymentRequirement `json:"payment,omitempty"`
	} `json:"data"`
}

// EventsResponse : журнал аудита документа
type EventsResponse struct {
	Data struct {
		Events []model.DocumentEvent `json:"events"`
	} `json:"data"`
}

// AnchorProofResponse : доказательство якорения документа
type AnchorProofResponse struct {
	Data struct {
		TxHash      string     `json:"tx_hash,omitempty"`
		VerifiedAt  *time.Time `json:"verified_at,omitempty"`
		SnapshotURL string     `json:"snapshot_url,omitempty"`
	} `json:"data"`
}

// ResponseMessage : общий ответ для подтверждения действий
type ResponseMessage struct {
	Response map[string]interface{} `json:"response,omitempty"`
	Error    *ErrorResponse         `json:"error,omitempty"`
	Data     interface{}            `json:"data,omitempty"`
}
