package requestresponse

import (
	"signing-web-server/internal/model"
	"time"
)

// SigningDocument : представление документа для участника подписания
type SigningDocument struct {
	UUID     string                 `json:"id" example:"qwdj1q4o34u34ih759ou1"`
	Title    string                 `json:"title" example:"Договор оказания услуг"`
	Content  model.DocumentContent  `json:"content"`
	Status   model.DocumentStatus   `json:"status" example:"sent"`
	Settings model.DocumentSettings `json:"settings"`
}

// SigningRecipient : представление получателя для канала подписания
type SigningRecipient struct {
	UUID         string                `json:"id"`
	Email        string                `json:"email" example:"signer@example.com"`
	Name         string                `json:"name" example:"Иван Иванов"`
	Role         model.RecipientRole   `json:"role" example:"signer"`
	Status       model.RecipientStatus `json:"status" example:"viewed"`
	SigningOrder int                   `json:"signing_order" example:"1"`
}

// SigningSessionResponse : ответ GET /sign/{token}
type SigningSessionResponse struct {
	Document        SigningDocument  `json:"document"`
	Recipient       SigningRecipient `json:"recipient"`
	RequiresPayment bool             `json:"requiresPayment" example:"false"`
	PaymentAmount   float64          `json:"paymentAmount,omitempty" example:"250"`
	PaymentCurrency string           `json:"paymentCurrency,omitempty" example:"USD"`
	PaymentTiming   string           `json:"paymentTiming,omitempty" example:"before_signing"`
}

// SignActionRequest : тело POST /sign/{token}; либо decline, либо подпись
type SignActionRequest struct {
	Action         string                `json:"action,omitempty" example:"decline"`
	Reason         string                `json:"reason,omitempty" example:"не согласен с условиями"`
	SignatureData  *model.SignatureData  `json:"signatureData,omitempty"`
	UpdatedContent model.DocumentContent `json:"updatedContent,omitempty"`
}

// SignResponse : успешный ответ на принятую подпись
type SignResponse struct {
	Success      bool      `json:"success" example:"true"`
	DocumentUUID string    `json:"documentId"`
	AllSigned    bool      `json:"allSigned" example:"false"`
	SignedAt     time.Time `json:"signedAt"`
}

// DeclineResponse : успешный ответ на отклонение
type DeclineResponse struct {
	Success      bool   `json:"success" example:"true"`
	DocumentUUID string `json:"documentId"`
}

// PricingSelectionRequest : обновление выбранных позиций в pricing-table блоке
type PricingSelectionRequest struct {
	PricingBlockID  string   `json:"pricingBlockId" example:"block-3"`
	SelectedItemIDs []string `json:"selectedItemIds"`
}

// PricingSelectionResponse : ответ на обновление выбора
type PricingSelectionResponse struct {
	Success      bool   `json:"success" example:"true"`
	DocumentUUID string `json:"documentId"`
}

// VerifyHashRequest : запрос проверки якоря по хэшу транзакции
type VerifyHashRequest struct {
	TxHash       string `json:"txHash" example:"0xabc..."`
	DocumentHash string `json:"documentHash" example:"9f86d081..."`
	Network      string `json:"network,omitempty" example:"sepolia"`
}

// VerifyHashResponse : результат проверки якоря
type VerifyHashResponse struct {
	Verified       bool           `json:"verified" example:"true"`
	Envelope       map[string]any `json:"envelope,omitempty"`
	BlockNumber    uint64         `json:"blockNumber,omitempty" example:"19000000"`
	BlockTimestamp *time.Time     `json:"blockTimestamp,omitempty"`
}
