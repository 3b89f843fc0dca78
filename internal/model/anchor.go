package model

import "time"

// AnchorEnvelope : полезная нагрузка якорной транзакции;
// кодируется в base64 и кладётся в data-поле транзакции
type AnchorEnvelope struct {
	Type      string `json:"type"`
	Note      string `json:"note"`
	Hash      string `json:"hash"`
	Timestamp string `json:"timestamp"`
}

const AnchorEnvelopeType = "document_verification"

// VerificationResult : итог проверки якоря по хэшу транзакции
type VerificationResult struct {
	Verified       bool            `json:"verified"`
	Envelope       *AnchorEnvelope `json:"envelope,omitempty"`
	BlockNumber    uint64          `json:"block_number,omitempty"`
	BlockTimestamp time.Time       `json:"block_timestamp,omitempty"`
}
