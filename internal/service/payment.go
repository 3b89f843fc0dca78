package service

import (
	"signing-web-server/internal/model"
)

// ResolvePayment : сводит два независимых источника платёжной конфигурации
// в один ответ. Сначала требование засевается из payment-блока в контенте,
// затем, если настройки отправки включены (enabled=true), все четыре поля
// перекрываются значениями из настроек — настройки всегда побеждают.
// Чистая функция, вызывается при каждой выдаче документа получателю.
func ResolvePayment(content model.DocumentContent, settings model.DocumentSettings) model.PaymentRequirement {
	requirement := model.PaymentRequirement{}

	for _, block := range content {
		if block.Type != model.BlockTypePayment {
			continue
		}

		if required, ok := block.Content["required"].(bool); ok {
			requirement.Required = required
		}
		if amount, ok := block.Content["amount"].(float64); ok {
			requirement.Amount = amount
		}
		if currency, ok := block.Content["currency"].(string); ok {
			requirement.Currency = currency
		}
		if timing, ok := block.Content["timing"].(string); ok {
			requirement.Timing = timing
		}
		break
	}

	if settings.Payment != nil && settings.Payment.Enabled {
		requirement.Required = settings.Payment.Required
		requirement.Amount = settings.Payment.Amount
		requirement.Currency = settings.Payment.Currency
		requirement.Timing = settings.Payment.Timing
	}

	return requirement
}
