package service_test

import (
	"signing-web-server/internal/model"
	"signing-web-server/internal/service"
	"testing"

	"github.com/stretchr/testify/assert"
)

func paymentBlockContent() model.DocumentContent {
	return model.DocumentContent{
		{
			ID:   "pay-1",
			Type: model.BlockTypePayment,
			Content: map[string]any{
				"required": true,
				"amount":   float64(100),
				"currency": "USD",
				"timing":   "before_signing",
			},
		},
	}
}

func TestResolvePayment_FromContentBlock(t *testing.T) {
	requirement := service.ResolvePayment(paymentBlockContent(), model.DocumentSettings{})

	assert.True(t, requirement.Required)
	assert.Equal(t, float64(100), requirement.Amount)
	assert.Equal(t, "USD", requirement.Currency)
	assert.Equal(t, "before_signing", requirement.Timing)
}

func TestResolvePayment_SettingsOverrideBlock(t *testing.T) {
	settings := model.DocumentSettings{
		Payment: &model.PaymentSettings{
			Enabled:  true,
			Required: false,
			Amount:   250,
			Currency: "EUR",
			Timing:   "after_signing",
		},
	}

	requirement := service.ResolvePayment(paymentBlockContent(), settings)

	// настройки отправки перекрывают все четыре поля блока
	assert.False(t, requirement.Required)
	assert.Equal(t, float64(250), requirement.Amount)
	assert.Equal(t, "EUR", requirement.Currency)
	assert.Equal(t, "after_signing", requirement.Timing)
}

func TestResolvePayment_DisabledSettingsKeepBlock(t *testing.T) {
	settings := model.DocumentSettings{
		Payment: &model.PaymentSettings{
			Enabled: false,
			Amount:  999,
		},
	}

	requirement := service.ResolvePayment(paymentBlockContent(), settings)

	assert.True(t, requirement.Required)
	assert.Equal(t, float64(100), requirement.Amount)
}

func TestResolvePayment_NoPaymentAnywhere(t *testing.T) {
	content := model.DocumentContent{
		{ID: "b1", Type: model.BlockTypeText, Content: map[string]any{"text": "привет"}},
	}

	requirement := service.ResolvePayment(content, model.DocumentSettings{})

	assert.False(t, requirement.Required)
	assert.Zero(t, requirement.Amount)
}

func TestResolvePayment_FirstPaymentBlockWins(t *testing.T) {
	content := append(paymentBlockContent(), model.Block{
		ID:   "pay-2",
		Type: model.BlockTypePayment,
		Content: map[string]any{
			"required": false,
			"amount":   float64(1),
		},
	})

	requirement := service.ResolvePayment(content, model.DocumentSettings{})

	assert.Equal(t, float64(100), requirement.Amount)
}
