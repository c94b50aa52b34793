package wallet

import (
	"testing"

	"bloomcart-be/internal/checkout"
	"bloomcart-be/internal/order"
	"bloomcart-be/internal/storefront"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestGetInstructions(t *testing.T) {
	t.Run("DefaultsPerWallet", func(t *testing.T) {
		steps := GetInstructions(checkout.MethodWalletA, nil)
		assert.Equal(t, InstructionMap[checkout.MethodWalletA], steps)
	})

	t.Run("ChannelOverrides", func(t *testing.T) {
		channel := &storefront.PaymentChannel{Instructions: []string{"Transfer {{amount}}"}}
		assert.Equal(t, []string{"Transfer {{amount}}"}, GetInstructions(checkout.MethodWalletB, channel))
	})

	t.Run("UnknownMethod", func(t *testing.T) {
		assert.Len(t, GetInstructions(checkout.MethodCard, nil), 1)
	})
}

func TestInjectVariables(t *testing.T) {
	steps := []string{"Transfer {{amount}} for {{order_number}}", "No placeholder"}
	got := InjectVariables(steps, InstructionVars{"amount": "PEN 80.00", "order_number": "ORD-000002"})

	assert.Equal(t, []string{"Transfer PEN 80.00 for ORD-000002", "No placeholder"}, got)
	assert.Equal(t, "Transfer {{amount}} for {{order_number}}", steps[0])
}

func TestOrderInstructions(t *testing.T) {
	o := &order.Order{
		OrderNumber: "ORD-000002",
		Method:      checkout.MethodWalletA,
		Total:       decimal.RequireFromString("80"),
		Currency:    "PEN",
	}
	channel := &storefront.PaymentChannel{AccountName: "Bloomcart SAC", AccountNumber: "987654321"}

	steps := OrderInstructions(o, channel)
	assert.Contains(t, steps, "Ingresa el número 987654321 a nombre de Bloomcart SAC")
	assert.Contains(t, steps, "Transfiere exactamente PEN 80.00")
	assert.Contains(t, steps, "Escribe ORD-000002 en el mensaje de la transferencia")
}
