package wallet

import (
	"strings"

	"bloomcart-be/internal/checkout"
	"bloomcart-be/internal/order"
	"bloomcart-be/internal/storefront"
)

var InstructionMap = map[checkout.Method][]string{
	checkout.MethodWalletA: {
		"Abre tu aplicación de billetera y elige Yapear o Transferir",
		"Ingresa el número {{account_number}} a nombre de {{account_name}}",
		"Transfiere exactamente {{amount}}",
		"Escribe {{order_number}} en el mensaje de la transferencia",
		"Toma una captura del comprobante y súbela en esta página",
	},

	checkout.MethodWalletB: {
		"Abre tu aplicación de billetera y elige Pagar o Transferir",
		"Escanea el código QR o ingresa el número {{account_number}}",
		"Verifica que el destinatario sea {{account_name}} y el monto {{amount}}",
		"Agrega {{order_number}} como referencia",
		"Sube la captura del comprobante en esta página",
	},
}

// GetInstructions returns the channel's own steps when the store configured
// them, otherwise the defaults for the wallet.
func GetInstructions(method checkout.Method, channel *storefront.PaymentChannel) []string {
	if channel != nil && len(channel.Instructions) > 0 {
		return channel.Instructions
	}
	if steps, ok := InstructionMap[method]; ok {
		return steps
	}

	return []string{
		"Sigue las instrucciones de pago que se muestran en esta página",
	}
}

type InstructionVars map[string]string

func InjectVariables(
	steps []string,
	vars InstructionVars,
) []string {
	result := make([]string, 0, len(steps))

	for _, step := range steps {
		updated := step
		for key, value := range vars {
			updated = strings.ReplaceAll(
				updated,
				"{{"+key+"}}",
				value,
			)
		}
		result = append(result, updated)
	}

	return result
}

// OrderInstructions fills the transfer steps for a placed wallet order.
func OrderInstructions(o *order.Order, channel *storefront.PaymentChannel) []string {
	vars := InstructionVars{
		"amount":       o.Currency + " " + o.Total.StringFixed(2),
		"order_number": o.OrderNumber,
	}
	if channel != nil {
		vars["account_number"] = channel.AccountNumber
		vars["account_name"] = channel.AccountName
	}
	return InjectVariables(GetInstructions(o.Method, channel), vars)
}
