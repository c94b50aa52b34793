package notify

import (
	"bytes"
	"html/template"
)

var walletProofTmpl = template.Must(template.New("wallet_proof").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif">
  <h2>Pedido {{.OrderNumber}}: comprobante recibido</h2>
  <p>{{.CustomerName}} ({{.Phone}}) pagó <strong>{{.Currency}} {{.Total}}</strong> con {{.Method}}.</p>
  {{if .DeliveryDate}}<p>Entrega: {{.DeliveryDate}} {{.TimeSlot}}</p>{{end}}
  <p><a href="{{.ProofURL}}">Ver comprobante</a></p>
  <p><a href="{{.ReviewURL}}">Aprobar o rechazar el pago</a></p>
</body>
</html>`))

type walletProofData struct {
	OrderNumber  string
	CustomerName string
	Phone        string
	Currency     string
	Total        string
	Method       string
	DeliveryDate string
	TimeSlot     string
	ProofURL     string
	ReviewURL    string
}

func renderWalletProof(data walletProofData) (string, error) {
	var body bytes.Buffer
	if err := walletProofTmpl.Execute(&body, data); err != nil {
		return "", err
	}
	return body.String(), nil
}
