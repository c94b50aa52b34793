package httpapi

import (
	"html/template"

	"bloomcart-be/internal/order"
)

// review is the staff page behind the signed link; reviewed answers the form post.
var reviewTemplates = template.Must(template.New("pages").Parse(`{{define "review"}}<!DOCTYPE html>
<html>
<body style="font-family: sans-serif">
  <h2>Pedido {{.OrderNumber}}</h2>
  <p>{{.CustomerName}} ({{.Phone}}): <strong>{{.Currency}} {{.Total}}</strong> con {{.Method}}</p>
  <p>Estado del pago: {{.PaymentStatus}}</p>
  {{if .ProofURL}}<p><a href="{{.ProofURL}}"><img src="{{.ProofURL}}" alt="comprobante" style="max-width: 480px"></a></p>{{else}}<p>Sin comprobante.</p>{{end}}
  {{if .Pending}}
  <form method="post" action="/api/orders/review?token={{.Token}}">
    <button name="decision" value="approve">Aprobar</button>
    <button name="decision" value="reject">Rechazar</button>
  </form>
  {{end}}
</body>
</html>{{end}}

{{define "reviewed"}}<!DOCTYPE html>
<html>
<body style="font-family: sans-serif">
  <h2>Pedido {{.OrderNumber}}</h2>
  <p>Pago registrado como: <strong>{{.PaymentStatus}}</strong></p>
</body>
</html>{{end}}`))

type reviewPage struct {
	OrderNumber   string
	CustomerName  string
	Phone         string
	Currency      string
	Total         string
	Method        string
	PaymentStatus string
	ProofURL      string
	Pending       bool
	Token         string
}

func newReviewPage(o *order.Order, proof *order.PaymentProof, token string) reviewPage {
	page := reviewPage{
		OrderNumber:   o.OrderNumber,
		CustomerName:  o.Snapshot.Customer.FullName,
		Phone:         o.Snapshot.Customer.Phone,
		Currency:      o.Currency,
		Total:         o.Total.StringFixed(2),
		Method:        string(o.Method),
		PaymentStatus: string(o.PaymentStatus),
		Pending:       o.PaymentStatus == order.PaymentPending,
		Token:         token,
	}
	if proof != nil {
		page.ProofURL = proof.URL
	}
	return page
}
