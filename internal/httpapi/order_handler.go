package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"bloomcart-be/internal/apperr"
	"bloomcart-be/internal/auth"
	"bloomcart-be/internal/checkout"
	"bloomcart-be/internal/order"
	"bloomcart-be/internal/wallet"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// multipartOverhead is what a proof request may carry beyond the file itself.
const multipartOverhead = 1 << 20

type orderView struct {
	OrderNumber       string                  `json:"orderNumber"`
	Method            checkout.Method         `json:"method"`
	Total             decimal.Decimal         `json:"total"`
	Currency          string                  `json:"currency"`
	PaymentStatus     order.PaymentStatus     `json:"paymentStatus"`
	FulfillmentStatus order.FulfillmentStatus `json:"fulfillmentStatus"`
	CreatedAt         time.Time               `json:"createdAt"`
}

func newOrderView(o *order.Order) *orderView {
	return &orderView{
		OrderNumber:       o.OrderNumber,
		Method:            o.Method,
		Total:             o.Total,
		Currency:          o.Currency,
		PaymentStatus:     o.PaymentStatus,
		FulfillmentStatus: o.FulfillmentStatus,
		CreatedAt:         o.CreatedAt,
	}
}

type proofResponse struct {
	OrderNumber string    `json:"orderNumber"`
	URL         string    `json:"url"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

type reviewRequest struct {
	Decision string `json:"decision" form:"decision"`
}

func (h *handler) uploadProof(c *gin.Context) {
	number, ok := orderNumber(c)
	if !ok {
		return
	}
	maxBytes := h.deps.MaxProofBytes

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 2*maxBytes+multipartOverhead)

	upload, err := readUpload(c, maxBytes)
	if err != nil {
		writeError(c, err)
		return
	}

	proof, err := h.deps.Wallet.AttachProof(c.Request.Context(), number, upload)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, proofResponse{
		OrderNumber: proof.OrderNumber,
		URL:         proof.URL,
		ContentType: proof.ContentType,
		Size:        proof.Size,
		UploadedAt:  proof.UploadedAt,
	})
}

// readUpload reads the "file" part, keeping at most maxBytes+1 bytes so the
// guard can still tell an oversized file apart.
func readUpload(c *gin.Context, maxBytes int64) (wallet.Upload, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		switch {
		case errors.As(err, &tooBig):
			return wallet.Upload{}, apperr.Upload(apperr.UploadTooLarge, "proof exceeds the size limit")
		case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
			return wallet.Upload{}, apperr.Upload(apperr.UploadMissing, "file is required")
		}
		return wallet.Upload{}, apperr.Validation("file", "malformed multipart body")
	}

	f, err := fh.Open()
	if err != nil {
		return wallet.Upload{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		return wallet.Upload{}, err
	}
	return wallet.Upload{Filename: fh.Filename, Data: data}, nil
}

func (h *handler) notifyStaff(c *gin.Context) {
	number, ok := orderNumber(c)
	if !ok {
		return
	}

	dispatch, err := h.deps.Wallet.NotifyAndFinalize(c.Request.Context(), number)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dispatch)
}

func (h *handler) reviewPage(c *gin.Context) {
	token := auth.ExtractReviewToken(c.Request)
	if token == "" {
		writeError(c, apperr.Validation("token", "is required"))
		return
	}

	o, proof, err := h.deps.Wallet.Review(c.Request.Context(), token)
	if err != nil {
		writeError(c, err)
		return
	}

	c.HTML(http.StatusOK, "review", newReviewPage(o, proof, token))
}

func (h *handler) reviewDecision(c *gin.Context) {
	token := auth.ExtractReviewToken(c.Request)
	if token == "" {
		writeError(c, apperr.Validation("token", "is required"))
		return
	}

	var req reviewRequest
	if err := c.ShouldBind(&req); err != nil {
		writeError(c, apperr.Validation("body", "malformed request body"))
		return
	}

	var approved bool
	switch strings.ToLower(strings.TrimSpace(req.Decision)) {
	case "approve":
		approved = true
	case "reject":
	default:
		writeError(c, apperr.Validation("decision", "must be one of: approve reject"))
		return
	}

	o, err := h.deps.Wallet.VerifyPayment(c.Request.Context(), token, approved)
	if err != nil {
		writeError(c, err)
		return
	}

	if c.ContentType() == gin.MIMEPOSTForm {
		c.HTML(http.StatusOK, "reviewed", newReviewPage(o, nil, ""))
		return
	}
	c.JSON(http.StatusOK, newOrderView(o))
}
