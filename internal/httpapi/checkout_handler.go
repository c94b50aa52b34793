package httpapi

import (
	"net/http"

	"bloomcart-be/internal/checkout"

	"github.com/gin-gonic/gin"
)

type startCheckoutRequest struct {
	Lines []checkout.CartLine `json:"lines"`
}

type deliveryRequest struct {
	Customer checkout.CustomerInfo `json:"customer"`
	Mode     checkout.DeliveryMode `json:"mode"`
}

type paymentRequest struct {
	Method string `json:"method"`
}

func (h *handler) startCheckout(c *gin.Context) {
	var req startCheckoutRequest
	if !bindJSON(c, &req) {
		return
	}

	session, err := h.deps.Sessions.Start(c.Request.Context(), checkout.CartSnapshot{Lines: req.Lines})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

func (h *handler) getCheckout(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	session, err := h.flow.Refresh(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *handler) submitDelivery(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	var req deliveryRequest
	if !bindJSON(c, &req) {
		return
	}

	session, err := h.deps.Sessions.SubmitDelivery(c.Request.Context(), id, req.Customer, req.Mode)
	if err != nil {
		writeSessionError(c, session, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *handler) submitAddress(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	var req checkout.DeliveryInfo
	if !bindJSON(c, &req) {
		return
	}

	session, err := h.deps.Sessions.SubmitAddress(c.Request.Context(), id, req)
	if err != nil {
		writeSessionError(c, session, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *handler) back(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	session, err := h.deps.Sessions.Back(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *handler) startPayment(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	var req paymentRequest
	if !bindJSON(c, &req) {
		return
	}

	p, err := checkout.ParsePayment(req.Method)
	if err != nil {
		writeError(c, err)
		return
	}

	started, err := h.flow.StartPayment(c.Request.Context(), id, p)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, started)
}

func (h *handler) discardCheckout(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	if err := h.flow.Discard(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
