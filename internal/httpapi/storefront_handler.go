package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"bloomcart-be/internal/apperr"
	"bloomcart-be/internal/storefront"
	"bloomcart-be/internal/wallet"

	"github.com/gin-gonic/gin"
)

const maxQRSize = 1024

func storefrontError(err error) error {
	switch {
	case errors.Is(err, storefront.ErrChannelNotFound):
		return apperr.NotFound(err.Error())
	case errors.Is(err, storefront.ErrDistrictNotFound):
		return apperr.NotFound(err.Error())
	}
	return apperr.Gateway("store information unavailable", err)
}

func (h *handler) listDistricts(c *gin.Context) {
	districts, err := h.deps.Storefront.Districts(c.Request.Context())
	if err != nil {
		writeError(c, storefrontError(err))
		return
	}
	c.JSON(http.StatusOK, districts)
}

func (h *handler) storeInfo(c *gin.Context) {
	info, err := h.deps.Storefront.StoreInfo(c.Request.Context())
	if err != nil {
		writeError(c, storefrontError(err))
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *handler) listPaymentChannels(c *gin.Context) {
	channels, err := h.deps.Storefront.PaymentChannels(c.Request.Context())
	if err != nil {
		writeError(c, storefrontError(err))
		return
	}
	c.JSON(http.StatusOK, channels)
}

func (h *handler) paymentChannelQR(c *gin.Context) {
	size := wallet.DefaultQRSize
	if raw := c.Query("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 64 || n > maxQRSize {
			writeError(c, apperr.Validation("size", "must be between 64 and 1024"))
			return
		}
		size = n
	}

	channel, err := h.deps.Storefront.PaymentChannel(c.Request.Context(), c.Param("method"))
	if err != nil {
		writeError(c, storefrontError(err))
		return
	}

	png, err := wallet.ChannelQR(channel, size)
	if errors.Is(err, wallet.ErrNoAccountNumber) {
		writeError(c, apperr.NotFound(err.Error()))
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}

	c.Header("Cache-Control", "public, max-age=300")
	c.Data(http.StatusOK, "image/png", png)
}
