package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"bloomcart-be/internal/apperr"
	"bloomcart-be/internal/logger"
	"bloomcart-be/internal/payment"
	"bloomcart-be/internal/utils"

	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// Payload is the callback body the card processor sends.
type Payload struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		IntentID string `json:"intent_id"`
		Status   string `json:"status"`
	} `json:"data"`
}

type Confirmer interface {
	ConfirmCallback(ctx context.Context, intentID string) (*payment.ConfirmResult, error)
}

type SignatureVerifier interface {
	VerifySignature(r *http.Request) error
}

type Handler struct {
	confirmer Confirmer
	verifier  SignatureVerifier
	repo      payment.Repository
}

func NewWebhookHandler(confirmer Confirmer, verifier SignatureVerifier, repo payment.Repository) *Handler {
	return &Handler{
		confirmer: confirmer,
		verifier:  verifier,
		repo:      repo,
	}
}

// PaymentWebhookHandler runs headless: nothing here depends on the customer
// still being on the checkout page.
func (h *Handler) PaymentWebhookHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "webhook"),
		zap.String("method", "PaymentWebhookHandler"),
	)

	if err := h.verifier.VerifySignature(r); err != nil {
		log.Warn("rejected callback with invalid token")
		utils.WriteJSONError(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		utils.WriteJSONError(w, "failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		utils.WriteJSONError(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}
	if payload.ID == "" || payload.Data.IntentID == "" {
		utils.WriteJSONError(w, "missing event or intent id", http.StatusBadRequest)
		return
	}

	log = log.With(
		zap.String("event_id", payload.ID),
		zap.String("event_type", payload.Type),
		zap.String("intent_id", payload.Data.IntentID),
	)

	webhookID, dup, err := h.repo.SavePaymentWebhook(ctx, payment.WebhookEvent{
		Provider:       payment.ProviderCard,
		EventID:        payload.ID,
		EventType:      payload.Type,
		IntentID:       payload.Data.IntentID,
		Payload:        body,
		SignatureValid: true,
	})
	if err != nil {
		log.Error("failed to record callback", zap.Error(err))
		utils.WriteJSONError(w, "failed to record callback", http.StatusInternalServerError)
		return
	}
	if dup {
		log.Info("duplicate callback ignored")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "duplicate")
		return
	}

	result, err := h.confirmer.ConfirmCallback(ctx, payload.Data.IntentID)
	if err != nil {
		if markErr := h.repo.MarkWebhookFailed(ctx, webhookID, err.Error()); markErr != nil {
			log.Error("failed to mark callback failed", zap.Error(markErr))
		}

		switch apperr.KindOf(err) {
		case apperr.KindConsistency, apperr.KindExpired, apperr.KindNotFound, apperr.KindConflict:
			// terminal for this intent; redelivery would not change anything
			log.Error("callback could not be applied", zap.Error(err))
			w.WriteHeader(http.StatusOK)
			_, _ = io.WriteString(w, "ignored")
		default:
			log.Error("callback processing failed", zap.Error(err))
			utils.WriteJSONError(w, "failed to process callback", http.StatusInternalServerError)
		}
		return
	}

	if err := h.repo.MarkWebhookProcessed(ctx, webhookID); err != nil {
		log.Error("failed to mark callback processed", zap.Error(err))
	}

	log.Info("callback processed",
		zap.String("outcome", string(result.Outcome)),
		zap.String("order_number", result.OrderNumber),
	)
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "ok")
}
