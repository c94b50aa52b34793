package payment

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"bloomcart-be/internal/logger"

	"go.uber.org/zap"
)

const (
	pathIntents   = "/v1/payment_intents"
	callbackToken = "x-callback-token"
)

type cardGateway struct {
	baseURL       string
	apiKey        string
	callbackToken string
	httpClient    *http.Client
}

// ----------------- Constructor -----------------

func NewCardGateway(baseURL, apiKey, callbackToken string) Gateway {
	if apiKey == "" {
		logger.L().Warn("card gateway API key is empty")
	}
	if callbackToken == "" {
		logger.L().Warn("card gateway callback token is empty, webhook signatures are not checked")
	}

	return &cardGateway{
		baseURL:       strings.TrimRight(baseURL, "/"),
		apiKey:        apiKey,
		callbackToken: callbackToken,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type intentPayload struct {
	Amount    string   `json:"amount"`
	Currency  string   `json:"currency"`
	Reference string   `json:"reference"`
	Customer  Customer `json:"customer"`
	ExpiresAt string   `json:"expires_at,omitempty"`
}

// ----------------- CreateIntent -----------------

func (g *cardGateway) CreateIntent(ctx context.Context, in IntentRequest) (*Intent, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "gateway"),
		zap.String("method", "CreateIntent"),
		zap.String("reference", in.Reference),
		zap.String("amount", in.Amount.StringFixed(2)),
		zap.String("currency", in.Currency),
	)

	body := intentPayload{
		Amount:    in.Amount.StringFixed(2),
		Currency:  in.Currency,
		Reference: in.Reference,
		Customer:  in.Customer,
	}
	if !in.ExpiresAt.IsZero() {
		body.ExpiresAt = in.ExpiresAt.UTC().Format(time.RFC3339)
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		log.Error("failed to marshal intent request", zap.Error(err))
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+pathIntents, bytes.NewReader(jsonBody))
	if err != nil {
		log.Error("failed creating request", zap.Error(err))
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if in.IdempotencyKey != "" {
		req.Header.Set("Idempotency-Key", in.IdempotencyKey)
	}

	log.Info("sending intent request to card gateway")

	var intent Intent
	if err := g.do(req, &intent, http.StatusOK, http.StatusCreated); err != nil {
		log.Error("card gateway rejected intent", zap.Error(err))
		return nil, err
	}

	log.Info("payment intent created",
		zap.String("intent_id", intent.ID),
		zap.String("status", string(intent.Status)),
	)
	return &intent, nil
}

// ----------------- GetIntent -----------------

func (g *cardGateway) GetIntent(ctx context.Context, intentID string) (*Intent, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "gateway"),
		zap.String("method", "GetIntent"),
		zap.String("intent_id", intentID),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.intentURL(intentID), nil)
	if err != nil {
		log.Error("failed building request", zap.Error(err))
		return nil, err
	}

	var intent Intent
	if err := g.do(req, &intent, http.StatusOK); err != nil {
		log.Error("failed to read payment intent", zap.Error(err))
		return nil, err
	}
	return &intent, nil
}

// ----------------- CancelIntent -----------------

func (g *cardGateway) CancelIntent(ctx context.Context, intentID string) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "gateway"),
		zap.String("method", "CancelIntent"),
		zap.String("intent_id", intentID),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.intentURL(intentID)+"/cancel", nil)
	if err != nil {
		log.Error("failed creating request", zap.Error(err))
		return err
	}

	if err := g.do(req, nil, http.StatusOK, http.StatusNoContent); err != nil {
		log.Error("failed to cancel payment intent", zap.Error(err))
		return err
	}

	log.Info("payment intent cancelled")
	return nil
}

// ----------------- Verify Signature -----------------

func (g *cardGateway) VerifySignature(r *http.Request) error {
	if g.callbackToken == "" {
		return nil // skip in dev
	}

	sig := r.Header.Get(callbackToken)
	if subtle.ConstantTimeCompare([]byte(sig), []byte(g.callbackToken)) != 1 {
		return ErrInvalidSignature
	}
	return nil
}

func (g *cardGateway) intentURL(intentID string) string {
	return g.baseURL + pathIntents + "/" + url.PathEscape(intentID)
}

func (g *cardGateway) do(req *http.Request, out any, okStatus ...int) error {
	req.SetBasicAuth(g.apiKey, "")
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("card gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read card gateway response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return ErrIntentNotFound
	}

	ok := false
	for _, s := range okStatus {
		if resp.StatusCode == s {
			ok = true
			break
		}
	}
	if !ok {
		return fmt.Errorf("card gateway error (status %d): %s", resp.StatusCode, string(bodyBytes))
	}

	if out == nil || len(bodyBytes) == 0 {
		return nil
	}
	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return fmt.Errorf("failed decoding card gateway response: %w", err)
	}
	return nil
}
