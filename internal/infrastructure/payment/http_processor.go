package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/zenbilling/backend/internal/domain/billing"
)

const chargePath = "/v1/charges"

type chargeRequest struct {
	PaymentMethodToken string `json:"payment_method_token"`
	Amount             int64  `json:"amount"`
	Currency           string `json:"currency"`
}

type chargeResponse struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	FailureReason string `json:"failure_reason,omitempty"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

var _ billing.PaymentProcessor = (*HTTPProcessor)(nil)

// HTTPProcessor charges cards through the hosted processor API.
type HTTPProcessor struct {
	config     *HTTPProcessorConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPProcessor creates a processor client from the given configuration
func NewHTTPProcessor(config *HTTPProcessorConfig, logger *zap.Logger) (*HTTPProcessor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &HTTPProcessor{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: logger,
	}, nil
}

// Charge submits a charge attempt. A declined card comes back as an
// unsuccessful ChargeResult with no error; transport and server
// failures come back as errors for the caller to map.
func (p *HTTPProcessor) Charge(ctx context.Context, paymentMethodToken string, amount int64, currency string) (billing.ChargeResult, error) {
	body, err := json.Marshal(chargeRequest{
		PaymentMethodToken: paymentMethodToken,
		Amount:             amount,
		Currency:           currency,
	})
	if err != nil {
		return billing.ChargeResult{}, fmt.Errorf("payment: failed to marshal charge request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+chargePath, bytes.NewReader(body))
	if err != nil {
		return billing.ChargeResult{}, fmt.Errorf("payment: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.logger.Warn("charge request failed",
			zap.Int64("amount", amount),
			zap.String("currency", currency),
			zap.Error(err))
		return billing.ChargeResult{}, fmt.Errorf("payment: charge request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return billing.ChargeResult{}, fmt.Errorf("payment: failed to read response: %w", err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return billing.ChargeResult{}, fmt.Errorf("payment: processor returned HTTP %d", resp.StatusCode)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var errResp errorResponse
		if jsonErr := json.Unmarshal(respBody, &errResp); jsonErr == nil && errResp.Code != "" {
			return billing.ChargeResult{}, fmt.Errorf("payment: %s: %s", errResp.Code, errResp.Message)
		}
		return billing.ChargeResult{}, fmt.Errorf("payment: processor returned HTTP %d", resp.StatusCode)
	}

	var charge chargeResponse
	if err := json.Unmarshal(respBody, &charge); err != nil {
		return billing.ChargeResult{}, fmt.Errorf("payment: failed to parse response: %w", err)
	}

	if charge.Status != "succeeded" {
		reason := charge.FailureReason
		if reason == "" {
			reason = "charge declined"
		}
		p.logger.Info("charge declined",
			zap.String("charge_id", charge.ID),
			zap.Int64("amount", amount),
			zap.String("reason", reason))
		return billing.ChargeResult{Success: false, ReferenceID: charge.ID, Reason: reason}, nil
	}

	p.logger.Info("charge succeeded",
		zap.String("charge_id", charge.ID),
		zap.Int64("amount", amount),
		zap.String("currency", currency))

	return billing.ChargeResult{Success: true, ReferenceID: charge.ID}, nil
}
