package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/RomanCartman/amnezia-bot/internal/logger"
)

// Settler применяет подтверждённый платёж к подписке.
// Реализуется сервисом settlement; повторная доставка того же callback —
// no-op на его стороне.
type Settler interface {
	Apply(ctx context.Context, uniquePayload, providerPaymentID string) error
}

// Проверка HMAC подписи webhook YooKassa (Authorization или Content-Yoomoney-Signature)
func checkSignature(secret string, body []byte, authHeader, yoomoneyHeader string) bool {
	var signatures []string
	if authHeader != "" {
		if strings.HasPrefix(authHeader, "HMAC ") || strings.HasPrefix(authHeader, "HMAC-SHA256 ") {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 {
				signatures = append(signatures, parts[1])
			}
		}
	}
	if yoomoneyHeader != "" {
		signatures = append(signatures, yoomoneyHeader)
	}
	if len(signatures) == 0 {
		return false
	}
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	calc := hex.EncodeToString(h.Sum(nil))
	for _, sig := range signatures {
		if hmac.Equal([]byte(sig), []byte(calc)) {
			return true
		}
	}
	return false
}

type webhookEvent struct {
	Object struct {
		ID       string `json:"id"`
		Status   string `json:"status"`
		Metadata struct {
			UniquePayload string `json:"unique_payload"`
		} `json:"metadata"`
	} `json:"object"`
}

// WebhookHandler принимает уведомления провайдера и передаёт успешные платежи
// в settlement. За эту границу не выпускается ни одна паника и ни одна сырая
// ошибка провайдера.
func WebhookHandler(secret string, settler Settler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer logger.NotifyOnPanic("payments.WebhookHandler")
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			logger.Error("webhook: read body failed", zap.Error(err))
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		r.Body.Close()

		if !checkSignature(secret, body, r.Header.Get("Authorization"), r.Header.Get("Content-Yoomoney-Signature")) {
			logger.Warn("webhook: invalid signature")
			logger.NotifyAdmin("Недействительная подпись webhook")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte("invalid signature"))
			return
		}

		var event webhookEvent
		if err := json.Unmarshal(body, &event); err != nil {
			logger.Error("webhook: bad payload", zap.Error(err))
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if event.Object.Status != "succeeded" {
			logger.Info("webhook: ignoring non-success status", zap.String("status", event.Object.Status))
			w.WriteHeader(http.StatusOK)
			return
		}
		if event.Object.Metadata.UniquePayload == "" {
			logger.Warn("webhook: success event without unique_payload", zap.String("provider_id", event.Object.ID))
			w.WriteHeader(http.StatusOK)
			return
		}

		if err := settler.Apply(r.Context(), event.Object.Metadata.UniquePayload, event.Object.ID); err != nil {
			// Платёж уже записан; ошибку фиксируем, провайдеру отвечаем 200,
			// чтобы он не ретраил бесконечно — доставка сервиса ретраится у нас.
			logger.Error("webhook: settlement failed",
				zap.String("unique_payload", event.Object.Metadata.UniquePayload),
				zap.Error(err),
			)
		}
		w.WriteHeader(http.StatusOK)
	}
}
