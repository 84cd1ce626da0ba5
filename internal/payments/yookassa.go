package payments

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Gateway выставляет счёт и возвращает корреляционный токен, по которому
// асинхронный callback провайдера будет сопоставлен с платежом.
type Gateway interface {
	CreateInvoice(telegramID string, plan Plan) (uniquePayload, paymentURL string, err error)
}

type paymentResponse struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	Confirmation struct {
		ConfirmationURL string `json:"confirmation_url"`
	} `json:"confirmation"`
}

// YooKassaGateway — платёжный шлюз YooKassa (redirect-сценарий).
type YooKassaGateway struct {
	ShopID    string
	SecretKey string
	Client    *http.Client
}

func NewYooKassaGateway(shopID, secretKey string) *YooKassaGateway {
	return &YooKassaGateway{
		ShopID:    shopID,
		SecretKey: secretKey,
		Client:    &http.Client{Timeout: 30 * time.Second},
	}
}

// CreateInvoice создаёт платёж в YooKassa. Корреляционный токен генерируется
// здесь и уезжает в metadata платежа: webhook вернёт его обратно.
func (g *YooKassaGateway) CreateInvoice(telegramID string, plan Plan) (string, string, error) {
	uniquePayload := uuid.NewString()
	body := map[string]interface{}{
		"amount":       map[string]interface{}{"value": fmt.Sprintf("%d.00", plan.Price), "currency": "RUB"},
		"confirmation": map[string]string{"type": "redirect"},
		"capture":      true,
		"description":  fmt.Sprintf("VPN на %d мес. для %s", plan.Months, telegramID),
		"metadata":     map[string]string{"unique_payload": uniquePayload},
	}
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return "", "", err
	}
	req, err := http.NewRequest(http.MethodPost, "https://api.yookassa.ru/v3/payments", bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotence-Key", uniquePayload)
	req.SetBasicAuth(g.ShopID, g.SecretKey)

	resp, err := g.Client.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", "", fmt.Errorf("yookassa: unexpected status %d", resp.StatusCode)
	}
	var pr paymentResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return "", "", err
	}
	return uniquePayload, pr.Confirmation.ConfirmationURL, nil
}
