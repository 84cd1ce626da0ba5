package db

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/RomanCartman/amnezia-bot/internal/errs"
)

// CreatePayment сохраняет платёж в статусе pending до подтверждения провайдером.
func (s *Store) CreatePayment(p *Payment) error {
	if p.Status == "" {
		p.Status = PaymentPending
	}
	return s.db.Create(p).Error
}

// GetPaymentByPayload возвращает платёж по корреляционному токену.
func (s *Store) GetPaymentByPayload(uniquePayload string) (Payment, error) {
	var p Payment
	err := s.db.Where("unique_payload = ?", uniquePayload).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Payment{}, errs.ErrNotFound
	}
	return p, err
}

// SettlePayment переводит платёж pending -> success ровно один раз.
// Guard на уровне UPDATE: второй конкурентный вызов видит ноль затронутых строк
// и получает errs.ErrDuplicateSettlement — это no-op для вызывающего, не ошибка.
func (s *Store) SettlePayment(uniquePayload, providerPaymentID string) (Payment, error) {
	res := s.db.Model(&Payment{}).
		Where("unique_payload = ? AND status = ?", uniquePayload, PaymentPending).
		Updates(map[string]interface{}{
			"status":              PaymentSuccess,
			"provider_payment_id": providerPaymentID,
		})
	if res.Error != nil {
		return Payment{}, res.Error
	}
	if res.RowsAffected == 0 {
		p, err := s.GetPaymentByPayload(uniquePayload)
		if err != nil {
			return Payment{}, err
		}
		return p, errs.ErrDuplicateSettlement
	}
	return s.GetPaymentByPayload(uniquePayload)
}

// FailPayment переводит платёж pending -> failed. Уже проведённый платёж не трогает.
func (s *Store) FailPayment(uniquePayload string) error {
	return s.db.Model(&Payment{}).
		Where("unique_payload = ? AND status = ?", uniquePayload, PaymentPending).
		Update("status", PaymentFailed).Error
}

// PaymentsBetween — история платежей для админской статистики.
func (s *Store) PaymentsBetween(from, to time.Time) ([]Payment, error) {
	var pays []Payment
	err := s.db.Where("created_at >= ? AND created_at <= ?", from, to).Find(&pays).Error
	return pays, err
}

// SumSettledPayments — сумма подтверждённых платежей за период.
func (s *Store) SumSettledPayments(from, to time.Time) (int64, error) {
	var sum int64
	err := s.db.Model(&Payment{}).
		Where("status = ? AND created_at >= ? AND created_at <= ?", PaymentSuccess, from, to).
		Select("COALESCE(SUM(amount), 0)").Scan(&sum).Error
	return sum, err
}
