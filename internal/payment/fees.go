// Package payment holds the fee schedule and shared payment types. Charge
// orchestration and webhook reconciliation live in the service subpackage.
package payment

import (
	"fmt"
	"math"

	"agendahub/internal/agenda"
)

// FeeTable is the admin-fee schedule charged on top of the agenda fee.
// Percentage fees round up: the organization never absorbs a fractional
// shortfall.
type FeeTable struct {
	BankTransferFlat int64
	QRISRate         float64
	EWalletRate      float64
	CardRate         float64
	CardFlat         int64
}

// DefaultFees mirrors the gateway's published price list.
func DefaultFees() FeeTable {
	return FeeTable{
		BankTransferFlat: 4000,
		QRISRate:         0.007,
		EWalletRate:      0.02,
		CardRate:         0.029,
		CardFlat:         2000,
	}
}

// AdminFee computes the admin fee for a method on a base amount.
func (t FeeTable) AdminFee(method agenda.PaymentMethod, base int64) (int64, error) {
	switch method {
	case agenda.MethodBankTransfer:
		return t.BankTransferFlat, nil
	case agenda.MethodQRIS:
		return ceilRate(base, t.QRISRate), nil
	case agenda.MethodEWallet:
		return ceilRate(base, t.EWalletRate), nil
	case agenda.MethodCreditCard:
		return ceilRate(base, t.CardRate) + t.CardFlat, nil
	default:
		return 0, fmt.Errorf("no fee schedule for method %q", method)
	}
}

// Total is the gross amount sent to the gateway: base plus admin fee.
func (t FeeTable) Total(method agenda.PaymentMethod, base int64) (int64, error) {
	fee, err := t.AdminFee(method, base)
	if err != nil {
		return 0, err
	}
	return base + fee, nil
}

func ceilRate(base int64, rate float64) int64 {
	return int64(math.Ceil(float64(base) * rate))
}
