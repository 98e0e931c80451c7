package provider

import (
	"context"

	"tractor-rental/internal/data/entity"

	"github.com/google/uuid"
)

// CashAdapter is the degenerate adapter: no external call, the owner confirms
// receipt in person and an admin settles the payment manually.
type CashAdapter struct{}

func NewCashAdapter() *CashAdapter {
	return &CashAdapter{}
}

func (a *CashAdapter) Method() entity.PaymentMethod {
	return entity.PaymentMethodCash
}

func (a *CashAdapter) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	txID := "CASH-" + uuid.New().String()
	return &InitiateResult{
		TransactionID: txID,
		ProviderRef:   txID,
	}, nil
}

// CheckStatus always reports pending: cash has no gateway to ask.
func (a *CashAdapter) CheckStatus(ctx context.Context, providerRef string) (*StatusResult, error) {
	return &StatusResult{
		Status:  StatusPending,
		Message: "cash payment awaits manual settlement",
	}, nil
}
