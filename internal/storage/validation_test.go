package storage

import (
	"math"
	"testing"
	"time"

	"github.com/rappenlabs/rappen/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestValidateString(t *testing.T) {
	assert.NoError(t, validateString("id-1", "id"))
	assert.ErrorIs(t, validateString("", "id"), ErrEmptyString)
	assert.ErrorIs(t, validateString("   ", "id"), ErrEmptyString)
}

func TestValidateTransaction(t *testing.T) {
	valid := model.Transaction{
		ID:        "t1",
		AccountID: "acc-1",
		Date:      time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Amount:    -12.50,
	}
	assert.NoError(t, validateTransaction(&valid))

	tests := []struct {
		mutate func(*model.Transaction)
		name   string
	}{
		{name: "missing ID", mutate: func(txn *model.Transaction) { txn.ID = "" }},
		{name: "missing date", mutate: func(txn *model.Transaction) { txn.Date = time.Time{} }},
		{name: "missing account", mutate: func(txn *model.Transaction) { txn.AccountID = "" }},
		{name: "NaN amount", mutate: func(txn *model.Transaction) { txn.Amount = math.NaN() }},
		{name: "infinite amount", mutate: func(txn *model.Transaction) { txn.Amount = math.Inf(1) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txn := valid
			tt.mutate(&txn)
			assert.Error(t, validateTransaction(&txn))
		})
	}

	assert.ErrorIs(t, validateTransaction(nil), ErrNilParameter)
}

func TestValidateTransactions(t *testing.T) {
	assert.ErrorIs(t, validateTransactions(nil), ErrNilParameter)
	assert.ErrorIs(t, validateTransactions([]model.Transaction{}), ErrEmptySlice)
}

func TestValidateTransfer(t *testing.T) {
	valid := model.Transfer{
		ID:                "tr-1",
		FromAccountID:     "acc-a",
		ToAccountID:       "acc-b",
		FromTransactionID: "t1",
		ToTransactionID:   "t2",
		Amount:            100,
	}
	assert.NoError(t, validateTransfer(&valid))

	sameAccount := valid
	sameAccount.ToAccountID = "acc-a"
	assert.ErrorIs(t, validateTransfer(&sameAccount), ErrInvalidTransfer)

	missingLeg := valid
	missingLeg.ToTransactionID = ""
	assert.ErrorIs(t, validateTransfer(&missingLeg), ErrInvalidTransfer)

	negative := valid
	negative.Amount = -5
	assert.ErrorIs(t, validateTransfer(&negative), ErrInvalidTransfer)
}
