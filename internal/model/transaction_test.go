package model

import (
	"testing"
	"time"
)

func TestTransaction_GenerateHash(t *testing.T) {
	txn := Transaction{
		ID:          "txn-1",
		Date:        time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
		Description: "TWINT Payment, Migros Bahnhofstrasse",
		AccountID:   "acc-1",
		Amount:      -42.50,
	}

	h1 := txn.GenerateHash()
	h2 := txn.GenerateHash()
	if h1 != h2 {
		t.Errorf("hash not deterministic: %s != %s", h1, h2)
	}

	other := txn
	other.Amount = -42.51
	if other.GenerateHash() == h1 {
		t.Error("expected different hash for different amount")
	}
}

func TestTransaction_IsDebit(t *testing.T) {
	if (&Transaction{Amount: 10}).IsDebit() {
		t.Error("credit reported as debit")
	}
	if !(&Transaction{Amount: -10}).IsDebit() {
		t.Error("debit not reported")
	}
}
