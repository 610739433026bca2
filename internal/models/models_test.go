package models

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestReceivedCoinsIncludesTenPercentBonus(t *testing.T) {
	cases := map[int]int{
		100:  110,
		500:  550,
		1000: 1100,
		5000: 5500,
	}
	for amount, want := range cases {
		if got := ReceivedCoins(amount); got != want {
			t.Errorf("ReceivedCoins(%d) = %d, want %d", amount, got, want)
		}
	}
}

func TestCoinBonusRoundsDown(t *testing.T) {
	if got := CoinBonus(15); got != 1 {
		t.Errorf("CoinBonus(15) = %d, want 1", got)
	}
	if got := CoinBonus(9); got != 0 {
		t.Errorf("CoinBonus(9) = %d, want 0", got)
	}
}

func TestBalanceEncodesAsNumber(t *testing.T) {
	data, err := json.Marshal(Balance{Balance: decimal.RequireFromString("50.5"), RaccoonCoins: 3})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"balance":50.5`) {
		t.Errorf("expected numeric balance, got %s", data)
	}
}

func TestChatTypeValid(t *testing.T) {
	for _, ct := range []ChatType{ChatPrivate, ChatGroup, ChatChannel, ChatSaved} {
		if !ct.Valid() {
			t.Errorf("%q should be valid", ct)
		}
	}
	if ChatType("secret").Valid() {
		t.Error("unknown chat type accepted")
	}
}

func TestUpdateProfileRequestEmpty(t *testing.T) {
	var req UpdateProfileRequest
	if !req.Empty() {
		t.Fatal("zero request should be empty")
	}
	ghost := true
	req.GhostMode = &ghost
	if req.Empty() {
		t.Fatal("request with ghost_mode should not be empty")
	}
}
