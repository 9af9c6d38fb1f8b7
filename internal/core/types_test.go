package core

import (
	"testing"
	"time"
)

func TestQuote_IsValid(t *testing.T) {
	q := Quote{
		Symbol: "BTCUSDT",
		Price:  90000,
		Time:   time.Now(),
		Source: "binance",
	}

	if !q.IsValid() {
		t.Error("expected valid quote")
	}

	invalid := Quote{Symbol: "", Price: 0}
	if invalid.IsValid() {
		t.Error("expected invalid quote")
	}
}

func TestDirection_IsValid(t *testing.T) {
	tests := []struct {
		d    Direction
		want bool
	}{
		{DirectionUp, true},
		{DirectionDown, true},
		{DirectionNeutral, true},
		{"sideways", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := tt.d.IsValid(); got != tt.want {
			t.Errorf("Direction(%q).IsValid() = %v, want %v", tt.d, got, tt.want)
		}
	}
}

func TestCall_IsCorrect(t *testing.T) {
	tests := []struct {
		name string
		call Call
		want bool
	}{
		{"pending", Call{}, false},
		{"checked without verdict", Call{Checked: true}, false},
		{"checked incorrect", Call{Checked: true, Correct: Bool(false)}, false},
		{"checked correct", Call{Checked: true, Correct: Bool(true)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.call.IsCorrect(); got != tt.want {
				t.Errorf("IsCorrect() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCall_Age(t *testing.T) {
	now := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
	c := Call{CreatedAt: now.Add(-26 * time.Hour)}
	if c.Age(now) != 26*time.Hour {
		t.Errorf("unexpected age %v", c.Age(now))
	}
}
