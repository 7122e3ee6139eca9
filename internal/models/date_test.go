package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDate_JSON(t *testing.T) {
	d := NewDate(2025, time.April, 15)
	b, err := json.Marshal(struct {
		D Date `json:"d"`
		Z Date `json:"z"`
	}{D: d})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if got, want := string(b), `{"d":"2025-04-15","z":null}`; got != want {
		t.Errorf("Marshal() = %s, want %s", got, want)
	}

	var back struct {
		D Date `json:"d"`
	}
	if err := json.Unmarshal([]byte(`{"d":"2023-01-01"}`), &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !back.D.Equal(NewDate(2023, time.January, 1).Time) {
		t.Errorf("Unmarshal() = %v", back.D)
	}
	if err := json.Unmarshal([]byte(`{"d":"2023-13-01"}`), &back); err == nil {
		t.Error("Unmarshal() of month 13 succeeded")
	}
}

func TestDate_DaysUntil(t *testing.T) {
	a := NewDate(2023, time.January, 1)
	b := NewDate(2025, time.April, 15)
	if got := a.DaysUntil(b); got != 835 {
		t.Errorf("DaysUntil() = %d, want 835", got)
	}
	if got := a.AddDays(31); !got.Equal(NewDate(2023, time.February, 1).Time) {
		t.Errorf("AddDays() = %v", got)
	}
}

func TestDateOf(t *testing.T) {
	loc := time.FixedZone("ICT", 7*3600)
	in := time.Date(2024, time.March, 3, 23, 30, 0, 0, loc)
	if got := DateOf(in); got.String() != "2024-03-03" {
		t.Errorf("DateOf() = %v", got)
	}
}
