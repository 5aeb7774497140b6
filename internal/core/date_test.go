package core

import (
	"encoding/json"
	"testing"
	"time"
)

func TestClampDayOfMonth(t *testing.T) {
	cases := []struct {
		year  int
		month time.Month
		day   int
		want  int
	}{
		{2024, time.January, 31, 31},
		{2024, time.February, 31, 29}, // leap year
		{2023, time.February, 31, 28},
		{1900, time.February, 29, 28}, // divisible by 100, not by 400
		{2000, time.February, 30, 29}, // divisible by 400
		{2024, time.April, 31, 30},
		{2024, time.April, 15, 15},
	}
	for _, tc := range cases {
		if got := ClampDayOfMonth(tc.year, tc.month, tc.day); got != tc.want {
			t.Errorf("ClampDayOfMonth(%d, %s, %d) = %d, want %d", tc.year, tc.month, tc.day, got, tc.want)
		}
	}
}

func TestApplyWeekendPolicy(t *testing.T) {
	saturday := NewDate(2024, 3, 30)
	sunday := NewDate(2024, 3, 31)
	wednesday := NewDate(2024, 1, 31)

	tests := []struct {
		name   string
		date   Date
		policy WeekendPolicy
		want   Date
	}{
		{"saturday on", saturday, WeekendOn, saturday},
		{"saturday before", saturday, WeekendBefore, NewDate(2024, 3, 29)},
		{"saturday after", saturday, WeekendAfter, NewDate(2024, 4, 1)},
		{"sunday before", sunday, WeekendBefore, NewDate(2024, 3, 29)},
		{"sunday after", sunday, WeekendAfter, NewDate(2024, 4, 1)},
		{"weekday on", wednesday, WeekendOn, wednesday},
		{"weekday before", wednesday, WeekendBefore, wednesday},
		{"weekday after", wednesday, WeekendAfter, wednesday},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApplyWeekendPolicy(tt.date, tt.policy)
			if !got.Equal(tt.want) {
				t.Errorf("ApplyWeekendPolicy(%s, %s) = %s, want %s", tt.date, tt.policy, got, tt.want)
			}
		})
	}
}

func TestDateOfDropsClockAndZone(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*3600)
	got := DateOf(time.Date(2024, 5, 1, 23, 30, 0, 0, loc))
	if got != NewDate(2024, 5, 1) {
		t.Fatalf("DateOf kept clock or zone: %v", got.Time)
	}
}

func TestDateJSON(t *testing.T) {
	type payload struct {
		When Date `json:"when"`
		End  Date `json:"end"`
	}
	b, err := json.Marshal(payload{When: NewDate(2024, 2, 29)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"when":"2024-02-29","end":""}` {
		t.Fatalf("unexpected json: %s", b)
	}

	var back payload
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.When.Equal(NewDate(2024, 2, 29)) || !back.End.IsZero() {
		t.Fatalf("unexpected round trip: %+v", back)
	}

	if err := json.Unmarshal([]byte(`{"when":"2024-13-01"}`), &back); err == nil {
		t.Fatalf("expected error for invalid month")
	}
}

func TestDateAsMapKey(t *testing.T) {
	m := map[Date]int{NewDate(2024, 1, 1): 1}
	if m[DateOf(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))] != 1 {
		t.Fatalf("dates for the same day must share a map key")
	}
	b, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal map: %v", err)
	}
	if string(b) != `{"2024-01-01":1}` {
		t.Fatalf("unexpected json: %s", b)
	}
}

func TestDaysUntil(t *testing.T) {
	tests := []struct {
		from, to Date
		want     int
	}{
		{NewDate(2024, 2, 28), NewDate(2024, 3, 1), 2},
		{NewDate(2024, 3, 1), NewDate(2024, 2, 28), -2},
		{NewDate(2024, 1, 1), NewDate(2025, 1, 1), 366},
		{NewDate(1, 1, 1), NewDate(9999, 12, 31), 3652058},
	}
	for _, tt := range tests {
		if got := tt.from.DaysUntil(tt.to); got != tt.want {
			t.Errorf("%s.DaysUntil(%s) = %d, want %d", tt.from, tt.to, got, tt.want)
		}
	}
}
