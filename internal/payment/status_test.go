package payment

import "testing"

func TestParseOrderStatus(t *testing.T) {
	cases := []struct {
		raw  string
		want OrderStatus
	}{
		{"completed", StatusCompleted},
		{"COMPLETED", StatusCompleted},
		{"Completed", StatusCompleted},
		{"  pending ", StatusPending},
		{"AUTHORISED", StatusAuthorised},
		{"created", StatusCreated},
		{"failed", StatusFailed},
		{"CANCELLED", StatusCancelled},
		{"", StatusUnknown},
		{"refunded", StatusUnknown},
		{"complete", StatusUnknown},
	}

	for _, tc := range cases {
		if got := ParseOrderStatus(tc.raw); got != tc.want {
			t.Errorf("ParseOrderStatus(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	terminal := []OrderStatus{StatusCompleted, StatusFailed, StatusCancelled}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%q should be terminal", s)
		}
	}

	nonTerminal := []OrderStatus{StatusCreated, StatusPending, StatusAuthorised, StatusUnknown}
	for _, s := range nonTerminal {
		if s.Terminal() {
			t.Errorf("%q should not be terminal", s)
		}
	}
}
