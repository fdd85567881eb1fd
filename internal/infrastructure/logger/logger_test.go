package logger

import "testing"

func TestRedactToken(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"", ""},
		{"conversation_id=C1", "conversation_id=C1"},
		{"token=abc.def", "token=***"},
		{"a=1&token=abc&conversation_id=2", "a=1&token=***&conversation_id=2"},
	}
	for _, tc := range cases {
		if got := redactToken(tc.in); got != tc.want {
			t.Errorf("redactToken(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
