package wweb

import "testing"

func TestNormalizePhone(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want string
	}{
		{in: "+51 987 654 321", want: "51987654321"},
		{in: "(511) 222-333", want: "511222333"},
		{in: "51987654321", want: "51987654321"},
		{in: "whatsapp:+51987654321", want: "51987654321"},
	}
	for _, tt := range tests {
		if got := normalizePhone(tt.in); got != tt.want {
			t.Fatalf("normalizePhone(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
