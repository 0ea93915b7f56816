package match

import "testing"

func TestStreetPrefix(t *testing.T) {
	cases := map[string]string{
		"Bredgade 19, 1.tv.": "bredgade 19",
		"Bredgade 19D":       "bredgade 19",
		"Nygade 12":          "nygade 12",
		"Store Kongensgade 108, 4.": "store kongensgade 108",
		"Strandvejen": "strandvejen",
		"":            "",
	}
	for input, want := range cases {
		if got := StreetPrefix(input); got != want {
			t.Fatalf("StreetPrefix(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestLastToken(t *testing.T) {
	cases := map[string]string{
		"Berg":              "berg",
		"Anna Berg":         "berg",
		"Anna Marie Berg":   "berg",
		"  berg  ":          "berg",
		"":                  "",
		"van der Berg":      "berg",
	}
	for input, want := range cases {
		if got := LastToken(input); got != want {
			t.Fatalf("LastToken(%q) = %q, want %q", input, got, want)
		}
	}
}
