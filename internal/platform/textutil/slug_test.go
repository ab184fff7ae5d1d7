package textutil

import "testing"

func TestSlugify(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "simple", in: "Organic Green Tea", want: "organic-green-tea"},
		{name: "punctuation collapsed", in: "Honey & Lemon (500g)", want: "honey-lemon-500g"},
		{name: "diacritics folded", in: "Café Crème", want: "cafe-creme"},
		{name: "leading trailing trimmed", in: "  --Aloe Vera--  ", want: "aloe-vera"},
		{name: "empty", in: "!!!", want: ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Slugify(tc.in); got != tc.want {
				t.Fatalf("Slugify(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestSlugifyCapsLength(t *testing.T) {
	long := ""
	for i := 0; i < 30; i++ {
		long += "verylongword "
	}
	slug := Slugify(long)
	if len(slug) == 0 || len(slug) > 80 {
		t.Fatalf("unexpected slug length %d", len(slug))
	}
	if slug[len(slug)-1] == '-' {
		t.Fatalf("slug should not end with hyphen: %q", slug)
	}
}
