package redirect

import (
	"math/rand"
	"strconv"
	"strings"
	"testing"
)

func TestFolderIsThreeDigitNumeral(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 1000; i++ {
		folder := Folder(r)
		if len(folder) != 3 {
			t.Fatalf("expected 3-digit folder, got %q", folder)
		}
		n, err := strconv.Atoi(folder)
		if err != nil {
			t.Fatalf("folder %q is not numeric: %v", folder, err)
		}
		if n < 100 || n > 999 {
			t.Fatalf("folder %d out of range", n)
		}
	}
}

func TestFileNameShape(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	for i := 0; i < 100; i++ {
		name := FileName(r)
		if !strings.HasSuffix(name, ".html") {
			t.Fatalf("expected .html suffix, got %q", name)
		}
		base := strings.TrimSuffix(name, ".html")
		if len(base) != 8 {
			t.Fatalf("expected 8-char base name, got %q", base)
		}
		for _, c := range base {
			if !strings.ContainsRune(nameAlphabet, c) {
				t.Fatalf("unexpected character %q in %q", c, name)
			}
		}
	}
}

func TestPageEmbedsTargetAndEmailConcatenation(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	page := Page("https://example.org/track?id=", TemplateDefault, r)

	if !strings.Contains(page, `var target = "https://example.org/track?id=";`) {
		t.Fatalf("page does not embed the target URL:\n%s", page)
	}
	// The email parameter is appended by plain concatenation, no
	// separator and no query-merge.
	if !strings.Contains(page, "target = target + email;") {
		t.Fatalf("page does not concatenate the email parameter:\n%s", page)
	}
	if !strings.Contains(page, `params.get("email")`) {
		t.Fatalf("page does not read the email query parameter:\n%s", page)
	}
}

func TestPageInstantTemplateSkipsDelay(t *testing.T) {
	r := rand.New(rand.NewSource(5))
	page := Page("https://example.org", TemplateInstant, r)
	if !strings.Contains(page, "}, 0);") {
		t.Fatalf("instant template should navigate with zero delay:\n%s", page)
	}

	// Unknown template names fall back to the delayed default.
	page = Page("https://example.org", "no-such-template", r)
	if strings.Contains(page, "}, 0);") {
		t.Fatalf("unknown template should use a non-zero delay:\n%s", page)
	}
}

func TestPageTitleVaries(t *testing.T) {
	r := rand.New(rand.NewSource(4))
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		page := Page("https://example.org", TemplateDefault, r)
		start := strings.Index(page, "<title>")
		end := strings.Index(page, "</title>")
		if start < 0 || end < 0 {
			t.Fatal("page has no title")
		}
		seen[page[start+len("<title>"):end]] = true
	}
	if len(seen) < 2 {
		t.Fatalf("expected varying titles, got %d distinct", len(seen))
	}
}

func TestJSEscape(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{`plain`, `plain`},
		{`a"b`, `a\"b`},
		{`a\b`, `a\\b`},
		{`</script>`, `\x3c/script>`},
		{"a\nb", `a\nb`},
	}
	for _, c := range cases {
		if got := jsEscape(c.in); got != c.want {
			t.Errorf("jsEscape(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
