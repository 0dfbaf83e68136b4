package document

import (
	"strings"
	"testing"
)

func TestExtractText_PlainTextPassthrough(t *testing.T) {
	got, err := ExtractText("notes.txt", []byte("  Hello   support   team\nsecond line  "))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Hello support team\nsecond line" {
		t.Errorf("got %q", got)
	}
}

func TestExtractText_Markdown(t *testing.T) {
	md := "# Pricing\n\nOur **basic** plan costs $10.\n\n| Plan | Price |\n|---|---|\n| Basic | $10 |\n| Pro | $25 |\n"
	got, err := ExtractText("pricing.md", []byte(md))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"Pricing", "basic", "$10", "Pro", "$25"} {
		if !strings.Contains(got, want) {
			t.Errorf("extracted text missing %q: %q", want, got)
		}
	}
	if strings.Contains(got, "**") || strings.Contains(got, "<") {
		t.Errorf("markup leaked into extracted text: %q", got)
	}
}

func TestExtractText_HTML(t *testing.T) {
	raw := `<html><head><style>p{color:red}</style></head><body><h1>FAQ</h1><p>How do I reset my password?</p><script>alert(1)</script></body></html>`
	got, err := ExtractText("faq.html", []byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(got, "FAQ") || !strings.Contains(got, "reset my password") {
		t.Errorf("missing content: %q", got)
	}
	if strings.Contains(got, "alert") || strings.Contains(got, "color:red") {
		t.Errorf("script/style leaked: %q", got)
	}
}

func TestExtractText_InvalidPDF(t *testing.T) {
	if _, err := ExtractText("broken.pdf", []byte("this is not a pdf")); err == nil {
		t.Fatal("expected an error for a malformed PDF")
	}
}

func TestExtractText_InvalidXLSX(t *testing.T) {
	if _, err := ExtractText("broken.xlsx", []byte("this is not a workbook")); err == nil {
		t.Fatal("expected an error for a malformed workbook")
	}
}

func TestCleanText(t *testing.T) {
	in := "a\x00b   c\t\td\ne  f"
	want := "ab c d\ne f"
	if got := cleanText(in); got != want {
		t.Errorf("got %q want %q", got, want)
	}
}
