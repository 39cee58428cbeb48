package extract

import (
	"strings"
	"testing"
)

func TestTextStripsScriptAndStyleBlocks(t *testing.T) {
	html := `<html><head><style>body { color: red; }</style>
<script type="text/javascript">var secret = "leaked";</script></head>
<body><h1>Title</h1><p>Hello <b>world</b></p></body></html>`

	got := Text(html)
	if got != "Title Hello world" {
		t.Fatalf("Text() = %q, want %q", got, "Title Hello world")
	}
	if strings.Contains(got, "leaked") || strings.Contains(got, "color") {
		t.Fatalf("script/style content leaked into text: %q", got)
	}
}

func TestTextDecodesEntities(t *testing.T) {
	got := Text(`<p>A&nbsp;&lt;tag&gt; &quot;quoted&quot; &amp; done</p>`)
	want := `A <tag> "quoted" & done`
	if got != want {
		t.Fatalf("Text() = %q, want %q", got, want)
	}
}

func TestTextCollapsesWhitespace(t *testing.T) {
	got := Text("<p>a\n\n\t b   c</p>")
	if got != "a b c" {
		t.Fatalf("Text() = %q, want %q", got, "a b c")
	}
}

func TestTextCapsAtLimit(t *testing.T) {
	long := strings.Repeat("x", MaxTextChars+500)
	got := Text("<p>" + long + "</p>")
	if len([]rune(got)) != MaxTextChars {
		t.Fatalf("len(Text()) = %d, want %d", len([]rune(got)), MaxTextChars)
	}
}

func TestCapCharsBoundary(t *testing.T) {
	exact := strings.Repeat("a", 100)
	if got := CapChars(exact, 100); got != exact {
		t.Fatalf("CapChars should not truncate at exact limit")
	}
	if got := CapChars(exact+"b", 100); got != exact {
		t.Fatalf("CapChars(101 chars, 100) = %d chars, want 100", len(got))
	}
}

func TestCapCharsMultibyte(t *testing.T) {
	s := strings.Repeat("é", 10)
	got := CapChars(s, 5)
	if got != strings.Repeat("é", 5) {
		t.Fatalf("CapChars multibyte = %q", got)
	}
}

func TestCapContentBoundary(t *testing.T) {
	exact := strings.Repeat("h", MaxContentBytes)
	got, truncated := CapContent(exact)
	if truncated {
		t.Fatalf("content of exactly MaxContentBytes should not be truncated")
	}
	if got != exact {
		t.Fatalf("content changed without truncation")
	}

	over := exact + "h"
	got, truncated = CapContent(over)
	if !truncated {
		t.Fatalf("content over MaxContentBytes should be truncated")
	}
	if !strings.HasSuffix(got, TruncationMarker) {
		t.Fatalf("truncated content missing marker")
	}
	if len(got) != MaxContentBytes+len(TruncationMarker) {
		t.Fatalf("truncated content length = %d", len(got))
	}
}

func TestEmbeddingInputCap(t *testing.T) {
	long := strings.Repeat("w", MaxEmbedChars*2)
	if got := EmbeddingInput(long); len(got) != MaxEmbedChars {
		t.Fatalf("EmbeddingInput length = %d, want %d", len(got), MaxEmbedChars)
	}
	short := "short text"
	if got := EmbeddingInput(short); got != short {
		t.Fatalf("EmbeddingInput modified short text: %q", got)
	}
}

func TestValidatePDFRejectsNonPDF(t *testing.T) {
	if _, err := ValidatePDF([]byte("<html>not a pdf</html>")); err == nil {
		t.Fatal("expected error for non-PDF payload")
	}
	if _, err := ValidatePDF(nil); err == nil {
		t.Fatal("expected error for empty payload")
	}
}
