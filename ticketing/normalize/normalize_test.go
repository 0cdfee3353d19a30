package normalize_test

import (
	"strings"
	"testing"

	"github.com/ticketflow/engine/ticketing/normalize"
)

func TestCleanStripsHTMLAndCollapsesWhitespace(t *testing.T) {
	in := "<p>Hello   there</p><br>How  are you?"
	out, _ := normalize.Clean(in, normalize.CleanOptions{RemoveHTML: true})
	if strings.Contains(out, "<") || strings.Contains(out, ">") {
		t.Fatalf("expected all tags stripped, got %q", out)
	}
	if strings.Contains(out, "  ") {
		t.Fatalf("expected double spaces collapsed, got %q", out)
	}
}

func TestCleanRemovesEmailSignature(t *testing.T) {
	in := "Please help with my order.\n\nBest regards,\nJohn Smith\nAcme Inc."
	out, _ := normalize.Clean(in, normalize.CleanOptions{RemoveSignatures: true})
	if strings.Contains(out, "John Smith") {
		t.Fatalf("expected signature trimmed, got %q", out)
	}
	if !strings.Contains(out, "Please help with my order.") {
		t.Fatalf("expected body preserved, got %q", out)
	}
}

func TestCleanTransliteratesTurkishByDefault(t *testing.T) {
	out, _ := normalize.Clean("çok güzel bir gün", normalize.CleanOptions{})
	if strings.ContainsAny(out, "çğıöşü") {
		t.Fatalf("expected turkish diacritics transliterated, got %q", out)
	}
}

func TestCleanPreservesNativeScriptWhenRequested(t *testing.T) {
	out, _ := normalize.Clean("çok güzel", normalize.CleanOptions{PreserveNativeScript: true})
	if !strings.Contains(out, "ç") {
		t.Fatalf("expected native script preserved, got %q", out)
	}
}

func TestCleanMasksPII(t *testing.T) {
	in := "reach me at jane.doe@example.com or https://example.com/account or +1-555-123-4567"
	out, mapping := normalize.Clean(in, normalize.CleanOptions{MaskPII: true})
	if strings.Contains(out, "jane.doe@example.com") {
		t.Fatalf("expected email masked, got %q", out)
	}
	if len(mapping) == 0 {
		t.Fatal("expected a non-empty PII mapping")
	}
}

func TestCleanIsIdempotent(t *testing.T) {
	opts := normalize.DefaultCleanOptions()
	first, _ := normalize.Clean("<p>Hello there!</p>\n\nThanks,\nJane", opts)
	second, _ := normalize.Clean(first, opts)
	if first != second {
		t.Fatalf("expected Clean to be idempotent, got %q then %q", first, second)
	}
}

func TestDetectLanguageFallsBackOnEmptyInput(t *testing.T) {
	lang, confidence := normalize.DetectLanguage("")
	if lang != "en" || confidence != 0.5 {
		t.Fatalf("expected fallback en/0.5, got %q/%v", lang, confidence)
	}
}

func TestDetectLanguageRecognizesTurkishMarkers(t *testing.T) {
	lang, _ := normalize.DetectLanguage("Merhaba, hesabımla ilgili bir sorun var")
	if lang != "tr" {
		t.Fatalf("expected tr, got %q", lang)
	}
}

func TestTruncateAppendsSuffixOnlyWhenNeeded(t *testing.T) {
	if got := normalize.Truncate("short", 100, ""); got != "short" {
		t.Fatalf("expected unchanged text, got %q", got)
	}
	got := normalize.Truncate("this is a longer string", 10, "...")
	if len([]rune(got)) > 10 {
		t.Fatalf("expected truncated output within maxLen, suffix included, got %q", got)
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("expected suffix appended, got %q", got)
	}
}
