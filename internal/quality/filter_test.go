package quality

import (
	"strings"
	"testing"

	"LegalCorpus/internal/config"
)

func testConfig() config.QualityConfig {
	return config.QualityConfig{
		TrustedDomains:    []string{"indiankanoon.org", "sci.gov.in"},
		TitlePlaceholders: []string{"untitled", "404"},
		ContentMarkers:    []string{"act/judgment not found", "document not found"},
		MinSnippetLength:  50,
	}
}

func TestTrustedURL(t *testing.T) {
	t.Parallel()

	f := New(testConfig())

	cases := []struct {
		url  string
		want bool
	}{
		{"https://indiankanoon.org/doc/12345/", true},
		{"https://www.indiankanoon.org/doc/12345/", true},
		{"https://main.sci.gov.in/judgments", true},
		{"https://evil-indiankanoon.org/doc/1/", false},
		{"https://example.com/indiankanoon.org", false},
		{"", false},
		{"://not a url", false},
	}

	for _, tc := range cases {
		if got := f.TrustedURL(tc.url); got != tc.want {
			t.Fatalf("TrustedURL(%q) = %v, want %v", tc.url, got, tc.want)
		}
	}
}

func TestCheckUntrusted(t *testing.T) {
	t.Parallel()

	f := New(testConfig())

	snippet := strings.Repeat("section 302 analysis ", 10)
	verdict, reason := f.Check("State v. Accused", snippet, "https://random-blog.example/post")
	if verdict != Untrusted {
		t.Fatalf("expected Untrusted, got %v (%s)", verdict, reason)
	}
}

func TestCheckPlaceholderTitle(t *testing.T) {
	t.Parallel()

	f := New(testConfig())

	snippet := strings.Repeat("long enough legal content ", 10)
	verdict, reason := f.Check("Untitled", snippet, "https://indiankanoon.org/doc/1/")
	if verdict != Rejected {
		t.Fatalf("expected Rejected for placeholder title, got %v", verdict)
	}
	if !strings.Contains(reason, "placeholder title") {
		t.Fatalf("unexpected reason: %s", reason)
	}
}

func TestCheckPlaceholderContent(t *testing.T) {
	t.Parallel()

	f := New(testConfig())

	snippet := strings.Repeat("filler ", 20) + "Act/Judgment NOT FOUND in repository"
	verdict, _ := f.Check("Kesavananda Bharati v. State of Kerala", snippet, "https://indiankanoon.org/doc/1/")
	if verdict != Rejected {
		t.Fatalf("expected Rejected for not-found marker, got %v", verdict)
	}
}

func TestCheckShortSnippet(t *testing.T) {
	t.Parallel()

	f := New(testConfig())

	verdict, reason := f.Check("Some Judgment", "too short", "https://indiankanoon.org/doc/1/")
	if verdict != LowQuality {
		t.Fatalf("expected LowQuality for short snippet, got %v", verdict)
	}
	if !strings.Contains(reason, "minimum length") {
		t.Fatalf("unexpected reason: %s", reason)
	}
}

func TestCheckHighQuality(t *testing.T) {
	t.Parallel()

	f := New(testConfig())

	snippet := strings.Repeat("detailed reasoning on section 420 IPC and section 318 BNS ", 5)
	verdict, reason := f.Check("Pyare Lal Bhargava v. State of Rajasthan", snippet, "https://indiankanoon.org/doc/1/")
	if verdict != HighQuality {
		t.Fatalf("expected HighQuality, got %v (%s)", verdict, reason)
	}
}

func TestContentQualityTitleRequired(t *testing.T) {
	t.Parallel()

	f := New(testConfig())

	verdict, _ := f.ContentQuality("   ", strings.Repeat("text ", 20))
	if verdict != Rejected {
		t.Fatalf("expected Rejected for empty title, got %v", verdict)
	}
}

func TestTitleNumberIsNotPlaceholder(t *testing.T) {
	t.Parallel()

	// A real title containing "404" must not be mistaken for the error page.
	f := New(testConfig())

	snippet := strings.Repeat("judgment text about provision ", 5)
	verdict, reason := f.Check("Section 404 BNSS explained", snippet, "https://indiankanoon.org/doc/2/")
	if verdict != HighQuality {
		t.Fatalf("expected HighQuality, got %v (%s)", verdict, reason)
	}
}

func TestTitleQuality(t *testing.T) {
	t.Parallel()

	f := New(testConfig())

	if verdict, _ := f.TitleQuality("Punishment for theft"); verdict != HighQuality {
		t.Fatalf("real title rejected: %v", verdict)
	}
	if verdict, _ := f.TitleQuality("404"); verdict != Rejected {
		t.Fatalf("placeholder title accepted: %v", verdict)
	}
	if verdict, _ := f.TitleQuality(""); verdict != Rejected {
		t.Fatalf("empty title accepted: %v", verdict)
	}
}
