package patch

import (
	"errors"
	"strings"
	"testing"

	"doifind/internal/citation"
)

func testCitations() []citation.Citation {
	return []citation.Citation{
		{
			ID:      1,
			RawText: "Smith J. First study. J Med. 2020.",
			Parsed: citation.Fields{
				Authors: []string{"Smith J"}, Year: 2020,
				Title: "First study", Container: "J Med",
			},
			DOI: "10.1/one", Status: citation.StatusFound, Confidence: 90,
		},
		{
			ID:      2,
			RawText: "Jones A. Second study. Nature. 2021.",
			Parsed: citation.Fields{
				Authors: []string{"Jones A"}, Year: 2021,
				Title: "Second study", Container: "Nature",
			},
			Status: citation.StatusNotFound,
		},
	}
}

const doc = "Intro text.\n\nSome body.\n\nReferences\n\n1. Smith J. First study. J Med. 2020.\n2. Jones A. Second study. Nature. 2021.\n\nAppendix A\n\nExtra material.\n"

func TestApply_AppendAddsSection(t *testing.T) {
	out, err := Apply("Body only.\n", testCitations(), Request{
		Mode: ModeAppend, Style: citation.StyleAMA, Selected: []int{1},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "Body only.\n\nReferences\n\n1. ") {
		t.Errorf("output:\n%s", out)
	}
	if !strings.Contains(out, "doi:10.1/one") {
		t.Errorf("missing DOI in output:\n%s", out)
	}
}

func TestApply_AppendIsIdempotent(t *testing.T) {
	req := Request{Mode: ModeAppend, Style: citation.StyleAPA, Selected: []int{1}}
	once, err := Apply(doc, testCitations(), req)
	if err != nil {
		t.Fatal(err)
	}
	twice, err := Apply(once, testCitations(), req)
	if err != nil {
		t.Fatal(err)
	}
	if once != twice {
		t.Errorf("second apply changed the artifact:\n%q\nvs\n%q", once, twice)
	}
}

func TestApply_ReplaceRewritesSectionBody(t *testing.T) {
	out, err := Apply(doc, testCitations(), Request{
		Mode: ModeReplace, Style: citation.StyleAMA, Selected: []int{1},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Intro text.") || !strings.Contains(out, "Appendix A") {
		t.Errorf("surrounding content lost:\n%s", out)
	}
	if strings.Contains(out, "2. Jones A. Second study") {
		t.Errorf("old reference body not removed:\n%s", out)
	}
	if !strings.Contains(out, "1. Smith J. First study. *J Med*. 2020. doi:10.1/one.") {
		t.Errorf("formatted citation missing:\n%s", out)
	}
}

func TestApply_ReplaceIsIdempotent(t *testing.T) {
	req := Request{Mode: ModeReplace, Style: citation.StyleAMA, Selected: []int{1}}
	once, err := Apply(doc, testCitations(), req)
	if err != nil {
		t.Fatal(err)
	}
	twice, err := Apply(once, testCitations(), req)
	if err != nil {
		t.Fatal(err)
	}
	if once != twice {
		t.Errorf("second apply changed the artifact")
	}
}

func TestApply_ReplaceFallsBackToAppend(t *testing.T) {
	out, err := Apply("No heading here.\n", testCitations(), Request{
		Mode: ModeReplace, Style: citation.StyleAMA, Selected: []int{1},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "No heading here.\n\nReferences\n") {
		t.Errorf("fallback append missing:\n%s", out)
	}
}

func TestApply_OverridePromotesNotFound(t *testing.T) {
	out, err := Apply("Doc.\n", testCitations(), Request{
		Mode:      ModeAppend,
		Style:     citation.StyleAMA,
		Selected:  []int{2},
		Overrides: map[int]string{2: "doi:10.9999/manual"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "doi:10.9999/manual") {
		t.Errorf("override DOI missing:\n%s", out)
	}
}

func TestApply_OverrideDoesNotMutateInput(t *testing.T) {
	cits := testCitations()
	_, err := Apply("Doc.\n", cits, Request{
		Mode:      ModeAppend,
		Style:     citation.StyleAMA,
		Selected:  []int{2},
		Overrides: map[int]string{2: "10.9999/manual"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if cits[1].DOI != "" || cits[1].Status != citation.StatusNotFound {
		t.Errorf("input citation mutated: %+v", cits[1])
	}
}

func TestApply_InvalidOverrideRejected(t *testing.T) {
	_, err := Apply("Doc.\n", testCitations(), Request{
		Mode:      ModeAppend,
		Style:     citation.StyleAMA,
		Selected:  []int{2},
		Overrides: map[int]string{2: "not-a-doi"},
	})
	if !errors.Is(err, ErrInvalidDOI) {
		t.Errorf("err = %v", err)
	}
}

func TestApply_UnknownSelectedIDRejected(t *testing.T) {
	_, err := Apply("Doc.\n", testCitations(), Request{
		Mode: ModeAppend, Style: citation.StyleAMA, Selected: []int{1, 99},
	})
	if !errors.Is(err, ErrUnknownCitation) {
		t.Errorf("err = %v", err)
	}
	if err == nil || !strings.Contains(err.Error(), "99") {
		t.Errorf("error should name the offending id: %v", err)
	}
}

func TestApply_ReplaceShortAlias(t *testing.T) {
	long, err := Apply(doc, testCitations(), Request{
		Mode: ModeReplace, Style: citation.StyleAMA, Selected: []int{1},
	})
	if err != nil {
		t.Fatal(err)
	}
	short, err := Apply(doc, testCitations(), Request{
		Mode: "replace", Style: citation.StyleAMA, Selected: []int{1},
	})
	if err != nil {
		t.Fatal(err)
	}
	if short != long {
		t.Error("alias mode produced different output")
	}
}

func TestApply_NoSelectionFails(t *testing.T) {
	// Citation 2 has no DOI and no override, so nothing can be applied.
	for _, selected := range [][]int{nil, {2}} {
		_, err := Apply("Doc.\n", testCitations(), Request{
			Mode: ModeAppend, Style: citation.StyleAMA, Selected: selected,
		})
		if !errors.Is(err, ErrNoSelection) {
			t.Errorf("selected %v: err = %v", selected, err)
		}
	}
}

func TestApply_InvalidModeAndStyle(t *testing.T) {
	if _, err := Apply("Doc.\n", testCitations(), Request{
		Mode: "overwrite_everything", Style: citation.StyleAMA, Selected: []int{1},
	}); !errors.Is(err, ErrInvalidMode) {
		t.Errorf("mode err = %v", err)
	}
	if _, err := Apply("Doc.\n", testCitations(), Request{
		Mode: ModeAppend, Style: "chicago", Selected: []int{1},
	}); err == nil {
		t.Error("invalid style accepted")
	}
}

func TestOutputPath(t *testing.T) {
	cases := []struct{ in, want string }{
		{"/data/paper.txt", "/data/paper_with_dois.txt"},
		{"/data/notes.md", "/data/notes_with_dois.md"},
		{"/data/scan.pdf", "/data/scan_with_dois.txt"},
	}
	for _, tc := range cases {
		if got := OutputPath(tc.in); got != tc.want {
			t.Errorf("OutputPath(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
