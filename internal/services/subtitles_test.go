package services

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bobarin/storyreel/internal/models"
)

func TestBuildCuesGroupsThreeWords(t *testing.T) {
	segments := []TranscriptSegment{
		{Start: 0, End: 7, Text: "one two three four five six seven"},
	}

	cues := BuildCues(segments)
	if len(cues) != 3 {
		t.Fatalf("expected 3 cues for 7 words, got %d", len(cues))
	}

	wantWords := [][]string{
		{"one", "two", "three"},
		{"four", "five", "six"},
		{"seven"},
	}
	for i, cue := range cues {
		if len(cue.Words) != len(wantWords[i]) {
			t.Fatalf("cue %d: expected %v, got %v", i, wantWords[i], cue.Words)
		}
		for j, w := range wantWords[i] {
			if cue.Words[j] != w {
				t.Errorf("cue %d word %d: expected %q, got %q", i, j, w, cue.Words[j])
			}
		}
	}
}

func TestBuildCuesProportionalTiming(t *testing.T) {
	// 7 words over a 7-second span: each word owns 1 second
	segments := []TranscriptSegment{
		{Start: 10, End: 17, Text: "one two three four five six seven"},
	}

	cues := BuildCues(segments)
	wantStarts := []float64{10, 13, 16}
	wantEnds := []float64{13, 16, 17}

	for i, cue := range cues {
		if !closeTo(cue.Start, wantStarts[i]) {
			t.Errorf("cue %d start: expected %.2f, got %.2f", i, wantStarts[i], cue.Start)
		}
		if !closeTo(cue.End, wantEnds[i]) {
			t.Errorf("cue %d end: expected %.2f, got %.2f", i, wantEnds[i], cue.End)
		}
	}

	// The last cue never spills past the segment end
	last := cues[len(cues)-1]
	if last.End > 17+1e-9 {
		t.Errorf("last cue end %.3f exceeds segment end", last.End)
	}
}

func TestBuildCuesSkipsEmptySegments(t *testing.T) {
	segments := []TranscriptSegment{
		{Start: 0, End: 1, Text: "   "},
		{Start: 1, End: 2, Text: "hello"},
	}

	cues := BuildCues(segments)
	if len(cues) != 1 {
		t.Fatalf("expected 1 cue, got %d", len(cues))
	}
	if cues[0].Text() != "hello" {
		t.Errorf("unexpected cue text %q", cues[0].Text())
	}
}

func TestAdjustCuesResolvesOverlaps(t *testing.T) {
	cues := []models.SubtitleCue{
		{Start: 0.0, End: 1.0, Words: []string{"a"}},
		{Start: 0.5, End: 1.5, Words: []string{"b"}}, // overlaps the first
		{Start: 3.0, End: 4.0, Words: []string{"c"}}, // clear gap
	}

	adjusted, cursor := AdjustCues(cues, 0)
	if len(adjusted) != 3 {
		t.Fatalf("expected 3 cues, got %d", len(adjusted))
	}

	for i := 1; i < len(adjusted); i++ {
		if adjusted[i].Start < adjusted[i-1].End {
			t.Errorf("cue %d starts at %.2f before previous end %.2f",
				i, adjusted[i].Start, adjusted[i-1].End)
		}
	}

	// Each cue keeps its duration minus the trailing gap
	for i, cue := range adjusted {
		origDur := cues[i].End - cues[i].Start
		if !closeTo(cue.End-cue.Start, origDur-0.1) {
			t.Errorf("cue %d duration: expected %.2f, got %.2f",
				i, origDur-0.1, cue.End-cue.Start)
		}
	}

	// Overlapping cue is pushed to the previous adjusted end
	if !closeTo(adjusted[1].Start, adjusted[0].End) {
		t.Errorf("cue 1 start: expected %.2f, got %.2f", adjusted[0].End, adjusted[1].Start)
	}

	// Cue with a clear gap keeps its own start
	if !closeTo(adjusted[2].Start, 3.0) {
		t.Errorf("cue 2 start: expected 3.00, got %.2f", adjusted[2].Start)
	}

	if !closeTo(cursor, adjusted[2].End) {
		t.Errorf("cursor: expected %.2f, got %.2f", adjusted[2].End, cursor)
	}
}

func TestAdjustCuesRespectsInitialCursor(t *testing.T) {
	cues := []models.SubtitleCue{
		{Start: 0.0, End: 2.0, Words: []string{"late"}},
	}

	adjusted, _ := AdjustCues(cues, 5.0)
	if !closeTo(adjusted[0].Start, 5.0) {
		t.Errorf("expected start pushed to 5.00, got %.2f", adjusted[0].Start)
	}
	if !closeTo(adjusted[0].End, 6.9) {
		t.Errorf("expected end 6.90, got %.2f", adjusted[0].End)
	}
}

func TestAdjustCuesClampsShortCues(t *testing.T) {
	// A cue shorter than the trailing gap must not end before it starts
	// or drag the cursor backwards past the previous cue.
	cues := []models.SubtitleCue{
		{Start: 0.0, End: 1.0, Words: []string{"a"}},
		{Start: 1.0, End: 1.05, Words: []string{"b"}},
		{Start: 1.05, End: 2.05, Words: []string{"c"}},
	}

	adjusted, cursor := AdjustCues(cues, 0)

	for i, cue := range adjusted {
		if cue.End < cue.Start {
			t.Errorf("cue %d has negative duration: [%.3f, %.3f]", i, cue.Start, cue.End)
		}
	}

	// The short cue collapses to zero duration at its start
	if !closeTo(adjusted[1].End, adjusted[1].Start) {
		t.Errorf("short cue should clamp to zero duration, got [%.3f, %.3f]",
			adjusted[1].Start, adjusted[1].End)
	}

	// Ordering still holds across the clamped cue
	for i := 1; i < len(adjusted); i++ {
		if adjusted[i].Start < adjusted[i-1].End {
			t.Errorf("cue %d starts at %.3f before previous end %.3f",
				i, adjusted[i].Start, adjusted[i-1].End)
		}
	}

	if cursor < adjusted[1].End {
		t.Errorf("cursor %.3f regressed behind cue end %.3f", cursor, adjusted[1].End)
	}
}

func TestAdjustCuesDoesNotMutateInput(t *testing.T) {
	cues := []models.SubtitleCue{
		{Start: 1.0, End: 2.0, Words: []string{"x"}},
	}

	AdjustCues(cues, 0)
	if cues[0].Start != 1.0 || cues[0].End != 2.0 {
		t.Error("input cues were mutated")
	}
}

func TestWriteASSSubtitles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subs.ass")
	cues := []models.SubtitleCue{
		{Start: 0, End: 1.5, Words: []string{"hello", "there"}},
		{Start: 1.5, End: 3, Words: []string{"world"}},
	}

	if err := WriteASSSubtitles(cues, path); err != nil {
		t.Fatalf("WriteASSSubtitles failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read subtitle file: %v", err)
	}
	content := string(data)

	for _, want := range []string{
		"PlayResX: 1080",
		"PlayResY: 1920",
		"Style: Default,Arial,72",
		"Dialogue: 0,0:00:00.00,0:00:01.50,Default,,0,0,0,,hello there",
		"Dialogue: 0,0:00:01.50,0:00:03.00,Default,,0,0,0,,world",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("subtitle file missing %q", want)
		}
	}
}

func TestWriteASSSubtitlesRejectsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subs.ass")
	if err := WriteASSSubtitles(nil, path); err == nil {
		t.Error("expected error for empty cue list")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("no file should be written for empty cue list")
	}
}

func TestFormatASSTime(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "0:00:00.00"},
		{1.5, "0:00:01.50"},
		{61.25, "0:01:01.25"},
		{3661.75, "1:01:01.75"},
		{-2, "0:00:00.00"},
	}

	for _, tt := range tests {
		if got := formatASSTime(tt.seconds); got != tt.want {
			t.Errorf("formatASSTime(%v) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestEscapeASSText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain text", "plain text"},
		{"{\\b1}styled{\\b0}", "(\\\\b1)styled(\\\\b0)"},
		{"line\nbreak", "line break"},
	}

	for _, tt := range tests {
		if got := escapeASSText(tt.in); got != tt.want {
			t.Errorf("escapeASSText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func closeTo(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}
