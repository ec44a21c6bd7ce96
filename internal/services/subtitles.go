package services

import (
	"fmt"
	"os"
	"strings"

	"github.com/bobarin/storyreel/internal/models"
)

// ---------------------------------------------------------------------------
// Subtitle cues
//
// Transcript segments are split into word groups of up to three words, each
// group taking a share of the segment's time span proportional to its word
// count. Cue timing is then adjusted so no cue starts before the previous
// one has ended, with every cue trimmed by a small gap to avoid visual
// overlap. The cues burn into the story segment as centered, stroked text.
// ---------------------------------------------------------------------------

const (
	// Words shown per cue
	cueWordLimit = 3

	// Gap shaved off every cue's end during adjustment
	cueEndGap = 0.1
)

// BuildCues converts transcript segments into raw subtitle cues. Each
// segment's [start, end] span is divided across its word groups in
// proportion to word count, offset cumulatively.
func BuildCues(segments []TranscriptSegment) []models.SubtitleCue {
	var cues []models.SubtitleCue

	for _, seg := range segments {
		words := strings.Fields(seg.Text)
		if len(words) == 0 {
			continue
		}

		span := seg.End - seg.Start
		for i := 0; i < len(words); i += cueWordLimit {
			end := i + cueWordLimit
			if end > len(words) {
				end = len(words)
			}

			cues = append(cues, models.SubtitleCue{
				Start: seg.Start + (float64(i)/float64(len(words)))*span,
				End:   seg.Start + (float64(end)/float64(len(words)))*span,
				Words: words[i:end],
			})
		}
	}

	return cues
}

// AdjustCues resolves overlaps between consecutive cues. The last-end
// cursor is an explicit accumulator threaded through the list — it is
// job-scoped state, never shared across concurrent generations. Each cue
// is pushed forward to start no earlier than the previous adjusted end,
// keeps its original duration, and then loses exactly cueEndGap off its
// end (clamped so the end never lands before the start). Returns the
// adjusted copy and the final cursor position.
func AdjustCues(cues []models.SubtitleCue, lastEnd float64) ([]models.SubtitleCue, float64) {
	adjusted := make([]models.SubtitleCue, 0, len(cues))

	for _, cue := range cues {
		start := cue.Start
		if lastEnd > start {
			start = lastEnd
		}
		end := start + (cue.End - cue.Start) - cueEndGap
		// A cue shorter than the gap must not produce a negative-duration
		// event or pull the cursor backwards.
		if end < start {
			end = start
		}

		lastEnd = end
		adjusted = append(adjusted, models.SubtitleCue{
			Start: start,
			End:   end,
			Words: cue.Words,
		})
	}

	return adjusted, lastEnd
}

// ---------------------------------------------------------------------------
// ASS subtitle file generation for ffmpeg burn-in
// ---------------------------------------------------------------------------

const (
	subtitleFontName = "Arial"
	subtitleFontSize = 72

	// ASS colors are in &HAABBGGRR format (hex, note: BGR not RGB)
	assColorWhite = "&H00FFFFFF"
	assColorBlack = "&H00000000"

	subtitleOutline = 3
	subtitleMarginH = 100 // keeps caption lines off the frame edges
)

// WriteASSSubtitles renders adjusted cues as an ASS subtitle file sized for
// the 1080x1920 output: bold white text with a black stroke, centered on
// screen, one dialogue event per cue.
func WriteASSSubtitles(cues []models.SubtitleCue, outputPath string) error {
	if len(cues) == 0 {
		return fmt.Errorf("no cues to write")
	}

	var sb strings.Builder

	sb.WriteString("[Script Info]\n")
	sb.WriteString("ScriptType: v4.00+\n")
	sb.WriteString("PlayResX: 1080\n")
	sb.WriteString("PlayResY: 1920\n")
	sb.WriteString("WrapStyle: 0\n")
	sb.WriteString("ScaledBorderAndShadow: yes\n")
	sb.WriteString("\n")

	sb.WriteString("[V4+ Styles]\n")
	sb.WriteString("Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding\n")

	// Alignment 5 = middle center
	sb.WriteString(fmt.Sprintf(
		"Style: Default,%s,%d,%s,%s,%s,%s,-1,0,0,0,100,100,0,0,1,%d,0,5,%d,%d,0,1\n",
		subtitleFontName, subtitleFontSize,
		assColorWhite, assColorWhite, assColorBlack, assColorBlack,
		subtitleOutline, subtitleMarginH, subtitleMarginH,
	))

	sb.WriteString("\n")
	sb.WriteString("[Events]\n")
	sb.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")

	for _, cue := range cues {
		sb.WriteString(fmt.Sprintf(
			"Dialogue: 0,%s,%s,Default,,0,0,0,,%s\n",
			formatASSTime(cue.Start),
			formatASSTime(cue.End),
			escapeASSText(cue.Text()),
		))
	}

	if err := os.WriteFile(outputPath, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("failed to write ASS subtitle file: %w", err)
	}

	return nil
}

// escapeASSText neutralizes characters with meaning in ASS dialogue text.
func escapeASSText(text string) string {
	text = strings.ReplaceAll(text, "\\", "\\\\")
	text = strings.ReplaceAll(text, "{", "(")
	text = strings.ReplaceAll(text, "}", ")")
	text = strings.ReplaceAll(text, "\n", " ")
	return text
}

// formatASSTime converts seconds to ASS timestamp format: H:MM:SS.CC (centiseconds)
func formatASSTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}

	hours := int(seconds) / 3600
	minutes := (int(seconds) % 3600) / 60
	secs := int(seconds) % 60
	centiseconds := int((seconds - float64(int(seconds))) * 100)

	return fmt.Sprintf("%d:%02d:%02d.%02d", hours, minutes, secs, centiseconds)
}
