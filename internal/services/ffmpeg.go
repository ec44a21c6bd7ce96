package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/bobarin/storyreel/internal/models"
)

// Output rendering constants — vertical short-form (1080x1920)
const (
	outputWidth  = 1080
	outputHeight = 1920

	// Title card layout, sized for the 1080x1920 frame
	cardX       = 90
	cardWidth   = 900
	cardHeight  = 400
	cardPadding = 20
	profPicSize = 140

	usernameFontSize = 36
	titleFontSize    = 42
	titleLineHeight  = 52
	titleWrapColumns = 32
	overlayFontName  = "Arial"
)

// ---------------------------------------------------------------------------
// FFmpegService
// ---------------------------------------------------------------------------

type FFmpegService struct {
	tempDir string
}

func NewFFmpegService(tempDir string) *FFmpegService {
	// Create temp directory if it doesn't exist
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		panic(fmt.Sprintf("failed to create temp dir: %v", err))
	}

	return &FFmpegService{
		tempDir: tempDir,
	}
}

// run executes an ffmpeg command and removes the output file on failure so
// a partial render never survives in the artifacts directory.
func (s *FFmpegService) run(ctx context.Context, outputPath string, args []string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		os.Remove(outputPath)
		return err
	}
	return nil
}

// ---------------------------------------------------------------------------
// Probing
// ---------------------------------------------------------------------------

// GetMediaDuration returns the duration of an audio or video file in seconds.
func (s *FFmpegService) GetMediaDuration(ctx context.Context, path string) (float64, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}

	cmd := exec.CommandContext(ctx, "ffprobe", args...)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration failed: %w", err)
	}

	var duration float64
	if _, err := fmt.Sscanf(strings.TrimSpace(string(output)), "%f", &duration); err != nil {
		return 0, fmt.Errorf("failed to parse duration: %w", err)
	}

	return duration, nil
}

// GetVideoDimensions returns the pixel width and height of the first video stream.
func (s *FFmpegService) GetVideoDimensions(ctx context.Context, path string) (int, int, error) {
	args := []string{
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-of", "csv=s=x:p=0",
		path,
	}

	cmd := exec.CommandContext(ctx, "ffprobe", args...)
	output, err := cmd.Output()
	if err != nil {
		return 0, 0, fmt.Errorf("ffprobe dimensions failed: %w", err)
	}

	var w, h int
	if _, err := fmt.Sscanf(strings.TrimSpace(string(output)), "%dx%d", &w, &h); err != nil {
		return 0, 0, fmt.Errorf("failed to parse dimensions %q: %w", strings.TrimSpace(string(output)), err)
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("invalid dimensions %dx%d", w, h)
	}

	return w, h, nil
}

// ---------------------------------------------------------------------------
// Video adjustment — crop to 9:16, resize to 1080x1920, loop/trim to target
// ---------------------------------------------------------------------------

// CropWindow is a centered crop region within a source frame.
type CropWindow struct {
	Width  int
	Height int
	X      int
	Y      int
}

// ComputeCrop returns the centered 9:16 crop for a source frame. Frames
// wider than 9:16 lose their sides; narrower or equal frames lose top and
// bottom.
func ComputeCrop(width, height int) CropWindow {
	if float64(width)/float64(height) > 9.0/16.0 {
		cropW := int(9.0 / 16.0 * float64(height))
		return CropWindow{Width: cropW, Height: height, X: (width - cropW) / 2, Y: 0}
	}
	cropH := int(16.0 / 9.0 * float64(width))
	return CropWindow{Width: width, Height: cropH, X: 0, Y: (height - cropH) / 2}
}

// LoopCount returns how many copies of a clip must be concatenated to cover
// the target duration before trimming: floor(target/native)+1 when the clip
// is shorter than the target, otherwise 1.
func LoopCount(nativeDuration, targetDuration float64) int {
	if nativeDuration <= 0 || nativeDuration >= targetDuration {
		return 1
	}
	return int(targetDuration/nativeDuration) + 1
}

// AdjustVideo reshapes the background video to a 1080x1920 9:16 frame and
// loops or trims it to exactly targetDuration seconds. The output carries
// no audio track — narration is attached during compositing.
func (s *FFmpegService) AdjustVideo(ctx context.Context, inputPath string, targetDuration float64, outputPath string) error {
	width, height, err := s.GetVideoDimensions(ctx, inputPath)
	if err != nil {
		return fmt.Errorf("failed to probe background video: %w", err)
	}

	nativeDuration, err := s.GetMediaDuration(ctx, inputPath)
	if err != nil {
		return fmt.Errorf("failed to probe background duration: %w", err)
	}

	crop := ComputeCrop(width, height)
	loops := LoopCount(nativeDuration, targetDuration)

	vf := fmt.Sprintf("crop=%d:%d:%d:%d,scale=%d:%d",
		crop.Width, crop.Height, crop.X, crop.Y, outputWidth, outputHeight)

	log.Printf("[FFmpeg] Adjusting %s: %dx%d -> crop %dx%d@(%d,%d), %.1fs native, %.1fs target, %d loops",
		inputPath, width, height, crop.Width, crop.Height, crop.X, crop.Y, nativeDuration, targetDuration, loops)

	args := []string{
		"-stream_loop", fmt.Sprintf("%d", loops-1),
		"-i", inputPath,
		"-t", fmt.Sprintf("%.3f", targetDuration),
		"-vf", vf,
		"-an",
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-y",
		outputPath,
	}

	if err := s.run(ctx, outputPath, args); err != nil {
		return fmt.Errorf("ffmpeg adjust failed: %w", err)
	}

	return nil
}

// ---------------------------------------------------------------------------
// Compositing — title card segment, subtitled story segment, concatenation
// ---------------------------------------------------------------------------

// RenderTitleSegment composites the profile-style overlay card onto the
// adjusted video for the duration of the title narration and attaches that
// narration as the segment's audio track.
func (s *FFmpegService) RenderTitleSegment(ctx context.Context, videoPath, audioPath string, card models.OverlayCard, duration float64, outputPath string) error {
	filter := buildTitleCardFilter(card)

	log.Printf("[FFmpeg] Rendering title segment (%.1fs, user=@%s)", duration, card.Username)

	args := []string{
		"-i", videoPath,
		"-i", card.ProfileImagePath,
		"-i", audioPath,
		"-filter_complex", filter,
		"-map", "[v]",
		"-map", "2:a",
		"-t", fmt.Sprintf("%.3f", duration),
		"-c:v", "libx264",
		"-c:a", "aac",
		"-pix_fmt", "yuv420p",
		"-y",
		outputPath,
	}

	if err := s.run(ctx, outputPath, args); err != nil {
		return fmt.Errorf("ffmpeg title segment failed: %w", err)
	}

	return nil
}

// buildTitleCardFilter assembles the filter graph for the overlay card:
// a white panel (drawbox), the profile image scaled to a fixed height, the
// @username, and the title text wrapped to fit the panel's free width.
func buildTitleCardFilter(card models.OverlayCard) string {
	cardY := (outputHeight - cardHeight) / 2
	picX := cardX + cardPadding
	picY := cardY + (cardHeight-profPicSize)/2
	textX := picX + profPicSize + cardPadding
	usernameY := picY

	var sb strings.Builder

	// Scale the uploaded profile picture to the fixed card height
	sb.WriteString(fmt.Sprintf("[1:v]scale=%d:%d[pic];", profPicSize, profPicSize))

	// Panel background
	sb.WriteString(fmt.Sprintf("[0:v]drawbox=x=%d:y=%d:w=%d:h=%d:color=white@0.95:t=fill[bg];",
		cardX, cardY, cardWidth, cardHeight))

	// Profile picture over the panel
	sb.WriteString(fmt.Sprintf("[bg][pic]overlay=%d:%d[base];", picX, picY))

	// Username, then the wrapped title lines beneath it
	sb.WriteString(fmt.Sprintf("[base]drawtext=font='%s':text='%s':fontsize=%d:fontcolor=black:x=%d:y=%d",
		overlayFontName, escapeDrawtext("@"+card.Username), usernameFontSize, textX, usernameY))

	titleY := usernameY + usernameFontSize + cardPadding/2
	for _, line := range WrapText(card.TitleText, titleWrapColumns) {
		sb.WriteString(fmt.Sprintf(",drawtext=font='%s':text='%s':fontsize=%d:fontcolor=black:x=%d:y=%d",
			overlayFontName, escapeDrawtext(line), titleFontSize, textX, titleY))
		titleY += titleLineHeight
	}

	sb.WriteString("[v]")
	return sb.String()
}

// RenderStorySegment burns the subtitle file into the adjusted video for
// the duration of the story narration and attaches that narration as the
// segment's audio track. An empty subtitlePath renders without captions.
func (s *FFmpegService) RenderStorySegment(ctx context.Context, videoPath, audioPath, subtitlePath string, duration float64, outputPath string) error {
	args := []string{
		"-i", videoPath,
		"-i", audioPath,
	}

	if subtitlePath != "" {
		escapedPath := escapeFFmpegFilterPath(subtitlePath)
		args = append(args, "-vf", fmt.Sprintf("ass='%s'", escapedPath))
		log.Printf("[FFmpeg] Burning in subtitles from %s", subtitlePath)
	} else {
		log.Printf("[FFmpeg] Rendering story segment without subtitles")
	}

	args = append(args,
		"-map", "0:v",
		"-map", "1:a",
		"-t", fmt.Sprintf("%.3f", duration),
		"-c:v", "libx264",
		"-c:a", "aac",
		"-pix_fmt", "yuv420p",
		"-y",
		outputPath,
	)

	if err := s.run(ctx, outputPath, args); err != nil {
		return fmt.Errorf("ffmpeg story segment failed: %w", err)
	}

	return nil
}

// ConcatenateSegments combines rendered segments, in order, into one video.
func (s *FFmpegService) ConcatenateSegments(ctx context.Context, segmentPaths []string, outputPath string) error {
	if len(segmentPaths) == 0 {
		return fmt.Errorf("no segments to concatenate")
	}

	// Create a concat list file
	listPath := filepath.Join(s.tempDir, fmt.Sprintf("concat_%s.txt", filepath.Base(outputPath)))
	f, err := os.Create(listPath)
	if err != nil {
		return fmt.Errorf("failed to create concat list: %w", err)
	}

	for _, path := range segmentPaths {
		// Write in FFmpeg concat format
		fmt.Fprintf(f, "file '%s'\n", path)
	}
	f.Close()
	defer os.Remove(listPath)

	args := []string{
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		"-y",
		outputPath,
	}

	if err := s.run(ctx, outputPath, args); err != nil {
		return fmt.Errorf("ffmpeg concatenate failed: %w", err)
	}

	return nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// WrapText breaks text into lines of at most maxColumns characters without
// splitting words. A single oversized word gets its own line.
func WrapText(text string, maxColumns int) []string {
	var lines []string
	var current strings.Builder

	for _, word := range strings.Fields(text) {
		needed := len(word)
		if current.Len() > 0 {
			needed++
		}
		if current.Len() > 0 && current.Len()+needed > maxColumns {
			lines = append(lines, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(word)
	}

	if current.Len() > 0 {
		lines = append(lines, current.String())
	}
	if len(lines) == 0 {
		lines = []string{""}
	}

	return lines
}

// escapeFFmpegFilterPath escapes special characters in file paths for FFmpeg filter syntax.
// FFmpeg filter strings treat colons, backslashes, and single quotes specially.
func escapeFFmpegFilterPath(path string) string {
	path = strings.ReplaceAll(path, "\\", "\\\\")
	path = strings.ReplaceAll(path, ":", "\\:")
	path = strings.ReplaceAll(path, "'", "'\\''")
	return path
}

// escapeDrawtext escapes text for use inside a drawtext filter argument.
func escapeDrawtext(text string) string {
	text = strings.ReplaceAll(text, "\\", "\\\\")
	text = strings.ReplaceAll(text, "'", "\\'")
	text = strings.ReplaceAll(text, ":", "\\:")
	text = strings.ReplaceAll(text, "%", "\\%")
	return text
}

// CreateTempFile creates a temporary file path in the service's temp directory
func (s *FFmpegService) CreateTempFile(filename string) string {
	return filepath.Join(s.tempDir, filename)
}

// Cleanup removes temporary files
func (s *FFmpegService) Cleanup(paths ...string) {
	for _, path := range paths {
		os.Remove(path)
	}
}
