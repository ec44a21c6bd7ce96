package worker

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/bobarin/storyreel/internal/db"
	"github.com/bobarin/storyreel/internal/models"
	"github.com/bobarin/storyreel/internal/progress"
	"github.com/bobarin/storyreel/internal/services"
	"github.com/bobarin/storyreel/internal/storage"
	"github.com/google/uuid"
)

// Pipeline runs one generation job end to end. Steps are strictly
// sequential and every external call blocks until it completes; there is
// no cancellation once a job starts beyond the passed context, and no
// retries — a transient provider failure fails the whole job.
type Pipeline struct {
	db             *db.DB
	storage        *storage.Storage
	openai         *services.OpenAIService
	ffmpeg         *services.FFmpegService
	hub            *progress.Hub
	backgroundsDir string
}

func NewPipeline(
	database *db.DB,
	stor *storage.Storage,
	openaiSvc *services.OpenAIService,
	ffmpegSvc *services.FFmpegService,
	hub *progress.Hub,
	backgroundsDir string,
) *Pipeline {
	return &Pipeline{
		db:             database,
		storage:        stor,
		openai:         openaiSvc,
		ffmpeg:         ffmpegSvc,
		hub:            hub,
		backgroundsDir: backgroundsDir,
	}
}

// Run executes the full job: rewrite -> narrate -> adjust background ->
// transcribe -> composite. On success the final video is the only artifact
// published to the served directory besides the narration audio; on failure
// no partial render survives and the error carries the failed stage.
func (p *Pipeline) Run(ctx context.Context, req models.GenerationRequest) (*models.GenerationResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	jobTag := uuid.New().String()[:8]

	// Story rewrite — degradable: provider failure falls back to the
	// original story and the job carries on.
	p.hub.Log("Log: Reworking story with product placement...")
	finalBody, rewriteDegraded := p.openai.RewriteStory(ctx, req.Body, req.Product)
	if rewriteDegraded {
		p.hub.Log("Log: Story rewrite degraded — using the original story text.")
	}

	// Persist the story row (append-only, optional — a failed insert is
	// logged but never fails the render).
	p.persistStory(ctx, req, finalBody)

	p.hub.Log("Log: Generating text-to-speech for title...")
	titleAudioPath, err := p.openai.Synthesize(ctx, req.Title, req.Voice, "mp3")
	if err != nil {
		p.hub.Log(fmt.Sprintf("Error during generation: title speech synthesis failed: %v", err))
		return nil, fmt.Errorf("title speech synthesis failed: %w", err)
	}

	p.hub.Log("Log: Generating text-to-speech for story...")
	storyAudioPath, err := p.openai.Synthesize(ctx, finalBody, req.Voice, "mp3")
	if err != nil {
		p.hub.Log(fmt.Sprintf("Error during generation: story speech synthesis failed: %v", err))
		return nil, fmt.Errorf("story speech synthesis failed: %w", err)
	}
	p.hub.Log(fmt.Sprintf("Log: Audio paths verified. Title audio path: %s, Story audio path: %s",
		titleAudioPath, storyAudioPath))

	titleDuration, err := p.ffmpeg.GetMediaDuration(ctx, titleAudioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to measure title narration: %w", err)
	}
	storyDuration, err := p.ffmpeg.GetMediaDuration(ctx, storyAudioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to measure story narration: %w", err)
	}

	backgroundPath := filepath.Join(p.backgroundsDir, req.Background.Filename())
	if _, err := os.Stat(backgroundPath); err != nil {
		return nil, fmt.Errorf("background video %s unavailable: %w", req.Background, err)
	}
	p.hub.Log(fmt.Sprintf("Log: Video file selected: %s", backgroundPath))

	// Adjust the background to 9:16 at the story narration's length.
	p.hub.Log("Log: Adjusting background video...")
	adjustedPath := p.ffmpeg.CreateTempFile(fmt.Sprintf("adjusted_%s.mp4", jobTag))
	defer p.ffmpeg.Cleanup(adjustedPath)

	if err := p.ffmpeg.AdjustVideo(ctx, backgroundPath, storyDuration, adjustedPath); err != nil {
		p.hub.Log(fmt.Sprintf("Error during generation: video adjustment failed: %v", err))
		return nil, fmt.Errorf("video adjustment failed: %w", err)
	}

	// Subtitles — degradable: a transcription failure renders the video
	// without captions rather than aborting the job.
	p.hub.Log("Log: Transcribing audio to generate subtitles...")
	subtitlePath, subtitlesDegraded := p.buildSubtitles(ctx, storyAudioPath, jobTag)
	if subtitlePath != "" {
		defer p.ffmpeg.Cleanup(subtitlePath)
	}
	if subtitlesDegraded {
		p.hub.Log("Log: Subtitle generation degraded — rendering without captions.")
	}

	// Compositing: title card segment, subtitled story segment, concat.
	p.hub.Log("Log: Starting overlay of text on video...")

	titleSegPath := p.ffmpeg.CreateTempFile(fmt.Sprintf("title_seg_%s.mp4", jobTag))
	storySegPath := p.ffmpeg.CreateTempFile(fmt.Sprintf("story_seg_%s.mp4", jobTag))
	defer p.ffmpeg.Cleanup(titleSegPath, storySegPath)

	card := models.OverlayCard{
		TitleText:        req.Title,
		Username:         req.Username,
		ProfileImagePath: req.ProfileImagePath,
	}

	if err := p.ffmpeg.RenderTitleSegment(ctx, adjustedPath, titleAudioPath, card, titleDuration, titleSegPath); err != nil {
		p.hub.Log(fmt.Sprintf("Error overlaying text on video: %v", err))
		return nil, fmt.Errorf("title segment render failed: %w", err)
	}

	if err := p.ffmpeg.RenderStorySegment(ctx, adjustedPath, storyAudioPath, subtitlePath, storyDuration, storySegPath); err != nil {
		p.hub.Log(fmt.Sprintf("Error overlaying text on video: %v", err))
		return nil, fmt.Errorf("story segment render failed: %w", err)
	}

	finalPath := p.storage.UniquePath("reel", "mp4")
	if err := p.ffmpeg.ConcatenateSegments(ctx, []string{titleSegPath, storySegPath}, finalPath); err != nil {
		p.hub.Log(fmt.Sprintf("Error overlaying text on video: %v", err))
		return nil, fmt.Errorf("final concatenation failed: %w", err)
	}

	videoURL := p.storage.FileURL(finalPath)
	p.hub.Log(fmt.Sprintf("Log: Video generated successfully. Final video path: %s", finalPath))
	p.hub.VideoGenerated(videoURL)

	return &models.GenerationResult{
		FinalBody:         finalBody,
		Title:             req.Title,
		TitleAudioPath:    titleAudioPath,
		StoryAudioPath:    storyAudioPath,
		VideoURL:          videoURL,
		RewriteDegraded:   rewriteDegraded,
		SubtitlesDegraded: subtitlesDegraded,
	}, nil
}

// buildSubtitles transcribes the story narration and writes the adjusted
// cues to an ASS file. Returns ("", true) on any failure or empty
// transcript — the caller renders captionless.
func (p *Pipeline) buildSubtitles(ctx context.Context, storyAudioPath, jobTag string) (string, bool) {
	segments, err := p.openai.Transcribe(ctx, storyAudioPath)
	if err != nil {
		log.Printf("[Worker] Transcription failed, rendering without subtitles: %v", err)
		return "", true
	}

	cues := services.BuildCues(segments)
	if len(cues) == 0 {
		log.Printf("[Worker] Transcript produced no cues, rendering without subtitles")
		return "", true
	}

	// The cue cursor starts at zero for every job; it is never shared
	// across concurrent generations.
	adjusted, _ := services.AdjustCues(cues, 0)

	subtitlePath := p.ffmpeg.CreateTempFile(fmt.Sprintf("subs_%s.ass", jobTag))
	if err := services.WriteASSSubtitles(adjusted, subtitlePath); err != nil {
		log.Printf("[Worker] Failed to write subtitle file, rendering without: %v", err)
		return "", true
	}

	return subtitlePath, false
}

// persistStory appends the story row tied to the requesting user. An
// unknown user_id drops the association rather than failing the insert.
func (p *Pipeline) persistStory(ctx context.Context, req models.GenerationRequest, finalBody string) {
	if p.db == nil {
		return
	}

	userID := req.UserID
	if userID != nil {
		if _, err := p.db.GetUser(ctx, *userID); err != nil {
			log.Printf("[Worker] Unknown user %s, persisting story unowned: %v", *userID, err)
			userID = nil
		}
	}

	story := &models.Story{
		ID:            uuid.New(),
		UserID:        userID,
		Title:         req.Title,
		Body:          req.Body,
		RewrittenBody: &finalBody,
	}
	if err := p.db.CreateStory(ctx, story); err != nil {
		log.Printf("[Worker] Failed to persist story (continuing): %v", err)
	}
}
