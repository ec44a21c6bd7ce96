package services

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
)

// Per-request character ceiling for the speech endpoint. Longer text is
// split into word-intact chunks and synthesized one request per chunk.
const ttsMaxChars = 4096

type OpenAIService struct {
	client   *openai.Client
	audioDir string
}

func NewOpenAIService(apiKey, audioDir string) *OpenAIService {
	return &OpenAIService{
		client:   openai.NewClient(apiKey),
		audioDir: audioDir,
	}
}

// NewOpenAIServiceWithBaseURL points the client at a custom endpoint.
// Used by tests to stand up a fake provider.
func NewOpenAIServiceWithBaseURL(apiKey, baseURL, audioDir string) *OpenAIService {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return &OpenAIService{
		client:   openai.NewClientWithConfig(cfg),
		audioDir: audioDir,
	}
}

// ---------------------------------------------------------------------------
// Story rewrite — product placement via chat completion
// ---------------------------------------------------------------------------

// RewriteStory asks the model to weave the product into the story while
// preserving the original voice and events. On any failure it logs and
// returns the ORIGINAL story with degraded=true — the pipeline never blocks
// on this step, and callers can still tell fallback from full success.
func (s *OpenAIService) RewriteStory(ctx context.Context, body, product string) (string, bool) {
	if strings.TrimSpace(body) == "" || strings.TrimSpace(product) == "" {
		log.Printf("[OpenAI] Rewrite skipped: story or product is empty")
		return body, true
	}

	prompt := fmt.Sprintf(
		"Rewrite the following story to subtly incorporate the product '%s' in a way that preserves the original voice, tone, and style of the storyteller. "+
			"The product should be naturally woven into the narrative without sounding promotional or forced. The storytelling style and personal tone must be kept intact. "+
			"Do not change the events, emotions, or any important details. Ensure that the product is included as a small part of the narrative, without altering the voice or distracting the reader. "+
			"Ideally someone in the story should be using the product, but only if it fits into the narrative. "+
			"Here's the original story:\n\n%s\n\n",
		product, body,
	)

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: openai.GPT4,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are a creative writing assistant.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Temperature: 0.7,
		MaxTokens:   1000,
	})
	if err != nil {
		log.Printf("[OpenAI] Rewrite failed, returning original story: %v", err)
		return body, true
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		log.Printf("[OpenAI] Rewrite returned empty response, returning original story")
		return body, true
	}

	return resp.Choices[0].Message.Content, false
}

// ---------------------------------------------------------------------------
// Speech synthesis — chunked TTS concatenated into one audio file
// ---------------------------------------------------------------------------

// Synthesize converts text of any length into a single audio file under the
// audio directory and returns its path. Text beyond the provider ceiling is
// split on word boundaries and synthesized chunk by chunk; the raw byte
// streams are concatenated in order. Any chunk failure aborts the whole
// synthesis — no partial file is written.
func (s *OpenAIService) Synthesize(ctx context.Context, text, voice, format string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("cannot synthesize empty text")
	}
	if format == "" {
		format = "mp3"
	}

	chunks := SplitText(text, ttsMaxChars)
	log.Printf("[OpenAI] Synthesizing speech (voice=%s, %d chars, %d chunks)", voice, len(text), len(chunks))

	var audio []byte
	for i, chunk := range chunks {
		resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
			Model:          openai.TTSModel1,
			Input:          chunk,
			Voice:          openai.SpeechVoice(voice),
			ResponseFormat: openai.SpeechResponseFormat(format),
		})
		if err != nil {
			return "", fmt.Errorf("speech request failed for chunk %d/%d: %w", i+1, len(chunks), err)
		}

		data, err := io.ReadAll(resp)
		resp.Close()
		if err != nil {
			return "", fmt.Errorf("failed to read speech response for chunk %d/%d: %w", i+1, len(chunks), err)
		}
		if len(data) == 0 {
			return "", fmt.Errorf("speech endpoint returned empty audio for chunk %d/%d", i+1, len(chunks))
		}

		audio = append(audio, data...)
	}

	if err := os.MkdirAll(s.audioDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create audio dir: %w", err)
	}

	outPath := filepath.Join(s.audioDir, fmt.Sprintf("speech_%s.%s", uuid.New(), format))
	if err := os.WriteFile(outPath, audio, 0644); err != nil {
		return "", fmt.Errorf("failed to write audio file: %w", err)
	}

	log.Printf("[OpenAI] Speech written to %s (%d bytes)", outPath, len(audio))
	return outPath, nil
}

// SplitText splits text into chunks of at most maxChars without breaking
// words. A single word longer than maxChars is hard-split as a last resort
// so no chunk ever exceeds the ceiling.
func SplitText(text string, maxChars int) []string {
	if len(text) <= maxChars {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder

	for _, word := range strings.Fields(text) {
		// Oversized single word: flush and hard-split it
		for len(word) > maxChars {
			if current.Len() > 0 {
				chunks = append(chunks, current.String())
				current.Reset()
			}
			chunks = append(chunks, word[:maxChars])
			word = word[maxChars:]
		}

		needed := len(word)
		if current.Len() > 0 {
			needed++ // joining space
		}
		if current.Len()+needed > maxChars {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(word)
	}

	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}

	return chunks
}

// ---------------------------------------------------------------------------
// Transcription — timestamped segments for subtitle generation
// ---------------------------------------------------------------------------

// TranscriptSegment is one time-aligned span of recognized speech.
type TranscriptSegment struct {
	Start float64
	End   float64
	Text  string
}

// Transcribe runs Whisper over a finished audio file and returns its
// time-aligned segments. Recomputed from scratch on every call.
func (s *OpenAIService) Transcribe(ctx context.Context, audioPath string) ([]TranscriptSegment, error) {
	resp, err := s.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: audioPath,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("transcription failed: %w", err)
	}

	segments := make([]TranscriptSegment, 0, len(resp.Segments))
	for _, seg := range resp.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		segments = append(segments, TranscriptSegment{
			Start: seg.Start,
			End:   seg.End,
			Text:  text,
		})
	}

	log.Printf("[OpenAI] Transcribed %s: %d segments, %.1fs", audioPath, len(segments), resp.Duration)
	return segments, nil
}
