package handlers

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/codebuildervaibhav/meeting-transcriber/internal/queue"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/types"
)

// CaptureHandler pulls meeting audio out of share pages (streaming portals,
// webinar replays, video links) that don't expose a direct download.
type CaptureHandler struct {
	workerPool *queue.WorkerPool
	tempDir    string
}

// NewCaptureHandler creates a new capture handler
func NewCaptureHandler(workerPool *queue.WorkerPool, tempDir string) *CaptureHandler {
	return &CaptureHandler{
		workerPool: workerPool,
		tempDir:    tempDir,
	}
}

// CaptureRequest represents the request body
type CaptureRequest struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

// Handle processes share-link capture requests
func (h *CaptureHandler) Handle(c *fiber.Ctx) error {
	var req CaptureRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "Invalid request body",
			"code":  "ERR_INVALID_BODY",
		})
	}

	if req.URL == "" {
		return c.Status(400).JSON(fiber.Map{
			"error": "URL is required",
			"code":  "ERR_NO_URL",
		})
	}

	if req.Name == "" {
		req.Name = "captured_recording"
	}

	// Generate job ID
	jobID := uuid.New().String()
	tempPath := filepath.Join(h.tempDir, fmt.Sprintf("%s.opus", jobID))

	// Capture runs in the background; long recordings take a while
	go func() {
		if err := h.captureAudio(req.URL, tempPath); err != nil {
			log.Printf("Failed to capture audio from %s: %v", req.URL, err)
			return
		}

		// Create and enqueue job after capture completes
		job := &queue.Job{
			ID:          jobID,
			RequestName: req.Name,
			SourceType:  types.SourceCapture,
			FilePath:    tempPath,
			CreatedAt:   time.Now(),
		}

		h.workerPool.EnqueueJob(job)
	}()

	return c.JSON(fiber.Map{
		"job_id":  jobID,
		"status":  "capturing",
		"message": "Audio capture started (this may take a few minutes for long recordings)",
	})
}

// captureAudio tries to resolve the page's media element to a direct stream
// URL with headless Chrome, then falls back to yt-dlp which knows most
// hosting sites.
func (h *CaptureHandler) captureAudio(url, outputPath string) error {
	ctx, cancel := chromedp.NewContext(context.Background())
	defer cancel()

	ctx, cancel = context.WithTimeout(ctx, 30*time.Minute)
	defer cancel()

	log.Printf("Starting capture: %s", url)

	var mediaURL string
	err := chromedp.Run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.Sleep(2*time.Second), // Wait for the player to load
		chromedp.Evaluate(`
			(() => {
				const el = document.querySelector("video, audio");
				if (el && el.currentSrc && el.currentSrc.startsWith("http")) {
					return el.currentSrc;
				}
				return "";
			})()
		`, &mediaURL, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}),
	)
	if err != nil {
		log.Printf("Headless Chrome capture failed (%v), falling back to yt-dlp", err)
		return h.captureWithYtDlp(url, outputPath)
	}

	if mediaURL != "" {
		if err := downloadStream(mediaURL, outputPath); err == nil {
			log.Printf("Captured media stream directly from page")
			return nil
		}
		log.Printf("Direct stream download failed, falling back to yt-dlp")
	}

	return h.captureWithYtDlp(url, outputPath)
}

// captureWithYtDlp uses yt-dlp to download the audio track
func (h *CaptureHandler) captureWithYtDlp(url, outputPath string) error {
	log.Printf("Using yt-dlp to download: %s", url)

	cmd := exec.Command("yt-dlp",
		"-x",                     // Extract audio
		"--audio-format", "opus", // Opus format
		"-o", outputPath, // Output path
		url,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("yt-dlp failed: %v\nOutput: %s", err, string(output))
	}

	log.Printf("Audio downloaded successfully")
	return nil
}

// downloadStream saves a direct media URL to disk
func downloadStream(mediaURL, outputPath string) error {
	resp, err := http.Get(mediaURL)
	if err != nil {
		return fmt.Errorf("stream request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %v", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		os.Remove(outputPath)
		return fmt.Errorf("stream download interrupted: %v", err)
	}

	return nil
}
