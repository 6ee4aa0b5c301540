package handlers

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/codebuildervaibhav/meeting-transcriber/internal/queue"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/storage"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/types"
)

// GDriveHandler handles Google Drive recording links. Meet recordings land
// in the organizer's Drive, so this is the main entry point for meeting
// audio.
type GDriveHandler struct {
	workerPool  *queue.WorkerPool
	driveClient *storage.DriveClient
	tempDir     string
}

// NewGDriveHandler creates a new Google Drive handler. driveClient may be
// nil, in which case only publicly shared files can be fetched.
func NewGDriveHandler(workerPool *queue.WorkerPool, driveClient *storage.DriveClient, tempDir string) *GDriveHandler {
	return &GDriveHandler{
		workerPool:  workerPool,
		driveClient: driveClient,
		tempDir:     tempDir,
	}
}

// GDriveRequest represents the request body
type GDriveRequest struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

// Handle processes Google Drive link requests
func (h *GDriveHandler) Handle(c *fiber.Ctx) error {
	var req GDriveRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "Invalid request body",
			"code":  "ERR_INVALID_BODY",
		})
	}

	// Validate URL
	if req.URL == "" {
		return c.Status(400).JSON(fiber.Map{
			"error": "URL is required",
			"code":  "ERR_NO_URL",
		})
	}

	// Extract file ID from various Google Drive URL formats
	fileID := extractGDriveFileID(req.URL)
	if fileID == "" {
		return c.Status(400).JSON(fiber.Map{
			"error": "Invalid Google Drive URL",
			"code":  "ERR_INVALID_URL",
		})
	}

	// Default name if not provided
	if req.Name == "" {
		req.Name = "gdrive_recording"
	}

	jobID := uuid.New().String()

	tempPath, err := h.fetchRecording(jobID, fileID)
	if err != nil {
		log.Printf("Failed to fetch Drive file %s: %v", fileID, err)
		return c.Status(400).JSON(fiber.Map{
			"error": "File not accessible (may be private or doesn't exist)",
			"code":  "ERR_FILE_NOT_ACCESSIBLE",
		})
	}

	// Create and enqueue job
	job := &queue.Job{
		ID:          jobID,
		RequestName: req.Name,
		SourceType:  types.SourceGDrive,
		FilePath:    tempPath,
		CreatedAt:   time.Now(),
	}

	h.workerPool.EnqueueJob(job)

	return c.JSON(fiber.Map{
		"job_id":  jobID,
		"status":  "queued",
		"message": "Google Drive recording downloaded, processing started",
	})
}

// fetchRecording downloads the file via the authenticated Drive API when
// available, otherwise through the public export URL.
func (h *GDriveHandler) fetchRecording(jobID, fileID string) (string, error) {
	if h.driveClient != nil {
		log.Printf("Downloading from Google Drive API: %s", fileID)
		return h.driveClient.DownloadRecording(fileID, h.tempDir)
	}

	downloadURL := fmt.Sprintf("https://drive.google.com/uc?export=download&id=%s", fileID)
	log.Printf("Downloading from public Google Drive link: %s", fileID)

	resp, err := http.Get(downloadURL)
	if err != nil {
		return "", fmt.Errorf("download request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	tempPath := filepath.Join(h.tempDir, fmt.Sprintf("%s.mp4", jobID))
	out, err := os.Create(tempPath)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %v", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to write downloaded file: %v", err)
	}

	return tempPath, nil
}

// extractGDriveFileID extracts the file ID from various Google Drive URL formats
func extractGDriveFileID(url string) string {
	// Pattern 1: https://drive.google.com/file/d/{ID}/view
	re1 := regexp.MustCompile(`/file/d/([a-zA-Z0-9_-]+)`)
	if matches := re1.FindStringSubmatch(url); len(matches) > 1 {
		return matches[1]
	}

	// Pattern 2: https://drive.google.com/open?id={ID}
	re2 := regexp.MustCompile(`[?&]id=([a-zA-Z0-9_-]+)`)
	if matches := re2.FindStringSubmatch(url); len(matches) > 1 {
		return matches[1]
	}

	// Pattern 3: Direct ID (25-40 characters)
	re3 := regexp.MustCompile(`^([a-zA-Z0-9_-]{25,40})$`)
	if matches := re3.FindStringSubmatch(url); len(matches) > 1 {
		return matches[1]
	}

	return ""
}
