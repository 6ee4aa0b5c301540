package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"gopkg.in/yaml.v3"

	"github.com/codebuildervaibhav/meeting-transcriber/internal/chunking"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/cleanup"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/consolidate"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/diarization"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/handlers"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/queue"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/storage"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/transcription"
)

// Config represents the application configuration
type Config struct {
	Server struct {
		Port int    `yaml:"port"`
		Host string `yaml:"host"`
	} `yaml:"server"`

	Whisper struct {
		ModelPath string `yaml:"model_path"`
	} `yaml:"whisper"`

	Models struct {
		PythonCmd       string `yaml:"python_cmd"`
		DiarizeScript   string `yaml:"diarize_script"`
		EmbeddingScript string `yaml:"embedding_script"`
		Device          string `yaml:"device"`
	} `yaml:"models"`

	Pipeline struct {
		ChunkDurationSeconds float64 `yaml:"chunk_duration_seconds"`
		OverlapSeconds       float64 `yaml:"overlap_seconds"`
		MinChunkSeconds      float64 `yaml:"min_chunk_seconds"`
		MinTurnSeconds       float64 `yaml:"min_turn_seconds"`
		SimilarityThreshold  float64 `yaml:"similarity_threshold"`
		SilenceMergeSeconds  float64 `yaml:"silence_merge_seconds"`
		ChunkWorkers         int     `yaml:"chunk_workers"`
		ChunkTimeoutMinutes  int     `yaml:"chunk_timeout_minutes"`
	} `yaml:"pipeline"`

	Workers struct {
		Count int `yaml:"count"`
	} `yaml:"workers"`

	Storage struct {
		TempDir   string `yaml:"temp_dir"`
		OutputDir string `yaml:"output_dir"`
		Database  string `yaml:"database"`
	} `yaml:"storage"`

	Cleanup struct {
		IntervalMinutes int `yaml:"interval_minutes"`
		MaxAgeHours     int `yaml:"max_age_hours"`
	} `yaml:"cleanup"`

	GoogleDrive struct {
		CredentialsFile string `yaml:"credentials_file"`
		TokenFile       string `yaml:"token_file"`
		FolderName      string `yaml:"folder_name"`
	} `yaml:"google_drive"`

	Limits struct {
		MaxFileSizeMB int `yaml:"max_file_size_mb"`
	} `yaml:"limits"`
}

func main() {
	// Load configuration
	config, err := loadConfig("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Ensure directories exist
	if err := cleanup.EnsureTempDirExists(config.Storage.TempDir); err != nil {
		log.Fatalf("Failed to create temp directory: %v", err)
	}
	if err := os.MkdirAll(config.Storage.OutputDir, 0755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	// Custom logger setup
	logBuffer := &LogBuffer{
		lines: make([]string, 0, 1000),
	}
	multiWriter := io.MultiWriter(os.Stdout, logBuffer)
	log.SetOutput(multiWriter)

	// Initialize components
	log.Println("Initializing components...")

	// Whisper transcriber
	transcriber, err := transcription.NewWhisperTranscriber(
		config.Whisper.ModelPath,
		config.Storage.TempDir,
	)
	if err != nil {
		log.Fatalf("Failed to initialize Whisper: %v", err)
	}

	// Diarization and speaker embedding models
	diarizer := diarization.NewPyannoteDiarizer(
		config.Models.PythonCmd,
		config.Models.DiarizeScript,
		config.Models.Device,
	)
	embedder := diarization.NewSpeechBrainEmbedder(
		config.Models.PythonCmd,
		config.Models.EmbeddingScript,
		config.Models.Device,
	)
	extractor := diarization.NewExtractor(embedder, config.Pipeline.MinTurnSeconds)

	// Local storage
	localStorage := storage.NewLocalStorage(config.Storage.OutputDir)

	// Google Drive client (optional - may fail if credentials not set up)
	var driveClient *storage.DriveClient
	if _, err := os.Stat(config.GoogleDrive.CredentialsFile); err == nil {
		driveClient, err = storage.NewDriveClient(
			config.GoogleDrive.CredentialsFile,
			config.GoogleDrive.TokenFile,
			config.GoogleDrive.FolderName,
		)
		if err != nil {
			log.Printf("WARNING: Google Drive not available: %v", err)
			log.Println("Transcripts will only be saved locally")
			driveClient = nil
		} else {
			log.Println("Google Drive integration enabled")
		}
	} else {
		log.Println("Google Drive credentials not found - saving locally only")
	}

	// Database
	db, err := storage.NewMetadataDB(config.Storage.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Worker pool
	pipelineCfg := queue.PipelineConfig{
		Chunking: chunking.Config{
			ChunkDuration:    config.Pipeline.ChunkDurationSeconds,
			OverlapDuration:  config.Pipeline.OverlapSeconds,
			MinChunkDuration: config.Pipeline.MinChunkSeconds,
		},
		Consolidation: consolidate.Config{
			SimilarityThreshold:   config.Pipeline.SimilarityThreshold,
			SilenceMergeThreshold: config.Pipeline.SilenceMergeSeconds,
		},
		ChunkWorkers: config.Pipeline.ChunkWorkers,
		ChunkTimeout: time.Duration(config.Pipeline.ChunkTimeoutMinutes) * time.Minute,
		TempDir:      config.Storage.TempDir,
	}

	workerPool := queue.NewWorkerPool(
		config.Workers.Count,
		transcription.FFmpegProcessor{},
		diarizer,
		extractor,
		transcriber,
		localStorage,
		driveClient,
		db,
		pipelineCfg,
	)
	workerPool.Start()

	// Cleanup scheduler
	cleanupScheduler := cleanup.NewScheduler(
		config.Storage.TempDir,
		config.Cleanup.IntervalMinutes,
		config.Cleanup.MaxAgeHours,
	)
	cleanupScheduler.Start()
	defer cleanupScheduler.Stop()

	// Create Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit: config.Limits.MaxFileSizeMB * 1024 * 1024,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	// Initialize handlers
	uploadHandler := handlers.NewUploadHandler(workerPool, config.Storage.TempDir, config.Limits.MaxFileSizeMB)
	gdriveHandler := handlers.NewGDriveHandler(workerPool, driveClient, config.Storage.TempDir)
	captureHandler := handlers.NewCaptureHandler(workerPool, config.Storage.TempDir)
	statusHandler := handlers.NewStatusHandler(workerPool)

	// Routes
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	app.Post("/upload", uploadHandler.Handle)
	app.Post("/gdrive", gdriveHandler.Handle)
	app.Post("/capture", captureHandler.Handle)

	// WebSocket route
	app.Get("/ws/status", websocket.New(statusHandler.Handle))

	// One-shot job status
	app.Get("/jobs/:id", func(c *fiber.Ctx) error {
		job := workerPool.GetJob(c.Params("id"))
		if job == nil {
			return c.Status(404).JSON(fiber.Map{"error": "Job not found"})
		}
		return c.JSON(job.Snapshot())
	})

	// List recording metadata
	app.Get("/transcripts", func(c *fiber.Ctx) error {
		limit := 50 // Default limit
		recordings, err := db.ListRecordings(limit)
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(recordings)
	})

	// Get recording metadata
	app.Get("/transcripts/:id", func(c *fiber.Ctx) error {
		recording, err := db.GetRecording(c.Params("id"))
		if err != nil {
			return c.Status(404).JSON(fiber.Map{"error": "Transcript not found"})
		}
		return c.JSON(recording)
	})

	// Get transcript text
	app.Get("/transcripts/:id/text", func(c *fiber.Ctx) error {
		jobID := c.Params("id")

		// Get metadata to find file path
		recording, err := db.GetRecording(jobID)
		if err != nil {
			return c.Status(404).JSON(fiber.Map{"error": "Transcript not found"})
		}

		localPath, ok := recording["local_path"].(string)
		if !ok || localPath == "" {
			return c.Status(404).JSON(fiber.Map{"error": "Transcript file path not found"})
		}

		// Read file content
		content, err := os.ReadFile(localPath)
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": "Failed to read transcript file"})
		}

		return c.SendString(string(content))
	})

	// Get server logs
	app.Get("/logs", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"logs": logBuffer.GetLogs(),
		})
	})

	// Start server
	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	log.Printf("Server starting on %s", addr)
	log.Println("Endpoints:")
	log.Println("   POST /upload      - Upload a meeting recording")
	log.Println("   POST /gdrive      - Process Google Drive recording link")
	log.Println("   POST /capture     - Capture audio from a share link")
	log.Println("   GET  /ws/status   - WebSocket job progress stream")
	log.Println("   GET  /jobs/:id    - Job status snapshot")
	log.Println("   GET  /transcripts - List recent transcripts")
	log.Println("   GET  /transcripts/:id/text - Get transcript text")
	log.Println("   GET  /logs        - View server logs")
	log.Println("   GET  /health      - Health check")

	// Graceful shutdown
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Println("Shutting down gracefully...")
		app.Shutdown()
	}()

	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// LogBuffer captures logs in memory
type LogBuffer struct {
	lines []string
	mu    sync.Mutex
}

func (lb *LogBuffer) Write(p []byte) (n int, err error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	// Append new line
	lb.lines = append(lb.lines, string(p))

	// Keep last 1000 lines
	if len(lb.lines) > 1000 {
		lb.lines = lb.lines[len(lb.lines)-1000:]
	}

	return len(p), nil
}

func (lb *LogBuffer) GetLogs() []string {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	// Return copy of slice
	logs := make([]string, len(lb.lines))
	copy(logs, lb.lines)
	return logs
}

// loadConfig loads configuration from YAML file
func loadConfig(path string) (*Config, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := yaml.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	return &config, nil
}
