package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"

	"ighashtag/pkg/logger"
)

// CurrentVersion is the checkpoint file format version
const CurrentVersion = 1

// Checkpoint records an actor run that was submitted but not yet collected
type Checkpoint struct {
	InvocationID string    `json:"invocation_id"`
	RunID        string    `json:"run_id"`
	Hashtags     []string  `json:"hashtags"`
	ResultsLimit int       `json:"results_limit"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Version      int       `json:"version"`
}

// Matches reports whether the checkpoint was made for the same request
func (c *Checkpoint) Matches(hashtags []string, resultsLimit int) bool {
	if c == nil || c.ResultsLimit != resultsLimit || len(c.Hashtags) != len(hashtags) {
		return false
	}
	for i := range hashtags {
		if c.Hashtags[i] != hashtags[i] {
			return false
		}
	}
	return true
}

// Manager handles checkpoint operations
type Manager struct {
	checkpointPath string
	logger         logger.Logger
}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9_+.-]+`)

// Key derives a checkpoint file key from a scrape request
func Key(hashtags []string, resultsLimit int) string {
	key := strings.Join(hashtags, "+") + "_" + strconv.Itoa(resultsLimit)
	return unsafeKeyChars.ReplaceAllString(key, "_")
}

// NewManager creates a checkpoint manager under the user data directory
func NewManager(key string, log logger.Logger) (*Manager, error) {
	dataDir, err := getDataDirectory()
	if err != nil {
		return nil, fmt.Errorf("failed to get data directory: %w", err)
	}
	return NewManagerInDir(filepath.Join(dataDir, "checkpoints"), key, log)
}

// NewManagerInDir creates a checkpoint manager storing files in dir
func NewManagerInDir(dir, key string, log logger.Logger) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints directory: %w", err)
	}
	if log == nil {
		log = logger.GetLogger()
	}

	return &Manager{
		checkpointPath: filepath.Join(dir, fmt.Sprintf("%s.checkpoint.json", key)),
		logger:         log,
	}, nil
}

// Path returns the checkpoint file location
func (m *Manager) Path() string {
	return m.checkpointPath
}

// Create records a freshly submitted run
func (m *Manager) Create(invocationID, runID string, hashtags []string, resultsLimit int) (*Checkpoint, error) {
	now := time.Now()
	checkpoint := &Checkpoint{
		InvocationID: invocationID,
		RunID:        runID,
		Hashtags:     append([]string(nil), hashtags...),
		ResultsLimit: resultsLimit,
		Status:       "READY",
		CreatedAt:    now,
		UpdatedAt:    now,
		Version:      CurrentVersion,
	}

	if err := m.Save(checkpoint); err != nil {
		return nil, fmt.Errorf("failed to save initial checkpoint: %w", err)
	}

	m.logger.InfoWithFields("Checkpoint created", map[string]interface{}{
		"run_id": runID,
		"path":   m.checkpointPath,
	})

	return checkpoint, nil
}

// Load loads an existing checkpoint. It returns nil, nil when none exists.
func (m *Manager) Load() (*Checkpoint, error) {
	data, err := os.ReadFile(m.checkpointPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}

	var checkpoint Checkpoint
	if err := json.Unmarshal(data, &checkpoint); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	if checkpoint.Version != CurrentVersion {
		return nil, fmt.Errorf("unsupported checkpoint version %d", checkpoint.Version)
	}

	m.logger.InfoWithFields("Checkpoint loaded", map[string]interface{}{
		"run_id":     checkpoint.RunID,
		"status":     checkpoint.Status,
		"updated_at": checkpoint.UpdatedAt,
	})

	return &checkpoint, nil
}

// Save saves the checkpoint to disk atomically
func (m *Manager) Save(checkpoint *Checkpoint) error {
	checkpoint.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(checkpoint, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	tempPath := m.checkpointPath + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}

	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}

	if err := os.Rename(tempPath, m.checkpointPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}

	m.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"run_id": checkpoint.RunID,
		"status": checkpoint.Status,
	})

	return nil
}

// UpdateStatus stores the latest observed run status
func (m *Manager) UpdateStatus(checkpoint *Checkpoint, status string) error {
	if checkpoint.Status == status {
		return nil
	}
	checkpoint.Status = status
	return m.Save(checkpoint)
}

// Delete removes the checkpoint file
func (m *Manager) Delete() error {
	if err := os.Remove(m.checkpointPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}

	m.logger.Debug("Checkpoint deleted")
	return nil
}

// getDataDirectory returns the appropriate data directory for the current OS
func getDataDirectory() (string, error) {
	var dataDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, "Library", "Application Support", "ighashtag")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		dataDir = filepath.Join(appData, "ighashtag")
	default:
		// XDG_DATA_HOME, falling back to ~/.local/share
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			dataDir = filepath.Join(xdgDataHome, "ighashtag")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dataDir = filepath.Join(home, ".local", "share", "ighashtag")
		}
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}

	return dataDir, nil
}
