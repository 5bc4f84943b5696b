package history

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/lotto-checker/internal/ticket"
)

// IDGenerator generates unique IDs for entries
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (uuidGenerator) Generate() string {
	return uuid.New().String()
}

type defaultTimeSource struct{}

func (defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service records analysed tickets and serves them back
type Service struct {
	db          DB
	storage     Storage
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time source
func NewService(db DB, storage Storage) *Service {
	return NewServiceWithDeps(db, storage, uuidGenerator{}, defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, storage Storage, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		storage:     storage,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// Record stores the ticket image and its analysis
func (s *Service) Record(ctx context.Context, image []byte, result *ticket.LottoResult) error {
	if result == nil {
		return fmt.Errorf("nothing to record")
	}
	id := s.idGenerator.Generate()

	savedPath, err := s.storage.Save(id+".jpg", image)
	if err != nil {
		return fmt.Errorf("saving image: %w", err)
	}

	entry := &Scan{
		ID:         id,
		DrawNumber: result.DrawNumber,
		Summary:    result.Summary,
		BestRank:   result.BestRank(),
		ImageFile:  savedPath,
		Result:     result,
		CreatedAt:  s.timeSource.Now(),
	}

	if err := s.db.SaveScan(entry); err != nil {
		// Clean up file if database save fails
		s.storage.Delete(savedPath)
		return fmt.Errorf("saving entry to database: %w", err)
	}

	slog.Info("Recorded scan", "id", id, "draw", entry.DrawNumber, "best_rank", entry.BestRank)
	return nil
}

// GetScan retrieves an entry by ID
func (s *Service) GetScan(id string) (*Scan, error) {
	entry, err := s.db.GetScan(id)
	if err != nil {
		return nil, fmt.Errorf("getting entry: %w", err)
	}
	return entry, nil
}

// ListScans returns all entries, newest first
func (s *Service) ListScans() ([]*Scan, error) {
	entries, err := s.db.ListScans()
	if err != nil {
		return nil, fmt.Errorf("listing entries: %w", err)
	}
	return entries, nil
}

// GetImage retrieves the ticket image for an entry
func (s *Service) GetImage(id string) ([]byte, error) {
	entry, err := s.db.GetScan(id)
	if err != nil {
		return nil, fmt.Errorf("getting entry: %w", err)
	}
	data, err := s.storage.Get(entry.ImageFile)
	if err != nil {
		return nil, fmt.Errorf("getting entry image: %w", err)
	}
	return data, nil
}

// DeleteScan removes an entry and its image
func (s *Service) DeleteScan(id string) error {
	entry, err := s.db.GetScan(id)
	if err != nil {
		return fmt.Errorf("getting entry for deletion: %w", err)
	}

	if err := s.storage.Delete(entry.ImageFile); err != nil {
		// Log error but continue with database deletion
		slog.Warn("Failed to delete image", "filename", entry.ImageFile, "error", err)
	}

	if err := s.db.DeleteScan(id); err != nil {
		return fmt.Errorf("deleting entry from database: %w", err)
	}
	return nil
}
