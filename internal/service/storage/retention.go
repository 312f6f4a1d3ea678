package storage

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/geongi-im/yolo-traffic-monitor/internal/config"
	"github.com/geongi-im/yolo-traffic-monitor/internal/dto"
	"github.com/geongi-im/yolo-traffic-monitor/internal/logger"
	"github.com/geongi-im/yolo-traffic-monitor/internal/repository"
)

// RetentionService keeps at most maxResults catalogued artifacts, deleting the oldest.
type RetentionService struct {
	repo       repository.ArtifactRepository
	maxResults int
	interval   time.Duration
	logger     *logger.Logger
}

func NewRetentionService(config *config.Config, repo repository.ArtifactRepository, logger *logger.Logger) *RetentionService {
	return &RetentionService{
		repo:       repo,
		maxResults: config.MaxResults,
		interval:   config.RetentionInterval,
		logger:     logger,
	}
}

// Run starts a ticker loop that periodically prunes old artifacts until ctx ends.
func (s *RetentionService) Run(ctx context.Context) {
	if s.interval <= 0 || s.maxResults <= 0 {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Prune(); err != nil {
				s.logger.Error("Retention sweep failed: %v", err)
			}
		}
	}
}

// Prune removes every artifact beyond the newest maxResults, file and record.
func (s *RetentionService) Prune() (int, error) {
	if s.maxResults <= 0 {
		return 0, nil
	}
	excess, err := s.repo.GetAll(&dto.ArtifactFilter{Offset: s.maxResults})
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, a := range excess {
		if err := os.Remove(a.FilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warning("Error deleting %s: %v", a.FilePath, err)
			continue
		}
		if err := s.repo.DeleteByFilename(a.Filename); err != nil {
			s.logger.Error("Error deleting %s from database: %v", a.Filename, err)
			continue
		}
		removed++
	}

	if removed > 0 {
		s.logger.Info("Retention removed %d old artifacts", removed)
	}
	return removed, nil
}
