package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/zwlabs/examtrack-backend/internal/config"
	"github.com/zwlabs/examtrack-backend/internal/model"
	"github.com/zwlabs/examtrack-backend/internal/repository"
)

// PaperService is the paper catalog consumed by the session core. Definitions
// are served from a Redis cache with PostgreSQL as the source of truth; a
// cache outage degrades to direct reads instead of failing lookups.
type PaperService struct {
	repo *repository.PaperRepository
	rdb  *redis.Client
	cfg  *config.Config
	log  zerolog.Logger
}

// NewPaperService creates a new PaperService.
func NewPaperService(repo *repository.PaperRepository, rdb *redis.Client, cfg *config.Config, log zerolog.Logger) *PaperService {
	return &PaperService{
		repo: repo,
		rdb:  rdb,
		cfg:  cfg,
		log:  log.With().Str("component", "paper_service").Logger(),
	}
}

// Get returns the paper definition for the given ID. Unknown IDs yield
// ErrPaperNotFound; any storage failure is wrapped in ErrCatalogUnavailable
// and left to the caller's retry policy.
func (s *PaperService) Get(ctx context.Context, paperID int64) (*model.Paper, error) {
	if paper := s.fromCache(ctx, paperID); paper != nil {
		return paper, nil
	}

	paper, err := s.repo.GetByID(ctx, paperID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	if paper == nil {
		return nil, ErrPaperNotFound
	}

	s.toCache(ctx, paper)
	return paper, nil
}

// GetPayload returns the taker-facing view of a published paper, answer keys
// stripped.
func (s *PaperService) GetPayload(ctx context.Context, paperID int64) (*model.PaperPayload, error) {
	paper, err := s.Get(ctx, paperID)
	if err != nil {
		return nil, err
	}
	if paper.Status != model.PaperStatusPublished {
		return nil, ErrPaperNotFound
	}
	return paper.Payload(), nil
}

// Prewarm loads all published papers into the cache before traffic arrives,
// avoiding a thundering herd of lazy loads at exam start.
func (s *PaperService) Prewarm(ctx context.Context) error {
	if s.rdb == nil {
		return nil
	}

	ids, err := s.repo.ListPublishedIDs(ctx)
	if err != nil {
		return fmt.Errorf("list published papers: %w", err)
	}

	for _, id := range ids {
		paper, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("load paper %d: %w", id, err)
		}
		if paper != nil {
			s.toCache(ctx, paper)
		}
	}

	s.log.Info().Int("papers", len(ids)).Msg("Paper cache prewarmed")
	return nil
}

// Invalidate drops a paper from the cache after it is edited or republished.
func (s *PaperService) Invalidate(ctx context.Context, paperID int64) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Del(ctx, config.CacheKey.PaperKey(paperID)).Err(); err != nil {
		s.log.Warn().Err(err).Int64("paper_id", paperID).Msg("Cache invalidation failed")
	}
}

func (s *PaperService) fromCache(ctx context.Context, paperID int64) *model.Paper {
	if s.rdb == nil {
		return nil
	}

	raw, err := s.rdb.Get(ctx, config.CacheKey.PaperKey(paperID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.log.Warn().Err(err).Int64("paper_id", paperID).Msg("Cache read failed, falling back to database")
		}
		return nil
	}

	paper := &model.Paper{}
	if err := json.Unmarshal(raw, paper); err != nil {
		s.log.Warn().Err(err).Int64("paper_id", paperID).Msg("Corrupt cache entry, falling back to database")
		return nil
	}
	return paper
}

func (s *PaperService) toCache(ctx context.Context, paper *model.Paper) {
	if s.rdb == nil {
		return
	}

	raw, err := json.Marshal(paper)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, config.CacheKey.PaperKey(paper.ID), raw, s.cfg.PaperCacheTTL).Err(); err != nil {
		s.log.Warn().Err(err).Int64("paper_id", paper.ID).Msg("Cache write failed")
	}
}
