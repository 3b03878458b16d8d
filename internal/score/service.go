package score

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/bloblets/arena-backend/pkg/address"
	"github.com/bloblets/arena-backend/pkg/config"
	"github.com/bloblets/arena-backend/pkg/enums"
	pkgerrors "github.com/bloblets/arena-backend/pkg/errors"
	"github.com/bloblets/arena-backend/pkg/redis"
)

const leaderboardCacheScope = "leaderboard"

// Standing is one leaderboard row as served to clients. Address is masked.
type Standing struct {
	Rank    int             `json:"rank"`
	Address string          `json:"address"`
	Balance int64           `json:"balance"`
	Tier    enums.ScoreTier `json:"tier"`
}

// Service derives display scores from ledger balances.
type Service interface {
	Tier(score int64) enums.ScoreTier
	MaskAddress(addr string) string
	Leaderboard(ctx context.Context, limit int) ([]Standing, error)
}

// ServiceParams groups dependencies for the score service.
type ServiceParams struct {
	Repo   Repository
	Cache  redis.CacheStore
	Config config.ScoreConfig
}

type service struct {
	repo     Repository
	cache    redis.CacheStore
	cacheTTL time.Duration
	maxLimit int
}

// NewService builds the score service. Cache is optional; without it every
// leaderboard call hits the database.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "score repo is required")
	}
	maxLimit := params.Config.LeaderboardMaxLimit
	if maxLimit < 1 {
		maxLimit = 100
	}
	return &service{
		repo:     params.Repo,
		cache:    params.Cache,
		cacheTTL: params.Config.LeaderboardCacheTTL,
		maxLimit: maxLimit,
	}, nil
}

// Tier maps a balance to its display rank.
func (s *service) Tier(score int64) enums.ScoreTier {
	switch {
	case score >= 1000:
		return enums.ScoreTierLegend
	case score >= 250:
		return enums.ScoreTierChampion
	case score >= 50:
		return enums.ScoreTierAdventurer
	default:
		return enums.ScoreTierRookie
	}
}

// MaskAddress elides the middle of an address for display.
func (s *service) MaskAddress(addr string) string {
	return address.Mask(addr)
}

// Leaderboard returns the top balances, masked and tiered. Results are cached
// per limit for a short window, so standings can lag writes by up to the TTL.
func (s *service) Leaderboard(ctx context.Context, limit int) ([]Standing, error) {
	if limit < 1 {
		limit = s.maxLimit
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}

	var cacheKey string
	if s.cache != nil {
		cacheKey = s.cache.CacheKey(leaderboardCacheScope, strconv.Itoa(limit))
		if payload, err := s.cache.GetCached(ctx, cacheKey); err == nil {
			var cached []Standing
			if json.Unmarshal([]byte(payload), &cached) == nil {
				return cached, nil
			}
		} else if !errors.Is(err, goredis.Nil) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read leaderboard cache")
		}
	}

	rows, err := s.repo.TopBalances(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load leaderboard")
	}

	standings := make([]Standing, 0, len(rows))
	for i, row := range rows {
		standings = append(standings, Standing{
			Rank:    i + 1,
			Address: address.Mask(row.Address),
			Balance: row.Balance,
			Tier:    s.Tier(row.Balance),
		})
	}

	if s.cache != nil {
		if payload, err := json.Marshal(standings); err == nil {
			// Cache write failures only cost the next caller a DB read.
			_ = s.cache.SetCached(ctx, cacheKey, string(payload), s.cacheTTL)
		}
	}
	return standings, nil
}
