package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"live_analysis/internal/domain"
	errors2 "live_analysis/internal/errors"
)

const historyKeyPrefix = "history:"

type historyValue struct {
	Winrate   float64 `json:"winrate"`
	ScoreLead float64 `json:"score_lead"`
}

// HistoryRedisStorage keeps one hash per game, field = move number.
type HistoryRedisStorage struct {
	client redis.Cmdable
	log    *zap.SugaredLogger
	ttl    time.Duration
}

func NewHistoryRedisStorage(client redis.Cmdable, log *zap.SugaredLogger, ttl time.Duration) *HistoryRedisStorage {
	return &HistoryRedisStorage{
		client: client,
		log:    log,
		ttl:    ttl,
	}
}

func historyKey(gameID string) string {
	return historyKeyPrefix + gameID
}

func (h *HistoryRedisStorage) SaveHistory(ctx context.Context, gameID string, points []domain.HistoryPoint) error {
	if len(points) == 0 {
		return nil
	}

	values := make([]any, 0, len(points)*2)
	for _, p := range points {
		b, err := json.Marshal(historyValue{Winrate: p.Winrate, ScoreLead: p.ScoreLead})
		if err != nil {
			return fmt.Errorf("marshal history point %d: %w", p.MoveNumber, err)
		}
		values = append(values, strconv.Itoa(p.MoveNumber), string(b))
	}

	key := historyKey(gameID)
	if err := h.client.HSet(ctx, key, values...).Err(); err != nil {
		return fmt.Errorf("save history %s: %w", gameID, err)
	}
	if h.ttl > 0 {
		if err := h.client.Expire(ctx, key, h.ttl).Err(); err != nil {
			h.log.Warnw("failed to set history ttl", "game_id", gameID, "error", err)
		}
	}
	return nil
}

func (h *HistoryRedisStorage) LoadHistory(ctx context.Context, gameID string) ([]domain.HistoryPoint, error) {
	fields, err := h.client.HGetAll(ctx, historyKey(gameID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load history %s: %w", gameID, err)
	}
	if len(fields) == 0 {
		return nil, errors2.ErrHistoryNotFound
	}

	points := make([]domain.HistoryPoint, 0, len(fields))
	for field, raw := range fields {
		move, err := strconv.Atoi(field)
		if err != nil {
			h.log.Warnw("skipping malformed history field", "game_id", gameID, "field", field)
			continue
		}
		var v historyValue
		if err = json.Unmarshal([]byte(raw), &v); err != nil {
			h.log.Warnw("skipping malformed history value", "game_id", gameID, "field", field, "error", err)
			continue
		}
		points = append(points, domain.HistoryPoint{MoveNumber: move, Winrate: v.Winrate, ScoreLead: v.ScoreLead})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].MoveNumber < points[j].MoveNumber })
	return points, nil
}

func (h *HistoryRedisStorage) DeleteHistory(ctx context.Context, gameID string) error {
	return h.client.Del(ctx, historyKey(gameID)).Err()
}
