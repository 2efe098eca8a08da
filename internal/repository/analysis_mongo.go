package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"live_analysis/internal/domain"
	errors2 "live_analysis/internal/errors"
)

const analysesCollection = "analyses"

// AnalysisMongoStorage archives final analyses, one document per game node.
type AnalysisMongoStorage struct {
	mongo *mongo.Database
	log   *zap.SugaredLogger
}

func NewAnalysisMongoStorage(db *mongo.Database, log *zap.SugaredLogger) *AnalysisMongoStorage {
	return &AnalysisMongoStorage{
		mongo: db,
		log:   log,
	}
}

func (a *AnalysisMongoStorage) SaveAnalysis(ctx context.Context, rec domain.AnalysisRecord) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	collection := a.mongo.Collection(analysesCollection)
	filter := bson.M{
		"game_id": rec.GameID,
		"node_id": rec.NodeID,
	}
	opts := options.Replace().SetUpsert(true)

	if _, err := collection.ReplaceOne(ctx, filter, rec, opts); err != nil {
		return fmt.Errorf("save analysis %s: %w", rec.QueryID, err)
	}
	a.log.Debugw("analysis archived", "query_id", rec.QueryID, "game_id", rec.GameID)
	return nil
}

// GetAnalysis returns the newest archived analysis for a query id.
func (a *AnalysisMongoStorage) GetAnalysis(ctx context.Context, queryID string) (domain.AnalysisRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	collection := a.mongo.Collection(analysesCollection)
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})

	var rec domain.AnalysisRecord
	err := collection.FindOne(ctx, bson.M{"query_id": queryID}, opts).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.AnalysisRecord{}, errors2.ErrAnalysisNotFound
	}
	if err != nil {
		return domain.AnalysisRecord{}, fmt.Errorf("get analysis %s: %w", queryID, err)
	}
	return rec, nil
}
