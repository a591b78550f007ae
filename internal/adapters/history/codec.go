package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
)

// historyColumns is the column list shared by the SQL repositories
const historyColumns = `processing_id, sender, subject, verdict, confidence,
	legitimate_score, phishing_score, features, analyzed_at, expires_at`

// nullScore stores -Inf scores (no evidence) as NULL since SQL engines reject infinities
func nullScore(score float64) sql.NullFloat64 {
	if math.IsInf(score, 0) || math.IsNaN(score) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: score, Valid: true}
}

func scoreFromNull(n sql.NullFloat64) float64 {
	if !n.Valid {
		return math.Inf(-1)
	}
	return n.Float64
}

func encodeFeatures(features []string) (string, error) {
	if features == nil {
		features = []string{}
	}
	data, err := json.Marshal(features)
	if err != nil {
		return "", fmt.Errorf("failed to encode features: %w", err)
	}
	return string(data), nil
}

func decodeFeatures(data string) ([]string, error) {
	var features []string
	if data == "" {
		return features, nil
	}
	if err := json.Unmarshal([]byte(data), &features); err != nil {
		return nil, fmt.Errorf("failed to decode features: %w", err)
	}
	return features, nil
}
