package ingest

import (
	"math"
	"time"

	"github.com/datachat/datachat/internal/database"
)

// Infer assigns a storage type to every column from the sample row alone.
// Later rows are never consulted, so an atypical first value decides the column type.
func Infer(sample map[string]any) map[string]database.StorageType {
	out := make(map[string]database.StorageType, len(sample))
	for column, value := range sample {
		out[column] = InferValue(value)
	}
	return out
}

func InferValue(value any) database.StorageType {
	switch typed := value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return database.Integer
	case float32:
		return inferFloat(float64(typed))
	case float64:
		return inferFloat(typed)
	case bool:
		return database.Boolean
	case time.Time:
		return database.Timestamp
	default:
		return database.Text
	}
}

func inferFloat(value float64) database.StorageType {
	if math.IsNaN(value) || math.IsInf(value, 0) || value != math.Trunc(value) {
		return database.Decimal
	}
	return database.Integer
}
