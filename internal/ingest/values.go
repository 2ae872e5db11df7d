package ingest

import (
	"math"
	"strconv"
	"time"

	"github.com/datachat/datachat/internal/database"
)

type bindKind int

const (
	bindText bindKind = iota
	bindInteger
	bindFloat
	bindBoolean
	bindTimestamp
	bindBlob
)

const canonicalTimeLayout = "2006-01-02 15:04:05.999999"

func bindKindFor(storage database.StorageType) bindKind {
	switch storage {
	case database.Integer:
		return bindInteger
	case database.Decimal:
		return bindFloat
	case database.Boolean:
		return bindBoolean
	case database.Timestamp:
		return bindTimestamp
	default:
		return bindText
	}
}

func CanonicalTime(value time.Time) string {
	return value.UTC().Format(canonicalTimeLayout)
}

func bindValue(kind bindKind, value any, dialect database.Dialect) any {
	if value == nil {
		return nil
	}
	if ts, ok := value.(time.Time); ok {
		if kind == bindText || dialect.Name == database.Postgres.Name {
			return CanonicalTime(ts)
		}
		return ts.UTC()
	}

	switch kind {
	case bindInteger:
		switch typed := value.(type) {
		case float64:
			if typed == math.Trunc(typed) && !math.IsInf(typed, 0) && math.Abs(typed) < 1<<63 {
				return int64(typed)
			}
		case int:
			return int64(typed)
		}
	case bindFloat:
		switch typed := value.(type) {
		case int64:
			return float64(typed)
		case int:
			return float64(typed)
		}
	case bindText:
		switch typed := value.(type) {
		case float64:
			return strconv.FormatFloat(typed, 'f', -1, 64)
		case int64:
			return strconv.FormatInt(typed, 10)
		case int:
			return strconv.Itoa(typed)
		case bool:
			return strconv.FormatBool(typed)
		case []byte:
			return string(typed)
		}
	}
	return value
}
