package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/datachat/datachat/internal/errs"
	"github.com/datachat/datachat/internal/observability"
	"github.com/datachat/datachat/internal/query"
)

type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

const DefaultBaseName = "datachat"

type Artifact struct {
	FileName    string
	ContentType string
	Data        []byte
}

func ParseFormat(value string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(value))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatParquet:
		return FormatParquet, nil
	default:
		return "", errs.Newf(errs.KindValidation, "unsupported export format %q", value)
	}
}

func Export(result query.Result, format Format, baseName string) (Artifact, error) {
	if strings.TrimSpace(baseName) == "" {
		baseName = DefaultBaseName
	}
	var (
		artifact Artifact
		err      error
	)
	switch format {
	case FormatCSV, "":
		artifact = Artifact{FileName: baseName + ".csv", ContentType: "text/csv"}
		artifact.Data, err = CSV(result)
		format = FormatCSV
	case FormatParquet:
		artifact = Artifact{FileName: baseName + ".parquet", ContentType: "application/vnd.apache.parquet"}
		artifact.Data, err = Parquet(result)
	default:
		return Artifact{}, errs.Newf(errs.KindValidation, "unsupported export format %q", format)
	}
	if err != nil {
		return Artifact{}, err
	}
	observability.ObserveExport(string(format), len(artifact.Data))
	return artifact, nil
}

func CSV(result query.Result) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write(result.Columns); err != nil {
		return nil, errs.Wrap(err, errs.KindInternal, "write csv header")
	}
	record := make([]string, len(result.Columns))
	for _, row := range result.Rows {
		for i := range record {
			record[i] = ""
			if i < len(row) {
				record[i] = formatValue(row[i])
			}
		}
		if err := writer.Write(record); err != nil {
			return nil, errs.Wrap(err, errs.KindInternal, "write csv row")
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, errs.Wrap(err, errs.KindInternal, "flush csv")
	}
	return buf.Bytes(), nil
}

func formatValue(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return typed
	case []byte:
		return string(typed)
	case bool:
		return strconv.FormatBool(typed)
	case int64:
		return strconv.FormatInt(typed, 10)
	case int32:
		return strconv.FormatInt(int64(typed), 10)
	case int:
		return strconv.Itoa(typed)
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(typed), 'f', -1, 32)
	case time.Time:
		return typed.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(typed)
	}
}
