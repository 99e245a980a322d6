package collector

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"yunche.pro/dtsre/oracledb_exporter/dbutil"
)

func formatFloat64(val float64) string {
	if val == math.Trunc(val) && math.Abs(val) < 1e15 {
		return strconv.FormatFloat(val, 'f', 0, 64)
	}
	return strconv.FormatFloat(val, 'f', -1, 64)
}

func formatInt64(val int64) string {
	return strconv.FormatInt(val, 10)
}

func formatTime(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

func formatBool(v bool) string {
	if v {
		return "yes"
	}

	return "no"
}

// labelValue renders one column of a result row as a label value.
// NULL becomes the empty string.
func labelValue(v interface{}) string {
	return strings.ToValidUTF8(rawLabelValue(v), "\uFFFD")
}

func rawLabelValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case int64:
		return formatInt64(t)
	case int32:
		return formatInt64(int64(t))
	case int:
		return formatInt64(int64(t))
	case uint64:
		return strconv.FormatUint(t, 10)
	case float64:
		return formatFloat64(t)
	case float32:
		return formatFloat64(float64(t))
	case bool:
		return formatBool(t)
	case time.Time:
		return formatTime(t)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}

// numericValue converts a numeric column to a sample value.
func numericValue(v interface{}) (float64, error) {
	switch t := v.(type) {
	case int64:
		return float64(t), nil
	case int32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case uint64:
		return float64(t), nil
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, errors.Wrapf(err, "parse %q", t)
		}
		return f, nil
	case []byte:
		return numericValue(string(t))
	case nil:
		return 0, errors.New("value is NULL")
	default:
		return 0, errors.Errorf("unsupported value type %T", v)
	}
}

// columns maps the first n columns of a row, in order, to label values.
func columns(n int) RowMapper {
	return func(r dbutil.Row) ([]string, error) {
		if len(r) < n {
			return nil, errors.Errorf("row has %d columns, want at least %d", len(r), n)
		}
		labels := make([]string, n)
		for i := 0; i < n; i++ {
			labels[i] = labelValue(r[i])
		}
		return labels, nil
	}
}

// column reads the sample value from column i.
func column(i int) ValueMapper {
	return func(r dbutil.Row) (float64, error) {
		if len(r) <= i {
			return 0, errors.Errorf("row has %d columns, value expected in column %d", len(r), i)
		}
		v, err := numericValue(r[i])
		if err != nil {
			return 0, errors.Wrapf(err, "column %d", i)
		}
		return v, nil
	}
}

// trimmed strips the padding TO_CHAR leaves around formatted numbers.
func trimmed(m RowMapper) RowMapper {
	return func(r dbutil.Row) ([]string, error) {
		labels, err := m(r)
		if err != nil {
			return nil, err
		}
		for i := range labels {
			labels[i] = strings.TrimSpace(labels[i])
		}
		return labels, nil
	}
}
