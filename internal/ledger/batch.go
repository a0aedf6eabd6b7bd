package ledger

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromName picks the batch format from a file name; anything that is
// not .yaml or .yml is read as JSON.
func FormatFromName(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

// DecodeBatch reads an ordered list of records. Any failure to read the
// list itself is reported as ErrUnreadableBatch; bad field values inside a
// record are left for the engine to reject one by one.
func DecodeBatch(r io.Reader, format Format) ([]Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableBatch, err)
	}

	if format == FormatYAML {
		// yaml nodes go through json so both formats share Record's decoding
		var items []map[string]any
		if err := yaml.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnreadableBatch, err)
		}
		for _, item := range items {
			for k, v := range item {
				if t, ok := v.(time.Time); ok {
					item[k] = yamlTimestamp(t)
				}
			}
		}
		if data, err = json.Marshal(items); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnreadableBatch, err)
		}
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableBatch, err)
	}
	if records == nil {
		return nil, fmt.Errorf("%w: no records", ErrUnreadableBatch)
	}
	return records, nil
}

// yamlTimestamp turns an unquoted yaml timestamp back into the text it was
// written as: a bare calendar date stays YYYY-MM-DD.
func yamlTimestamp(t time.Time) string {
	if t.Location() == time.UTC && t.Equal(t.Truncate(24*time.Hour)) {
		return t.Format(dateLayout)
	}
	return t.Format(time.RFC3339Nano)
}
