package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// StringMap stores a string-to-string map inside a JSON column.
type StringMap map[string]string

// Value implements driver.Valuer so StringMap can be stored as JSON.
func (m StringMap) Value() (driver.Value, error) {
	if len(m) == 0 {
		return []byte("{}"), nil
	}

	data, err := json.Marshal(map[string]string(m))
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Scan implements sql.Scanner to hydrate the StringMap from the database.
func (m *StringMap) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return m.unmarshal(v)
	case string:
		return m.unmarshal([]byte(v))
	default:
		return fmt.Errorf("domain.StringMap: unsupported type %T", value)
	}
}

func (m *StringMap) unmarshal(data []byte) error {
	if len(data) == 0 {
		*m = nil
		return nil
	}

	var parsed map[string]string
	if err := json.Unmarshal(data, &parsed); err != nil {
		return err
	}
	*m = parsed
	return nil
}
