package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Clips and transcripts are stored as JSON documents in text columns so the
// same schema works on postgres and sqlite.

func (ClipList) GormDataType() string {
	return "text"
}

func (l ClipList) Value() (driver.Value, error) {
	return marshalJSON(l, l == nil)
}

func (l *ClipList) Scan(src any) error {
	*l = ClipList{}
	return unmarshalJSON(src, l)
}

func (Transcript) GormDataType() string {
	return "text"
}

func (t Transcript) Value() (driver.Value, error) {
	return marshalJSON(t, t == nil)
}

func (t *Transcript) Scan(src any) error {
	*t = Transcript{}
	return unmarshalJSON(src, t)
}

func marshalJSON(v any, empty bool) (driver.Value, error) {
	if empty {
		return "[]", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func unmarshalJSON(src any, dst any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		return nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("cannot scan %T into %T", src, dst)
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dst)
}
