package custom

import (
	"database/sql/driver"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// Datetime represents a datetime. It is persisted as unix seconds and
// rendered as RFC3339 in JSON.
type Datetime time.Time

var quoted = regexp.MustCompile(`"(.*)"`)

// Now returns the current time truncated to the second.
func Now() Datetime {
	return Datetime(time.Now().UTC().Truncate(time.Second))
}

// FromUnix creates a Datetime from unix seconds.
func FromUnix(sec int64) Datetime {
	return Datetime(time.Unix(sec, 0).UTC())
}

// Unix returns the datetime as unix seconds.
func (d Datetime) Unix() int64 {
	if time.Time(d).IsZero() {
		return 0
	}
	return time.Time(d).Unix()
}

// IsZero reports whether the datetime is unset.
func (d Datetime) IsZero() bool {
	return time.Time(d).IsZero()
}

// MarshalJSON implements the json.Marshaler interface.
func (d Datetime) MarshalJSON() ([]byte, error) {
	if time.Time(d).IsZero() {
		return []byte("null"), nil
	}
	return []byte(fmt.Sprintf(`%q`, time.Time(d).UTC().Format(time.RFC3339))), nil
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (d *Datetime) UnmarshalJSON(text []byte) error {
	if string(text) == "null" {
		*d = Datetime{}
		return nil
	}

	// Remove " from text if present (e.g. "2020-01-01T00:00:00Z" -> 2020-01-01T00:00:00Z)
	text = quoted.ReplaceAll(text, []byte("$1"))

	t, err := time.Parse(time.RFC3339, string(text))
	if err != nil {
		return err
	}
	*d = Datetime(t)
	return nil
}

// MarshalBSONValue stores the datetime as unix seconds.
func (d Datetime) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(d.Unix())
}

// UnmarshalBSONValue reads unix seconds written by MarshalBSONValue.
func (d *Datetime) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	rv := bson.RawValue{Type: t, Value: data}
	switch t {
	case bsontype.Null:
		*d = Datetime{}
		return nil
	case bsontype.Int64:
		sec, ok := rv.Int64OK()
		if !ok {
			return fmt.Errorf("invalid datetime value")
		}
		*d = FromUnix(sec)
		return nil
	case bsontype.Int32:
		sec, ok := rv.Int32OK()
		if !ok {
			return fmt.Errorf("invalid datetime value")
		}
		*d = FromUnix(int64(sec))
		return nil
	case bsontype.DateTime:
		ms, ok := rv.DateTimeOK()
		if !ok {
			return fmt.Errorf("invalid datetime value")
		}
		*d = Datetime(time.UnixMilli(ms).UTC())
		return nil
	default:
		return fmt.Errorf("invalid bson type %s for datetime", t)
	}
}

// Value implements the driver.Valuer interface.
func (d Datetime) Value() (driver.Value, error) {
	return d.Unix(), nil
}

// Scan implements the sql.Scanner interface.
func (d *Datetime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = Datetime{}
	case int64:
		if v == 0 {
			*d = Datetime{}
			return nil
		}
		*d = FromUnix(v)
	case time.Time:
		*d = Datetime(v.UTC())
	default:
		return fmt.Errorf("invalid scan, type %T not supported for %T", src, d)
	}
	return nil
}

// String implements the fmt.Stringer interface.
func (d Datetime) String() string {
	return time.Time(d).Format(time.RFC3339)
}
