package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONB column types. The store keeps nested document shapes (line items,
// route stops, addresses, locations) as jsonb so multi-valued fields stay
// a single atomic column write.

// LineItems is a jsonb-backed slice of order lines.
type LineItems []LineItem

func (l LineItems) Value() (driver.Value, error) {
	return json.Marshal(l)
}

func (l *LineItems) Scan(src interface{}) error {
	return scanJSON(src, l)
}

// StringList is a jsonb-backed slice of ids.
type StringList []string

func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		return json.Marshal([]string{})
	}
	return json.Marshal(s)
}

func (s *StringList) Scan(src interface{}) error {
	return scanJSON(src, s)
}

// RouteStops is a jsonb-backed ordered stop sequence.
type RouteStops []RouteStop

func (r RouteStops) Value() (driver.Value, error) {
	if r == nil {
		return json.Marshal([]RouteStop{})
	}
	return json.Marshal(r)
}

func (r *RouteStops) Scan(src interface{}) error {
	return scanJSON(src, r)
}

func (a Address) Value() (driver.Value, error) {
	return json.Marshal(a)
}

func (a *Address) Scan(src interface{}) error {
	return scanJSON(src, a)
}

func (p GeoPoint) Value() (driver.Value, error) {
	return json.Marshal(p)
}

func (p *GeoPoint) Scan(src interface{}) error {
	return scanJSON(src, p)
}

// NullPoint is a nullable GeoPoint column, in the sql.NullString mold.
type NullPoint struct {
	Point GeoPoint
	Valid bool
}

func (p NullPoint) Value() (driver.Value, error) {
	if !p.Valid {
		return nil, nil
	}
	return json.Marshal(p.Point)
}

func (p *NullPoint) Scan(src interface{}) error {
	if src == nil {
		*p = NullPoint{}
		return nil
	}
	if err := scanJSON(src, &p.Point); err != nil {
		return err
	}
	p.Valid = true
	return nil
}

func (p NullPoint) MarshalJSON() ([]byte, error) {
	if !p.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(p.Point)
}

func (p *NullPoint) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*p = NullPoint{}
		return nil
	}
	if err := json.Unmarshal(data, &p.Point); err != nil {
		return err
	}
	p.Valid = true
	return nil
}

func scanJSON(src, dst interface{}) error {
	if src == nil {
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("cannot scan %T into %T", src, dst)
	}
}
