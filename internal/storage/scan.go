package storage

import (
	"fmt"
	"time"
)

// sqlite stores DATETIME values as text while postgres returns time.Time;
// timeScanner accepts both.
type timeScanner struct {
	dst *time.Time
}

func (t timeScanner) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*t.dst = v
		return nil
	case []byte:
		return t.parse(string(v))
	case string:
		return t.parse(v)
	case nil:
		*t.dst = time.Time{}
		return nil
	default:
		return fmt.Errorf("cannot scan %T into time.Time", src)
	}
}

func (t timeScanner) parse(s string) error {
	for _, layout := range []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05",
	} {
		if parsed, err := time.Parse(layout, s); err == nil {
			*t.dst = parsed
			return nil
		}
	}

	return fmt.Errorf("cannot parse %q as time", s)
}

// nullTimeScanner is timeScanner for nullable columns.
type nullTimeScanner struct {
	dst **time.Time
}

func (t nullTimeScanner) Scan(src any) error {
	if src == nil {
		*t.dst = nil
		return nil
	}

	var parsed time.Time
	if err := (timeScanner{&parsed}).Scan(src); err != nil {
		return err
	}

	*t.dst = &parsed

	return nil
}
