package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Precision records how much of a calendar date is known.
type Precision int

const (
	PrecisionNone Precision = iota
	PrecisionYear
	PrecisionMonth
	PrecisionDay
)

func (p Precision) String() string {
	switch p {
	case PrecisionYear:
		return "year"
	case PrecisionMonth:
		return "month"
	case PrecisionDay:
		return "day"
	default:
		return "none"
	}
}

// ErrUnparseableDate is returned when a date matches none of the accepted layouts.
var ErrUnparseableDate = eris.New("unparseable date")

// PartialDate is a calendar date that may stop at year or month precision.
// Components beyond Precision are zero.
type PartialDate struct {
	Year      int       `json:"year"`
	Month     int       `json:"month,omitempty"`
	Day       int       `json:"day,omitempty"`
	Precision Precision `json:"precision"`
}

// layouts are tried most precise first. CrossRef date-parts joined with ", "
// come first, ISO forms after.
var layouts = []struct {
	layout    string
	precision Precision
}{
	{"2006, 1, 2", PrecisionDay},
	{"2006, 1", PrecisionMonth},
	{"2006", PrecisionYear},
	{"2006-01-02", PrecisionDay},
	{"2006-01", PrecisionMonth},
}

// ParsePartialDate parses s at the best precision it supports.
func ParsePartialDate(s string) (PartialDate, error) {
	s = strings.TrimSpace(s)
	for _, l := range layouts {
		t, err := time.Parse(l.layout, s)
		if err != nil {
			continue
		}
		return truncate(t, l.precision), nil
	}
	return PartialDate{}, eris.Wrapf(ErrUnparseableDate, "date %q", s)
}

// PartialDateFromParts builds a date from CrossRef style date-parts
// ([year], [year, month] or [year, month, day]). Extra parts are ignored.
func PartialDateFromParts(parts []int) (PartialDate, error) {
	switch {
	case len(parts) == 0:
		return PartialDate{}, eris.Wrap(ErrUnparseableDate, "empty date-parts")
	case len(parts) == 1:
		return NewPartialDate(parts[0], 0, 0, PrecisionYear)
	case len(parts) == 2:
		return NewPartialDate(parts[0], parts[1], 0, PrecisionMonth)
	default:
		return NewPartialDate(parts[0], parts[1], parts[2], PrecisionDay)
	}
}

// NewPartialDate validates the components required by p.
func NewPartialDate(year, month, day int, p Precision) (PartialDate, error) {
	if p < PrecisionYear || p > PrecisionDay {
		return PartialDate{}, eris.Wrapf(ErrUnparseableDate, "precision %d", p)
	}
	if year < 1 || year > 9999 {
		return PartialDate{}, eris.Wrapf(ErrUnparseableDate, "year %d", year)
	}
	m, d := 1, 1
	if p >= PrecisionMonth {
		if month < 1 || month > 12 {
			return PartialDate{}, eris.Wrapf(ErrUnparseableDate, "month %d", month)
		}
		m = month
	}
	if p == PrecisionDay {
		t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		if day < 1 || t.Day() != day {
			return PartialDate{}, eris.Wrapf(ErrUnparseableDate, "day %d of %d-%02d", day, year, month)
		}
		d = day
	}
	return truncate(time.Date(year, time.Month(m), d, 0, 0, 0, 0, time.UTC), p), nil
}

// DateOf returns t's calendar date at day precision.
func DateOf(t time.Time) PartialDate {
	return truncate(t, PrecisionDay)
}

func truncate(t time.Time, p Precision) PartialDate {
	d := PartialDate{Year: t.Year(), Precision: p}
	if p >= PrecisionMonth {
		d.Month = int(t.Month())
	}
	if p == PrecisionDay {
		d.Day = t.Day()
	}
	return d
}

// IsZero reports whether no component is known.
func (d PartialDate) IsZero() bool {
	return d.Precision == PrecisionNone
}

// Time returns midnight UTC on the first day of the period d covers.
func (d PartialDate) Time() time.Time {
	m, day := 1, 1
	if d.Precision >= PrecisionMonth {
		m = d.Month
	}
	if d.Precision == PrecisionDay {
		day = d.Day
	}
	return time.Date(d.Year, time.Month(m), day, 0, 0, 0, 0, time.UTC)
}

// After compares the period starts of d and o.
func (d PartialDate) After(o PartialDate) bool {
	return d.Time().After(o.Time())
}

// AtDay returns the first day of d's period at day precision.
func (d PartialDate) AtDay() PartialDate {
	return DateOf(d.Time())
}

// ISO formats d as YYYY, YYYY-MM or YYYY-MM-DD.
func (d PartialDate) ISO() string {
	switch d.Precision {
	case PrecisionYear:
		return fmt.Sprintf("%04d", d.Year)
	case PrecisionMonth:
		return fmt.Sprintf("%04d-%02d", d.Year, d.Month)
	case PrecisionDay:
		return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
	default:
		return ""
	}
}

// String formats d the way CrossRef date-parts read when joined: "2020, 1, 15".
func (d PartialDate) String() string {
	switch d.Precision {
	case PrecisionYear:
		return fmt.Sprintf("%d", d.Year)
	case PrecisionMonth:
		return fmt.Sprintf("%d, %d", d.Year, d.Month)
	case PrecisionDay:
		return fmt.Sprintf("%d, %d, %d", d.Year, d.Month, d.Day)
	default:
		return ""
	}
}
