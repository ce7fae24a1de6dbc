// Package export renders extracted clinical records into the comma-separated
// output tables and manages identifier continuity across runs.
package export

import (
	"strconv"
	"strings"
	"time"
)

// dateLayout is the rendering format for all date columns.
const dateLayout = "01/02/2006"

// String returns the CSV-safe form of a text field. A field containing a
// comma is wrapped in double quotes. Embedded double-quote characters are
// deliberately left unescaped to keep the output byte-compatible with the
// historical table format; consumers of these tables split on unescaped
// commas only.
func String(s string) string {
	if strings.Contains(s, ",") {
		return `"` + s + `"`
	}
	return s
}

// Date renders a date column. The zero time is the "unset" sentinel and
// renders as an empty field.
func Date(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

// Number renders a measurement column. Zero is the "not present" sentinel
// and renders as an empty field, so a true zero reading is indistinguishable
// from an absent one in the output.
func Number(f float64) string {
	if f == 0 {
		return ""
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Int renders a sequential identifier column.
func Int(id int64) string {
	return strconv.FormatInt(id, 10)
}

// Count renders a report count column. Unlike Number, zero is a meaningful
// value here and renders as "0".
func Count(n int) string {
	return strconv.Itoa(n)
}

// Join assembles formatted fields into one CSV line without a trailing
// newline.
func Join(fields ...string) string {
	return strings.Join(fields, ",")
}
