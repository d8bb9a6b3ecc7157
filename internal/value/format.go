// internal/value/format.go
package value

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/solatis/sweetbre/internal/types"
)

/*
 * Format-string rendering for ToString(format) and the formatdate builtin.
 *
 * Rule documents use the format vocabulary of the rule authoring tools rather
 * than Go reference layouts, so formats are translated here.
 *
 * Date standard specifiers (single character):
 *   s  sortable        2006-01-02T15:04:05
 *   u  universal       2006-01-02 15:04:05Z (converted to UTC)
 *   o  round-trip      RFC 3339 with nanoseconds
 *   d  short date      01/02/2006
 *   D  long date       Monday, 02 January 2006
 *   t  short time      15:04
 *   T  long time       15:04:05
 *   g  general short   01/02/2006 15:04
 *   G  general long    01/02/2006 15:04:05
 *   r  RFC 1123
 *
 * Anything longer is a custom pattern: yyyy yy MMMM MMM MM M dddd ddd dd d
 * HH H hh h mm m ss s fff ff f tt zzz, with 'quoted' literals.
 *
 * Numeric formats: F<n> fixed, N<n> fixed with thousands separators, P<n>
 * percent, E<n> exponent, D<n> zero-padded integer; empty uses String().
 */

var standardDateFormats = map[string]string{
	"s": "2006-01-02T15:04:05",
	"u": "2006-01-02 15:04:05Z",
	"o": time.RFC3339Nano,
	"O": time.RFC3339Nano,
	"d": "01/02/2006",
	"D": "Monday, 02 January 2006",
	"t": "15:04",
	"T": "15:04:05",
	"g": "01/02/2006 15:04",
	"G": "01/02/2006 15:04:05",
	"r": time.RFC1123,
	"R": time.RFC1123,
}

// FormatDate renders t using a standard specifier or custom pattern.
func FormatDate(t time.Time, format string) string {
	if format == "" {
		return t.Format(time.RFC3339)
	}
	if layout, ok := standardDateFormats[format]; ok {
		if format == "u" || format == "r" || format == "R" {
			t = t.UTC()
		}
		return t.Format(layout)
	}
	return t.Format(translateDatePattern(format))
}

// datePatternTokens is ordered longest first so greedy matching works.
var datePatternTokens = []struct {
	token  string
	layout string
}{
	{"yyyy", "2006"},
	{"yy", "06"},
	{"MMMM", "January"},
	{"MMM", "Jan"},
	{"MM", "01"},
	{"M", "1"},
	{"dddd", "Monday"},
	{"ddd", "Mon"},
	{"dd", "02"},
	{"d", "2"},
	{"HH", "15"},
	{"H", "15"},
	{"hh", "03"},
	{"h", "3"},
	{"mm", "04"},
	{"m", "4"},
	{"ss", "05"},
	{"s", "5"},
	{"fff", "000"},
	{"ff", "00"},
	{"f", "0"},
	{"tt", "PM"},
	{"zzz", "-07:00"},
	{"zz", "-07"},
}

func translateDatePattern(pattern string) string {
	var b strings.Builder
	for i := 0; i < len(pattern); {
		c := pattern[i]
		if c == '\'' || c == '"' {
			end := strings.IndexByte(pattern[i+1:], c)
			if end < 0 {
				b.WriteString(pattern[i+1:])
				break
			}
			b.WriteString(pattern[i+1 : i+1+end])
			i += end + 2
			continue
		}
		matched := false
		for _, tok := range datePatternTokens {
			if strings.HasPrefix(pattern[i:], tok.token) {
				b.WriteString(tok.layout)
				i += len(tok.token)
				matched = true
				break
			}
		}
		if !matched {
			b.WriteByte(c)
			i++
		}
	}
	return b.String()
}

// FormatNumber renders f with a numeric format specifier.
func FormatNumber(f float64, format string) (string, error) {
	if format == "" {
		return formatFloat(f), nil
	}
	spec := format[0]
	prec := -1
	if len(format) > 1 {
		p, err := strconv.Atoi(format[1:])
		if err != nil || p < 0 {
			return "", fmt.Errorf("%w: invalid numeric format %q", types.ErrCoercionFailed, format)
		}
		prec = p
	}

	switch spec {
	case 'F', 'f':
		if prec < 0 {
			prec = 2
		}
		return strconv.FormatFloat(f, 'f', prec, 64), nil
	case 'N', 'n':
		if prec < 0 {
			prec = 2
		}
		return groupThousands(strconv.FormatFloat(f, 'f', prec, 64)), nil
	case 'P', 'p':
		if prec < 0 {
			prec = 2
		}
		return strconv.FormatFloat(f*100, 'f', prec, 64) + " %", nil
	case 'E', 'e':
		if prec < 0 {
			prec = 6
		}
		return strconv.FormatFloat(f, byte(spec), prec, 64), nil
	case 'D', 'd':
		s := strconv.FormatInt(int64(f), 10)
		neg := strings.HasPrefix(s, "-")
		s = strings.TrimPrefix(s, "-")
		for len(s) < prec {
			s = "0" + s
		}
		if neg {
			s = "-" + s
		}
		return s, nil
	case 'G', 'g':
		return strconv.FormatFloat(f, 'g', prec, 64), nil
	}
	return "", fmt.Errorf("%w: invalid numeric format %q", types.ErrCoercionFailed, format)
}

func groupThousands(s string) string {
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	intPart, frac := s, ""
	if dot := strings.IndexByte(s, '.'); dot >= 0 {
		intPart, frac = s[:dot], s[dot:]
	}
	var b strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	out := b.String() + frac
	if neg {
		out = "-" + out
	}
	return out
}

// Format renders v with an optional format string, dispatching on kind.
func Format(v Value, format string) (string, error) {
	if format == "" {
		return v.String(), nil
	}
	switch v.kind {
	case KindDate:
		return FormatDate(v.t, format), nil
	case KindInteger:
		return FormatNumber(float64(v.i), format)
	case KindFloat:
		return FormatNumber(v.f, format)
	case KindTime:
		d := time.Duration(v.i)
		return FormatDate(time.Time{}.Add(d), format), nil
	}
	return v.String(), nil
}
