package functions

import (
	"time"

	"github.com/google/uuid"
	"github.com/solatis/sweetbre/internal/value"
)

// now and today read the clock through this var so tests can pin it.
var clock = time.Now

func dateFunctions() []Function {
	return []Function{
		fixed("now", 0, func([]value.Value) (value.Value, error) {
			return value.Date(clock()), nil
		}),
		fixed("today", 0, func([]value.Value) (value.Value, error) {
			y, m, d := clock().Date()
			return value.Date(time.Date(y, m, d, 0, 0, 0, 0, clock().Location())), nil
		}),
		ranged("date", 3, 6, func(args []value.Value) (value.Value, error) {
			parts := make([]int, 6)
			for i := range args {
				n, err := intArg("date", args, i)
				if err != nil {
					return value.Null(), err
				}
				parts[i] = int(n)
			}
			return value.Date(time.Date(parts[0], time.Month(parts[1]), parts[2], parts[3], parts[4], parts[5], 0, time.UTC)), nil
		}),
		ranged("time", 2, 3, func(args []value.Value) (value.Value, error) {
			var d time.Duration
			units := []time.Duration{time.Hour, time.Minute, time.Second}
			for i := range args {
				n, err := intArg("time", args, i)
				if err != nil {
					return value.Null(), err
				}
				d += time.Duration(n) * units[i]
			}
			return value.Time(d), nil
		}),
		fixed("parsedate", 1, func(args []value.Value) (value.Value, error) {
			return value.ParseDate(strArg(args, 0))
		}),
		fixed("parsetime", 1, func(args []value.Value) (value.Value, error) {
			return value.ParseTime(strArg(args, 0))
		}),
		fixed("formatdate", 2, func(args []value.Value) (value.Value, error) {
			t, err := dateArg("formatdate", args, 0)
			if err != nil {
				return value.Null(), err
			}
			return value.String(value.FormatDate(t, strArg(args, 1))), nil
		}),
		dateShift("adddays", func(t time.Time, n int) time.Time { return t.AddDate(0, 0, n) }),
		dateShift("addmonths", func(t time.Time, n int) time.Time { return t.AddDate(0, n, 0) }),
		dateShift("addyears", func(t time.Time, n int) time.Time { return t.AddDate(n, 0, 0) }),
		dateShift("addhours", func(t time.Time, n int) time.Time { return t.Add(time.Duration(n) * time.Hour) }),
		dateShift("addminutes", func(t time.Time, n int) time.Time { return t.Add(time.Duration(n) * time.Minute) }),
		dateShift("addseconds", func(t time.Time, n int) time.Time { return t.Add(time.Duration(n) * time.Second) }),
		datePart("year", func(t time.Time) int { return t.Year() }),
		datePart("month", func(t time.Time) int { return int(t.Month()) }),
		datePart("day", func(t time.Time) int { return t.Day() }),
		datePart("hour", func(t time.Time) int { return t.Hour() }),
		datePart("minute", func(t time.Time) int { return t.Minute() }),
		datePart("second", func(t time.Time) int { return t.Second() }),
		datePart("dayofweek", func(t time.Time) int { return int(t.Weekday()) }),
		datePart("dayofyear", func(t time.Time) int { return t.YearDay() }),
		fixed("daysbetween", 2, func(args []value.Value) (value.Value, error) {
			a, err := dateArg("daysbetween", args, 0)
			if err != nil {
				return value.Null(), err
			}
			b, err := dateArg("daysbetween", args, 1)
			if err != nil {
				return value.Null(), err
			}
			return value.Int(int64(b.Sub(a) / (24 * time.Hour))), nil
		}),
		fixed("newguid", 0, func([]value.Value) (value.Value, error) {
			return value.Identifier(uuid.New()), nil
		}),
		fixed("parseguid", 1, func(args []value.Value) (value.Value, error) {
			return value.Coerce(value.String(strArg(args, 0)), value.KindIdentifier)
		}),
		fixed("emptyguid", 0, func([]value.Value) (value.Value, error) {
			return value.Identifier(uuid.Nil), nil
		}),
	}
}

func dateShift(name string, shift func(time.Time, int) time.Time) Function {
	return fixed(name, 2, func(args []value.Value) (value.Value, error) {
		t, err := dateArg(name, args, 0)
		if err != nil {
			return value.Null(), err
		}
		n, err := intArg(name, args, 1)
		if err != nil {
			return value.Null(), err
		}
		return value.Date(shift(t, int(n))), nil
	})
}

func datePart(name string, part func(time.Time) int) Function {
	return fixed(name, 1, func(args []value.Value) (value.Value, error) {
		t, err := dateArg(name, args, 0)
		if err != nil {
			return value.Null(), err
		}
		return value.Int(int64(part(t))), nil
	})
}
