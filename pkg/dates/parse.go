package dates

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

const monthExpr = `(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)`

const weekdayExpr = `(?:mon|tue|tues|wed|thu|thur|thurs|fri|sat|sun)(?:day|nesday|sday|urday)?`

var (
	reOrdinal     = regexp.MustCompile(`\b(\d{1,2})(st|nd|rd|th)\b`)
	reMeridiem    = regexp.MustCompile(`(^|[\s\d])([ap])\.\s?m\.?`)
	reNoon        = regexp.MustCompile(`\bnoon\b`)
	reMidnight    = regexp.MustCompile(`\bmidnight\b`)
	reGluedAmPm   = regexp.MustCompile(`(\d)\s*(am|pm)\b`)
	reLeadWeekday = regexp.MustCompile(`^` + weekdayExpr + `\.?,?\s+`)
	reSpaces      = regexp.MustCompile(`\s+`)

	reMonthDayYear = regexp.MustCompile(`\b` + monthExpr + `\.?\s+(\d{1,2})\s+(\d{4})\b`)
	reDayMonthYear = regexp.MustCompile(`\b(\d{1,2})\s+` + monthExpr + `\.?\s+(\d{4})\b`)
	reISODate      = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	reNumericDate  = regexp.MustCompile(`\b(\d{1,2})[/.](\d{1,2})[/.](\d{4}|\d{2})\b`)
	reWeekdayMD    = regexp.MustCompile(`\b` + weekdayExpr + `\.?\s+` + monthExpr + `\.?\s+(\d{1,2})\b`)
	reMonthDay     = regexp.MustCompile(`\b` + monthExpr + `\.?\s+(\d{1,2})\b`)

	reClock12 = regexp.MustCompile(`\b(\d{1,2})(?::(\d{2}))?\s?(am|pm)\b`)
	reClock24 = regexp.MustCompile(`\b([01]?\d|2[0-3]):([0-5]\d)\b`)
	reRangeTo = regexp.MustCompile(`^\s*(?:-|to|until|till)\s*`)

	reFullMonth = regexp.MustCompile(`\b(january|february|march|april|may|june|july|august|september|october|november|december)\b`)
	reYear      = regexp.MustCompile(`\b(20\d{2})\b`)
	reDayNumber = regexp.MustCompile(`\b(0?[1-9]|[12]\d|3[01])\b`)
)

// layouts tried on the raw text before normalization
var rawLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

// date and clock layouts combined for normalized (lower-case, comma-free) text,
// month names match case-insensitively and the "pm" layout wants lower-case input
var (
	dateLayouts  = []string{"January 2 2006", "Jan 2 2006", "2 January 2006", "2 Jan 2006", "1/2/2006", "2006-01-02"}
	clockLayouts = []string{"3:04 pm", "3 pm", "15:04"}
	clockSeps    = []string{" at ", " ", " - "}
)

// Normalize prepares free date text for parsing: lower-cases it, turns "@" into "at",
// drops ordinal suffixes, commas and a leading weekday, unifies am/pm and dashes.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer(
		"@", " at ",
		"\u2013", "-", "\u2014", "-", "\u2012", "-", "\u2212", "-",
		",", " ",
		"\u00a0", " ",
	).Replace(s)
	s = reNoon.ReplaceAllString(s, "12:00 pm")
	s = reMidnight.ReplaceAllString(s, "12:00 am")
	s = reMeridiem.ReplaceAllString(s, "${1}${2}m")
	s = reGluedAmPm.ReplaceAllString(s, "$1 $2")
	s = reOrdinal.ReplaceAllString(s, "$1")
	s = strings.ReplaceAll(s, "sept ", "sep ")
	s = reSpaces.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	s = reLeadWeekday.ReplaceAllString(s, "")
	return s
}

// HasDateFragment reports whether text contains something shaped like a date
func HasDateFragment(text string) bool {
	n := Normalize(text)
	for _, re := range []*regexp.Regexp{reMonthDayYear, reDayMonthYear, reISODate, reNumericDate, reWeekdayMD, reMonthDay} {
		if re.MatchString(n) {
			return true
		}
	}
	return false
}

// HasTimeFragment reports whether text contains a clock time
func HasTimeFragment(text string) bool {
	n := Normalize(text)
	return reClock12.MatchString(n) || reClock24.MatchString(n)
}

// parseExact tries known layouts against the whole text
func parseExact(text string, loc *time.Location) (time.Time, bool) {
	raw := strings.TrimSpace(text)
	for _, layout := range rawLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, true
		}
	}
	n := Normalize(text)
	for _, d := range dateLayouts {
		if t, err := time.ParseInLocation(d, n, loc); err == nil {
			return t, true
		}
		for _, c := range clockLayouts {
			for _, sep := range clockSeps {
				if t, err := time.ParseInLocation(d+sep+c, n, loc); err == nil {
					return t, true
				}
			}
		}
	}
	return time.Time{}, false
}

// parseFlexible is parseExact plus the general purpose parser, restricted to text carrying
// a year or a month name, as bare numbers are taken for timestamps otherwise. Text without a
// day number is left alone, the general parser would make it january 1 or the 1st of the month.
func parseFlexible(text string, loc *time.Location) (time.Time, bool) {
	if t, ok := parseExact(text, loc); ok {
		return t, true
	}
	n := Normalize(text)
	if !reYear.MatchString(n) && !reMonthDay.MatchString(n) {
		return time.Time{}, false
	}
	if !hasDayNumber(n) {
		return time.Time{}, false
	}
	t, err := dateparse.ParseIn(strings.ReplaceAll(n, " at ", " "), loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// hasDayNumber reports whether normalized text has a day of month besides a year and clock times
func hasDayNumber(n string) bool {
	if reISODate.MatchString(n) || reNumericDate.MatchString(n) {
		return true
	}
	s := reClock12.ReplaceAllString(n, " ")
	s = reClock24.ReplaceAllString(s, " ")
	return reDayNumber.MatchString(s)
}

// match is a date found inside free text, with an optional clock time and range end
type match struct {
	start   time.Time
	end     *time.Time
	hasYear bool
}

// findDate scans normalized text with ranked date shapes and returns the first hit
func findDate(text string, loc *time.Location) (match, bool) {
	n := Normalize(text)

	type shape struct {
		re      *regexp.Regexp
		build   func(m []string) (y int, mon time.Month, d int, ok bool)
		hasYear bool
	}
	shapes := []shape{
		{re: reMonthDayYear, hasYear: true, build: func(m []string) (int, time.Month, int, bool) {
			return atoi(m[3]), monthOf(m[1]), atoi(m[2]), true
		}},
		{re: reDayMonthYear, hasYear: true, build: func(m []string) (int, time.Month, int, bool) {
			return atoi(m[3]), monthOf(m[2]), atoi(m[1]), true
		}},
		{re: reISODate, hasYear: true, build: func(m []string) (int, time.Month, int, bool) {
			return atoi(m[1]), time.Month(atoi(m[2])), atoi(m[3]), true
		}},
		{re: reNumericDate, hasYear: true, build: func(m []string) (int, time.Month, int, bool) {
			y := atoi(m[3])
			if y < 100 {
				y += 2000
			}
			return y, time.Month(atoi(m[1])), atoi(m[2]), true
		}},
		{re: reWeekdayMD, build: func(m []string) (int, time.Month, int, bool) {
			return 0, monthOf(m[1]), atoi(m[2]), true
		}},
		{re: reMonthDay, build: func(m []string) (int, time.Month, int, bool) {
			return 0, monthOf(m[1]), atoi(m[2]), true
		}},
	}

	for _, sh := range shapes {
		idx := sh.re.FindStringSubmatchIndex(n)
		if idx == nil {
			continue
		}
		m := submatches(n, idx)
		y, mon, d, ok := sh.build(m)
		if !ok || !validDay(y, mon, d) {
			continue
		}
		res := match{hasYear: sh.hasYear}
		res.start = time.Date(y, mon, d, 0, 0, 0, 0, loc)

		// clock time and optional range end follow the date within a short window
		rest := n[idx[1]:]
		if len(rest) > 60 {
			rest = rest[:60]
		}
		if h, mi, pos, found := findClock(rest); found {
			res.start = time.Date(y, mon, d, h, mi, 0, 0, loc)
			if rm := reRangeTo.FindStringIndex(rest[pos:]); rm != nil {
				if eh, emi, _, efound := findClock(rest[pos+rm[1]:]); efound {
					end := time.Date(y, mon, d, eh, emi, 0, 0, loc)
					if end.Before(res.start) {
						end = end.AddDate(0, 0, 1)
					}
					res.end = &end
				}
			}
		}
		return res, true
	}
	return match{}, false
}

// findClock finds the first clock time at the start of s (after separators) and returns
// hour, minute and the position right after it
func findClock(s string) (hour, minute, pos int, ok bool) {
	trimmed := strings.TrimLeft(s, " -")
	trimmed = strings.TrimPrefix(trimmed, "at ")
	trimmed = strings.TrimPrefix(trimmed, "from ")
	offset := len(s) - len(trimmed)
	if len(trimmed) > 12 {
		trimmed = trimmed[:12]
	}

	if m := reClock12.FindStringSubmatchIndex(trimmed); m != nil && m[0] == 0 {
		sm := submatches(trimmed, m)
		hour, minute = atoi(sm[1]), atoi(sm[2])
		if hour < 1 || hour > 12 || minute > 59 {
			return 0, 0, 0, false
		}
		switch {
		case sm[3] == "pm" && hour != 12:
			hour += 12
		case sm[3] == "am" && hour == 12:
			hour = 0
		}
		return hour, minute, offset + m[1], true
	}
	if m := reClock24.FindStringSubmatchIndex(trimmed); m != nil && m[0] == 0 {
		sm := submatches(trimmed, m)
		return atoi(sm[1]), atoi(sm[2]), offset + m[1], true
	}
	return 0, 0, 0, false
}

// findMonthYear looks for a full month name and a year in loose text, used by the fallback.
// "may" and "march" count only when a year is present too, being common words.
func findMonthYear(text string) (mon time.Month, year int) {
	n := Normalize(text)
	if m := reYear.FindStringSubmatch(n); m != nil {
		year = atoi(m[1])
	}
	if m := reFullMonth.FindStringSubmatch(n); m != nil {
		if (m[1] == "may" || m[1] == "march") && year == 0 {
			return 0, 0
		}
		mon = monthOf(m[1])
	}
	return mon, year
}

func submatches(s string, idx []int) []string {
	res := make([]string, len(idx)/2)
	for i := range res {
		if idx[2*i] >= 0 {
			res[i] = s[idx[2*i]:idx[2*i+1]]
		}
	}
	return res
}

func monthOf(s string) time.Month {
	if len(s) < 3 {
		return 0
	}
	switch s[:3] {
	case "jan":
		return time.January
	case "feb":
		return time.February
	case "mar":
		return time.March
	case "apr":
		return time.April
	case "may":
		return time.May
	case "jun":
		return time.June
	case "jul":
		return time.July
	case "aug":
		return time.August
	case "sep":
		return time.September
	case "oct":
		return time.October
	case "nov":
		return time.November
	case "dec":
		return time.December
	}
	return 0
}

func validDay(y int, mon time.Month, d int) bool {
	if mon < time.January || mon > time.December || d < 1 || d > 31 {
		return false
	}
	if y == 0 {
		y = 2024 // leap year, accepts feb 29 for year-less dates
	}
	return time.Date(y, mon, d, 0, 0, 0, 0, time.UTC).Day() == d
}

func atoi(s string) int {
	v, _ := strconv.Atoi(s)
	return v
}
