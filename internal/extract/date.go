package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	numericDatePattern = word(`(\d{1,2})([./])(\d{1,2})(?:[./](\d{2,4}))?`)
	ordinalPattern     = word(`(\d{1,2})(?:\s*|-)?(?:ого|го)`)
	dayOfMonthPattern  = word(`(\d{1,2})\s*числа`)
)

// weekdayStems are matched as word prefixes so inflections ("в среду",
// "в пятницу") resolve.
var weekdayStems = []struct {
	stem *regexp.Regexp
	day  time.Weekday
}{
	{word(`понедельни\p{L}*`), time.Monday},
	{word(`вторни\p{L}*`), time.Tuesday},
	{word(`сред\p{L}*`), time.Wednesday},
	{word(`четвер\p{L}*`), time.Thursday},
	{word(`пятниц\p{L}*`), time.Friday},
	{word(`суббот\p{L}*`), time.Saturday},
	{word(`воскресень\p{L}*`), time.Sunday},
}

// Date resolves a calendar date relative to now. Rules are tried in order:
// numeric D.M[.Y], relative days, weekday names (always strictly after
// today), then day-of-month ordinals (nearest future occurrence). The
// result is midnight in now's location, or the zero time.
func Date(text string, now time.Time) time.Time {
	d, _ := dateSpan(Normalize(text), now)
	return d
}

func dateSpan(t string, now time.Time) (time.Time, []int) {
	today := truncateDay(now)

	for _, loc := range findAll(numericDatePattern, t) {
		day, _ := strconv.Atoi(t[loc[2]:loc[3]])
		sep := t[loc[4]:loc[5]]
		month, _ := strconv.Atoi(t[loc[6]:loc[7]])
		hasYear := loc[8] >= 0
		if sep == "." && !hasYear && len(t[loc[6]:loc[7]]) == 2 && day <= 23 && month <= 59 && precededByPreposition(t, loc[2]) {
			// "в 10.30" is a clock time
			continue
		}
		year := today.Year()
		end := loc[7]
		if hasYear {
			year, _ = strconv.Atoi(t[loc[8]:loc[9]])
			if year < 100 {
				year += 2000
			}
			end = loc[9]
		}
		if d, ok := calendarDate(year, time.Month(month), day, now.Location()); ok {
			return d, []int{loc[2], end}
		}
	}

	switch {
	case strings.Contains(t, "послезавтра") || strings.Contains(t, "после завтра"):
		return today.AddDate(0, 0, 2), nil
	case strings.Contains(t, "сегодня"):
		return today, nil
	case strings.Contains(t, "завтра"):
		return today.AddDate(0, 0, 1), nil
	}

	for _, wd := range weekdayStems {
		if wd.stem.MatchString(t) {
			shift := (int(wd.day) - int(today.Weekday()) + 7) % 7
			if shift == 0 {
				shift = 7
			}
			return today.AddDate(0, 0, shift), nil
		}
	}

	loc := ordinalPattern.FindStringSubmatchIndex(t)
	if loc == nil {
		loc = dayOfMonthPattern.FindStringSubmatchIndex(t)
	}
	if loc != nil {
		day, _ := strconv.Atoi(t[loc[2]:loc[3]])
		if d, ok := nextDayOfMonth(today, day); ok {
			return d, []int{loc[2], loc[1]}
		}
	}
	return time.Time{}, nil
}

// nextDayOfMonth finds the first month, starting with the current one, where
// day exists and lies strictly after today.
func nextDayOfMonth(today time.Time, day int) (time.Time, bool) {
	if day < 1 || day > 31 {
		return time.Time{}, false
	}
	year, month := today.Year(), today.Month()
	for i := 0; i < 12; i++ {
		if d, ok := calendarDate(year, month, day, today.Location()); ok && d.After(today) {
			return d, true
		}
		month++
		if month > time.December {
			month = time.January
			year++
		}
	}
	return time.Time{}, false
}

func calendarDate(year int, month time.Month, day int, loc *time.Location) (time.Time, bool) {
	if month < time.January || month > time.December || day < 1 {
		return time.Time{}, false
	}
	d := time.Date(year, month, day, 0, 0, 0, 0, loc)
	if d.Day() != day || d.Month() != month {
		return time.Time{}, false
	}
	return d, true
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
