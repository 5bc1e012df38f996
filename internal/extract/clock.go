package extract

import (
	"fmt"
	"regexp"
	"strconv"
)

var (
	clockPattern = word(`(\d{1,2})([:.])(\d{2})`)
	hourPattern  = word(`(?:в|к)\s*(\d{1,2})(?:\s*(?:часов|часа|час|ч))?`)
	eveningCue   = regexp.MustCompile(`вечер|ноч`)
)

const afternoonOffset = 12

// Time returns "HH:MM" from an explicit clock ("19:30", "19.30") or a
// preposition plus hour ("в 7 вечера", "к 19"). A dotted pair that also
// reads as a day.month date is only taken as a time after "в"/"к".
func Time(text string) string {
	t := Normalize(text)
	if hhmm, _ := clockSpan(t); hhmm != "" {
		return hhmm
	}
	hhmm, _ := hourSpan(t)
	return hhmm
}

func clockSpan(t string) (string, []int) {
	for _, loc := range findAll(clockPattern, t) {
		hh, _ := strconv.Atoi(t[loc[2]:loc[3]])
		sep := t[loc[4]:loc[5]]
		mm, _ := strconv.Atoi(t[loc[6]:loc[7]])
		if hh > 23 || mm > 59 {
			continue
		}
		if sep == "." && isDayMonth(hh, mm) && !precededByPreposition(t, loc[2]) {
			continue
		}
		return fmt.Sprintf("%02d:%02d", hh, mm), []int{loc[2], loc[7]}
	}
	return "", nil
}

func hourSpan(t string) (string, []int) {
	for _, loc := range findAll(hourPattern, t) {
		hh, _ := strconv.Atoi(t[loc[2]:loc[3]])
		if hh > 23 {
			continue
		}
		if hh <= 11 && eveningCue.MatchString(t) {
			hh += afternoonOffset
		}
		return fmt.Sprintf("%02d:00", hh), []int{loc[2], loc[3]}
	}
	return "", nil
}

func isDayMonth(day, month int) bool {
	return day >= 1 && day <= 31 && month >= 1 && month <= 12
}
