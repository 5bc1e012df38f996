package extract

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// guestWords is the closed vocabulary of party-size words.
var guestWords = map[string]int{
	"один": 1, "одна": 1, "по одному": 1,
	"двое": 2, "двоих": 2, "двух": 2, "вдвоем": 2, "вдвоём": 2, "на двоих": 2,
	"трое": 3, "троих": 3, "трех": 3, "трёх": 3, "втроем": 3, "втроём": 3, "на троих": 3,
	"четверо": 4, "четверых": 4, "четырех": 4, "четырёх": 4, "вчетвером": 4, "на четверых": 4,
	"пятеро": 5, "пятерых": 5, "пяти": 5, "на пятерых": 5,
	"шестеро": 6, "шестерых": 6, "шести": 6, "на шестерых": 6,
	"семеро": 7, "семерых": 7, "семи": 7, "на семерых": 7,
	"восьмеро": 8, "восьмерых": 8, "восьми": 8, "на восьмерых": 8,
	"девятеро": 9, "девятерых": 9, "девяти": 9, "на девятерых": 9,
	"десятеро": 10, "десятерых": 10, "десяти": 10, "на десятерых": 10,
}

const maxBareGuests = 20

var (
	numericRangePattern = word(`(\d{1,2})\s*(?:-|—|–|или|до)\s*(\d{1,2})`)
	fromToPattern       = word(`от\s+(\d{1,2})\s+до\s+(\d{1,2})`)
	upToPattern         = word(`до\s+(\d{1,2})`)
	guestCuePatterns    = []*regexp.Regexp{
		word(`(?:нас|на|для)\s+(\d{1,2})`),
		word(`(\d{1,2})\s*(?:человек\p{L}*|чел|гост\p{L}*|персон\p{L}*)`),
	}
	bareNumberPattern = word(`(\d{1,2})`)

	wordRangePattern  *regexp.Regexp
	upToWordPattern   *regexp.Regexp
	singleWordPattern *regexp.Regexp
)

func init() {
	words := make([]string, 0, len(guestWords))
	for w := range guestWords {
		words = append(words, w)
	}
	// longest first so "на двоих" wins over "двоих"
	sort.Slice(words, func(i, j int) bool {
		if len(words[i]) != len(words[j]) {
			return len(words[i]) > len(words[j])
		}
		return words[i] < words[j]
	})
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	alt := "(" + strings.Join(words, "|") + ")"

	wordRangePattern = word(alt + `\s*(?:или|до|-|—|–)\s*` + alt)
	upToWordPattern = word(`до\s+` + alt)
	singleWordPattern = word(alt)
}

// Guests returns the party-size range as (min, max); zero means unknown.
// Rules, first hit wins: numeric range, word range, "от N до M", "до N",
// single number word, then a bare 1..20 integer. Digits belonging to a
// phone, a clock time or a date are ignored.
func Guests(text string) (int, int) {
	t := Normalize(text)
	if t == "" {
		return 0, 0
	}
	t = maskNonGuestNumbers(t)

	if m := numericRangePattern.FindStringSubmatch(t); m != nil {
		return ordered(atoi(m[1]), atoi(m[2]))
	}
	if m := wordRangePattern.FindStringSubmatch(t); m != nil {
		return ordered(guestWords[m[1]], guestWords[m[2]])
	}
	if m := fromToPattern.FindStringSubmatch(t); m != nil {
		return ordered(atoi(m[1]), atoi(m[2]))
	}
	if m := upToPattern.FindStringSubmatch(t); m != nil {
		return 0, atoi(m[1])
	}
	if m := upToWordPattern.FindStringSubmatch(t); m != nil {
		return 0, guestWords[m[1]]
	}
	if m := singleWordPattern.FindStringSubmatch(t); m != nil {
		n := guestWords[m[1]]
		return n, n
	}
	for _, re := range guestCuePatterns {
		if m := re.FindStringSubmatch(t); m != nil {
			if n := atoi(m[1]); n >= 1 && n <= maxBareGuests {
				return n, n
			}
		}
	}
	if m := bareNumberPattern.FindStringSubmatch(t); m != nil {
		if n := atoi(m[1]); n >= 1 && n <= maxBareGuests {
			return n, n
		}
	}
	return 0, 0
}

// maskNonGuestNumbers blanks the spans the phone, time and date extractors
// would claim. t must already be normalized.
func maskNonGuestNumbers(t string) string {
	var spans [][2]int
	if _, loc := phoneSpan(t); loc != nil {
		spans = append(spans, [2]int{loc[0], loc[1]})
	}
	if _, loc := clockSpan(t); loc != nil {
		spans = append(spans, [2]int{loc[0], loc[1]})
	}
	if _, loc := hourSpan(t); loc != nil {
		spans = append(spans, [2]int{loc[0], loc[1]})
	}
	for _, loc := range findAll(numericDatePattern, t) {
		spans = append(spans, [2]int{loc[2], loc[1]})
	}
	for _, re := range []*regexp.Regexp{ordinalPattern, dayOfMonthPattern} {
		if loc := re.FindStringIndex(t); loc != nil {
			spans = append(spans, [2]int{loc[0], loc[1]})
		}
	}
	return mask(t, spans)
}

func ordered(a, b int) (int, int) {
	if a > b {
		return b, a
	}
	return a, b
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
