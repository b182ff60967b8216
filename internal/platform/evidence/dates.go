package evidence

import "regexp"

// datePattern recognises the date tokens used in care-home logs. Year-first
// forms come first so "2024/03/12" is not read as "24/03/12".
var datePattern = regexp.MustCompile(
	`\d{4}[/-]\d{1,2}[/-]\d{1,2}` +
		`|\d{1,2}[/-]\d{1,2}[/-]\d{2,4}` +
		`|\d{4}\.\d{1,2}\.\d{1,2}` +
		`|\d{1,2}\.\d{1,2}\.\d{2,4}`)

// FindDate returns the first date token in line and its byte offsets, or
// ok=false when the line carries none.
func FindDate(line string) (token string, start, end int, ok bool) {
	loc := datePattern.FindStringIndex(line)
	if loc == nil {
		return "", 0, 0, false
	}
	return line[loc[0]:loc[1]], loc[0], loc[1], true
}

// StripDates removes every date token from line, replacing each with a space
// so surrounding numbers are not glued together.
func StripDates(line string) string {
	return datePattern.ReplaceAllString(line, " ")
}

// timePattern matches clock times such as "10:30", "14:00:05" or "9:15pm".
var timePattern = regexp.MustCompile(`\b\d{1,2}:\d{2}(?::\d{2})?(?:\s*[ap]\.?m\b\.?)?`)

// StripTimes removes clock times from line the same way StripDates removes
// dates.
func StripTimes(line string) string {
	return timePattern.ReplaceAllString(line, " ")
}
