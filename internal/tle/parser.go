package tle

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

// lineLength is the fixed width of both element lines, checksum included.
const lineLength = 69

// ReadElementSet reads a single 2- or 3-line TLE record from r.
// Blank lines are ignored.
func ReadElementSet(r io.Reader, g Gravity) (*ElementSet, error) {
	scanner := bufio.NewScanner(r)
	var lines []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading TLE data: %w", err)
	}
	return ParseElementSet(lines, g)
}

// ParseElementSet decodes a TLE record given as 2 lines, or 3 lines with a
// leading name line, into an ElementSet propagated with gravity model g.
func ParseElementSet(lines []string, g Gravity) (*ElementSet, error) {
	grav, err := ParseGravity(string(g))
	if err != nil {
		return nil, err
	}

	trimmed := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.TrimRight(l, "\r\n ")
		if l != "" {
			trimmed = append(trimmed, l)
		}
	}

	var name string
	switch len(trimmed) {
	case 2:
	case 3:
		name = strings.TrimSpace(trimmed[0])
		// Some catalogs prefix the name line with a "0 " line number.
		name = strings.TrimSpace(strings.TrimPrefix(name, "0 "))
		trimmed = trimmed[1:]
	default:
		return nil, &ParseError{Reason: fmt.Sprintf("expected 2 or 3 lines, got %d", len(trimmed))}
	}

	line1, line2 := trimmed[0], trimmed[1]
	if err := validateLine(line1, 1); err != nil {
		return nil, err
	}
	if err := validateLine(line2, 2); err != nil {
		return nil, err
	}

	es := &ElementSet{
		Name:    name,
		Gravity: grav,
		Line1:   line1,
		Line2:   line2,
	}
	if err := decodeLine1(es, line1); err != nil {
		return nil, err
	}
	if err := decodeLine2(es, line2); err != nil {
		return nil, err
	}
	return es, nil
}

// Checksum returns the modulo-10 checksum of the first 68 columns of a TLE
// line: digits count their value, minus signs count one, everything else zero.
func Checksum(line string) int {
	sum := 0
	for i := 0; i < len(line) && i < lineLength-1; i++ {
		switch c := line[i]; {
		case c >= '0' && c <= '9':
			sum += int(c - '0')
		case c == '-':
			sum++
		}
	}
	return sum % 10
}

func validateLine(line string, n int) error {
	if len(line) != lineLength {
		return &ParseError{Line: n, Reason: fmt.Sprintf("length %d, expected %d", len(line), lineLength)}
	}
	if line[0] != byte('0'+n) || line[1] != ' ' {
		return &ParseError{Line: n, Field: "line number", Value: line[:2], Reason: fmt.Sprintf("must start with %q", fmt.Sprintf("%d ", n))}
	}
	want := line[lineLength-1]
	if want < '0' || want > '9' {
		return &ParseError{Line: n, Field: "checksum", Value: string(want), Reason: "not a digit"}
	}
	if got := Checksum(line); got != int(want-'0') {
		return &ParseError{Line: n, Field: "checksum", Value: string(want), Reason: fmt.Sprintf("computed %d", got)}
	}
	return nil
}

func decodeLine1(es *ElementSet, line string) error {
	var err error
	if es.NORADID, err = parseCatalogNumber(line[2:7]); err != nil {
		return fieldError(1, "catalog number", line[2:7], err)
	}
	es.Classification = line[7]
	es.IntlDesignator = strings.TrimSpace(line[9:17])

	if es.Epoch, err = parseEpoch(line[18:32]); err != nil {
		return fieldError(1, "epoch", line[18:32], err)
	}
	if es.MeanMotionDot, err = parseDecimal(line[33:43]); err != nil {
		return fieldError(1, "mean motion derivative", line[33:43], err)
	}
	if es.MeanMotionDDot, err = parseImpliedExponent(line[44:52]); err != nil {
		return fieldError(1, "mean motion second derivative", line[44:52], err)
	}
	if es.BStar, err = parseImpliedExponent(line[53:61]); err != nil {
		return fieldError(1, "bstar", line[53:61], err)
	}
	if es.EphemerisType, err = parseOptionalInt(line[62:63]); err != nil {
		return fieldError(1, "ephemeris type", line[62:63], err)
	}
	if es.ElementSetNo, err = parseOptionalInt(line[64:68]); err != nil {
		return fieldError(1, "element set number", line[64:68], err)
	}
	return nil
}

func decodeLine2(es *ElementSet, line string) error {
	satnum, err := parseCatalogNumber(line[2:7])
	if err != nil {
		return fieldError(2, "catalog number", line[2:7], err)
	}
	if satnum != es.NORADID {
		return &ParseError{Line: 2, Field: "catalog number", Value: line[2:7], Reason: fmt.Sprintf("does not match line 1 (%d)", es.NORADID)}
	}

	if es.Inclination, err = parseDecimal(line[8:16]); err != nil {
		return fieldError(2, "inclination", line[8:16], err)
	}
	if es.RAAN, err = parseDecimal(line[17:25]); err != nil {
		return fieldError(2, "right ascension", line[17:25], err)
	}
	eccField := strings.ReplaceAll(strings.TrimSpace(line[26:33]), " ", "0")
	if es.Eccentricity, err = strconv.ParseFloat("0."+eccField, 64); err != nil || eccField == "" {
		return fieldError(2, "eccentricity", line[26:33], err)
	}
	if es.ArgPerigee, err = parseDecimal(line[34:42]); err != nil {
		return fieldError(2, "argument of perigee", line[34:42], err)
	}
	if es.MeanAnomaly, err = parseDecimal(line[43:51]); err != nil {
		return fieldError(2, "mean anomaly", line[43:51], err)
	}
	if es.MeanMotion, err = parseDecimal(line[52:63]); err != nil {
		return fieldError(2, "mean motion", line[52:63], err)
	}
	if es.RevNumber, err = parseOptionalInt(line[63:68]); err != nil {
		return fieldError(2, "revolution number", line[63:68], err)
	}

	if es.Inclination < 0 || es.Inclination > 180 {
		return &ParseError{Line: 2, Field: "inclination", Value: line[8:16], Reason: "outside [0, 180] degrees"}
	}
	if es.Eccentricity < 0 || es.Eccentricity >= 1 {
		return &ParseError{Line: 2, Field: "eccentricity", Value: line[26:33], Reason: "outside [0, 1)"}
	}
	if es.MeanMotion <= 0 {
		return &ParseError{Line: 2, Field: "mean motion", Value: line[52:63], Reason: "must be positive"}
	}
	return nil
}

func fieldError(line int, field, value string, err error) error {
	return &ParseError{Line: line, Field: field, Value: value, Err: err}
}

// parseCatalogNumber accepts plain 5-digit numbers and the Alpha-5 scheme
// where a leading letter (I and O excluded) stands for 10..33.
func parseCatalogNumber(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty")
	}
	if c := s[0]; c >= 'A' && c <= 'Z' {
		if c == 'I' || c == 'O' {
			return 0, fmt.Errorf("invalid alpha-5 prefix %q", c)
		}
		lead := int(c-'A') + 10
		if c > 'I' {
			lead--
		}
		if c > 'O' {
			lead--
		}
		rest, err := strconv.Atoi(s[1:])
		if err != nil {
			return 0, err
		}
		return lead*10000 + rest, nil
	}
	return strconv.Atoi(s)
}

func parseDecimal(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

func parseOptionalInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

// parseImpliedExponent decodes fields such as " 10270-3" (0.10270e-3) and
// "-11606-4". A blank field decodes to zero.
func parseImpliedExponent(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	sign := 1.0
	switch s[0] {
	case '-':
		sign = -1
		s = s[1:]
	case '+':
		s = s[1:]
	}
	mantissa, exp := s, "0"
	if i := strings.LastIndexAny(s, "+-"); i > 0 {
		mantissa, exp = s[:i], s[i:]
	}
	mantissa = strings.TrimSpace(mantissa)
	if !strings.HasPrefix(mantissa, ".") {
		mantissa = "." + mantissa
	}
	m, err := strconv.ParseFloat("0"+mantissa, 64)
	if err != nil {
		return 0, err
	}
	e, err := strconv.Atoi(exp)
	if err != nil {
		return 0, err
	}
	return sign * m * math.Pow10(e), nil
}

// parseEpoch converts a TLE epoch string in YYDDD.DDDDDDDD format to time.Time.
// Year 00-56 → 2000s, 57-99 → 1900s.
func parseEpoch(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) < 5 {
		return time.Time{}, fmt.Errorf("epoch string too short: %q", s)
	}

	yearStr := strings.TrimSpace(s[:2])
	dayStr := s[2:]

	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch year %q: %w", yearStr, err)
	}

	if year >= 57 {
		year += 1900
	} else {
		year += 2000
	}

	dayOfYear, err := strconv.ParseFloat(dayStr, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch day %q: %w", dayStr, err)
	}
	daysInYear := 365.0
	if year%4 == 0 && (year%100 != 0 || year%400 == 0) {
		daysInYear = 366
	}
	if dayOfYear < 1 || dayOfYear >= daysInYear+1 {
		return time.Time{}, fmt.Errorf("epoch day %v outside year %d", dayOfYear, year)
	}

	// dayOfYear is 1-based: day 1.0 = Jan 1 00:00.
	t := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	dur := time.Duration(math.Round((dayOfYear - 1) * float64(24*time.Hour)))
	return t.Add(dur), nil
}
