package nmea

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var ErrMalformedSentence = errors.New("malformed sentence")

var fixTypes = map[int]string{
	0: "Invalid",
	1: "Autonomous GPS",
	2: "DGPS",
	3: "PPS",
	4: "RTK",
	5: "RTK Float",
	6: "Estimated",
	7: "Manual Input",
	8: "Simulation",
	9: "WAAS",
}

const (
	ggaMinTokens = 15
	zdaMinTokens = 5
)

// GGA is a position fix sentence.
type GGA struct {
	// TimeOfDay is the UTC fix time as an offset from midnight.
	TimeOfDay     time.Duration `json:"timeOfDay"`
	Latitude      float64       `json:"latitude"`
	Longitude     float64       `json:"longitude"`
	Fix           string        `json:"fix"`
	NumSatellites int           `json:"numSatellites"`
	HDOP          float64       `json:"hdop"`
	Altitude      float64       `json:"altitude"`
	GeoidHeight   float64       `json:"geoidHeight"`
	// CorrectionAge is NaN when the sentence carries no differential age.
	CorrectionAge float64 `json:"correctionAge"`
	// CorrectionStation is -1 when no reference station is named.
	CorrectionStation int `json:"correctionStation"`
}

// MarshalJSON writes a missing correction age as null.
func (g GGA) MarshalJSON() ([]byte, error) {
	type plain GGA
	out := struct {
		plain
		CorrectionAge *float64 `json:"correctionAge"`
	}{plain: plain(g)}
	if !math.IsNaN(g.CorrectionAge) {
		age := g.CorrectionAge
		out.CorrectionAge = &age
	}
	return json.Marshal(out)
}

// ZDA is a date and time sentence.
type ZDA struct {
	Time time.Time `json:"time"`
}

// FixType returns the name of a GGA fix quality indicator.
func FixType(q int) (string, bool) {
	s, ok := fixTypes[q]
	return s, ok
}

func ParseGGA(text string) (GGA, error) {
	var g GGA
	tok := tokenize(text)
	if len(tok) < ggaMinTokens {
		return g, malformed("GGA has %d fields, want %d", len(tok), ggaMinTokens)
	}
	var err error
	if g.TimeOfDay, err = parseClock(tok[1]); err != nil {
		return g, err
	}
	if g.Latitude, err = parseAngle(tok[2], 2, tok[3], "S"); err != nil {
		return g, err
	}
	if g.Longitude, err = parseAngle(tok[4], 3, tok[5], "W"); err != nil {
		return g, err
	}
	q, err := parseInt(tok[6], "fix quality")
	if err != nil {
		return g, err
	}
	fix, ok := FixType(q)
	if !ok {
		return g, malformed("unknown fix quality %d", q)
	}
	g.Fix = fix
	if g.NumSatellites, err = parseInt(tok[7], "satellites"); err != nil {
		return g, err
	}
	if g.HDOP, err = parseFloat(tok[8], "hdop"); err != nil {
		return g, err
	}
	if g.Altitude, err = parseFloat(tok[9], "altitude"); err != nil {
		return g, err
	}
	if g.GeoidHeight, err = parseFloat(tok[11], "geoid height"); err != nil {
		return g, err
	}
	g.CorrectionAge = math.NaN()
	if tok[13] != "" {
		if g.CorrectionAge, err = parseFloat(tok[13], "correction age"); err != nil {
			return g, err
		}
	}
	g.CorrectionStation = -1
	station := tok[14]
	if i := strings.IndexByte(station, '*'); i >= 0 {
		station = station[:i]
	}
	if station != "" {
		if g.CorrectionStation, err = parseInt(station, "station"); err != nil {
			return g, err
		}
	}
	return g, nil
}

func ParseZDA(text string) (ZDA, error) {
	var z ZDA
	tok := tokenize(text)
	if len(tok) < zdaMinTokens {
		return z, malformed("ZDA has %d fields, want %d", len(tok), zdaMinTokens)
	}
	clock, err := parseClock(tok[1])
	if err != nil {
		return z, err
	}
	day, err := parseInt(tok[2], "day")
	if err != nil {
		return z, err
	}
	month, err := parseInt(tok[3], "month")
	if err != nil {
		return z, err
	}
	year, err := parseInt(strings.SplitN(tok[4], "*", 2)[0], "year")
	if err != nil {
		return z, err
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return z, malformed("date %04d-%02d-%02d out of range", year, month, day)
	}
	z.Time = time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC).Add(clock)
	return z, nil
}

func tokenize(text string) []string {
	text = strings.Trim(text, "\r\n\x00 ")
	return strings.Split(text, ",")
}

func malformed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformedSentence, fmt.Sprintf(format, args...))
}

// parseClock reads hhmmss.ss. Fractional seconds are kept to the
// hundredth.
func parseClock(s string) (time.Duration, error) {
	if len(s) < 6 {
		return 0, malformed("time %q too short", s)
	}
	hh, err := strconv.Atoi(s[0:2])
	if err != nil {
		return 0, malformed("time %q: hours", s)
	}
	mm, err := strconv.Atoi(s[2:4])
	if err != nil {
		return 0, malformed("time %q: minutes", s)
	}
	ss, err := strconv.ParseFloat(s[4:], 64)
	if err != nil {
		return 0, malformed("time %q: seconds", s)
	}
	if hh > 23 || mm > 59 || ss < 0 || ss >= 61 {
		return 0, malformed("time %q out of range", s)
	}
	whole := math.Floor(ss)
	frac := math.Round((ss-whole)*100) / 100
	d := time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute +
		time.Duration(whole)*time.Second + time.Duration(frac*float64(time.Second))
	return d, nil
}

// parseAngle converts a (d)ddmm.mmm token to decimal degrees, negated when
// hemi equals neg.
func parseAngle(s string, degDigits int, hemi, neg string) (float64, error) {
	if len(s) <= degDigits {
		return 0, malformed("angle %q too short", s)
	}
	deg, err := strconv.Atoi(s[:degDigits])
	if err != nil {
		return 0, malformed("angle %q: degrees", s)
	}
	minutes, err := strconv.ParseFloat(s[degDigits:], 64)
	if err != nil {
		return 0, malformed("angle %q: minutes", s)
	}
	v := float64(deg) + minutes/60
	if hemi == neg {
		v = -v
	}
	return v, nil
}

func parseInt(s, what string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, malformed("%s %q is not an integer", what, s)
	}
	return v, nil
}

func parseFloat(s, what string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, malformed("%s %q is not a number", what, s)
	}
	return v, nil
}
