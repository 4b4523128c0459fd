// Package sensors turns lm-sensors text output into package and core readings.
package sensors

import (
	"strconv"
	"strings"

	"codeberg.org/mutker/coreprobe/internal/readings"
)

const degreeSuffix = "°C"

// Parse parses sensors output with DefaultLayout.
func Parse(text string) []readings.PackageReading {
	return DefaultLayout.Parse(text)
}

// Parse walks text line by line. A package is opened on every adapter line
// and closed by the next adapter line or the end of input. Package and core
// lines outside an adapter block are dropped. Malformed values become 0 and
// short lines are skipped; Parse never fails.
func (l Layout) Parse(text string) []readings.PackageReading {
	var (
		packages []readings.PackageReading
		pending  *readings.PackageReading
	)

	for _, line := range strings.Split(text, "\n") {
		switch {
		case strings.Contains(line, l.AdapterMarker):
			if pending != nil {
				packages = append(packages, *pending)
			}
			pending = &readings.PackageReading{Adapter: firstToken(line), Cores: []readings.CoreReading{}}
		case strings.Contains(line, l.Package.Marker):
			if pending != nil {
				l.Package.applyPackage(strings.Fields(line), pending)
			}
		case strings.Contains(line, l.Core.Marker):
			if pending != nil {
				if core, ok := l.Core.core(strings.Fields(line)); ok {
					pending.Cores = append(pending.Cores, core)
				}
			}
		}
	}

	if pending != nil {
		packages = append(packages, *pending)
	}

	return packages
}

func (r FieldRule) applyPackage(tokens []string, pkg *readings.PackageReading) {
	if len(tokens) < r.MinTokens {
		return
	}

	pkg.ID = tokens[r.Label]
	pkg.Temperature = parseDegrees(tokens[r.Temperature])
	pkg.High = parseDegrees(tokens[r.High])
	pkg.Critical = parseDegrees(tokens[r.Critical])
}

func (r FieldRule) core(tokens []string) (readings.CoreReading, bool) {
	if len(tokens) < r.MinTokens {
		return readings.CoreReading{}, false
	}

	return readings.CoreReading{
		Name:        tokens[r.Label],
		Temperature: parseDegrees(tokens[r.Temperature]),
		High:        parseDegrees(tokens[r.High]),
		Critical:    parseDegrees(tokens[r.Critical]),
	}, true
}

// parseDegrees strips leading '+' signs and trailing "°C" suffixes. Anything
// that still is not a number reads as 0.
func parseDegrees(token string) float64 {
	token = strings.TrimLeft(token, "+")
	for strings.HasSuffix(token, degreeSuffix) {
		token = strings.TrimSuffix(token, degreeSuffix)
	}

	v, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return 0
	}

	return v
}

func firstToken(line string) string {
	if fields := strings.Fields(line); len(fields) > 0 {
		return fields[0]
	}

	return "Unknown"
}
