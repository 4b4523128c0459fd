package sensors

// FieldRule locates the fields of one kind of line by whitespace token index.
// Lines with fewer than MinTokens tokens are ignored.
type FieldRule struct {
	Marker      string
	MinTokens   int
	Label       int
	Temperature int
	High        int
	Critical    int
}

// Layout describes the text format of the sensors tool. Markers are matched
// as substrings in priority order: adapter, package, core.
type Layout struct {
	AdapterMarker string
	Package       FieldRule
	Core          FieldRule
}

// DefaultLayout matches lm-sensors coretemp output, e.g.
//
//	coretemp-isa-0000
//	Package id 0:  +45.0°C  (high = +80.0°C, crit = +100.0°C)
//	Core 0:        +42.0°C  (high = +80.0°C, crit = +100.0°C)
var DefaultLayout = Layout{
	AdapterMarker: "coretemp-",
	Package: FieldRule{
		Marker:      "Package id",
		MinTokens:   10,
		Label:       2,
		Temperature: 3,
		High:        6,
		Critical:    9,
	},
	Core: FieldRule{
		Marker:      "Core",
		MinTokens:   6,
		Label:       0,
		Temperature: 1,
		High:        4,
		Critical:    5,
	},
}
