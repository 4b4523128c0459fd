package sensors

import (
	"codeberg.org/mutker/coreprobe/internal/execution"
	"codeberg.org/mutker/coreprobe/internal/logger"
	"codeberg.org/mutker/coreprobe/internal/readings"
)

const command = "sensors"

// Collector runs the sensors tool and parses its output.
type Collector struct {
	runner execution.Runner
	layout Layout
	log    logger.Logger
}

func NewCollector(runner execution.Runner) *Collector {
	return &Collector{
		runner: runner,
		layout: DefaultLayout,
		log:    logger.WithComponent("sensors"),
	}
}

// Collect returns the parsed packages, or an empty list when the tool fails.
func (c *Collector) Collect() []readings.PackageReading {
	out, err := c.runner.Execute(command)
	if err != nil {
		c.log.Warn().Err(err).Msg("Failed to read sensors output")
		return []readings.PackageReading{}
	}

	packages := c.layout.Parse(out)
	c.log.Debug().Int("packages", len(packages)).Msg("Parsed sensors output")

	return packages
}
