package metrics

import (
	"fmt"
	"io"

	"github.com/prometheus/common/expfmt"
)

// WriteText renders the collector's current metrics in Prometheus text
// exposition format. Used by the `stats` command.
func (c *Collector) WriteText(w io.Writer) error {
	families, err := c.registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	encoder := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, family := range families {
		if err := encoder.Encode(family); err != nil {
			return fmt.Errorf("failed to encode metric family %s: %w", family.GetName(), err)
		}
	}
	return nil
}
