package models

import "fmt"

// MetricPriority ranks the delivery metrics shown next to a publication.
// It is a closed set; every switch over it must handle all three tiers.
type MetricPriority int

const (
	MetricPrimary MetricPriority = iota + 1
	MetricSecondary
	MetricAuxiliary
)

func (p MetricPriority) Label() string {
	switch p {
	case MetricPrimary:
		return "primary"
	case MetricSecondary:
		return "secondary"
	case MetricAuxiliary:
		return "auxiliary"
	}
	panic(fmt.Sprintf("unknown metric priority %d", int(p)))
}

// Weight orders tiers for display, highest first.
func (p MetricPriority) Weight() int {
	switch p {
	case MetricPrimary:
		return 3
	case MetricSecondary:
		return 2
	case MetricAuxiliary:
		return 1
	}
	panic(fmt.Sprintf("unknown metric priority %d", int(p)))
}

func (p MetricPriority) MarshalText() ([]byte, error) {
	switch p {
	case MetricPrimary, MetricSecondary, MetricAuxiliary:
		return []byte(p.Label()), nil
	}
	return nil, fmt.Errorf("unknown metric priority %d", int(p))
}

type DeliveryMetric struct {
	Name     string         `json:"name"`
	Value    int            `json:"value"`
	Priority MetricPriority `json:"priority"`
}

// DeliverySummary condenses delivery attempts into the metrics shown on a publication card.
func DeliverySummary(attempts []*DeliveryAttempt) []DeliveryMetric {
	var ok, failed int
	platforms := make(map[Platform]struct{})
	for _, a := range attempts {
		platforms[a.Platform] = struct{}{}
		if a.Succeeded() {
			ok++
		} else {
			failed++
		}
	}
	return []DeliveryMetric{
		{Name: "delivered", Value: ok, Priority: MetricPrimary},
		{Name: "failed", Value: failed, Priority: MetricSecondary},
		{Name: "platforms", Value: len(platforms), Priority: MetricAuxiliary},
	}
}
