package statsd

import (
	"fmt"
	"sort"

	"github.com/goto/salt/log"
)

// Metric represents a statsd metric.
type Metric struct {
	logger        log.Logger
	name          string
	rate          float64
	tags          map[string]string
	withInfluxTag bool
	publishFunc   func(name string, tags []string, rate float64) error
}

// Success tags the metric as successful.
func (m *Metric) Success() *Metric {
	return m.Tag("success", "true")
}

// Failure tags the metric as failure.
func (m *Metric) Failure() *Metric {
	return m.Tag("success", "false")
}

// Tag adds a tag to the metric.
func (m *Metric) Tag(key string, val string) *Metric {
	if m == nil {
		return nil
	}

	if m.tags == nil {
		m.tags = map[string]string{}
	}

	m.tags[key] = val
	return m
}

// Publish sends the metric with collected tags. Tags are emitted in key order.
func (m *Metric) Publish() {
	if m == nil {
		return
	}

	name := m.name
	var ddTags []string
	if m.withInfluxTag {
		name = m.processTagsInflux()
	} else {
		ddTags = m.processTagsDatadog()
	}

	if err := m.publishFunc(name, ddTags, m.rate); err != nil {
		m.logger.Warn("failed to publish metric", "name", name, "err", err)
	}
}

func (m *Metric) sortedKeys() []string {
	keys := make([]string, 0, len(m.tags))
	for k := range m.tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m *Metric) processTagsDatadog() []string {
	tags := []string{}
	for _, k := range m.sortedKeys() {
		tags = append(tags, fmt.Sprintf("%s:%s", k, m.tags[k]))
	}
	return tags
}

func (m *Metric) processTagsInflux() string {
	finalName := m.name
	for _, k := range m.sortedKeys() {
		finalName = fmt.Sprintf("%s,%s=%s", finalName, k, m.tags[k])
	}
	return finalName
}
