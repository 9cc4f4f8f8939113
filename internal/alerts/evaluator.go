package alerts

import (
	"fmt"

	"fireguard/internal/models"
)

// Candidate is a breach proposed by evaluation, before suppression policy is
// applied.
type Candidate struct {
	Type    models.MetricType
	Value   float64
	Level   models.Level
	Message string
}

// criticalTempMargin is how far above the max a temperature reading must be
// to escalate from warning to critical.
const criticalTempMargin = 10

// Evaluate applies the metric rules to a reading against an already-resolved
// threshold set. It is a pure function: no lookups, no writes. Absent or
// non-finite metric values never breach. Each metric is judged independently,
// so one reading can yield several candidates.
func Evaluate(r *models.Reading, t models.ThresholdSet, source models.ThresholdSource) []Candidate {
	tag := fmt.Sprintf("[th:%s]", source)
	var out []Candidate

	if v := r.PM25; models.IsFinite(v) && *v > t.PM25 {
		out = append(out, Candidate{
			Type:    models.MetricPM25,
			Value:   *v,
			Level:   models.LevelWarning,
			Message: fmt.Sprintf("PM2.5 high: %g (threshold %g) %s", *v, t.PM25, tag),
		})
	}

	if v := r.PM10; models.IsFinite(v) && *v > t.PM10 {
		out = append(out, Candidate{
			Type:    models.MetricPM10,
			Value:   *v,
			Level:   models.LevelWarning,
			Message: fmt.Sprintf("PM10 high: %g (threshold %g) %s", *v, t.PM10, tag),
		})
	}

	if v := r.Temperature; models.IsFinite(v) && *v > t.Temperature {
		level := models.LevelWarning
		label := "high"
		if *v > t.Temperature+criticalTempMargin {
			level = models.LevelCritical
			label = "critical"
		}
		out = append(out, Candidate{
			Type:    models.MetricTemp,
			Value:   *v,
			Level:   level,
			Message: fmt.Sprintf("Temperature %s: %g (threshold %g) %s", label, *v, t.Temperature, tag),
		})
	}

	if v := r.Humidity; models.IsFinite(v) && *v < t.Humidity {
		out = append(out, Candidate{
			Type:    models.MetricHumidity,
			Value:   *v,
			Level:   models.LevelWarning,
			Message: fmt.Sprintf("Humidity low: %g (threshold %g) %s", *v, t.Humidity, tag),
		})
	}

	return out
}
