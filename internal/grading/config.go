package grading

import "github.com/mind-engage/pruefungstrainer/internal/content"

// DefaultPassPercent is the inclusive pass threshold.
const DefaultPassPercent = 60

// DefaultPoints are the points per question of each part kind.
var DefaultPoints = map[content.Kind]float64{
	content.KindTeil1:    5,
	content.KindTeil2:    5,
	content.KindTeil3:    2.5,
	content.KindSprach1:  1.5,
	content.KindSprach2:  1.5,
	content.KindAussagen: 1,
}

// Config is a fully resolved score configuration.
type Config struct {
	PassPercent float64                  `json:"pass_percent"`
	Points      map[content.Kind]float64 `json:"points"`
}

func DefaultConfig() Config {
	pts := make(map[content.Kind]float64, len(DefaultPoints))
	for k, v := range DefaultPoints {
		pts[k] = v
	}
	return Config{PassPercent: DefaultPassPercent, Points: pts}
}

// PointsFor returns the configured points for k, falling back to the default.
func (c Config) PointsFor(k content.Kind) float64 {
	if v, ok := c.Points[k]; ok {
		return v
	}
	return DefaultPoints[k]
}
