// Package risk defines abnormal access events, their severity levels and the
// operator-facing filter and statistics over them.
package risk

import (
	"fmt"
	"strings"
	"time"

	"github.com/banshee-data/riskmap/internal/kde"
)

// Dimension is the behavioural dimension an abnormal event was detected on.
type Dimension string

const (
	DimensionTime        Dimension = "TIME"
	DimensionBehavior    Dimension = "BEHAVIOR"
	DimensionSensitivity Dimension = "SENSITIVITY"
	DimensionCombined    Dimension = "COMBINED"
)

// Dimensions lists every dimension in display order.
var Dimensions = []Dimension{DimensionTime, DimensionBehavior, DimensionSensitivity, DimensionCombined}

// Level is the categorical risk severity of an event.
type Level string

const (
	LevelCritical Level = "CRITICAL"
	LevelHigh     Level = "HIGH"
	LevelMedium   Level = "MEDIUM"
	LevelLow      Level = "LOW"
	LevelNone     Level = "NONE"
)

// Levels lists every level from most to least severe.
var Levels = []Level{LevelCritical, LevelHigh, LevelMedium, LevelLow, LevelNone}

// ParseDimension accepts a dimension name or its one-letter code (T, B, S, C).
func ParseDimension(s string) (Dimension, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TIME", "T":
		return DimensionTime, nil
	case "BEHAVIOR", "BEHAVIOUR", "B":
		return DimensionBehavior, nil
	case "SENSITIVITY", "S":
		return DimensionSensitivity, nil
	case "COMBINED", "C":
		return DimensionCombined, nil
	}
	return "", fmt.Errorf("unknown dimension %q", s)
}

// ParseLevel accepts a level name in any case.
func ParseLevel(s string) (Level, error) {
	l := Level(strings.ToUpper(strings.TrimSpace(s)))
	for _, v := range Levels {
		if l == v {
			return l, nil
		}
	}
	return "", fmt.Errorf("unknown risk level %q", s)
}

// Score is the severity weight of a level: CRITICAL 5, HIGH 4, anything
// else 3.
func (l Level) Score() int {
	switch l {
	case LevelCritical:
		return 5
	case LevelHigh:
		return 4
	default:
		return 3
	}
}

// Color is the overlay marker colour for a level.
func (l Level) Color() string {
	switch l {
	case LevelCritical:
		return "#ef4444"
	case LevelHigh:
		return "#f97316"
	case LevelMedium:
		return "#eab308"
	case LevelLow:
		return "#3b82f6"
	default:
		return "transparent"
	}
}

// Event is one abnormal access record. Events are never mutated once
// created; the score is always derived from Level.
type Event struct {
	ID        string    `json:"id"`
	X         float64   `json:"x"` // spatial/IP feature, [0,100]
	Y         float64   `json:"y"` // behaviour/frequency feature, [0,100]
	T         time.Time `json:"t"`
	Type      string    `json:"abnormalType"`
	Dimension Dimension `json:"dimension"`
	Level     Level     `json:"riskLevel"`
	User      string    `json:"userName"`
	Terminal  string    `json:"terminal"`
	Details   string    `json:"details"`
}

// Score returns the event's severity weight.
func (e Event) Score() int { return e.Level.Score() }

// Point converts the event into an estimator sample weighted by its score.
func (e Event) Point() kde.Point {
	return kde.Point{X: e.X, Y: e.Y, T: e.T, Weight: float64(e.Score())}
}

// Points converts events to estimator samples, preserving order.
func Points(events []Event) []kde.Point {
	out := make([]kde.Point, len(events))
	for i, e := range events {
		out[i] = e.Point()
	}
	return out
}
