package kde

import "time"

// Point is one weighted sample fed to the estimator.
type Point struct {
	X      float64   // spatial feature, [0,100]
	Y      float64   // behavioural feature, [0,100]
	T      time.Time // occurrence time, reduced to hour-of-day in Mode3D
	Weight float64   // severity; contributions scale linearly with it
}

// hourOfDay returns the continuous hour of t in loc, in [0,24).
func hourOfDay(t time.Time, loc *time.Location) float64 {
	lt := t.In(loc)
	return float64(lt.Hour()) +
		float64(lt.Minute())/60 +
		float64(lt.Second())/3600 +
		float64(lt.Nanosecond())/3.6e12
}
