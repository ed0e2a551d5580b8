package angles

import "fmt"

// Axis is one of the two angle measurement types. Each granule yields one
// MetaGrid per axis.
type Axis int

const (
	AxisZenith Axis = iota
	AxisAzimuth
)

func (a Axis) String() string {
	switch a {
	case AxisZenith:
		return "zenith"
	case AxisAzimuth:
		return "azimuth"
	default:
		return fmt.Sprintf("axis(%d)", int(a))
	}
}

// ParseAxis maps the lowercase axis names used in storage and API query
// parameters back to an Axis.
func ParseAxis(s string) (Axis, error) {
	switch s {
	case "zenith":
		return AxisZenith, nil
	case "azimuth":
		return AxisAzimuth, nil
	default:
		return 0, fmt.Errorf("unknown axis %q (want zenith or azimuth)", s)
	}
}
