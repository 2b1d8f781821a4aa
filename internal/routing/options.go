package routing

// Options tunes graph construction and the search. Zero values are replaced by
// the defaults below, so a zero Options is usable.
type Options struct {
	// MaxWalkingDistanceMeters bounds walk edges and start/goal candidates.
	MaxWalkingDistanceMeters float64
	WalkingSpeedMPS          float64
	BusSpeedMPS              float64

	// BoundingBoxDegrees is the raw lat/lng pre-filter applied before the
	// haversine check when adding walk edges. It is latitude independent, so
	// east-west coverage shrinks towards the poles.
	BoundingBoxDegrees float64

	// Penalties left at zero take their defaults. A negative penalty (see
	// NoPenalty) switches it off.
	BoardingPenaltySeconds       float64
	TransferPenaltySeconds       float64
	WrongDirectionPenaltySeconds float64

	// DirectWalkMaxMeters is the largest origin-destination distance for
	// which walking the whole way is a candidate and a fallback.
	DirectWalkMaxMeters float64
	// ImmediateWalkMaxMeters returns a direct walk without searching when no
	// stop is reachable from either endpoint.
	ImmediateWalkMaxMeters float64

	// MinWalkStepMeters drops walk legs shorter than this from itineraries.
	MinWalkStepMeters float64
}

const (
	DefaultMaxWalkingDistanceMeters     = 1500.0
	DefaultWalkingSpeedMPS              = 1.2
	DefaultBusSpeedMPS                  = 5.5
	DefaultBoundingBoxDegrees           = 0.015
	DefaultBoardingPenaltySeconds       = 120.0
	DefaultTransferPenaltySeconds       = 1500.0
	DefaultWrongDirectionPenaltySeconds = 3600.0
	DefaultDirectWalkMaxMeters          = 3000.0
	DefaultImmediateWalkMaxMeters       = 2000.0
	DefaultMinWalkStepMeters            = 1.0
)

// NoPenalty disables a penalty.
const NoPenalty = -1.0

// DefaultOptions returns the stock tuning.
func DefaultOptions() Options {
	return Options{}.withDefaults()
}

func (o Options) withDefaults() Options {
	set := func(v *float64, def float64) {
		if *v <= 0 {
			*v = def
		}
	}
	set(&o.MaxWalkingDistanceMeters, DefaultMaxWalkingDistanceMeters)
	set(&o.WalkingSpeedMPS, DefaultWalkingSpeedMPS)
	set(&o.BusSpeedMPS, DefaultBusSpeedMPS)
	set(&o.BoundingBoxDegrees, DefaultBoundingBoxDegrees)
	setPenalty := func(v *float64, def float64) {
		if *v == 0 {
			*v = def
		}
	}
	setPenalty(&o.BoardingPenaltySeconds, DefaultBoardingPenaltySeconds)
	setPenalty(&o.TransferPenaltySeconds, DefaultTransferPenaltySeconds)
	setPenalty(&o.WrongDirectionPenaltySeconds, DefaultWrongDirectionPenaltySeconds)
	set(&o.DirectWalkMaxMeters, DefaultDirectWalkMaxMeters)
	set(&o.ImmediateWalkMaxMeters, DefaultImmediateWalkMaxMeters)
	set(&o.MinWalkStepMeters, DefaultMinWalkStepMeters)
	return o
}

func (o Options) walkSeconds(meters float64) float64 { return meters / o.WalkingSpeedMPS }

func penalty(v float64) float64 { return max(v, 0) }
