// Package effects implements the per-clip camera effects. Every effect is a
// pure function of its parameters and the clip-local progress: it mutates a
// Canvas (transform, color chain, post passes) before the image is drawn.
package effects

import (
	"math"
	"math/rand"
	"strconv"
)

// Kind identifies an effect.
type Kind string

const (
	None                Kind = "none"
	Flash               Kind = "flash"
	Pulse               Kind = "pulse"
	Spin                Kind = "spin"
	VHS                 Kind = "vhs"
	Rotate              Kind = "rotate"
	Vaporwave           Kind = "vaporwave"
	ChromaticAberration Kind = "chromatic-aberration"
	CrashZoom           Kind = "crash-zoom"
	SlowZoom            Kind = "slow-zoom"
	GreenScreen         Kind = "green-screen"
	Random              Kind = "random"
)

var allKinds = []Kind{
	None, Flash, Pulse, Spin, VHS, Rotate, Vaporwave,
	ChromaticAberration, CrashZoom, SlowZoom, GreenScreen, Random,
}

// randomPool is what Random may delegate to.
var randomPool = []Kind{
	Flash, Pulse, Spin, VHS, Rotate, Vaporwave, ChromaticAberration, CrashZoom, SlowZoom,
}

// Kinds returns every effect kind in menu order.
func Kinds() []Kind {
	out := make([]Kind, len(allKinds))
	copy(out, allKinds)
	return out
}

// ParseKind maps an effect name to its Kind. Empty input is None.
func ParseKind(s string) (Kind, bool) {
	if s == "" {
		return None, true
	}
	for _, k := range allKinds {
		if string(k) == s {
			return k, true
		}
	}
	return None, false
}

// Params is the parameter record of one effect. Implementations are value
// types; With returns an updated copy and never fails.
type Params interface {
	Kind() Kind
	// Apply mutates c for the given clip-local progress in [0,1].
	Apply(c *Canvas, progress float64)
	// With sets one named parameter. Unknown names, wrong value types and
	// non-finite numbers are ignored.
	With(name string, v Value) Params
	// Values is a map view of the record, keyed by parameter name.
	Values() map[string]Value
}

// Defaults returns the default parameter set for k. Unknown kinds get the
// identity effect. The Random record returned here is unpinned: it re-picks
// its delegate on every frame. Use New to pin it.
func Defaults(k Kind) Params {
	switch k {
	case Flash:
		return FlashParams{Intensity: 1, Duration: 0.5}
	case Pulse:
		return PulseParams{Frequency: 1, Amplitude: 0.5}
	case Spin:
		return SpinParams{Speed: 1, Direction: Clockwise}
	case VHS:
		return VHSParams{NoiseIntensity: 0.5, ScanLineOpacity: 0.5}
	case Rotate:
		return RotateParams{Angle: 0}
	case Vaporwave:
		return VaporwaveParams{ColorIntensity: 1, GlitchFrequency: 0.5}
	case ChromaticAberration:
		return ChromaticAberrationParams{Intensity: 0.5}
	case CrashZoom:
		return CrashZoomParams{Direction: ZoomIn, Duration: 0.5, Scale: 2}
	case SlowZoom:
		return SlowZoomParams{StartScale: 1, EndScale: 1.5}
	case GreenScreen:
		return GreenScreenParams{Tolerance: 0.5, Feather: 0.1}
	case Random:
		return RandomParams{}
	}
	return NoneParams{}
}

// New returns the defaults for k, pinning the Random delegate with rng.
func New(k Kind, rng *rand.Rand) Params {
	if k == Random && rng != nil {
		return RandomParams{Pick: randomPool[rng.Intn(len(randomPool))]}
	}
	return Defaults(k)
}

// Value is a parameter value: either a number or a categorical choice.
type Value struct {
	num    float64
	str    string
	choice bool
}

// Number wraps a numeric parameter value.
func Number(f float64) Value { return Value{num: f} }

// Choice wraps a categorical parameter value.
func Choice(s string) Value { return Value{str: s, choice: true} }

// Float returns the numeric value. ok is false for choices and non-finite numbers.
func (v Value) Float() (f float64, ok bool) {
	if v.choice || math.IsNaN(v.num) || math.IsInf(v.num, 0) {
		return 0, false
	}
	return v.num, true
}

// Choice returns the categorical value.
func (v Value) Choice() (string, bool) {
	return v.str, v.choice
}

func (v Value) String() string {
	if v.choice {
		return v.str
	}
	return strconv.FormatFloat(v.num, 'g', -1, 64)
}

func setFloat(dst *float64, v Value) {
	if f, ok := v.Float(); ok {
		*dst = f
	}
}

func clampProgress(p float64) float64 {
	if math.IsNaN(p) || p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
