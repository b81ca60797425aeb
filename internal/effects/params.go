package effects

import (
	"math"

	"github.com/ivlev/img2video/internal/filters"
)

type Direction string

const (
	Clockwise        Direction = "clockwise"
	Counterclockwise Direction = "counterclockwise"
)

type ZoomDirection string

const (
	ZoomIn  ZoomDirection = "in"
	ZoomOut ZoomDirection = "out"
)

// NoneParams is the identity effect.
type NoneParams struct{}

func (NoneParams) Kind() Kind                  { return None }
func (NoneParams) Apply(*Canvas, float64)      {}
func (p NoneParams) With(string, Value) Params { return p }
func (NoneParams) Values() map[string]Value    { return map[string]Value{} }

// FlashParams overlays white with alpha sin(progress·π)·intensity.
// Duration is accepted for compatibility and does not change the curve.
type FlashParams struct {
	Intensity float64
	Duration  float64
}

func (FlashParams) Kind() Kind { return Flash }

func (p FlashParams) Apply(c *Canvas, progress float64) {
	c.Overlay = Overlay{R: 255, G: 255, B: 255, Alpha: FlashAlpha(p.Intensity, progress)}
}

func (p FlashParams) With(name string, v Value) Params {
	switch name {
	case "intensity":
		setFloat(&p.Intensity, v)
	case "duration":
		setFloat(&p.Duration, v)
	}
	return p
}

func (p FlashParams) Values() map[string]Value {
	return map[string]Value{"intensity": Number(p.Intensity), "duration": Number(p.Duration)}
}

// FlashAlpha is the overlay alpha of the flash effect, clamped to [0,1].
func FlashAlpha(intensity, progress float64) float64 {
	return clamp(math.Sin(clampProgress(progress)*math.Pi)*intensity, 0, 1)
}

// PulseParams scales by 1 + sin(progress·2π·frequency)·amplitude.
type PulseParams struct {
	Frequency float64
	Amplitude float64
}

func (PulseParams) Kind() Kind { return Pulse }

func (p PulseParams) Apply(c *Canvas, progress float64) {
	s := 1 + math.Sin(clampProgress(progress)*2*math.Pi*p.Frequency)*p.Amplitude
	c.Scale(s, s)
}

func (p PulseParams) With(name string, v Value) Params {
	switch name {
	case "frequency":
		setFloat(&p.Frequency, v)
	case "amplitude":
		setFloat(&p.Amplitude, v)
	}
	return p
}

func (p PulseParams) Values() map[string]Value {
	return map[string]Value{"frequency": Number(p.Frequency), "amplitude": Number(p.Amplitude)}
}

// SpinParams rotates by progress·360·speed degrees.
type SpinParams struct {
	Speed     float64
	Direction Direction
}

func (SpinParams) Kind() Kind { return Spin }

func (p SpinParams) Apply(c *Canvas, progress float64) {
	angle := clampProgress(progress) * 360 * p.Speed
	if p.Direction != Clockwise {
		angle = -angle
	}
	c.Rotate(angle)
}

func (p SpinParams) With(name string, v Value) Params {
	switch name {
	case "speed":
		setFloat(&p.Speed, v)
	case "direction":
		if s, ok := v.Choice(); ok && (Direction(s) == Clockwise || Direction(s) == Counterclockwise) {
			p.Direction = Direction(s)
		}
	}
	return p
}

func (p SpinParams) Values() map[string]Value {
	return map[string]Value{"speed": Number(p.Speed), "direction": Choice(string(p.Direction))}
}

var vhsGrade = filters.Adjustment{
	filters.SaturateOp(1.2),
	filters.ContrastOp(1.1),
	filters.BrightnessOp(1.1),
}

// VHSParams grades the frame, draws scanlines every 2px and adds noise.
type VHSParams struct {
	NoiseIntensity  float64
	ScanLineOpacity float64
}

func (VHSParams) Kind() Kind { return VHS }

func (p VHSParams) Apply(c *Canvas, _ float64) {
	c.Filter = append(c.Filter, vhsGrade...)
	c.ScanLines = ScanLines{Spacing: 2, Opacity: clamp(p.ScanLineOpacity, 0, 1)}
	c.Noise = clamp(math.Abs(p.NoiseIntensity), 0, 1)
}

func (p VHSParams) With(name string, v Value) Params {
	switch name {
	case "noiseIntensity":
		setFloat(&p.NoiseIntensity, v)
	case "scanLineOpacity":
		setFloat(&p.ScanLineOpacity, v)
	}
	return p
}

func (p VHSParams) Values() map[string]Value {
	return map[string]Value{"noiseIntensity": Number(p.NoiseIntensity), "scanLineOpacity": Number(p.ScanLineOpacity)}
}

// RotateParams is a static rotation.
type RotateParams struct {
	Angle float64
}

func (RotateParams) Kind() Kind { return Rotate }

func (p RotateParams) Apply(c *Canvas, _ float64) {
	c.Rotate(p.Angle)
}

func (p RotateParams) With(name string, v Value) Params {
	if name == "angle" {
		setFloat(&p.Angle, v)
	}
	return p
}

func (p RotateParams) Values() map[string]Value {
	return map[string]Value{"angle": Number(p.Angle)}
}

// VaporwaveParams applies a hue-rotate/saturate/contrast grade.
// GlitchFrequency is accepted but has no geometric effect yet.
type VaporwaveParams struct {
	ColorIntensity  float64
	GlitchFrequency float64
}

func (VaporwaveParams) Kind() Kind { return Vaporwave }

func (p VaporwaveParams) Apply(c *Canvas, _ float64) {
	c.Filter = append(c.Filter,
		filters.SaturateOp(1.5*math.Max(0, p.ColorIntensity)),
		filters.HueRotateOp(270),
		filters.ContrastOp(1.1),
	)
}

func (p VaporwaveParams) With(name string, v Value) Params {
	switch name {
	case "colorIntensity":
		setFloat(&p.ColorIntensity, v)
	case "glitchFrequency":
		setFloat(&p.GlitchFrequency, v)
	}
	return p
}

func (p VaporwaveParams) Values() map[string]Value {
	return map[string]Value{"colorIntensity": Number(p.ColorIntensity), "glitchFrequency": Number(p.GlitchFrequency)}
}

// ChromaticAberrationParams approximates lens fringing with an R/B channel shift.
type ChromaticAberrationParams struct {
	Intensity float64
}

func (ChromaticAberrationParams) Kind() Kind { return ChromaticAberration }

func (p ChromaticAberrationParams) Apply(c *Canvas, _ float64) {
	c.ChannelShift = clamp(math.Abs(p.Intensity)*8, 0, 64)
}

func (p ChromaticAberrationParams) With(name string, v Value) Params {
	if name == "intensity" {
		setFloat(&p.Intensity, v)
	}
	return p
}

func (p ChromaticAberrationParams) Values() map[string]Value {
	return map[string]Value{"intensity": Number(p.Intensity)}
}

// CrashZoomParams interpolates scale 1->Scale (in) or Scale->1 (out).
type CrashZoomParams struct {
	Direction ZoomDirection
	Duration  float64
	Scale     float64
}

func (CrashZoomParams) Kind() Kind { return CrashZoom }

func (p CrashZoomParams) Apply(c *Canvas, progress float64) {
	t := clampProgress(progress)
	s := lerp(1, p.Scale, t)
	if p.Direction == ZoomOut {
		s = lerp(p.Scale, 1, t)
	}
	c.Scale(s, s)
}

func (p CrashZoomParams) With(name string, v Value) Params {
	switch name {
	case "direction":
		if s, ok := v.Choice(); ok && (ZoomDirection(s) == ZoomIn || ZoomDirection(s) == ZoomOut) {
			p.Direction = ZoomDirection(s)
		}
	case "duration":
		setFloat(&p.Duration, v)
	case "scale":
		setFloat(&p.Scale, v)
	}
	return p
}

func (p CrashZoomParams) Values() map[string]Value {
	return map[string]Value{
		"direction": Choice(string(p.Direction)),
		"duration":  Number(p.Duration),
		"scale":     Number(p.Scale),
	}
}

// SlowZoomParams interpolates scale from StartScale to EndScale.
type SlowZoomParams struct {
	StartScale float64
	EndScale   float64
}

func (SlowZoomParams) Kind() Kind { return SlowZoom }

func (p SlowZoomParams) Apply(c *Canvas, progress float64) {
	s := lerp(p.StartScale, p.EndScale, clampProgress(progress))
	c.Scale(s, s)
}

func (p SlowZoomParams) With(name string, v Value) Params {
	switch name {
	case "startScale":
		setFloat(&p.StartScale, v)
	case "endScale":
		setFloat(&p.EndScale, v)
	}
	return p
}

func (p SlowZoomParams) Values() map[string]Value {
	return map[string]Value{"startScale": Number(p.StartScale), "endScale": Number(p.EndScale)}
}

// GreenScreenParams is a chroma-key placeholder. It draws nothing yet.
// TODO: per-pixel color-distance keying against pure green using Tolerance and Feather.
type GreenScreenParams struct {
	Tolerance float64
	Feather   float64
}

func (GreenScreenParams) Kind() Kind             { return GreenScreen }
func (GreenScreenParams) Apply(*Canvas, float64) {}

func (p GreenScreenParams) With(name string, v Value) Params {
	switch name {
	case "tolerance":
		setFloat(&p.Tolerance, v)
	case "feather":
		setFloat(&p.Feather, v)
	}
	return p
}

func (p GreenScreenParams) Values() map[string]Value {
	return map[string]Value{"tolerance": Number(p.Tolerance), "feather": Number(p.Feather)}
}

// RandomParams delegates to another effect with its defaults. A pinned Pick
// is used on every frame; an empty Pick re-rolls per frame.
type RandomParams struct {
	Pick Kind
}

func (RandomParams) Kind() Kind { return Random }

func (p RandomParams) Apply(c *Canvas, progress float64) {
	pick := p.Pick
	if !inPool(pick) {
		pick = randomPool[c.intn(len(randomPool))]
	}
	Defaults(pick).Apply(c, progress)
}

func (p RandomParams) With(name string, v Value) Params {
	if name == "pick" {
		if s, ok := v.Choice(); ok && inPool(Kind(s)) {
			p.Pick = Kind(s)
		}
	}
	return p
}

func (p RandomParams) Values() map[string]Value {
	if p.Pick == "" {
		return map[string]Value{}
	}
	return map[string]Value{"pick": Choice(string(p.Pick))}
}

func inPool(k Kind) bool {
	for _, c := range randomPool {
		if c == k {
			return true
		}
	}
	return false
}
