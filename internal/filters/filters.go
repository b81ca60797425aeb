// Package filters holds the named color grades that can be assigned to a clip.
//
// A grade is an ordered list of CSS-style color operations (sepia, hue-rotate,
// saturate, contrast, brightness, grayscale). The same description is used to
// grade preview frames in memory and to build the ffmpeg filter for export.
package filters

import "sort"

// Kind identifies a filter preset.
type Kind string

const (
	None            Kind = "none"
	OrangeAndTeal   Kind = "orange-and-teal"
	GoldenHour      Kind = "golden-hour"
	PurpleUndertone Kind = "purple-undertone"
	Film35mm        Kind = "35mm"
	Fall            Kind = "fall"
	OldWestern      Kind = "old-western"
	Retro           Kind = "retro"
	BoldAndBlue     Kind = "bold-and-blue"
	VibrantVlogger  Kind = "vibrant-vlogger"
	WinterSunset    Kind = "winter-sunset"
	Contrast        Kind = "contrast"
	Winter          Kind = "winter"
	WarmCoastline   Kind = "warm-coastline"
	CoolCountryside Kind = "cool-countryside"
	Golden          Kind = "golden"
	Dreamscape      Kind = "dreamscape"
	Sunrise         Kind = "sunrise"
	WarmToneFilm    Kind = "warm-tone-film"
	CoolTone        Kind = "cool-tone"
	PastelDreams    Kind = "pastel-dreams"
	Increased       Kind = "increased"
	Scenery         Kind = "scenery"
	Portrait        Kind = "portrait"
	Indoors         Kind = "indoors"
	Outdoors        Kind = "outdoors"
	San1            Kind = "san-1"
	Muted           Kind = "muted"
	BlackAndWhite1  Kind = "black-and-white-1"
)

// presets mirror the CSS filter strings of the editor, in application order.
var presets = map[Kind]Adjustment{
	OrangeAndTeal:   {SepiaOp(0.5), HueRotateOp(20), SaturateOp(1.5)},
	GoldenHour:      {SepiaOp(0.3), BrightnessOp(1.1), ContrastOp(1.1), SaturateOp(1.3)},
	PurpleUndertone: {HueRotateOp(270), SaturateOp(1.2), BrightnessOp(1.05)},
	Film35mm:        {ContrastOp(1.1), BrightnessOp(1.1), SaturateOp(0.85), SepiaOp(0.1)},
	Fall:            {SepiaOp(0.2), SaturateOp(1.5), HueRotateOp(350), ContrastOp(1.1)},
	OldWestern:      {SepiaOp(0.8), ContrastOp(1.2), SaturateOp(0.5)},
	Retro:           {SepiaOp(0.4), SaturateOp(0.8), HueRotateOp(330), BrightnessOp(0.9)},
	BoldAndBlue:     {HueRotateOp(180), SaturateOp(1.5), ContrastOp(1.2)},
	VibrantVlogger:  {ContrastOp(1.2), SaturateOp(1.5), BrightnessOp(1.1)},
	WinterSunset:    {HueRotateOp(330), SaturateOp(1.4), ContrastOp(1.1), BrightnessOp(1.05)},
	Contrast:        {ContrastOp(1.5), BrightnessOp(1.05)},
	Winter:          {BrightnessOp(1.1), ContrastOp(1.1), SaturateOp(0.8), HueRotateOp(180)},
	WarmCoastline:   {SepiaOp(0.3), SaturateOp(1.4), HueRotateOp(10), BrightnessOp(1.05)},
	CoolCountryside: {SaturateOp(1.1), BrightnessOp(1.05), ContrastOp(1.05), HueRotateOp(350)},
	Golden:          {SepiaOp(0.4), SaturateOp(1.5), BrightnessOp(1.1), ContrastOp(1.1)},
	Dreamscape:      {BrightnessOp(1.05), ContrastOp(1.05), SaturateOp(1.2), HueRotateOp(10)},
	Sunrise:         {SepiaOp(0.3), SaturateOp(1.6), BrightnessOp(1.1), ContrastOp(1.05), HueRotateOp(350)},
	WarmToneFilm:    {SepiaOp(0.2), SaturateOp(1.1), ContrastOp(1.1), BrightnessOp(1.05)},
	CoolTone:        {SaturateOp(0.9), BrightnessOp(1.05), ContrastOp(1.1), HueRotateOp(180)},
	PastelDreams:    {SaturateOp(1.2), BrightnessOp(1.1), ContrastOp(0.95), HueRotateOp(10)},
	Increased:       {SaturateOp(1.3), ContrastOp(1.2), BrightnessOp(1.1)},
	Scenery:         {SaturateOp(1.2), ContrastOp(1.1), BrightnessOp(1.05), HueRotateOp(355)},
	Portrait:        {SaturateOp(1.1), ContrastOp(1.05), BrightnessOp(1.05), SepiaOp(0.1)},
	Indoors:         {BrightnessOp(1.05), ContrastOp(1.05), SaturateOp(1.1), SepiaOp(0.1)},
	Outdoors:        {SaturateOp(1.2), ContrastOp(1.1), BrightnessOp(1.1), HueRotateOp(355)},
	San1:            {SaturateOp(1.2), ContrastOp(1.1), BrightnessOp(1.05), SepiaOp(0.1)},
	Muted:           {SaturateOp(0.8), ContrastOp(0.95), BrightnessOp(1.0)},
	BlackAndWhite1:  {GrayscaleOp(1), ContrastOp(1.2), BrightnessOp(1.1)},
}

// Lookup returns the adjustment for k. None and unknown kinds map to the
// identity (an empty adjustment).
func Lookup(k Kind) Adjustment {
	adj, ok := presets[k]
	if !ok {
		return nil
	}
	out := make(Adjustment, len(adj))
	copy(out, adj)
	return out
}

// Kinds lists every preset, None first, the rest sorted by name.
func Kinds() []Kind {
	kinds := make([]Kind, 0, len(presets)+1)
	for k := range presets {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return append([]Kind{None}, kinds...)
}

// Parse maps a preset name to its Kind. Empty input is None.
func Parse(s string) (Kind, bool) {
	if s == "" || Kind(s) == None {
		return None, true
	}
	k := Kind(s)
	_, ok := presets[k]
	return k, ok
}
