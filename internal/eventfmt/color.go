package eventfmt

import (
	"regexp"
	"strconv"

	"github.com/fatih/color"
)

var hexColor = regexp.MustCompile(`^[A-Fa-f0-9]{6}$`)

var namedColors = map[string]color.Attribute{
	"black":          color.FgBlack,
	"red":            color.FgRed,
	"green":          color.FgGreen,
	"yellow":         color.FgYellow,
	"blue":           color.FgBlue,
	"magenta":        color.FgMagenta,
	"cyan":           color.FgCyan,
	"white":          color.FgWhite,
	"bright_black":   color.FgHiBlack,
	"bright_red":     color.FgHiRed,
	"bright_green":   color.FgHiGreen,
	"bright_yellow":  color.FgHiYellow,
	"bright_blue":    color.FgHiBlue,
	"bright_magenta": color.FgHiMagenta,
	"bright_cyan":    color.FgHiCyan,
	"bright_white":   color.FgHiWhite,
}

// resolveColor maps a color spec (a named color, including bright_*, or a
// 6-hex-digit RGB triple) to a *color.Color. It reports ok=false for
// anything else, which the caller treats as "disable coloring" per §4.2.
func resolveColor(spec string) (*color.Color, bool) {
	if hexColor.MatchString(spec) {
		r, _ := strconv.ParseInt(spec[0:2], 16, 0)
		g, _ := strconv.ParseInt(spec[2:4], 16, 0)
		b, _ := strconv.ParseInt(spec[4:6], 16, 0)
		c := color.RGB(int(r), int(g), int(b))
		c.EnableColor()
		return c, true
	}
	if attr, ok := namedColors[spec]; ok {
		c := color.New(attr)
		c.EnableColor()
		return c, true
	}
	return nil, false
}
