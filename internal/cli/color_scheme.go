package cli

import (
	"image/color"

	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/x/exp/charmtone"
)

// ColorSchemeFunc builds the scheme used for help and error output.
func ColorSchemeFunc(c lipgloss.LightDarkFunc) fang.ColorScheme {
	return fang.ColorScheme{
		Base:           c(charmtone.Charcoal, charmtone.Ash),
		Title:          c(charmtone.Charple, charmtone.Guppy),
		Codeblock:      c(charmtone.Salt, lipgloss.Color("#2F2E36")),
		Program:        c(charmtone.Malibu, charmtone.Sardine),
		Command:        c(charmtone.Malibu, charmtone.Sardine),
		DimmedArgument: c(charmtone.Squid, charmtone.Smoke),
		Comment:        c(charmtone.Squid, charmtone.Smoke),
		Flag:           c(charmtone.Malibu, charmtone.Sardine),
		Argument:       c(charmtone.Charcoal, charmtone.Ash),
		Description:    c(charmtone.Charcoal, charmtone.Ash),
		FlagDefault:    c(charmtone.Smoke, charmtone.Squid),
		QuotedString:   c(charmtone.Pony, charmtone.Cheeky),
		ErrorHeader: [2]color.Color{
			charmtone.Butter,
			charmtone.Cherry,
		},
	}
}
