package models

// MutedColor replaces a filtered palette slot
const MutedColor = "#cccccc"

// UnknownColor is displayed for color indices outside the palette
const UnknownColor = "#000000"

// Palette is an ordered sequence of display colors indexed by color value.
// Filtering replaces a slot with MutedColor without touching any stored
// color index; Reset restores the defaults.
type Palette struct {
	defaults []string
	colors   []string
	muteable int
}

// NewPalette creates a palette from colors. Slots [0, muteable) can be
// filtered; muteable is clamped to the palette size.
func NewPalette(colors []string, muteable int) *Palette {
	if muteable < 0 {
		muteable = 0
	}
	if muteable > len(colors) {
		muteable = len(colors)
	}
	p := &Palette{
		defaults: append([]string(nil), colors...),
		muteable: muteable,
	}
	p.Reset()
	return p
}

// DefaultPalette returns red, green, blue, brown and cyan with the first
// three colors filterable
func DefaultPalette() *Palette {
	return NewPalette([]string{
		"#ff0000", // red
		"#008000", // green
		"#0000ff", // blue
		"#a52a2a", // brown
		"#00ffff", // cyan
	}, 3)
}

// Len returns the number of palette slots
func (p *Palette) Len() int {
	return len(p.colors)
}

// Muteable returns the size of the filterable range
func (p *Palette) Muteable() int {
	return p.muteable
}

// Display translates a color index to its current display value
func (p *Palette) Display(index int) string {
	if index < 0 || index >= len(p.colors) {
		return UnknownColor
	}
	return p.colors[index]
}

// IsMuted reports whether the slot is currently filtered
func (p *Palette) IsMuted(index int) bool {
	return index >= 0 && index < len(p.colors) && p.colors[index] == MutedColor && p.defaults[index] != MutedColor
}

// Filter mutes index when it is in the filterable range and resets the
// whole palette otherwise. It reports whether a slot was muted.
func (p *Palette) Filter(index int) bool {
	if index >= 0 && index < p.muteable {
		p.colors[index] = MutedColor
		return true
	}
	p.Reset()
	return false
}

// Reset restores every slot to its default color
func (p *Palette) Reset() {
	p.colors = append(p.colors[:0], p.defaults...)
}

// Colors returns a copy of the current display values
func (p *Palette) Colors() []string {
	return append([]string(nil), p.colors...)
}
