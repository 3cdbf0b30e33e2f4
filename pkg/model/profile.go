package model

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"
)

const (
	MaxCustomPrefixes     = 5
	MaxCustomPrefixLength = 6
	MaxAdminPrefixLength  = 12
	DefaultBracketStyle   = BracketStyle("[]")
	DefaultBracketColor   = ColorGray
	DefaultMessageColor   = ColorWhite
	displayRankSeparator  = "|"
	colorCodeAlphabet     = "0123456789abcdef"
)

// Color is one of the sixteen chat colors.
type Color string

const (
	ColorBlack       Color = "black"
	ColorDarkBlue    Color = "dark_blue"
	ColorDarkGreen   Color = "dark_green"
	ColorDarkAqua    Color = "dark_aqua"
	ColorDarkRed     Color = "dark_red"
	ColorDarkPurple  Color = "dark_purple"
	ColorGold        Color = "gold"
	ColorGray        Color = "gray"
	ColorDarkGray    Color = "dark_gray"
	ColorBlue        Color = "blue"
	ColorGreen       Color = "green"
	ColorAqua        Color = "aqua"
	ColorRed         Color = "red"
	ColorLightPurple Color = "light_purple"
	ColorYellow      Color = "yellow"
	ColorWhite       Color = "white"
)

// Colors lists every color in code order (0-f).
var Colors = []Color{
	ColorBlack, ColorDarkBlue, ColorDarkGreen, ColorDarkAqua,
	ColorDarkRed, ColorDarkPurple, ColorGold, ColorGray,
	ColorDarkGray, ColorBlue, ColorGreen, ColorAqua,
	ColorRed, ColorLightPurple, ColorYellow, ColorWhite,
}

// ParseColor accepts a color name or its single hex code, case-insensitively.
func ParseColor(s string) (Color, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, c := range Colors {
		if string(c) == s {
			return c, nil
		}
	}
	if len(s) == 1 {
		if i := strings.IndexByte(colorCodeAlphabet, s[0]); i >= 0 {
			return Colors[i], nil
		}
	}
	return "", fmt.Errorf("color %q: %w", s, ErrInvalidEnumValue)
}

// Valid reports whether c is one of the sixteen colors.
func (c Color) Valid() bool {
	return slices.Contains(Colors, c)
}

// Code returns the single hex digit for c, or "" if c is invalid.
func (c Color) Code() string {
	i := slices.Index(Colors, c)
	if i < 0 {
		return ""
	}
	return colorCodeAlphabet[i : i+1]
}

// BracketStyle is the pair of glyphs wrapped around a username.
type BracketStyle string

// BracketStyles lists every supported bracket style.
var BracketStyles = []BracketStyle{"[]", "()", "{}", "<>", "||", "««»»"}

// ParseBracketStyle validates s against BracketStyles.
func ParseBracketStyle(s string) (BracketStyle, error) {
	b := BracketStyle(strings.TrimSpace(s))
	if !slices.Contains(BracketStyles, b) {
		return "", fmt.Errorf("bracket %q: %w", s, ErrInvalidEnumValue)
	}
	return b, nil
}

// BracketStyleList returns the styles joined for help output.
func BracketStyleList() string {
	parts := make([]string, len(BracketStyles))
	for i, b := range BracketStyles {
		parts[i] = string(b)
	}
	return strings.Join(parts, " ")
}

// Profile holds a user's display customization.
type Profile struct {
	BracketStyle   BracketStyle `json:"bracketStyle"`
	BracketColor   Color        `json:"bracketColor"`
	MessageColor   Color        `json:"messageColor"`
	CustomPrefixes []string     `json:"customPrefixes"`
	SelectedPrefix string       `json:"selectedPrefix,omitempty"`
}

// DefaultProfile returns a profile with default styling.
func DefaultProfile() Profile {
	return Profile{
		BracketStyle:   DefaultBracketStyle,
		BracketColor:   DefaultBracketColor,
		MessageColor:   DefaultMessageColor,
		CustomPrefixes: []string{},
	}
}

// Clone returns a deep copy safe to hand to other goroutines.
func (p Profile) Clone() Profile {
	out := p
	out.CustomPrefixes = slices.Clone(p.CustomPrefixes)
	if out.CustomPrefixes == nil {
		out.CustomPrefixes = []string{}
	}
	return out
}

// Normalize repairs fields loaded from an older or hand-edited store.
func (p *Profile) Normalize() {
	if !slices.Contains(BracketStyles, p.BracketStyle) {
		p.BracketStyle = DefaultBracketStyle
	}
	if !p.BracketColor.Valid() {
		p.BracketColor = DefaultBracketColor
	}
	if !p.MessageColor.Valid() {
		p.MessageColor = DefaultMessageColor
	}
	if p.CustomPrefixes == nil {
		p.CustomPrefixes = []string{}
	}
	if len(p.CustomPrefixes) > MaxCustomPrefixes {
		p.CustomPrefixes = p.CustomPrefixes[:MaxCustomPrefixes]
	}
	if p.SelectedPrefix != "" && !slices.Contains(p.CustomPrefixes, p.SelectedPrefix) {
		p.SelectedPrefix = ""
	}
}

// AddPrefix appends a custom prefix. It fails when the prefix is empty, too
// long, already present, or the profile is full.
func (p *Profile) AddPrefix(prefix string) error {
	n := utf8.RuneCountInString(prefix)
	switch {
	case n == 0:
		return ErrMissingArgument
	case n > MaxCustomPrefixLength:
		return fmt.Errorf("prefix longer than %d characters: %w", MaxCustomPrefixLength, ErrInvalidEnumValue)
	case len(p.CustomPrefixes) >= MaxCustomPrefixes:
		return fmt.Errorf("at most %d prefixes: %w", MaxCustomPrefixes, ErrInvalidEnumValue)
	case slices.Contains(p.CustomPrefixes, prefix):
		return fmt.Errorf("prefix %q exists: %w", prefix, ErrInvalidEnumValue)
	}
	p.CustomPrefixes = append(p.CustomPrefixes, prefix)
	return nil
}

// RemovePrefix deletes a custom prefix and clears the selection if it pointed at it.
func (p *Profile) RemovePrefix(prefix string) bool {
	i := slices.Index(p.CustomPrefixes, prefix)
	if i < 0 {
		return false
	}
	p.CustomPrefixes = slices.Delete(p.CustomPrefixes, i, i+1)
	if p.SelectedPrefix == prefix {
		p.SelectedPrefix = ""
	}
	return true
}

// SelectPrefix makes an existing custom prefix the active one.
func (p *Profile) SelectPrefix(prefix string) error {
	if !slices.Contains(p.CustomPrefixes, prefix) {
		return fmt.Errorf("prefix %q: %w", prefix, ErrInvalidEnumValue)
	}
	p.SelectedPrefix = prefix
	return nil
}

// AdminPrefix is a colored tag assigned by a privileged user.
type AdminPrefix struct {
	Name  string `json:"name"`
	Color Color  `json:"color"`
}

// NewAdminPrefix validates name and color.
func NewAdminPrefix(name, color string) (AdminPrefix, error) {
	n := utf8.RuneCountInString(name)
	if n == 0 {
		return AdminPrefix{}, ErrMissingArgument
	}
	if n > MaxAdminPrefixLength {
		return AdminPrefix{}, fmt.Errorf("prefix longer than %d characters: %w", MaxAdminPrefixLength, ErrInvalidEnumValue)
	}
	c, err := ParseColor(color)
	if err != nil {
		return AdminPrefix{}, err
	}
	return AdminPrefix{Name: name, Color: c}, nil
}

// DisplayRank composes a special rank and an admin prefix name as "rank|prefix".
// Either side may be empty.
func DisplayRank(rank string, prefix *AdminPrefix) string {
	name := ""
	if prefix != nil {
		name = prefix.Name
	}
	switch {
	case rank != "" && name != "":
		return rank + displayRankSeparator + name
	case rank != "":
		return rank
	default:
		return name
	}
}
