package model

// Settings holds user appearance preferences, synchronized as one document.
type Settings struct {
	Theme       string  `json:"theme"`       // dark | light
	AccentColor string  `json:"accentColor"` // css color
	FontFamily  string  `json:"fontFamily"`
	FontSize    float64 `json:"fontSize"`    // px
	LineSpacing float64 `json:"lineSpacing"` // multiplier
	TextWidth   string  `json:"textWidth"`   // narrow | comfortable | wide
	ViewDensity string  `json:"viewDensity"` // compact | comfortable

	Extra Extra `json:"-"`
}

// MarshalJSON keeps members written by other clients.
func (s Settings) MarshalJSON() ([]byte, error) {
	type plain Settings
	return encodeExtra(plain(s), s.Extra)
}

// UnmarshalJSON collects undeclared members into Extra.
func (s *Settings) UnmarshalJSON(data []byte) error {
	type plain Settings
	return decodeExtra(data, (*plain)(s), &s.Extra)
}

// DefaultSettings returns the settings of a fresh install.
func DefaultSettings() Settings {
	return Settings{
		Theme:       "dark",
		AccentColor: "#4a90e2",
		FontFamily:  "Inter",
		FontSize:    16,
		LineSpacing: 1.6,
		TextWidth:   "comfortable",
		ViewDensity: "comfortable",
	}
}
