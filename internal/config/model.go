package config

var defaultConfig = Config{
	Display: "",
	HTTP: HTTP{
		Enabled: false,
		Address: "127.0.0.1:8081",
	},
	Animations: Animations{
		Enabled:   true,
		MapMS:     150,
		UnmapMS:   150,
		DestroyMS: 150,
		FadeMS:    100,
	},
	Opacity: Opacity{
		Active:   1.0,
		Inactive: 1.0,
	},
	Rules: []Rule{},
}

type Config struct {
	Display    string     `json:"display" yaml:"display"`
	HTTP       HTTP       `json:"http" yaml:"http"`
	Animations Animations `json:"animations" yaml:"animations"`
	Opacity    Opacity    `json:"opacity" yaml:"opacity"`
	Rules      []Rule     `json:"rules" yaml:"rules"`
}

// HTTP configures the inspection API.
type HTTP struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Address string `json:"address" yaml:"address"`
}

// Animations are transition durations in milliseconds. Zero disables the
// corresponding animation.
type Animations struct {
	Enabled   bool `json:"enabled" yaml:"enabled"`
	MapMS     int  `json:"map_ms" yaml:"map_ms"`
	UnmapMS   int  `json:"unmap_ms" yaml:"unmap_ms"`
	DestroyMS int  `json:"destroy_ms" yaml:"destroy_ms"`
	FadeMS    int  `json:"fade_ms" yaml:"fade_ms"`
}

type Opacity struct {
	Active   float64 `json:"active" yaml:"active"`
	Inactive float64 `json:"inactive" yaml:"inactive"`
}

// Rule matches windows by their properties and overrides effects for them.
// All set match fields must hold; match strings are anchored regular
// expressions. Nil effect fields leave the default in place.
type Rule struct {
	Name       string `json:"name,omitempty" yaml:"name,omitempty"`
	Class      string `json:"class,omitempty" yaml:"class,omitempty"`
	Instance   string `json:"instance,omitempty" yaml:"instance,omitempty"`
	Role       string `json:"role,omitempty" yaml:"role,omitempty"`
	Type       string `json:"type,omitempty" yaml:"type,omitempty"`
	Fullscreen *bool  `json:"fullscreen,omitempty" yaml:"fullscreen,omitempty"`
	Focused    *bool  `json:"focused,omitempty" yaml:"focused,omitempty"`

	Shadow  *bool    `json:"shadow,omitempty" yaml:"shadow,omitempty"`
	Fade    *bool    `json:"fade,omitempty" yaml:"fade,omitempty"`
	Opacity *float64 `json:"opacity,omitempty" yaml:"opacity,omitempty"`
	Paint   *bool    `json:"paint,omitempty" yaml:"paint,omitempty"`
}
