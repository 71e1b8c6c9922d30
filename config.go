package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Key is a custom type to handle single keys or a list of keys in the TOML file.
// Key strings use bubbletea's notation ("space", "ctrl+c", "left", "q").
type Key []string

// UnmarshalTOML allows the Key type to be parsed from either a string or a list of strings.
func (k *Key) UnmarshalTOML(v interface{}) error {
	switch val := v.(type) {
	case string:
		*k = []string{val}
		return nil
	case []interface{}:
		keys := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return fmt.Errorf("key must be a string or a list of strings")
			}
			keys = append(keys, s)
		}
		*k = keys
		return nil
	}
	return fmt.Errorf("key must be a string or a list of strings")
}

// Matches reports whether the pressed key (bubbletea's msg.String()) is one
// of the bindings for this action.
func (k Key) Matches(pressed string) bool {
	for _, s := range k {
		if s == pressed {
			return true
		}
	}
	return false
}

// Config holds the application's configuration, loaded from a TOML file.
type Config struct {
	App    AppSettings `toml:"app"`
	Keymap Keymap      `toml:"keymap"`
}

// AppSettings holds playback, visualizer and persistence settings.
type AppSettings struct {
	// Bars is the number of visualizer bars drawn per frame.
	Bars int `toml:"bars"`
	// SmoothingWindow is the moving-average width applied to spectrum bars.
	SmoothingWindow int `toml:"smoothing_window"`
	// Significance drops spectrum values below this byte threshold.
	Significance int `toml:"significance"`
	// ResamplingQuality selects the aggregator preset:
	// quick, low, medium, high or very_high.
	ResamplingQuality string `toml:"resampling_quality"`
	// DefaultLoopMode is "off", "one" or "all".
	DefaultLoopMode string `toml:"default_loop_mode"`

	RememberLibraryPath bool `toml:"remember_library_path"`
	PlaylistHistory     bool `toml:"playlist_history"`
	AutostartLastPlayed bool `toml:"autostart_last_played"`
}

// Keymap defines all the keybindings for the application, organized by page.
type Keymap struct {
	Global   GlobalKeymap   `toml:"global"`
	Player   PlayerKeymap   `toml:"player"`
	Library  LibraryKeymap  `toml:"library"`
	Playlist PlaylistKeymap `toml:"playlist"`
}

// GlobalKeymap holds keybindings that work across all pages.
type GlobalKeymap struct {
	Quit             Key `toml:"Quit"`
	CyclePages       Key `toml:"CyclePages"`
	SwitchToPlayer   Key `toml:"SwitchToPlayer"`
	SwitchToPlayList Key `toml:"SwitchToPlayList"`
	SwitchToLibrary  Key `toml:"SwitchToLibrary"`
}

// PlayerKeymap holds keybindings specific to the Player page.
type PlayerKeymap struct {
	TogglePause      Key `toml:"TogglePause"`
	SeekForward      Key `toml:"SeekForward"`
	SeekBackward     Key `toml:"SeekBackward"`
	VolumeUp         Key `toml:"VolumeUp"`
	VolumeDown       Key `toml:"VolumeDown"`
	ToggleMute       Key `toml:"ToggleMute"`
	NextSong         Key `toml:"NextSong"`
	PrevSong         Key `toml:"PrevSong"`
	CycleLoopMode    Key `toml:"CycleLoopMode"`
	ToggleShuffle    Key `toml:"ToggleShuffle"`
	ToggleMicrophone Key `toml:"ToggleMicrophone"`
	Stop             Key `toml:"Stop"`
}

// LibraryKeymap holds keybindings for the Library page.
type LibraryKeymap struct {
	NavUp       Key `toml:"NavUp"`
	NavDown     Key `toml:"NavDown"`
	NavEnterDir Key `toml:"NavEnterDir"`
	NavExitDir  Key `toml:"NavExitDir"`
	AddTrack    Key `toml:"AddTrack"`
	AddAll      Key `toml:"AddAll"`
}

// PlaylistKeymap holds keybindings for the Playlist page.
type PlaylistKeymap struct {
	NavUp      Key `toml:"NavUp"`
	NavDown    Key `toml:"NavDown"`
	RemoveSong Key `toml:"RemoveSong"`
	PlaySong   Key `toml:"PlaySong"`
	ClearList  Key `toml:"ClearList"`
}

// getDefaultConfig returns a Config struct with the default settings.
func getDefaultConfig() *Config {
	return &Config{
		App: AppSettings{
			Bars:                60,
			SmoothingWindow:     3,
			Significance:        4,
			ResamplingQuality:   "very_high",
			DefaultLoopMode:     "off",
			RememberLibraryPath: true,
			PlaylistHistory:     true,
			AutostartLastPlayed: false,
		},
		Keymap: Keymap{
			Global: GlobalKeymap{
				Quit:             Key{"ctrl+c", "esc"},
				CyclePages:       Key{"tab"},
				SwitchToPlayer:   Key{"1"},
				SwitchToPlayList: Key{"2"},
				SwitchToLibrary:  Key{"3"},
			},
			Player: PlayerKeymap{
				TogglePause:      Key{"space"},
				SeekForward:      Key{"right", "e"},
				SeekBackward:     Key{"left", "q"},
				VolumeUp:         Key{"up", "w"},
				VolumeDown:       Key{"down", "s"},
				ToggleMute:       Key{"m"},
				NextSong:         Key{"d", "n"},
				PrevSong:         Key{"a", "p"},
				CycleLoopMode:    Key{"r"},
				ToggleShuffle:    Key{"z"},
				ToggleMicrophone: Key{"i"},
				Stop:             Key{"backspace"},
			},
			Library: LibraryKeymap{
				NavUp:       Key{"k", "up"},
				NavDown:     Key{"j", "down"},
				NavEnterDir: Key{"l", "right"},
				NavExitDir:  Key{"h", "left"},
				AddTrack:    Key{"enter"},
				AddAll:      Key{"A"},
			},
			Playlist: PlaylistKeymap{
				NavUp:      Key{"k", "up"},
				NavDown:    Key{"j", "down"},
				RemoveSong: Key{"x"},
				PlaySong:   Key{"enter"},
				ClearList:  Key{"C"},
			},
		},
	}
}

// configDir returns the directory holding config.toml, creating it if needed.
func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not get user home directory: %v", err)
	}
	dir := filepath.Join(home, ".config", "lumen")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("could not create config directory: %v", err)
	}
	return dir, nil
}

// LoadConfig loads the configuration from ~/.config/lumen/config.toml.
// If the file doesn't exist, it creates it with default values.
func LoadConfig() (*Config, error) {
	dir, err := configDir()
	if err != nil {
		return nil, err
	}
	configFile := filepath.Join(dir, "config.toml")

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		conf := getDefaultConfig()
		buf := new(bytes.Buffer)
		if err := toml.NewEncoder(buf).Encode(conf); err != nil {
			return nil, fmt.Errorf("could not encode default config: %v", err)
		}
		if err := os.WriteFile(configFile, buf.Bytes(), 0644); err != nil {
			return nil, fmt.Errorf("could not write default config file: %v", err)
		}
		return conf, nil
	}

	var config Config
	if _, err := toml.DecodeFile(configFile, &config); err != nil {
		return nil, fmt.Errorf("could not decode config file: %v", err)
	}
	config.normalize()
	return &config, nil
}

// normalize clamps out-of-range settings instead of failing the load; a bad
// hand-edited value falls back to something usable.
func (c *Config) normalize() {
	def := getDefaultConfig()
	if c.App.Bars < 8 || c.App.Bars > 512 {
		c.App.Bars = def.App.Bars
	}
	if c.App.SmoothingWindow < 1 || c.App.SmoothingWindow > 64 {
		c.App.SmoothingWindow = def.App.SmoothingWindow
	}
	if c.App.Significance < 0 || c.App.Significance > 255 {
		c.App.Significance = def.App.Significance
	}
	switch c.App.ResamplingQuality {
	case "quick", "low", "medium", "high", "very_high":
	default:
		c.App.ResamplingQuality = def.App.ResamplingQuality
	}
	switch c.App.DefaultLoopMode {
	case "off", "one", "all":
	default:
		c.App.DefaultLoopMode = def.App.DefaultLoopMode
	}
	c.Keymap.fillDefaults(&def.Keymap)
}

// fillDefaults backfills any action left unbound by a partial config file.
func (k *Keymap) fillDefaults(def *Keymap) {
	fill := func(dst *Key, src Key) {
		if len(*dst) == 0 {
			*dst = src
		}
	}
	fill(&k.Global.Quit, def.Global.Quit)
	fill(&k.Global.CyclePages, def.Global.CyclePages)
	fill(&k.Global.SwitchToPlayer, def.Global.SwitchToPlayer)
	fill(&k.Global.SwitchToPlayList, def.Global.SwitchToPlayList)
	fill(&k.Global.SwitchToLibrary, def.Global.SwitchToLibrary)

	fill(&k.Player.TogglePause, def.Player.TogglePause)
	fill(&k.Player.SeekForward, def.Player.SeekForward)
	fill(&k.Player.SeekBackward, def.Player.SeekBackward)
	fill(&k.Player.VolumeUp, def.Player.VolumeUp)
	fill(&k.Player.VolumeDown, def.Player.VolumeDown)
	fill(&k.Player.ToggleMute, def.Player.ToggleMute)
	fill(&k.Player.NextSong, def.Player.NextSong)
	fill(&k.Player.PrevSong, def.Player.PrevSong)
	fill(&k.Player.CycleLoopMode, def.Player.CycleLoopMode)
	fill(&k.Player.ToggleShuffle, def.Player.ToggleShuffle)
	fill(&k.Player.ToggleMicrophone, def.Player.ToggleMicrophone)
	fill(&k.Player.Stop, def.Player.Stop)

	fill(&k.Library.NavUp, def.Library.NavUp)
	fill(&k.Library.NavDown, def.Library.NavDown)
	fill(&k.Library.NavEnterDir, def.Library.NavEnterDir)
	fill(&k.Library.NavExitDir, def.Library.NavExitDir)
	fill(&k.Library.AddTrack, def.Library.AddTrack)
	fill(&k.Library.AddAll, def.Library.AddAll)

	fill(&k.Playlist.NavUp, def.Playlist.NavUp)
	fill(&k.Playlist.NavDown, def.Playlist.NavDown)
	fill(&k.Playlist.RemoveSong, def.Playlist.RemoveSong)
	fill(&k.Playlist.PlaySong, def.Playlist.PlaySong)
	fill(&k.Playlist.ClearList, def.Playlist.ClearList)
}
