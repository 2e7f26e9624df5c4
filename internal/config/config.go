// Package config loads and saves the boombox TOML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// JukeboxDisc is one entry of the built-in disc registry.
type JukeboxDisc struct {
	ID              string `toml:"id"`
	Title           string `toml:"title"`
	Artist          string `toml:"artist"`
	Path            string `toml:"path"`
	DurationSeconds int    `toml:"duration_seconds"`
}

// Config holds every tunable of the player.
type Config struct {
	// CacheDir is where downloaded media files live.
	CacheDir string `toml:"cache_dir"`

	// DataDir holds the metadata database.
	DataDir string `toml:"data_dir"`

	// LocalMusicDir is the folder scanned by the local source.
	LocalMusicDir string `toml:"local_music_dir"`

	// PlaylistURL is the remote playlist resolved by the YouTube source.
	PlaylistURL string `toml:"playlist_url"`

	// FetcherBinary overrides the yt-dlp executable name.
	FetcherBinary string `toml:"fetcher_binary"`

	// MaxConcurrentDownloads bounds the bulk download lane.
	MaxConcurrentDownloads int `toml:"max_concurrent_downloads"`

	// DefaultVolume applies to sources without saved settings (0.0-1.0).
	DefaultVolume float64 `toml:"default_volume"`

	// SampleRate is the audio output rate in Hz.
	SampleRate int `toml:"sample_rate"`

	// Jukebox is the built-in disc registry.
	Jukebox []JukeboxDisc `toml:"jukebox"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	base := filepath.Join(home, ".boombox")

	return Config{
		CacheDir:               filepath.Join(base, "cache"),
		DataDir:                filepath.Join(base, "data"),
		LocalMusicDir:          filepath.Join(home, "Music"),
		MaxConcurrentDownloads: 3,
		DefaultVolume:          0.8,
		SampleRate:             44100,
	}
}

// Load reads the configuration at path, filling gaps with defaults.
// A missing file yields the defaults without error.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	cfg.normalize()
	return cfg, nil
}

// Save writes the configuration to path, creating parent directories.
func Save(cfg Config, path string) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// normalize clamps out-of-range values back to the defaults.
func (c *Config) normalize() {
	if c.MaxConcurrentDownloads < 1 {
		c.MaxConcurrentDownloads = 3
	}
	if c.DefaultVolume < 0.0 || c.DefaultVolume > 1.0 {
		c.DefaultVolume = 0.8
	}
	if c.SampleRate <= 0 {
		c.SampleRate = 44100
	}
}
