package session

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/zsiec/mediashm/internal/item"
	"github.com/zsiec/mediashm/media"
	"github.com/zsiec/mediashm/timecode"
)

// Generation selects the slot layout a Writer produces. Readers detect it
// per slot.
type Generation = item.Generation

const (
	GenV12     = item.GenV12
	GenV3      = item.GenV3
	GenV4      = item.GenV4
	GenCurrent = item.GenCurrent
)

// Item is one decoded slot. Frame data aliases shared memory and is valid
// only until the writer laps the slot.
type Item = item.Decoded

// Config carries the process-wide settings of a session. Zero fields take
// the DefaultConfig values.
type Config struct {
	// InitRetries and InitStep bound how long NewReader waits for the
	// writer's init flag.
	InitRetries int
	InitStep    time.Duration

	// PollStep is the sleep between readiness checks in PollReadData.
	PollStep time.Duration

	// Generation is the layout new slots are written in.
	Generation Generation

	// HeadFields selects the head fields whose change republishes the
	// header.
	HeadFields media.HeadFields

	// Table resolves timecode domains for SearchTimecode and Seek.
	Table *timecode.Table

	// AudioTransform is applied to every decoded audio slice.
	AudioTransform func(audio []byte) []byte

	// OnItem, when set, is called with every item PollReadData returns.
	OnItem func(abs uint32, it *Item)

	Logger *slog.Logger
}

// DefaultConfig returns the default settings: about one second of init
// wait in 1ms steps, 1ms poll granularity, current generation.
func DefaultConfig() Config {
	return Config{
		InitRetries: 1000,
		InitStep:    time.Millisecond,
		PollStep:    time.Millisecond,
		Generation:  GenCurrent,
		HeadFields:  media.DefaultHeadFields,
		Table:       timecode.Default,
	}
}

// ConfigFromEnv returns DefaultConfig overridden by MEDIASHM_INIT_RETRIES,
// MEDIASHM_INIT_STEP_MS, MEDIASHM_POLL_STEP_MS and MEDIASHM_GENERATION.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	var err error
	if cfg.InitRetries, err = envInt("MEDIASHM_INIT_RETRIES", cfg.InitRetries); err != nil {
		return cfg, err
	}
	if cfg.InitStep, err = envMillis("MEDIASHM_INIT_STEP_MS", cfg.InitStep); err != nil {
		return cfg, err
	}
	if cfg.PollStep, err = envMillis("MEDIASHM_POLL_STEP_MS", cfg.PollStep); err != nil {
		return cfg, err
	}
	gen, err := envInt("MEDIASHM_GENERATION", int(cfg.Generation))
	if err != nil {
		return cfg, err
	}
	switch gen {
	case 1, 2:
		cfg.Generation = GenV12
	case 3:
		cfg.Generation = GenV3
	case 4:
		cfg.Generation = GenV4
	default:
		return cfg, fmt.Errorf("session: MEDIASHM_GENERATION=%d: %w", gen, item.ErrGeneration)
	}
	return cfg, nil
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.InitRetries == 0 {
		c.InitRetries = d.InitRetries
	}
	if c.InitStep == 0 {
		c.InitStep = d.InitStep
	}
	if c.PollStep == 0 {
		c.PollStep = d.PollStep
	}
	if c.Generation == item.GenInvalid {
		c.Generation = d.Generation
	}
	if c.HeadFields == 0 {
		c.HeadFields = d.HeadFields
	}
	if c.Table == nil {
		c.Table = d.Table
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := envOr(key, strconv.Itoa(fallback))
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback, fmt.Errorf("session: %s=%q: not a non-negative integer", key, v)
	}
	return n, nil
}

func envMillis(key string, fallback time.Duration) (time.Duration, error) {
	n, err := envInt(key, int(fallback/time.Millisecond))
	if err != nil {
		return fallback, err
	}
	return time.Duration(n) * time.Millisecond, nil
}
