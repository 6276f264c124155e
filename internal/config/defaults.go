package config

import "github.com/c2h5oh/datasize"

const (
	defaultConfigPath        = "~/.config/plotarchiver/config.toml"
	defaultLogDir            = "~/.local/share/plotarchiver/logs"
	defaultPlotK             = 32
	defaultPlotMarker        = "plot"
	defaultPlotTempMarker    = "tmp"
	defaultPlotSuffix        = ".plot"
	defaultWorkers           = 1
	defaultSettleSeconds     = 15
	defaultMaxAttempts       = 5
	defaultRetryDelaySeconds = 1
	defaultIdleBackoffMillis = 1000
	defaultChecksum          = "sha256"
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"

	// Smallest complete k32 plot observed across a farm of 107 plots was
	// 108758287484 bytes; anything below this is truncated.
	defaultMinPlotSize = 108_700_000_000 * datasize.B
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir: defaultLogDir,
		},
		Plots: Plots{
			K:          defaultPlotK,
			MinSize:    defaultMinPlotSize,
			Marker:     defaultPlotMarker,
			TempMarker: defaultPlotTempMarker,
			Suffix:     defaultPlotSuffix,
		},
		Transfer: Transfer{
			Workers:           defaultWorkers,
			SettleSeconds:     defaultSettleSeconds,
			MaxAttempts:       defaultMaxAttempts,
			RetryDelaySeconds: defaultRetryDelaySeconds,
			IdleBackoffMillis: defaultIdleBackoffMillis,
			Checksum:          defaultChecksum,
		},
		Watch: Watch{
			Staging: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
