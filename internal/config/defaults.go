package config

const (
	defaultConfigPath       = "~/.config/misty/config.toml"
	defaultOutputFilename   = "spectrum.fits"
	defaultSimCode          = "enzo"
	defaultComputer         = "pleiades"
	defaultSynthesisBinary  = "trident-spectrum"
	defaultSynthesisTimeout = 600
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Output: Output{
			Filename: defaultOutputFilename,
		},
		Parameters: Parameters{
			SimCode:  defaultSimCode,
			Computer: defaultComputer,
		},
		Lines: Lines{
			Default: []string{"all"},
		},
		Synthesis: Synthesis{
			Binary:         defaultSynthesisBinary,
			TimeoutSeconds: defaultSynthesisTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
