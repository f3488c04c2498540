package config

const (
	defaultConfigPath                 = "~/.config/objectid/config.toml"
	defaultDataDir                    = "~/.local/share/objectid"
	defaultLogDir                     = "~/.local/share/objectid/logs"
	defaultLogFormat                  = "console"
	defaultLogLevel                   = "info"
	defaultStrictThreshold            = 3
	defaultDirectThreshold            = 3
	defaultRotationThreshold          = 8
	defaultCanonicalizeTimeoutSeconds = 15
	defaultWorkers                    = 4
	defaultAuxiliarySignatures        = true

	// maxThreshold is the largest meaningful distance for a 256-bit fingerprint.
	maxThreshold = 256
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Matching: Matching{
			StrictThreshold:            defaultStrictThreshold,
			DirectThreshold:            defaultDirectThreshold,
			RotationThreshold:          defaultRotationThreshold,
			CanonicalizeTimeoutSeconds: defaultCanonicalizeTimeoutSeconds,
			Workers:                    defaultWorkers,
			AuxiliarySignatures:        defaultAuxiliarySignatures,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
