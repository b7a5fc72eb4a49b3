package config

const (
	defaultMaxBuffer = "8MiB"
	defaultRound     = "before"
	defaultRealTime  = "off"
	defaultSpeed     = 1.0
	defaultSeekSafe  = 10.0
	defaultOutputDir = "out"
	defaultLogLevel  = "info"
	defaultLogFormat = "auto"
)

// Default returns the configuration of a pass-through run.
func Default() Config {
	return Config{
		Input: Input{
			MaxBuffer: defaultMaxBuffer,
		},
		Reframe: Reframe{
			Round:    defaultRound,
			RealTime: defaultRealTime,
			Speed:    defaultSpeed,
			SeekSafe: defaultSeekSafe,
			Timecode: true,
		},
		Output: Output{
			Dir: defaultOutputDir,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}
