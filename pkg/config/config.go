package config

type Config interface {
	Listen() string
	DefaultCount() int
	DefaultPrecision() int
	MaxCount() int
	SessionTTLMinutes() int
	ChartWidth() int
	ChartHeight() int

	SetDefaultCount(int)
	SetDefaultPrecision(int)
	SetMaxCount(int)
	SetSessionTTLMinutes(int)

	// Load reads the configuration from the source.
	Load() error
	// Save saves the configuration to the source.
	Save() error
}
