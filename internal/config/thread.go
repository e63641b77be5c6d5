package config

// Sleeper is a thread sleeping once for a number of ticks.
type Sleeper struct {
	Name string `yaml:"name" validate:"required,threadname"`

	// Minimum number of ticks to sleep.
	Ticks int64 `yaml:"ticks" validate:"min=0"`
}

// Speaker is a thread sending one value over the channel.
type Speaker struct {
	Name  string `yaml:"name" validate:"required,threadname"`
	Value int32  `yaml:"value"`
}

// Listener is a thread receiving one value from the channel.
type Listener struct {
	Name string `yaml:"name" validate:"required,threadname"`
}
