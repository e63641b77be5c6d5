package config

import (
	"io"

	"github.com/goccy/go-yaml"
)

// Root describes one scenario: the simulated machine and the threads to run
// on it.
type Root struct {
	Machine   Machine     `yaml:"machine"`
	Sleepers  []*Sleeper  `yaml:"sleepers" validate:"unique=Name"`
	Speakers  []*Speaker  `yaml:"speakers" validate:"unique=Name"`
	Listeners []*Listener `yaml:"listeners" validate:"unique=Name"`
}

var _ yaml.InterfaceUnmarshaler = (*Root)(nil)

func (r *Root) UnmarshalYAML(unmarshal func(any) error) error {
	*r = Root{Machine: MachineDefaults}

	type root Root

	return unmarshal((*root)(r))
}

// ThreadCount returns the number of threads in the scenario.
func (r *Root) ThreadCount() int {
	return len(r.Sleepers) + len(r.Speakers) + len(r.Listeners)
}

func (r *Root) Unmarshal(reader io.Reader) error {
	// Reset to defaults, an empty document decodes to nothing
	*r = Root{Machine: MachineDefaults}

	if err := validatedUnmarshal(reader, r); err != nil {
		return err
	}

	// Custom unmarshalling bypasses struct-level rules
	return customValidate().Struct(r)
}

func (r *Root) Marshal(w io.Writer) error {
	return marshal(w, r)
}
