package config

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/hansmi/kcoop/internal/testutil"
)

func TestFlag(t *testing.T) {
	for _, tc := range []struct {
		name    string
		args    []string
		setenv  string
		stdin   string
		want    *Root
		wantErr error
	}{
		{
			name:    "empty argument",
			wantErr: ErrMissingFile,
		},
		{
			name:    "nonexistent file",
			args:    []string{"--config", filepath.Join(t.TempDir(), "missing")},
			wantErr: os.ErrNotExist,
		},
		{
			name: "empty config",
			args: []string{"--config", os.DevNull},
			want: &Root{Machine: MachineDefaults},
		},
		{
			name: "minimal",
			args: []string{"--config", testutil.MustWriteFile(t, filepath.Join(t.TempDir(), "cfg"), `
---
machine:
  interrupt_interval: 250
sleepers:
- name: from flag
  ticks: 100
`)},
			want: &Root{
				Machine: (func() Machine {
					o := MachineDefaults
					o.InterruptInterval = 250
					return o
				})(),
				Sleepers: []*Sleeper{
					{Name: "from flag", Ticks: 100},
				},
			},
		},
		{
			name: "env",
			setenv: testutil.MustWriteFile(t, filepath.Join(t.TempDir(), "env"), `
speakers:
- name: from env
  value: 3
listeners:
- name: receiver
`),
			want: &Root{
				Machine: MachineDefaults,
				Speakers: []*Speaker{
					{Name: "from env", Value: 3},
				},
				Listeners: []*Listener{
					{Name: "receiver"},
				},
			},
		},
		{
			name: "stdin",
			args: []string{"--config", StdinPath},
			stdin: `
listeners:
- name: piped
`,
			want: &Root{
				Machine: MachineDefaults,
				Listeners: []*Listener{
					{Name: "piped"},
				},
			},
		},
		{
			name: "multiple fragments",
			args: []string{"--config", testutil.MustWriteFile(t, filepath.Join(t.TempDir(), "multi"), `
---
sleepers: []
---
sleepers: []
`)},
			wantErr: ErrMultipleFragments,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(PathEnvVar, tc.setenv)

			f := Flag{stdin: strings.NewReader(tc.stdin)}

			fs := flag.NewFlagSet(tc.name, flag.PanicOnError)
			f.SetFlags(fs)

			if err := fs.Parse(tc.args); err != nil {
				t.Fatal(err)
			}

			got, err := f.Load()

			if diff := cmp.Diff(tc.wantErr, err, cmpopts.EquateErrors()); diff != "" {
				t.Errorf("Error diff (-want +got):\n%s", diff)
			}

			if err == nil {
				if diff := cmp.Diff(tc.want, got, cmpopts.EquateEmpty()); diff != "" {
					t.Errorf("Config diff (-want +got):\n%s", diff)
				}
			}
		})
	}
}
