package config

import (
	"errors"
	"io"
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
)

var ErrMultipleFragments = errors.New("input contained multiple YAML fragments")

// yamlFieldName makes validation errors refer to fields by their YAML name.
func yamlFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("yaml"), ",")
	if name == "-" {
		return ""
	}

	return name
}

// validThreadName rejects names which would be unreadable in logs and
// reports.
func validThreadName(fl validator.FieldLevel) bool {
	name := fl.Field().String()

	if name != strings.TrimSpace(name) {
		return false
	}

	for _, r := range name {
		if !unicode.IsPrint(r) {
			return false
		}
	}

	return true
}

// distinctThreadNames requires names to be unique across all thread kinds.
func distinctThreadNames(sl validator.StructLevel) {
	r := sl.Current().Interface().(Root)

	seen := map[string]bool{}

	check := func(name string) {
		if seen[name] {
			sl.ReportError(name, "name", "Name", "distinctname", "")
		}

		seen[name] = true
	}

	for _, i := range r.Sleepers {
		check(i.Name)
	}

	for _, i := range r.Speakers {
		check(i.Name)
	}

	for _, i := range r.Listeners {
		check(i.Name)
	}
}

// boundedPeriod rejects real-time machines whose interrupt period can't be
// represented or would stall the run.
func boundedPeriod(sl validator.StructLevel) {
	m := sl.Current().Interface().(Machine)

	if !m.Realtime || m.TickDuration <= 0 {
		return
	}

	if _, err := m.InterruptPeriod(); err != nil {
		sl.ReportError(m.TickDuration, "tick_duration", "TickDuration", "period", "")
	}
}

var customValidate = sync.OnceValue(func() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(yamlFieldName)
	v.RegisterStructValidation(distinctThreadNames, Root{})
	v.RegisterStructValidation(boundedPeriod, Machine{})

	if err := v.RegisterValidation("threadname", validThreadName); err != nil {
		panic(err)
	}

	return v
})

// validatedUnmarshal decodes exactly one YAML document. Unknown fields and
// values violating the validation tags are errors.
func validatedUnmarshal(r io.Reader, v any) error {
	dec := yaml.NewDecoder(r, yaml.Strict(), yaml.Validator(customValidate()))

	if err := dec.Decode(v); !(err == nil || errors.Is(err, io.EOF)) {
		return err
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return ErrMultipleFragments
	}

	return nil
}

func marshal(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w, yaml.Flow(false), yaml.Indent(2), yaml.IndentSequence(true))

	if err := enc.Encode(v); err != nil {
		return err
	}

	return enc.Close()
}
