// Package launch reads the viewer's initial configuration from the launch
// address query string.
package launch

import (
	"fmt"
	"net/url"

	"github.com/ayusman/visor/internal/catalog"
)

// Query parameter keys.
const (
	KeyModel       = "model"
	KeyEnvironment = "environment"
	KeyHead        = "head"
)

// Params holds the launch configuration.
type Params struct {
	Model       string
	Environment string
	// HeadVisible shows the translucent head mesh under the helmet.
	HeadVisible bool
}

// Defaults returns the Params used when no launch parameters are given.
func Defaults() Params {
	return Params{
		Model:       catalog.Models().First(),
		Environment: catalog.DefaultEnvironment,
		HeadVisible: false,
	}
}

// Parse parses a raw query string such as "model=guy.glb&head=true".
// A leading "?" is accepted.
func Parse(rawQuery string) (Params, error) {
	if len(rawQuery) > 0 && rawQuery[0] == '?' {
		rawQuery = rawQuery[1:]
	}

	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return Params{}, fmt.Errorf("parse launch query: %w", err)
	}

	return FromValues(values), nil
}

// FromValues builds Params from already parsed values. Only a missing key
// falls back to its default; an empty value is kept as given.
func FromValues(values url.Values) Params {
	p := Defaults()
	p.Model = lookup(values, KeyModel, p.Model)
	p.Environment = lookup(values, KeyEnvironment, p.Environment)
	p.HeadVisible = lookup(values, KeyHead, "false") == "true"
	return p
}

// Values encodes the Params back into query values.
func (p Params) Values() url.Values {
	v := url.Values{}
	v.Set(KeyModel, p.Model)
	v.Set(KeyEnvironment, p.Environment)
	if p.HeadVisible {
		v.Set(KeyHead, "true")
	} else {
		v.Set(KeyHead, "false")
	}
	return v
}

func lookup(values url.Values, key, defaultValue string) string {
	if _, ok := values[key]; !ok {
		return defaultValue
	}
	return values.Get(key)
}
