// Package config loads blecentral settings from an HJSON file and the
// command line.
package config

import (
	"os"
	"time"

	"github.com/knadh/koanf/parsers/hjson"
	"github.com/knadh/koanf/providers/cliflagv2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	central "github.com/rigado/blecentral"
	"github.com/rigado/blecentral/manager"
	"github.com/rigado/blecentral/scenario"
)

// FileName is the default configuration file name.
const FileName = "blecentral.conf"

// Values describes every configurable setting.
type Values struct {
	ServiceUUID         string        `koanf:"service-uuid"`
	BackgroundMask      string        `koanf:"background-mask"`
	WriteCharacteristic string        `koanf:"write-characteristic"`
	ReadCharacteristic  string        `koanf:"read-characteristic"`
	AcceptUnknown       bool          `koanf:"accept-unknown"`
	LogLevel            string        `koanf:"log-level"`
	MetricsAddr         string        `koanf:"metrics-addr"`
	Scenario            string        `koanf:"scenario"`
	Report              string        `koanf:"report"`
	Duration            time.Duration `koanf:"duration"`
}

// Defaults returns the built-in settings.
func Defaults() Values {
	return Values{
		ServiceUUID:         "5e2a68a4-27be-43f9-8d1e-4546976fabd7",
		BackgroundMask:      "00000000000000000000000000100000",
		WriteCharacteristic: "5e2a68a5-27be-43f9-8d1e-4546976fabd7",
		ReadCharacteristic:  "5e2a68a6-27be-43f9-8d1e-4546976fabd7",
		LogLevel:            "info",
		Duration:            5 * time.Second,
	}
}

func (v Values) toMap() map[string]interface{} {
	return map[string]interface{}{
		"service-uuid":         v.ServiceUUID,
		"background-mask":      v.BackgroundMask,
		"write-characteristic": v.WriteCharacteristic,
		"read-characteristic":  v.ReadCharacteristic,
		"accept-unknown":       v.AcceptUnknown,
		"log-level":            v.LogLevel,
		"metrics-addr":         v.MetricsAddr,
		"scenario":             v.Scenario,
		"report":               v.Report,
		"duration":             v.Duration.String(),
	}
}

// Load layers the defaults, the file at path and the flags set on cliCtx,
// in that order. An empty path skips the file; a missing file is an
// error. cliCtx may be nil.
func Load(k *koanf.Koanf, path string, cliCtx *cli.Context) (Values, error) {
	for key, val := range Defaults().toMap() {
		if err := k.Set(key, val); err != nil {
			return Values{}, errors.Wrapf(err, "default %s", key)
		}
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return Values{}, errors.Wrap(err, "config file")
		}
		if err := k.Load(file.Provider(path), hjson.Parser()); err != nil {
			return Values{}, errors.Wrapf(err, "load %s", path)
		}
	}

	if cliCtx != nil {
		if err := k.Load(cliflagv2.Provider(cliCtx, "."), nil); err != nil {
			return Values{}, errors.Wrap(err, "load flags")
		}
	}

	var v Values
	if err := k.UnmarshalWithConf("", &v, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Values{}, errors.Wrap(err, "unmarshal config")
	}
	return v, v.Validate()
}

// Validate checks the values without building anything.
func (v Values) Validate() error {
	for _, validate := range []func() error{
		v.validateUUIDs,
		v.validateMask,
		v.validateLogLevel,
		v.validateDuration,
	} {
		if err := validate(); err != nil {
			return errors.Wrap(central.ErrInvalidConfig, err.Error())
		}
	}
	return nil
}

func (v Values) validateUUIDs() error {
	for name, s := range map[string]string{
		"service-uuid":         v.ServiceUUID,
		"write-characteristic": v.WriteCharacteristic,
		"read-characteristic":  v.ReadCharacteristic,
	} {
		if _, err := central.ParseUUID(s); err != nil {
			return errors.Wrap(err, name)
		}
	}
	return nil
}

func (v Values) validateMask() error {
	_, err := manager.ParseMask(v.BackgroundMask)
	return err
}

func (v Values) validateLogLevel() error {
	_, err := logrus.ParseLevel(v.LogLevel)
	return err
}

func (v Values) validateDuration() error {
	if v.Duration < 0 {
		return errors.Errorf("negative duration %v", v.Duration)
	}
	return nil
}

// Manager returns the session manager configuration.
func (v Values) Manager() manager.Config {
	return manager.Config{
		ServiceUUID:         v.ServiceUUID,
		BackgroundMask:      v.BackgroundMask,
		WriteCharacteristic: v.WriteCharacteristic,
		ReadCharacteristic:  v.ReadCharacteristic,
	}
}

// Options returns the manager options implied by the values.
func (v Values) Options() []central.Option {
	var opts []central.Option
	if v.AcceptUnknown {
		opts = append(opts, central.OptUnknownPolicy(central.AcceptUnknown))
	}
	return opts
}

// Profile returns the UUIDs simulated peripherals expose by default.
func (v Values) Profile() (scenario.Defaults, error) {
	var d scenario.Defaults
	var err error
	if d.Service, err = central.ParseUUID(v.ServiceUUID); err != nil {
		return d, err
	}
	if d.Read, err = central.ParseUUID(v.ReadCharacteristic); err != nil {
		return d, err
	}
	d.Write, err = central.ParseUUID(v.WriteCharacteristic)
	return d, err
}

// Generate writes v to path as HJSON.
func Generate(path string, v Values) error {
	data, err := hjson.Parser().Marshal(v.toMap())
	if err != nil {
		return errors.Wrap(err, "encode config")
	}
	return errors.Wrap(os.WriteFile(path, data, 0644), "write config")
}
