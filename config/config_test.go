package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	central "github.com/rigado/blecentral"
)

func TestDefaults(t *testing.T) {
	v, err := Load(koanf.New("."), "", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if v != Defaults() {
		t.Fatalf("got %+v, want %+v", v, Defaults())
	}
	if len(v.Options()) != 0 {
		t.Fatalf("unexpected options")
	}
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	conf := `{
  # iOS overflow bit of the service
  background-mask: "0x40"
  accept-unknown: true
  duration: 30s
}`
	if err := os.WriteFile(path, []byte(conf), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	v, err := Load(koanf.New("."), path, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if v.BackgroundMask != "0x40" || !v.AcceptUnknown || v.Duration != 30*time.Second {
		t.Fatalf("file values not applied: %+v", v)
	}
	if v.ServiceUUID != Defaults().ServiceUUID {
		t.Fatalf("default lost: %+v", v)
	}
	if len(v.Options()) != 1 {
		t.Fatalf("accept-unknown option missing")
	}
}

func TestMissingFile(t *testing.T) {
	if _, err := Load(koanf.New("."), filepath.Join(t.TempDir(), "nope.conf"), nil); err == nil {
		t.Fatalf("missing file accepted")
	}
}

func TestInvalid(t *testing.T) {
	cases := []func(v *Values){
		func(v *Values) { v.ServiceUUID = "zz" },
		func(v *Values) { v.BackgroundMask = "not hex" },
		func(v *Values) { v.LogLevel = "loud" },
		func(v *Values) { v.Duration = -time.Second },
	}
	for i, mod := range cases {
		v := Defaults()
		mod(&v)
		if err := v.Validate(); errors.Cause(err) != central.ErrInvalidConfig {
			t.Fatalf("case %d: got %v", i, err)
		}
	}
}

func TestGenerateRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	want := Defaults()
	want.MetricsAddr = ":9100"
	want.Duration = time.Minute

	if err := Generate(path, want); err != nil {
		t.Fatalf("generate: %v", err)
	}
	got, err := Load(koanf.New("."), path, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte(`{log-level: "warn", metrics-addr: ":1"}`), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	var got Values
	app := &cli.App{
		Name: "test",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level"},
			&cli.StringFlag{Name: "metrics-addr"},
		},
		Action: func(cliCtx *cli.Context) error {
			cliCtx.Command.Name = "global"
			v, err := Load(koanf.New("."), path, cliCtx)
			got = v
			return err
		},
	}
	if err := app.Run([]string{"test", "--log-level", "debug"}); err != nil {
		t.Fatalf("run: %v", err)
	}

	if got.LogLevel != "debug" {
		t.Fatalf("flag not applied: %+v", got)
	}
	if got.MetricsAddr != ":1" {
		t.Fatalf("unset flag overrode file: %+v", got)
	}
}

func TestProfile(t *testing.T) {
	d, err := Defaults().Profile()
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if d.Service.String() != Defaults().ServiceUUID || d.Read == d.Write {
		t.Fatalf("bad profile %+v", d)
	}
}
