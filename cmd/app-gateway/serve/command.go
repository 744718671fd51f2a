package serve

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/openkcm/common-sdk/pkg/commoncfg"
	"github.com/spf13/cobra"

	"github.com/openkcm/app-gateway/internal/business"
	"github.com/openkcm/app-gateway/internal/cmdutils"
	"github.com/openkcm/app-gateway/internal/config"
)

const (
	envPort         = "PORT"
	envClientID     = "CLIENT_ID"
	envClientSecret = "CLIENT_SECRET" // NOSONAR
)

var ErrPartialClientCredentials = errors.New(envClientID + " and " + envClientSecret + " must be set together")

type flags struct {
	appName   string
	noAuth    bool
	port      int
	staticDir string
	dev       bool
}

func Cmd(buildInfo string) *cobra.Command {
	cmd, _ := newCommand(buildInfo)
	return cmd
}

func newCommand(buildInfo string) (*cobra.Command, *flags) {
	f := &flags{}

	cmd := cmdutils.CobraCommand(
		"serve",
		"Serve the app",
		"Serves the static app files behind the OAuth2 login and proxies /api to the backend",
		buildInfo,
		cmdutils.RunAsService,
		business.Main,
		f.apply,
	)

	fs := cmd.Flags()
	fs.StringVarP(&f.appName, "app-name", "a", "", "name of the app, used as path prefix and cookie name")
	fs.BoolVarP(&f.noAuth, "no-auth", "n", false, "serve the app without authentication")
	fs.IntVarP(&f.port, "port", "p", 0, "port to listen on (defaults to $PORT or the configuration)")
	fs.StringVarP(&f.staticDir, "static-dir", "d", "", "directory holding the static app files")
	fs.BoolVar(&f.dev, "dev", false, "use the development realm and backend")

	return cmd, f
}

// apply layers the environment and then the flags over the loaded config.
func (f *flags) apply(cmd *cobra.Command, cfg *config.Config) error {
	fs := cmd.Flags()

	if fs.Changed("app-name") {
		cfg.Gateway.AppName = f.appName
	}
	if fs.Changed("static-dir") {
		cfg.Gateway.StaticDir = f.staticDir
	}
	if f.dev {
		cfg.Gateway.Dev.Enabled = true
	}

	port, portSet := 0, false
	if v := os.Getenv(envPort); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", envPort, v, err)
		}
		port, portSet = p, true
	}
	if fs.Changed("port") {
		port, portSet = f.port, true
	}
	if portSet {
		cfg.Gateway.Port = port
		cfg.HTTP.Address = ":" + strconv.Itoa(port)
	}

	id, secret := os.Getenv(envClientID), os.Getenv(envClientSecret)
	if (id == "") != (secret == "") {
		return ErrPartialClientCredentials
	}
	if id != "" {
		cfg.OAuth2.ClientID = commoncfg.SourceRef{Source: "embedded", Value: id}
		cfg.OAuth2.ClientSecret = commoncfg.SourceRef{Source: "embedded", Value: secret}
	}

	if f.noAuth {
		cfg.OAuth2.Disabled = true
	}

	return nil
}
