// Package main is the entry point for claudex, the PTY-wrapping launcher.
// It points an Anthropic-Messages-native CLI at a running claudexd and
// annotates the CLI's terminal output with OSC-8 hyperlinks while it runs.
package main

import (
	"flag"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/claudex-proxy/claudex/internal/config"
	"github.com/claudex-proxy/claudex/internal/logging"
	"github.com/claudex-proxy/claudex/internal/pty"
)

func main() {
	var configPath string
	var profileName string
	var addr string
	var debug bool
	flag.StringVar(&configPath, "config", "claudex.yaml", "path to the profile configuration file")
	flag.StringVar(&profileName, "profile", "auto", "profile to route through (or \"auto\")")
	flag.StringVar(&addr, "addr", "127.0.0.1:8787", "address of the running claudexd instance")
	flag.BoolVar(&debug, "debug", false, "enable debug logging")
	flag.Parse()

	logging.Setup(debug)

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "claudex: usage: claudex [flags] -- <cli-command> [args...]")
		os.Exit(2)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.WithError(err).Fatal("claudex: failed to load configuration")
	}

	profiles, err := cfg.ProfileSet()
	if err != nil {
		log.WithError(err).Fatal("claudex: invalid profile configuration")
	}

	extraEnv, err := buildChildEnv(profiles, profileName, addr)
	if err != nil {
		log.WithError(err).Fatal("claudex: failed to resolve profile")
	}

	cwd, err := os.Getwd()
	if err != nil {
		log.WithError(err).Fatal("claudex: failed to resolve working directory")
	}

	exitCode, err := pty.Run(args[0], args[1:], extraEnv, cwd)
	if err != nil {
		log.WithError(err).Fatal("claudex: failed to run child process")
	}
	os.Exit(exitCode)
}

// buildChildEnv resolves the §6 environment-variable contract for the
// child CLI: ANTHROPIC_BASE_URL points at claudexd's proxy route for the
// chosen profile, ANTHROPIC_API_KEY is a placeholder (claudexd supplies
// the real upstream credential), and ANTHROPIC_MODEL carries the
// profile's default model. Any profile-declared extra_env entries are
// appended last so a profile can override the defaults above.
func buildChildEnv(profiles *config.ProfileSet, profileName, addr string) ([]string, error) {
	model := ""
	if profileName != "auto" {
		p := profiles.Get(profileName)
		if p == nil {
			return nil, fmt.Errorf("unknown profile %q", profileName)
		}
		if !p.Enabled {
			return nil, fmt.Errorf("profile %q is disabled", profileName)
		}
		model = p.DefaultModel
	}

	env := []string{
		"ANTHROPIC_BASE_URL=http://" + addr + "/proxy/" + profileName,
		"ANTHROPIC_API_KEY=claudex-passthrough",
	}
	if model != "" {
		env = append(env, "ANTHROPIC_MODEL="+model)
	}

	if profileName != "auto" {
		if p := profiles.Get(profileName); p != nil {
			for k, v := range p.ExtraEnv {
				env = append(env, k+"="+v)
			}
		}
	}
	return env, nil
}
