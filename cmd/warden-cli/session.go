package main

import (
	"errors"
	"fmt"
	"maps"
	"os"

	"github.com/sagarc03/warden/client"
)

// defaultProfileName is used when cookies must be saved and no profile exists yet.
const defaultProfileName = "default"

// session is a client bound to the profile its cookies are saved to.
type session struct {
	client  *client.Client
	file    *client.ConfigFile
	path    string
	profile string
	initial map[string]string
}

// openSession builds a client from profile, environment and flags, in that
// order of precedence.
func openSession() (*session, error) {
	s := &session{path: getConfigPath()}

	file, err := client.LoadConfigFile(s.path)
	switch {
	case err == nil:
		s.file = file
	case errors.Is(err, os.ErrNotExist) && cfgFile == "":
		s.file = &client.ConfigFile{}
	default:
		return nil, fmt.Errorf("load config: %w", err)
	}

	var profileCfg *client.Config
	if len(s.file.Profiles) > 0 || getProfileName() != "" {
		p, profileErr := s.file.GetProfile(getProfileName())
		if profileErr != nil {
			return nil, profileErr
		}
		s.profile = p.Name
		profileCfg = client.ConfigFromProfile(p)
	}

	cfg := client.MergeConfig(profileCfg, client.ConfigFromEnv(), &client.Config{Address: address})

	c, err := client.New(cfg)
	if err != nil {
		return nil, err
	}
	s.client = c
	s.initial = c.Cookies()

	return s, nil
}

// close closes the connection and saves changed cookies to the profile.
// Without any profile a "default" profile is created for the address used.
func (s *session) close() error {
	defer func() { _ = s.client.Close() }()

	cookies := s.client.Cookies()
	if maps.Equal(cookies, s.initial) {
		return nil
	}

	if s.profile == "" {
		s.profile = defaultProfileName
		if err := s.file.AddProfile(client.Profile{
			Name:    s.profile,
			Address: s.client.Address(),
			Default: true,
		}); err != nil {
			return err
		}
	}

	p, err := s.file.GetProfile(s.profile)
	if err != nil {
		return err
	}
	p.Cookies = cookies
	if len(cookies) == 0 {
		p.Cookies = nil
	}

	if err := s.file.Save(s.path); err != nil {
		return fmt.Errorf("save cookies: %w", err)
	}
	return nil
}

// run opens a session, calls fn and saves cookies even when fn fails, since
// a failed request can still expire a cookie.
func run(fn func(s *session) error) error {
	s, err := openSession()
	if err != nil {
		return err
	}

	runErr := fn(s)
	if closeErr := s.close(); closeErr != nil && runErr == nil {
		return closeErr
	}
	return runErr
}
