package config

import (
	"fmt"

	"github.com/openkcm/common-sdk/pkg/commoncfg"
)

// IsSet reports whether a source reference has been configured at all.
func IsSet(ref commoncfg.SourceRef) bool {
	return ref.Source != ""
}

// ClientCredentials of the gateway at the authorization server.
type ClientCredentials struct {
	ID     string
	Secret string
}

func LoadClientCredentials(conf OAuth2) (ClientCredentials, error) {
	id, err := commoncfg.LoadValueFromSourceRef(conf.ClientID)
	if err != nil {
		return ClientCredentials{}, fmt.Errorf("loading client id: %w", err)
	}

	creds := ClientCredentials{ID: string(id)}
	if !IsSet(conf.ClientSecret) {
		return creds, nil
	}

	secret, err := commoncfg.LoadValueFromSourceRef(conf.ClientSecret)
	if err != nil {
		return ClientCredentials{}, fmt.Errorf("loading client secret: %w", err)
	}
	creds.Secret = string(secret)

	return creds, nil
}

type ValKeyCredentials struct {
	Host     string
	User     string
	Password string
}

func LoadValKeyCredentials(conf ValKey) (ValKeyCredentials, error) {
	host, err := commoncfg.LoadValueFromSourceRef(conf.Host)
	if err != nil {
		return ValKeyCredentials{}, fmt.Errorf("loading valkey host: %w", err)
	}

	creds := ValKeyCredentials{Host: string(host)}

	if IsSet(conf.User) {
		user, err := commoncfg.LoadValueFromSourceRef(conf.User)
		if err != nil {
			return ValKeyCredentials{}, fmt.Errorf("loading valkey username: %w", err)
		}
		creds.User = string(user)
	}

	if IsSet(conf.Password) {
		password, err := commoncfg.LoadValueFromSourceRef(conf.Password)
		if err != nil {
			return ValKeyCredentials{}, fmt.Errorf("loading valkey password: %w", err)
		}
		creds.Password = string(password)
	}

	return creds, nil
}

// LoadSessionSecret returns the key signing session cookies.
func LoadSessionSecret(conf Session) ([]byte, error) {
	if len(conf.SecretParsed) > 0 {
		return conf.SecretParsed, nil
	}

	secret, err := commoncfg.LoadValueFromSourceRef(conf.Secret)
	if err != nil {
		return nil, fmt.Errorf("loading session secret: %w", err)
	}

	return secret, nil
}
