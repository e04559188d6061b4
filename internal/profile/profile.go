// Package profile assembles connection profiles for remote file servers.
package profile

import (
	"fmt"
	"strings"
)

// Backend names accepted in Raw.Backend.
const (
	BackendLftp = "lftp"
	BackendFTP  = "ftp"
	BackendSFTP = "sftp"
)

// Credentials holds the login pair for a server. Both fields may be empty
// for anonymous access.
type Credentials struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// SSHKey configures key based authentication for sftp.
type SSHKey struct {
	// Required enables key authentication.
	Required bool `yaml:"required"`

	// Path is the private key file.
	Path string `yaml:"path"`
}

// TLS configures the native ftps backend.
type TLS struct {
	// Implicit dials TLS directly instead of upgrading with AUTH TLS.
	Implicit bool `yaml:"implicit"`

	// Insecure skips server certificate verification.
	Insecure bool `yaml:"insecure"`

	// ClientCert is a PKCS#12 (.pfx) bundle presented to the server.
	ClientCert string `yaml:"client_cert"`

	// ClientCertPassword unlocks ClientCert.
	ClientCertPassword string `yaml:"client_cert_password"`
}

// Raw holds server settings as read from configuration. Nil pointers and
// empty strings mean the field was not set.
type Raw struct {
	Host                 string       `yaml:"host"`
	Protocol             string       `yaml:"protocol"`
	Port                 int          `yaml:"port"`
	Escape               *bool        `yaml:"escape"`
	Retries              *int         `yaml:"retries"`
	Timeout              *int         `yaml:"timeout"`
	RetryInterval        *int         `yaml:"retry_interval"`
	RetryMultiplier      *float64     `yaml:"retry_multiplier"`
	RequiresPassword     *bool        `yaml:"requires_password"`
	AutoConfirm          *bool        `yaml:"auto_confirm"`
	Cwd                  string       `yaml:"cwd"`
	AdditionalDirectives string       `yaml:"additional_directives"`
	SSHKey               SSHKey       `yaml:"ssh_key"`
	TLS                  TLS          `yaml:"tls"`
	Backend              string       `yaml:"backend"`
	Credentials          *Credentials `yaml:"credentials"`
}

// Profile is a fully defaulted server definition. It is a value type and is
// shared read-only between concurrent operations.
type Profile struct {
	Name                 string
	Host                 string
	Protocol             string
	Port                 int
	Username             string
	Password             string
	Escape               bool
	Retries              int
	Timeout              int
	RetryInterval        int
	RetryMultiplier      float64
	RequiresPassword     bool
	AutoConfirm          bool
	Cwd                  string
	AdditionalDirectives string
	SSHKey               SSHKey
	TLS                  TLS
	Backend              string
}

// Overrides are per-message connection settings. Empty fields keep the
// profile value.
type Overrides struct {
	Host     string
	Port     int
	Username string
	Password string
}

// Assemble applies defaults to raw configuration. A nil creds pair leaves
// username and password empty. Nothing is validated here; malformed values
// surface when the transfer client connects.
func Assemble(raw Raw, creds *Credentials) Profile {
	p := Profile{
		Host:                 orString(raw.Host, "localhost"),
		Protocol:             strings.ToLower(orString(raw.Protocol, "ftp")),
		Port:                 raw.Port,
		Escape:               orBool(raw.Escape, true),
		Retries:              orInt(raw.Retries, 2),
		Timeout:              orInt(raw.Timeout, 10),
		RetryInterval:        orInt(raw.RetryInterval, 5),
		RetryMultiplier:      1,
		RequiresPassword:     orBool(raw.RequiresPassword, false),
		AutoConfirm:          orBool(raw.AutoConfirm, false),
		Cwd:                  raw.Cwd,
		AdditionalDirectives: raw.AdditionalDirectives,
		SSHKey:               raw.SSHKey,
		TLS:                  raw.TLS,
		Backend:              strings.ToLower(orString(raw.Backend, BackendLftp)),
	}
	if p.Port == 0 {
		p.Port = 21
	}
	if raw.RetryMultiplier != nil {
		p.RetryMultiplier = *raw.RetryMultiplier
	}
	if creds != nil {
		p.Username = creds.Username
		p.Password = creds.Password
	}
	return p
}

// WithOverrides returns a copy of p with the non-empty overrides applied.
// p itself is left untouched.
func (p Profile) WithOverrides(o Overrides) Profile {
	if o.Host != "" {
		p.Host = o.Host
	}
	if o.Port != 0 {
		p.Port = o.Port
	}
	if o.Username != "" {
		p.Username = o.Username
	}
	if o.Password != "" {
		p.Password = o.Password
	}
	return p
}

// Target returns the connection URL, e.g. sftp://example.com:22.
func (p Profile) Target() string {
	return fmt.Sprintf("%s://%s:%d", p.Protocol, p.Host, p.Port)
}

// Address returns host:port.
func (p Profile) Address() string {
	return fmt.Sprintf("%s:%d", p.Host, p.Port)
}

// Directives splits AdditionalDirectives on ';'.
func (p Profile) Directives() []string {
	var out []string
	for _, d := range strings.Split(p.AdditionalDirectives, ";") {
		if d = strings.TrimSpace(d); d != "" {
			out = append(out, d)
		}
	}
	return out
}

// String returns a description of the profile without secrets.
func (p Profile) String() string {
	if p.Username != "" {
		return fmt.Sprintf("%s://%s@%s:%d", p.Protocol, p.Username, p.Host, p.Port)
	}
	return p.Target()
}

func orString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func orInt(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func orBool(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
