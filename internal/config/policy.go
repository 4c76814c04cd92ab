package config

import (
	"fmt"
	"net/http"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Wang-tianhao/vibrant-session-gate/sessiongate"
)

// Policy overrides the gate's routing tables. Empty fields keep the defaults.
//
//	auth_prefixes: [/login, /register, /auth]
//	protected_entry: /dashboard
//	login_entry: /login
//	redirect_status: 307
//	exclude:
//	  prefixes: [/_next/static, /static/, /favicon.ico, /metrics, /healthz]
//	  extensions: [.svg, .png]
type Policy struct {
	AuthPrefixes   []string      `yaml:"auth_prefixes"`
	ProtectedEntry string        `yaml:"protected_entry"`
	LoginEntry     string        `yaml:"login_entry"`
	RedirectStatus int           `yaml:"redirect_status"`
	Exclude        *ExcludeRules `yaml:"exclude"`
}

// ExcludeRules lists paths the gate never evaluates
type ExcludeRules struct {
	Prefixes   []string `yaml:"prefixes"`
	Extensions []string `yaml:"extensions"`
}

// LoadPolicy reads a gate policy from a YAML file
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}

	var policy Policy
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return nil, fmt.Errorf("unmarshal policy: %w", err)
	}

	switch policy.RedirectStatus {
	case 0, http.StatusFound, http.StatusSeeOther, http.StatusTemporaryRedirect:
	default:
		return nil, fmt.Errorf("redirect_status must be 302, 303 or 307, got %d", policy.RedirectStatus)
	}

	return &policy, nil
}

// GateOptions converts the policy into gate options. A nil policy yields none.
func (p *Policy) GateOptions() []sessiongate.ConfigOption {
	if p == nil {
		return nil
	}
	var opts []sessiongate.ConfigOption
	if len(p.AuthPrefixes) > 0 {
		opts = append(opts, sessiongate.WithAuthPrefixes(p.AuthPrefixes...))
	}
	if p.ProtectedEntry != "" {
		opts = append(opts, sessiongate.WithProtectedEntry(p.ProtectedEntry))
	}
	if p.LoginEntry != "" {
		opts = append(opts, sessiongate.WithLoginEntry(p.LoginEntry))
	}
	if p.RedirectStatus != 0 {
		opts = append(opts, sessiongate.WithRedirectStatus(p.RedirectStatus))
	}
	if p.Exclude != nil {
		opts = append(opts, sessiongate.WithMatcher(sessiongate.NewMatcher(p.Exclude.Prefixes, p.Exclude.Extensions)))
	}
	return opts
}
