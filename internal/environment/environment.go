// Package environment describes the deployment tiers a stage can run in and
// the per-tier naming rules: allowed caller domains, downstream subdomain
// aliases and bucket names.
package environment

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment is a deployment tier. dev, stg and prd are well known; any
// other value is a custom label (e.g. a feature environment).
type Environment string

const (
	Dev Environment = "dev"
	Stg Environment = "stg"
	Prd Environment = "prd"
)

// Parse normalizes a raw environment value.
func Parse(s string) Environment {
	return Environment(strings.ToLower(strings.TrimSpace(s)))
}

func (e Environment) String() string {
	return string(e)
}

// Alias returns the subdomain alias a downstream service uses in this
// environment: prd uses the bare alias, dev and stg share "<alias>-dev", and
// custom environments get "<alias>-<env>".
func Alias(serviceAlias string, env Environment) string {
	switch env {
	case Prd:
		return serviceAlias
	case Dev, Stg:
		return serviceAlias + "-dev"
	default:
		return fmt.Sprintf("%s-%s", serviceAlias, env)
	}
}

// BucketName returns the data bucket owned by app in env.
func BucketName(app string, env Environment) string {
	return fmt.Sprintf("%s-data-%s", app, env)
}

// Domain is one row of the allowed-caller table.
type Domain struct {
	Env             Environment `yaml:"env"`
	Domain          string      `yaml:"domain"`
	CallerSubdomain string      `yaml:"caller_subdomain,omitempty"`
}

// Table maps allowed caller domains to the single environment that may
// accept them.
type Table struct {
	rows []Domain
}

//go:embed environments.yaml
var defaultTable []byte

// DefaultTable returns the table shipped with the binary.
func DefaultTable() Table {
	t, err := ParseTable(defaultTable)
	if err != nil {
		panic(fmt.Sprintf("embedded environments.yaml is invalid: %v", err))
	}
	return t
}

// ParseTable decodes a YAML document of the form
//
//	domains:
//	  - env: stg
//	    domain: example-dev.com
func ParseTable(data []byte) (Table, error) {
	var doc struct {
		Domains []Domain `yaml:"domains"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Table{}, fmt.Errorf("failed to parse environment table: %w", err)
	}
	return NewTable(doc.Domains...)
}

// NewTable builds a table from rows. Each domain and each environment may
// appear at most once so a domain always maps to exactly one environment.
func NewTable(rows ...Domain) (Table, error) {
	seenDomain := map[string]bool{}
	seenEnv := map[Environment]bool{}
	normalized := make([]Domain, 0, len(rows))
	for _, row := range rows {
		row.Env = Parse(string(row.Env))
		row.Domain = strings.ToLower(strings.TrimSpace(row.Domain))
		row.CallerSubdomain = strings.ToLower(strings.TrimSpace(row.CallerSubdomain))
		if row.Env == "" || row.Domain == "" {
			return Table{}, fmt.Errorf("environment table row requires env and domain: %+v", row)
		}
		if seenDomain[row.Domain] {
			return Table{}, fmt.Errorf("domain %s listed more than once", row.Domain)
		}
		if seenEnv[row.Env] {
			return Table{}, fmt.Errorf("environment %s listed more than once", row.Env)
		}
		seenDomain[row.Domain] = true
		seenEnv[row.Env] = true
		normalized = append(normalized, row)
	}

	// longest domain first so rll-dev.byu.edu is tried before rll.byu.edu
	sort.SliceStable(normalized, func(i, j int) bool {
		return len(normalized[i].Domain) > len(normalized[j].Domain)
	})

	return Table{rows: normalized}, nil
}

// Match returns the row whose domain is a suffix of hostname. Look-alike
// hosts are rejected later by the validator's exact origin comparison.
func (t Table) Match(hostname string) (Domain, bool) {
	hostname = strings.ToLower(hostname)
	for _, row := range t.rows {
		if strings.HasSuffix(hostname, row.Domain) {
			return row, true
		}
	}
	return Domain{}, false
}

// For returns the row owned by env, if any.
func (t Table) For(env Environment) (Domain, bool) {
	for _, row := range t.rows {
		if row.Env == env {
			return row, true
		}
	}
	return Domain{}, false
}

// Rows returns a copy of the table rows.
func (t Table) Rows() []Domain {
	return append([]Domain(nil), t.rows...)
}
