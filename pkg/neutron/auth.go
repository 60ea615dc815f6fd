package neutron

import (
	"fmt"

	"github.com/openfroyo/froyo-neutron/pkg/engine"
)

// Config files and sections written by the auth middleware.
const (
	NeutronConfPath  = "/etc/neutron/neutron.conf"
	APIPasteConfPath = "/etc/neutron/api-paste.ini"

	keystoneAuthtokenSection = "keystone_authtoken"
	filterAuthtokenSection   = "filter:authtoken"
)

// keystonePublicPort is the port of the derived public auth_uri.
const keystonePublicPort = "5000"

// authMode says which of the unified auth parameters were supplied.
type authMode int

const (
	authLegacyOnly authMode = iota
	authURIOnly
	authIdentityURIOnly
	authBoth
)

func (m authMode) String() string {
	switch m {
	case authLegacyOnly:
		return "legacy"
	case authURIOnly:
		return "auth_uri"
	case authIdentityURIOnly:
		return "identity_uri"
	case authBoth:
		return "auth_uri+identity_uri"
	default:
		return fmt.Sprintf("authMode(%d)", int(m))
	}
}

func modeOf(p Params) authMode {
	switch {
	case p.AuthURI != nil && p.IdentityURI != nil:
		return authBoth
	case p.AuthURI != nil:
		return authURIOnly
	case p.IdentityURI != nil:
		return authIdentityURIOnly
	default:
		return authLegacyOnly
	}
}

// realAuthURI is auth_uri when supplied, otherwise the public endpoint
// derived from the legacy host and protocol.
func realAuthURI(p Params) string {
	if p.AuthURI != nil {
		return *p.AuthURI
	}
	return fmt.Sprintf("%s://%s:%s/", p.AuthProtocol, p.AuthHost, keystonePublicPort)
}

// resolveAuth reconciles the legacy auth parameters with auth_uri and
// identity_uri and returns the assignments for both config files.
func resolveAuth(p Params) []engine.Directive {
	authURI := realAuthURI(p)
	mode := modeOf(p)

	conf := newSection(engine.KindNeutronConfig, NeutronConfPath, keystoneAuthtokenSection)
	conf.set("auth_uri", authURI)
	conf.setOptional("identity_uri", p.IdentityURI)

	switch mode {
	case authBoth:
		conf.absent("auth_host")
		conf.absent("auth_port")
		conf.absent("auth_protocol")
		conf.absent("auth_admin_prefix")
	case authLegacyOnly, authURIOnly, authIdentityURIOnly:
		// Deprecated keys stay set while either unified parameter is missing.
		conf.set("auth_host", p.AuthHost)
		conf.set("auth_port", p.AuthPort)
		conf.set("auth_protocol", p.AuthProtocol)
		conf.setOptional("auth_admin_prefix", p.AuthAdminPrefix)
	}

	conf.set("admin_tenant_name", p.AuthTenant)
	conf.set("admin_user", p.AuthUser)
	conf.secret("admin_password", p.AuthPassword)

	paste := newSection(engine.KindNeutronAPIConfig, APIPasteConfPath, filterAuthtokenSection)
	paste.set("auth_host", p.AuthHost)
	paste.set("auth_port", p.AuthPort)
	paste.set("auth_protocol", p.AuthProtocol)
	paste.set("admin_tenant_name", p.AuthTenant)
	paste.set("admin_user", p.AuthUser)
	paste.secret("admin_password", p.AuthPassword)
	paste.set("auth_uri", authURI)
	paste.setOptional("auth_admin_prefix", p.AuthAdminPrefix)

	return append(conf.directives, paste.directives...)
}
