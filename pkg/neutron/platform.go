package neutron

import "github.com/openfroyo/froyo-neutron/pkg/engine"

// Platform holds the per-OS-family names the class depends on.
type Platform struct {
	// PackageTitle is the title of the package directive.
	PackageTitle string

	// PackageName is the OS package providing the server.
	PackageName string

	// ServiceName is the default server service name.
	ServiceName string
}

// platforms is keyed by OS family. RedHat has no separate server package,
// so the base package is ordered before the server's config and service.
var platforms = map[string]Platform{
	engine.OSFamilyDebian: {
		PackageTitle: "neutron-server",
		PackageName:  "neutron-server",
		ServiceName:  "neutron-server",
	},
	engine.OSFamilyRedHat: {
		PackageTitle: "neutron",
		PackageName:  "openstack-neutron",
		ServiceName:  "neutron-server",
	},
}

// LookupPlatform returns the platform entry for an OS family.
func LookupPlatform(osFamily string) (Platform, bool) {
	p, ok := platforms[osFamily]
	return p, ok
}
