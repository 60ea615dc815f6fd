package neutron_test

import (
	"fmt"

	"github.com/openfroyo/froyo-neutron/pkg/engine"
	"github.com/openfroyo/froyo-neutron/pkg/neutron"
)

func ExampleEmit() {
	params := neutron.DefaultParams()
	params.AuthPassword = "passw0rd"
	params.SyncDB = true

	catalog, err := neutron.Emit(params, engine.Facts{OSFamily: "Debian", ProcessorCount: "2"})
	if err != nil {
		fmt.Println(err)
		return
	}

	for _, d := range catalog.Directives {
		if d.Kind.IsConfig() && d.Config.Section != "DEFAULT" {
			continue
		}
		if d.Kind.IsConfig() {
			fmt.Printf("%s = %s\n", d.Ref(), d.DisplayValue())
			continue
		}
		fmt.Println(d.Ref())
	}

	// Output:
	// Neutron_config[DEFAULT/api_workers] = 2
	// Neutron_config[DEFAULT/rpc_workers] = 2
	// Neutron_config[DEFAULT/agent_down_time] = 75
	// Neutron_config[DEFAULT/router_scheduler_driver] = neutron.scheduler.l3_agent_scheduler.ChanceScheduler
	// Neutron_config[DEFAULT/router_distributed] = false
	// Neutron_config[DEFAULT/l3_ha] = false
	// Package[neutron-server]
	// Service[neutron-server]
	// Exec[neutron-db-sync]
}

func ExampleValidate() {
	params := neutron.DefaultParams()
	params.AuthPassword = "passw0rd"
	params.AuthAdminPrefix = neutron.StringPtr("/keystone/")

	err := neutron.Validate(params, engine.Facts{OSFamily: "RedHat", ProcessorCount: "4"})
	fmt.Println(err)

	// Output:
	// auth_admin_prefix: "/keystone/" does not match "^(/[a-z0-9_-]+)*$"
}
