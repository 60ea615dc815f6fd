package neutron

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParamsFromMap(t *testing.T) {
	tests := []struct {
		name    string
		values  map[string]any
		want    func() Params
		wantErr string
	}{
		{
			name:   "empty map yields defaults",
			values: map[string]any{},
			want:   DefaultParams,
		},
		{
			name: "numbers become strings",
			values: map[string]any{
				"auth_password":            "secret",
				"auth_port":                5000,
				"database_max_pool_size":   float64(25),
				"max_l3_agents_per_router": int64(0),
				"api_workers":              4,
			},
			want: func() Params {
				p := DefaultParams()
				p.AuthPassword = "secret"
				p.AuthPort = "5000"
				p.DatabaseMaxPoolSize = "25"
				p.MaxL3AgentsPerRouter = "0"
				p.APIWorkers = StringPtr("4")
				return p
			},
		},
		{
			name: "booleans from strings",
			values: map[string]any{
				"sync_db":        "true",
				"enabled":        "False",
				"manage_service": false,
				"l3_ha":          true,
			},
			want: func() Params {
				p := DefaultParams()
				p.SyncDB = true
				p.Enabled = false
				p.ManageService = false
				p.L3HA = true
				return p
			},
		},
		{
			name: "empty prefix is set not unset",
			values: map[string]any{
				"auth_admin_prefix": "",
				"identity_uri":      "https://foo.bar:35357/",
			},
			want: func() Params {
				p := DefaultParams()
				p.AuthAdminPrefix = StringPtr("")
				p.IdentityURI = StringPtr("https://foo.bar:35357/")
				return p
			},
		},
		{
			name:   "nil keeps default",
			values: map[string]any{"auth_uri": nil, "auth_host": nil},
			want:   DefaultParams,
		},
		{
			name:    "unknown parameter",
			values:  map[string]any{"rabbit_password": "x"},
			wantErr: `unknown parameter "rabbit_password"`,
		},
		{
			name:    "fractional integer",
			values:  map[string]any{"agent_down_time": 7.5},
			wantErr: "agent_down_time must be an integer, got 7.5",
		},
		{
			name:    "bool for integer",
			values:  map[string]any{"auth_port": true},
			wantErr: "auth_port must be an integer, got true",
		},
		{
			name:    "bad boolean",
			values:  map[string]any{"sync_db": "yes"},
			wantErr: "sync_db must be a boolean, got yes",
		},
		{
			name:    "non-scalar",
			values:  map[string]any{"auth_host": []any{"a"}},
			wantErr: "auth_host must be a scalar, got []interface {}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParamsFromMap(tt.values)
			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("Expected error %q, got nil", tt.wantErr)
				}
				if !IsValidationError(err) {
					t.Errorf("Expected ValidationError, got %T", err)
				}
				if err.Error() != tt.wantErr {
					t.Errorf("Expected error %q, got %q", tt.wantErr, err.Error())
				}
				return
			}
			if err != nil {
				t.Fatalf("ParamsFromMap failed: %v", err)
			}
			if diff := cmp.Diff(tt.want(), got); diff != "" {
				t.Errorf("Params mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParameterNames(t *testing.T) {
	names := ParameterNames()
	if len(names) != len(paramTable) {
		t.Fatalf("Expected %d names, got %d", len(paramTable), len(names))
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Errorf("Names not sorted at %d: %s >= %s", i, names[i-1], names[i])
		}
	}
}
