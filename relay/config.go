package relay

import "fmt"

// Environment variables consulted by ResolveConfig.
const (
	EnvRPCHost = "BRIDGE_RPC_HOST"
	EnvRPCUser = "BRIDGE_RPC_USER"
	EnvRPCPass = "BRIDGE_RPC_PASS"
)

// RPCConfig holds the connection parameters for a Bitcoin node's JSON-RPC
// interface.
type RPCConfig struct {
	Host     string `json:"host"`
	User     string `json:"user"`
	Password string `json:"password"`
	Network  string `json:"network"`
}

// NetworkPresets contains default RPC endpoints for local nodes.
// Mainnet is intentionally omitted to require explicit configuration.
var NetworkPresets = map[string]RPCConfig{
	"regtest": {Host: "127.0.0.1:18443"},
	"testnet": {Host: "127.0.0.1:18332"},
	"signet":  {Host: "127.0.0.1:38332"},
}

// ResolveConfig merges RPC configuration from three sources with decreasing priority:
//  1. CLI flags (highest priority)
//  2. Environment variables (BRIDGE_RPC_HOST, BRIDGE_RPC_USER, BRIDGE_RPC_PASS)
//  3. Network presets (lowest priority, no mainnet preset)
func ResolveConfig(flags *RPCConfig, env map[string]string, network string) (*RPCConfig, error) {
	result := RPCConfig{Network: network}

	if preset, ok := NetworkPresets[network]; ok {
		result = preset
		result.Network = network
	}

	if v := env[EnvRPCHost]; v != "" {
		result.Host = v
	}
	if v := env[EnvRPCUser]; v != "" {
		result.User = v
	}
	if v := env[EnvRPCPass]; v != "" {
		result.Password = v
	}

	if flags != nil {
		if flags.Host != "" {
			result.Host = flags.Host
		}
		if flags.User != "" {
			result.User = flags.User
		}
		if flags.Password != "" {
			result.Password = flags.Password
		}
	}

	if result.Host == "" {
		return nil, fmt.Errorf("%w: %s requires an explicit host (set --rpchost or %s)", ErrMissingConfig, network, EnvRPCHost)
	}
	return &result, nil
}
