// Package params loads process configuration from the environment (optionally
// via a godotenv file): default fee parameters and where the process persists
// state and binds its API.
package params

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// MarketDefaults holds protocol-wide fee parameters loaded from the
// environment. CreateMarket does not read them; a market takes its fees from
// the instruction payload.
type MarketDefaults struct {
	ProtocolFeeBps uint16
	LTVBufferBps   uint16
}

// Node holds process-level settings: where the engine persists state, and
// which address the API server binds.
type Node struct {
	APIAddr string
	DBPath  string
	LogFile string
}

type Config struct {
	Market MarketDefaults
	Node   Node
}

func Default() Config {
	return Config{
		Market: MarketDefaults{
			ProtocolFeeBps: 10,
			LTVBufferBps:   500,
		},
		Node: Node{
			APIAddr: ":8080",
			DBPath:  "data/nix.db",
			LogFile: "data/nix-node.log",
		},
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if v := os.Getenv("PROTOCOL_FEE_BPS"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 16); err == nil {
			cfg.Market.ProtocolFeeBps = uint16(n)
		}
	}
	if v := os.Getenv("LTV_BUFFER_BPS"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 16); err == nil {
			cfg.Market.LTVBufferBps = uint16(n)
		}
	}
	if v := os.Getenv("API_ADDR"); v != "" {
		cfg.Node.APIAddr = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.Node.DBPath = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.Node.LogFile = v
	}

	return cfg
}
