package server

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"blackjacktable/internal/blackjack"
)

// ServerConfig represents the complete server configuration
type ServerConfig struct {
	Server ServerSettings  `hcl:"server,block"`
	Tables []TableSettings `hcl:"table,block"`
}

// ServerSettings contains server-level configuration
type ServerSettings struct {
	Address   string `hcl:"address,optional"`
	LogLevel  string `hcl:"log_level,optional"`
	JWTSecret string `hcl:"jwt_secret,optional"`
}

// TableSettings defines one blackjack table
type TableSettings struct {
	ID                 string `hcl:"id,label"`
	MaxSeats           int    `hcl:"max_seats,optional"`
	MinBet             int    `hcl:"min_bet,optional"`
	MaxBet             int    `hcl:"max_bet,optional"`
	ShoeLowWater       int    `hcl:"shoe_low_water,optional"`
	TurnTimeoutSeconds int    `hcl:"turn_timeout_seconds,optional"`
}

// DefaultConfig returns the configuration used when no file is given: one
// five-seat table with no bet limits and a 30 second turn timer.
func DefaultConfig() *ServerConfig {
	return &ServerConfig{
		Server: ServerSettings{
			Address:  ":8080",
			LogLevel: "info",
		},
		Tables: []TableSettings{
			{
				ID:                 "main",
				MaxSeats:           blackjack.DefaultMaxSeats,
				ShoeLowWater:       blackjack.DefaultShoeLowWater,
				TurnTimeoutSeconds: 30,
			},
		},
	}
}

// LoadConfig loads configuration from an HCL file. An empty filename or a
// missing file yields the defaults.
func LoadConfig(filename string) (*ServerConfig, error) {
	if filename == "" {
		return DefaultConfig(), nil
	}
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config ServerConfig
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	// Apply defaults for missing values
	if config.Server.Address == "" {
		config.Server.Address = ":8080"
	}
	if config.Server.LogLevel == "" {
		config.Server.LogLevel = "info"
	}
	if len(config.Tables) == 0 {
		config.Tables = DefaultConfig().Tables
	}
	for i := range config.Tables {
		if config.Tables[i].MaxSeats == 0 {
			config.Tables[i].MaxSeats = blackjack.DefaultMaxSeats
		}
		if config.Tables[i].ShoeLowWater == 0 {
			config.Tables[i].ShoeLowWater = blackjack.DefaultShoeLowWater
		}
	}

	return &config, nil
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if len(c.Tables) == 0 {
		return fmt.Errorf("at least one table must be configured")
	}

	seen := make(map[string]bool)
	for _, table := range c.Tables {
		if table.ID == "" {
			return fmt.Errorf("table id must not be empty")
		}
		if seen[table.ID] {
			return fmt.Errorf("table %s: duplicate table id", table.ID)
		}
		seen[table.ID] = true

		if table.MaxSeats < 1 || table.MaxSeats > blackjack.DefaultMaxSeats {
			return fmt.Errorf("table %s: max_seats must be between 1 and %d", table.ID, blackjack.DefaultMaxSeats)
		}
		if table.MinBet < 0 || table.MaxBet < 0 {
			return fmt.Errorf("table %s: bet limits must not be negative", table.ID)
		}
		if table.MaxBet > 0 && table.MinBet > table.MaxBet {
			return fmt.Errorf("table %s: min_bet must not exceed max_bet", table.ID)
		}
		// The shoe must always cover a full deal: one seat per player plus
		// the dealer, two cards each.
		if table.ShoeLowWater < 2*(table.MaxSeats+1) {
			return fmt.Errorf("table %s: shoe_low_water must be at least %d", table.ID, 2*(table.MaxSeats+1))
		}
		if table.TurnTimeoutSeconds < 0 {
			return fmt.Errorf("table %s: turn_timeout_seconds must not be negative", table.ID)
		}
	}

	return nil
}
