package main

import (
	"fmt"
	"time"

	"blackjacktable/internal/auth"
)

type TokenCmd struct {
	Wallet    string        `arg:"" help:"Wallet address to mint a session token for"`
	TTL       time.Duration `default:"24h" help:"Token lifetime"`
	JWTSecret string        `env:"BLACKJACK_JWT_SECRET" help:"Signing secret shared with the server"`
}

func (t *TokenCmd) Run() error {
	token, err := auth.NewVerifier(t.JWTSecret).Mint(t.Wallet, t.TTL)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
