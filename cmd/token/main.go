// Command token mints a bearer token for local development and manual
// testing of the trip log API. It signs with JWT_SECRET, read from the
// environment or a .env file.
//
//	token --sub <member> --unit <sub-unit> --base <base> --caps driver,approving_officer
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/pkordes/triplog/internal/domain"
	"github.com/pkordes/triplog/internal/middleware"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "token:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var (
		sub, unit, base string
		caps            []string
		ttl             time.Duration
	)
	flagSet := pflag.NewFlagSet("token", pflag.ContinueOnError)
	flagSet.StringVar(&sub, "sub", "", "member ID (required)")
	flagSet.StringVar(&unit, "unit", "", "sub-unit ID (required)")
	flagSet.StringVar(&base, "base", "", "base ID (required)")
	flagSet.StringSliceVar(&caps, "caps", []string{string(domain.CapDriver)}, "comma-separated capabilities")
	flagSet.DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return errors.New("JWT_SECRET is not set")
	}

	actor, err := buildActor(sub, unit, base, caps)
	if err != nil {
		return err
	}
	token, err := middleware.SignToken([]byte(secret), actor, ttl)
	if err != nil {
		return fmt.Errorf("sign: %w", err)
	}
	fmt.Println(token)
	return nil
}

func buildActor(sub, unit, base string, caps []string) (domain.Actor, error) {
	var a domain.Actor
	for _, f := range []struct {
		name string
		raw  string
		dst  *uuid.UUID
	}{
		{"sub", sub, &a.ID},
		{"unit", unit, &a.SubUnitID},
		{"base", base, &a.BaseID},
	} {
		id, err := uuid.Parse(f.raw)
		if err != nil {
			return domain.Actor{}, fmt.Errorf("--%s: %w", f.name, err)
		}
		*f.dst = id
	}

	known := map[domain.Capability]bool{
		domain.CapDriver:            true,
		domain.CapPreApprovedDriver: true,
		domain.CapBaseVehicleAccess: true,
		domain.CapApprovingOfficer:  true,
		domain.CapFleetAdmin:        true,
	}
	for _, c := range caps {
		if !known[domain.Capability(c)] {
			return domain.Actor{}, fmt.Errorf("--caps: unknown capability %q", c)
		}
		a.Capabilities = append(a.Capabilities, domain.Capability(c))
	}
	if len(a.Capabilities) == 0 {
		return domain.Actor{}, errors.New("--caps: at least one capability is required")
	}
	return a, nil
}
