package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"relmap/application/session"
	"relmap/domain/core/valueobjects"
	"relmap/infrastructure/persistence/supabase"
	"relmap/pkg/auth"

	"github.com/spf13/cobra"
)

// withSession runs fn on the owner's map and waits for its writes to persist
func (c *cli) withSession(cmd *cobra.Command, fn func(ctx context.Context, s *session.Session) error) error {
	if c.owner == "" {
		return errors.New("--owner is required")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), c.timeout)
	defer cancel()

	source, release, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer release()

	s, err := source.Get(ctx, c.owner)
	if err != nil {
		return fmt.Errorf("load map of %s: %w", c.owner, err)
	}
	if err := fn(ctx, s); err != nil {
		return err
	}
	if err := s.Wait(ctx); err != nil {
		return fmt.Errorf("sync map of %s: %w", c.owner, err)
	}
	return nil
}

func (c *cli) exportCommand() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the map to a spreadsheet",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSession(cmd, func(ctx context.Context, s *session.Session) error {
				data, err := s.Export()
				if err != nil {
					return err
				}
				if out == "" {
					_, ext := s.DocumentType()
					out = fmt.Sprintf("relmap-%s.%s", time.Now().Format("20060102"), ext)
				}
				if err := os.WriteFile(out, data, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", out, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "exported to %s\n", out)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "destination file")
	return cmd
}

func (c *cli) importCommand() *cobra.Command {
	var in string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Replace the map with the content of a spreadsheet",
		RunE: func(cmd *cobra.Command, args []string) error {
			if in == "" {
				return errors.New("--in is required")
			}
			data, err := os.ReadFile(in)
			if err != nil {
				return fmt.Errorf("read %s: %w", in, err)
			}
			return c.withSession(cmd, func(ctx context.Context, s *session.Session) error {
				report, err := s.Import(data)
				if err != nil {
					return err
				}
				return printJSON(cmd, report)
			})
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "source file")
	return cmd
}

func (c *cli) resetCommand() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Remove every person and relation",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("reset deletes the whole map, pass --yes to confirm")
			}
			return c.withSession(cmd, func(ctx context.Context, s *session.Session) error {
				if err := s.Reset(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "map of %s reset\n", c.owner)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the reset")
	return cmd
}

// Stats summarizes a map
type Stats struct {
	Persons     int            `json:"persons"`
	Relations   int            `json:"relations"`
	Positioned  int            `json:"positioned"`
	Categories  map[string]int `json:"categories"`
	Proximities map[string]int `json:"proximities"`
}

func (c *cli) statsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print counts of persons, relations and categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSession(cmd, func(ctx context.Context, s *session.Session) error {
				return printJSON(cmd, collectStats(s))
			})
		},
	}
}

func collectStats(s *session.Session) Stats {
	persons, relations := s.Snapshot()
	stats := Stats{
		Persons:     len(persons),
		Relations:   len(relations),
		Categories:  make(map[string]int, len(valueobjects.AllCategories)),
		Proximities: make(map[string]int, 3),
	}
	for _, p := range persons {
		if p.Position() != nil {
			stats.Positioned++
		}
		for _, category := range p.Categories().Strings() {
			stats.Categories[category]++
		}
	}
	for _, r := range relations {
		stats.Proximities[string(r.Proximity())]++
	}
	return stats
}

func tokenCommand() *cobra.Command {
	var (
		secret string
		issuer string
		email  string
		expiry time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Sign a bearer token for local testing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = os.Getenv("JWT_SECRET")
			}
			if secret == "" {
				return errors.New("--secret or JWT_SECRET is required")
			}
			generator, err := auth.NewJWTGenerator(auth.JWTConfig{SecretKey: secret, Issuer: issuer}, expiry)
			if err != nil {
				return err
			}
			token, err := generator.GenerateToken(args[0], email)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "HMAC signing secret")
	cmd.Flags().StringVar(&issuer, "issuer", os.Getenv("JWT_ISSUER"), "token issuer")
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().DurationVar(&expiry, "expiry", 24*time.Hour, "token lifetime")
	return cmd
}

func schemaCommand() *cobra.Command {
	var persons, relations string
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the Supabase DDL for the persons and relations tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			ddl, err := supabase.Schema(persons, relations)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), ddl)
			return nil
		},
	}
	cmd.Flags().StringVar(&persons, "persons-table", envOr("PERSONS_TABLE", "persons"), "persons table name")
	cmd.Flags().StringVar(&relations, "relations-table", envOr("RELATIONS_TABLE", "relations"), "relations table name")
	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
