package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"regenie/internal/channel"
	"regenie/internal/config"
	"regenie/internal/personality"
	"regenie/internal/provider"
	"regenie/internal/store"

	"github.com/spf13/cobra"
)

type doctorReport struct {
	out    io.Writer
	passed int
	failed int
	warned int
}

func (r *doctorReport) pass(check, detail string) {
	r.passed++
	fmt.Fprintf(r.out, "  [PASS] %-20s %s\n", check, detail)
}

func (r *doctorReport) fail(check, detail string) {
	r.failed++
	fmt.Fprintf(r.out, "  [FAIL] %-20s %s\n", check, detail)
}

func (r *doctorReport) warn(check, detail string) {
	r.warned++
	fmt.Fprintf(r.out, "  [WARN] %-20s %s\n", check, detail)
}

func doctorCmd() *cobra.Command {
	var offline bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on the Regenie setup",
		Long: `Verifies the configuration, credentials, Slack and model connectivity,
the personality table and the event store. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			r := &doctorReport{out: cmd.OutOrStdout()}
			fmt.Fprintf(r.out, "Regenie Doctor v%s\n", version)
			fmt.Fprintf(r.out, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			cfgPath := config.ExpandPath(resolveConfigPath())
			if _, err := os.Stat(cfgPath); err != nil {
				r.warn("Config file", fmt.Sprintf("not found at %s, using defaults and environment", cfgPath))
			} else {
				r.pass("Config file", cfgPath)
			}

			cfg, err := config.Load(cfgPath)
			if err != nil {
				r.fail("Config validation", err.Error())
				return r.summary()
			}
			r.pass("Config validation", "valid")

			checkSecrets(r, cfg)

			reg, err := personality.Load(cfg.Personalities.File)
			if err != nil {
				r.fail("Personalities", err.Error())
			} else {
				r.pass("Personalities", fmt.Sprintf("%d loaded", len(reg.All())))
			}

			if cfg.Store.Enabled {
				if err := checkStore(cfg.Store.DBPath); err != nil {
					r.fail("Event store", err.Error())
				} else {
					r.pass("Event store", cfg.Store.DBPath)
				}
			} else {
				r.warn("Event store", "disabled, retried deliveries are not deduplicated")
			}

			if cfg.Slack.Mode == "http" {
				if err := checkPort(cfg.Slack.ListenAddr); err != nil {
					r.warn("Listen address", fmt.Sprintf("%s may be in use: %v", cfg.Slack.ListenAddr, err))
				} else {
					r.pass("Listen address", cfg.Slack.ListenAddr+" available")
				}
			}

			if !offline {
				ctx, cancel := context.WithTimeout(cmd.Context(), 20*time.Second)
				defer cancel()
				checkRemote(ctx, r, cfg)
			}

			return r.summary()
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "skip the Slack and model API checks")
	return cmd
}

func checkSecrets(r *doctorReport, cfg *config.Config) {
	required := []struct {
		name  string
		value string
		need  bool
	}{
		{"Slack bot token", cfg.Slack.BotToken, true},
		{"Signing secret", cfg.Slack.SigningSecret, cfg.Slack.Mode == "http"},
		{"Slack app token", cfg.Slack.AppToken, cfg.Slack.Mode == "socket"},
		{"Model API key", cfg.Model.APIKey, true},
	}
	for _, s := range required {
		switch {
		case s.value != "":
			r.pass(s.name, "set")
		case s.need:
			r.fail(s.name, "missing")
		}
	}
	if cfg.Tools.Exa.APIKey == "" {
		r.warn("Exa API key", "missing, search_web is disabled")
	}
	if cfg.Tools.Transcript.Enabled && cfg.Tools.Transcript.ApifyToken == "" {
		r.warn("Apify token", "missing, youtube_transcript is disabled")
	}
}

func checkRemote(ctx context.Context, r *doctorReport, cfg *config.Config) {
	if cfg.Slack.BotToken != "" {
		s := channel.NewSlack(channel.SlackConfig{BotToken: cfg.Slack.BotToken, Logger: logger})
		if err := s.Connect(ctx); err != nil {
			r.fail("Slack auth", err.Error())
		} else {
			r.pass("Slack auth", "bot user "+s.BotUserID())
		}
	}
	prov, err := provider.FromConfig(cfg.Model, logger)
	if err != nil {
		return
	}
	if err := prov.Healthy(ctx); err != nil {
		r.fail("Model API", err.Error())
	} else {
		r.pass("Model API", cfg.Model.APIBase)
	}
}

// checkStore opens the ledger, which also runs its migrations.
func checkStore(dbPath string) error {
	s, err := store.Open(dbPath, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := s.Recent(ctx, 1); err != nil {
		return fmt.Errorf("not readable: %w", err)
	}
	return nil
}

func checkPort(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	ln.Close()
	return nil
}

func (r *doctorReport) summary() error {
	fmt.Fprintf(r.out, "\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
	fmt.Fprintf(r.out, "Results: %d passed, %d warnings, %d failed\n", r.passed, r.warned, r.failed)
	if r.failed > 0 {
		return fmt.Errorf("%d check(s) failed", r.failed)
	}
	if r.warned > 0 {
		fmt.Fprintf(r.out, "\nRegenie should work but consider fixing the warnings.\n")
	} else {
		fmt.Fprintf(r.out, "\nAll checks passed! Regenie is ready to run.\n")
	}
	return nil
}
