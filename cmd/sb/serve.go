package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/switchboard/internal/bitrix"
	"github.com/zulandar/switchboard/internal/chatling"
	"github.com/zulandar/switchboard/internal/config"
	"github.com/zulandar/switchboard/internal/monitor"
	"github.com/zulandar/switchboard/internal/notify"
	"github.com/zulandar/switchboard/internal/notify/discord"
	"github.com/zulandar/switchboard/internal/notify/slack"
	"github.com/zulandar/switchboard/internal/relay"
	"github.com/zulandar/switchboard/internal/webhook"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Switchboard relay",
		Long:  "Starts the webhook server, the AI relay, and the escalation monitor. Runs until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Switchboard config file")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	responder, err := chatling.NewClient(chatling.Opts{
		APIURL: cfg.Chatling.APIURL,
		APIKey: cfg.Chatling.APIKey,
		BotID:  cfg.Chatling.BotID,
	})
	if err != nil {
		return err
	}

	crm, err := bitrix.NewClient(bitrix.Opts{
		WebhookURL: cfg.Bitrix.WebhookURL,
		BotID:      cfg.Bitrix.BotID,
		ClientID:   cfg.Bitrix.ClientID,
	})
	if err != nil {
		return err
	}

	notifier, err := buildNotifier(cfg, out)
	if err != nil {
		return err
	}

	pipeline, err := relay.NewPipeline(relay.PipelineOpts{
		DB:        gormDB,
		Responder: responder,
		Sink:      crm,
		Out:       out,
	})
	if err != nil {
		return err
	}

	router, err := relay.NewRouter(relay.RouterOpts{
		DB:       gormDB,
		Pipeline: pipeline,
		Notifier: notifier,
		Out:      out,
	})
	if err != nil {
		return err
	}

	digestCron := ""
	if cfg.Digest.Enabled {
		digestCron = cfg.Digest.Cron
	}
	mon, err := monitor.New(monitor.Opts{
		DB:           gormDB,
		Router:       router,
		Timeout:      cfg.Takeover.Timeout(),
		PollInterval: cfg.Takeover.PollInterval(),
		Preface:      cfg.Takeover.Preface,
		DigestCron:   digestCron,
		Notifier:     notifier,
		Out:          out,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go mon.Run(ctx)
	go mon.RunDigestScheduler(ctx)

	return webhook.Start(ctx, webhook.StartOpts{
		DB:            gormDB,
		Router:        router,
		Port:          cfg.Server.Port,
		Out:           out,
		CRM:           &crmAdapter{client: crm},
		LeadFlagField: cfg.Bitrix.LeadFlagField,
	})
}

// buildNotifier assembles the staff-alert fan-out from whichever platforms
// are configured. Returns nil when none are, which disables alerts.
func buildNotifier(cfg *config.Config, out io.Writer) (notify.Notifier, error) {
	var notifiers []notify.Notifier

	if cfg.Notify.Slack.BotToken != "" {
		n, err := slack.New(slack.Opts{
			BotToken:  cfg.Notify.Slack.BotToken,
			ChannelID: cfg.Notify.Slack.ChannelID,
		})
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, n)
		fmt.Fprintf(out, "Staff alerts: Slack channel %s\n", cfg.Notify.Slack.ChannelID)
	}

	if cfg.Notify.Discord.BotToken != "" {
		n, err := discord.New(discord.Opts{
			BotToken:  cfg.Notify.Discord.BotToken,
			ChannelID: cfg.Notify.Discord.ChannelID,
		})
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, n)
		fmt.Fprintf(out, "Staff alerts: Discord channel %s\n", cfg.Notify.Discord.ChannelID)
	}

	if len(notifiers) == 0 {
		return nil, nil
	}
	return &notify.Multi{Notifiers: notifiers}, nil
}

// crmAdapter bridges the bitrix client to the webhook CRM interface.
type crmAdapter struct {
	client *bitrix.Client
}

func (a *crmAdapter) GetContact(ctx context.Context, contactID string) (webhook.Contact, error) {
	contact, err := a.client.GetContact(ctx, contactID)
	if err != nil {
		return webhook.Contact{}, err
	}
	return webhook.Contact{
		LeadID: contact.LeadID,
		Name:   contact.Name,
		Phone:  contact.Phone,
		Email:  contact.Email,
	}, nil
}

func (a *crmAdapter) SetLeadField(ctx context.Context, leadID, field string, value any) error {
	return a.client.SetLeadField(ctx, leadID, field, value)
}
