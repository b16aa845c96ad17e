package cmd

import (
	"log/slog"
	"net/http"

	"github.com/quantnest/executor/pkg/actions/discord"
	"github.com/quantnest/executor/pkg/actions/gmail"
	"github.com/quantnest/executor/pkg/actions/groww"
	"github.com/quantnest/executor/pkg/actions/lighter"
	"github.com/quantnest/executor/pkg/actions/notion"
	"github.com/quantnest/executor/pkg/actions/zerodha"
	"github.com/quantnest/executor/pkg/registry"
)

// ActionDependencies are the external services the native action handlers talk to.
// An SMTP config without a host leaves Gmail nodes failing with "no email sender configured".
type ActionDependencies struct {
	HTTPClient *http.Client
	Tokens     zerodha.TokenSource
	Executions notion.ExecutionLister
	SMTP       gmail.SMTPConfig
}

func registerNativeActions(reg *registry.Registry, logger *slog.Logger, deps ActionDependencies) {
	var sender gmail.Sender
	if deps.SMTP.Host != "" {
		sender = gmail.NewSMTPSender(deps.SMTP)
	}

	reg.RegisterAction(zerodha.NewAction(logger, zerodha.NewKiteClient("", deps.HTTPClient), deps.Tokens))
	reg.RegisterAction(groww.NewAction(logger, groww.NewClient("", deps.HTTPClient)))
	reg.RegisterAction(lighter.NewAction(logger, nil))
	reg.RegisterAction(gmail.NewAction(logger, sender))
	reg.RegisterAction(discord.NewAction(logger, deps.HTTPClient))
	reg.RegisterAction(notion.NewAction(logger, deps.Executions, notion.NewClient("", deps.HTTPClient)))
}

func NewRegistry(logger *slog.Logger, deps ActionDependencies) *registry.Registry {
	reg := registry.NewRegistry(logger)

	registerNativeActions(reg, logger, deps)

	return reg
}
