// Package discord runs the license panel's Discord bot.
//
// Commands holds the slash command logic and is independent of the gateway.
// Bot owns the discordgo session, registers the application commands and
// turns interactions into Invocations.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/bwmarrin/discordgo"
)

// BotConfig holds the bot settings.
type BotConfig struct {
	Token       string
	GuildID     string
	AdminRoleID string
	Timeout     time.Duration
}

// Bot connects Commands to Discord.
type Bot struct {
	cfg      BotConfig
	session  *discordgo.Session
	commands *Commands
	logger   *slog.Logger
	removers []func()
}

// NewBot creates a bot session. It does not connect until Start.
func NewBot(cfg BotConfig, commands *Commands, logger *slog.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Bot{
		cfg:      cfg,
		session:  session,
		commands: commands,
		logger:   logger.With(slog.String("component", "discord_bot")),
	}, nil
}

// Session exposes the underlying session for profile lookups.
func (b *Bot) Session() *discordgo.Session { return b.session }

// Start opens the gateway and registers the slash commands.
func (b *Bot) Start(ctx context.Context) error {
	b.removers = append(b.removers, b.session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		b.logger.InfoContext(ctx, "discord bot ready",
			slog.String("user", r.User.Username),
			slog.Int("guilds", len(r.Guilds)),
		)
	}))
	b.removers = append(b.removers, b.session.AddHandler(b.onInteraction))

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	appID := b.session.State.User.ID
	if _, err := b.session.ApplicationCommandBulkOverwrite(appID, b.cfg.GuildID, Definitions(), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("register slash commands: %w", err)
	}
	b.logger.InfoContext(ctx, "slash commands registered",
		slog.Int("count", len(Definitions())),
		slog.String("guild_id", b.cfg.GuildID),
	)
	return nil
}

// Close disconnects from Discord.
func (b *Bot) Close() error {
	for _, remove := range b.removers {
		remove()
	}
	b.removers = nil
	return b.session.Close()
}

func (b *Bot) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), b.cfg.Timeout)
	defer cancel()

	inv := b.invocation(i)
	reply := b.commands.Run(ctx, inv)

	data := &discordgo.InteractionResponseData{Content: reply.Content, Embeds: reply.Embeds}
	if reply.Ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	}, discordgo.WithContext(ctx))
	if err != nil {
		b.logger.ErrorContext(ctx, "failed to answer interaction",
			slog.String("command", inv.Command),
			slog.String("user_id", inv.UserID),
			slog.String("error", err.Error()),
		)
	}
}

func (b *Bot) invocation(i *discordgo.InteractionCreate) Invocation {
	data := i.ApplicationCommandData()
	inv := Invocation{Command: data.Name, Options: make(map[string]string, len(data.Options))}
	for _, opt := range data.Options {
		inv.Options[opt.Name] = fmt.Sprint(opt.Value)
	}
	switch {
	case i.Member != nil:
		if i.Member.User != nil {
			inv.UserID = i.Member.User.ID
		}
		inv.IsAdmin = isAdmin(i.Member, b.cfg.AdminRoleID)
	case i.User != nil:
		inv.UserID = i.User.ID
	}
	return inv
}

// isAdmin reports whether member holds the admin role, or the Administrator
// permission when no role is configured.
func isAdmin(member *discordgo.Member, adminRoleID string) bool {
	if member == nil {
		return false
	}
	if adminRoleID != "" {
		return slices.Contains(member.Roles, adminRoleID)
	}
	return member.Permissions&discordgo.PermissionAdministrator != 0
}

// SessionLookup resolves profiles through the bot session.
type SessionLookup struct {
	Session *discordgo.Session
}

// User fetches id from the Discord API.
func (l SessionLookup) User(ctx context.Context, id string) (Profile, error) {
	u, err := l.Session.User(id, discordgo.WithContext(ctx))
	if err != nil {
		return Profile{}, err
	}
	return Profile{
		ID:         u.ID,
		Username:   u.Username,
		GlobalName: u.GlobalName,
		AvatarURL:  u.AvatarURL("128"),
	}, nil
}

func stringOpt(name, description string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        name,
		Description: description,
		Required:    required,
	}
}

func userOpt(name, description string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionUser,
		Name:        name,
		Description: description,
		Required:    required,
	}
}

func intOpt(name, description string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionInteger,
		Name:        name,
		Description: description,
	}
}

func boolOpt(name, description string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionBoolean,
		Name:        name,
		Description: description,
	}
}

func choices(names ...string) []*discordgo.ApplicationCommandOptionChoice {
	out := make([]*discordgo.ApplicationCommandOptionChoice, len(names))
	for i, n := range names {
		out[i] = &discordgo.ApplicationCommandOptionChoice{Name: n, Value: n}
	}
	return out
}

// Definitions returns the slash commands the bot registers.
func Definitions() []*discordgo.ApplicationCommand {
	manageAction := stringOpt("action", "What to change", true)
	manageAction.Choices = choices(ActionAddSubUser, ActionRemoveSubUser, ActionResetIPs, ActionResetHWIDs, ActionAddIP, ActionAddHWID)
	linkAction := stringOpt("action", "start or verify", false)
	linkAction.Choices = choices("start", "verify")

	return []*discordgo.ApplicationCommand{
		{
			Name:        CmdCreateLicense,
			Description: "Create a license for a user",
			Options: []*discordgo.ApplicationCommandOption{
				stringOpt("product", "Product id or name", true),
				userOpt("user", "License owner", true),
				intOpt("days", "Days until expiry, 0 for lifetime"),
				intOpt("max_ips", "IP limit: -2 disabled, -1 unlimited"),
				intOpt("max_hwids", "HWID limit: -1 unlimited"),
			},
		},
		{
			Name:        CmdDeactivate,
			Description: "Deactivate a license",
			Options:     []*discordgo.ApplicationCommandOption{stringOpt("key", "License key", true)},
		},
		{
			Name:        CmdRenewLicense,
			Description: "Renew a license",
			Options: []*discordgo.ApplicationCommandOption{
				stringOpt("key", "License key", true),
				intOpt("days", "Days from now, 0 for lifetime"),
			},
		},
		{
			Name:        CmdCheckLicenses,
			Description: "Show your licenses",
			Options:     []*discordgo.ApplicationCommandOption{userOpt("user", "Another user (admins only)", false)},
		},
		{
			Name:        CmdSearchLicense,
			Description: "Search licenses by key, user, IP or HWID",
			Options:     []*discordgo.ApplicationCommandOption{stringOpt("query", "Search text", true)},
		},
		{
			Name:        CmdProfile,
			Description: "Show a license profile",
			Options: []*discordgo.ApplicationCommandOption{
				userOpt("user", "User to show", false),
				boolOpt("refresh", "Fetch the Discord profile again"),
			},
		},
		{
			Name:        CmdUserLicenses,
			Description: "List the licenses of a user",
			Options:     []*discordgo.ApplicationCommandOption{userOpt("user", "User", true)},
		},
		{
			Name:        CmdManageLicense,
			Description: "Manage sub-users and bindings of your license",
			Options: []*discordgo.ApplicationCommandOption{
				stringOpt("key", "License key", true),
				manageAction,
				userOpt("user", "Sub-user to add or remove", false),
				stringOpt("value", "IP or HWID to bind", false),
			},
		},
		{
			Name:        CmdRedeem,
			Description: "Redeem a voucher code",
			Options:     []*discordgo.ApplicationCommandOption{stringOpt("code", "Voucher code", true)},
		},
		{
			Name:        CmdLinkBuiltByBit,
			Description: "Link your BuiltByBit account",
			Options: []*discordgo.ApplicationCommandOption{
				linkAction,
				stringOpt("builtbybit_id", "Your BuiltByBit member id", false),
			},
		},
	}
}
