package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"

	"licensepanel/internal/license"
	"licensepanel/internal/marketplace"
	"licensepanel/internal/store"
	"licensepanel/internal/voucher"
	"licensepanel/pkg/contracts/domain"
)

// Command names.
const (
	CmdCreateLicense  = "create-license"
	CmdDeactivate     = "deactivate"
	CmdRenewLicense   = "renew-license"
	CmdCheckLicenses  = "check-licenses"
	CmdSearchLicense  = "search-license"
	CmdProfile        = "profile"
	CmdUserLicenses   = "user-licenses"
	CmdManageLicense  = "manage-license"
	CmdRedeem         = "redeem"
	CmdLinkBuiltByBit = "link-builtbybit"
)

// manage-license actions.
const (
	ActionAddSubUser    = "add-sub-user"
	ActionRemoveSubUser = "remove-sub-user"
	ActionResetIPs      = "reset-ip"
	ActionResetHWIDs    = "reset-hwid"
	ActionAddIP         = "add-ip"
	ActionAddHWID       = "add-hwid"
)

const maxSearchResults = 10

var (
	errBadOption = errors.New("invalid option")
	errNotOwner  = errors.New("only the license owner can manage this license")
)

// Invocation is one slash command call.
type Invocation struct {
	Command string
	UserID  string
	IsAdmin bool
	Options map[string]string
}

// Option returns the trimmed value of option name.
func (inv Invocation) Option(name string) string {
	return strings.TrimSpace(inv.Options[name])
}

// Reply is what the bot answers.
type Reply struct {
	Content   string
	Embeds    []*discordgo.MessageEmbed
	Ephemeral bool
}

// Handler executes a command.
type Handler func(ctx context.Context, inv Invocation) (Reply, error)

type command struct {
	admin  bool
	handle Handler
}

// CommandDeps wires Commands.
type CommandDeps struct {
	Licenses    *license.Service
	Products    store.ProductRepository
	Vouchers    *voucher.Service
	Marketplace *marketplace.Service
	Profiles    *ProfileCache
	BotLogs     store.BotLogRepository
	Logger      *slog.Logger
}

// Commands holds the slash command handlers. It knows nothing about the
// Discord session so it can be driven directly in tests.
type Commands struct {
	deps     CommandDeps
	logger   *slog.Logger
	handlers map[string]command
}

// NewCommands returns the command set.
func NewCommands(deps CommandDeps) *Commands {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	c := &Commands{deps: deps, logger: deps.Logger.With(slog.String("component", "discord_commands"))}
	c.handlers = map[string]command{
		CmdCreateLicense:  {admin: true, handle: c.createLicense},
		CmdDeactivate:     {admin: true, handle: c.deactivate},
		CmdRenewLicense:   {admin: true, handle: c.renewLicense},
		CmdCheckLicenses:  {handle: c.checkLicenses},
		CmdSearchLicense:  {admin: true, handle: c.searchLicense},
		CmdProfile:        {handle: c.profile},
		CmdUserLicenses:   {admin: true, handle: c.userLicenses},
		CmdManageLicense:  {handle: c.manageLicense},
		CmdRedeem:         {handle: c.redeem},
		CmdLinkBuiltByBit: {handle: c.linkBuiltByBit},
	}
	return c
}

// Run executes inv, enforcing the admin gate and recording the call in the
// bot log. It always produces a reply.
func (c *Commands) Run(ctx context.Context, inv Invocation) Reply {
	cmd, ok := c.handlers[inv.Command]
	if !ok {
		return Reply{Content: "Unknown command.", Ephemeral: true}
	}

	var (
		reply Reply
		err   error
	)
	if cmd.admin && !inv.IsAdmin {
		reply = Reply{Content: "You do not have permission to use this command.", Ephemeral: true}
		err = errors.New("permission denied")
	} else {
		reply, err = cmd.handle(ctx, inv)
		if err != nil {
			reply = Reply{Content: c.describe(ctx, inv, err), Ephemeral: true}
		}
	}

	c.record(ctx, inv, err)
	return reply
}

func (c *Commands) record(ctx context.Context, inv Invocation, err error) {
	if c.deps.BotLogs == nil {
		return
	}
	details := describeOptions(inv.Options)
	if err != nil {
		details = strings.TrimSpace(details + " error=" + err.Error())
	}
	entry := domain.BotLog{
		ID:        uuid.NewString(),
		Timestamp: c.deps.Licenses.Now().UTC(),
		Command:   inv.Command,
		DiscordID: inv.UserID,
		Details:   details,
		Success:   err == nil,
	}
	if lerr := c.deps.BotLogs.Append(ctx, entry); lerr != nil {
		c.logger.ErrorContext(ctx, "failed to append bot log",
			slog.String("command", inv.Command),
			slog.String("error", lerr.Error()),
		)
	}
}

func describeOptions(opts map[string]string) string {
	names := make([]string, 0, len(opts))
	for name := range opts {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+opts[name])
	}
	return strings.Join(parts, " ")
}

var userMessages = []struct {
	err error
	msg string
}{
	{license.ErrLicenseNotFound, "License not found."},
	{license.ErrProductNotFound, "Product not found."},
	{license.ErrSubUserIsOwner, "The owner cannot be added as a sub-user."},
	{license.ErrSubUserExists, "That user is already a sub-user."},
	{license.ErrSubUserMissing, "That user is not a sub-user."},
	{license.ErrHWIDLimitDisabled, "HWID tracking cannot be disabled."},
	{license.ErrTrackingDisabled, "IP tracking is disabled for this license."},
	{license.ErrSlotLimit, "No free slot left on this license. Reset its bindings first."},
	{license.ErrIdentityExists, "That value is already bound to this license."},
	{license.ErrEmptyIdentity, "Give the IP or HWID in the value option."},
	{voucher.ErrNotFound, "Voucher not found."},
	{voucher.ErrAlreadyRedeemed, "This voucher has already been redeemed."},
	{marketplace.ErrNoPendingLink, "Start linking first with action start."},
	{marketplace.ErrLinkExpired, "Your link code expired. Start again."},
	{marketplace.ErrTokenNotFound, "The link code was not found on your BuiltByBit profile."},
	{marketplace.ErrLinkNotEnabled, "Account linking is not available."},
	{errNotOwner, "Only the license owner can manage this license."},
}

func (c *Commands) describe(ctx context.Context, inv Invocation, err error) string {
	for _, m := range userMessages {
		if errors.Is(err, m.err) {
			return m.msg
		}
	}
	if errors.Is(err, errBadOption) || errors.Is(err, marketplace.ErrInvalidPurchase) {
		return "Invalid input: " + err.Error()
	}
	c.logger.ErrorContext(ctx, "discord command failed",
		slog.String("command", inv.Command),
		slog.String("user_id", inv.UserID),
		slog.String("error", err.Error()),
	)
	return "Something went wrong. Please try again later."
}

func required(inv Invocation, name string) (string, error) {
	v := inv.Option(name)
	if v == "" {
		return "", fmt.Errorf("%w: %s is required", errBadOption, name)
	}
	return v, nil
}

func intOption(inv Invocation, name string, def int) (int, error) {
	v := inv.Option(name)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a number", errBadOption, name)
	}
	return int(f), nil
}

func limitOption(inv Invocation, name string, def domain.Limit) (domain.Limit, error) {
	n, err := intOption(inv, name, def.Int())
	if err != nil {
		return domain.Limit{}, err
	}
	l, err := domain.ParseLimit(n)
	if err != nil {
		return domain.Limit{}, fmt.Errorf("%w: %s must be -2, -1 or a positive number", errBadOption, name)
	}
	return l, nil
}

// expiryAfter converts a day count into an expiry. Zero or less is lifetime.
func (c *Commands) expiryAfter(days int) *time.Time {
	if days <= 0 {
		return nil
	}
	t := c.deps.Licenses.Now().Add(time.Duration(days) * 24 * time.Hour).UTC()
	return &t
}

func (c *Commands) resolveProduct(ctx context.Context, ref string) (domain.Product, error) {
	if p, err := c.deps.Products.Get(ctx, ref); err == nil {
		return p, nil
	}
	all, err := c.deps.Products.List(ctx)
	if err != nil {
		return domain.Product{}, err
	}
	for _, p := range all {
		if strings.EqualFold(p.Name, ref) {
			return p, nil
		}
	}
	return domain.Product{}, fmt.Errorf("%w: %s", license.ErrProductNotFound, ref)
}

func (c *Commands) createLicense(ctx context.Context, inv Invocation) (Reply, error) {
	ref, err := required(inv, "product")
	if err != nil {
		return Reply{}, err
	}
	user, err := required(inv, "user")
	if err != nil {
		return Reply{}, err
	}
	days, err := intOption(inv, "days", 0)
	if err != nil {
		return Reply{}, err
	}
	maxIPs, err := limitOption(inv, "max_ips", domain.Capped(1))
	if err != nil {
		return Reply{}, err
	}
	maxHWIDs, err := limitOption(inv, "max_hwids", domain.Unlimited())
	if err != nil {
		return Reply{}, err
	}
	product, err := c.resolveProduct(ctx, ref)
	if err != nil {
		return Reply{}, err
	}

	lic, err := c.deps.Licenses.Create(ctx, license.CreateParams{
		ProductID: product.ID,
		DiscordID: user,
		ExpiresAt: c.expiryAfter(days),
		MaxIPs:    maxIPs,
		MaxHWIDs:  maxHWIDs,
		Source:    domain.SourceManual,
	})
	if err != nil {
		return Reply{}, err
	}
	return Reply{
		Content:   fmt.Sprintf("Created license for <@%s>.", user),
		Embeds:    []*discordgo.MessageEmbed{c.licenseEmbed(lic, product.Name)},
		Ephemeral: true,
	}, nil
}

func (c *Commands) deactivate(ctx context.Context, inv Invocation) (Reply, error) {
	key, err := required(inv, "key")
	if err != nil {
		return Reply{}, err
	}
	if _, err := c.deps.Licenses.Deactivate(ctx, key); err != nil {
		return Reply{}, err
	}
	return Reply{Content: fmt.Sprintf("License `%s` deactivated.", key), Ephemeral: true}, nil
}

func (c *Commands) renewLicense(ctx context.Context, inv Invocation) (Reply, error) {
	key, err := required(inv, "key")
	if err != nil {
		return Reply{}, err
	}
	days, err := intOption(inv, "days", 0)
	if err != nil {
		return Reply{}, err
	}
	lic, err := c.deps.Licenses.Renew(ctx, key, c.expiryAfter(days))
	if err != nil {
		return Reply{}, err
	}
	return Reply{
		Content:   fmt.Sprintf("License `%s` renewed until %s.", key, formatExpiry(lic.ExpiresAt)),
		Ephemeral: true,
	}, nil
}

func (c *Commands) checkLicenses(ctx context.Context, inv Invocation) (Reply, error) {
	target := inv.UserID
	if u := inv.Option("user"); u != "" && inv.IsAdmin {
		target = u
	}
	return c.listFor(ctx, target)
}

func (c *Commands) userLicenses(ctx context.Context, inv Invocation) (Reply, error) {
	user, err := required(inv, "user")
	if err != nil {
		return Reply{}, err
	}
	return c.listFor(ctx, user)
}

func (c *Commands) listFor(ctx context.Context, discordID string) (Reply, error) {
	owned, shared, err := c.deps.Licenses.ForUser(ctx, discordID)
	if err != nil {
		return Reply{}, err
	}
	if len(owned) == 0 && len(shared) == 0 {
		return Reply{Content: fmt.Sprintf("<@%s> has no licenses.", discordID), Ephemeral: true}, nil
	}
	names := c.productNames(ctx)
	embed := &discordgo.MessageEmbed{
		Title: "Licenses of " + c.displayName(ctx, discordID),
		Color: 0x3498db,
	}
	for _, l := range owned {
		embed.Fields = append(embed.Fields, c.licenseField(l, names[l.ProductID], "Owner"))
	}
	for _, l := range shared {
		embed.Fields = append(embed.Fields, c.licenseField(l, names[l.ProductID], "Sub-user"))
	}
	return Reply{Embeds: []*discordgo.MessageEmbed{embed}, Ephemeral: true}, nil
}

func (c *Commands) searchLicense(ctx context.Context, inv Invocation) (Reply, error) {
	query, err := required(inv, "query")
	if err != nil {
		return Reply{}, err
	}
	found, err := c.deps.Licenses.Search(ctx, query)
	if err != nil {
		return Reply{}, err
	}
	if len(found) == 0 {
		return Reply{Content: "No licenses match `" + query + "`.", Ephemeral: true}, nil
	}
	names := c.productNames(ctx)
	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("%d result(s) for %s", len(found), query),
		Color: 0x3498db,
	}
	for i, l := range found {
		if i == maxSearchResults {
			embed.Footer = &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Showing first %d results", maxSearchResults)}
			break
		}
		embed.Fields = append(embed.Fields, c.licenseField(l, names[l.ProductID], "<@"+l.DiscordID+">"))
	}
	return Reply{Embeds: []*discordgo.MessageEmbed{embed}, Ephemeral: true}, nil
}

func (c *Commands) profile(ctx context.Context, inv Invocation) (Reply, error) {
	target := inv.Option("user")
	if target == "" {
		target = inv.UserID
	}
	owned, shared, err := c.deps.Licenses.ForUser(ctx, target)
	if err != nil {
		return Reply{}, err
	}
	now := c.deps.Licenses.Now()
	active := 0
	for _, l := range owned {
		if l.IsUsable(now) {
			active++
		}
	}

	p := Profile{ID: target}
	if c.deps.Profiles != nil {
		if inv.Option("refresh") == "true" {
			c.deps.Profiles.Invalidate(target)
		}
		p = c.deps.Profiles.Get(ctx, target)
	}
	embed := &discordgo.MessageEmbed{
		Title: p.DisplayName(),
		Color: 0x9b59b6,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Discord ID", Value: target, Inline: true},
			{Name: "Owned", Value: strconv.Itoa(len(owned)), Inline: true},
			{Name: "Active", Value: strconv.Itoa(active), Inline: true},
			{Name: "Shared with", Value: strconv.Itoa(len(shared)), Inline: true},
		},
	}
	if p.AvatarURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: p.AvatarURL}
	}
	return Reply{Embeds: []*discordgo.MessageEmbed{embed}, Ephemeral: true}, nil
}

func (c *Commands) manageLicense(ctx context.Context, inv Invocation) (Reply, error) {
	key, err := required(inv, "key")
	if err != nil {
		return Reply{}, err
	}
	action, err := required(inv, "action")
	if err != nil {
		return Reply{}, err
	}
	lic, err := c.deps.Licenses.Get(ctx, key)
	if err != nil {
		return Reply{}, err
	}
	if !inv.IsAdmin && lic.DiscordID != inv.UserID {
		return Reply{}, errNotOwner
	}

	var msg string
	switch action {
	case ActionAddSubUser, ActionRemoveSubUser:
		user, err := required(inv, "user")
		if err != nil {
			return Reply{}, err
		}
		if action == ActionAddSubUser {
			_, err = c.deps.Licenses.AddSubUser(ctx, key, user)
			msg = fmt.Sprintf("<@%s> can now use `%s`.", user, key)
		} else {
			_, err = c.deps.Licenses.RemoveSubUser(ctx, key, user)
			msg = fmt.Sprintf("<@%s> was removed from `%s`.", user, key)
		}
		if err != nil {
			return Reply{}, err
		}
	case ActionResetIPs:
		if _, err := c.deps.Licenses.ResetIdentities(ctx, key, domain.IdentityIP); err != nil {
			return Reply{}, err
		}
		msg = fmt.Sprintf("IP bindings of `%s` were reset.", key)
	case ActionResetHWIDs:
		if _, err := c.deps.Licenses.ResetIdentities(ctx, key, domain.IdentityHWID); err != nil {
			return Reply{}, err
		}
		msg = fmt.Sprintf("HWID bindings of `%s` were reset.", key)
	case ActionAddIP, ActionAddHWID:
		kind, label := domain.IdentityIP, "IP"
		if action == ActionAddHWID {
			kind, label = domain.IdentityHWID, "HWID"
		}
		if _, err := c.deps.Licenses.AddIdentity(ctx, key, kind, inv.Option("value")); err != nil {
			return Reply{}, err
		}
		msg = fmt.Sprintf("%s `%s` is now bound to `%s`.", label, inv.Option("value"), key)
	default:
		return Reply{}, fmt.Errorf("%w: unknown action %q", errBadOption, action)
	}
	return Reply{Content: msg, Ephemeral: true}, nil
}

func (c *Commands) redeem(ctx context.Context, inv Invocation) (Reply, error) {
	code, err := required(inv, "code")
	if err != nil {
		return Reply{}, err
	}
	r, err := c.deps.Vouchers.Redeem(ctx, code, inv.UserID)
	if err != nil {
		return Reply{}, err
	}
	verb := "Your new license"
	if r.Renewed {
		verb = "Your license was extended"
	}
	names := c.productNames(ctx)
	return Reply{
		Content:   verb + ".",
		Embeds:    []*discordgo.MessageEmbed{c.licenseEmbed(r.License, names[r.License.ProductID])},
		Ephemeral: true,
	}, nil
}

func (c *Commands) linkBuiltByBit(ctx context.Context, inv Invocation) (Reply, error) {
	if c.deps.Marketplace == nil {
		return Reply{}, marketplace.ErrLinkNotEnabled
	}
	switch action := inv.Option("action"); action {
	case "", "start":
		platformID, err := required(inv, "builtbybit_id")
		if err != nil {
			return Reply{}, err
		}
		ch, err := c.deps.Marketplace.StartLink(ctx, inv.UserID, platformID)
		if err != nil {
			return Reply{}, err
		}
		return Reply{
			Content: fmt.Sprintf(
				"Add `%s` to the About section of your BuiltByBit profile, then run `/%s action:verify` within %s.",
				ch.Token, CmdLinkBuiltByBit, ch.ExpiresAt.Sub(c.deps.Licenses.Now()).Round(time.Minute)),
			Ephemeral: true,
		}, nil
	case "verify":
		keys, err := c.deps.Marketplace.CompleteLink(ctx, inv.UserID)
		if err != nil {
			return Reply{}, err
		}
		return Reply{
			Content:   fmt.Sprintf("Account linked. %d license(s) were assigned to you.", len(keys)),
			Ephemeral: true,
		}, nil
	default:
		return Reply{}, fmt.Errorf("%w: unknown action %q", errBadOption, action)
	}
}

func (c *Commands) productNames(ctx context.Context) map[string]string {
	names := make(map[string]string)
	all, err := c.deps.Products.List(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "failed to list products", slog.String("error", err.Error()))
		return names
	}
	for _, p := range all {
		names[p.ID] = p.Name
	}
	return names
}

func (c *Commands) displayName(ctx context.Context, id string) string {
	if c.deps.Profiles == nil {
		return id
	}
	return c.deps.Profiles.Get(ctx, id).DisplayName()
}

func (c *Commands) licenseField(l domain.License, product, role string) *discordgo.MessageEmbedField {
	if product == "" {
		product = l.ProductID
	}
	return &discordgo.MessageEmbedField{
		Name: l.Key,
		Value: fmt.Sprintf("%s | %s | %s | expires %s",
			product, role, l.EffectiveStatus(c.deps.Licenses.Now()), formatExpiry(l.ExpiresAt)),
	}
}

func (c *Commands) licenseEmbed(l domain.License, product string) *discordgo.MessageEmbed {
	if product == "" {
		product = l.ProductID
	}
	return &discordgo.MessageEmbed{
		Title: "License",
		Color: 0x2ecc71,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Key", Value: "`" + l.Key + "`"},
			{Name: "Product", Value: product, Inline: true},
			{Name: "Status", Value: string(l.EffectiveStatus(c.deps.Licenses.Now())), Inline: true},
			{Name: "Expires", Value: formatExpiry(l.ExpiresAt), Inline: true},
			{Name: "Max IPs", Value: l.MaxIPs.String(), Inline: true},
			{Name: "Max HWIDs", Value: l.MaxHWIDs.String(), Inline: true},
		},
	}
}

func formatExpiry(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.UTC().Format("2006-01-02")
}
