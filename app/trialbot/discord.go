package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/samber/lo"

	"github.com/tez-capital/trialbot/bot"
	"github.com/tez-capital/trialbot/config"
)

// Discord caps a message at 10 embeds.
const maxEmbedsPerMessage = 10

// Largest key file we download.
const maxUploadBytes = 1 << 20

type discordBot struct {
	session *discordgo.Session
	handler *bot.Handler
	cfg     config.Config
	uploads *uploadWaiter
	log     *slog.Logger

	mu                  sync.Mutex
	trialMessageID      string
	managementMessageID string
}

func newDiscordBot(cfg config.Config, handler *bot.Handler, l *slog.Logger) (*discordBot, error) {
	s, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentGuilds | discordgo.IntentGuildMessages | discordgo.IntentMessageContent

	b := &discordBot{
		session:             s,
		handler:             handler,
		cfg:                 cfg,
		uploads:             newUploadWaiter(),
		log:                 l.With("component", "discord"),
		trialMessageID:      cfg.TrialMessageID,
		managementMessageID: cfg.ManagementMessageID,
	}
	s.AddHandler(b.onReady)
	s.AddHandler(b.onInteraction)
	s.AddHandler(b.onMessage)
	return b, nil
}

// run keeps the gateway connection open until ctx is cancelled.
func (b *discordBot) run(ctx context.Context) error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	<-ctx.Done()
	b.log.Info("closing discord session")
	return b.session.Close()
}

func (b *discordBot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.log.Info("logged in", "user", r.User.Username)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.trialMessageID = b.ensurePanel(b.cfg.TrialChannelID, b.trialMessageID, "TRIAL_MESSAGE_ID", bot.TrialPanel())
	b.managementMessageID = b.ensurePanel(b.cfg.ManagementChannelID, b.managementMessageID, "MANAGEMENT_MESSAGE_ID", b.handler.ManagementPanel())
}

// ensurePanel edits the existing panel message or posts a new one and records
// its id in the env file. It returns the id in use.
func (b *discordBot) ensurePanel(channelID, messageID, envKey string, p bot.Panel) string {
	if channelID == "" {
		return messageID
	}
	embed, components := renderPanel(p, time.Now())

	if messageID != "" {
		_, err := b.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
			ID:         messageID,
			Channel:    channelID,
			Embeds:     &[]*discordgo.MessageEmbed{embed},
			Components: &components,
		})
		if err == nil {
			b.log.Info("panel updated", "channel", channelID, "message", messageID)
			return messageID
		}
		b.log.Warn("panel message unavailable, posting a new one", "channel", channelID, "message", messageID, "err", err)
	}

	msg, err := b.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{embed},
		Components: components,
	})
	if err != nil {
		b.log.Error("post panel", "channel", channelID, "err", err)
		return messageID
	}
	b.log.Info("panel posted", "channel", channelID, "message", msg.ID)
	if err := config.UpdateEnvFile(b.cfg.EnvFile, map[string]string{envKey: msg.ID}); err != nil {
		b.log.Error("record panel message id", "key", envKey, "err", err)
	}
	return msg.ID
}

func (b *discordBot) refreshManagementPanel() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cfg.ManagementChannelID == "" || b.managementMessageID == "" {
		return
	}
	embed, components := renderPanel(b.handler.ManagementPanel(), time.Now())
	_, err := b.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
		ID:         b.managementMessageID,
		Channel:    b.cfg.ManagementChannelID,
		Embeds:     &[]*discordgo.MessageEmbed{embed},
		Components: &components,
	})
	if err != nil {
		b.log.Error("failed to update management panel", "err", err)
	}
}

func (b *discordBot) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ev, ok := toEvent(i)
	if !ok {
		return
	}

	acked := false
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("interaction handler panicked", "id", ev.ID, "panic", r)
			b.replyError(i, acked)
		}
	}()

	// Trial requests touch disk and the rate limiter; acknowledge first.
	deferred := ev.Kind == bot.ButtonPress && ev.ID == bot.ActionRequestTrial
	if deferred {
		err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
		})
		if err != nil {
			b.log.Error("defer reply", "user", ev.UserID, "err", err)
			return
		}
		acked = true
	}

	res := b.handler.Handle(ev)
	if err := b.respond(i, res, deferred); err != nil {
		b.log.Error("reply to interaction", "id", ev.ID, "user", ev.UserID, "err", err)
		b.replyError(i, acked)
		return
	}

	if res.AwaitUpload {
		go b.collectUpload(i.Interaction, ev)
	}
	if res.RefreshPanel {
		b.refreshManagementPanel()
	}
}

func (b *discordBot) respond(i *discordgo.InteractionCreate, res bot.Response, deferred bool) error {
	s := b.session
	if res.Form != nil {
		return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseModal,
			Data: renderForm(res.Form),
		})
	}
	if res.Text == "" && len(res.Pages) == 0 {
		return nil
	}

	batches := lo.Chunk(renderPages(res.Pages), maxEmbedsPerMessage)
	var first []*discordgo.MessageEmbed
	if len(batches) > 0 {
		first = batches[0]
	}

	if deferred {
		content := res.Text
		edit := &discordgo.WebhookEdit{Content: &content}
		if len(first) > 0 {
			edit.Embeds = &first
		}
		if _, err := s.InteractionResponseEdit(i.Interaction, edit); err != nil {
			return err
		}
	} else {
		err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content: res.Text,
				Embeds:  first,
				Flags:   discordgo.MessageFlagsEphemeral,
			},
		})
		if err != nil {
			return err
		}
	}

	for _, batch := range lo.Drop(batches, 1) {
		if _, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
			Embeds: batch,
			Flags:  discordgo.MessageFlagsEphemeral,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (b *discordBot) replyError(i *discordgo.InteractionCreate, acked bool) {
	var err error
	if acked {
		msg := bot.MsgGenericError
		_, err = b.session.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &msg})
	} else {
		err = b.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{Content: bot.MsgGenericError, Flags: discordgo.MessageFlagsEphemeral},
		})
	}
	if err != nil {
		b.log.Debug("error reply failed", "err", err)
	}
}

func (b *discordBot) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	b.uploads.deliver(m.Message)
}

// collectUpload waits for the admin's next message in the channel and imports
// the keys from its text attachment.
func (b *discordBot) collectUpload(i *discordgo.Interaction, ev bot.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), b.handler.UploadTimeout())
	defer cancel()

	msg, ok := b.uploads.wait(ctx, ev.ChannelID, ev.UserID)
	if !ok {
		b.followup(i, bot.MsgNoFileReceived)
		return
	}

	att, ok := textAttachment(msg.Attachments)
	if !ok {
		b.followup(i, bot.MsgNoFileReceived)
		return
	}

	body, err := b.download(ctx, att.URL)
	if err != nil {
		b.log.Error("download key file", "file", att.Filename, "err", err)
		b.followup(i, bot.MsgGenericError)
		return
	}

	// The file holds live codes; keep it out of the channel history.
	if err := b.session.ChannelMessageDelete(msg.ChannelID, msg.ID); err != nil {
		b.log.Warn("delete upload message", "message", msg.ID, "err", err)
	}

	res := b.handler.ImportKeys(ev.UserID, body)
	b.followup(i, res.Text)
	if res.RefreshPanel {
		b.refreshManagementPanel()
	}
}

func (b *discordBot) download(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := b.session.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxUploadBytes))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (b *discordBot) followup(i *discordgo.Interaction, content string) {
	if _, err := b.session.FollowupMessageCreate(i, true, &discordgo.WebhookParams{
		Content: content,
		Flags:   discordgo.MessageFlagsEphemeral,
	}); err != nil {
		b.log.Error("send followup", "err", err)
	}
}

func textAttachment(atts []*discordgo.MessageAttachment) (*discordgo.MessageAttachment, bool) {
	return lo.Find(atts, func(a *discordgo.MessageAttachment) bool {
		return strings.EqualFold(path.Ext(a.Filename), ".txt") || strings.HasPrefix(a.ContentType, "text/plain")
	})
}

// toEvent converts the interactions the bot understands.
func toEvent(i *discordgo.InteractionCreate) (bot.Event, bool) {
	ev := bot.Event{ChannelID: i.ChannelID}
	switch {
	case i.Member != nil && i.Member.User != nil:
		ev.UserID = i.Member.User.ID
	case i.User != nil:
		ev.UserID = i.User.ID
	}

	switch i.Type {
	case discordgo.InteractionMessageComponent:
		ev.Kind = bot.ButtonPress
		ev.ID = i.MessageComponentData().CustomID
	case discordgo.InteractionModalSubmit:
		data := i.ModalSubmitData()
		ev.Kind = bot.FormSubmit
		ev.ID = data.CustomID
		ev.Fields = modalFields(data.Components)
	default:
		return bot.Event{}, false
	}
	return ev, ev.UserID != ""
}

func modalFields(components []discordgo.MessageComponent) map[string]string {
	fields := make(map[string]string)
	for _, c := range components {
		row, ok := c.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, rc := range row.Components {
			if in, ok := rc.(*discordgo.TextInput); ok {
				fields[in.CustomID] = in.Value
			}
		}
	}
	return fields
}
