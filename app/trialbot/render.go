package main

import (
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/samber/lo"

	"github.com/tez-capital/trialbot/bot"
)

var buttonStyles = map[bot.ButtonStyle]discordgo.ButtonStyle{
	bot.StylePrimary:   discordgo.PrimaryButton,
	bot.StyleSecondary: discordgo.SecondaryButton,
	bot.StyleSuccess:   discordgo.SuccessButton,
	bot.StyleDanger:    discordgo.DangerButton,
}

func renderPanel(p bot.Panel, now time.Time) (*discordgo.MessageEmbed, []discordgo.MessageComponent) {
	embed := &discordgo.MessageEmbed{
		Title:       p.Title,
		Description: p.Description,
		Color:       p.Color,
		Fields: lo.Map(p.Fields, func(f bot.Field, _ int) *discordgo.MessageEmbedField {
			return &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline}
		}),
	}
	if p.Footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: p.Footer}
	}
	if p.Timestamp {
		embed.Timestamp = now.Format(time.RFC3339)
	}

	rows := lo.Map(p.Rows, func(row []bot.Button, _ int) discordgo.MessageComponent {
		return discordgo.ActionsRow{
			Components: lo.Map(row, func(btn bot.Button, _ int) discordgo.MessageComponent {
				b := discordgo.Button{
					CustomID: btn.ID,
					Label:    btn.Label,
					Style:    buttonStyles[btn.Style],
				}
				if btn.Emoji != "" {
					b.Emoji = &discordgo.ComponentEmoji{Name: btn.Emoji}
				}
				return b
			}),
		}
	})
	return embed, rows
}

func renderPages(pages []bot.Page) []*discordgo.MessageEmbed {
	return lo.Map(pages, func(p bot.Page, _ int) *discordgo.MessageEmbed {
		return &discordgo.MessageEmbed{Title: p.Title, Description: p.Body, Color: p.Color}
	})
}

func renderForm(f *bot.Form) *discordgo.InteractionResponseData {
	return &discordgo.InteractionResponseData{
		CustomID: f.ID,
		Title:    f.Title,
		Components: lo.Map(f.Inputs, func(in bot.Input, _ int) discordgo.MessageComponent {
			style := discordgo.TextInputShort
			if in.Paragraph {
				style = discordgo.TextInputParagraph
			}
			return discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.TextInput{
					CustomID:    in.ID,
					Label:       in.Label,
					Style:       style,
					Placeholder: in.Placeholder,
					Required:    true,
				},
			}}
		}),
	}
}
