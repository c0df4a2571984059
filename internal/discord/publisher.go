package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"tjhsst/ion-verifier/internal/logging"
)

// VerifyButtonID is the component custom ID of the persistent verify
// button. The history scan keys on it to avoid posting duplicate prompts.
const VerifyButtonID = "verify_ion_button"

// How many recent channel messages are scanned for an existing prompt.
const promptScanLimit = 20

const promptMessage = "**TJHSST Student Verification**\n\n" +
	"Click the button below to verify your identity using your TJHSST ION account. " +
	"This will assign you the appropriate class year role and remove any unverified roles."

// gatewayAPI is the slice of *discordgo.Session the publisher drives.
type gatewayAPI interface {
	Open() error
	Close() error
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// PromptPublisher runs the Discord gateway bot that exposes the verify
// button. Activating the button always encodes the interacting user's
// current ID, never a cached one.
type PromptPublisher struct {
	session   *discordgo.Session
	api       gatewayAPI
	baseURL   string
	guildID   string
	channelID string
}

// NewPromptPublisher creates the gateway bot for the verify channel.
func NewPromptPublisher(botToken, baseURL, guildID, channelID string) (*PromptPublisher, error) {
	session, err := discordgo.New("Bot " + botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages

	p := &PromptPublisher{
		session:   session,
		api:       session,
		baseURL:   baseURL,
		guildID:   guildID,
		channelID: channelID,
	}
	session.AddHandler(p.handleInteraction)
	return p, nil
}

// Run connects to the gateway, ensures the prompt message exists, and
// serves button interactions until the context is cancelled. Only a
// gateway connection failure is fatal: a prompt posting failure (missing
// channel permission, deleted channel) is logged and the bot keeps
// serving interactions against whatever prompt already exists.
func (p *PromptPublisher) Run(ctx context.Context) error {
	if err := p.api.Open(); err != nil {
		return fmt.Errorf("failed to connect to Discord gateway: %w", err)
	}
	defer p.api.Close()

	logging.Info("Prompt publisher connected to Discord",
		"guild_id", p.guildID,
		"channel_id", p.channelID,
	)

	if err := p.ensurePrompt(); err != nil {
		logging.Error("Failed to ensure verification prompt",
			"channel_id", p.channelID,
			"error", err.Error(),
		)
	}

	<-ctx.Done()
	logging.Info("Prompt publisher shutting down")
	return nil
}

// ensurePrompt posts the verification prompt unless a recent message from
// this bot already carries the verify button.
func (p *PromptPublisher) ensurePrompt() error {
	messages, err := p.api.ChannelMessages(p.channelID, promptScanLimit, "", "", "")
	if err != nil {
		return fmt.Errorf("failed to read verify channel history: %w", err)
	}

	var botID string
	if p.session != nil && p.session.State != nil && p.session.State.User != nil {
		botID = p.session.State.User.ID
	}
	for _, msg := range messages {
		if msg.Author == nil || msg.Author.ID != botID {
			continue
		}
		if messageHasVerifyButton(msg) {
			logging.Info("Verification prompt already present in channel",
				"message_id", msg.ID,
			)
			return nil
		}
	}

	_, err = p.api.ChannelMessageSendComplex(p.channelID, &discordgo.MessageSend{
		Content: promptMessage,
		Components: []discordgo.MessageComponent{
			&discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					&discordgo.Button{
						Label:    "Verify with ION",
						Style:    discordgo.SuccessButton,
						CustomID: VerifyButtonID,
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send verification prompt: %w", err)
	}

	logging.Info("Verification prompt posted", "channel_id", p.channelID)
	return nil
}

func (p *PromptPublisher) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionMessageComponent {
		return
	}
	if i.MessageComponentData().CustomID != VerifyButtonID {
		return
	}

	user := i.User
	if i.Member != nil {
		user = i.Member.User
	}
	if user == nil {
		return
	}

	link := fmt.Sprintf("%s/start-verify?user_id=%s&guild_id=%s", p.baseURL, user.ID, p.guildID)

	logging.Info("Verify button clicked",
		"discord_user_id", user.ID,
		"guild_id", p.guildID,
	)

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: "Please click this link to verify with your TJHSST ION account: " + link + "\n" +
				"Make sure you are logged into the correct ION account in your browser.",
			Flags: discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		logging.Error("Failed to respond to verify interaction",
			"discord_user_id", user.ID,
			"error", err.Error(),
		)
	}
}

func messageHasVerifyButton(msg *discordgo.Message) bool {
	for _, component := range msg.Components {
		row, ok := component.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, child := range row.Components {
			if button, ok := child.(*discordgo.Button); ok && button.CustomID == VerifyButtonID {
				return true
			}
		}
	}
	return false
}
