package discord

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/bwmarrin/discordgo"
)

type fakeGateway struct {
	openErr     error
	messages    []*discordgo.Message
	messagesErr error
	sendErr     error

	sent   []*discordgo.MessageSend
	opened bool
	closed bool
}

func (f *fakeGateway) Open() error {
	if f.openErr != nil {
		return f.openErr
	}
	f.opened = true
	return nil
}

func (f *fakeGateway) Close() error {
	f.closed = true
	return nil
}

func (f *fakeGateway) ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error) {
	if f.messagesErr != nil {
		return nil, f.messagesErr
	}
	return f.messages, nil
}

func (f *fakeGateway) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.sent = append(f.sent, data)
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return &discordgo.Message{ID: "m-1"}, nil
}

func newTestPublisher(t *testing.T, fake *fakeGateway) *PromptPublisher {
	t.Helper()
	session, err := discordgo.New("Bot test-token")
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	session.State.User = &discordgo.User{ID: "bot-1"}
	return &PromptPublisher{
		session:   session,
		api:       fake,
		baseURL:   "http://localhost:8080",
		guildID:   "g-1",
		channelID: "c-1",
	}
}

func cancelledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

func TestPromptPublisherRun_GatewayFailureIsFatal(t *testing.T) {
	fake := &fakeGateway{openErr: errors.New("invalid token")}
	p := newTestPublisher(t, fake)

	if err := p.Run(cancelledContext()); err == nil {
		t.Fatal("Expected error when the gateway connection fails")
	}
	if len(fake.sent) != 0 {
		t.Errorf("Expected no prompt send after failed connect, got %d", len(fake.sent))
	}
}

func TestPromptPublisherRun_SurvivesHistoryScanFailure(t *testing.T) {
	fake := &fakeGateway{
		messagesErr: &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusForbidden}},
	}
	p := newTestPublisher(t, fake)

	if err := p.Run(cancelledContext()); err != nil {
		t.Fatalf("Run returned %v, want nil when the channel scan fails", err)
	}
	if !fake.closed {
		t.Error("Expected gateway session to be closed on shutdown")
	}
}

func TestPromptPublisherRun_SurvivesPromptSendFailure(t *testing.T) {
	fake := &fakeGateway{
		sendErr: &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusForbidden}},
	}
	p := newTestPublisher(t, fake)

	if err := p.Run(cancelledContext()); err != nil {
		t.Fatalf("Run returned %v, want nil when posting the prompt fails", err)
	}
	if !fake.closed {
		t.Error("Expected gateway session to be closed on shutdown")
	}
}

func TestEnsurePrompt_PostsButtonWhenAbsent(t *testing.T) {
	fake := &fakeGateway{
		messages: []*discordgo.Message{
			{ID: "m-0", Author: &discordgo.User{ID: "someone-else"}, Content: "hi"},
		},
	}
	p := newTestPublisher(t, fake)

	if err := p.ensurePrompt(); err != nil {
		t.Fatalf("ensurePrompt returned %v", err)
	}
	if len(fake.sent) != 1 {
		t.Fatalf("Expected 1 prompt send, got %d", len(fake.sent))
	}
	if !messageHasVerifyButton(&discordgo.Message{Components: fake.sent[0].Components}) {
		t.Error("Posted prompt is missing the verify button")
	}
}

func TestEnsurePrompt_SkipsWhenAlreadyPresent(t *testing.T) {
	existing := &discordgo.Message{
		ID:     "m-7",
		Author: &discordgo.User{ID: "bot-1"},
		Components: []discordgo.MessageComponent{
			&discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					&discordgo.Button{CustomID: VerifyButtonID},
				},
			},
		},
	}
	fake := &fakeGateway{messages: []*discordgo.Message{existing}}
	p := newTestPublisher(t, fake)

	if err := p.ensurePrompt(); err != nil {
		t.Fatalf("ensurePrompt returned %v", err)
	}
	if len(fake.sent) != 0 {
		t.Errorf("Expected no prompt send when one exists, got %d", len(fake.sent))
	}
}

func TestEnsurePrompt_IgnoresOtherAuthorsButtons(t *testing.T) {
	foreign := &discordgo.Message{
		ID:     "m-9",
		Author: &discordgo.User{ID: "other-bot"},
		Components: []discordgo.MessageComponent{
			&discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					&discordgo.Button{CustomID: VerifyButtonID},
				},
			},
		},
	}
	fake := &fakeGateway{messages: []*discordgo.Message{foreign}}
	p := newTestPublisher(t, fake)

	if err := p.ensurePrompt(); err != nil {
		t.Fatalf("ensurePrompt returned %v", err)
	}
	if len(fake.sent) != 1 {
		t.Errorf("Expected a fresh prompt despite another bot's button, got %d sends", len(fake.sent))
	}
}
