package discord

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"testing"

	"github.com/bwmarrin/discordgo"

	"tjhsst/ion-verifier/internal/roles"
)

// fakeSession implements guildAPI with an in-memory member role set.
type fakeSession struct {
	guild      *discordgo.Guild
	member     *discordgo.Member
	guildRoles []*discordgo.Role

	guildErr  error
	memberErr error
	addErr    error
	removeErr error

	addCalls    int
	removeCalls int
	closed      bool
}

func (f *fakeSession) Guild(guildID string, options ...discordgo.RequestOption) (*discordgo.Guild, error) {
	if f.guildErr != nil {
		return nil, f.guildErr
	}
	return f.guild, nil
}

func (f *fakeSession) GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error) {
	if f.memberErr != nil {
		return nil, f.memberErr
	}
	return f.member, nil
}

func (f *fakeSession) GuildRoles(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Role, error) {
	return f.guildRoles, nil
}

func (f *fakeSession) GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error {
	f.addCalls++
	if f.addErr != nil {
		return f.addErr
	}
	if !slices.Contains(f.member.Roles, roleID) {
		f.member.Roles = append(f.member.Roles, roleID)
	}
	return nil
}

func (f *fakeSession) GuildMemberRoleRemove(guildID, userID, roleID string, options ...discordgo.RequestOption) error {
	f.removeCalls++
	if f.removeErr != nil {
		return f.removeErr
	}
	f.member.Roles = slices.DeleteFunc(f.member.Roles, func(id string) bool { return id == roleID })
	return nil
}

func (f *fakeSession) Close() error {
	f.closed = true
	return nil
}

func newFakeSession(memberRoleIDs []string, guildRoles []*discordgo.Role) *fakeSession {
	return &fakeSession{
		guild:      &discordgo.Guild{ID: "guild-1", Name: "Test Guild"},
		member:     &discordgo.Member{Roles: memberRoleIDs},
		guildRoles: guildRoles,
	}
}

func newTestMutator(fake *fakeSession, table roles.Table, roleToRemove string) *RoleMutator {
	m := NewRoleMutator("bot-token", table, roleToRemove)
	m.newSession = func(token string) (guildAPI, error) { return fake, nil }
	return m
}

func TestApply_ClassYearVerification(t *testing.T) {
	guildRoles := []*discordgo.Role{
		{ID: "r-2025", Name: "Class of 2025"},
		{ID: "r-unverified", Name: "Unverified"},
	}
	fake := newFakeSession([]string{"r-unverified"}, guildRoles)
	mutator := newTestMutator(fake, roles.Table{"2025": "Class of 2025"}, "Unverified")

	if err := mutator.Apply(context.Background(), "user-1", "guild-1", "2025jdoe"); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if !slices.Contains(fake.member.Roles, "r-2025") {
		t.Error("Expected member to hold Class of 2025")
	}
	if slices.Contains(fake.member.Roles, "r-unverified") {
		t.Error("Expected Unverified to be removed")
	}
	if !fake.closed {
		t.Error("Expected session to be closed")
	}
}

func TestApply_Idempotent(t *testing.T) {
	guildRoles := []*discordgo.Role{
		{ID: "r-2025", Name: "Class of 2025"},
		{ID: "r-unverified", Name: "Unverified"},
	}
	fake := newFakeSession([]string{"r-unverified"}, guildRoles)
	mutator := newTestMutator(fake, roles.Table{"2025": "Class of 2025"}, "Unverified")

	if err := mutator.Apply(context.Background(), "user-1", "guild-1", "2025jdoe"); err != nil {
		t.Fatalf("First apply failed: %v", err)
	}
	rolesAfterFirst := slices.Clone(fake.member.Roles)
	addCalls, removeCalls := fake.addCalls, fake.removeCalls

	if err := mutator.Apply(context.Background(), "user-1", "guild-1", "2025jdoe"); err != nil {
		t.Fatalf("Second apply failed: %v", err)
	}

	if !slices.Equal(fake.member.Roles, rolesAfterFirst) {
		t.Errorf("Role set changed on second apply: %v vs %v", fake.member.Roles, rolesAfterFirst)
	}
	// Nothing to do on the second pass: member already holds the mapped
	// role and no longer holds the removable one.
	if fake.addCalls != addCalls || fake.removeCalls != removeCalls {
		t.Errorf("Second apply issued mutations: add %d->%d, remove %d->%d",
			addCalls, fake.addCalls, removeCalls, fake.removeCalls)
	}
}

func TestApply_DefaultMappingForNonStudent(t *testing.T) {
	guildRoles := []*discordgo.Role{
		{ID: "r-verified", Name: "Verified"},
	}
	fake := newFakeSession(nil, guildRoles)
	mutator := newTestMutator(fake, roles.Table{"Default": "Verified"}, "")

	if err := mutator.Apply(context.Background(), "user-1", "guild-1", "alum99"); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if !slices.Contains(fake.member.Roles, "r-verified") {
		t.Error("Expected member to hold Verified")
	}
}

func TestApply_MappedRoleAbsentFromGuild(t *testing.T) {
	// Mapping names a role the guild does not have: add side is skipped
	// with a warning, remove side still applies.
	guildRoles := []*discordgo.Role{
		{ID: "r-unverified", Name: "Unverified"},
	}
	fake := newFakeSession([]string{"r-unverified"}, guildRoles)
	mutator := newTestMutator(fake, roles.Table{"2025": "Class of 2025"}, "Unverified")

	if err := mutator.Apply(context.Background(), "user-1", "guild-1", "2025jdoe"); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if fake.addCalls != 0 {
		t.Errorf("Expected no role add, got %d calls", fake.addCalls)
	}
	if slices.Contains(fake.member.Roles, "r-unverified") {
		t.Error("Expected Unverified to still be removed")
	}
}

func TestApply_NoMappingStillRemoves(t *testing.T) {
	guildRoles := []*discordgo.Role{
		{ID: "r-unverified", Name: "Unverified"},
	}
	fake := newFakeSession([]string{"r-unverified"}, guildRoles)
	mutator := newTestMutator(fake, roles.Table{}, "Unverified")

	if err := mutator.Apply(context.Background(), "user-1", "guild-1", "2025jdoe"); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if fake.addCalls != 0 {
		t.Errorf("Expected no role add, got %d calls", fake.addCalls)
	}
	if slices.Contains(fake.member.Roles, "r-unverified") {
		t.Error("Expected Unverified to be removed even without a mapping")
	}
}

func TestApply_GuildNotFound(t *testing.T) {
	fake := &fakeSession{guildErr: errors.New("unknown guild")}
	mutator := newTestMutator(fake, roles.Table{}, "")

	err := mutator.Apply(context.Background(), "user-1", "guild-1", "2025jdoe")
	if err == nil {
		t.Fatal("Expected error for missing guild")
	}
	var mutErr *MutatorError
	if !errors.As(err, &mutErr) || mutErr.Code != "GUILD_NOT_FOUND" {
		t.Errorf("Expected GUILD_NOT_FOUND, got %v", err)
	}
	if !fake.closed {
		t.Error("Expected session to be closed on error path")
	}
}

func TestApply_MemberNotFound(t *testing.T) {
	fake := newFakeSession(nil, nil)
	fake.memberErr = errors.New("unknown member")
	mutator := newTestMutator(fake, roles.Table{}, "")

	err := mutator.Apply(context.Background(), "user-1", "guild-1", "2025jdoe")
	var mutErr *MutatorError
	if !errors.As(err, &mutErr) || mutErr.Code != "MEMBER_NOT_FOUND" {
		t.Errorf("Expected MEMBER_NOT_FOUND, got %v", err)
	}
	if !fake.closed {
		t.Error("Expected session to be closed on error path")
	}
}

func TestApply_PermissionFailureIsSwallowed(t *testing.T) {
	guildRoles := []*discordgo.Role{
		{ID: "r-2025", Name: "Class of 2025"},
	}
	fake := newFakeSession(nil, guildRoles)
	fake.addErr = &discordgo.RESTError{
		Response: &http.Response{StatusCode: http.StatusForbidden},
	}
	mutator := newTestMutator(fake, roles.Table{"2025": "Class of 2025"}, "")

	// Mutation failures are logged, never propagated.
	if err := mutator.Apply(context.Background(), "user-1", "guild-1", "2025jdoe"); err != nil {
		t.Fatalf("Expected permission failure to be swallowed, got %v", err)
	}
	if !fake.closed {
		t.Error("Expected session to be closed")
	}
}
