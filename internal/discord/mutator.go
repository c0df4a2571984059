package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"

	"github.com/bwmarrin/discordgo"

	"tjhsst/ion-verifier/internal/constants"
	"tjhsst/ion-verifier/internal/logging"
	"tjhsst/ion-verifier/internal/roles"
)

// guildAPI is the slice of the Discord session used by the mutator.
// *discordgo.Session satisfies it; tests substitute a fake.
type guildAPI interface {
	Guild(guildID string, options ...discordgo.RequestOption) (*discordgo.Guild, error)
	GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
	GuildRoles(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Role, error)
	GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	GuildMemberRoleRemove(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	Close() error
}

// MutatorError carries a taxonomy code for a failed role mutation.
type MutatorError struct {
	Code    string
	Message string
	Err     error
}

func (e *MutatorError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *MutatorError) Unwrap() error {
	return e.Err
}

// RoleMutator applies the verified-identity role diff to a guild member.
// Each Apply call opens a fresh administrative session and tears it down on
// every exit path; sessions are never shared across requests.
type RoleMutator struct {
	botToken     string
	table        roles.Table
	roleToRemove string

	newSession func(token string) (guildAPI, error)
}

// NewRoleMutator creates a mutator for the given bot token and role
// mapping. roleToRemove may be empty, in which case no role is stripped.
func NewRoleMutator(botToken string, table roles.Table, roleToRemove string) *RoleMutator {
	return &RoleMutator{
		botToken:     botToken,
		table:        table,
		roleToRemove: roleToRemove,
		newSession: func(token string) (guildAPI, error) {
			return discordgo.New("Bot " + token)
		},
	}
}

// Apply resolves the member and the guild's live roles, computes the role
// diff for the verified username, and applies it. The operation is
// idempotent: a role is only added when the member lacks it and only
// removed when the member holds it, so repeated calls with the same inputs
// converge to the same member state.
//
// Guild and member lookup failures are returned to the caller; failures
// while mutating roles are logged and swallowed, since identity
// verification has already succeeded by the time Apply runs.
func (m *RoleMutator) Apply(ctx context.Context, discordUserID, guildID, username string) error {
	session, err := m.newSession(m.botToken)
	if err != nil {
		return &MutatorError{
			Code:    constants.ErrCodeNetworkError,
			Message: "failed to create Discord session",
			Err:     err,
		}
	}
	defer session.Close()

	guild, err := session.Guild(guildID)
	if err != nil {
		return &MutatorError{
			Code:    constants.ErrCodeGuildNotFound,
			Message: fmt.Sprintf("could not find guild %s", guildID),
			Err:     err,
		}
	}

	member, err := session.GuildMember(guildID, discordUserID)
	if err != nil {
		return &MutatorError{
			Code:    constants.ErrCodeMemberNotFound,
			Message: fmt.Sprintf("could not find member %s in guild %s", discordUserID, guild.Name),
			Err:     err,
		}
	}

	guildRoles, err := session.GuildRoles(guildID)
	if err != nil {
		return &MutatorError{
			Code:    constants.ErrCodeGuildNotFound,
			Message: fmt.Sprintf("could not list roles of guild %s", guild.Name),
			Err:     err,
		}
	}

	logging.Info("Processing roles for member",
		"discord_user_id", discordUserID,
		"guild_id", guildID,
		"ion_username", username,
	)

	// Role to add, per the mapping table. No mapping means skip the add
	// but still perform the remove.
	var roleToAdd *discordgo.Role
	mappedName, ok := roles.Resolve(username, m.table)
	if !ok {
		logging.Warn("No role mapping found for ION username, skipping role add",
			"ion_username", username,
		)
	} else {
		roleToAdd = findRoleByName(guildRoles, mappedName)
		if roleToAdd == nil {
			logging.Warn("Mapped role not found in guild",
				"code", constants.ErrCodeRoleNotConfigured,
				"role_name", mappedName,
				"guild_id", guildID,
			)
		}
	}

	// Role to remove, if configured.
	var roleToRemove *discordgo.Role
	if m.roleToRemove != "" {
		roleToRemove = findRoleByName(guildRoles, m.roleToRemove)
		if roleToRemove == nil {
			logging.Warn("Role to remove not found in guild",
				"code", constants.ErrCodeRoleNotConfigured,
				"role_name", m.roleToRemove,
				"guild_id", guildID,
			)
		}
	}

	if roleToAdd != nil && !slices.Contains(member.Roles, roleToAdd.ID) {
		if err := session.GuildMemberRoleAdd(guildID, discordUserID, roleToAdd.ID); err != nil {
			logMutationFailure("add", roleToAdd.Name, discordUserID, err)
		} else {
			logging.Info("Added role to member",
				"role_name", roleToAdd.Name,
				"discord_user_id", discordUserID,
			)
		}
	}

	if roleToRemove != nil && slices.Contains(member.Roles, roleToRemove.ID) {
		if err := session.GuildMemberRoleRemove(guildID, discordUserID, roleToRemove.ID); err != nil {
			logMutationFailure("remove", roleToRemove.Name, discordUserID, err)
		} else {
			logging.Info("Removed role from member",
				"role_name", roleToRemove.Name,
				"discord_user_id", discordUserID,
			)
		}
	}

	return nil
}

func findRoleByName(guildRoles []*discordgo.Role, name string) *discordgo.Role {
	for _, role := range guildRoles {
		if role.Name == name {
			return role
		}
	}
	return nil
}

func logMutationFailure(action, roleName, discordUserID string, err error) {
	code := constants.ErrCodeInsufficientPermission
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) || restErr.Response == nil || restErr.Response.StatusCode != http.StatusForbidden {
		code = constants.ErrCodeNetworkError
	}
	logging.Error("Failed to "+action+" role",
		"code", code,
		"role_name", roleName,
		"discord_user_id", discordUserID,
		"error", err.Error(),
	)
}
