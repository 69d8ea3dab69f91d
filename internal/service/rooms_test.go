package service

import (
	"context"
	"testing"

	"github.com/pokewar-server/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateServer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.signUp(t, "Ash", "a@x.com")

	named, err := f.game.Rooms.CreateServer(ctx, domain.CreateServerRequest{Name: "  Duo  ", OwnerID: a.ID})
	require.NoError(t, err)
	assert.Equal(t, "Duo", named.Name)
	assert.Equal(t, []string{a.ID}, named.MemberIDs)

	blank, err := f.game.Rooms.CreateServer(ctx, domain.CreateServerRequest{Name: "   ", OwnerID: a.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultServerName, blank.Name)

	assert.Len(t, f.game.Rooms.GetServersForUser(ctx, a.ID), 2)
	assert.Empty(t, f.game.Rooms.GetServersForUser(ctx, "someone-else"))

	_, err = f.game.Rooms.GetServer(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrServerNotFound)
}

func TestInviteToServer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.signUp(t, "Ash", "a@x.com")
	b := f.signUp(t, "Brock", "b@x.com")
	c := f.signUp(t, "Misty", "c@x.com")

	server, err := f.game.Rooms.CreateServer(ctx, domain.CreateServerRequest{Name: "Duo", OwnerID: a.ID})
	require.NoError(t, err)

	tests := []struct {
		name string
		req  domain.InviteRequest
		want error
	}{
		{"missing server", domain.InviteRequest{ServerID: "missing", FromID: a.ID, ToID: b.ID}, domain.ErrServerNotFound},
		{"not the owner", domain.InviteRequest{ServerID: server.ID, FromID: b.ID, ToID: c.ID}, domain.ErrNotServerOwner},
		{"already a member", domain.InviteRequest{ServerID: server.ID, FromID: a.ID, ToID: a.ID}, domain.ErrAlreadyMember},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.game.Rooms.InviteToServer(ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	invite, err := f.game.Rooms.InviteToServer(ctx, domain.InviteRequest{ServerID: server.ID, FromID: a.ID, ToID: b.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, invite.Status)

	_, err = f.game.Rooms.InviteToServer(ctx, domain.InviteRequest{ServerID: server.ID, FromID: a.ID, ToID: b.ID})
	assert.ErrorIs(t, err, domain.ErrInvitePending)

	assert.Equal(t, []domain.ServerInvite{*invite}, f.game.Rooms.GetServerInvitesForUser(ctx, b.ID))
	assert.Empty(t, f.game.Rooms.GetServerInvitesForUser(ctx, a.ID))
}

func TestInviteToFullServer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, b, server := f.duo(t)
	c := f.signUp(t, "Misty", "c@x.com")

	_, err := f.game.Rooms.InviteToServer(ctx, domain.InviteRequest{ServerID: server.ID, FromID: a.ID, ToID: c.ID})
	assert.ErrorIs(t, err, domain.ErrServerFull)

	// the owner check runs before the capacity check
	_, err = f.game.Rooms.InviteToServer(ctx, domain.InviteRequest{ServerID: server.ID, FromID: b.ID, ToID: c.ID})
	assert.ErrorIs(t, err, domain.ErrNotServerOwner)
}

func TestRespondToServerInvite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.signUp(t, "Ash", "a@x.com")
	b := f.signUp(t, "Brock", "b@x.com")
	server, err := f.game.Rooms.CreateServer(ctx, domain.CreateServerRequest{Name: "Duo", OwnerID: a.ID})
	require.NoError(t, err)
	invite, err := f.game.Rooms.InviteToServer(ctx, domain.InviteRequest{ServerID: server.ID, FromID: a.ID, ToID: b.ID})
	require.NoError(t, err)

	t.Run("unknown invite", func(t *testing.T) {
		_, err := f.game.Rooms.RespondToServerInvite(ctx, domain.RespondRequest{ID: "missing", Status: domain.StatusAccepted})
		assert.ErrorIs(t, err, domain.ErrInviteNotFound)
	})

	t.Run("bad status", func(t *testing.T) {
		_, err := f.game.Rooms.RespondToServerInvite(ctx, domain.RespondRequest{ID: invite.ID, Status: "maybe"})
		assert.ErrorIs(t, err, domain.ErrInvalidResponseStatus)
	})

	t.Run("someone else answers", func(t *testing.T) {
		_, err := f.game.Rooms.RespondToServerInvite(ctx, domain.RespondRequest{ID: invite.ID, Status: domain.StatusAccepted, ActorID: a.ID})
		assert.ErrorIs(t, err, domain.ErrNotInvitee)
	})

	answered, err := f.game.Rooms.RespondToServerInvite(ctx, domain.RespondRequest{ID: invite.ID, Status: domain.StatusAccepted, ActorID: b.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAccepted, answered.Status)

	got, err := f.game.Rooms.GetServer(ctx, server.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID, b.ID}, got.MemberIDs)
	assert.Len(t, f.game.Rooms.GetServersForUser(ctx, b.ID), 1)

	_, err = f.game.Rooms.RespondToServerInvite(ctx, domain.RespondRequest{ID: invite.ID, Status: domain.StatusAccepted})
	assert.ErrorIs(t, err, domain.ErrAlreadyResolved)
}

func TestDeclinedInviteLeavesServerAlone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.signUp(t, "Ash", "a@x.com")
	b := f.signUp(t, "Brock", "b@x.com")
	server, err := f.game.Rooms.CreateServer(ctx, domain.CreateServerRequest{OwnerID: a.ID})
	require.NoError(t, err)
	invite, err := f.game.Rooms.InviteToServer(ctx, domain.InviteRequest{ServerID: server.ID, FromID: a.ID, ToID: b.ID})
	require.NoError(t, err)

	_, err = f.game.Rooms.RespondToServerInvite(ctx, domain.RespondRequest{ID: invite.ID, Status: domain.StatusDeclined})
	require.NoError(t, err)

	got, err := f.game.Rooms.GetServer(ctx, server.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID}, got.MemberIDs)

	// a declined invite no longer blocks a new one
	_, err = f.game.Rooms.InviteToServer(ctx, domain.InviteRequest{ServerID: server.ID, FromID: a.ID, ToID: b.ID})
	assert.NoError(t, err)
}

func TestAcceptingIntoFilledServerFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.signUp(t, "Ash", "a@x.com")
	b := f.signUp(t, "Brock", "b@x.com")
	c := f.signUp(t, "Misty", "c@x.com")
	server, err := f.game.Rooms.CreateServer(ctx, domain.CreateServerRequest{Name: "Duo", OwnerID: a.ID})
	require.NoError(t, err)

	toB, err := f.game.Rooms.InviteToServer(ctx, domain.InviteRequest{ServerID: server.ID, FromID: a.ID, ToID: b.ID})
	require.NoError(t, err)
	toC, err := f.game.Rooms.InviteToServer(ctx, domain.InviteRequest{ServerID: server.ID, FromID: a.ID, ToID: c.ID})
	require.NoError(t, err)

	_, err = f.game.Rooms.RespondToServerInvite(ctx, domain.RespondRequest{ID: toB.ID, Status: domain.StatusAccepted})
	require.NoError(t, err)

	_, err = f.game.Rooms.RespondToServerInvite(ctx, domain.RespondRequest{ID: toC.ID, Status: domain.StatusAccepted})
	assert.ErrorIs(t, err, domain.ErrServerFull)

	got, err := f.game.Rooms.GetServer(ctx, server.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID, b.ID}, got.MemberIDs)

	invites := f.game.Rooms.GetServerInvitesForUser(ctx, c.ID)
	require.Len(t, invites, 1)
	assert.Equal(t, domain.StatusPending, invites[0].Status)

	// declining still works once the room is full
	_, err = f.game.Rooms.RespondToServerInvite(ctx, domain.RespondRequest{ID: toC.ID, Status: domain.StatusDeclined})
	assert.NoError(t, err)
}
