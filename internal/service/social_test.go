package service

import (
	"context"
	"testing"

	"github.com/pokewar-server/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendFriendRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.signUp(t, "Ash", "a@x.com")
	b := f.signUp(t, "Brock", "b@x.com")

	req, err := f.game.Social.SendFriendRequest(ctx, domain.FriendRequestSubmission{FromID: a.ID, ToEmail: " B@X.com"})
	require.NoError(t, err)
	assert.Equal(t, a.ID, req.FromID)
	assert.Equal(t, b.ID, req.ToID)
	assert.Equal(t, domain.StatusPending, req.Status)

	t.Run("unknown recipient", func(t *testing.T) {
		_, err := f.game.Social.SendFriendRequest(ctx, domain.FriendRequestSubmission{FromID: a.ID, ToEmail: "nobody@x.com"})
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
	})

	t.Run("self request", func(t *testing.T) {
		_, err := f.game.Social.SendFriendRequest(ctx, domain.FriendRequestSubmission{FromID: a.ID, ToEmail: "a@x.com"})
		assert.ErrorIs(t, err, domain.ErrSelfRequest)
	})

	t.Run("pending in the same direction", func(t *testing.T) {
		_, err := f.game.Social.SendFriendRequest(ctx, domain.FriendRequestSubmission{FromID: a.ID, ToEmail: "b@x.com"})
		assert.ErrorIs(t, err, domain.ErrFriendRequestPending)
	})

	t.Run("pending in the reverse direction", func(t *testing.T) {
		_, err := f.game.Social.SendFriendRequest(ctx, domain.FriendRequestSubmission{FromID: b.ID, ToEmail: "a@x.com"})
		assert.ErrorIs(t, err, domain.ErrFriendRequestPending)
		assert.True(t, domain.IsConflictError(err))
	})

	assert.Len(t, f.game.Social.GetFriendRequestsForUser(ctx, a.ID), 1)
	assert.Len(t, f.game.Social.GetFriendRequestsForUser(ctx, b.ID), 1)
}

func TestAcceptedRequestMakesFriends(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.signUp(t, "Ash", "a@x.com")
	b := f.signUp(t, "Brock", "b@x.com")

	req, err := f.game.Social.SendFriendRequest(ctx, domain.FriendRequestSubmission{FromID: a.ID, ToEmail: b.Email})
	require.NoError(t, err)

	answered, err := f.game.Social.RespondToFriendRequest(ctx, domain.RespondRequest{ID: req.ID, Status: domain.StatusAccepted})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAccepted, answered.Status)

	assert.Equal(t, []domain.User{b}, f.game.Social.GetFriendsForUser(ctx, a.ID))
	assert.Equal(t, []domain.User{a}, f.game.Social.GetFriendsForUser(ctx, b.ID))

	_, err = f.game.Social.SendFriendRequest(ctx, domain.FriendRequestSubmission{FromID: b.ID, ToEmail: a.Email})
	assert.ErrorIs(t, err, domain.ErrAlreadyFriends)

	_, err = f.game.Social.RespondToFriendRequest(ctx, domain.RespondRequest{ID: req.ID, Status: domain.StatusDeclined})
	assert.ErrorIs(t, err, domain.ErrAlreadyResolved)
}

func TestDeclinedRequestAllowsRetry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.signUp(t, "Ash", "a@x.com")
	b := f.signUp(t, "Brock", "b@x.com")

	req, err := f.game.Social.SendFriendRequest(ctx, domain.FriendRequestSubmission{FromID: a.ID, ToEmail: b.Email})
	require.NoError(t, err)

	_, err = f.game.Social.RespondToFriendRequest(ctx, domain.RespondRequest{ID: req.ID, Status: domain.StatusDeclined})
	require.NoError(t, err)

	assert.Empty(t, f.game.Social.GetFriendsForUser(ctx, a.ID))
	assert.Empty(t, f.game.Social.GetFriendsForUser(ctx, b.ID))

	_, err = f.game.Social.SendFriendRequest(ctx, domain.FriendRequestSubmission{FromID: b.ID, ToEmail: a.Email})
	assert.NoError(t, err)
}

func TestRespondToFriendRequestErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.signUp(t, "Ash", "a@x.com")
	b := f.signUp(t, "Brock", "b@x.com")
	req, err := f.game.Social.SendFriendRequest(ctx, domain.FriendRequestSubmission{FromID: a.ID, ToEmail: b.Email})
	require.NoError(t, err)

	_, err = f.game.Social.RespondToFriendRequest(ctx, domain.RespondRequest{ID: "missing", Status: domain.StatusAccepted})
	assert.ErrorIs(t, err, domain.ErrFriendRequestNotFound)

	_, err = f.game.Social.RespondToFriendRequest(ctx, domain.RespondRequest{ID: req.ID, Status: domain.StatusPending})
	assert.ErrorIs(t, err, domain.ErrInvalidResponseStatus)

	_, err = f.game.Social.RespondToFriendRequest(ctx, domain.RespondRequest{ID: req.ID, Status: domain.StatusAccepted, ActorID: a.ID})
	assert.ErrorIs(t, err, domain.ErrNotRecipient)
	assert.True(t, domain.IsForbiddenError(err))

	requests := f.game.Social.GetFriendRequestsForUser(ctx, b.ID)
	require.Len(t, requests, 1)
	assert.Equal(t, domain.StatusPending, requests[0].Status)
}

func TestFriendsAreDeduplicatedAndResolved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.signUp(t, "Ash", "a@x.com")
	b := f.signUp(t, "Brock", "b@x.com")

	// Two accepted requests between the same pair, plus one to a trainer
	// that no longer exists.
	f.kv.Write(ctx, FriendRequestsKey, []domain.FriendRequest{
		{ID: "r1", FromID: a.ID, ToID: b.ID, Status: domain.StatusAccepted},
		{ID: "r2", FromID: b.ID, ToID: a.ID, Status: domain.StatusAccepted},
		{ID: "r3", FromID: a.ID, ToID: "ghost", Status: domain.StatusAccepted},
	})

	assert.Equal(t, []domain.User{b}, f.game.Social.GetFriendsForUser(ctx, a.ID))
}
