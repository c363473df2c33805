package server

import (
	"fmt"
	"net/http"
	"sync"
	"testing"

	"monolith/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToggleFollow(t *testing.T) {
	env := newTestEnv(t, false)
	_, aToken := env.user(t, "alice")
	bob, _ := env.user(t, "bob")

	follow := env.do(t, http.MethodPost, "/api/toggle-follow", aToken, map[string]any{"id": bob.ID})
	require.Equal(t, fiber.StatusOK, follow.status, follow.body)
	assert.Equal(t, true, follow.body["following"])
	assert.Equal(t, 1, num(follow.body["following_count"]))
	assert.Equal(t, "Now you are following this user.", follow.body["message"])

	unfollow := env.do(t, http.MethodPost, "/api/toggle-follow", aToken, map[string]any{"id": bob.ID})
	require.Equal(t, fiber.StatusOK, unfollow.status)
	assert.Equal(t, false, unfollow.body["following"])
	assert.Equal(t, 0, num(unfollow.body["following_count"]))

	t.Run("errors", func(t *testing.T) {
		alice, _ := env.server.userRepo.GetByUserName(t.Context(), "alice")
		require.NotNil(t, alice)

		self := env.do(t, http.MethodPost, "/api/toggle-follow", aToken, map[string]any{"id": alice.ID})
		assert.Equal(t, fiber.StatusBadRequest, self.status)
		assert.Equal(t, "You cannot follow yourself.", self.body["message"])

		missing := env.do(t, http.MethodPost, "/api/toggle-follow", aToken, map[string]any{"id": 9999})
		assert.Equal(t, fiber.StatusNotFound, missing.status)
		assert.Equal(t, "User not found.", missing.body["message"])

		noID := env.do(t, http.MethodPost, "/api/toggle-follow", aToken, map[string]any{})
		assert.Equal(t, fiber.StatusUnprocessableEntity, noID.status)
	})
}

func TestConnectionStateMachine(t *testing.T) {
	env := newTestEnv(t, false)
	alice, aToken := env.user(t, "alice")
	bob, bToken := env.user(t, "bob")

	status := func(token string, id uint) string {
		resp := env.do(t, http.MethodGet, fmt.Sprintf("/api/connections/status/%d", id), token, nil)
		require.Equal(t, fiber.StatusOK, resp.status)
		return resp.body["status"].(string)
	}

	sent := env.do(t, http.MethodPost, "/api/connections/toggle", aToken, map[string]any{"id": bob.ID})
	require.Equal(t, fiber.StatusOK, sent.status, sent.body)
	assert.Equal(t, true, sent.body["success"])
	assert.Equal(t, "sent", sent.body["action"])
	assert.Equal(t, "pending_sent", status(aToken, bob.ID))
	assert.Equal(t, "pending_received", status(bToken, alice.ID))

	// B toggling while A's request is pending changes nothing.
	incoming := env.do(t, http.MethodPost, "/api/connections/toggle", bToken, map[string]any{"id": alice.ID})
	require.Equal(t, fiber.StatusOK, incoming.status)
	assert.Equal(t, false, incoming.body["success"])
	assert.Equal(t, "pending_incoming", incoming.body["action"])

	overview := env.do(t, http.MethodGet, "/api/connections", bToken, nil)
	require.Equal(t, fiber.StatusOK, overview.status)
	assert.Len(t, overview.body["incomingConnections"], 1)

	accepted := env.do(t, http.MethodPost, "/api/connections/accept", bToken, map[string]any{"id": alice.ID})
	require.Equal(t, fiber.StatusOK, accepted.status, accepted.body)
	assert.Equal(t, "Connection accepted.", accepted.body["message"])
	assert.Equal(t, "alice", accepted.body["connection"].(map[string]any)["user_name"])
	assert.Equal(t, "connected", status(aToken, bob.ID))

	// Accepting creates mutual follows.
	aOverview := env.do(t, http.MethodGet, "/api/connections", aToken, nil)
	assert.Len(t, aOverview.body["connections"], 1)
	assert.Len(t, aOverview.body["following"], 1)
	assert.Len(t, aOverview.body["followers"], 1)

	again := env.do(t, http.MethodPost, "/api/connections/toggle", aToken, map[string]any{"id": bob.ID})
	assert.Equal(t, false, again.body["success"])
	assert.Equal(t, "connected", again.body["action"])

	reaccept := env.do(t, http.MethodPost, "/api/connections/accept", bToken, map[string]any{"id": alice.ID})
	assert.Equal(t, fiber.StatusNotFound, reaccept.status)
}

func TestConnectionCancelAndDecline(t *testing.T) {
	env := newTestEnv(t, false)
	alice, aToken := env.user(t, "alice")
	bob, bToken := env.user(t, "bob")

	env.do(t, http.MethodPost, "/api/connections/toggle", aToken, map[string]any{"id": bob.ID})
	cancelled := env.do(t, http.MethodPost, "/api/connections/toggle", aToken, map[string]any{"id": bob.ID})
	assert.Equal(t, "cancelled", cancelled.body["action"])
	assert.Equal(t, "Connection request cancelled.", cancelled.body["message"])

	env.do(t, http.MethodPost, "/api/connections/toggle", aToken, map[string]any{"id": bob.ID})
	declined := env.do(t, http.MethodPost, "/api/connections/decline", bToken, map[string]any{"id": alice.ID})
	require.Equal(t, fiber.StatusOK, declined.status)
	assert.Equal(t, int(alice.ID), num(declined.body["declined_user_id"]))

	var count int64
	require.NoError(t, env.db.Model(&models.Connection{}).Count(&count).Error)
	assert.Zero(t, count)

	self := env.do(t, http.MethodPost, "/api/connections/toggle", aToken, map[string]any{"id": alice.ID})
	assert.Equal(t, fiber.StatusBadRequest, self.status)
}

func TestConnectionToggle_ConcurrentRequestsCreateOneRow(t *testing.T) {
	env := newTestEnv(t, false)
	_, aToken := env.user(t, "alice")
	bob, _ := env.user(t, "bob")

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			env.do(t, http.MethodPost, "/api/connections/toggle", aToken, map[string]any{"id": bob.ID})
		}()
	}
	wg.Wait()

	var count int64
	require.NoError(t, env.db.Model(&models.Connection{}).Count(&count).Error)
	assert.LessOrEqual(t, count, int64(1))
}

func TestPostsFeedAndLikes(t *testing.T) {
	env := newTestEnv(t, false)
	_, aToken := env.user(t, "alice")
	bob, bToken := env.user(t, "bob")
	_, cToken := env.user(t, "carol")

	t.Run("validation", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/api/posts", bToken, map[string]any{"post_type": "image"})
		assert.Equal(t, fiber.StatusUnprocessableEntity, resp.status)
		resp = env.do(t, http.MethodPost, "/api/posts", bToken, map[string]any{"post_type": "poll", "content": "x"})
		assert.Equal(t, fiber.StatusUnprocessableEntity, resp.status)
	})

	created := env.do(t, http.MethodPost, "/api/posts", bToken, map[string]any{
		"post_type": "text", "content": "hello from bob",
	})
	require.Equal(t, fiber.StatusOK, created.status, created.body)
	assert.Equal(t, "Post created successfully", created.body["message"])
	post := created.body["post"].(map[string]any)
	assert.Equal(t, "bob", post["author"].(map[string]any)["user_name"])
	postID := num(post["id"])

	feed := func(token string) []any {
		resp := env.do(t, http.MethodGet, "/api/posts/feed-posts", token, nil)
		require.Equal(t, fiber.StatusOK, resp.status)
		return resp.body["posts"].([]any)
	}
	assert.Empty(t, feed(aToken), "not following yet")

	env.do(t, http.MethodPost, "/api/toggle-follow", aToken, map[string]any{"id": bob.ID})
	assert.Len(t, feed(aToken), 1)
	assert.Empty(t, feed(cToken))

	likePath := fmt.Sprintf("/api/posts/%d/like", postID)
	liked := env.do(t, http.MethodPost, likePath, aToken, nil)
	require.Equal(t, fiber.StatusOK, liked.status)
	assert.Equal(t, true, liked.body["isLiked"])
	assert.Equal(t, 1, num(liked.body["likes_count"]))
	assert.Equal(t, "Post liked", liked.body["message"])

	unliked := env.do(t, http.MethodPost, likePath, aToken, nil)
	assert.Equal(t, false, unliked.body["isLiked"])
	assert.Equal(t, 0, num(unliked.body["likes_count"]))
	assert.Equal(t, "Post unliked", unliked.body["message"])

	missing := env.do(t, http.MethodPost, "/api/posts/9999/like", aToken, nil)
	assert.Equal(t, fiber.StatusNotFound, missing.status)

	badID := env.do(t, http.MethodPost, "/api/posts/abc/like", aToken, nil)
	assert.Equal(t, fiber.StatusBadRequest, badID.status)
	assert.Equal(t, "Invalid ID", badID.body["message"])

	mine := env.do(t, http.MethodGet, "/api/my-posts", bToken, nil)
	assert.Len(t, mine.body["posts"], 1)
	theirs := env.do(t, http.MethodGet, fmt.Sprintf("/api/users/%d/posts", bob.ID), aToken, nil)
	assert.Len(t, theirs.body["posts"], 1)
}

func TestComments(t *testing.T) {
	env := newTestEnv(t, false)
	_, aToken := env.user(t, "alice")
	_, bToken := env.user(t, "bob")
	_, cToken := env.user(t, "carol")

	created := env.do(t, http.MethodPost, "/api/posts", aToken, map[string]any{"post_type": "text", "content": "post"})
	postID := num(created.body["post"].(map[string]any)["id"])
	base := fmt.Sprintf("/api/comments/%d", postID)

	empty := env.do(t, http.MethodPost, base+"/add", bToken, map[string]any{"content": "   "})
	assert.Equal(t, fiber.StatusUnprocessableEntity, empty.status)

	added := env.do(t, http.MethodPost, base+"/add", bToken, map[string]any{"content": "nice"})
	require.Equal(t, fiber.StatusOK, added.status, added.body)
	commentID := num(added.body["comment"].(map[string]any)["id"])

	list := env.do(t, http.MethodGet, base+"/comments", cToken, nil)
	assert.Len(t, list.body["comments"], 1)
	count := env.do(t, http.MethodGet, base+"/count", cToken, nil)
	assert.Equal(t, 1, num(count.body["count"]))

	deletePath := fmt.Sprintf("/api/comments/%d/delete", commentID)
	forbidden := env.do(t, http.MethodDelete, deletePath, cToken, nil)
	assert.Equal(t, fiber.StatusForbidden, forbidden.status)

	// The post owner may remove comments on their post.
	deleted := env.do(t, http.MethodDelete, deletePath, aToken, nil)
	require.Equal(t, fiber.StatusOK, deleted.status)
	assert.Equal(t, "Comment deleted successfully.", deleted.body["message"])

	gone := env.do(t, http.MethodDelete, deletePath, aToken, nil)
	assert.Equal(t, fiber.StatusNotFound, gone.status)

	noPost := env.do(t, http.MethodPost, "/api/comments/9999/add", bToken, map[string]any{"content": "hi"})
	assert.Equal(t, fiber.StatusNotFound, noPost.status)
}

func TestStories(t *testing.T) {
	env := newTestEnv(t, false)
	alice, aToken := env.user(t, "alice")
	_, bToken := env.user(t, "bob")

	bad := env.do(t, http.MethodPost, "/api/stories/add", aToken, map[string]any{"media_type": "gif"})
	assert.Equal(t, fiber.StatusUnprocessableEntity, bad.status)

	added := env.do(t, http.MethodPost, "/api/stories/add", aToken, map[string]any{
		"media_type": "text", "content": "morning", "background_color": "#4f46e5",
	})
	require.Equal(t, fiber.StatusOK, added.status, added.body)
	assert.Equal(t, "Story added successfully", added.body["message"])
	storyID := num(added.body["story"].(map[string]any)["id"])
	author := added.body["story"].(map[string]any)["user"].(map[string]any)
	assert.Equal(t, "alice", author["user_name"])

	pending, err := env.server.queue.Pending(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending)

	list := env.do(t, http.MethodGet, "/api/stories", bToken, nil)
	assert.Empty(t, list.body["stories"])

	env.do(t, http.MethodPost, "/api/toggle-follow", bToken, map[string]any{"id": alice.ID})
	list = env.do(t, http.MethodGet, "/api/stories", bToken, nil)
	assert.Len(t, list.body["stories"], 1)

	viewPath := fmt.Sprintf("/api/stories/%d/view", storyID)
	viewed := env.do(t, http.MethodPost, viewPath, bToken, nil)
	require.Equal(t, fiber.StatusOK, viewed.status)
	env.do(t, http.MethodPost, viewPath, bToken, nil)
	owner := env.do(t, http.MethodPost, viewPath, aToken, nil)
	assert.Len(t, owner.body["story"].(map[string]any)["view_count"], 1)

	// Expiring removes the story and a second expiry is a no-op.
	_, err = env.server.storyService.Expire(t.Context(), uint(storyID))
	require.NoError(t, err)
	_, err = env.server.storyService.Expire(t.Context(), uint(storyID))
	require.NoError(t, err)
	list = env.do(t, http.MethodGet, "/api/stories", bToken, nil)
	assert.Empty(t, list.body["stories"])
	assert.Equal(t, fiber.StatusNotFound, env.do(t, http.MethodPost, viewPath, bToken, nil).status)
}

func TestStories_DisabledByFlag(t *testing.T) {
	env := newTestEnv(t, false, withFlags("stories=off"))
	_, token := env.user(t, "alice")

	res := env.do(t, http.MethodPost, "/api/stories/add", token, map[string]any{
		"media_type": "text", "content": "hi",
	})
	assert.Equal(t, fiber.StatusForbidden, res.status)
	assert.Equal(t, "Story uploads are currently disabled.", res.body["message"])

	list := env.do(t, http.MethodGet, "/api/stories", token, nil)
	assert.Equal(t, fiber.StatusOK, list.status)
}

func TestMessages(t *testing.T) {
	env := newTestEnv(t, false)
	alice, aToken := env.user(t, "alice")
	bob, bToken := env.user(t, "bob")

	empty := env.do(t, http.MethodPost, "/api/messages/send", aToken, map[string]any{"to_user_id": bob.ID})
	assert.Equal(t, fiber.StatusUnprocessableEntity, empty.status)
	nobody := env.do(t, http.MethodPost, "/api/messages/send", aToken, map[string]any{"to_user_id": 9999, "text": "hi"})
	assert.Equal(t, fiber.StatusUnprocessableEntity, nobody.status)

	for _, text := range []string{"one", "two"} {
		sent := env.do(t, http.MethodPost, "/api/messages/send", aToken, map[string]any{"to_user_id": bob.ID, "text": text})
		require.Equal(t, fiber.StatusOK, sent.status, sent.body)
		msg := sent.body["message"].(map[string]any)
		assert.Equal(t, "text", msg["message_type"])
	}
	image := env.do(t, http.MethodPost, "/api/messages/send", aToken, map[string]any{
		"to_user_id": bob.ID, "media_url": "https://ik.imagekit.io/demo/cat.jpg",
	})
	assert.Equal(t, "image", image.body["message"].(map[string]any)["message_type"])

	unread := env.do(t, http.MethodGet, "/api/messages/unread-messages", bToken, nil)
	require.Equal(t, fiber.StatusOK, unread.status)
	counts := unread.body["unread"].([]any)
	require.Len(t, counts, 1)
	assert.Equal(t, int(alice.ID), num(counts[0].(map[string]any)["from_user_id"]))
	assert.Equal(t, 3, num(counts[0].(map[string]any)["count"]))

	recent := env.do(t, http.MethodGet, "/api/messages/recent-messages", bToken, nil)
	require.Len(t, recent.body["conversations"], 1)

	thread := env.do(t, http.MethodPost, "/api/messages/get-messages", bToken, map[string]any{"to_user_id": alice.ID})
	require.Equal(t, fiber.StatusOK, thread.status)
	assert.Len(t, thread.body["messages"], 3)

	unread = env.do(t, http.MethodGet, "/api/messages/unread-messages", bToken, nil)
	assert.Empty(t, unread.body["unread"])

	noPeer := env.do(t, http.MethodPost, "/api/messages/get-messages", bToken, map[string]any{})
	assert.Equal(t, fiber.StatusUnprocessableEntity, noPeer.status)
}

func TestProfileEdit_WithUserCacheKeepsLogin(t *testing.T) {
	env := newTestEnv(t, true)
	alice, token := env.user(t, "alice")
	_, bToken := env.user(t, "bob")
	env.do(t, http.MethodPost, "/api/toggle-follow", bToken, map[string]any{"id": alice.ID})

	for range 2 {
		me := env.do(t, http.MethodGet, "/api/user", token, nil)
		require.Equal(t, fiber.StatusOK, me.status, me.body)
	}

	updated := env.do(t, http.MethodPost, "/api/user/update", token, map[string]any{"bio": "cached edit"})
	require.Equal(t, fiber.StatusOK, updated.status, updated.body)
	user := updated.body["user"].(map[string]any)
	assert.Equal(t, "cached edit", user["bio"])
	assert.Len(t, user["followers"], 1)

	login := env.do(t, http.MethodPost, "/api/login", "", map[string]any{
		"email": "alice@example.com", "password": "password123",
	})
	require.Equal(t, fiber.StatusOK, login.status, login.body)

	me := env.do(t, http.MethodGet, "/api/user", token, nil)
	assert.Equal(t, "cached edit", me.body["user"].(map[string]any)["bio"])
}

func TestProfiles(t *testing.T) {
	env := newTestEnv(t, false)
	alice, aToken := env.user(t, "alice")
	bob, bToken := env.user(t, "bob")
	env.do(t, http.MethodPost, "/api/toggle-follow", bToken, map[string]any{"id": alice.ID})

	selected := env.do(t, http.MethodGet, fmt.Sprintf("/api/users/%d", alice.ID), bToken, nil)
	require.Equal(t, fiber.StatusOK, selected.status)
	user := selected.body["user"].(map[string]any)
	assert.Len(t, user["followers"], 1)

	missing := env.do(t, http.MethodGet, "/api/users/9999", bToken, nil)
	assert.Equal(t, fiber.StatusNotFound, missing.status)

	updated := env.do(t, http.MethodPost, "/api/user/update", aToken, map[string]any{
		"bio": "Building things", "location": "London",
	})
	require.Equal(t, fiber.StatusOK, updated.status, updated.body)
	assert.Equal(t, "Building things", updated.body["user"].(map[string]any)["bio"])

	clash := env.do(t, http.MethodPost, "/api/user/update", aToken, map[string]any{"user_name": "bob"})
	assert.Equal(t, fiber.StatusUnprocessableEntity, clash.status)

	picture := env.do(t, http.MethodPut, "/api/user/profile-picture", aToken, map[string]any{"profile_picture": ""})
	assert.Equal(t, fiber.StatusUnprocessableEntity, picture.status)

	profile := env.do(t, http.MethodGet, fmt.Sprintf("/api/user/profile?profile_id=%d", bob.ID), aToken, nil)
	require.Equal(t, fiber.StatusOK, profile.status)
	assert.Equal(t, "bob", profile.body["profile"].(map[string]any)["user_name"])

	found := env.do(t, http.MethodPost, "/api/discover-users", aToken, map[string]any{"input": "BO"})
	require.Equal(t, fiber.StatusOK, found.status)
	assert.Len(t, found.body["users"], 1)
}
