package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpirationSweeper(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.createUser(t, "owner@example.com", false)

	ttl := 1
	link, err := env.links.Create(ctx, CreateLinkInput{OriginalURL: "https://example.com", OwnerID: owner.ID, TTLDays: &ttl})
	require.NoError(t, err)

	sweeper := NewExpirationSweeper(env.links, testLogger(), env.clock.Now, time.Hour, 48*time.Hour)

	t.Run("Within grace", func(t *testing.T) {
		env.clock.Advance(48 * time.Hour)
		n, err := sweeper.RunOnce(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("Past grace", func(t *testing.T) {
		env.clock.Advance(48 * time.Hour)
		n, err := sweeper.RunOnce(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		ok, err := env.links.Exists(ctx, link.ID)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Disabled returns immediately", func(t *testing.T) {
		disabled := NewExpirationSweeper(env.links, testLogger(), env.clock.Now, 0, 0)
		done := make(chan struct{})
		go func() {
			disabled.Start(context.Background())
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("disabled sweeper kept running")
		}
	})

	t.Run("Stops on cancel", func(t *testing.T) {
		running := NewExpirationSweeper(env.links, testLogger(), env.clock.Now, 5*time.Millisecond, time.Hour)
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			running.Start(ctx)
			close(done)
		}()
		time.Sleep(20 * time.Millisecond)
		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("sweeper did not stop")
		}
	})
}
