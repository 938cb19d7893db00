package sse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_ShutdownRightAfterStart(t *testing.T) {
	for range 20 {
		manager := NewManager(testLogger())
		client, err := manager.Connect()
		require.NoError(t, err)

		manager.Start(context.Background())

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		require.NoError(t, manager.Shutdown(ctx))
		cancel()

		// Shutdown returns only after the loop has closed every client.
		select {
		case <-client.Done:
		default:
			t.Fatal("client still open after Shutdown returned")
		}
		assert.Zero(t, manager.ClientCount())
	}
}

func TestManager_ShutdownTwice(t *testing.T) {
	manager := NewManager(testLogger())
	manager.Start(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, manager.Shutdown(ctx))
	assert.NoError(t, manager.Shutdown(ctx))
}
