package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerificationService_SetAndGet(t *testing.T) {
	store := newMockVerificationStore()
	svc := NewVerificationService(store, &mockLogger{})
	ctx := context.Background()

	marks, err := svc.SetVerified(ctx, 1, "gst", "gstr1", true)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"GST-gstr1": true}, marks)
	assert.Equal(t, map[string]bool{"GST-gstr1": true}, store.data[1], "marks are written through")

	marks, err = svc.SetVerified(ctx, 1, "GST", "gstr1", false)
	require.NoError(t, err)
	assert.False(t, marks["GST-gstr1"])

	got, err := svc.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, marks, got)
}

func TestVerificationService_ScopedPerTask(t *testing.T) {
	svc := NewVerificationService(newMockVerificationStore(), &mockLogger{})
	ctx := context.Background()

	_, err := svc.SetVerified(ctx, 1, "TDS", "form_26q", true)
	require.NoError(t, err)

	other, err := svc.Get(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestVerificationService_LoadsOnce(t *testing.T) {
	store := newMockVerificationStore()
	store.data[5] = map[string]bool{"Audit-trial_balance": true}
	svc := NewVerificationService(store, &mockLogger{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, err := svc.Get(ctx, 5)
		require.NoError(t, err)
		assert.True(t, got["Audit-trial_balance"])
	}
	assert.Equal(t, 1, store.loads)
}

func TestVerificationService_ReturnsCopies(t *testing.T) {
	svc := NewVerificationService(newMockVerificationStore(), &mockLogger{})
	ctx := context.Background()

	got, err := svc.Get(ctx, 1)
	require.NoError(t, err)
	got["GST-gstr1"] = true

	again, err := svc.Get(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestVerificationService_SaveFailureKeepsCache(t *testing.T) {
	store := newMockVerificationStore()
	svc := NewVerificationService(store, &mockLogger{})
	ctx := context.Background()

	_, err := svc.SetVerified(ctx, 1, "GST", "gstr1", true)
	require.NoError(t, err)

	store.saveErr = errors.New("disk full")
	_, err = svc.SetVerified(ctx, 1, "GST", "gstr3b", true)
	require.Error(t, err)
	assert.True(t, IsRetryable(err))

	got, err := svc.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"GST-gstr1": true}, got)
}

func TestVerificationService_UnknownSlot(t *testing.T) {
	svc := NewVerificationService(newMockVerificationStore(), &mockLogger{})
	_, err := svc.SetVerified(context.Background(), 1, "GST", "form_16", true)
	assert.ErrorIs(t, err, ErrUnknownSlot)
}

func TestVerificationService_LoadFailure(t *testing.T) {
	store := newMockVerificationStore()
	store.loadErr = errors.New("corrupt json")
	svc := NewVerificationService(store, &mockLogger{})

	_, err := svc.Get(context.Background(), 1)
	assert.Equal(t, KindTransport, KindOf(err))
}

func TestVerificationService_SlowTaskDoesNotBlockOthers(t *testing.T) {
	store := newMockVerificationStore()
	release := make(chan struct{})
	store.onSave = func(taskID int64) {
		if taskID == 1 {
			<-release
		}
	}
	svc := NewVerificationService(store, &mockLogger{})
	ctx := context.Background()

	slow := make(chan error, 1)
	go func() {
		_, err := svc.SetVerified(ctx, 1, "GST", "gstr1", true)
		slow <- err
	}()

	done := make(chan error, 1)
	go func() {
		_, err := svc.SetVerified(ctx, 2, "Audit", "trial_balance", true)
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("write for task 2 waited on task 1")
	}

	close(release)
	require.NoError(t, <-slow)

	marks, err := svc.Get(ctx, 1)
	require.NoError(t, err)
	assert.True(t, marks["GST-gstr1"])
}
