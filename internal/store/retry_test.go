package store

import (
	"context"
	"errors"
	"testing"
)

type busyCoder struct{}

func (busyCoder) Error() string { return "database busy" }
func (busyCoder) Code() int     { return sqliteBusyCode }

func TestRetryOnBusyRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := retryOnBusy(context.Background(), func() error {
		calls++
		if calls < 3 {
			return busyCoder{}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("retryOnBusy: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestRetryOnBusyStopsOnOtherErrors(t *testing.T) {
	calls := 0
	boom := errors.New("constraint failed")
	err := retryOnBusy(context.Background(), func() error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) || calls != 1 {
		t.Fatalf("expected single attempt returning boom, got %v after %d", err, calls)
	}
}

func TestRetryOnBusyGivesUp(t *testing.T) {
	calls := 0
	err := retryOnBusy(context.Background(), func() error {
		calls++
		return errors.New("database is locked")
	})
	if err == nil || calls != busyRetryAttempts {
		t.Fatalf("expected %d attempts and an error, got %d / %v", busyRetryAttempts, calls, err)
	}
}

func TestRetryOnBusyHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := retryOnBusy(ctx, func() error { return busyCoder{} })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
