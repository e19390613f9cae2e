package app

import (
	"context"
	"sync"
	"testing"

	"github.com/transfa/banking-service/internal/domain"
)

func TestService_ProfileEditsDoNotUndoFreeze(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.openAccount(t, "Asha Rao", "asha@example.com")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			address := "12 Lake Road"
			if _, err := env.svc.UpdateProfile(ctx, account.AccountNumber, domain.UpdateProfileRequest{Address: &address}); err != nil {
				t.Errorf("UpdateProfile returned error: %v", err)
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := env.svc.Freeze(ctx, account.AccountNumber); err != nil {
			t.Errorf("Freeze returned error: %v", err)
		}
	}()
	wg.Wait()

	stored, err := env.repo.FindAccount(ctx, account.AccountNumber)
	if err != nil {
		t.Fatalf("FindAccount returned error: %v", err)
	}
	if !stored.Frozen {
		t.Fatalf("expected the account to stay frozen after concurrent profile edits")
	}
	if stored.Address != "12 Lake Road" {
		t.Fatalf("expected address to be saved, got %q", stored.Address)
	}
}

func TestService_CardSettingsDoNotUndoBlock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.openAccount(t, "Asha Rao", "asha@example.com")

	card, err := env.svc.RequestCard(ctx, account.AccountNumber)
	if err != nil {
		t.Fatalf("RequestCard returned error: %v", err)
	}
	if _, err := env.svc.ApproveCard(ctx, card.ID); err != nil {
		t.Fatalf("ApproveCard returned error: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(enabled bool) {
			defer wg.Done()
			if _, err := env.svc.ToggleCardOnline(ctx, account.AccountNumber, card.ID, enabled); err != nil {
				t.Errorf("ToggleCardOnline returned error: %v", err)
			}
		}(i%2 == 0)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := env.svc.BlockCard(ctx, account.AccountNumber, card.ID); err != nil {
			t.Errorf("BlockCard returned error: %v", err)
		}
	}()
	wg.Wait()

	stored, err := env.repo.FindCard(ctx, card.ID)
	if err != nil {
		t.Fatalf("FindCard returned error: %v", err)
	}
	if stored.Status != domain.CardBlocked {
		t.Fatalf("expected card to stay BLOCKED, got %s", stored.Status)
	}
}
