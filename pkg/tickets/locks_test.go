package tickets

import (
	"sync"
	"testing"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestKeyedMutex(t *testing.T) {
	k := newKeyedMutex()

	counts := make(map[string]int)
	wg := new(sync.WaitGroup)
	for i := 0; i < 100; i++ {
		key := []string{"a", "b"}[i%2]
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock(key)
			counts[key]++
			unlock()
		}()
	}
	wg.Wait()

	require.Equal(t, 50, counts["a"])
	require.Equal(t, 50, counts["b"])
	require.Zero(t, k.size())
}

func TestLockUnlockOverwriteRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var before *discordgo.PermissionOverwrite
		if rapid.Bool().Draw(t, "exists") {
			allow := rapid.Int64().Draw(t, "allow")
			deny := rapid.Int64().Draw(t, "deny") &^ allow
			before = &discordgo.PermissionOverwrite{ID: "u", Type: discordgo.PermissionOverwriteTypeMember, Allow: allow, Deny: deny}
		}

		saved := SaveOverwrite(before)

		locked := LockOverwrite(before, "u")
		if locked.Allow&discordgo.PermissionSendMessages != 0 || locked.Deny&discordgo.PermissionSendMessages == 0 {
			t.Fatalf("locked overwrite still allows sending: %+v", locked)
		}

		after := RestoreOverwrite(saved, "u")
		switch {
		case before == nil && after != nil:
			t.Fatalf("round trip created an overwrite: %+v", after)
		case before != nil && (after == nil || *after != *before):
			t.Fatalf("round trip changed overwrite: %+v -> %+v", before, after)
		}
	})
}
