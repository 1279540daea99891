package workflow

import (
	"strings"
	"sync"
)

// WalletLocks serializes read-modify-write cycles on each wallet's
// asset list. The zero value is ready to use.
type WalletLocks struct {
	locks sync.Map
}

// Lock locks the wallet's list and returns the matching unlock func.
// A nil *WalletLocks does no locking.
func (w *WalletLocks) Lock(walletAddress string) func() {
	if w == nil {
		return func() {}
	}
	value, _ := w.locks.LoadOrStore(strings.ToLower(walletAddress), &sync.Mutex{})
	mutex := value.(*sync.Mutex)
	mutex.Lock()
	return mutex.Unlock
}
