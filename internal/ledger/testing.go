package ledger

// SeedBalance is a test helper that seeds the balance for a wallet when using
// the in-memory store.
func SeedBalance(s Store, walletID string, amount int64) {
	if mem, ok := s.(*inMemoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.balances[walletID] = amount
	}
}
