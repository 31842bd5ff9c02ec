// Package state provides the namespaced key-value façade the relay persists
// through. Logical keys are derived from stable identifiers by the owning
// modules; the manager hashes every logical key with keccak256 before it
// touches the backing store, so distinct key families can never collide on a
// shared prefix.
package state

import (
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"relayhub/codec"
	"relayhub/storage"
)

// Manager mediates all reads and writes of relay state.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func storeKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

// Put stores raw encoded bytes under the supplied logical key.
func (m *Manager) Put(key []byte, value []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("state: key must not be empty")
	}
	return m.db.Put(storeKey(key), value)
}

// Get retrieves the bytes stored under the supplied logical key. The boolean
// return value indicates whether the key existed.
func (m *Manager) Get(key []byte) ([]byte, bool, error) {
	if len(key) == 0 {
		return nil, false, fmt.Errorf("state: key must not be empty")
	}
	data, err := m.db.Get(storeKey(key))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Has reports whether the logical key exists.
func (m *Manager) Has(key []byte) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("state: key must not be empty")
	}
	return m.db.Has(storeKey(key))
}

// Delete removes the logical key. Deleting an absent key is a no-op.
func (m *Manager) Delete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("state: key must not be empty")
	}
	return m.db.Delete(storeKey(key))
}

// AppendID appends an identifier to the ordered id list stored under the key.
// Duplicates are ignored so indices stay deterministic under replay.
func (m *Manager) AppendID(key []byte, id string) error {
	ids, err := m.IDs(key)
	if err != nil {
		return err
	}
	for _, existing := range ids {
		if existing == id {
			return nil
		}
	}
	ids = append(ids, id)
	return m.putIDs(key, ids)
}

// RemoveID removes an identifier from the id list, preserving the order of
// the remaining entries. Removing an absent id is a no-op.
func (m *Manager) RemoveID(key []byte, id string) error {
	ids, err := m.IDs(key)
	if err != nil {
		return err
	}
	kept := ids[:0]
	for _, existing := range ids {
		if existing != id {
			kept = append(kept, existing)
		}
	}
	if len(kept) == len(ids) {
		return nil
	}
	if len(kept) == 0 {
		return m.Delete(key)
	}
	return m.putIDs(key, kept)
}

// IDs returns the ordered id list stored under the key, or an empty slice
// when the list was never written.
func (m *Manager) IDs(key []byte) ([]string, error) {
	data, ok, err := m.Get(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []string{}, nil
	}
	r := codec.NewReader(data)
	count, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, count)
	for i := uint32(0); i < count; i++ {
		id, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := r.Done(); err != nil {
		return nil, err
	}
	return ids, nil
}

func (m *Manager) putIDs(key []byte, ids []string) error {
	w := codec.NewWriter()
	w.WriteU32(uint32(len(ids)))
	for _, id := range ids {
		w.WriteString(id)
	}
	return m.Put(key, w.Bytes())
}
