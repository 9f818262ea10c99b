// Package accounts stores wallet account metadata: a label, an SS58 address,
// and the key scheme. Private key material never enters this package; it
// lives in the keystore.
package accounts

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/clad-sovereign/clad-mobile/internal/log"
	"github.com/clad-sovereign/clad-mobile/internal/storage"
	"github.com/clad-sovereign/clad-mobile/pkg/ss58"
	"github.com/clad-sovereign/clad-mobile/pkg/types"
)

// keyPrefix namespaces account records inside the wallet database.
var keyPrefix = []byte("account/")

var (
	// ErrDuplicateAddress is returned by Create when the address is
	// already registered.
	ErrDuplicateAddress = errors.New("accounts: address already exists")

	// ErrNotFound is returned when no account matches the address.
	ErrNotFound = errors.New("accounts: not found")
)

// Account is one stored account record.
type Account struct {
	Label     string        `json:"label"`
	Address   string        `json:"address"`
	KeyType   types.KeyType `json:"key_type"`
	CreatedAt time.Time     `json:"created_at"`
}

// EventKind distinguishes repository change events.
type EventKind string

const (
	// EventSnapshot carries the full account list, sent once on subscribe.
	EventSnapshot EventKind = "snapshot"
	// EventCreated carries a newly created account.
	EventCreated EventKind = "created"
	// EventDeleted carries a removed account.
	EventDeleted EventKind = "deleted"
)

// Event is one entry on the repository's change stream.
type Event struct {
	Kind     EventKind
	Account  Account   // set for created/deleted
	Snapshot []Account // set for snapshot
}

// Repository persists accounts in a key-value store and broadcasts changes.
type Repository struct {
	db storage.DB

	mu       sync.Mutex
	watchers map[int]chan Event
	nextID   int
}

// NewRepository creates a repository over the given database. The repository
// scopes itself to its own key prefix, so the database can be shared.
func NewRepository(db storage.DB) *Repository {
	return &Repository{
		db:       storage.NewPrefixDB(db, keyPrefix),
		watchers: make(map[int]chan Event),
	}
}

// Create registers a new account. The address must be a valid SS58 address
// not already present; otherwise ErrDuplicateAddress (or a validation error)
// is returned.
func (r *Repository) Create(label, address string, keyType types.KeyType) (Account, error) {
	if !ss58.IsValid(address) {
		return Account{}, fmt.Errorf("accounts: invalid address %q", address)
	}
	if !keyType.Valid() {
		return Account{}, fmt.Errorf("accounts: unknown key type %q", keyType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	exists, err := r.db.Has([]byte(address))
	if err != nil {
		return Account{}, fmt.Errorf("check address: %w", err)
	}
	if exists {
		return Account{}, ErrDuplicateAddress
	}

	acct := Account{
		Label:     label,
		Address:   address,
		KeyType:   keyType,
		CreatedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(acct)
	if err != nil {
		return Account{}, fmt.Errorf("marshal account: %w", err)
	}
	if err := r.db.Put([]byte(address), data); err != nil {
		return Account{}, fmt.Errorf("store account: %w", err)
	}

	log.Accounts.Info().Str("address", address).Str("label", label).Msg("account created")
	r.broadcast(Event{Kind: EventCreated, Account: acct})
	return acct, nil
}

// GetByAddress returns the account stored under an address.
func (r *Repository) GetByAddress(address string) (Account, error) {
	data, err := r.db.Get([]byte(address))
	if errors.Is(err, storage.ErrNotFound) {
		return Account{}, ErrNotFound
	}
	if err != nil {
		return Account{}, fmt.Errorf("load account: %w", err)
	}
	var acct Account
	if err := json.Unmarshal(data, &acct); err != nil {
		return Account{}, fmt.Errorf("parse account: %w", err)
	}
	return acct, nil
}

// Delete removes an account by address.
func (r *Repository) Delete(address string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	acct, err := r.GetByAddress(address)
	if err != nil {
		return err
	}
	if err := r.db.Delete([]byte(address)); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}

	log.Accounts.Info().Str("address", address).Msg("account deleted")
	r.broadcast(Event{Kind: EventDeleted, Account: acct})
	return nil
}

// All returns every stored account, ordered by creation time.
func (r *Repository) All() ([]Account, error) {
	var accts []Account
	err := r.db.ForEach(nil, func(key, value []byte) error {
		var acct Account
		if err := json.Unmarshal(value, &acct); err != nil {
			return fmt.Errorf("parse account %q: %w", key, err)
		}
		accts = append(accts, acct)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(accts, func(i, j int) bool {
		return accts[i].CreatedAt.Before(accts[j].CreatedAt)
	})
	return accts, nil
}

// Observe subscribes to repository changes. The channel first delivers a
// snapshot event with the current accounts, then one event per change.
// The returned cancel function must be called to release the subscription.
func (r *Repository) Observe() (<-chan Event, func(), error) {
	// Snapshot and registration happen under one lock so no change event
	// can fall between them.
	r.mu.Lock()
	snapshot, err := r.All()
	if err != nil {
		r.mu.Unlock()
		return nil, nil, err
	}
	id := r.nextID
	r.nextID++
	ch := make(chan Event, 16)
	r.watchers[id] = ch
	// The channel is fresh and buffered, so this send cannot block.
	ch <- Event{Kind: EventSnapshot, Snapshot: snapshot}
	r.mu.Unlock()

	cancel := func() {
		r.mu.Lock()
		if w, ok := r.watchers[id]; ok {
			delete(r.watchers, id)
			close(w)
		}
		r.mu.Unlock()
	}
	return ch, cancel, nil
}

// broadcast fans an event out to every watcher. Called with r.mu held.
// Watchers that fall behind lose events rather than block the repository.
func (r *Repository) broadcast(ev Event) {
	for _, ch := range r.watchers {
		select {
		case ch <- ev:
		default:
			log.Accounts.Warn().Str("kind", string(ev.Kind)).Msg("dropping event for slow observer")
		}
	}
}
