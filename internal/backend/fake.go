package backend

import (
	"context"
	"sync"
)

// FakeIdentity is an in-memory Identity implementation for tests and
// local development.
type FakeIdentity struct {
	mu       sync.Mutex
	sessions map[string]*Session
	secrets  map[string]string
	users    map[string]*UserProfile
	touched  []string

	// Err, when set, is returned by every call.
	Err error
}

// NewFakeIdentity creates an empty fake identity backend.
func NewFakeIdentity() *FakeIdentity {
	return &FakeIdentity{
		sessions: make(map[string]*Session),
		secrets:  make(map[string]string),
		users:    make(map[string]*UserProfile),
	}
}

// AddSession registers a session with its secret.
func (f *FakeIdentity) AddSession(secret string, session *Session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[session.SessionID] = session
	f.secrets[session.SessionID] = secret
}

// AddUser registers a user profile.
func (f *FakeIdentity) AddUser(userID string, profile *UserProfile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[userID] = profile
}

// Touched returns the session IDs whose activity was touched, in order.
func (f *FakeIdentity) Touched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.touched...)
}

// AuthenticateSession implements Identity.
func (f *FakeIdentity) AuthenticateSession(_ context.Context, sessionID, secret string) (*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	session, ok := f.sessions[sessionID]
	if !ok || f.secrets[sessionID] != secret {
		return nil, ErrSessionNotFound
	}
	clone := *session
	return &clone, nil
}

// LookupUser implements Identity.
func (f *FakeIdentity) LookupUser(_ context.Context, userID string) (*UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	profile, ok := f.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	clone := *profile
	return &clone, nil
}

// TouchSessionActivity implements Identity.
func (f *FakeIdentity) TouchSessionActivity(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.touched = append(f.touched, sessionID)
	return nil
}

// FakeInstallations is an in-memory Installations implementation.
type FakeInstallations struct {
	mu            sync.Mutex
	unsupported   map[string]VersionRequirement
	checked       []string
	supportsAllBy bool

	// Err, when set, is returned by every call.
	Err error
}

// NewFakeInstallations creates a fake that supports every installation.
func NewFakeInstallations() *FakeInstallations {
	return &FakeInstallations{
		unsupported:   make(map[string]VersionRequirement),
		supportsAllBy: true,
	}
}

// MarkUnsupported marks an installation as running an unsupported version.
func (f *FakeInstallations) MarkUnsupported(installationID string, requirement VersionRequirement) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsupported[installationID] = requirement
}

// Checked returns the installation IDs whose version was checked, in order.
func (f *FakeInstallations) Checked() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.checked...)
}

// CheckVersion implements Installations.
func (f *FakeInstallations) CheckVersion(_ context.Context, installationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.checked = append(f.checked, installationID)
	if requirement, ok := f.unsupported[installationID]; ok {
		return &UnsupportedVersionError{
			InstallationID: installationID,
			Requirement:    requirement,
		}
	}
	return nil
}

// FakeCounterparties is an in-memory Counterparties implementation.
type FakeCounterparties struct {
	mu             sync.Mutex
	counterparties map[string]*Counterparty

	// Err, when set, is returned by every call.
	Err error
}

// NewFakeCounterparties creates an empty fake counterparty backend.
func NewFakeCounterparties() *FakeCounterparties {
	return &FakeCounterparties{
		counterparties: make(map[string]*Counterparty),
	}
}

// Add registers a counterparty record.
func (f *FakeCounterparties) Add(counterparty *Counterparty) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counterparties[counterparty.CounterpartyID] = counterparty
}

// Lookup implements Counterparties.
func (f *FakeCounterparties) Lookup(_ context.Context, counterpartyID string) (*Counterparty, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	counterparty, ok := f.counterparties[counterpartyID]
	if !ok {
		return nil, ErrCounterpartyNotFound
	}
	clone := *counterparty
	return &clone, nil
}

// Interface assertions for the fakes.
var (
	_ Identity       = (*FakeIdentity)(nil)
	_ Installations  = (*FakeInstallations)(nil)
	_ Counterparties = (*FakeCounterparties)(nil)
)
