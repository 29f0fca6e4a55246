package application

import "sync"

// SessionCredentials holds the in-memory device session password. During a
// password change or an erase the prior value is retained so a failed
// attempt can be rolled back instead of stranding the session on a
// credential the device never accepted.
type SessionCredentials struct {
	lock     *sync.Mutex
	current  string
	previous string
	changing bool
}

func NewSessionCredentials() *SessionCredentials {
	return &SessionCredentials{lock: &sync.Mutex{}}
}

// Get returns the credential used to encrypt the next command.
func (c *SessionCredentials) Get() string {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.current
}

// Set installs a credential outside of any change attempt.
func (c *SessionCredentials) Set(password string) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.current = password
	c.previous = ""
	c.changing = false
}

// Clear drops the credential. Any change attempt in flight is forgotten.
func (c *SessionCredentials) Clear() {
	c.Set("")
}

// IsSet reports whether a credential is currently installed.
func (c *SessionCredentials) IsSet() bool {
	return c.Get() != ""
}

// BeginChange installs the candidate credential while retaining the prior
// one for rollback. An erase is a change to the empty credential.
func (c *SessionCredentials) BeginChange(candidate string) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.previous = c.current
	c.current = candidate
	c.changing = true
}

// CommitChange finalizes a successful change attempt.
func (c *SessionCredentials) CommitChange() {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.previous = ""
	c.changing = false
}

// RollbackChange restores the pre-attempt credential. A no-op when no
// change is in flight.
func (c *SessionCredentials) RollbackChange() {
	c.lock.Lock()
	defer c.lock.Unlock()
	if !c.changing {
		return
	}
	c.current = c.previous
	c.previous = ""
	c.changing = false
}
