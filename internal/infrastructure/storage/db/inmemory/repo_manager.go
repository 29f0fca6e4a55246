package inmemory

import (
	"github.com/shiftdevices/bitboxd/internal/core/domain"
	"github.com/shiftdevices/bitboxd/internal/core/ports"
)

type repoManager struct {
	sessionRepository *sessionRepository
}

// NewRepoManager returns a volatile implementation of ports.RepoManager,
// nothing survives a restart.
func NewRepoManager() ports.RepoManager {
	return &repoManager{
		sessionRepository: newSessionRepository(),
	}
}

func (rm *repoManager) SessionRepository() domain.SessionRepository {
	return rm.sessionRepository
}

func (rm *repoManager) Reset() {
	rm.sessionRepository.reset()
}

func (rm *repoManager) Close() {}
