package contest

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/PACTF/pactf/internal/config"
	"github.com/PACTF/pactf/internal/grader"
	"github.com/PACTF/pactf/internal/pubsub"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
)

// Engine implements the contest core: window resolution, timer lifecycle,
// dependency unlocking, flag grading, content formatting and the scoreboard.
// All state lives in the database; the engine itself only holds wiring. Every
// method takes the acting team/competitor and window explicitly.
type Engine struct {
	db      *gorm.DB
	cfg     *config.Config
	clock   clockwork.Clock
	scripts grader.Loader
	boards  *boardCache
	broker  *pubsub.Broker
}

func New(db *gorm.DB, cfg *config.Config, clock clockwork.Clock, scripts grader.Loader, broker *pubsub.Broker) *Engine {
	return &Engine{
		db:      db,
		cfg:     cfg,
		clock:   clock,
		scripts: scripts,
		boards:  newBoardCache(cfg.BoardTTL(), clock),
		broker:  broker,
	}
}

// DB exposes the underlying handle for callers that compose engine calls with
// their own writes in one transaction.
func (e *Engine) DB() *gorm.DB {
	return e.db
}

// TeamKey derives the opaque per-team key handed to grading and generator
// scripts. It must be stable across calls and not reversible to the team id.
func (e *Engine) TeamKey(teamID uint) int64 {
	data := fmt.Sprintf("%d|%s|%s", teamID, e.cfg.Contest.ProblemSalt, e.cfg.Contest.ServerSecret)
	sum := sha256.Sum256([]byte(data))
	return int64(binary.BigEndian.Uint64(sum[:8]) >> 1)
}
