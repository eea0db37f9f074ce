package stopboard

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"tidbyt.dev/stopboard/parse"
	"tidbyt.dev/stopboard/storage"
)

var ErrNoTimetable = errors.New("no timetable loaded")

// Manager keeps the timetable used by the board up to date with the
// file it was read from.
type Manager struct {
	PerDirection int
	NextDay      bool

	storage storage.Storage
	static  *Static
}

// Creates a new Manager of timetable data, on top of the given
// storage.
func NewManager(s storage.Storage) *Manager {
	return &Manager{
		PerDirection: DefaultPerDirection,
		storage:      s,
	}
}

// Returns the most recently loaded timetable.
func (m *Manager) Static() (*Static, error) {
	if m.static == nil {
		return nil, ErrNoTimetable
	}
	return m.static, nil
}

// Loads the timetable at path.
//
// The file is only parsed if its content hash differs from that of
// the timetable currently loaded. Once a new timetable is in place,
// the previous one is dropped from storage.
//
// If loading fails and a timetable was loaded previously, the error
// is logged and the previous timetable is returned. An error is only
// returned when nothing has been loaded yet.
func (m *Manager) Load(path string) (*Static, error) {
	static, err := m.load(path)
	if err != nil {
		if m.static == nil {
			return nil, err
		}
		log.Warn().Err(err).
			Str("path", path).
			Str("hash", m.static.Metadata.Hash).
			Msg("Timetable reload failed, keeping previous")
		return m.static, nil
	}

	return static, nil
}

func (m *Manager) load(path string) (*Static, error) {
	src, err := parse.ReadSource(path)
	if err != nil {
		return nil, err
	}

	if m.static != nil && m.static.Metadata.Hash == src.Hash {
		// Hash exists. Nothing to do.
		return m.static, nil
	}

	writer, err := m.storage.GetWriter(src.Hash)
	if err != nil {
		return nil, fmt.Errorf("getting writer: %w", err)
	}

	metadata, err := parse.ParseSource(writer, src)
	if err != nil {
		writer.Close()
		return nil, m.discard(src.Hash, fmt.Errorf("parsing %s: %w", path, err))
	}

	reader, err := m.storage.GetReader(src.Hash)
	if err != nil {
		return nil, m.discard(src.Hash, fmt.Errorf("getting reader: %w", err))
	}

	static, err := NewStatic(reader, metadata)
	if err != nil {
		return nil, m.discard(src.Hash, fmt.Errorf("creating static: %w", err))
	}
	static.PerDirection = m.PerDirection
	static.NextDay = m.NextDay

	if m.static != nil {
		old := m.static.Metadata.Hash
		if err := m.storage.DeleteFeed(old); err != nil {
			log.Warn().Err(err).Str("hash", old).Msg("Dropping previous timetable")
		}
	}

	log.Info().
		Str("path", path).
		Str("hash", src.Hash).
		Int("stop_times", metadata.StopTimeCount).
		Str("timezone", metadata.Timezone).
		Msg("Timetable loaded")

	m.static = static
	return static, nil
}

// Drops a feed that failed to load, returning err along with any
// error from the deletion.
func (m *Manager) discard(hash string, err error) error {
	if delErr := m.storage.DeleteFeed(hash); delErr != nil {
		return errors.Join(err, fmt.Errorf("deleting feed: %w", delErr))
	}
	return err
}
