// Package store defines the persistence interface for the asylum stories server.
package store

import (
	"context"
	"iter"
	"time"

	"github.com/asylumproject/asylum-server/internal/domain"
)

// StoryFilter narrows story listings.
type StoryFilter struct {
	State          domain.StoryState // empty matches every state
	Status         domain.RecordStatus
	CreatorID      int64
	ExcludeTagIDs  []int64 // drop stories carrying any of these tags
	WithAggregates bool    // load map points and elements
}

// ElementFilter narrows element listings within a map point.
type ElementFilter struct {
	Kind     domain.ElementKind
	Archived bool // only ARCHIVED elements
}

// EventFilter narrows event listings.
type EventFilter struct {
	Usernames []string
	Since     *time.Time
	Limit     int
}

// ImportMode selects how restored rows treat existing ones.
type ImportMode int

const (
	// ImportReplace overwrites rows with the same key.
	ImportReplace ImportMode = iota
	// ImportKeepExisting skips rows whose key already exists.
	ImportKeepExisting
)

// Store defines every persistence operation the services need.
// Methods that mutate several tables are atomic on their own; callers
// compose multi-aggregate updates with WithinTx.
type Store interface {
	Close() error
	Ping(ctx context.Context) error

	// WithinTx runs fn in a transaction carried by the context. Nested calls
	// join the outer transaction.
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error

	// Reference data
	UpsertLanguage(ctx context.Context, l domain.Language) error
	GetLanguage(ctx context.Context, code string) (*domain.Language, error)
	ListLanguages(ctx context.Context) ([]domain.Language, error)
	UpsertCountry(ctx context.Context, c domain.Country) error
	GetCountry(ctx context.Context, code string) (*domain.Country, error)
	ListCountries(ctx context.Context) ([]domain.Country, error)

	// Stories
	CreateStory(ctx context.Context, s *domain.Story) error
	GetStory(ctx context.Context, id int64) (*domain.Story, error)
	SaveStory(ctx context.Context, s *domain.Story) error
	ListStories(ctx context.Context, filter StoryFilter) ([]*domain.Story, error)

	// Map points
	CreateMapPoint(ctx context.Context, mp *domain.MapPoint) error
	GetMapPoint(ctx context.Context, id int64) (*domain.MapPoint, error)
	SaveMapPoint(ctx context.Context, mp *domain.MapPoint) error
	DeleteMapPoint(ctx context.Context, id int64) error

	// Content elements
	CreateElement(ctx context.Context, e *domain.ContentElement) error
	GetElement(ctx context.Context, id int64) (*domain.ContentElement, error)
	UpdateElement(ctx context.Context, e *domain.ContentElement) error
	DeleteElement(ctx context.Context, id int64) error
	ListElements(ctx context.Context, mapPointID int64, filter ElementFilter) ([]*domain.ContentElement, error)
	ElementFileExists(ctx context.Context, mapPointID int64, fileName string) (bool, error)

	// Tags
	FindOrCreateTag(ctx context.Context, text string) (*domain.Tag, bool, error)
	GetTag(ctx context.Context, id int64) (*domain.Tag, error)
	UpdateTag(ctx context.Context, t *domain.Tag) error
	ListTags(ctx context.Context, status domain.RecordStatus) ([]*domain.Tag, error)

	// Users
	CreateUser(ctx context.Context, u *domain.User) error
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByLogin(ctx context.Context, usernameOrEmail string) (*domain.User, error)
	UpdateUser(ctx context.Context, u *domain.User) error
	ListUsers(ctx context.Context, status domain.RecordStatus) ([]*domain.User, error)
	CountUsers(ctx context.Context) (int, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	EmailExists(ctx context.Context, email string) (bool, error)

	// Auth sessions
	CreateSession(ctx context.Context, session *domain.Session) error
	GetSession(ctx context.Context, id string) (*domain.Session, error)
	GetSessionByRefreshToken(ctx context.Context, tokenHash string) (*domain.Session, error)
	UpdateSession(ctx context.Context, session *domain.Session) error
	DeleteSession(ctx context.Context, id string) error
	DeleteAllUserSessions(ctx context.Context, userID int64) error
	DeleteExpiredSessions(ctx context.Context) (int, error)

	// Event log
	RecordEvent(ctx context.Context, e *domain.Event) error
	ListEvents(ctx context.Context, filter EventFilter) ([]*domain.UserEvent, error)
	StoryTimeline(ctx context.Context) ([]domain.StoryTimelineEntry, error)

	// Shortened URLs
	CreateShortURL(ctx context.Context, u *domain.ShortURL) error
	GetShortURL(ctx context.Context, token string) (*domain.ShortURL, error)

	// Reports
	ElementCountsByKind(ctx context.Context) ([]domain.CountRow, error)
	CountStories(ctx context.Context) (int64, error)
	StoriesPerState(ctx context.Context) ([]domain.CountRow, error)
	StoriesPerLanguage(ctx context.Context) ([]domain.CountRow, error)
	StoriesPerCountry(ctx context.Context) ([]domain.StateCountRow, error)
	StoriesPerCurator(ctx context.Context) ([]domain.StateCountRow, error)
	StoragePerKind(ctx context.Context) ([]domain.StorageRow, error)
	UserTotals(ctx context.Context) (*domain.UserTotals, error)
	UsersPerLanguage(ctx context.Context) ([]domain.CountRow, error)

	// Backup streams
	StreamUsers(ctx context.Context) iter.Seq2[*domain.User, error]
	StreamTags(ctx context.Context) iter.Seq2[*domain.Tag, error]
	StreamStories(ctx context.Context) iter.Seq2[*domain.Story, error]
	StreamEvents(ctx context.Context) iter.Seq2[*domain.Event, error]
	StreamShortURLs(ctx context.Context) iter.Seq2[*domain.ShortURL, error]

	// Restore
	ClearContent(ctx context.Context) error
	ImportUser(ctx context.Context, u *domain.User, mode ImportMode) (bool, error)
	ImportTag(ctx context.Context, t *domain.Tag, mode ImportMode) (bool, error)
	ImportStory(ctx context.Context, s *domain.Story, mode ImportMode) (bool, error)
	ImportEvent(ctx context.Context, e *domain.Event, mode ImportMode) (bool, error)
	ImportShortURL(ctx context.Context, u *domain.ShortURL, mode ImportMode) (bool, error)
}
