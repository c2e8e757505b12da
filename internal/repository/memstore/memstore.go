// Пакет memstore — хранилище в памяти с семантикой repository.Store.
// Используется в тестах сервисов и HTTP-обработчиков: повторяет
// внешние ключи, каскады и ограничения уникальности схемы PostgreSQL.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/maykinmedia/open-vtb-sub000/internal/domain/model"
	"github.com/maykinmedia/open-vtb-sub000/internal/repository"
)

type versionKey struct {
	typeID  uuid.UUID
	version int
}

type record[T any] struct {
	seq   int64
	value T
}

// state — содержимое хранилища. Значения хранятся копиями.
type state struct {
	seq        int64
	ontvangers map[uuid.UUID]record[model.BerichtOntvanger]
	berichten  map[uuid.UUID]record[model.Bericht]
	taken      map[uuid.UUID]record[model.ExterneTaak]
	types      map[uuid.UUID]record[model.VerzoekType]
	versions   map[versionKey]record[model.VerzoekTypeVersion]
	verzoeken  map[uuid.UUID]record[model.Verzoek]
	tokens     map[uuid.UUID]record[model.APIToken]
}

func newState() *state {
	return &state{
		ontvangers: map[uuid.UUID]record[model.BerichtOntvanger]{},
		berichten:  map[uuid.UUID]record[model.Bericht]{},
		taken:      map[uuid.UUID]record[model.ExterneTaak]{},
		types:      map[uuid.UUID]record[model.VerzoekType]{},
		versions:   map[versionKey]record[model.VerzoekTypeVersion]{},
		verzoeken:  map[uuid.UUID]record[model.Verzoek]{},
		tokens:     map[uuid.UUID]record[model.APIToken]{},
	}
}

func (s *state) next() int64 {
	s.seq++
	return s.seq
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *state) clone() *state {
	return &state{
		seq:        s.seq,
		ontvangers: copyMap(s.ontvangers),
		berichten:  copyMap(s.berichten),
		taken:      copyMap(s.taken),
		types:      copyMap(s.types),
		versions:   copyMap(s.versions),
		verzoeken:  copyMap(s.verzoeken),
		tokens:     copyMap(s.tokens),
	}
}

// sorted возвращает значения в порядке вставки.
func sorted[K comparable, T any](m map[K]record[T], keep func(T) bool) []T {
	recs := make([]record[T], 0, len(m))
	for _, r := range m {
		if keep == nil || keep(r.value) {
			recs = append(recs, r)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].seq < recs[j].seq })
	out := make([]T, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.value)
	}
	return out
}

// page применяет limit/offset.
func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit >= 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// view — доступ к состоянию: под мьютексом хранилища или внутри транзакции.
type view interface {
	do(fn func(st *state) error) error
}

// Store — repository.Store в памяти.
type Store struct {
	mu    sync.Mutex
	st    *state
	now   func() time.Time
	repos *repository.Repositories
}

var _ repository.Store = (*Store)(nil)

// New создаёт пустое хранилище.
func New() *Store {
	s := &Store{st: newState(), now: time.Now}
	s.repos = newRepositories(storeView{s: s}, s.clock)
	return s
}

// SetClock подменяет источник времени для полей aangemaaktOp/gewijzigdOp.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

func (s *Store) clock() time.Time {
	return s.now().UTC()
}

// Repos возвращает репозитории вне транзакции.
func (s *Store) Repos() *repository.Repositories {
	return s.repos
}

// InTx выполняет fn над копией состояния и публикует её при успехе.
// Транзакции сериализуются.
func (s *Store) InTx(ctx context.Context, fn func(r *repository.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &txView{st: s.st.clone()}
	if err := fn(newRepositories(tx, s.clock)); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.st = tx.st
	return nil
}

type storeView struct {
	s *Store
}

func (v storeView) do(fn func(st *state) error) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	return fn(v.s.st)
}

type txView struct {
	st *state
}

func (v *txView) do(fn func(st *state) error) error {
	return fn(v.st)
}

func newRepositories(v view, now func() time.Time) *repository.Repositories {
	return &repository.Repositories{
		Ontvangers:   ontvangers{v: v},
		Berichten:    berichten{v: v, now: now},
		Taken:        taken{v: v},
		VerzoekTypen: verzoekTypen{v: v, now: now},
		Versions:     versions{v: v, now: now},
		Verzoeken:    verzoeken{v: v},
		Tokens:       tokens{v: v, now: now},
	}
}
