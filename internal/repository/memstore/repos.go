package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/maykinmedia/open-vtb-sub000/internal/domain/lifecycle"
	"github.com/maykinmedia/open-vtb-sub000/internal/domain/model"
	"github.com/maykinmedia/open-vtb-sub000/internal/repository"
)

// cloneJSON копирует значение, полученное из encoding/json.
func cloneJSON(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneJSON(item)
		}
		return out
	default:
		return v
	}
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneJSON(v)
	}
	return out
}

// normalizeJSON приводит значение к виду после чтения из JSONB.
func normalizeJSON(m map[string]any) (map[string]any, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации JSON: %w", err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func cloneSlice[T any](s []T) []T {
	out := make([]T, len(s))
	copy(out, s)
	return out
}

// --- получатели ---

type ontvangers struct {
	v view
}

func (r ontvangers) Create(_ context.Context, o *model.BerichtOntvanger) error {
	return r.v.do(func(st *state) error {
		if _, ok := st.ontvangers[o.UUID]; ok {
			return fmt.Errorf("%w: получатель", repository.ErrConflict)
		}
		st.ontvangers[o.UUID] = record[model.BerichtOntvanger]{seq: st.next(), value: *o}
		return nil
	})
}

func (r ontvangers) GetByUUID(_ context.Context, id uuid.UUID) (*model.BerichtOntvanger, error) {
	var out *model.BerichtOntvanger
	err := r.v.do(func(st *state) error {
		rec, ok := st.ontvangers[id]
		if !ok {
			return repository.ErrNotFound
		}
		o := rec.value
		out = &o
		return nil
	})
	return out, err
}

func (r ontvangers) List(_ context.Context, limit, offset int) ([]*model.BerichtOntvanger, error) {
	var out []*model.BerichtOntvanger
	err := r.v.do(func(st *state) error {
		for _, o := range page(sorted(st.ontvangers, nil), limit, offset) {
			o := o
			out = append(out, &o)
		}
		return nil
	})
	return out, err
}

func (r ontvangers) Count(_ context.Context) (int, error) {
	var n int
	err := r.v.do(func(st *state) error {
		n = len(st.ontvangers)
		return nil
	})
	return n, err
}

func (r ontvangers) Update(_ context.Context, o *model.BerichtOntvanger) error {
	return r.v.do(func(st *state) error {
		rec, ok := st.ontvangers[o.UUID]
		if !ok {
			return repository.ErrNotFound
		}
		rec.value = *o
		st.ontvangers[o.UUID] = rec
		return nil
	})
}

func (r ontvangers) Delete(_ context.Context, id uuid.UUID) error {
	return r.v.do(func(st *state) error {
		if _, ok := st.ontvangers[id]; !ok {
			return repository.ErrNotFound
		}
		delete(st.ontvangers, id)
		for bid, rec := range st.berichten {
			if rec.value.OntvangerID == id {
				delete(st.berichten, bid)
			}
		}
		return nil
	})
}

// --- сообщения ---

type berichten struct {
	v   view
	now func() time.Time
}

func cloneBericht(b model.Bericht) *model.Bericht {
	b.Bijlagen = cloneSlice(b.Bijlagen)
	return &b
}

func (r berichten) Create(_ context.Context, b *model.Bericht) error {
	return r.v.do(func(st *state) error {
		if _, ok := st.berichten[b.UUID]; ok {
			return fmt.Errorf("%w: сообщение", repository.ErrConflict)
		}
		if _, ok := st.ontvangers[b.OntvangerID]; !ok {
			return fmt.Errorf("%w: сообщение", repository.ErrReference)
		}
		seen := map[string]bool{}
		for _, bijlage := range b.Bijlagen {
			if seen[bijlage.InformatieObject] {
				return fmt.Errorf("%w: вложение сообщения", repository.ErrConflict)
			}
			seen[bijlage.InformatieObject] = true
		}
		if b.Publicatiedatum.IsZero() {
			b.Publicatiedatum = r.now()
		}
		st.berichten[b.UUID] = record[model.Bericht]{seq: st.next(), value: *cloneBericht(*b)}
		return nil
	})
}

func (r berichten) GetByUUID(_ context.Context, id uuid.UUID) (*model.Bericht, error) {
	var out *model.Bericht
	err := r.v.do(func(st *state) error {
		rec, ok := st.berichten[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = cloneBericht(rec.value)
		return nil
	})
	return out, err
}

func berichtFilter(f repository.BerichtFilter) func(model.Bericht) bool {
	return func(b model.Bericht) bool {
		return f.Ontvanger == nil || b.OntvangerID == *f.Ontvanger
	}
}

func (r berichten) List(_ context.Context, f repository.BerichtFilter, limit, offset int) ([]*model.Bericht, error) {
	var out []*model.Bericht
	err := r.v.do(func(st *state) error {
		for _, b := range page(sorted(st.berichten, berichtFilter(f)), limit, offset) {
			out = append(out, cloneBericht(b))
		}
		return nil
	})
	return out, err
}

func (r berichten) Count(_ context.Context, f repository.BerichtFilter) (int, error) {
	var n int
	err := r.v.do(func(st *state) error {
		n = len(sorted(st.berichten, berichtFilter(f)))
		return nil
	})
	return n, err
}

// --- внешние задачи ---

type taken struct {
	v view
}

func cloneTaak(t model.ExterneTaak) *model.ExterneTaak {
	t.Details = cloneMap(t.Details)
	return &t
}

func taakFilter(f model.ExterneTaakFilter) func(model.ExterneTaak) bool {
	return func(t model.ExterneTaak) bool {
		if f.TaakSoort != nil && t.TaakSoort != *f.TaakSoort {
			return false
		}
		if f.Status != nil && t.Status != *f.Status {
			return false
		}
		return true
	}
}

func (r taken) store(st *state, t *model.ExterneTaak, seq int64) error {
	details, err := normalizeJSON(t.Details)
	if err != nil {
		return err
	}
	stored := *t
	stored.Details = details
	st.taken[t.UUID] = record[model.ExterneTaak]{seq: seq, value: stored}
	return nil
}

func (r taken) Create(_ context.Context, t *model.ExterneTaak) error {
	return r.v.do(func(st *state) error {
		if _, ok := st.taken[t.UUID]; ok {
			return fmt.Errorf("%w: внешняя задача", repository.ErrConflict)
		}
		return r.store(st, t, st.next())
	})
}

func (r taken) GetByUUID(_ context.Context, id uuid.UUID) (*model.ExterneTaak, error) {
	var out *model.ExterneTaak
	err := r.v.do(func(st *state) error {
		rec, ok := st.taken[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = cloneTaak(rec.value)
		return nil
	})
	return out, err
}

func (r taken) List(_ context.Context, f model.ExterneTaakFilter, limit, offset int) ([]*model.ExterneTaak, error) {
	var out []*model.ExterneTaak
	err := r.v.do(func(st *state) error {
		for _, t := range page(sorted(st.taken, taakFilter(f)), limit, offset) {
			out = append(out, cloneTaak(t))
		}
		return nil
	})
	return out, err
}

func (r taken) Count(_ context.Context, f model.ExterneTaakFilter) (int, error) {
	var n int
	err := r.v.do(func(st *state) error {
		n = len(sorted(st.taken, taakFilter(f)))
		return nil
	})
	return n, err
}

func (r taken) Update(_ context.Context, t *model.ExterneTaak) error {
	return r.v.do(func(st *state) error {
		rec, ok := st.taken[t.UUID]
		if !ok {
			return repository.ErrNotFound
		}
		return r.store(st, t, rec.seq)
	})
}

func (r taken) Delete(_ context.Context, id uuid.UUID) error {
	return r.v.do(func(st *state) error {
		if _, ok := st.taken[id]; !ok {
			return repository.ErrNotFound
		}
		delete(st.taken, id)
		return nil
	})
}

// --- типы запросов ---

type verzoekTypen struct {
	v   view
	now func() time.Time
}

// withVersions заполняет номера версий типа по возрастанию.
func withVersions(st *state, t model.VerzoekType) *model.VerzoekType {
	numbers := []int{}
	for _, v := range sorted(st.versions, func(v model.VerzoekTypeVersion) bool { return v.VerzoekTypeID == t.UUID }) {
		numbers = append(numbers, v.Version)
	}
	sort.Ints(numbers)
	t.Versions = numbers
	return &t
}

func (r verzoekTypen) Create(_ context.Context, t *model.VerzoekType) error {
	return r.v.do(func(st *state) error {
		if _, ok := st.types[t.UUID]; ok {
			return fmt.Errorf("%w: тип запроса", repository.ErrConflict)
		}
		now := r.now()
		t.AangemaaktOp, t.GewijzigdOp = now, now
		t.Versions = []int{}
		st.types[t.UUID] = record[model.VerzoekType]{seq: st.next(), value: *t}
		return nil
	})
}

func (r verzoekTypen) GetByUUID(_ context.Context, id uuid.UUID) (*model.VerzoekType, error) {
	var out *model.VerzoekType
	err := r.v.do(func(st *state) error {
		rec, ok := st.types[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = withVersions(st, rec.value)
		return nil
	})
	return out, err
}

func (r verzoekTypen) Lock(_ context.Context, id uuid.UUID) error {
	return r.v.do(func(st *state) error {
		if _, ok := st.types[id]; !ok {
			return repository.ErrNotFound
		}
		return nil
	})
}

func (r verzoekTypen) List(_ context.Context, limit, offset int) ([]*model.VerzoekType, error) {
	var out []*model.VerzoekType
	err := r.v.do(func(st *state) error {
		for _, t := range page(sorted(st.types, nil), limit, offset) {
			out = append(out, withVersions(st, t))
		}
		return nil
	})
	return out, err
}

func (r verzoekTypen) Count(_ context.Context) (int, error) {
	var n int
	err := r.v.do(func(st *state) error {
		n = len(st.types)
		return nil
	})
	return n, err
}

func (r verzoekTypen) Update(_ context.Context, t *model.VerzoekType) error {
	return r.v.do(func(st *state) error {
		rec, ok := st.types[t.UUID]
		if !ok {
			return repository.ErrNotFound
		}
		t.AangemaaktOp = rec.value.AangemaaktOp
		t.GewijzigdOp = r.now()
		rec.value = *t
		st.types[t.UUID] = rec
		return nil
	})
}

func (r verzoekTypen) Delete(_ context.Context, id uuid.UUID) error {
	return r.v.do(func(st *state) error {
		if _, ok := st.types[id]; !ok {
			return repository.ErrNotFound
		}
		for _, rec := range st.verzoeken {
			if rec.value.VerzoekTypeID == id {
				return repository.ErrProtected
			}
		}
		delete(st.types, id)
		for key := range st.versions {
			if key.typeID == id {
				delete(st.versions, key)
			}
		}
		return nil
	})
}

// --- версии ---

type versions struct {
	v   view
	now func() time.Time
}

func cloneVersion(v model.VerzoekTypeVersion) *model.VerzoekTypeVersion {
	v.AanvraagGegevensSchema = json.RawMessage(cloneSlice(v.AanvraagGegevensSchema))
	v.BijlageTypen = cloneSlice(v.BijlageTypen)
	return &v
}

func checkBijlageTypen(types []model.BijlageType) error {
	seen := map[string]bool{}
	for _, bt := range types {
		if seen[bt.InformatieObjecttype] {
			return fmt.Errorf("%w: тип вложения", repository.ErrConflict)
		}
		seen[bt.InformatieObjecttype] = true
	}
	return nil
}

func (r versions) NextVersion(_ context.Context, typeID uuid.UUID) (int, error) {
	next := 1
	err := r.v.do(func(st *state) error {
		for key := range st.versions {
			if key.typeID == typeID && key.version >= next {
				next = key.version + 1
			}
		}
		return nil
	})
	return next, err
}

func (r versions) Create(_ context.Context, v *model.VerzoekTypeVersion) error {
	return r.v.do(func(st *state) error {
		if _, ok := st.types[v.VerzoekTypeID]; !ok {
			return fmt.Errorf("%w: версия типа запроса", repository.ErrReference)
		}
		key := versionKey{v.VerzoekTypeID, v.Version}
		if _, ok := st.versions[key]; ok {
			return fmt.Errorf("%w: версия типа запроса", repository.ErrConflict)
		}
		if err := checkBijlageTypen(v.BijlageTypen); err != nil {
			return err
		}
		if len(v.AanvraagGegevensSchema) == 0 {
			v.AanvraagGegevensSchema = json.RawMessage(`{}`)
		}
		if v.BijlageTypen == nil {
			v.BijlageTypen = []model.BijlageType{}
		}
		now := r.now()
		v.AangemaaktOp, v.GewijzigdOp = now, now
		st.versions[key] = record[model.VerzoekTypeVersion]{seq: st.next(), value: *cloneVersion(*v)}
		return nil
	})
}

func (r versions) Get(_ context.Context, typeID uuid.UUID, version int) (*model.VerzoekTypeVersion, error) {
	var out *model.VerzoekTypeVersion
	err := r.v.do(func(st *state) error {
		rec, ok := st.versions[versionKey{typeID, version}]
		if !ok {
			return repository.ErrNotFound
		}
		out = cloneVersion(rec.value)
		return nil
	})
	return out, err
}

func (r versions) List(_ context.Context, typeID uuid.UUID) ([]*model.VerzoekTypeVersion, error) {
	out := []*model.VerzoekTypeVersion{}
	err := r.v.do(func(st *state) error {
		list := sorted(st.versions, func(v model.VerzoekTypeVersion) bool { return v.VerzoekTypeID == typeID })
		sort.Slice(list, func(i, j int) bool { return list[i].Version < list[j].Version })
		for _, v := range list {
			out = append(out, cloneVersion(v))
		}
		return nil
	})
	return out, err
}

func (r versions) Update(_ context.Context, v *model.VerzoekTypeVersion) error {
	return r.v.do(func(st *state) error {
		key := versionKey{v.VerzoekTypeID, v.Version}
		rec, ok := st.versions[key]
		if !ok {
			return repository.ErrNotFound
		}
		if err := checkBijlageTypen(v.BijlageTypen); err != nil {
			return err
		}
		v.AangemaaktOp = rec.value.AangemaaktOp
		v.GewijzigdOp = r.now()
		if v.BijlageTypen == nil {
			v.BijlageTypen = []model.BijlageType{}
		}
		rec.value = *cloneVersion(*v)
		st.versions[key] = rec
		return nil
	})
}

func (r versions) Delete(_ context.Context, typeID uuid.UUID, version int) error {
	return r.v.do(func(st *state) error {
		key := versionKey{typeID, version}
		if _, ok := st.versions[key]; !ok {
			return repository.ErrNotFound
		}
		delete(st.versions, key)
		return nil
	})
}

func (r versions) ExpirePublished(_ context.Context, typeID uuid.UUID, except int, today time.Time) (int64, error) {
	var n int64
	err := r.v.do(func(st *state) error {
		for key, rec := range st.versions {
			v := rec.value
			if key.typeID != typeID || key.version == except || v.Status != lifecycle.Published {
				continue
			}
			if v.EindeGeldigheid != nil && !v.EindeGeldigheid.After(today) {
				continue
			}
			end := today
			v.EindeGeldigheid = &end
			v.GewijzigdOp = r.now()
			rec.value = v
			st.versions[key] = rec
			n++
		}
		return nil
	})
	return n, err
}

// --- запросы ---

type verzoeken struct {
	v view
}

func cloneVerzoek(v model.Verzoek) *model.Verzoek {
	v.AanvraagGegevens = cloneMap(v.AanvraagGegevens)
	v.Bijlagen = cloneSlice(v.Bijlagen)
	if v.Geometrie != nil {
		v.Geometrie = json.RawMessage(cloneSlice(v.Geometrie))
	}
	return &v
}

func verzoekFilter(f model.VerzoekFilter) func(model.Verzoek) bool {
	return func(v model.Verzoek) bool {
		return f.VerzoekTypeID == nil || v.VerzoekTypeID == *f.VerzoekTypeID
	}
}

func (r verzoeken) store(st *state, v *model.Verzoek, seq int64) error {
	if _, ok := st.types[v.VerzoekTypeID]; !ok {
		return fmt.Errorf("%w: запрос", repository.ErrReference)
	}
	gegevens, err := normalizeJSON(v.AanvraagGegevens)
	if err != nil {
		return err
	}
	stored := *cloneVerzoek(*v)
	stored.AanvraagGegevens = gegevens
	st.verzoeken[v.UUID] = record[model.Verzoek]{seq: seq, value: stored}
	return nil
}

func (r verzoeken) Create(_ context.Context, v *model.Verzoek) error {
	return r.v.do(func(st *state) error {
		if _, ok := st.verzoeken[v.UUID]; ok {
			return fmt.Errorf("%w: запрос", repository.ErrConflict)
		}
		return r.store(st, v, st.next())
	})
}

func (r verzoeken) GetByUUID(_ context.Context, id uuid.UUID) (*model.Verzoek, error) {
	var out *model.Verzoek
	err := r.v.do(func(st *state) error {
		rec, ok := st.verzoeken[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = cloneVerzoek(rec.value)
		return nil
	})
	return out, err
}

func (r verzoeken) List(_ context.Context, f model.VerzoekFilter, limit, offset int) ([]*model.Verzoek, error) {
	var out []*model.Verzoek
	err := r.v.do(func(st *state) error {
		for _, v := range page(sorted(st.verzoeken, verzoekFilter(f)), limit, offset) {
			out = append(out, cloneVerzoek(v))
		}
		return nil
	})
	return out, err
}

func (r verzoeken) Count(_ context.Context, f model.VerzoekFilter) (int, error) {
	var n int
	err := r.v.do(func(st *state) error {
		n = len(sorted(st.verzoeken, verzoekFilter(f)))
		return nil
	})
	return n, err
}

func (r verzoeken) Update(_ context.Context, v *model.Verzoek) error {
	return r.v.do(func(st *state) error {
		rec, ok := st.verzoeken[v.UUID]
		if !ok {
			return repository.ErrNotFound
		}
		return r.store(st, v, rec.seq)
	})
}

func (r verzoeken) Delete(_ context.Context, id uuid.UUID) error {
	return r.v.do(func(st *state) error {
		if _, ok := st.verzoeken[id]; !ok {
			return repository.ErrNotFound
		}
		delete(st.verzoeken, id)
		return nil
	})
}

// --- ключи доступа ---

type tokens struct {
	v   view
	now func() time.Time
}

func (r tokens) Create(_ context.Context, t *model.APIToken) error {
	return r.v.do(func(st *state) error {
		for _, rec := range st.tokens {
			if rec.value.Naam == t.Naam || rec.value.Prefix == t.Prefix {
				return fmt.Errorf("%w: ключ с таким именем уже существует", repository.ErrConflict)
			}
		}
		t.AangemaaktOp = r.now()
		t.Hash = cloneSlice(t.Hash)
		st.tokens[t.ID] = record[model.APIToken]{seq: st.next(), value: *t}
		return nil
	})
}

func (r tokens) GetByPrefix(_ context.Context, prefix string) (*model.APIToken, error) {
	var out *model.APIToken
	err := r.v.do(func(st *state) error {
		for _, rec := range st.tokens {
			if rec.value.Prefix == prefix {
				t := rec.value
				out = &t
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

func (r tokens) List(_ context.Context, active *bool) ([]*model.APIToken, error) {
	var out []*model.APIToken
	err := r.v.do(func(st *state) error {
		keep := func(t model.APIToken) bool { return active == nil || t.Actief == *active }
		for _, t := range sorted(st.tokens, keep) {
			t := t
			out = append(out, &t)
		}
		return nil
	})
	return out, err
}

func (r tokens) Deactivate(_ context.Context, nameOrPrefix string) error {
	return r.v.do(func(st *state) error {
		found := false
		for id, rec := range st.tokens {
			if rec.value.Naam == nameOrPrefix || rec.value.Prefix == nameOrPrefix {
				rec.value.Actief = false
				st.tokens[id] = rec
				found = true
			}
		}
		if !found {
			return repository.ErrNotFound
		}
		return nil
	})
}

func (r tokens) TouchLastUsed(_ context.Context, id uuid.UUID) error {
	return r.v.do(func(st *state) error {
		rec, ok := st.tokens[id]
		if !ok {
			return nil
		}
		now := r.now()
		rec.value.LaatstGebruiktOp = &now
		st.tokens[id] = rec
		return nil
	})
}
