package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/and161185/noteloom/internal/cell"
	"github.com/and161185/noteloom/internal/model"
	"github.com/gofrs/uuid/v5"
)

// Book applies journal operations to the profiles cell.
type Book struct {
	cell  *cell.Cell[model.ProfilesState]
	newID func() (string, error)
	now   func() time.Time
}

// NewBook returns a Book over c.
func NewBook(c *cell.Cell[model.ProfilesState]) *Book {
	return &Book{cell: c, newID: newUUID, now: time.Now}
}

func newUUID() (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	return id.String(), nil
}

// State returns the current profiles document.
func (b *Book) State() model.ProfilesState { return b.cell.Get() }

// Active returns the active profile, if any.
func (b *Book) Active() (model.Profile, bool) {
	st := b.cell.Get()
	if i := st.Active(); i >= 0 {
		return st.Profiles[i], true
	}
	return model.Profile{}, false
}

func (b *Book) apply(ctx context.Context, op func(model.ProfilesState) (model.ProfilesState, error)) error {
	return b.cell.Update(ctx, op)
}

// AddProfile creates an empty profile, makes it active and returns its id.
func (b *Book) AddProfile(ctx context.Context, name string) (string, error) {
	id, err := b.newID()
	if err != nil {
		return "", err
	}
	return id, b.apply(ctx, func(st model.ProfilesState) (model.ProfilesState, error) {
		return AddProfile(st, id, name)
	})
}

// RenameProfile renames profile id.
func (b *Book) RenameProfile(ctx context.Context, id, name string) error {
	return b.apply(ctx, func(st model.ProfilesState) (model.ProfilesState, error) {
		return RenameProfile(st, id, name)
	})
}

// DeleteProfile removes profile id.
func (b *Book) DeleteProfile(ctx context.Context, id string) error {
	return b.apply(ctx, func(st model.ProfilesState) (model.ProfilesState, error) {
		return DeleteProfile(st, id)
	})
}

// SwitchProfile activates profile id.
func (b *Book) SwitchProfile(ctx context.Context, id string) error {
	return b.apply(ctx, func(st model.ProfilesState) (model.ProfilesState, error) {
		return SwitchProfile(st, id)
	})
}

// MoveProfile reorders profile id to position to.
func (b *Book) MoveProfile(ctx context.Context, id string, to int) error {
	return b.apply(ctx, func(st model.ProfilesState) (model.ProfilesState, error) {
		return MoveProfile(st, id, to)
	})
}

// AddJournal creates a journal in the active profile and returns its id.
func (b *Book) AddJournal(ctx context.Context, name, defaultTemplateID string) (string, error) {
	id, err := b.newID()
	if err != nil {
		return "", err
	}
	j := model.Journal{ID: id, Name: name, DefaultTemplateID: defaultTemplateID}
	return id, b.apply(ctx, func(st model.ProfilesState) (model.ProfilesState, error) {
		return AddJournal(st, j)
	})
}

// RenameJournal renames journal id of the active profile.
func (b *Book) RenameJournal(ctx context.Context, id, name string) error {
	return b.apply(ctx, func(st model.ProfilesState) (model.ProfilesState, error) {
		a, err := active(&st)
		if err != nil {
			return st, err
		}
		i, err := journalIndex(a, id)
		if err != nil {
			return st, err
		}
		j := a.Journals[i]
		j.Name = name
		return UpdateJournal(st, j)
	})
}

// DeleteJournal removes journal id and its entries.
func (b *Book) DeleteJournal(ctx context.Context, id string) error {
	return b.apply(ctx, func(st model.ProfilesState) (model.ProfilesState, error) {
		return DeleteJournal(st, id)
	})
}

// AddEntry stores e with a new id, stamping CreatedAt when empty, and returns the id.
func (b *Book) AddEntry(ctx context.Context, e model.Entry) (string, error) {
	id, err := b.newID()
	if err != nil {
		return "", err
	}
	e.ID = id
	if e.CreatedAt == "" {
		e.CreatedAt = b.now().UTC().Format(time.RFC3339Nano)
	}
	return id, b.apply(ctx, func(st model.ProfilesState) (model.ProfilesState, error) {
		return AddEntry(st, e)
	})
}

// UpdateEntry replaces entry e.ID.
func (b *Book) UpdateEntry(ctx context.Context, e model.Entry) error {
	return b.apply(ctx, func(st model.ProfilesState) (model.ProfilesState, error) {
		return UpdateEntry(st, e)
	})
}

// DeleteEntry removes entry id.
func (b *Book) DeleteEntry(ctx context.Context, id string) error {
	return b.apply(ctx, func(st model.ProfilesState) (model.ProfilesState, error) {
		return DeleteEntry(st, id)
	})
}
