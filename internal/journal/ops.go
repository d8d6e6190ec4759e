// Package journal edits the profiles document: profiles, journals and entries.
//
// The functions here are pure: they take a state and return the next one. Book applies
// them to a cell.
package journal

import (
	"fmt"
	"strings"

	"github.com/and161185/noteloom/internal/errs"
	"github.com/and161185/noteloom/internal/model"
)

func profileIndex(st model.ProfilesState, id string) (int, error) {
	for i, p := range st.Profiles {
		if p.ID == id {
			return i, nil
		}
	}
	return -1, fmt.Errorf("profile %q: %w", id, errs.ErrNotFound)
}

func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("empty name: %w", errs.ErrInvalid)
	}
	return name, nil
}

// AddProfile appends an empty profile and makes it active.
func AddProfile(st model.ProfilesState, id, name string) (model.ProfilesState, error) {
	name, err := cleanName(name)
	if err != nil {
		return st, err
	}
	st.Profiles = append(st.Profiles, model.Profile{ID: id, Name: name, Data: model.EmptyAppState()})
	st.ActiveProfileID = &id
	return st, nil
}

// RenameProfile renames profile id.
func RenameProfile(st model.ProfilesState, id, name string) (model.ProfilesState, error) {
	name, err := cleanName(name)
	if err != nil {
		return st, err
	}
	i, err := profileIndex(st, id)
	if err != nil {
		return st, err
	}
	st.Profiles[i].Name = name
	return st, nil
}

// DeleteProfile removes profile id. Deleting the active profile activates the first
// remaining one; the last profile cannot be deleted.
func DeleteProfile(st model.ProfilesState, id string) (model.ProfilesState, error) {
	i, err := profileIndex(st, id)
	if err != nil {
		return st, err
	}
	if len(st.Profiles) == 1 {
		return st, errs.ErrLastProfile
	}
	st.Profiles = append(st.Profiles[:i:i], st.Profiles[i+1:]...)
	if st.ActiveID() == id {
		next := st.Profiles[0].ID
		st.ActiveProfileID = &next
	}
	return st, nil
}

// SwitchProfile makes profile id active.
func SwitchProfile(st model.ProfilesState, id string) (model.ProfilesState, error) {
	if _, err := profileIndex(st, id); err != nil {
		return st, err
	}
	st.ActiveProfileID = &id
	return st, nil
}

// MoveProfile moves profile id to position to, clamped to the list bounds.
func MoveProfile(st model.ProfilesState, id string, to int) (model.ProfilesState, error) {
	i, err := profileIndex(st, id)
	if err != nil {
		return st, err
	}
	to = max(0, min(to, len(st.Profiles)-1))
	p := st.Profiles[i]
	rest := append(st.Profiles[:i:i], st.Profiles[i+1:]...)
	st.Profiles = append(rest[:to:to], append([]model.Profile{p}, rest[to:]...)...)
	return st, nil
}

// active returns a pointer to the active profile's content.
func active(st *model.ProfilesState) (*model.AppState, error) {
	i := st.Active()
	if i < 0 {
		return nil, fmt.Errorf("no active profile: %w", errs.ErrNotFound)
	}
	return &st.Profiles[i].Data, nil
}

func journalIndex(a *model.AppState, id string) (int, error) {
	for i, j := range a.Journals {
		if j.ID == id {
			return i, nil
		}
	}
	return -1, fmt.Errorf("journal %q: %w", id, errs.ErrNotFound)
}

func entryIndex(a *model.AppState, id string) (int, error) {
	for i, e := range a.Entries {
		if e.ID == id {
			return i, nil
		}
	}
	return -1, fmt.Errorf("entry %q: %w", id, errs.ErrNotFound)
}

// AddJournal adds j to the active profile.
func AddJournal(st model.ProfilesState, j model.Journal) (model.ProfilesState, error) {
	name, err := cleanName(j.Name)
	if err != nil {
		return st, err
	}
	j.Name = name
	a, err := active(&st)
	if err != nil {
		return st, err
	}
	a.Journals = append(a.Journals, j)
	return st, nil
}

// UpdateJournal replaces the journal with j.ID in the active profile.
func UpdateJournal(st model.ProfilesState, j model.Journal) (model.ProfilesState, error) {
	name, err := cleanName(j.Name)
	if err != nil {
		return st, err
	}
	j.Name = name
	a, err := active(&st)
	if err != nil {
		return st, err
	}
	i, err := journalIndex(a, j.ID)
	if err != nil {
		return st, err
	}
	a.Journals[i] = j
	return st, nil
}

// DeleteJournal removes journal id and its entries from the active profile.
func DeleteJournal(st model.ProfilesState, id string) (model.ProfilesState, error) {
	a, err := active(&st)
	if err != nil {
		return st, err
	}
	i, err := journalIndex(a, id)
	if err != nil {
		return st, err
	}
	a.Journals = append(a.Journals[:i:i], a.Journals[i+1:]...)
	kept := make([]model.Entry, 0, len(a.Entries))
	for _, e := range a.Entries {
		if e.JournalID != id {
			kept = append(kept, e)
		}
	}
	a.Entries = kept
	return st, nil
}

// AddEntry appends e to the active profile. Its journal must exist.
func AddEntry(st model.ProfilesState, e model.Entry) (model.ProfilesState, error) {
	a, err := active(&st)
	if err != nil {
		return st, err
	}
	if _, err := journalIndex(a, e.JournalID); err != nil {
		return st, err
	}
	if e.Data == nil {
		e.Data = map[string]any{}
	}
	a.Entries = append(a.Entries, e)
	return st, nil
}

// UpdateEntry replaces the entry with e.ID in the active profile.
func UpdateEntry(st model.ProfilesState, e model.Entry) (model.ProfilesState, error) {
	a, err := active(&st)
	if err != nil {
		return st, err
	}
	i, err := entryIndex(a, e.ID)
	if err != nil {
		return st, err
	}
	a.Entries[i] = e
	return st, nil
}

// DeleteEntry removes entry id from the active profile.
func DeleteEntry(st model.ProfilesState, id string) (model.ProfilesState, error) {
	a, err := active(&st)
	if err != nil {
		return st, err
	}
	i, err := entryIndex(a, id)
	if err != nil {
		return st, err
	}
	a.Entries = append(a.Entries[:i:i], a.Entries[i+1:]...)
	return st, nil
}
