package cell

import (
	"encoding/json"
	"fmt"

	"github.com/and161185/noteloom/internal/localstore"
	"github.com/and161185/noteloom/internal/model"
	"github.com/gofrs/uuid/v5"
)

// Legacy storage keys of earlier releases.
const (
	LegacyProfilesKey = "noteloom-profiles-state"
	LegacySettingsKey = "noteloom-settings"
	LegacyAppStateKey = "noteloom-app-state"
)

// DefaultProfileName names the profile created for pre-profile data.
const DefaultProfileName = "Personal"

// ProfilesMigration reads the legacy profiles value from src.
func ProfilesMigration(src localstore.Legacy) Migration[model.ProfilesState] {
	return Migration[model.ProfilesState]{Source: src, Key: LegacyProfilesKey, Decode: DecodeLegacyProfiles}
}

// SettingsMigration reads the legacy settings value from src.
func SettingsMigration(src localstore.Legacy) Migration[model.Settings] {
	return Migration[model.Settings]{Source: src, Key: LegacySettingsKey}
}

// DecodeLegacyProfiles decodes a stored profiles value. A bare single-profile value
// (one with a top-level "journals") is wrapped into a "Personal" profile, which also
// retires the older app-state key.
func DecodeLegacyProfiles(raw string) (model.ProfilesState, []string, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &probe); err != nil {
		return model.ProfilesState{}, nil, fmt.Errorf("decode legacy profiles: %w", err)
	}
	if j, ok := probe["journals"]; !ok || !truthy(j) {
		var st model.ProfilesState
		if err := json.Unmarshal([]byte(raw), &st); err != nil {
			return model.ProfilesState{}, nil, fmt.Errorf("decode legacy profiles: %w", err)
		}
		return st, nil, nil
	}

	var data model.AppState
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return model.ProfilesState{}, nil, fmt.Errorf("decode legacy app state: %w", err)
	}
	id, err := uuid.NewV4()
	if err != nil {
		return model.ProfilesState{}, nil, fmt.Errorf("profile id: %w", err)
	}
	pid := id.String()
	st := model.ProfilesState{
		Profiles:        []model.Profile{{ID: pid, Name: DefaultProfileName, Data: data}},
		ActiveProfileID: &pid,
	}
	return st, []string{LegacyAppStateKey}, nil
}

func truthy(raw json.RawMessage) bool {
	switch string(raw) {
	case "null", "false", "0", `""`:
		return false
	}
	return len(raw) > 0
}
