package model

// CustomFieldCategory groups custom field definitions.
type CustomFieldCategory struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	Extra Extra `json:"-"`
}

// FileConfig restricts file-typed custom fields.
type FileConfig struct {
	Accept   string `json:"accept"`
	Multiple bool   `json:"multiple"`

	Extra Extra `json:"-"`
}

// CustomFieldDef describes a user-defined entry field.
type CustomFieldDef struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Type       string      `json:"type"`
	CategoryID string      `json:"categoryId,omitempty"`
	Prompt     string      `json:"prompt,omitempty"`
	Min        *float64    `json:"min,omitempty"`
	Max        *float64    `json:"max,omitempty"`
	MinLabel   string      `json:"minLabel,omitempty"`
	MaxLabel   string      `json:"maxLabel,omitempty"`
	Options    []string    `json:"options,omitempty"`
	FileConfig *FileConfig `json:"fileConfig,omitempty"`

	Extra Extra `json:"-"`
}

// BlockDef is one block of a template layout.
type BlockDef struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	CustomFieldID string `json:"customFieldId,omitempty"`
	Label         string `json:"label"`
	Color         string `json:"color,omitempty"`

	Extra Extra `json:"-"`
}

// Template is an ordered list of blocks used to render entries.
type Template struct {
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	Blocks []BlockDef `json:"blocks"`

	Extra Extra `json:"-"`
}

// Journal is a named stream of entries.
type Journal struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	DefaultTemplateID string `json:"defaultTemplateId,omitempty"`

	Extra Extra `json:"-"`
}

// Entry is a single journal record; Data is keyed by block or field id.
type Entry struct {
	ID         string         `json:"id"`
	JournalID  string         `json:"journalId"`
	TemplateID string         `json:"templateId"`
	CreatedAt  string         `json:"createdAt"`
	Title      string         `json:"title,omitempty"`
	Data       map[string]any `json:"data"`

	Extra Extra `json:"-"`
}

// AppState holds the journaling content of one profile.
type AppState struct {
	Journals              []Journal             `json:"journals"`
	Entries               []Entry               `json:"entries"`
	Templates             []Template            `json:"templates"`
	CustomFieldDefs       []CustomFieldDef      `json:"customFieldDefs"`
	CustomFieldCategories []CustomFieldCategory `json:"customFieldCategories"`

	Extra Extra `json:"-"`
}

// EmptyAppState returns an AppState with non-nil collections so it encodes as empty arrays.
func EmptyAppState() AppState {
	return AppState{
		Journals:              []Journal{},
		Entries:               []Entry{},
		Templates:             []Template{},
		CustomFieldDefs:       []CustomFieldDef{},
		CustomFieldCategories: []CustomFieldCategory{},
	}
}

// Profile is a named partition of journaling content.
type Profile struct {
	ID   string   `json:"id"`
	Name string   `json:"name"`
	Data AppState `json:"data"`

	Extra Extra `json:"-"`
}

// ProfilesState is the top-level "profiles" document.
type ProfilesState struct {
	Profiles        []Profile `json:"profiles"`
	ActiveProfileID *string   `json:"activeProfileId"` // null when no profile exists

	Extra Extra `json:"-"`
}

// DefaultProfilesState is the value used when nothing is stored yet.
func DefaultProfilesState() ProfilesState {
	return ProfilesState{Profiles: []Profile{}}
}

// ActiveID returns the active profile id or "".
func (s ProfilesState) ActiveID() string {
	if s.ActiveProfileID == nil {
		return ""
	}
	return *s.ActiveProfileID
}

// Active returns the index of the active profile, or -1.
func (s ProfilesState) Active() int {
	id := s.ActiveID()
	for i, p := range s.Profiles {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// The document types keep members they do not declare in Extra, so edits made
// here never strip what newer clients wrote.
func (c CustomFieldCategory) MarshalJSON() ([]byte, error) {
	type plain CustomFieldCategory
	return encodeExtra(plain(c), c.Extra)
}

func (c *CustomFieldCategory) UnmarshalJSON(data []byte) error {
	type plain CustomFieldCategory
	return decodeExtra(data, (*plain)(c), &c.Extra)
}

func (f FileConfig) MarshalJSON() ([]byte, error) {
	type plain FileConfig
	return encodeExtra(plain(f), f.Extra)
}

func (f *FileConfig) UnmarshalJSON(data []byte) error {
	type plain FileConfig
	return decodeExtra(data, (*plain)(f), &f.Extra)
}

func (c CustomFieldDef) MarshalJSON() ([]byte, error) {
	type plain CustomFieldDef
	return encodeExtra(plain(c), c.Extra)
}

func (c *CustomFieldDef) UnmarshalJSON(data []byte) error {
	type plain CustomFieldDef
	return decodeExtra(data, (*plain)(c), &c.Extra)
}

func (b BlockDef) MarshalJSON() ([]byte, error) {
	type plain BlockDef
	return encodeExtra(plain(b), b.Extra)
}

func (b *BlockDef) UnmarshalJSON(data []byte) error {
	type plain BlockDef
	return decodeExtra(data, (*plain)(b), &b.Extra)
}

func (t Template) MarshalJSON() ([]byte, error) {
	type plain Template
	return encodeExtra(plain(t), t.Extra)
}

func (t *Template) UnmarshalJSON(data []byte) error {
	type plain Template
	return decodeExtra(data, (*plain)(t), &t.Extra)
}

func (j Journal) MarshalJSON() ([]byte, error) {
	type plain Journal
	return encodeExtra(plain(j), j.Extra)
}

func (j *Journal) UnmarshalJSON(data []byte) error {
	type plain Journal
	return decodeExtra(data, (*plain)(j), &j.Extra)
}

func (e Entry) MarshalJSON() ([]byte, error) {
	type plain Entry
	return encodeExtra(plain(e), e.Extra)
}

func (e *Entry) UnmarshalJSON(data []byte) error {
	type plain Entry
	return decodeExtra(data, (*plain)(e), &e.Extra)
}

func (a AppState) MarshalJSON() ([]byte, error) {
	type plain AppState
	return encodeExtra(plain(a), a.Extra)
}

func (a *AppState) UnmarshalJSON(data []byte) error {
	type plain AppState
	return decodeExtra(data, (*plain)(a), &a.Extra)
}

func (p Profile) MarshalJSON() ([]byte, error) {
	type plain Profile
	return encodeExtra(plain(p), p.Extra)
}

func (p *Profile) UnmarshalJSON(data []byte) error {
	type plain Profile
	return decodeExtra(data, (*plain)(p), &p.Extra)
}

func (s ProfilesState) MarshalJSON() ([]byte, error) {
	type plain ProfilesState
	return encodeExtra(plain(s), s.Extra)
}

func (s *ProfilesState) UnmarshalJSON(data []byte) error {
	type plain ProfilesState
	return decodeExtra(data, (*plain)(s), &s.Extra)
}
