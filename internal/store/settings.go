package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/rzhai/acmtrack/internal/models"
)

// ErrLastProfile indicates an attempt to delete the only remaining profile.
var ErrLastProfile = errors.New("at least one profile must remain")

// ErrProfileNotFound indicates the referenced profile id does not exist.
var ErrProfileNotFound = errors.New("profile not found")

// defaultProfile seeds the initial provider profile from the environment so
// a fresh install can generate without opening the settings form first.
func defaultProfile() models.AIProfile {
	provider := models.NormalizeProvider(os.Getenv("AI_PROVIDER"), models.ProviderOpenAICompatible)
	model := strings.TrimSpace(os.Getenv("AI_MODEL"))
	if model == "" {
		model = "gpt-4o-mini"
	}
	temperature := 0.2
	if raw := os.Getenv("AI_TEMPERATURE"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			temperature = v
		}
	}
	timeout := 600
	if raw := os.Getenv("AI_TIMEOUT_SECONDS"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			timeout = v
		}
	}
	return models.AIProfile{
		ID:             "default-1",
		Name:           "Default",
		Provider:       provider,
		APIBase:        strings.TrimSpace(os.Getenv("AI_API_BASE")),
		APIKey:         strings.TrimSpace(os.Getenv("AI_API_KEY")),
		Model:          model,
		ModelOptions:   []string{model},
		Temperature:    temperature,
		TimeoutSeconds: timeout,
	}
}

func (s *Store) defaultSettingsLocked() *models.SettingsBundle {
	profile := defaultProfile()
	return &models.SettingsBundle{
		Version: models.SettingsVersion,
		AI: models.AISettings{
			ActiveProfileID: profile.ID,
			Profiles:        []models.AIProfile{profile},
		},
		Prompts: models.DefaultPromptSettings(),
		UI: models.UISettings{
			DefaultACLanguage: models.LangCPP,
			StorageBaseDir:    s.base,
		},
	}
}

func (s *Store) writeSettingsLocked(bundle *models.SettingsBundle) error {
	data, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode settings: %v", ErrStorage, err)
	}
	if err := os.WriteFile(s.docPath(DocSettings), append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("%w: write settings: %v", ErrStorage, err)
	}
	return nil
}

// settingsLocked loads, migrates, and validates the settings document,
// rewriting it when migration changed anything. Caller must hold the mutex.
func (s *Store) settingsLocked() (*models.SettingsBundle, error) {
	raw, err := os.ReadFile(s.docPath(DocSettings))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: read settings: %v", ErrStorage, err)
	}

	bundle, changed := s.migrateSettingsLocked(raw)
	if changed {
		if err := s.writeSettingsLocked(bundle); err != nil {
			return nil, err
		}
	}
	return bundle, nil
}

// migrateSettingsLocked turns whatever is on disk into a valid current
// bundle. Unparseable or pre-profile documents are replaced by defaults;
// recognizable documents are normalized in place (unique profile ids,
// provider aliases, model option invariants, active id, storage dir).
// Returns the bundle and whether the document must be rewritten.
func (s *Store) migrateSettingsLocked(raw []byte) (*models.SettingsBundle, bool) {
	defaults := s.defaultSettingsLocked()
	if len(raw) == 0 {
		return defaults, true
	}

	var bundle models.SettingsBundle
	if err := json.Unmarshal(raw, &bundle); err != nil {
		s.logger.Warn("settings document unreadable, resetting to defaults", "error", err)
		return defaults, true
	}
	if len(bundle.AI.Profiles) == 0 {
		// Pre-profile schema or an empty profile set: hard reset.
		s.logger.Warn("settings document predates profile schema, resetting to defaults",
			"found_version", bundle.Version)
		return defaults, true
	}

	changed := bundle.Version != models.SettingsVersion
	bundle.Version = models.SettingsVersion
	defaultActive := defaults.AI.ActiveProfile()

	seen := make(map[string]struct{}, len(bundle.AI.Profiles))
	for idx := range bundle.AI.Profiles {
		profile := &bundle.AI.Profiles[idx]

		id := uniqueProfileID(profile.ID, seen)
		if profile.ID != id {
			profile.ID = id
			changed = true
		}
		seen[profile.ID] = struct{}{}

		name := strings.TrimSpace(profile.Name)
		if name == "" {
			name = fmt.Sprintf("Provider %d", idx+1)
		}
		if profile.Name != name {
			profile.Name = name
			changed = true
		}

		provider := models.NormalizeProvider(string(profile.Provider), defaultActive.Provider)
		if profile.Provider != provider {
			profile.Provider = provider
			changed = true
		}

		model, options := models.NormalizeModelSelection(profile.Model, profile.ModelOptions, defaultActive.Model)
		if profile.Model != model {
			profile.Model = model
			changed = true
		}
		if !equalStrings(profile.ModelOptions, options) {
			profile.ModelOptions = options
			changed = true
		}

		if profile.TimeoutSeconds <= 0 {
			profile.TimeoutSeconds = defaultActive.TimeoutSeconds
			changed = true
		}
	}

	if _, ok := seen[bundle.AI.ActiveProfileID]; !ok {
		bundle.AI.ActiveProfileID = bundle.AI.Profiles[0].ID
		changed = true
	}

	// Backfill credentials on the active profile from the environment on
	// first run, so AI_API_KEY keeps working across settings rewrites.
	for idx := range bundle.AI.Profiles {
		profile := &bundle.AI.Profiles[idx]
		if profile.ID != bundle.AI.ActiveProfileID {
			continue
		}
		if profile.APIBase == "" && defaultActive.APIBase != "" {
			profile.APIBase = defaultActive.APIBase
			changed = true
		}
		if profile.APIKey == "" && defaultActive.APIKey != "" {
			profile.APIKey = defaultActive.APIKey
			changed = true
		}
	}

	if bundle.Prompts.SolutionTemplate == "" {
		bundle.Prompts = models.DefaultPromptSettings()
		changed = true
	}
	if bundle.UI.DefaultACLanguage == "" {
		bundle.UI.DefaultACLanguage = models.LangCPP
		changed = true
	}
	if bundle.UI.StorageBaseDir != s.base {
		bundle.UI.StorageBaseDir = s.base
		changed = true
	}
	return &bundle, changed
}

func uniqueProfileID(desired string, taken map[string]struct{}) string {
	base := strings.TrimSpace(desired)
	if base == "" {
		base = "profile"
	}
	candidate := base
	for suffix := 2; ; suffix++ {
		if _, exists := taken[candidate]; !exists {
			return candidate
		}
		candidate = fmt.Sprintf("%s-%d", base, suffix)
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Settings returns the migrated, validated settings bundle.
func (s *Store) Settings() (*models.SettingsBundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settingsLocked()
}

// ActiveProfile is a convenience accessor for the profile the next
// generation will use.
func (s *Store) ActiveProfile() (models.AIProfile, error) {
	settings, err := s.Settings()
	if err != nil {
		return models.AIProfile{}, err
	}
	return settings.AI.ActiveProfile(), nil
}

// AddAIProfile appends a profile, normalizing its id/name/model selection,
// optionally activating it.
func (s *Store) AddAIProfile(profile models.AIProfile, setActive bool) (*models.SettingsBundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.settingsLocked()
	if err != nil {
		return nil, err
	}
	taken := make(map[string]struct{}, len(current.AI.Profiles))
	for _, existing := range current.AI.Profiles {
		taken[existing.ID] = struct{}{}
	}
	profile.ID = uniqueProfileID(profile.ID, taken)
	if strings.TrimSpace(profile.Name) == "" {
		profile.Name = fmt.Sprintf("Provider %d", len(current.AI.Profiles)+1)
	}
	profile.Model, profile.ModelOptions = models.NormalizeModelSelection(profile.Model, profile.ModelOptions, "gpt-4o-mini")
	if profile.TimeoutSeconds <= 0 {
		profile.TimeoutSeconds = 600
	}

	current.AI.Profiles = append(current.AI.Profiles, profile)
	if setActive {
		current.AI.ActiveProfileID = profile.ID
	}
	if err := s.writeSettingsLocked(current); err != nil {
		return nil, err
	}
	return current, nil
}

// UpdateAIProfile replaces the identified profile's editable fields.
func (s *Store) UpdateAIProfile(profileID string, profile models.AIProfile) (*models.SettingsBundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.settingsLocked()
	if err != nil {
		return nil, err
	}
	model, options := models.NormalizeModelSelection(profile.Model, profile.ModelOptions, "gpt-4o-mini")
	for idx, existing := range current.AI.Profiles {
		if existing.ID != profileID {
			continue
		}
		name := strings.TrimSpace(profile.Name)
		if name == "" {
			name = existing.Name
		}
		current.AI.Profiles[idx] = models.AIProfile{
			ID:             profileID,
			Name:           name,
			Provider:       profile.Provider,
			APIBase:        profile.APIBase,
			APIKey:         profile.APIKey,
			Model:          model,
			ModelOptions:   options,
			Temperature:    profile.Temperature,
			TimeoutSeconds: profile.TimeoutSeconds,
		}
		if err := s.writeSettingsLocked(current); err != nil {
			return nil, err
		}
		return current, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, profileID)
}

// ActivateAIProfile switches the active profile.
func (s *Store) ActivateAIProfile(profileID string) (*models.SettingsBundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.settingsLocked()
	if err != nil {
		return nil, err
	}
	for _, profile := range current.AI.Profiles {
		if profile.ID == profileID {
			current.AI.ActiveProfileID = profileID
			if err := s.writeSettingsLocked(current); err != nil {
				return nil, err
			}
			return current, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, profileID)
}

// DeleteAIProfile removes a profile. The last profile cannot be deleted;
// deleting the active profile promotes the first remaining one.
func (s *Store) DeleteAIProfile(profileID string) (*models.SettingsBundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.settingsLocked()
	if err != nil {
		return nil, err
	}
	if len(current.AI.Profiles) <= 1 {
		return nil, ErrLastProfile
	}
	remaining := current.AI.Profiles[:0:0]
	for _, profile := range current.AI.Profiles {
		if profile.ID != profileID {
			remaining = append(remaining, profile)
		}
	}
	if len(remaining) == len(current.AI.Profiles) {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, profileID)
	}
	current.AI.Profiles = remaining
	if current.AI.ActiveProfileID == profileID {
		current.AI.ActiveProfileID = remaining[0].ID
	}
	if err := s.writeSettingsLocked(current); err != nil {
		return nil, err
	}
	return current, nil
}

// UpdatePromptSettings replaces the prompt templates and style injections.
func (s *Store) UpdatePromptSettings(prompts models.PromptSettings) (*models.SettingsBundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.settingsLocked()
	if err != nil {
		return nil, err
	}
	current.Prompts = prompts
	if err := s.writeSettingsLocked(current); err != nil {
		return nil, err
	}
	return current, nil
}

// UpdateUISettings replaces the UI preferences. The storage dir field is
// informational; changing the actual root goes through SwitchBase.
func (s *Store) UpdateUISettings(ui models.UISettings) (*models.SettingsBundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.settingsLocked()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(ui.StorageBaseDir) == "" {
		ui.StorageBaseDir = s.base
	}
	if ui.DefaultACLanguage == "" {
		ui.DefaultACLanguage = current.UI.DefaultACLanguage
	}
	current.UI = ui
	if err := s.writeSettingsLocked(current); err != nil {
		return nil, err
	}
	return current, nil
}

// RemoveModelOption drops a model from the active profile's option list,
// re-selecting the first remaining option if the removed one was selected.
func (s *Store) RemoveModelOption(modelName string) (*models.SettingsBundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.settingsLocked()
	if err != nil {
		return nil, err
	}
	for idx := range current.AI.Profiles {
		profile := &current.AI.Profiles[idx]
		if profile.ID != current.AI.ActiveProfileID {
			continue
		}
		options := make([]string, 0, len(profile.ModelOptions))
		for _, option := range profile.ModelOptions {
			if option != modelName {
				options = append(options, option)
			}
		}
		if len(options) == 0 {
			options = []string{"gpt-4o-mini"}
		}
		if profile.Model == modelName {
			profile.Model = options[0]
		}
		profile.Model, profile.ModelOptions = models.NormalizeModelSelection(profile.Model, options, "gpt-4o-mini")
		break
	}
	if err := s.writeSettingsLocked(current); err != nil {
		return nil, err
	}
	return current, nil
}
