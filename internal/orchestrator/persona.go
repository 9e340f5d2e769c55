package orchestrator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Persona is a persistent persona configuration: a named system prompt plus
// optional conversational history and asset paths, one of which may be
// designated active per process.
type Persona struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	SystemPrompt string `json:"system_prompt"`
	History      string `json:"history,omitempty"`
	AvatarPath   string `json:"avatar_path,omitempty"`
	VoicePath    string `json:"voice_reference_path,omitempty"`
	Active       bool   `json:"active"`
}

type personaSeed struct {
	Personas []Persona `yaml:"personas"`
}

type activePersonaFile struct {
	ActiveID string `json:"active_id"`
}

// PersonaStore is a JSON-file-backed CRUD store for personas, optionally
// seeded from a YAML file on first run: the YAML file holds operator-curated
// defaults, personas.json holds whatever was created or edited at runtime.
type PersonaStore struct {
	mu          sync.Mutex
	personaPath string
	activePath  string
	personas    map[string]*Persona
	activeID    string
}

// NewPersonaStore loads personas.json and active_persona.json from dataRoot,
// seeding from seedFile (a YAML file, optional) if personas.json doesn't
// exist yet.
func NewPersonaStore(dataRoot, seedFile string) (*PersonaStore, error) {
	if err := os.MkdirAll(dataRoot, 0o755); err != nil {
		return nil, fmt.Errorf("orchestrator: create data root: %w", err)
	}
	s := &PersonaStore{
		personaPath: filepath.Join(dataRoot, "personas.json"),
		activePath:  filepath.Join(dataRoot, "active_persona.json"),
		personas:    make(map[string]*Persona),
	}
	if err := s.load(seedFile); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PersonaStore) load(seedFile string) error {
	raw, err := os.ReadFile(s.personaPath)
	switch {
	case err == nil:
		var list []Persona
		if err := json.Unmarshal(raw, &list); err != nil {
			return fmt.Errorf("orchestrator: decode personas.json: %w", err)
		}
		for i := range list {
			p := list[i]
			s.personas[p.ID] = &p
		}
	case os.IsNotExist(err):
		if seedFile != "" {
			if err := s.seedFrom(seedFile); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("orchestrator: read personas.json: %w", err)
	}

	if raw, err := os.ReadFile(s.activePath); err == nil {
		var active activePersonaFile
		if err := json.Unmarshal(raw, &active); err == nil {
			s.activeID = active.ActiveID
		}
	}
	return nil
}

func (s *PersonaStore) seedFrom(seedFile string) error {
	raw, err := os.ReadFile(seedFile)
	if err != nil {
		return fmt.Errorf("orchestrator: read persona seed file: %w", err)
	}
	var seed personaSeed
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return fmt.Errorf("orchestrator: parse persona seed file: %w", err)
	}
	for i := range seed.Personas {
		p := seed.Personas[i]
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		s.personas[p.ID] = &p
		if p.Active {
			s.activeID = p.ID
		}
	}
	return s.persistPersonas()
}

func (s *PersonaStore) persistPersonas() error {
	list := make([]Persona, 0, len(s.personas))
	for _, p := range s.personas {
		list = append(list, *p)
	}
	payload, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("orchestrator: marshal personas: %w", err)
	}
	return os.WriteFile(s.personaPath, payload, 0o644)
}

func (s *PersonaStore) persistActive() error {
	payload, err := json.Marshal(activePersonaFile{ActiveID: s.activeID})
	if err != nil {
		return err
	}
	return os.WriteFile(s.activePath, payload, 0o644)
}

// List returns every persona, in no particular order.
func (s *PersonaStore) List() []Persona {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Persona, 0, len(s.personas))
	for _, p := range s.personas {
		cp := *p
		cp.Active = cp.ID == s.activeID
		out = append(out, cp)
	}
	return out
}

// Get returns one persona by id.
func (s *PersonaStore) Get(id string) (Persona, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.personas[id]
	if !ok {
		return Persona{}, false
	}
	cp := *p
	cp.Active = cp.ID == s.activeID
	return cp, true
}

// Create adds a new persona, assigning it an id.
func (s *PersonaStore) Create(p Persona) (Persona, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = uuid.NewString()
	p.Active = false
	s.personas[p.ID] = &p
	if err := s.persistPersonas(); err != nil {
		return Persona{}, err
	}
	return p, nil
}

// Update replaces an existing persona's fields, id unchanged.
func (s *PersonaStore) Update(id string, p Persona) (Persona, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.personas[id]; !ok {
		return Persona{}, fmt.Errorf("orchestrator: persona %q not found", id)
	}
	p.ID = id
	s.personas[id] = &p
	if err := s.persistPersonas(); err != nil {
		return Persona{}, err
	}
	return p, nil
}

// Delete removes a persona, clearing the active designation if it was active.
func (s *PersonaStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.personas[id]; !ok {
		return fmt.Errorf("orchestrator: persona %q not found", id)
	}
	delete(s.personas, id)
	if s.activeID == id {
		s.activeID = ""
		if err := s.persistActive(); err != nil {
			return err
		}
	}
	return s.persistPersonas()
}

// Activate designates a persona as the one applied to future chat requests.
func (s *PersonaStore) Activate(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.personas[id]; !ok {
		return fmt.Errorf("orchestrator: persona %q not found", id)
	}
	s.activeID = id
	return s.persistActive()
}

// Active returns the currently-active persona, if any.
func (s *PersonaStore) Active() (Persona, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeID == "" {
		return Persona{}, false
	}
	p, ok := s.personas[s.activeID]
	if !ok {
		return Persona{}, false
	}
	cp := *p
	cp.Active = true
	return cp, true
}
