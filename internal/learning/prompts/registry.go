package prompts

import (
	"fmt"
	"sync"
)

type Template struct {
	Name     PromptName
	Version  int
	System   func(Input) (string, error)
	User     func(Input) (string, error)
	Validate Validator
}

var (
	registryMu sync.RWMutex
	registry   = map[PromptName]Template{}
	registerMu sync.Once
)

// Register registers a compiled Template, replacing any earlier one of the same name.
func Register(t Template) {
	registryMu.Lock()
	registry[t.Name] = t
	registryMu.Unlock()
}

// Build renders a registered prompt. The built-in prompts are registered on first use.
func Build(name PromptName, in Input) (Prompt, error) {
	registerMu.Do(RegisterAll)

	registryMu.RLock()
	t, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return Prompt{}, fmt.Errorf("unknown prompt: %s", string(name))
	}
	if t.System == nil || t.User == nil {
		return Prompt{}, fmt.Errorf("prompt %s missing system/user renderers", string(name))
	}
	if t.Validate != nil {
		if err := t.Validate(in); err != nil {
			return Prompt{}, fmt.Errorf("%s: %w", string(name), err)
		}
	}
	system, err := t.System(in)
	if err != nil {
		return Prompt{}, fmt.Errorf("%s system render: %w", string(name), err)
	}
	user, err := t.User(in)
	if err != nil {
		return Prompt{}, fmt.Errorf("%s user render: %w", string(name), err)
	}
	return Prompt{
		Name:    string(t.Name),
		Version: t.Version,
		System:  system,
		User:    user,
	}, nil
}
