package server

import (
	"errors"
	"fmt"
	"time"

	"procpilot/internal/domain"
)

// CreateStack registers a named group of servers. Members reference
// servers by name; a member that does not (or no longer) exists simply
// counts as stopped.
func (m *Manager) CreateStack(stack domain.Stack) error {
	if stack.Name == "" {
		return errors.New("stack name is required")
	}

	existing, err := m.store.GetStack(stack.Name)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("stack already exists: %s", stack.Name)
	}

	if err := m.store.SaveStack(stack); err != nil {
		return err
	}
	m.publishStackChanged(stack.Name)
	return nil
}

func (m *Manager) GetStack(name string) (*domain.Stack, error) {
	return m.store.GetStack(name)
}

func (m *Manager) ListStacks() ([]domain.Stack, error) {
	return m.store.ListStacks()
}

func (m *Manager) UpdateStack(name string, members []string) error {
	existing, err := m.store.GetStack(name)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("stack not found: %s", name)
	}

	if err := m.store.UpdateStack(name, members); err != nil {
		return err
	}
	m.publishStackChanged(name)
	return nil
}

// DeleteStack removes the group. Member servers are untouched.
func (m *Manager) DeleteStack(name string) error {
	existing, err := m.store.GetStack(name)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("stack not found: %s", name)
	}

	if err := m.store.DeleteStack(name); err != nil {
		return err
	}
	m.publishStackChanged(name)
	return nil
}

// StackStatus derives the aggregate status: running when every member
// runs, stopped when none does, partial otherwise. Empty stacks are
// stopped.
func (m *Manager) StackStatus(name string) (string, error) {
	stack, err := m.store.GetStack(name)
	if err != nil {
		return "", err
	}
	if stack == nil {
		return "", fmt.Errorf("stack not found: %s", name)
	}

	running := 0
	for _, member := range stack.Members {
		if m.Status(member) == domain.StatusRunning {
			running++
		}
	}

	switch {
	case len(stack.Members) == 0 || running == 0:
		return domain.StatusStopped, nil
	case running == len(stack.Members):
		return domain.StatusRunning, nil
	default:
		return domain.StatusPartial, nil
	}
}

// StartStack starts every member, continuing past individual failures.
// The result maps each member to "started" or its error text.
func (m *Manager) StartStack(name string) (map[string]string, error) {
	stack, err := m.store.GetStack(name)
	if err != nil {
		return nil, err
	}
	if stack == nil {
		return nil, fmt.Errorf("stack not found: %s", name)
	}

	results := make(map[string]string, len(stack.Members))
	for _, member := range stack.Members {
		if err := m.Start(member); err != nil {
			results[member] = err.Error()
		} else {
			results[member] = "started"
		}
	}
	return results, nil
}

// StopStack stops every member. Individual stops cannot fail, so the
// result only confirms each member.
func (m *Manager) StopStack(name string) (map[string]string, error) {
	stack, err := m.store.GetStack(name)
	if err != nil {
		return nil, err
	}
	if stack == nil {
		return nil, fmt.Errorf("stack not found: %s", name)
	}

	results := make(map[string]string, len(stack.Members))
	for _, member := range stack.Members {
		m.Stop(member)
		results[member] = "stopped"
	}
	return results, nil
}

func (m *Manager) publishStackChanged(name string) {
	m.bus.Publish(domain.Event{
		Type:   domain.EventStackChanged,
		Server: name,
		Time:   time.Now(),
	})
}
