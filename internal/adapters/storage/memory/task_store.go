package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/PabloGalante/todo-agent/internal/domain"
)

type occurrenceKey struct {
	parent domain.TaskID
	due    int64
}

// TaskStore keeps tasks in insertion order and enforces the
// (parent_task_id, due_date) uniqueness of generated occurrences.
type TaskStore struct {
	mu          sync.RWMutex
	tasks       map[domain.TaskID]*domain.Task
	seq         map[domain.TaskID]uint64
	occurrences map[occurrenceKey]domain.TaskID
	next        uint64
}

func NewTaskStore() *TaskStore {
	return &TaskStore{
		tasks:       make(map[domain.TaskID]*domain.Task),
		seq:         make(map[domain.TaskID]uint64),
		occurrences: make(map[occurrenceKey]domain.TaskID),
	}
}

func keyOf(t *domain.Task) (occurrenceKey, bool) {
	if t.ParentTaskID == nil || t.DueDate == nil {
		return occurrenceKey{}, false
	}
	return occurrenceKey{parent: *t.ParentTaskID, due: t.DueDate.UTC().UnixMicro()}, true
}

func (s *TaskStore) CreateTask(_ context.Context, task *domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[task.ID]; exists {
		if task.ParentTaskID != nil {
			return domain.ErrDuplicateOccurrence
		}
		return domain.ErrTaskExists
	}
	key, isOccurrence := keyOf(task)
	if isOccurrence {
		if _, dup := s.occurrences[key]; dup {
			return domain.ErrDuplicateOccurrence
		}
		s.occurrences[key] = task.ID
	}

	s.next++
	s.seq[task.ID] = s.next
	s.tasks[task.ID] = task.Clone()
	return nil
}

func (s *TaskStore) GetTask(_ context.Context, id domain.TaskID) (*domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	return t.Clone(), nil
}

func (s *TaskStore) UpdateTask(_ context.Context, task *domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.tasks[task.ID]
	if !ok {
		return domain.ErrTaskNotFound
	}

	oldKey, hadKey := keyOf(old)
	newKey, hasKey := keyOf(task)
	if hasKey && (!hadKey || newKey != oldKey) {
		if _, dup := s.occurrences[newKey]; dup {
			return domain.ErrDuplicateOccurrence
		}
	}
	if hadKey {
		delete(s.occurrences, oldKey)
	}
	if hasKey {
		s.occurrences[newKey] = task.ID
	}

	s.tasks[task.ID] = task.Clone()
	return nil
}

func (s *TaskStore) DeleteTask(_ context.Context, id domain.TaskID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return domain.ErrTaskNotFound
	}
	if key, isOccurrence := keyOf(t); isOccurrence {
		delete(s.occurrences, key)
	}
	delete(s.tasks, id)
	delete(s.seq, id)
	return nil
}

// ListTasksByUser returns the user's tasks oldest first.
func (s *TaskStore) ListTasksByUser(_ context.Context, userID domain.UserID, opts domain.TaskListOptions) (*domain.TaskPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*domain.Task
	for _, t := range s.tasks {
		if t.UserID == userID && opts.Status.Matches(t) {
			matched = append(matched, t)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return s.seq[a.ID] < s.seq[b.ID]
	})

	page := &domain.TaskPage{Total: len(matched), Limit: opts.Limit, Offset: opts.Offset}
	start := opts.Offset
	if start < 0 {
		start = 0
	}
	if start > len(matched) {
		start = len(matched)
	}
	end := len(matched)
	if opts.Limit > 0 && start+opts.Limit < end {
		end = start + opts.Limit
	}

	page.Tasks = make([]*domain.Task, 0, end-start)
	for _, t := range matched[start:end] {
		page.Tasks = append(page.Tasks, t.Clone())
	}
	return page, nil
}

func (s *TaskStore) FindOccurrence(_ context.Context, parentID domain.TaskID, dueDate time.Time) (*domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.occurrences[occurrenceKey{parent: parentID, due: dueDate.UTC().UnixMicro()}]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	return s.tasks[id].Clone(), nil
}
