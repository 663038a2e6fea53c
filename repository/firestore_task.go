package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"mydayplanner/model"
)

const (
	tasksCollection        = "Tasks"
	integrationsCollection = "Integrations"
	settingsCollection     = "CalendarSettings"
)

// FirestoreStore keeps tasks, credentials and calendar settings in Firestore.
type FirestoreStore struct {
	client *firestore.Client
	now    func() time.Time
}

func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client, now: time.Now}
}

func (s *FirestoreStore) GetTask(ctx context.Context, userID, taskID string) (*model.Tasks, error) {
	doc, err := s.client.Collection(tasksCollection).Doc(taskID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get task: %w", err)
	}
	var task model.Tasks
	if err := doc.DataTo(&task); err != nil {
		return nil, fmt.Errorf("decode task: %w", err)
	}
	if task.UserID != userID {
		return nil, ErrNotFound
	}
	return &task, nil
}

func (s *FirestoreStore) ListTasks(ctx context.Context, userID string) ([]model.Tasks, error) {
	docs, err := s.client.Collection(tasksCollection).
		Where("userid", "==", userID).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	tasks := make([]model.Tasks, 0, len(docs))
	for _, doc := range docs {
		var task model.Tasks
		if err := doc.DataTo(&task); err != nil {
			return nil, fmt.Errorf("decode task %s: %w", doc.Ref.ID, err)
		}
		tasks = append(tasks, task)
	}
	sortByDueDate(tasks)
	return tasks, nil
}

func (s *FirestoreStore) SaveTask(ctx context.Context, task *model.Tasks) error {
	if _, err := s.client.Collection(tasksCollection).Doc(task.TaskID).Set(ctx, task); err != nil {
		return fmt.Errorf("save task: %w", err)
	}
	return nil
}

func (s *FirestoreStore) DeleteTask(ctx context.Context, userID, taskID string) error {
	ref := s.client.Collection(tasksCollection).Doc(taskID)
	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := checkOwner(tx, ref, userID); err != nil {
			return err
		}
		return tx.Delete(ref)
	})
}

func (s *FirestoreStore) SetTaskMirror(ctx context.Context, userID, taskID, eventID, calendarID string) error {
	return s.updateTask(ctx, userID, taskID, []firestore.Update{
		{Path: "googlecalendareventid", Value: eventID},
		{Path: "googlecalendarid", Value: calendarID},
		{Path: "syncpending", Value: false},
	})
}

func (s *FirestoreStore) MarkSyncPending(ctx context.Context, userID, taskID string, pending bool) error {
	return s.updateTask(ctx, userID, taskID, []firestore.Update{
		{Path: "syncpending", Value: pending},
	})
}

func (s *FirestoreStore) ListSyncPending(ctx context.Context, limit int) ([]model.Tasks, error) {
	iter := s.client.Collection(tasksCollection).
		Where("syncpending", "==", true).
		Limit(limit).
		Documents(ctx)
	defer iter.Stop()

	var tasks []model.Tasks
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list pending tasks: %w", err)
		}
		var task model.Tasks
		if err := doc.DataTo(&task); err != nil {
			return nil, fmt.Errorf("decode task %s: %w", doc.Ref.ID, err)
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func (s *FirestoreStore) updateTask(ctx context.Context, userID, taskID string, updates []firestore.Update) error {
	ref := s.client.Collection(tasksCollection).Doc(taskID)
	updates = append(updates, firestore.Update{Path: "updatedat", Value: s.now()})
	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := checkOwner(tx, ref, userID); err != nil {
			return err
		}
		return tx.Update(ref, updates)
	})
}

func checkOwner(tx *firestore.Transaction, ref *firestore.DocumentRef, userID string) error {
	doc, err := tx.Get(ref)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return ErrNotFound
		}
		return fmt.Errorf("get task: %w", err)
	}
	owner, err := doc.DataAt("userid")
	if err != nil || owner != userID {
		return ErrNotFound
	}
	return nil
}

// sortByDueDate orders in memory; an OrderBy next to the userid filter would need a composite index.
func sortByDueDate(tasks []model.Tasks) {
	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].DueDate != tasks[j].DueDate {
			return tasks[i].DueDate < tasks[j].DueDate
		}
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
}
