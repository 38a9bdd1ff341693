// Package notifier delivers in-app notifications in the background so that
// workflow handlers never block on notification persistence.
package notifier

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	supa "github.com/supabase-community/supabase-go"

	"motionify/portal-api/models"
)

// Notification is one pending notification to deliver.
type Notification struct {
	UserID        uuid.UUID
	Type          string
	Title         string
	Message       string
	ProjectID     *uuid.UUID
	DeliverableID *uuid.UUID
}

// Store persists notification rows. Implemented by SupabaseStore; tests use
// an in-memory fake.
type Store interface {
	Insert(ctx context.Context, notification models.AppNotification) error
}

// SupabaseStore writes notifications to the notifications table.
type SupabaseStore struct {
	DB *supa.Client
}

func (s *SupabaseStore) Insert(ctx context.Context, notification models.AppNotification) error {
	_, _, err := s.DB.From("notifications").
		Insert(notification, false, "", "minimal", "").
		Execute()
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

// job wraps a notification for the worker pool.
type job struct {
	id           string
	notification Notification
}

// Worker pulls jobs from the dispatcher and persists them.
type worker struct {
	id         int
	workerPool chan chan job // Register this worker's job channel with the dispatcher
	jobChannel chan job
	quit       chan bool
	wg         *sync.WaitGroup
	store      Store
	logger     *logrus.Logger
}

func newWorker(id int, workerPool chan chan job, wg *sync.WaitGroup, store Store, logger *logrus.Logger) worker {
	return worker{
		id:         id,
		workerPool: workerPool,
		jobChannel: make(chan job),
		quit:       make(chan bool),
		wg:         wg,
		store:      store,
		logger:     logger,
	}
}

// start makes the worker listen for jobs on its job channel.
func (w worker) start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			// Register the current worker's job channel in the pool.
			w.workerPool <- w.jobChannel

			select {
			case j := <-w.jobChannel:
				w.deliver(j)
			case <-w.quit:
				return
			}
		}
	}()
}

func (w worker) deliver(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	now := time.Now()
	record := models.AppNotification{
		ID:            uuid.New(),
		UserID:        j.notification.UserID,
		Type:          j.notification.Type,
		Title:         j.notification.Title,
		Message:       j.notification.Message,
		ProjectID:     j.notification.ProjectID,
		DeliverableID: j.notification.DeliverableID,
		Read:          false,
		CreatedAt:     now,
	}

	if err := w.store.Insert(ctx, record); err != nil {
		w.logger.WithFields(logrus.Fields{
			"worker":  w.id,
			"job":     j.id,
			"type":    j.notification.Type,
			"user_id": j.notification.UserID,
			"error":   err.Error(),
		}).Error("Failed to deliver notification")
		return
	}

	w.logger.WithFields(logrus.Fields{
		"worker":  w.id,
		"job":     j.id,
		"type":    j.notification.Type,
		"user_id": j.notification.UserID,
	}).Info("Notification delivered")
}

func (w worker) stop() {
	go func() {
		w.quit <- true
	}()
}

// Dispatcher manages a pool of workers and feeds them notification jobs.
type Dispatcher struct {
	maxWorkers int
	workerPool chan chan job
	jobQueue   chan job
	workers    []worker
	wg         sync.WaitGroup
	quit       chan bool
	store      Store
	logger     *logrus.Logger
}

// NewDispatcher creates a dispatcher with the given pool and queue sizes.
func NewDispatcher(store Store, logger *logrus.Logger, maxWorkers, queueSize int) *Dispatcher {
	return &Dispatcher{
		maxWorkers: maxWorkers,
		workerPool: make(chan chan job, maxWorkers),
		jobQueue:   make(chan job, queueSize),
		workers:    make([]worker, 0, maxWorkers),
		quit:       make(chan bool),
		store:      store,
		logger:     logger,
	}
}

// Run starts the dispatcher and its workers.
func (d *Dispatcher) Run() {
	d.logger.Infof("Notification dispatcher starting with %d workers", d.maxWorkers)
	for i := 1; i <= d.maxWorkers; i++ {
		w := newWorker(i, d.workerPool, &d.wg, d.store, d.logger)
		d.workers = append(d.workers, w)
		w.start()
	}
	go d.dispatch()
}

func (d *Dispatcher) dispatch() {
	for {
		select {
		case j := <-d.jobQueue:
			go func(j job) {
				// Wait for a worker to become available.
				jobChannel := <-d.workerPool
				jobChannel <- j
			}(j)
		case <-d.quit:
			return
		}
	}
}

// Enqueue submits a notification for background delivery. It never blocks: a
// full queue returns an error instead so request handlers stay responsive.
func (d *Dispatcher) Enqueue(notification Notification) error {
	j := job{id: uuid.NewString(), notification: notification}
	select {
	case d.jobQueue <- j:
		return nil
	default:
		d.logger.WithField("type", notification.Type).Warn("Notification queue full, dropping notification")
		return fmt.Errorf("notification queue is full")
	}
}

// Stop gracefully shuts down the dispatcher and waits for in-flight
// deliveries to complete.
func (d *Dispatcher) Stop() {
	d.quit <- true
	for _, w := range d.workers {
		w.stop()
	}
	d.wg.Wait()
	d.logger.Info("Notification dispatcher stopped")
}
