// Package bootstrap builds the storage, LLM and event plumbing shared by the
// API and MCP binaries from a loaded config.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"

	"github.com/PabloGalante/todo-agent/internal/adapters/dapr"
	"github.com/PabloGalante/todo-agent/internal/adapters/eventbus"
	"github.com/PabloGalante/todo-agent/internal/adapters/llm"
	firestorestore "github.com/PabloGalante/todo-agent/internal/adapters/storage/firestore"
	memstore "github.com/PabloGalante/todo-agent/internal/adapters/storage/memory"
	"github.com/PabloGalante/todo-agent/internal/adapters/storage/sqlstore"
	"github.com/PabloGalante/todo-agent/internal/app/audit"
	"github.com/PabloGalante/todo-agent/internal/app/eventflow"
	"github.com/PabloGalante/todo-agent/internal/app/recurrence"
	"github.com/PabloGalante/todo-agent/internal/app/tasks"
	"github.com/PabloGalante/todo-agent/internal/config"
	"github.com/PabloGalante/todo-agent/internal/domain"
	"github.com/PabloGalante/todo-agent/internal/observability"
)

type Stores struct {
	Tasks     domain.TaskStore
	Sessions  domain.SessionStore
	Messages  domain.MessageStore
	EventLogs domain.EventLogStore

	close func() error
}

func (s *Stores) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// OpenStores connects the configured storage backend.
func OpenStores(ctx context.Context, cfg *config.Config) (*Stores, error) {
	log := observability.WithFields("storage_backend", cfg.StorageBackend)

	switch cfg.StorageBackend {
	case config.StorageFirestore:
		fs, err := firestorestore.NewStore(ctx, cfg.GCPProjectID)
		if err != nil {
			return nil, fmt.Errorf("firestore: %w", err)
		}
		log.Info("using firestore storage", "project", cfg.GCPProjectID)
		return &Stores{Tasks: fs, Sessions: fs, Messages: fs, EventLogs: fs, close: fs.Close}, nil

	case config.StorageSQLite, config.StoragePostgres:
		dialect, dsn := sqlstore.SQLite, cfg.SQLitePath
		if cfg.StorageBackend == config.StoragePostgres {
			dialect, dsn = sqlstore.Postgres, cfg.DatabaseURL
		}
		db, err := sqlstore.Open(ctx, dialect, dsn)
		if err != nil {
			return nil, err
		}
		log.Info("using sql storage", "dialect", string(dialect))
		return &Stores{
			Tasks:     db.Tasks(),
			Sessions:  db.Sessions(),
			Messages:  db.Messages(),
			EventLogs: db.EventLogs(),
			close:     db.Close,
		}, nil

	default:
		log.Info("using in-memory storage")
		return &Stores{
			Tasks:     memstore.NewTaskStore(),
			Sessions:  memstore.NewSessionStore(),
			Messages:  memstore.NewMessageStore(),
			EventLogs: memstore.NewEventLogStore(),
		}, nil
	}
}

// NewLLM returns the mock client or a Vertex AI client.
func NewLLM(ctx context.Context, cfg *config.Config) (domain.LLMClient, error) {
	if cfg.UseMockLLM {
		observability.Logger().Info("using mock llm client")
		return llm.NewMockLLM(), nil
	}
	client, err := llm.NewVertexClient(ctx, llm.VertexConfig{
		ProjectID: cfg.GCPProjectID,
		Location:  cfg.GCPLocation,
		ModelName: cfg.ModelName,
	})
	if err != nil {
		return nil, err
	}
	observability.Logger().Info("using vertex llm client", "model", cfg.ModelName)
	return client, nil
}

// Pipeline is the task service together with the event consumer that
// audits its events and generates recurring occurrences.
type Pipeline struct {
	Tasks    *tasks.Service
	Audit    *audit.Service
	Consumer *eventflow.Consumer

	// OnEvent is set when events arrive over HTTP (Dapr) rather than
	// through the in-process bus.
	OnEvent func(ctx context.Context, ev domain.TaskEvent) domain.DeliveryStatus

	bus *eventbus.Bus
}

// Close stops in-process delivery after draining queued events.
func (p *Pipeline) Close() {
	if p.bus != nil {
		p.bus.Close()
	}
}

// NewPipeline wires publisher, consumer and task service for the configured
// event transport.
func NewPipeline(cfg *config.Config, stores *Stores) *Pipeline {
	p := &Pipeline{Audit: audit.NewService(stores.EventLogs)}
	engine := recurrence.NewEngine(stores.Tasks)

	var publisher domain.EventPublisher
	switch cfg.EventTransport {
	case config.TransportDapr:
		publisher = dapr.NewPublisher(dapr.Config{
			Endpoint:   cfg.DaprEndpoint,
			PubsubName: cfg.PubsubName,
			MaxRetries: cfg.PublishRetries,
		}, http.DefaultClient)
	default:
		p.bus = eventbus.New(eventbus.Options{MaxAttempts: cfg.PublishRetries})
		publisher = p.bus
	}

	p.Consumer = eventflow.NewConsumer(p.Audit, engine, publisher, eventflow.WithTopic(cfg.EventsTopic))
	p.Tasks = tasks.NewService(stores.Tasks, publisher, tasks.WithTopic(cfg.EventsTopic))

	if p.bus != nil {
		p.bus.Subscribe(cfg.EventsTopic, p.Consumer.Handle)
		p.bus.Subscribe(domain.TopicReminders, p.Consumer.Handle)
	} else {
		p.OnEvent = p.Consumer.Handle
	}
	return p
}
