package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/dukex/chanmirror/pkg/models"
	"github.com/dukex/chanmirror/pkg/persistence"
	"github.com/dukex/chanmirror/pkg/persistence/postgresql"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var postgresContainer *postgres.PostgresContainer

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	for _, table := range []string{"message_mappings", "channel_bindings", "workflows", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping PostgreSQL integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("chanmirror_test"),
			postgres.WithUsername("chanmirror"),
			postgres.WithPassword("chanmirror"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)

		err = p.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return p, ctx, databaseURL
}

func newMirrorWorkflow() *models.Workflow {
	return &models.Workflow{
		Name:         "Engineering mirror",
		Type:         models.WorkflowTypeMirror,
		Status:       models.WorkflowStatusActive,
		TargetRootID: "root-page",
		Schedule:     "*/5 * * * *",
		Owner:        "ops",
	}
}

func TestNewPersistence_Migrations(t *testing.T) {
	_, ctx, databaseURL := setupTestDB(t)

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() {
		err := db.Close()
		require.NoError(t, err)
	}()

	for _, table := range []string{"workflows", "channel_bindings", "message_mappings", "schema_migrations"} {
		var exists bool

		err = db.QueryRowContext(ctx, `SELECT EXISTS (SELECT FROM
information_schema.tables WHERE table_name = $1)`, table).Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, "%s table should exist", table)
	}

	var version int

	err = db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, 2, version)
}

func TestNewPersistence_MigrationsAreIdempotent(t *testing.T) {
	_, ctx, databaseURL := setupTestDB(t)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	again, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)
	require.NoError(t, again.Close(ctx))
}

func TestNewPersistence_HealthCheck(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	assert.NoError(t, p.HealthCheck(ctx))
}

func TestWorkflowRepository_SaveAndRetrieve(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	workflow := newMirrorWorkflow()

	err := p.WorkflowRepository().Save(ctx, workflow)
	require.NoError(t, err)
	assert.NotEmpty(t, workflow.ID)
	assert.False(t, workflow.CreatedAt.IsZero())

	retrieved, err := p.WorkflowRepository().GetByID(ctx, workflow.ID)
	require.NoError(t, err)
	require.NotNil(t, retrieved)

	assert.Equal(t, workflow.Name, retrieved.Name)
	assert.Equal(t, models.WorkflowTypeMirror, retrieved.Type)
	assert.Equal(t, models.WorkflowStatusActive, retrieved.Status)
	assert.Equal(t, "root-page", retrieved.TargetRootID)
	assert.Equal(t, "*/5 * * * *", retrieved.Schedule)
	assert.Nil(t, retrieved.LastRunAt)

	notFound, err := p.WorkflowRepository().GetByID(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.Nil(t, notFound)

	all, err := p.WorkflowRepository().GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestWorkflowRepository_TouchLastRunAndDelete(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	workflow := newMirrorWorkflow()
	require.NoError(t, p.WorkflowRepository().Save(ctx, workflow))

	finished := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	require.NoError(t, p.WorkflowRepository().TouchLastRun(ctx, workflow.ID, finished))

	retrieved, err := p.WorkflowRepository().GetByID(ctx, workflow.ID)
	require.NoError(t, err)
	require.NotNil(t, retrieved.LastRunAt)
	assert.True(t, finished.Equal(*retrieved.LastRunAt))

	require.NoError(t, p.WorkflowRepository().Delete(ctx, workflow.ID))

	deleted, err := p.WorkflowRepository().GetByID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Nil(t, deleted)

	err = p.WorkflowRepository().Delete(ctx, workflow.ID)
	assert.True(t, persistence.IsWorkflowNotFound(err))

	err = p.WorkflowRepository().TouchLastRun(ctx, workflow.ID, finished)
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestChannelBindingRepository_OrderAndSubpage(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	workflow := newMirrorWorkflow()
	require.NoError(t, p.WorkflowRepository().Save(ctx, workflow))

	repo := p.ChannelBindingRepository()

	for _, channel := range []string{"C2", "C1", "C3"} {
		_, err := repo.BindChannel(ctx, &models.ChannelBinding{
			WorkflowID:        workflow.ID,
			SourceChannelID:   channel,
			SourceChannelName: "name-" + channel,
		})
		require.NoError(t, err)
	}

	bindings, err := repo.ListBindings(ctx, workflow.ID)
	require.NoError(t, err)
	require.Len(t, bindings, 3)
	assert.Equal(t, "C2", bindings[0].SourceChannelID)
	assert.Equal(t, "C1", bindings[1].SourceChannelID)
	assert.Equal(t, "C3", bindings[2].SourceChannelID)

	updated, err := repo.BindChannel(ctx, &models.ChannelBinding{
		WorkflowID:        workflow.ID,
		SourceChannelID:   "C1",
		SourceChannelName: "name-C1",
		TargetSubpageID:   "page-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "page-1", updated.TargetSubpageID)
	assert.Equal(t, 1, updated.Position)

	again, err := repo.BindChannel(ctx, &models.ChannelBinding{
		WorkflowID:        workflow.ID,
		SourceChannelID:   "C1",
		SourceChannelName: "renamed",
		TargetSubpageID:   "page-2",
	})
	require.NoError(t, err)
	assert.Equal(t, "page-1", again.TargetSubpageID)
	assert.Equal(t, "renamed", again.SourceChannelName)

	missing, err := repo.GetBinding(ctx, workflow.ID, "C9")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, repo.DeleteBinding(ctx, workflow.ID, "C3"))
	assert.True(t, persistence.IsBindingNotFound(repo.DeleteBinding(ctx, workflow.ID, "C3")))
}

func TestChannelBindingRepository_UnknownWorkflow(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	_, err := p.ChannelBindingRepository().BindChannel(ctx, &models.ChannelBinding{
		WorkflowID:        "missing",
		SourceChannelID:   "C1",
		SourceChannelName: "general",
	})
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestMappingRepository_PutGetListMark(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	repo := p.MappingRepository()
	parent := 1712345678.000100

	_, err := repo.Put(ctx, &models.MessageMapping{
		WorkflowID:      "wf-1",
		SourceChannelID: "C1",
		SourceTS:        parent,
		TargetBlockID:   "block-1",
	})
	require.NoError(t, err)

	reply, err := repo.Put(ctx, &models.MessageMapping{
		WorkflowID:      "wf-1",
		SourceChannelID: "C1",
		SourceTS:        1712345679.000200,
		ParentSourceTS:  &parent,
		TargetBlockID:   "block-2",
	})
	require.NoError(t, err)
	assert.True(t, reply.IsReply())

	_, err = repo.Put(ctx, &models.MessageMapping{
		WorkflowID:      "wf-1",
		SourceChannelID: "C1",
		SourceTS:        parent,
		TargetBlockID:   "block-dup",
	})
	assert.True(t, persistence.IsMappingExists(err))

	got, err := repo.Get(ctx, "wf-1", "C1", parent)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "block-1", got.TargetBlockID)

	none, err := repo.Get(ctx, "wf-1", "C2", parent)
	require.NoError(t, err)
	assert.Nil(t, none)

	since, err := repo.ListSince(ctx, "wf-1", "C1", 1712345679)
	require.NoError(t, err)
	require.Len(t, since, 1)
	assert.Equal(t, "block-2", since[0].TargetBlockID)
	require.NotNil(t, since[0].ParentSourceTS)
	assert.InDelta(t, parent, *since[0].ParentSourceTS, 1e-9)

	all, err := repo.ListSince(ctx, "wf-1", "C1", 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Less(t, all[0].SourceTS, all[1].SourceTS)

	require.NoError(t, repo.MarkDeleted(ctx, "wf-1", "C1", parent, time.Now()))

	marked, err := repo.Get(ctx, "wf-1", "C1", parent)
	require.NoError(t, err)
	assert.True(t, marked.IsDeleted())

	err = repo.MarkDeleted(ctx, "wf-1", "C1", 1.5, time.Now())
	assert.True(t, persistence.IsMappingNotFound(err))
}
