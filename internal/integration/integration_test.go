package integration

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"net/url"
	"path"
	"strings"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"

	"emprendo-intake/internal/app"
	"emprendo-intake/internal/domain"
	"emprendo-intake/internal/export"
	"emprendo-intake/internal/grading"
	"emprendo-intake/internal/infra/postgres"
	pgmigrations "emprendo-intake/internal/infra/postgres/migrations"
	"emprendo-intake/internal/infra/queue"
	infraredis "emprendo-intake/internal/infra/redis"
)

func TestTwoStageIntakeEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	db := postgres.OpenDB(pgURL)
	defer db.Close()
	migrateDB(t, ctx, db)
	groupID := seedForms(t, ctx, db)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisOpts, err := goredis.ParseURL(redisURL)
	if err != nil {
		t.Fatalf("redis url: %v", err)
	}
	redisClient := goredis.NewClient(redisOpts)
	defer redisClient.Close()

	queueOpt := asynq.RedisClientOpt{Addr: redisOpts.Addr}
	queueClient := asynq.NewClient(queueOpt)
	defer queueClient.Close()
	inspector := asynq.NewInspector(queueOpt)
	defer inspector.Close()

	apps := postgres.NewApplicationRepository(db)
	forms := infraredis.NewFormRepository(redisClient, postgres.NewFormLoader(pool, domain.PrecedenceLegacy), 5*time.Minute)
	service := app.NewIntakeService(forms, apps, queue.NewNotifier(queueClient, "", 0),
		infraredis.NewResultStore(redisClient, time.Hour), app.IntakeOptions{
			BaseURL:      "https://apply.example.org",
			CurrentGroup: &groupID,
			Parallelism:  2,
		})

	// stage 1: the cohort clone is served and approval issues an invite
	view, err := service.StageOneForm(ctx, "emprendedora")
	if err != nil {
		t.Fatalf("stage one form: %v", err)
	}
	if len(view.Fields.Fields) != 5 {
		t.Fatalf("expected 5 fields on the cohort form, got %d", len(view.Fields.Fields))
	}

	res, err := service.SubmitStageOne(ctx, "emprendedora", app.Submission{Values: url.Values{
		"q_full_name":          {"Ana Pérez"},
		"q_email":              {"ana@example.com"},
		"q_meets_requirements": {"yes"},
		"q_availability_ok":    {"yes"},
		"q_business_active":    {"yes"},
	}})
	if err != nil {
		t.Fatalf("submit stage one: %v", err)
	}
	if res.Outcome != string(grading.Approved) {
		t.Fatalf("expected approval, got %q", res.Outcome)
	}
	stored, err := apps.Get(ctx, res.ApplicationID)
	if err != nil {
		t.Fatalf("get application: %v", err)
	}
	if !stored.InvitedToSecondStage || stored.InviteToken == "" {
		t.Fatalf("expected invited application with token, got %+v", stored)
	}
	if stored.Name != "Ana Pérez" || stored.Email != "ana@example.com" {
		t.Fatalf("identity not taken from answers: %q %q", stored.Name, stored.Email)
	}

	tasks, err := inspector.ListPendingTasks("default")
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Type != queue.TypeNotifyApproved {
		t.Fatalf("expected one approval task, got %+v", tasks)
	}
	event, err := queue.ParseNotificationTask(asynq.NewTask(tasks[0].Type, tasks[0].Payload))
	if err != nil {
		t.Fatalf("parse task: %v", err)
	}
	continuation, err := url.Parse(event.ContinuationURL)
	if err != nil {
		t.Fatalf("continuation url: %v", err)
	}
	if token := path.Base(continuation.Path); token != stored.InviteToken {
		t.Fatalf("continuation token %q does not match stored %q", token, stored.InviteToken)
	}

	// regrading keeps the token and does not notify again
	if _, err := service.Regrade(ctx, res.ApplicationID); err != nil {
		t.Fatalf("regrade: %v", err)
	}
	again, err := apps.Get(ctx, res.ApplicationID)
	if err != nil {
		t.Fatalf("get application: %v", err)
	}
	if again.InviteToken != stored.InviteToken {
		t.Fatalf("token changed on regrade")
	}
	if tasks, _ := inspector.ListPendingTasks("default"); len(tasks) != 1 {
		t.Fatalf("expected no new task, got %d", len(tasks))
	}

	// stage 2 falls back to the master form and ranks on submit
	if _, err := service.Continuation(ctx, "emprendedora", stored.InviteToken); err != nil {
		t.Fatalf("continuation: %v", err)
	}
	second, err := service.SubmitContinuation(ctx, "emprendedora", stored.InviteToken, app.Submission{Values: url.Values{
		"q_e2_business_age":       {"4_6"},
		"q_e2_has_employees":      {"yes"},
		"q_e2_commitment_program": {"yes"},
		"q_e2_hours_per_week":     {"gt4"},
		"q_e2_main_challenge":     {strings.Repeat("vender más ", 40)},
	}})
	if err != nil {
		t.Fatalf("submit continuation: %v", err)
	}
	ranked, err := apps.Get(ctx, second.ApplicationID)
	if err != nil {
		t.Fatalf("get stage two: %v", err)
	}
	if ranked.SourceApplicationID == nil || *ranked.SourceApplicationID != res.ApplicationID {
		t.Fatalf("stage two not linked to stage one: %+v", ranked.SourceApplicationID)
	}
	if ranked.Email != "ana@example.com" {
		t.Fatalf("identity not carried over: %q", ranked.Email)
	}
	if ranked.Recommendation == "" || ranked.Scores.Overall <= 0 {
		t.Fatalf("expected ranking, got %+v", ranked.Scores)
	}

	progress, err := service.GradeForm(ctx, grading.SlugEntrepreneurStageTwo, app.GradeOptions{})
	if err != nil {
		t.Fatalf("grade form: %v", err)
	}
	if progress.Total != 1 || progress.Failed != 0 {
		t.Fatalf("unexpected progress %+v", progress)
	}

	fd, err := forms.GetForm(ctx, grading.SlugEntrepreneurStageTwo)
	if err != nil {
		t.Fatalf("get form: %v", err)
	}
	list, err := apps.ListByForm(ctx, fd.ID, false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var out bytes.Buffer
	if err := export.WriteCSV(&out, fd, list); err != nil {
		t.Fatalf("export: %v", err)
	}
	records, err := csv.NewReader(&out).ReadAll()
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if len(records) != 2 || records[1][3] != "ana@example.com" {
		t.Fatalf("unexpected export %v", records)
	}
}

func migrateDB(t *testing.T, ctx context.Context, db *bun.DB) {
	t.Helper()
	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

type seedQuestion struct {
	slug    string
	typ     domain.FieldType
	choices []string
}

// seedForms stores the entrepreneur masters and a cohort clone of stage 1.
// It returns the cohort id.
func seedForms(t *testing.T, ctx context.Context, db *bun.DB) int64 {
	t.Helper()
	var groupID int64
	if err := db.QueryRowContext(ctx,
		`INSERT INTO form_groups (number, start_month, end_month, year) VALUES (6, 'Enero', 'Marzo', 2026) RETURNING id`,
	).Scan(&groupID); err != nil {
		t.Fatalf("insert group: %v", err)
	}

	stageOne := []seedQuestion{
		{slug: "full_name", typ: domain.FieldShortText},
		{slug: "email", typ: domain.FieldShortText},
		{slug: "meets_requirements", typ: domain.FieldBoolean},
		{slug: "availability_ok", typ: domain.FieldBoolean},
		{slug: "business_active", typ: domain.FieldBoolean},
	}
	seedForm(t, ctx, db, "E_A1", nil, true, stageOne)
	seedForm(t, ctx, db, "G6_E_A1", &groupID, true, stageOne)
	seedForm(t, ctx, db, "E_A2", nil, false, []seedQuestion{
		{slug: "e2_business_age", typ: domain.FieldSingleChoice, choices: []string{"idea", "less_1", "1_3", "4_6", "7_10", "more_10"}},
		{slug: "e2_has_employees", typ: domain.FieldBoolean},
		{slug: "e2_commitment_program", typ: domain.FieldSingleChoice, choices: []string{"yes", "not_sure", "no"}},
		{slug: "e2_hours_per_week", typ: domain.FieldSingleChoice, choices: []string{"lt2", "2_4", "gt4"}},
		{slug: "e2_main_challenge", typ: domain.FieldLongText},
	})
	return groupID
}

func seedForm(t *testing.T, ctx context.Context, db *bun.DB, slug string, groupID *int64, public bool, questions []seedQuestion) {
	t.Helper()
	var formID int64
	if err := db.QueryRowContext(ctx,
		`INSERT INTO form_definitions (slug, name, is_master, group_id, master_slug, is_public) VALUES (?, ?, ?, ?, ?, ?) RETURNING id`,
		slug, slug, groupID == nil, groupID, grading.MasterSlug(slug), public,
	).Scan(&formID); err != nil {
		t.Fatalf("insert form %s: %v", slug, err)
	}
	for i, q := range questions {
		var questionID int64
		if err := db.QueryRowContext(ctx,
			`INSERT INTO questions (form_id, slug, text, field_type, required, position) VALUES (?, ?, ?, ?, ?, ?) RETURNING id`,
			formID, q.slug, q.slug, string(q.typ), q.typ != domain.FieldLongText, i+1,
		).Scan(&questionID); err != nil {
			t.Fatalf("insert question %s: %v", q.slug, err)
		}
		for j, v := range q.choices {
			if _, err := db.ExecContext(ctx,
				`INSERT INTO choices (question_id, label, value, position) VALUES (?, ?, ?, ?)`,
				questionID, v, v, j,
			); err != nil {
				t.Fatalf("insert choice %s: %v", v, err)
			}
		}
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "intake", "POSTGRES_PASSWORD": "intakepass", "POSTGRES_DB": "intakedb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://intake:intakepass@%s:%s/intakedb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	addr := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return addr, func() {
		_ = container.Terminate(ctx)
	}
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
