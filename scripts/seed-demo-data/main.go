// seed-demo-data loads the demo fixtures into a local database and walks one
// inspection through the full workflow: upload registration, extraction
// payload attachment, plan building, manager approval and a first item
// resolution by the consultant.
//
// Usage: go run ./scripts/seed-demo-data [-fixtures path]
//
// Database connection: uses the standard PG* environment variables. Run it
// against a fresh database; the script does not clean up previous runs.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/ilyakaznacheev/cleanenv"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/vigilo-inc/vigilo-engine/pkg/config"
	"github.com/vigilo-inc/vigilo-engine/pkg/database"
	"github.com/vigilo-inc/vigilo-engine/pkg/models"
	"github.com/vigilo-inc/vigilo-engine/pkg/repositories"
	"github.com/vigilo-inc/vigilo-engine/pkg/retry"
	"github.com/vigilo-inc/vigilo-engine/pkg/services"
)

type companyFixture struct {
	Name string `yaml:"name"`
	CNPJ string `yaml:"cnpj"`
}

type establishmentFixture struct {
	Name             string `yaml:"name"`
	Code             string `yaml:"code"`
	ResponsibleName  string `yaml:"responsible_name"`
	ResponsibleEmail string `yaml:"responsible_email"`
	ResponsiblePhone string `yaml:"responsible_phone"`
}

type userFixture struct {
	Name           string   `yaml:"name"`
	Email          string   `yaml:"email"`
	Role           string   `yaml:"role"`
	Establishments []string `yaml:"establishments"`
}

type inspectionFixture struct {
	Establishment string         `yaml:"establishment"`
	DriveFileID   string         `yaml:"drive_file_id"`
	Filename      string         `yaml:"filename"`
	FileHash      string         `yaml:"file_hash"`
	Report        map[string]any `yaml:"report"`
}

type fixtures struct {
	Company        companyFixture         `yaml:"company"`
	Establishments []establishmentFixture `yaml:"establishments"`
	Users          []userFixture          `yaml:"users"`
	Inspections    []inspectionFixture    `yaml:"inspections"`
}

func main() {
	fixturesPath := flag.String("fixtures", "scripts/seed-demo-data/fixtures.yaml", "Path to the fixtures file")
	flag.Parse()

	if err := run(*fixturesPath); err != nil {
		fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("demo data seeded")
}

func run(fixturesPath string) error {
	raw, err := os.ReadFile(fixturesPath)
	if err != nil {
		return fmt.Errorf("failed to read fixtures: %w", err)
	}
	var fx fixtures
	if err := yaml.Unmarshal(raw, &fx); err != nil {
		return fmt.Errorf("failed to parse fixtures: %w", err)
	}

	var dbCfg config.DatabaseConfig
	if err := cleanenv.ReadEnv(&dbCfg); err != nil {
		return fmt.Errorf("failed to read database config: %w", err)
	}
	var redisCfg config.RedisConfig
	if err := cleanenv.ReadEnv(&redisCfg); err != nil {
		return fmt.Errorf("failed to read redis config: %w", err)
	}
	var retryEnv config.RetryConfig
	if err := cleanenv.ReadEnv(&retryEnv); err != nil {
		return fmt.Errorf("failed to read retry config: %w", err)
	}
	var driveCfg config.DriveConfig
	if err := cleanenv.ReadEnv(&driveCfg); err != nil {
		return fmt.Errorf("failed to read drive config: %w", err)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	db, err := database.NewConnection(ctx, &dbCfg)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer db.Close()

	sqlDB, err := sql.Open("pgx", dbCfg.ConnectionString())
	if err != nil {
		return err
	}
	if err := database.RunMigrations(sqlDB, "migrations", logger); err != nil {
		_ = sqlDB.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	_ = sqlDB.Close()

	redisClient, err := database.NewRedisClient(&redisCfg)
	if err != nil {
		logger.Warn("redis unavailable, seeding without the hash cache", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	companyRepo := repositories.NewCompanyRepository(db)
	establishmentRepo := repositories.NewEstablishmentRepository(db)
	userRepo := repositories.NewUserRepository(db)
	inspectionRepo := repositories.NewInspectionRepository(db)
	planRepo := repositories.NewActionPlanRepository(db)

	uploadCfg := &config.UploadConfig{
		MaxFileSizeMB:     25,
		AllowedExtensions: []string{".pdf", ".docx"},
	}
	uploadSvc := services.NewUploadService(inspectionRepo, establishmentRepo, uploadCfg, &driveCfg, redisClient, logger)
	planSvc := services.NewPlanService(planRepo, inspectionRepo, logger)
	approvalSvc := services.NewApprovalService(inspectionRepo, planRepo, userRepo, logger)
	retryCfg := &retry.Config{
		MaxRetries:   retryEnv.MaxAttempts,
		InitialDelay: time.Duration(retryEnv.BaseDelayMS) * time.Millisecond,
		MaxDelay:     time.Duration(retryEnv.MaxElapsedMS) * time.Millisecond,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
	trackerSvc := services.NewTrackerService(planRepo, inspectionRepo, userRepo, retryCfg, logger)

	company, err := models.NewCompany(fx.Company.Name, fx.Company.CNPJ)
	if err != nil {
		return fmt.Errorf("company %q: %w", fx.Company.Name, err)
	}
	if err := companyRepo.Create(ctx, company); err != nil {
		return fmt.Errorf("failed to create company: %w", err)
	}

	establishmentsByCode := make(map[string]uuid.UUID)
	for _, ef := range fx.Establishments {
		establishment, err := models.NewEstablishment(
			ef.Name, company.ID, ef.Code, ef.ResponsibleName, ef.ResponsibleEmail, ef.ResponsiblePhone)
		if err != nil {
			return fmt.Errorf("establishment %q: %w", ef.Name, err)
		}
		if err := establishmentRepo.Create(ctx, establishment); err != nil {
			return fmt.Errorf("failed to create establishment %q: %w", ef.Name, err)
		}
		establishmentsByCode[ef.Code] = establishment.ID
	}

	var manager, consultant *models.User
	for _, uf := range fx.Users {
		user, err := buildUser(uf, company.ID, establishmentsByCode)
		if err != nil {
			return err
		}
		if err := userRepo.Create(ctx, user); err != nil {
			return fmt.Errorf("failed to create user %q: %w", uf.Email, err)
		}
		switch user.Role {
		case models.RoleManager:
			manager = user
		case models.RoleConsultant:
			consultant = user
		}
	}

	for _, inf := range fx.Inspections {
		establishmentID, ok := establishmentsByCode[inf.Establishment]
		if !ok {
			return fmt.Errorf("inspection references unknown establishment %q", inf.Establishment)
		}

		inspection, err := uploadSvc.RegisterUpload(ctx, services.RegisterUploadInput{
			DriveFileID:     inf.DriveFileID,
			EstablishmentID: establishmentID,
			Filename:        inf.Filename,
			FileHash:        inf.FileHash,
		})
		if err != nil {
			return fmt.Errorf("failed to register upload %q: %w", inf.DriveFileID, err)
		}
		if _, err := uploadSvc.AttachAIResponse(ctx, inspection.ID, models.JSONBMap(inf.Report)); err != nil {
			return fmt.Errorf("failed to attach report to %q: %w", inf.DriveFileID, err)
		}

		plan, err := planSvc.BuildPlan(ctx, inspection.ID)
		if err != nil {
			return fmt.Errorf("failed to build plan for %q: %w", inf.DriveFileID, err)
		}

		if manager == nil || consultant == nil {
			continue
		}
		if err := approvalSvc.Approve(ctx, inspection.ID, manager.ID); err != nil {
			return fmt.Errorf("failed to approve %q: %w", inf.DriveFileID, err)
		}
		for _, item := range plan.Items() {
			if item.IsOpen() {
				if err := trackerSvc.ResolveItem(ctx, consultant.ID, plan.ID, item.ID, "Corrigido durante a visita de demonstração"); err != nil {
					return fmt.Errorf("failed to resolve item: %w", err)
				}
				break
			}
		}
	}

	return nil
}

func buildUser(uf userFixture, companyID uuid.UUID, establishmentsByCode map[string]uuid.UUID) (*models.User, error) {
	switch models.UserRole(uf.Role) {
	case models.RoleManager:
		return models.NewManager(uf.Email, uf.Name, companyID)
	case models.RoleAdmin:
		return models.NewAdmin(uf.Email, uf.Name)
	case models.RoleConsultant:
		ids := make([]uuid.UUID, 0, len(uf.Establishments))
		for _, code := range uf.Establishments {
			id, ok := establishmentsByCode[code]
			if !ok {
				return nil, fmt.Errorf("user %q references unknown establishment %q", uf.Email, code)
			}
			ids = append(ids, id)
		}
		return models.NewConsultant(uf.Email, uf.Name, companyID, ids)
	default:
		return nil, fmt.Errorf("user %q has unknown role %q", uf.Email, uf.Role)
	}
}
