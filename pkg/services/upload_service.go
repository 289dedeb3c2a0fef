package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/vigilo-inc/vigilo-engine/pkg/apperrors"
	"github.com/vigilo-inc/vigilo-engine/pkg/config"
	"github.com/vigilo-inc/vigilo-engine/pkg/logging"
	"github.com/vigilo-inc/vigilo-engine/pkg/models"
	"github.com/vigilo-inc/vigilo-engine/pkg/repositories"
)

// fileHashCacheTTL bounds how long a content hash stays in the fast-path
// cache. The database remains the source of truth for duplicate detection.
const fileHashCacheTTL = 24 * time.Hour

// RegisterUploadInput carries everything the ingestion step knows about a
// newly uploaded report file.
type RegisterUploadInput struct {
	DriveFileID     string
	EstablishmentID uuid.UUID
	Filename        string
	FileHash        string
	DriveWebLink    string
}

// UploadService registers report uploads and attaches the extraction output
// once the external processing step finishes.
type UploadService interface {
	// RegisterUpload creates a PROCESSING inspection for the uploaded file.
	// Returns DuplicateFileError when the content hash is already known.
	RegisterUpload(ctx context.Context, in RegisterUploadInput) (*models.Inspection, error)
	// AttachAIResponse stores the extraction payload and moves the
	// inspection to PENDING_MANAGER_REVIEW.
	AttachAIResponse(ctx context.Context, inspectionID uuid.UUID, response models.JSONBMap) (*models.Inspection, error)
	// MarkProcessingFailed rejects an inspection whose extraction failed,
	// recording the reason in the processing log.
	MarkProcessingFailed(ctx context.Context, inspectionID uuid.UUID, reason string) error
}

type uploadService struct {
	inspectionRepo    repositories.InspectionRepository
	establishmentRepo repositories.EstablishmentRepository
	uploadCfg         *config.UploadConfig
	driveCfg          *config.DriveConfig
	cache             *redis.Client // nil when Redis is not configured
	logger            *zap.Logger
}

// NewUploadService creates a new upload service. cache may be nil, in which
// case duplicate detection falls back to the database alone.
func NewUploadService(
	inspectionRepo repositories.InspectionRepository,
	establishmentRepo repositories.EstablishmentRepository,
	uploadCfg *config.UploadConfig,
	driveCfg *config.DriveConfig,
	cache *redis.Client,
	logger *zap.Logger,
) UploadService {
	return &uploadService{
		inspectionRepo:    inspectionRepo,
		establishmentRepo: establishmentRepo,
		uploadCfg:         uploadCfg,
		driveCfg:          driveCfg,
		cache:             cache,
		logger:            logger,
	}
}

var _ UploadService = (*uploadService)(nil)

func (s *uploadService) RegisterUpload(ctx context.Context, in RegisterUploadInput) (*models.Inspection, error) {
	if in.Filename != "" && !s.uploadCfg.IsAllowedExtension(filepath.Ext(in.Filename)) {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("file extension %q is not allowed", filepath.Ext(in.Filename)), "filename")
	}

	if _, err := s.establishmentRepo.GetByID(ctx, in.EstablishmentID); err != nil {
		return nil, err
	}

	if in.FileHash != "" {
		if err := s.checkDuplicate(ctx, in.FileHash); err != nil {
			return nil, err
		}
	}

	webLink := in.DriveWebLink
	if webLink == "" && s.driveCfg != nil && s.driveCfg.IsAvailable() {
		// Drive view links follow a fixed scheme; the watcher sometimes
		// delivers the file id without one.
		webLink = "https://drive.google.com/file/d/" + in.DriveFileID + "/view"
	}

	inspection, err := models.NewInspection(in.DriveFileID, in.EstablishmentID, in.FileHash, webLink)
	if err != nil {
		return nil, err
	}
	inspection.ProcessedFilename = in.Filename
	inspection.AddProcessingLog("upload registered", "upload")

	if err := s.inspectionRepo.Create(ctx, inspection); err != nil {
		return nil, err
	}

	s.cacheFileHash(ctx, in.FileHash, inspection.ID)

	s.logger.Info("upload registered",
		zap.String("inspection_id", inspection.ID.String()),
		zap.String("drive_file_id", in.DriveFileID),
		zap.String("establishment_id", in.EstablishmentID.String()))

	return inspection, nil
}

// checkDuplicate consults the hash cache first, then the database. A cache
// hit is always re-verified against the database so stale entries cannot
// reject a legitimate upload.
func (s *uploadService) checkDuplicate(ctx context.Context, fileHash string) error {
	if s.cache != nil {
		if _, err := s.cache.Get(ctx, fileHashCacheKey(fileHash)).Result(); err == nil {
			s.logger.Debug("duplicate hash cache hit", zap.String("file_hash", fileHash))
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn("file hash cache lookup failed",
				zap.String("error", logging.SanitizeError(err)))
		}
	}

	existing, err := s.inspectionRepo.GetByFileHash(ctx, fileHash)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil
		}
		return err
	}
	if existing.IsDuplicateOf(fileHash) {
		return apperrors.NewDuplicateFile(fileHash)
	}
	return nil
}

func (s *uploadService) cacheFileHash(ctx context.Context, fileHash string, inspectionID uuid.UUID) {
	if s.cache == nil || fileHash == "" {
		return
	}
	if err := s.cache.Set(ctx, fileHashCacheKey(fileHash), inspectionID.String(), fileHashCacheTTL).Err(); err != nil {
		s.logger.Warn("failed to cache file hash",
			zap.String("error", logging.SanitizeError(err)))
	}
}

func fileHashCacheKey(fileHash string) string {
	return "vigilo:filehash:" + fileHash
}

func (s *uploadService) AttachAIResponse(ctx context.Context, inspectionID uuid.UUID, response models.JSONBMap) (*models.Inspection, error) {
	inspection, err := s.inspectionRepo.GetByID(ctx, inspectionID)
	if err != nil {
		return nil, err
	}
	expected := inspection.Version

	inspection.SetAIResponse(response)
	if err := inspection.MarkProcessingComplete(); err != nil {
		return nil, err
	}
	inspection.AddProcessingLog("extraction output attached", "processing")

	if err := s.inspectionRepo.Update(ctx, inspection, expected); err != nil {
		return nil, err
	}

	s.logger.Info("extraction output attached",
		zap.String("inspection_id", inspectionID.String()),
		zap.String("status", string(inspection.Status)))

	return inspection, nil
}

func (s *uploadService) MarkProcessingFailed(ctx context.Context, inspectionID uuid.UUID, reason string) error {
	inspection, err := s.inspectionRepo.GetByID(ctx, inspectionID)
	if err != nil {
		return err
	}
	expected := inspection.Version

	if err := inspection.Reject(); err != nil {
		return err
	}
	inspection.AddProcessingLog(reason, "processing")

	if err := s.inspectionRepo.Update(ctx, inspection, expected); err != nil {
		return err
	}

	s.logger.Warn("inspection processing failed",
		zap.String("inspection_id", inspectionID.String()),
		zap.String("reason", reason))

	return nil
}
